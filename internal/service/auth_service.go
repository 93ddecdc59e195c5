package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ldap-admin/internal/directory"
	"ldap-admin/internal/model"
	"ldap-admin/pkg/apierror"
)

const DefaultTokenTTL = 8 * time.Hour

// DefaultLoginFilters are tried in order when resolving a login name; the first
// filter with a match wins. Each contains a single %s for the escaped name.
var DefaultLoginFilters = []string{
	"(uid=%s)",
	"(cn=%s)",
	"(&(objectClass=inetOrgPerson)(uid=%s))",
	"(&(objectClass=person)(cn=%s))",
	"(cn=*%s*)",
}

var principalAttributes = []string{"cn", "uid", "mail", "objectClass"}

// directoryAuthenticator is satisfied by *directory.Client.
type directoryAuthenticator interface {
	sessionOpener
	Authenticate(ctx context.Context, dn string, password string) error
	BaseDN() string
}

type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	AdminGroupDN string
	LoginFilters []string
}

type AuthService struct {
	directory    directoryAuthenticator
	activity     activityRecorder
	jwtSecret    []byte
	tokenTTL     time.Duration
	adminGroupDN string
	filters      []string
	now          func() time.Time
}

func NewAuthService(dir directoryAuthenticator, activity activityRecorder, cfg AuthConfig) (*AuthService, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}

	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}

	filters := cfg.LoginFilters
	if len(filters) == 0 {
		filters = DefaultLoginFilters
	}
	for _, f := range filters {
		if strings.Count(f, "%s") != 1 {
			return nil, fmt.Errorf("login filter %q must contain exactly one %%s", f)
		}
	}

	return &AuthService{
		directory:    dir,
		activity:     activity,
		jwtSecret:    []byte(cfg.JWTSecret),
		tokenTTL:     cfg.TokenTTL,
		adminGroupDN: strings.TrimSpace(cfg.AdminGroupDN),
		filters:      append([]string(nil), filters...),
		now:          time.Now,
	}, nil
}

// Login resolves username to a directory entry, verifies password with a bind as
// that entry and issues a session token.
func (s *AuthService) Login(ctx context.Context, username string, password string, clientIP string) (model.LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.LoginResult{}, apierror.Validation("username and password are required", "")
	}

	sess, err := s.directory.Open(ctx)
	if err != nil {
		s.recordFailure(ctx, username, "directory_unavailable", err)
		return model.LoginResult{}, fmt.Errorf("%w: %w", model.ErrDirectoryUnavailable, err)
	}
	defer sess.Close()

	principal, found := s.resolvePrincipal(ctx, sess, username)
	if !found {
		s.recordFailure(ctx, username, "user_not_found", nil)
		return model.LoginResult{}, model.ErrPrincipalNotFound
	}

	if err := s.directory.Authenticate(ctx, principal.DN, password); err != nil {
		if errors.Is(err, directory.ErrInvalidCredentials) {
			s.recordFailure(ctx, username, "invalid_password", nil)
			return model.LoginResult{}, model.ErrInvalidCredential
		}
		s.recordFailure(ctx, username, "directory_unavailable", err)
		return model.LoginResult{}, fmt.Errorf("%w: %w", model.ErrDirectoryUnavailable, err)
	}

	user := model.AuthUser{
		Username:   displayName(principal.Attributes, username),
		DN:         principal.DN,
		Role:       s.resolveRole(ctx, sess, principal.DN),
		Attributes: principal.Attributes,
	}

	token, err := s.issueToken(user)
	if err != nil {
		return model.LoginResult{}, err
	}

	s.activity.Record(ctx, username, "login", map[string]any{
		"method": "ldap",
		"ip":     clientIP,
		"dn":     principal.DN,
		"role":   user.Role,
	}, model.StatusSuccess)

	return model.LoginResult{Token: token, User: user, ExpiresIn: FormatTTL(s.tokenTTL)}, nil
}

// Refresh re-signs the identity in claims with a fresh expiry.
func (s *AuthService) Refresh(claims *model.AuthClaims) (string, string, error) {
	if claims == nil || claims.DN == "" {
		return "", "", model.ErrAuthRequired
	}

	token, err := s.issueToken(model.AuthUser{
		Username:   claims.Username,
		DN:         claims.DN,
		Role:       claims.Role,
		Attributes: claims.Attributes,
	})
	if err != nil {
		return "", "", err
	}

	return token, FormatTTL(s.tokenTTL), nil
}

// ValidateToken verifies an HS256 session token and its expiry.
func (s *AuthService) ValidateToken(tokenString string) (*model.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apierror.Forbidden("invalid token signing method")
		}
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, apierror.Forbidden("invalid or expired token")
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.Forbidden("invalid token claims")
	}

	claims := &model.AuthClaims{}
	claims.DN, _ = claimsMap["dn"].(string)
	claims.Username, _ = claimsMap["username"].(string)
	claims.Role, _ = claimsMap["role"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if claims.DN == "" {
		claims.DN, _ = claimsMap["sub"].(string)
	}
	if claims.DN == "" {
		return nil, apierror.Forbidden("invalid token subject")
	}

	if raw, ok := claimsMap["attributes"].(map[string]any); ok {
		if attrs, attrErr := model.AttributesFromAny(raw); attrErr == nil {
			claims.Attributes = attrs
		}
	}
	if iat, err := claimsMap.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := claimsMap.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	return claims, nil
}

// resolvePrincipal tries each login filter in order. A filter whose search fails is
// skipped.
func (s *AuthService) resolvePrincipal(ctx context.Context, sess *directory.Session, username string) (model.DirectoryEntry, bool) {
	escaped := ldap.EscapeFilter(username)

	for _, tpl := range s.filters {
		filter := fmt.Sprintf(tpl, escaped)

		entries, err := sess.Search(ctx, directory.SearchRequest{
			BaseDN:     s.directory.BaseDN(),
			Scope:      directory.ScopeSub,
			Filter:     filter,
			Attributes: principalAttributes,
		})
		if err != nil {
			slog.Debug("login filter failed", "filter", filter, "error", err)
			continue
		}

		if len(entries) > 0 {
			slog.Debug("login principal resolved", "filter", filter, "dn", entries[0].DN)
			return entries[0], true
		}
	}

	return model.DirectoryEntry{}, false
}

// resolveRole grants admin to members of the admin group. Without a configured group
// every authenticated principal is an admin.
func (s *AuthService) resolveRole(ctx context.Context, sess *directory.Session, dn string) string {
	if s.adminGroupDN == "" {
		return model.RoleAdmin
	}

	entries, err := sess.Search(ctx, directory.SearchRequest{
		BaseDN:     s.adminGroupDN,
		Scope:      directory.ScopeBase,
		Filter:     fmt.Sprintf("(member=%s)", ldap.EscapeFilter(dn)),
		Attributes: []string{"1.1"},
	})
	if err != nil {
		slog.Warn("admin group lookup failed", "group", s.adminGroupDN, "dn", dn, "error", err)
		return model.RoleViewer
	}

	if len(entries) > 0 {
		return model.RoleAdmin
	}
	return model.RoleViewer
}

func (s *AuthService) issueToken(user model.AuthUser) (string, error) {
	now := s.now().UTC()

	claims := jwt.MapClaims{
		"sub":      user.DN,
		"username": user.Username,
		"dn":       user.DN,
		"role":     user.Role,
		"jti":      uuid.NewString(),
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	}
	if len(user.Attributes) > 0 {
		claims["attributes"] = user.Attributes
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

func (s *AuthService) recordFailure(ctx context.Context, username string, reason string, cause error) {
	details := map[string]any{"reason": reason}
	if cause != nil {
		details["error"] = cause.Error()
	}
	s.activity.Record(ctx, username, "login_failed", details, model.StatusFailure)
}

func displayName(attrs model.Attributes, fallback string) string {
	if uid := attrs.First("uid"); uid != "" {
		return uid
	}
	if cn := attrs.First("cn"); cn != "" {
		return cn
	}
	return fallback
}

// FormatTTL renders a duration the way tokens advertise it ("8h", "30m", "45s").
func FormatTTL(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}
