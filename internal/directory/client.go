package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"

	"ldap-admin/internal/model"
)

// Scope is the depth of a directory search.
type Scope int

const (
	ScopeBase Scope = ldap.ScopeBaseObject
	ScopeOne  Scope = ldap.ScopeSingleLevel
	ScopeSub  Scope = ldap.ScopeWholeSubtree
)

// ParseScope accepts base, one (onelevel) and sub (subtree). An empty value yields
// fallback.
func ParseScope(raw string, fallback Scope) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return fallback, nil
	case "base":
		return ScopeBase, nil
	case "one", "onelevel":
		return ScopeOne, nil
	case "sub", "subtree":
		return ScopeSub, nil
	}

	return fallback, fmt.Errorf("%w: unknown scope %q", ErrInvalidSyntax, raw)
}

func (s Scope) String() string {
	switch s {
	case ScopeBase:
		return "base"
	case ScopeOne:
		return "one"
	case ScopeSub:
		return "sub"
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// SearchRequest describes a single search. Empty Attributes requests every user
// attribute.
type SearchRequest struct {
	BaseDN     string
	Scope      Scope
	Filter     string
	Attributes []string
	SizeLimit  int
}

// Change is one modification applied by Session.Modify.
type Change struct {
	Op     uint
	Name   string
	Values []string
}

func Replace(name string, values ...string) Change {
	return Change{Op: ldap.ReplaceAttribute, Name: name, Values: values}
}

func AddValues(name string, values ...string) Change {
	return Change{Op: ldap.AddAttribute, Name: name, Values: values}
}

func DeleteValues(name string, values ...string) Change {
	return Change{Op: ldap.DeleteAttribute, Name: name, Values: values}
}

// Client opens directory sessions bound as the configured service identity.
type Client struct {
	cfg    Config
	dialer Dialer
}

// NewClient applies defaults to cfg and validates it. A nil dialer dials cfg.URL.
func NewClient(cfg Config, dialer Dialer) (*Client, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if dialer == nil {
		dialer = NewURLDialer(cfg)
	}

	return &Client{cfg: cfg, dialer: dialer}, nil
}

func (c *Client) BaseDN() string {
	return c.cfg.BaseDN
}

func (c *Client) URL() string {
	return c.cfg.URL
}

// Open dials the directory and binds the service identity. Any failure, including
// rejected service credentials, is reported as ErrUnavailable. The caller must Close
// the returned session.
func (c *Client) Open(ctx context.Context) (*Session, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	sess := newSession(ctx, conn, c.cfg.PagingSize)

	if c.cfg.BindDN != "" {
		if err := conn.Bind(c.cfg.BindDN, c.cfg.BindPassword); err != nil {
			sess.Close()
			return nil, &OpError{Op: "bind", DN: c.cfg.BindDN, Code: ResultCode(err), Category: ErrUnavailable, Err: err}
		}
	}

	return sess, nil
}

// Authenticate verifies password for dn on a dedicated connection that is released
// before returning. A rejected bind is ErrInvalidCredentials; any other failure is
// ErrUnavailable.
func (c *Client) Authenticate(ctx context.Context, dn string, password string) error {
	if password == "" {
		return &OpError{Op: "bind", DN: dn, Code: ldap.ErrorEmptyPassword, Category: ErrInvalidCredentials, Err: errors.New("empty password")}
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	sess := newSession(ctx, conn, c.cfg.PagingSize)
	defer sess.Close()

	if err := conn.Bind(dn, password); err != nil {
		wrapped := wrapError("bind", dn, err)
		if errors.Is(wrapped, ErrInvalidCredentials) {
			return wrapped
		}
		return &OpError{Op: "bind", DN: dn, Code: ResultCode(err), Category: ErrUnavailable, Err: err}
	}

	return nil
}

// Ping opens and releases a service session.
func (c *Client) Ping(ctx context.Context) error {
	sess, err := c.Open(ctx)
	if err != nil {
		return err
	}
	sess.Close()
	return nil
}

func (c *Client) dial(ctx context.Context) (Conn, error) {
	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		return nil, &OpError{Op: "dial", Category: ErrUnavailable, Err: err}
	}
	return conn, nil
}

// Session is a bound connection. It is safe for concurrent use and must be closed.
type Session struct {
	conn       Conn
	pagingSize uint32
	stop       func() bool
	closeOnce  sync.Once
}

func newSession(ctx context.Context, conn Conn, pagingSize uint32) *Session {
	s := &Session{conn: conn, pagingSize: pagingSize}
	// A cancelled request tears down its connection so blocked operations return.
	s.stop = context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	return s
}

// Close unbinds and releases the connection. Calling it again is a no-op.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.stop()
		_ = s.conn.Unbind()
		_ = s.conn.Close()
	})
}

// Search runs req and returns the entries in server order. Multi-level searches use
// the paged results control so that server size limits do not truncate the result.
func (s *Session) Search(ctx context.Context, req SearchRequest) ([]model.DirectoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, &OpError{Op: "search", DN: req.BaseDN, Category: ErrUnavailable, Err: err}
	}

	filter := req.Filter
	if strings.TrimSpace(filter) == "" {
		filter = "(objectClass=*)"
	}

	ldapReq := ldap.NewSearchRequest(
		req.BaseDN,
		int(req.Scope),
		ldap.NeverDerefAliases,
		req.SizeLimit,
		0,
		false,
		filter,
		req.Attributes,
		nil,
	)

	started := time.Now()

	var (
		result *ldap.SearchResult
		err    error
	)
	if req.Scope != ScopeBase && s.pagingSize > 0 && req.SizeLimit == 0 {
		result, err = s.conn.SearchWithPaging(ldapReq, s.pagingSize)
	} else {
		result, err = s.conn.Search(ldapReq)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &OpError{Op: "search", DN: req.BaseDN, Category: ErrUnavailable, Err: ctxErr}
		}
		return nil, wrapError("search", req.BaseDN, err)
	}

	entries := toEntries(result)

	slog.Debug("directory search",
		"base_dn", req.BaseDN,
		"scope", req.Scope.String(),
		"filter", filter,
		"entries", len(entries),
		"duration_ms", time.Since(started).Milliseconds(),
	)

	return entries, nil
}

// Get reads a single entry with base scope. A missing entry is ErrNoSuchObject.
func (s *Session) Get(ctx context.Context, dn string, attributes ...string) (model.DirectoryEntry, error) {
	entries, err := s.Search(ctx, SearchRequest{BaseDN: dn, Scope: ScopeBase, Attributes: attributes})
	if err != nil {
		return model.DirectoryEntry{}, err
	}

	if len(entries) == 0 {
		return model.DirectoryEntry{}, &OpError{Op: "search", DN: dn, Code: ldap.LDAPResultNoSuchObject, Category: ErrNoSuchObject, Err: errors.New("entry not found")}
	}

	return entries[0], nil
}

// Add creates dn with attrs. Attribute order follows the sorted attribute names.
func (s *Session) Add(ctx context.Context, dn string, attrs model.Attributes) error {
	if err := ctx.Err(); err != nil {
		return &OpError{Op: "add", DN: dn, Category: ErrUnavailable, Err: err}
	}

	req := ldap.NewAddRequest(dn, nil)
	for _, name := range attrs.Names() {
		req.Attribute(name, attrs[name])
	}

	if err := s.conn.Add(req); err != nil {
		return wrapError("add", dn, err)
	}

	slog.Debug("directory add", "dn", dn, "attributes", len(attrs))
	return nil
}

func (s *Session) Modify(ctx context.Context, dn string, changes []Change) error {
	if err := ctx.Err(); err != nil {
		return &OpError{Op: "modify", DN: dn, Category: ErrUnavailable, Err: err}
	}

	req := ldap.NewModifyRequest(dn, nil)
	for _, change := range changes {
		switch change.Op {
		case ldap.AddAttribute:
			req.Add(change.Name, change.Values)
		case ldap.DeleteAttribute:
			req.Delete(change.Name, change.Values)
		default:
			req.Replace(change.Name, change.Values)
		}
	}

	if err := s.conn.Modify(req); err != nil {
		return wrapError("modify", dn, err)
	}

	slog.Debug("directory modify", "dn", dn, "changes", len(changes))
	return nil
}

func (s *Session) Delete(ctx context.Context, dn string) error {
	if err := ctx.Err(); err != nil {
		return &OpError{Op: "delete", DN: dn, Category: ErrUnavailable, Err: err}
	}

	if err := s.conn.Del(ldap.NewDelRequest(dn, nil)); err != nil {
		return wrapError("delete", dn, err)
	}

	slog.Debug("directory delete", "dn", dn)
	return nil
}

func toEntries(result *ldap.SearchResult) []model.DirectoryEntry {
	if result == nil {
		return []model.DirectoryEntry{}
	}

	entries := make([]model.DirectoryEntry, 0, len(result.Entries))
	for _, e := range result.Entries {
		attrs := make(model.Attributes, len(e.Attributes))
		for _, attr := range e.Attributes {
			values := make([]string, len(attr.Values))
			copy(values, attr.Values)
			attrs[attr.Name] = values
		}
		entries = append(entries, model.DirectoryEntry{DN: e.DN, Attributes: attrs})
	}

	return entries
}
