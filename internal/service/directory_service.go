package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"ldap-admin/internal/directory"
	"ldap-admin/internal/model"
	"ldap-admin/pkg/apierror"
)

const (
	PasswordHashPlain  = "plain"
	PasswordHashBcrypt = "bcrypt"

	defaultUserOU = "people"
	groupsOU      = "groups"
)

var (
	treeAttributes  = []string{"cn", "ou", "objectClass", "description", "member", "uid"}
	userAttributes  = []string{"cn", "sn", "uid", "mail", "givenName", "telephoneNumber", "title", "description", "objectClass"}
	groupAttributes = []string{"cn", "description", "member", "owner", "objectClass"}

	userObjectClasses  = []string{"inetOrgPerson", "organizationalPerson", "person", "top"}
	groupObjectClasses = []string{"groupOfNames", "top"}
	ouObjectClasses    = []string{"organizationalUnit", "top"}
)

// commonObjectClasses is the catalog offered to the entry editors.
var commonObjectClasses = []model.ObjectClassInfo{
	{
		Name:        "inetOrgPerson",
		Description: "Internet Organizational Person",
		Required:    []string{"cn", "sn"},
		Optional:    []string{"mail", "uid", "givenName", "telephoneNumber", "description"},
	},
	{
		Name:        "groupOfNames",
		Description: "Group of Names",
		Required:    []string{"cn", "member"},
		Optional:    []string{"description", "owner"},
	},
	{
		Name:        "organizationalUnit",
		Description: "Organizational Unit",
		Required:    []string{"ou"},
		Optional:    []string{"description", "businessCategory"},
	},
}

// directoryClient is satisfied by *directory.Client.
type directoryClient interface {
	sessionOpener
	BaseDN() string
}

type DirectoryConfig struct {
	// PasswordHash selects how userPassword is stored on create: plain or bcrypt.
	PasswordHash string
}

type DirectoryService struct {
	client       directoryClient
	prober       *ChildProber
	paginator    Paginator
	activity     activityRecorder
	passwordHash string
}

type ChildrenPage struct {
	ParentDN   string
	Scope      string
	Entries    []model.TreeEntry
	Pagination model.Pagination
}

type SchemaInfo struct {
	ObjectClasses       []model.ObjectClassInfo
	ServerObjectClasses int
}

func NewDirectoryService(client directoryClient, prober *ChildProber, paginator Paginator, activity activityRecorder, cfg DirectoryConfig) (*DirectoryService, error) {
	hash := strings.ToLower(strings.TrimSpace(cfg.PasswordHash))
	switch hash {
	case "":
		hash = PasswordHashPlain
	case PasswordHashPlain, PasswordHashBcrypt:
	default:
		return nil, fmt.Errorf("unsupported password hash %q", cfg.PasswordHash)
	}

	return &DirectoryService{
		client:       client,
		prober:       prober,
		paginator:    paginator,
		activity:     activity,
		passwordHash: hash,
	}, nil
}

func (s *DirectoryService) BaseDN() string {
	return s.client.BaseDN()
}

// Children lists one page of the entries below parentDN and annotates each with its
// child summary. An empty parentDN means the base DN.
func (s *DirectoryService) Children(ctx context.Context, actor string, parentDN string, rawScope string, page int, pageSize int) (ChildrenPage, error) {
	parentDN = strings.TrimSpace(parentDN)
	if parentDN == "" {
		parentDN = s.client.BaseDN()
	}
	if err := directory.ValidateDN(parentDN); err != nil {
		return ChildrenPage{}, validationError("invalid parentDN", err)
	}

	scope, err := directory.ParseScope(rawScope, directory.ScopeOne)
	if err != nil {
		return ChildrenPage{}, validationError("scope must be base, one or sub", err)
	}

	sess, err := s.client.Open(ctx)
	if err != nil {
		return ChildrenPage{}, err
	}
	defer sess.Close()

	pagination, entries, err := s.paginator.Paginate(ctx, sess, SearchParams{
		Base:       parentDN,
		Filter:     "(objectClass=*)",
		Scope:      scope,
		Attributes: treeAttributes,
	}, page, pageSize)
	if err != nil {
		return ChildrenPage{}, directoryError(err, model.ErrEntryNotFound)
	}

	annotated := s.prober.Annotate(ctx, entries)

	s.activity.Record(ctx, actor, "tree_children", map[string]any{
		"parentDN":   parentDN,
		"scope":      scope.String(),
		"page":       pagination.CurrentPage,
		"pageSize":   pagination.PageSize,
		"totalCount": pagination.TotalCount,
	}, model.StatusSuccess)

	return ChildrenPage{
		ParentDN:   parentDN,
		Scope:      scope.String(),
		Entries:    annotated,
		Pagination: pagination,
	}, nil
}

// CountChildren reports the immediate children of dn.
func (s *DirectoryService) CountChildren(ctx context.Context, dn string) (model.ChildSummary, error) {
	dn = strings.TrimSpace(dn)
	if err := directory.ValidateDN(dn); err != nil {
		return model.ChildSummary{}, validationError("a valid dn is required", err)
	}

	count, err := s.prober.CountChildren(ctx, dn)
	if err != nil {
		return model.ChildSummary{}, directoryError(err, model.ErrEntryNotFound)
	}

	return model.ChildSummary{DN: dn, HasChildren: count > 0, ChildCount: count}, nil
}

func (s *DirectoryService) SearchUsers(ctx context.Context, actor string, query string, page int, pageSize int) ([]model.DirectoryEntry, model.Pagination, error) {
	filter := "(objectClass=inetOrgPerson)"
	if q := strings.TrimSpace(query); q != "" {
		e := ldap.EscapeFilter(q)
		filter = fmt.Sprintf("(&(objectClass=inetOrgPerson)(|(uid=*%[1]s*)(cn=*%[1]s*)(mail=*%[1]s*)(sn=*%[1]s*)))", e)
	}

	entries, pagination, err := s.search(ctx, SearchParams{
		Base:       s.client.BaseDN(),
		Filter:     filter,
		Scope:      directory.ScopeSub,
		Attributes: userAttributes,
	}, page, pageSize)
	if err != nil {
		return nil, model.Pagination{}, err
	}

	s.activity.Record(ctx, actor, "user_search", map[string]any{"query": query, "totalCount": pagination.TotalCount}, model.StatusSuccess)
	return entries, pagination, nil
}

func (s *DirectoryService) SearchGroups(ctx context.Context, actor string, query string, page int, pageSize int) ([]model.DirectoryEntry, model.Pagination, error) {
	filter := "(objectClass=groupOfNames)"
	if q := strings.TrimSpace(query); q != "" {
		e := ldap.EscapeFilter(q)
		filter = fmt.Sprintf("(&(objectClass=groupOfNames)(|(cn=*%[1]s*)(description=*%[1]s*)))", e)
	}

	entries, pagination, err := s.search(ctx, SearchParams{
		Base:       s.client.BaseDN(),
		Filter:     filter,
		Scope:      directory.ScopeSub,
		Attributes: groupAttributes,
	}, page, pageSize)
	if err != nil {
		return nil, model.Pagination{}, err
	}

	s.activity.Record(ctx, actor, "group_search", map[string]any{"query": query, "totalCount": pagination.TotalCount}, model.StatusSuccess)
	return entries, pagination, nil
}

// Search runs an arbitrary filter. Defaults: base DN, (objectClass=*), subtree scope
// and every user attribute.
func (s *DirectoryService) Search(ctx context.Context, actor string, req model.SearchRequest) ([]model.DirectoryEntry, model.Pagination, error) {
	base := strings.TrimSpace(req.BaseDN)
	if base == "" {
		base = s.client.BaseDN()
	}
	if err := directory.ValidateDN(base); err != nil {
		return nil, model.Pagination{}, validationError("invalid baseDN", err)
	}

	filter := strings.TrimSpace(req.Filter)
	if filter == "" {
		filter = "(objectClass=*)"
	}
	if err := directory.ValidateFilter(filter); err != nil {
		return nil, model.Pagination{}, validationError("invalid search filter", err)
	}

	scope, err := directory.ParseScope(req.Scope, directory.ScopeSub)
	if err != nil {
		return nil, model.Pagination{}, validationError("scope must be base, one or sub", err)
	}

	entries, pagination, err := s.search(ctx, SearchParams{
		Base:       base,
		Filter:     filter,
		Scope:      scope,
		Attributes: req.Attributes,
	}, req.Page, req.PageSize)
	if err != nil {
		return nil, model.Pagination{}, err
	}

	s.activity.Record(ctx, actor, "ldap_search", map[string]any{
		"baseDN":     base,
		"filter":     filter,
		"scope":      scope.String(),
		"totalCount": pagination.TotalCount,
	}, model.StatusSuccess)

	return entries, pagination, nil
}

func (s *DirectoryService) GetUser(ctx context.Context, actor string, dn string) (model.DirectoryEntry, error) {
	return s.getEntry(ctx, actor, dn, "user_view")
}

func (s *DirectoryService) GetGroup(ctx context.Context, actor string, dn string) (model.DirectoryEntry, error) {
	return s.getEntry(ctx, actor, dn, "group_view")
}

func (s *DirectoryService) CreateUser(ctx context.Context, actor string, req model.CreateUserRequest) (string, error) {
	req.CN = strings.TrimSpace(req.CN)
	req.SN = strings.TrimSpace(req.SN)
	req.UID = strings.TrimSpace(req.UID)
	req.Mail = strings.TrimSpace(req.Mail)

	var missing []string
	for name, value := range map[string]string{"cn": req.CN, "sn": req.SN, "uid": req.UID, "mail": req.Mail, "userPassword": req.UserPassword} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", apierror.Validation("cn, sn, uid, mail and userPassword are required", "missing: "+strings.Join(sortedCopy(missing), ", "))
	}

	password, err := s.hashPassword(req.UserPassword)
	if err != nil {
		return "", err
	}

	parent := s.userParent(req.OU)
	dn := directory.ChildDN("uid", req.UID, parent)

	attrs := model.Attributes{
		"objectClass":  userObjectClasses,
		"cn":           {req.CN},
		"sn":           {req.SN},
		"uid":          {req.UID},
		"mail":         {req.Mail},
		"userPassword": {password},
	}

	err = s.withSession(ctx, func(sess *directory.Session) error {
		return sess.Add(ctx, dn, attrs)
	})
	if errors.Is(err, directory.ErrNoSuchObject) {
		err = apierror.Constraint(fmt.Sprintf("organizational unit %s does not exist", parent), "")
	}

	s.recordOutcome(ctx, actor, "user_created", "user_create_failed", map[string]any{
		"cn":  req.CN,
		"uid": req.UID,
		"dn":  dn,
	}, err)
	if err != nil {
		return "", directoryError(err, model.ErrConstraintViolation)
	}

	return dn, nil
}

// UpdateUser replaces cn, sn and mail of the user identified by uid. Empty fields are
// left untouched.
func (s *DirectoryService) UpdateUser(ctx context.Context, actor string, uid string, req model.UpdateUserRequest) (string, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return "", apierror.Validation("uid is required", "")
	}

	var changes []directory.Change
	var changed []string
	for _, field := range []struct{ name, value string }{{"cn", req.CN}, {"sn", req.SN}, {"mail", req.Mail}} {
		if v := strings.TrimSpace(field.value); v != "" {
			changes = append(changes, directory.Replace(field.name, v))
			changed = append(changed, field.name)
		}
	}
	if len(changes) == 0 {
		return "", apierror.Validation("no changes provided", "expected at least one of cn, sn, mail")
	}

	dn := directory.ChildDN("uid", uid, s.userParent(req.OU))

	err := s.withSession(ctx, func(sess *directory.Session) error {
		return sess.Modify(ctx, dn, changes)
	})

	s.recordOutcome(ctx, actor, "user_modified", "user_modify_failed", map[string]any{
		"uid":     uid,
		"dn":      dn,
		"changes": changed,
	}, err)
	if err != nil {
		return "", directoryError(err, model.ErrEntryNotFound)
	}

	return dn, nil
}

func (s *DirectoryService) DeleteUser(ctx context.Context, actor string, uid string, ou string) (string, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return "", apierror.Validation("uid is required", "")
	}

	dn := directory.ChildDN("uid", uid, s.userParent(ou))

	err := s.withSession(ctx, func(sess *directory.Session) error {
		return sess.Delete(ctx, dn)
	})

	s.recordOutcome(ctx, actor, "user_deleted", "user_delete_failed", map[string]any{"uid": uid, "dn": dn}, err)
	if err != nil {
		return "", directoryError(err, model.ErrEntryNotFound)
	}

	return dn, nil
}

// CreateGroup adds a groupOfNames below ou=groups. A group without members gets its
// own DN as placeholder member.
func (s *DirectoryService) CreateGroup(ctx context.Context, actor string, req model.CreateGroupRequest) (string, error) {
	cn := strings.TrimSpace(req.CN)
	if cn == "" {
		return "", apierror.Validation("cn is required", "")
	}

	parent := directory.ChildDN("ou", groupsOU, s.client.BaseDN())
	dn := directory.ChildDN("cn", cn, parent)

	members, err := validMembers(req.Members)
	if err != nil {
		return "", err
	}
	if len(members) == 0 {
		members = []string{dn}
	}

	attrs := model.Attributes{
		"objectClass": groupObjectClasses,
		"cn":          {cn},
		"member":      members,
	}
	if description := strings.TrimSpace(req.Description); description != "" {
		attrs["description"] = []string{description}
	}

	err = s.withSession(ctx, func(sess *directory.Session) error {
		return sess.Add(ctx, dn, attrs)
	})
	if errors.Is(err, directory.ErrNoSuchObject) {
		err = apierror.Constraint(fmt.Sprintf("organizational unit %s does not exist", parent), "")
	}

	s.recordOutcome(ctx, actor, "group_created", "group_create_failed", map[string]any{
		"cn":      cn,
		"dn":      dn,
		"members": len(members),
	}, err)
	if err != nil {
		return "", directoryError(err, model.ErrConstraintViolation)
	}

	return dn, nil
}

// UpdateGroup replaces each attribute present in req. An explicitly empty member list
// falls back to the self placeholder; an empty description or owner removes it.
func (s *DirectoryService) UpdateGroup(ctx context.Context, actor string, dn string, req model.UpdateGroupRequest) error {
	dn = strings.TrimSpace(dn)
	if err := directory.ValidateDN(dn); err != nil {
		return validationError("a valid group dn is required", err)
	}

	var changes []directory.Change
	var changed []string

	if req.Description != nil {
		changes = append(changes, directory.Replace("description", nonEmpty(*req.Description)...))
		changed = append(changed, "description")
	}

	if req.Members != nil {
		members, err := validMembers(*req.Members)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			members = []string{dn}
		}
		changes = append(changes, directory.Replace("member", members...))
		changed = append(changed, "member")
	}

	if req.Owner != nil {
		owner := strings.TrimSpace(*req.Owner)
		if owner != "" {
			if err := directory.ValidateDN(owner); err != nil {
				return validationError("owner must be a valid DN", err)
			}
		}
		changes = append(changes, directory.Replace("owner", nonEmpty(owner)...))
		changed = append(changed, "owner")
	}

	if len(changes) == 0 {
		return apierror.Validation("no changes provided", "expected at least one of description, members, owner")
	}

	err := s.withSession(ctx, func(sess *directory.Session) error {
		return sess.Modify(ctx, dn, changes)
	})

	s.recordOutcome(ctx, actor, "group_modified", "group_modify_failed", map[string]any{"dn": dn, "changes": changed}, err)
	if err != nil {
		return directoryError(err, model.ErrEntryNotFound)
	}

	return nil
}

func (s *DirectoryService) DeleteGroup(ctx context.Context, actor string, dn string) error {
	dn = strings.TrimSpace(dn)
	if err := directory.ValidateDN(dn); err != nil {
		return validationError("a valid group dn is required", err)
	}

	err := s.withSession(ctx, func(sess *directory.Session) error {
		return sess.Delete(ctx, dn)
	})

	s.recordOutcome(ctx, actor, "group_deleted", "group_delete_failed", map[string]any{"dn": dn}, err)
	if err != nil {
		return directoryError(err, model.ErrEntryNotFound)
	}

	return nil
}

func (s *DirectoryService) CreateOU(ctx context.Context, actor string, req model.CreateOURequest) (string, error) {
	ou := strings.TrimSpace(req.OU)
	if ou == "" {
		return "", apierror.Validation("ou is required", "")
	}

	parent := strings.TrimSpace(req.ParentDN)
	if parent == "" {
		parent = s.client.BaseDN()
	}
	if err := directory.ValidateDN(parent); err != nil {
		return "", validationError("invalid parentDN", err)
	}

	dn := directory.ChildDN("ou", ou, parent)
	attrs := model.Attributes{
		"objectClass": ouObjectClasses,
		"ou":          {ou},
	}
	if description := strings.TrimSpace(req.Description); description != "" {
		attrs["description"] = []string{description}
	}

	err := s.withSession(ctx, func(sess *directory.Session) error {
		return sess.Add(ctx, dn, attrs)
	})
	if errors.Is(err, directory.ErrNoSuchObject) {
		err = apierror.Constraint(fmt.Sprintf("parent entry %s does not exist", parent), "")
	}

	s.recordOutcome(ctx, actor, "ou_created", "ou_create_failed", map[string]any{"ou": ou, "dn": dn}, err)
	if err != nil {
		return "", directoryError(err, model.ErrConstraintViolation)
	}

	return dn, nil
}

// DeleteOU removes an empty organizational unit.
func (s *DirectoryService) DeleteOU(ctx context.Context, actor string, dn string) error {
	dn = strings.TrimSpace(dn)
	if err := directory.ValidateDN(dn); err != nil {
		return validationError("a valid dn is required", err)
	}
	if directory.SameDN(dn, s.client.BaseDN()) {
		return apierror.Validation("the base DN cannot be deleted", dn)
	}

	err := s.withSession(ctx, func(sess *directory.Session) error {
		return sess.Delete(ctx, dn)
	})
	if errors.Is(err, directory.ErrNotAllowedOnNonLeaf) {
		err = apierror.Constraint("organizational unit is not empty", dn)
	}

	s.recordOutcome(ctx, actor, "ou_deleted", "ou_delete_failed", map[string]any{"dn": dn}, err)
	if err != nil {
		return directoryError(err, model.ErrEntryNotFound)
	}

	return nil
}

// Stats counts users, groups, organizational units and all entries below the base DN.
// The four searches share one session and run concurrently.
func (s *DirectoryService) Stats(ctx context.Context, actor string) (model.DirectoryStats, error) {
	sess, err := s.client.Open(ctx)
	if err != nil {
		return model.DirectoryStats{}, err
	}
	defer sess.Close()

	var stats model.DirectoryStats
	counts := []struct {
		filter string
		dst    *int
	}{
		{"(objectClass=inetOrgPerson)", &stats.Users},
		{"(objectClass=groupOfNames)", &stats.Groups},
		{"(objectClass=organizationalUnit)", &stats.OUs},
		{"(objectClass=*)", &stats.TotalEntries},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range counts {
		g.Go(func() error {
			entries, err := sess.Search(gctx, directory.SearchRequest{
				BaseDN:     s.client.BaseDN(),
				Scope:      directory.ScopeSub,
				Filter:     c.filter,
				Attributes: []string{"1.1"},
			})
			if err != nil {
				return err
			}
			*c.dst = len(entries)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.DirectoryStats{}, directoryError(err, model.ErrEntryNotFound)
	}

	s.activity.Record(ctx, actor, "stats_view", map[string]any{
		"users":        stats.Users,
		"groups":       stats.Groups,
		"ous":          stats.OUs,
		"totalEntries": stats.TotalEntries,
	}, model.StatusSuccess)

	return stats, nil
}

// Schema returns the common object class catalog and the number of object classes the
// server publishes in its subschema entry. An unreadable subschema counts as zero.
func (s *DirectoryService) Schema(ctx context.Context, actor string) (SchemaInfo, error) {
	sess, err := s.client.Open(ctx)
	if err != nil {
		return SchemaInfo{}, err
	}
	defer sess.Close()

	info := SchemaInfo{
		ObjectClasses:       append([]model.ObjectClassInfo(nil), commonObjectClasses...),
		ServerObjectClasses: s.serverObjectClasses(ctx, sess),
	}

	s.activity.Record(ctx, actor, "schema_view", map[string]any{
		"count":               len(info.ObjectClasses),
		"serverObjectClasses": info.ServerObjectClasses,
	}, model.StatusSuccess)

	return info, nil
}

func (s *DirectoryService) serverObjectClasses(ctx context.Context, sess *directory.Session) int {
	subschema := "cn=schema"
	if root, err := sess.Get(ctx, "", "subschemaSubentry"); err == nil {
		if dn := root.Attributes.First("subschemaSubentry"); dn != "" {
			subschema = dn
		}
	}

	entry, err := sess.Get(ctx, subschema, "objectClasses")
	if err != nil {
		slog.Debug("subschema not readable", "dn", subschema, "error", err)
		return 0
	}

	return len(entry.Attributes["objectClasses"])
}

func (s *DirectoryService) getEntry(ctx context.Context, actor string, dn string, action string) (model.DirectoryEntry, error) {
	dn = strings.TrimSpace(dn)
	if err := directory.ValidateDN(dn); err != nil {
		return model.DirectoryEntry{}, validationError("a valid dn is required", err)
	}

	var entry model.DirectoryEntry
	err := s.withSession(ctx, func(sess *directory.Session) error {
		var getErr error
		entry, getErr = sess.Get(ctx, dn)
		return getErr
	})
	if err != nil {
		return model.DirectoryEntry{}, directoryError(err, model.ErrEntryNotFound)
	}

	s.activity.Record(ctx, actor, action, map[string]any{"dn": dn}, model.StatusSuccess)
	return entry, nil
}

func (s *DirectoryService) search(ctx context.Context, params SearchParams, page int, pageSize int) ([]model.DirectoryEntry, model.Pagination, error) {
	var (
		pagination model.Pagination
		entries    []model.DirectoryEntry
	)

	err := s.withSession(ctx, func(sess *directory.Session) error {
		var searchErr error
		pagination, entries, searchErr = s.paginator.Paginate(ctx, sess, params, page, pageSize)
		return searchErr
	})
	if err != nil {
		return nil, model.Pagination{}, directoryError(err, model.ErrEntryNotFound)
	}

	return entries, pagination, nil
}

func (s *DirectoryService) withSession(ctx context.Context, fn func(sess *directory.Session) error) error {
	sess, err := s.client.Open(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	return fn(sess)
}

func (s *DirectoryService) recordOutcome(ctx context.Context, actor string, action string, failedAction string, details map[string]any, err error) {
	if err == nil {
		s.activity.Record(ctx, actor, action, details, model.StatusSuccess)
		return
	}

	details["error"] = err.Error()
	s.activity.Record(ctx, actor, failedAction, details, model.StatusFailure)
}

func (s *DirectoryService) userParent(ou string) string {
	ou = strings.TrimSpace(ou)
	if ou == "" {
		ou = defaultUserOU
	}
	return directory.ChildDN("ou", ou, s.client.BaseDN())
}

func (s *DirectoryService) hashPassword(password string) (string, error) {
	if s.passwordHash != PasswordHashBcrypt {
		return password, nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apierror.Validation("password cannot be hashed", err.Error())
	}

	return "{CRYPT}" + string(hashed), nil
}

// directoryError maps a directory failure onto the model error the handlers render.
// missing is used for ErrNoSuchObject since its meaning depends on the operation.
func directoryError(err error, missing error) error {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return err
	}

	switch {
	case errors.Is(err, directory.ErrNoSuchObject):
		return fmt.Errorf("%w: %w", missing, err)
	case errors.Is(err, directory.ErrAlreadyExists):
		return fmt.Errorf("%w: %w", model.ErrEntryAlreadyExists, err)
	case errors.Is(err, directory.ErrInvalidSyntax),
		errors.Is(err, directory.ErrConstraint),
		errors.Is(err, directory.ErrNotAllowedOnNonLeaf):
		return fmt.Errorf("%w: %w", model.ErrConstraintViolation, err)
	case errors.Is(err, directory.ErrInsufficientAccess):
		return fmt.Errorf("%w: %w", model.ErrForbidden, err)
	}

	return err
}

func validationError(message string, err error) error {
	return apierror.Validation(message, err.Error())
}

func validMembers(raw []string) ([]string, error) {
	members := make([]string, 0, len(raw))
	for _, member := range raw {
		member = strings.TrimSpace(member)
		if member == "" {
			continue
		}
		if err := directory.ValidateDN(member); err != nil {
			return nil, apierror.Validation("member must be a valid DN", member)
		}
		members = append(members, member)
	}
	return members, nil
}

func nonEmpty(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return []string{value}
}

func sortedCopy(values []string) []string {
	out := append([]string(nil), values...)
	slices.Sort(out)
	return out
}
