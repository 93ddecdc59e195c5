// Package directorytest provides an in-memory directory server for tests.
package directorytest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"

	"ldap-admin/internal/directory"
)

type entry struct {
	dn     string
	parent string
	attrs  map[string][]string
}

// Directory is a goroutine-safe in-memory tree that implements directory.Dialer.
// Entries are returned in insertion order.
type Directory struct {
	mu          sync.Mutex
	entries     map[string]*entry
	order       []string
	passwords   map[string]string
	searchFault map[string]error
	dialErr     error
	searchDelay time.Duration

	opened int
	closed int
	active int
	peak   int
	paged  int
}

func New() *Directory {
	return &Directory{
		entries:     map[string]*entry{},
		passwords:   map[string]string{},
		searchFault: map[string]error{},
	}
}

// Put stores an entry without any parent check, replacing an existing one.
func (d *Directory) Put(dn string, attrs map[string][]string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.putLocked(dn, attrs)
}

// SetPassword registers credentials accepted by Bind.
func (d *Directory) SetPassword(dn string, password string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.passwords[normalize(dn)] = password
}

// FailSearch makes every search based at dn return err. A nil err clears the fault.
func (d *Directory) FailSearch(dn string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err == nil {
		delete(d.searchFault, normalize(dn))
		return
	}
	d.searchFault[normalize(dn)] = err
}

// FailDial makes Dial return err. A nil err clears the fault.
func (d *Directory) FailDial(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dialErr = err
}

// SetSearchDelay makes each search sleep before answering.
func (d *Directory) SetSearchDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.searchDelay = delay
}

func (d *Directory) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

func (d *Directory) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Active returns the number of connections that are open right now.
func (d *Directory) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// PeakActive returns the highest number of simultaneously open connections.
func (d *Directory) PeakActive() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.peak
}

// PagedSearches counts searches issued with the paged results control.
func (d *Directory) PagedSearches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paged
}

// ResetCounters zeroes the connection counters, keeping the data.
func (d *Directory) ResetCounters() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened, d.closed, d.peak, d.paged = 0, 0, d.active, 0
}

// Exists reports whether dn is stored.
func (d *Directory) Exists(dn string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[normalize(dn)]
	return ok
}

// Attributes returns a copy of the stored attributes of dn, or nil.
func (d *Directory) Attributes(dn string) map[string][]string {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[normalize(dn)]
	if !ok {
		return nil
	}
	return copyAttrs(e.attrs)
}

func (d *Directory) Dial(ctx context.Context) (directory.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dialErr != nil {
		return nil, d.dialErr
	}

	d.opened++
	d.active++
	if d.active > d.peak {
		d.peak = d.active
	}

	return &Conn{dir: d}, nil
}

func (d *Directory) putLocked(dn string, attrs map[string][]string) {
	key := normalize(dn)
	if _, exists := d.entries[key]; !exists {
		d.order = append(d.order, key)
	}
	d.entries[key] = &entry{dn: dn, parent: parentKey(dn), attrs: copyAttrs(attrs)}
}

func (d *Directory) release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed++
	d.active--
}

// Conn is a single fake connection.
type Conn struct {
	dir *Directory

	mu     sync.Mutex
	closed bool
}

var errClosed = ldap.NewError(ldap.ErrorNetwork, errors.New("ldap: connection closed"))

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) Bind(username, password string) error {
	if c.isClosed() {
		return errClosed
	}
	if password == "" {
		return ldap.NewError(ldap.ErrorEmptyPassword, errors.New("ldap: empty password not allowed by the client"))
	}

	c.dir.mu.Lock()
	defer c.dir.mu.Unlock()

	expected, ok := c.dir.passwords[normalize(username)]
	if !ok || expected != password {
		return ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials"))
	}
	return nil
}

func (c *Conn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	if c.isClosed() {
		return nil, errClosed
	}

	filter, err := ldap.CompileFilter(req.Filter)
	if err != nil {
		return nil, err
	}

	c.dir.mu.Lock()
	delay := c.dir.searchDelay
	c.dir.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	c.dir.mu.Lock()
	defer c.dir.mu.Unlock()

	base := normalize(req.BaseDN)
	if fault, ok := c.dir.searchFault[base]; ok {
		return nil, fault
	}

	if _, ok := c.dir.entries[base]; !ok {
		return nil, &ldap.Error{ResultCode: ldap.LDAPResultNoSuchObject, Err: fmt.Errorf("no such object: %s", req.BaseDN)}
	}

	result := &ldap.SearchResult{}
	for _, key := range c.dir.order {
		e := c.dir.entries[key]
		if !inScope(key, e, base, req.Scope) {
			continue
		}
		if !matches(filter, e.attrs) {
			continue
		}
		if req.SizeLimit > 0 && len(result.Entries) == req.SizeLimit {
			return result, ldap.NewError(ldap.LDAPResultSizeLimitExceeded, errors.New("size limit exceeded"))
		}
		result.Entries = append(result.Entries, ldap.NewEntry(e.dn, project(e.attrs, req.Attributes)))
	}

	return result, nil
}

func (c *Conn) SearchWithPaging(req *ldap.SearchRequest, _ uint32) (*ldap.SearchResult, error) {
	c.dir.mu.Lock()
	c.dir.paged++
	c.dir.mu.Unlock()

	return c.Search(req)
}

func (c *Conn) Add(req *ldap.AddRequest) error {
	if c.isClosed() {
		return errClosed
	}

	attrs := map[string][]string{}
	for _, attr := range req.Attributes {
		attrs[attr.Type] = append([]string(nil), attr.Vals...)
	}

	if err := checkEntry(attrs); err != nil {
		return err
	}

	c.dir.mu.Lock()
	defer c.dir.mu.Unlock()

	key := normalize(req.DN)
	if _, exists := c.dir.entries[key]; exists {
		return ldap.NewError(ldap.LDAPResultEntryAlreadyExists, fmt.Errorf("entry already exists: %s", req.DN))
	}
	if _, ok := c.dir.entries[parentKey(req.DN)]; !ok {
		return ldap.NewError(ldap.LDAPResultNoSuchObject, fmt.Errorf("parent of %s does not exist", req.DN))
	}

	c.dir.putLocked(req.DN, attrs)
	return nil
}

func (c *Conn) Modify(req *ldap.ModifyRequest) error {
	if c.isClosed() {
		return errClosed
	}

	c.dir.mu.Lock()
	defer c.dir.mu.Unlock()

	e, ok := c.dir.entries[normalize(req.DN)]
	if !ok {
		return ldap.NewError(ldap.LDAPResultNoSuchObject, fmt.Errorf("no such object: %s", req.DN))
	}

	attrs := copyAttrs(e.attrs)
	for _, change := range req.Changes {
		name := lookupName(attrs, change.Modification.Type)
		values := change.Modification.Vals
		switch change.Operation {
		case ldap.AddAttribute:
			attrs[name] = append(attrs[name], values...)
		case ldap.DeleteAttribute:
			if len(values) == 0 {
				delete(attrs, name)
				continue
			}
			attrs[name] = removeValues(attrs[name], values)
			if len(attrs[name]) == 0 {
				delete(attrs, name)
			}
		case ldap.ReplaceAttribute:
			if len(values) == 0 {
				delete(attrs, name)
				continue
			}
			attrs[name] = append([]string(nil), values...)
		}
	}

	if err := checkEntry(attrs); err != nil {
		return err
	}

	e.attrs = attrs
	return nil
}

func (c *Conn) Del(req *ldap.DelRequest) error {
	if c.isClosed() {
		return errClosed
	}

	c.dir.mu.Lock()
	defer c.dir.mu.Unlock()

	key := normalize(req.DN)
	if _, ok := c.dir.entries[key]; !ok {
		return ldap.NewError(ldap.LDAPResultNoSuchObject, fmt.Errorf("no such object: %s", req.DN))
	}
	for _, other := range c.dir.entries {
		if other.parent == key {
			return ldap.NewError(ldap.LDAPResultNotAllowedOnNonLeaf, fmt.Errorf("%s has children", req.DN))
		}
	}

	delete(c.dir.entries, key)
	for i, k := range c.dir.order {
		if k == key {
			c.dir.order = append(c.dir.order[:i], c.dir.order[i+1:]...)
			break
		}
	}
	return nil
}

func (c *Conn) Unbind() error {
	if c.isClosed() {
		return ldap.ErrConnUnbound
	}
	return c.Close()
}

func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.dir.release()
	return nil
}

// checkEntry applies the few schema rules the services rely on.
func checkEntry(attrs map[string][]string) error {
	classes := attrs[lookupName(attrs, "objectClass")]
	if len(classes) == 0 {
		return ldap.NewError(ldap.LDAPResultObjectClassViolation, errors.New("objectClass is required"))
	}

	for _, class := range classes {
		if strings.EqualFold(class, "groupOfNames") && len(attrs[lookupName(attrs, "member")]) == 0 {
			return ldap.NewError(ldap.LDAPResultObjectClassViolation, errors.New("groupOfNames requires member"))
		}
	}

	for _, member := range attrs[lookupName(attrs, "member")] {
		if _, err := ldap.ParseDN(member); err != nil || strings.TrimSpace(member) == "" {
			return ldap.NewError(ldap.LDAPResultInvalidAttributeSyntax, fmt.Errorf("member: value %q invalid per syntax", member))
		}
	}

	return nil
}

func inScope(key string, e *entry, base string, scope int) bool {
	switch scope {
	case ldap.ScopeBaseObject:
		return key == base
	case ldap.ScopeSingleLevel:
		return e.parent == base
	default:
		return key == base || strings.HasSuffix(key, ","+base)
	}
}

func matches(filter *ber.Packet, attrs map[string][]string) bool {
	switch filter.Tag {
	case ldap.FilterAnd:
		for _, child := range filter.Children {
			if !matches(child, attrs) {
				return false
			}
		}
		return true
	case ldap.FilterOr:
		for _, child := range filter.Children {
			if matches(child, attrs) {
				return true
			}
		}
		return false
	case ldap.FilterNot:
		return !matches(filter.Children[0], attrs)
	case ldap.FilterPresent:
		name := ber.DecodeString(filter.Data.Bytes())
		return len(attrs[lookupName(attrs, name)]) > 0
	case ldap.FilterEqualityMatch, ldap.FilterApproxMatch:
		name := ber.DecodeString(filter.Children[0].Data.Bytes())
		want := ber.DecodeString(filter.Children[1].Data.Bytes())
		for _, value := range attrs[lookupName(attrs, name)] {
			if strings.EqualFold(value, want) {
				return true
			}
		}
		return false
	case ldap.FilterGreaterOrEqual, ldap.FilterLessOrEqual:
		name := ber.DecodeString(filter.Children[0].Data.Bytes())
		bound := strings.ToLower(ber.DecodeString(filter.Children[1].Data.Bytes()))
		for _, value := range attrs[lookupName(attrs, name)] {
			v := strings.ToLower(value)
			if filter.Tag == ldap.FilterGreaterOrEqual && v >= bound {
				return true
			}
			if filter.Tag == ldap.FilterLessOrEqual && v <= bound {
				return true
			}
		}
		return false
	case ldap.FilterSubstrings:
		name := ber.DecodeString(filter.Children[0].Data.Bytes())
		for _, value := range attrs[lookupName(attrs, name)] {
			if matchSubstrings(strings.ToLower(value), filter.Children[1].Children) {
				return true
			}
		}
		return false
	}

	return false
}

func matchSubstrings(value string, parts []*ber.Packet) bool {
	rest := value
	for _, part := range parts {
		piece := strings.ToLower(ber.DecodeString(part.Data.Bytes()))
		switch part.Tag {
		case ldap.FilterSubstringsInitial:
			if !strings.HasPrefix(rest, piece) {
				return false
			}
			rest = rest[len(piece):]
		case ldap.FilterSubstringsAny:
			idx := strings.Index(rest, piece)
			if idx < 0 {
				return false
			}
			rest = rest[idx+len(piece):]
		case ldap.FilterSubstringsFinal:
			if !strings.HasSuffix(rest, piece) {
				return false
			}
			rest = ""
		}
	}
	return true
}

func project(attrs map[string][]string, requested []string) map[string][]string {
	if len(requested) == 0 {
		return copyAttrs(attrs)
	}

	out := map[string][]string{}
	for _, name := range requested {
		switch name {
		case "1.1":
			continue
		case "*":
			return copyAttrs(attrs)
		}
		if actual := lookupName(attrs, name); len(attrs[actual]) > 0 {
			out[actual] = append([]string(nil), attrs[actual]...)
		}
	}
	return out
}

func lookupName(attrs map[string][]string, name string) string {
	if _, ok := attrs[name]; ok {
		return name
	}
	for existing := range attrs {
		if strings.EqualFold(existing, name) {
			return existing
		}
	}
	return name
}

func removeValues(values []string, remove []string) []string {
	out := values[:0:0]
	for _, v := range values {
		drop := false
		for _, r := range remove {
			if strings.EqualFold(v, r) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, v)
		}
	}
	return out
}

func copyAttrs(attrs map[string][]string) map[string][]string {
	out := make(map[string][]string, len(attrs))
	for name, values := range attrs {
		out[name] = append([]string(nil), values...)
	}
	return out
}

func normalize(dn string) string {
	rdns := splitDN(dn)
	return strings.Join(rdns, ",")
}

func parentKey(dn string) string {
	rdns := splitDN(dn)
	if len(rdns) <= 1 {
		return ""
	}
	return strings.Join(rdns[1:], ",")
}

func splitDN(dn string) []string {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return []string{strings.ToLower(strings.TrimSpace(dn))}
	}

	rdns := make([]string, 0, len(parsed.RDNs))
	for _, rdn := range parsed.RDNs {
		parts := make([]string, 0, len(rdn.Attributes))
		for _, atv := range rdn.Attributes {
			parts = append(parts, strings.ToLower(atv.Type)+"="+ldap.EscapeDN(strings.ToLower(atv.Value)))
		}
		rdns = append(rdns, strings.Join(parts, "+"))
	}
	return rdns
}
