package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Conn is the subset of *ldap.Conn used by this package.
type Conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	SearchWithPaging(req *ldap.SearchRequest, pagingSize uint32) (*ldap.SearchResult, error)
	Add(req *ldap.AddRequest) error
	Modify(req *ldap.ModifyRequest) error
	Del(req *ldap.DelRequest) error
	Unbind() error
	Close() error
}

// Dialer opens a new, unauthenticated directory connection.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// URLDialer dials the directory server named by Config.URL.
type URLDialer struct {
	cfg Config
}

func NewURLDialer(cfg Config) *URLDialer {
	return &URLDialer{cfg: cfg}
}

func (d *URLDialer) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tlsConfig, err := d.tlsConfig()
	if err != nil {
		return nil, err
	}

	opts := []ldap.DialOpt{ldap.DialWithDialer(&net.Dialer{Timeout: d.cfg.ConnectTimeout})}
	secure := strings.HasPrefix(strings.ToLower(d.cfg.URL), "ldaps://")
	if secure {
		opts = append(opts, ldap.DialWithTLSConfig(tlsConfig))
	}

	conn, err := ldap.DialURL(d.cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.cfg.URL, err)
	}

	if d.cfg.StartTLS && !secure {
		if err := conn.StartTLS(tlsConfig); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("start TLS: %w", err)
		}
	}

	conn.SetTimeout(d.cfg.OperationTimeout)
	return conn, nil
}

func (d *URLDialer) tlsConfig() (*tls.Config, error) {
	parsed, err := url.Parse(d.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse directory URL: %w", err)
	}

	return &tls.Config{
		ServerName:         parsed.Hostname(),
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: d.cfg.InsecureSkipVerify, //nolint:gosec // opt-in for lab directories
	}, nil
}
