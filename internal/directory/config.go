package directory

import (
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
)

// Config holds the connection and service identity settings for the directory.
type Config struct {
	URL          string `default:"ldap://localhost:389"`
	BaseDN       string
	BindDN       string
	BindPassword string

	ConnectTimeout   time.Duration `default:"15s"`
	OperationTimeout time.Duration `default:"10s"`

	// PagingSize is the page size of the simple paged results control used to
	// enumerate large result sets.
	PagingSize uint32 `default:"500"`

	StartTLS           bool
	InsecureSkipVerify bool
}

// withDefaults returns a copy of c with zero fields replaced by their defaults.
func (c Config) withDefaults() (Config, error) {
	if err := defaults.Set(&c); err != nil {
		return Config{}, fmt.Errorf("apply directory defaults: %w", err)
	}

	return c, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("directory URL is required")
	}

	if strings.TrimSpace(c.BaseDN) == "" {
		return fmt.Errorf("directory base DN is required")
	}

	return nil
}
