package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort         string
	AppEnv             string
	LogLevel           string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	RequestTimeout     time.Duration
	CORSOrigins        []string
	RateLimitRPM       int
	AuthRateLimitRPM   int

	JWTSecret string
	JWTTTL    time.Duration

	LDAPURL                string
	LDAPBaseDN             string
	LDAPAdminDN            string
	LDAPAdminPassword      string
	LDAPAdminGroupDN       string
	LDAPConnectTimeout     time.Duration
	LDAPOperationTimeout   time.Duration
	LDAPPagingSize         int
	LDAPStartTLS           bool
	LDAPInsecureSkipVerify bool
	LoginFilters           []string

	DatabaseURL string
	DBMaxConns  int
	DBMinConns  int

	DefaultPageSize  int
	MaxPageSize      int
	ProbeBatchSize   int
	UserPasswordHash string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:         getEnv("SERVER_PORT", "3000"),
		AppEnv:             getEnv("APP_ENV", "production"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		ServerIdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 60*time.Second),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 300),
		AuthRateLimitRPM:   getInt("AUTH_RATE_LIMIT_RPM", 10),

		JWTSecret: strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTTTL:    getDuration("JWT_TTL", 8*time.Hour),

		LDAPURL:                getEnv("LDAP_URL", "ldap://localhost:389"),
		LDAPBaseDN:             getEnv("LDAP_BASE_DN", "dc=example,dc=org"),
		LDAPAdminDN:            getEnv("LDAP_ADMIN_DN", ""),
		LDAPAdminPassword:      os.Getenv("LDAP_ADMIN_PASSWORD"),
		LDAPAdminGroupDN:       getEnv("LDAP_ADMIN_GROUP_DN", ""),
		LDAPConnectTimeout:     getDuration("LDAP_CONNECT_TIMEOUT", 15*time.Second),
		LDAPOperationTimeout:   getDuration("LDAP_OPERATION_TIMEOUT", 10*time.Second),
		LDAPPagingSize:         getInt("LDAP_PAGING_SIZE", 500),
		LDAPStartTLS:           getBool("LDAP_START_TLS", false),
		LDAPInsecureSkipVerify: getBool("LDAP_INSECURE_SKIP_VERIFY", false),
		LoginFilters:           splitList(os.Getenv("LOGIN_FILTERS"), ";"),

		DatabaseURL: databaseURL(),
		DBMaxConns:  getInt("DB_MAX_CONNS", 20),
		DBMinConns:  getInt("DB_MIN_CONNS", 2),

		DefaultPageSize:  getInt("DEFAULT_PAGE_SIZE", 50),
		MaxPageSize:      getInt("MAX_PAGE_SIZE", 200),
		ProbeBatchSize:   getInt("PROBE_BATCH_SIZE", 10),
		UserPasswordHash: strings.ToLower(getEnv("USER_PASSWORD_HASH", "plain")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}

	if strings.TrimSpace(c.LDAPURL) == "" {
		return fmt.Errorf("LDAP_URL cannot be empty")
	}

	if strings.TrimSpace(c.LDAPBaseDN) == "" {
		return fmt.Errorf("LDAP_BASE_DN cannot be empty")
	}

	if c.LDAPPagingSize < 0 {
		return fmt.Errorf("LDAP_PAGING_SIZE cannot be negative")
	}

	for _, filter := range c.LoginFilters {
		if strings.Count(filter, "%s") != 1 {
			return fmt.Errorf("LOGIN_FILTERS entry %q must contain exactly one %%s", filter)
		}
	}

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL or DB_HOST is required")
	}

	if c.MaxPageSize <= 0 {
		return fmt.Errorf("MAX_PAGE_SIZE must be positive")
	}

	if c.DefaultPageSize <= 0 || c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("DEFAULT_PAGE_SIZE must be between 1 and MAX_PAGE_SIZE")
	}

	if c.ProbeBatchSize <= 0 {
		return fmt.Errorf("PROBE_BATCH_SIZE must be positive")
	}

	if c.UserPasswordHash != "plain" && c.UserPasswordHash != "bcrypt" {
		return fmt.Errorf("USER_PASSWORD_HASH must be plain or bcrypt")
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// databaseURL prefers DATABASE_URL and otherwise assembles one from the DB_* parts.
func databaseURL() string {
	if raw := strings.TrimSpace(os.Getenv("DATABASE_URL")); raw != "" {
		return raw
	}

	host := strings.TrimSpace(os.Getenv("DB_HOST"))
	if host == "" {
		return ""
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(getEnv("DB_USER", "postgres"), os.Getenv("DB_PASSWORD")),
		Host:   net.JoinHostPort(host, getEnv("DB_PORT", "5432")),
		Path:   "/" + getEnv("DB_NAME", "ldap_admin"),
	}
	q := url.Values{}
	q.Set("sslmode", getEnv("DB_SSLMODE", "disable"))
	u.RawQuery = q.Encode()

	return u.String()
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	return splitList(raw, ",")
}

func splitList(raw string, sep string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
