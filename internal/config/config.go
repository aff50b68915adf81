package config

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `env:",prefix=SERVER_"`

	// Database configuration
	Database DatabaseConfig `env:",prefix=DB_"`

	// Table names (schema is provisioned externally)
	UsersTable      string `env:"USERS_TABLE,required"`
	VoucherLogTable string `env:"VOUCHER_LOG_TABLE,required"`

	// Session configuration
	Session SessionConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string `env:"PORT,default=8080"`
	Host         string `env:"HOST,default=0.0.0.0"`
	ReadTimeout  int    `env:"READ_TIMEOUT,default=30"`  // seconds
	WriteTimeout int    `env:"WRITE_TIMEOUT,default=30"` // seconds
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,required"`
	Password string `env:"PASSWORD,required"`
	Name     string `env:"NAME,required"`
	SSLCA    string `env:"SSL_CA"`
	MaxConns int    `env:"MAX_CONNS,default=25"`
	MinConns int    `env:"MIN_CONNS,default=5"`
}

// SessionConfig holds the shared-login settings
type SessionConfig struct {
	SitePassword string        `env:"SITE_PASSWORD,required"`
	Secret       string        `env:"SESSION_SECRET"`
	TTL          time.Duration `env:"SESSION_TTL,default=12h"`
}

// identifierPattern limits the configurable table names to plain SQL identifiers
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if !identifierPattern.MatchString(cfg.UsersTable) {
		return nil, fmt.Errorf("USERS_TABLE %q is not a valid identifier", cfg.UsersTable)
	}
	if !identifierPattern.MatchString(cfg.VoucherLogTable) {
		return nil, fmt.Errorf("VOUCHER_LOG_TABLE %q is not a valid identifier", cfg.VoucherLogTable)
	}

	// A dedicated signing key is preferred, but single-secret deployments fall back
	// to the site password.
	if cfg.Session.Secret == "" {
		cfg.Session.Secret = cfg.Session.SitePassword
	}

	return &cfg, nil
}

// GetDatabaseURL returns the PostgreSQL connection URL
func (c *DatabaseConfig) GetDatabaseURL() string {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s",
		c.Host, c.Port, c.User, c.Password, c.Name)
	if c.SSLCA != "" {
		return dsn + fmt.Sprintf(" sslmode=verify-ca sslrootcert=%s", c.SSLCA)
	}
	return dsn + " sslmode=disable"
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}
