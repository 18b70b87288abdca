package postgres

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
)

const (
	kind           = "postgres"
	defaultPort    = 5432
	defaultSSLMode = "prefer"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "prefer", "require", "verify-ca", "verify-full"
	Schema   string // optional schema filter
	PageSize int
}

// FromConnectionConfig validates the generic config and extracts PostgreSQL options.
// The password and optional ssl_mode come from the credentials payload.
func FromConnectionConfig(cfg warehouse.ConnectionConfig) (*Config, error) {
	if err := cfg.RequireField("host", cfg.Host); err != nil {
		return nil, err
	}
	if err := cfg.RequireField("username", cfg.Username); err != nil {
		return nil, err
	}
	if err := cfg.RequireField("database_name", cfg.DatabaseName); err != nil {
		return nil, err
	}
	password, err := cfg.RequireCredential("password")
	if err != nil {
		return nil, err
	}
	port, err := cfg.PortOr(defaultPort)
	if err != nil {
		return nil, err
	}

	sslMode := cfg.Credential("ssl_mode")
	if sslMode == "" {
		sslMode = defaultSSLMode
	}

	return &Config{
		Host:     cfg.Host,
		Port:     port,
		User:     cfg.Username,
		Password: password,
		Database: cfg.DatabaseName,
		SSLMode:  sslMode,
		Schema:   cfg.Dataset,
		PageSize: cfg.PageSize,
	}, nil
}

// ConnString builds a postgres:// URL with every part escaped.
func (c *Config) ConnString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}
