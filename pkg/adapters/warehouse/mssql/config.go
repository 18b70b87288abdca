package mssql

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
)

const (
	kind                     = "mssql"
	defaultPort              = 1433
	defaultConnectionTimeout = 30
)

// Auth methods. Service principal connections go through the azuresql driver.
const (
	AuthSQL              = "sql"
	AuthServicePrincipal = "service_principal"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string

	AuthMethod string

	Username string
	Password string

	TenantID     string
	ClientID     string
	ClientSecret string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int

	Schema   string
	PageSize int
}

// FromConnectionConfig detects the auth method from the credential payload:
// client_id selects service principal, anything else is SQL authentication.
func FromConnectionConfig(cfg warehouse.ConnectionConfig) (*Config, error) {
	if err := cfg.RequireField("host", cfg.Host); err != nil {
		return nil, err
	}
	if err := cfg.RequireField("database_name", cfg.DatabaseName); err != nil {
		return nil, err
	}
	port, err := cfg.PortOr(defaultPort)
	if err != nil {
		return nil, err
	}

	c := &Config{
		Host:                   cfg.Host,
		Port:                   port,
		Database:               cfg.DatabaseName,
		Encrypt:                cfg.Credential("encrypt") != "false",
		TrustServerCertificate: cfg.Credential("trust_server_certificate") == "true",
		ConnectionTimeout:      defaultConnectionTimeout,
		Schema:                 cfg.Dataset,
		PageSize:               cfg.PageSize,
	}
	if b, ok := cfg.Credentials["encrypt"].(bool); ok {
		c.Encrypt = b
	}
	if b, ok := cfg.Credentials["trust_server_certificate"].(bool); ok {
		c.TrustServerCertificate = b
	}

	if cfg.Credential("client_id") != "" {
		c.AuthMethod = AuthServicePrincipal
		c.ClientID = cfg.Credential("client_id")
		if c.TenantID, err = cfg.RequireCredential("tenant_id"); err != nil {
			return nil, err
		}
		if c.ClientSecret, err = cfg.RequireCredential("client_secret"); err != nil {
			return nil, err
		}
		return c, nil
	}

	c.AuthMethod = AuthSQL
	if err := cfg.RequireField("username", cfg.Username); err != nil {
		return nil, err
	}
	c.Username = cfg.Username
	if c.Password, err = cfg.RequireCredential("password"); err != nil {
		return nil, err
	}
	return c, nil
}

// DriverAndDSN returns the database/sql driver name and connection URL for the auth method.
func (c *Config) DriverAndDSN() (string, string, error) {
	query := url.Values{}
	query.Add("database", c.Database)
	if c.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if c.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", c.ConnectionTimeout))
	}

	u := url.URL{Scheme: "sqlserver", Host: fmt.Sprintf("%s:%d", c.Host, c.Port)}

	switch c.AuthMethod {
	case AuthSQL:
		u.User = url.UserPassword(c.Username, c.Password)
		u.RawQuery = query.Encode()
		return "sqlserver", u.String(), nil
	case AuthServicePrincipal:
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", c.ClientID+"@"+c.TenantID)
		query.Add("password", c.ClientSecret)
		u.RawQuery = query.Encode()
		return "azuresql", u.String(), nil
	default:
		return "", "", apperrors.Validation("invalid mssql auth method %q", c.AuthMethod)
	}
}
