package warehouse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/config"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
)

// DefaultPageSize is used when a connection config does not set one.
const DefaultPageSize = 100

// ConnectionConfig is everything a factory needs to open a catalog client.
// Credentials are already decrypted.
type ConnectionConfig struct {
	Kind         string
	Host         string
	Port         string
	DatabaseName string
	Username     string
	ProjectID    string
	Dataset      string // optional dataset filter
	Credentials  map[string]any
	PageSize     int
}

// FromConnection builds a ConnectionConfig from a stored connection. Loopback
// hosts are rewritten when running inside a container.
func FromConnection(conn *models.Connection, pageSize int) ConnectionConfig {
	host := conn.Host
	if host != "" {
		host = config.ResolveHostForDocker(host)
	}
	return ConnectionConfig{
		Kind:         conn.Kind,
		Host:         host,
		Port:         conn.Port,
		DatabaseName: conn.DatabaseName,
		Username:     conn.Username,
		ProjectID:    conn.ProjectID,
		Dataset:      conn.Dataset,
		Credentials:  conn.Credentials,
		PageSize:     pageSize,
	}
}

func (c ConnectionConfig) withDefaults() ConnectionConfig {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	return c
}

// Credential returns a string credential field, or "" when absent.
func (c ConnectionConfig) Credential(key string) string {
	if c.Credentials == nil {
		return ""
	}
	switch v := c.Credentials[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// RequireCredential returns the credential field or a CredentialError naming it.
func (c ConnectionConfig) RequireCredential(key string) (string, error) {
	v := c.Credential(key)
	if v == "" {
		return "", apperrors.NewCredentialError(c.Kind, key+" is required")
	}
	return v, nil
}

// RequireField returns a CredentialError when value is empty.
func (c ConnectionConfig) RequireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.NewCredentialError(c.Kind, name+" is required")
	}
	return nil
}

// PortOr parses Port, falling back to def when unset.
func (c ConnectionConfig) PortOr(def int) (int, error) {
	if c.Port == "" {
		return def, nil
	}
	p, err := strconv.Atoi(c.Port)
	if err != nil || p <= 0 || p > 65535 {
		return 0, apperrors.Validation("invalid port %q", c.Port)
	}
	return p, nil
}

// PageOf trims names fetched with a limit of pageSize+1 into a Page. When the
// extra row is present the last returned name becomes the keyset token.
func PageOf(names []string, pageSize int) Page {
	if len(names) <= pageSize {
		return Page{Names: names}
	}
	names = names[:pageSize]
	return Page{Names: names, NextPageToken: names[len(names)-1]}
}
