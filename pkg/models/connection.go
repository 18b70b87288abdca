package models

import (
	"time"

	"github.com/google/uuid"
)

// Connection identifies one external warehouse owned by a single user.
// Credentials are decrypted by the service layer and never serialized.
type Connection struct {
	ID           uuid.UUID      `json:"id"`
	OwnerID      uuid.UUID      `json:"owner_id"`
	Name         string         `json:"name"`
	Kind         string         `json:"connection_type"` // "bigquery", "postgres", "mssql", ...
	Host         string         `json:"host,omitempty"`
	Port         string         `json:"port,omitempty"`
	DatabaseName string         `json:"database_name,omitempty"`
	Username     string         `json:"username,omitempty"`
	ProjectID    string         `json:"project_id,omitempty"`
	Dataset      string         `json:"dataset,omitempty"`
	Credentials  map[string]any `json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// HasCredentials reports whether a credential payload is attached.
func (c *Connection) HasCredentials() bool {
	return len(c.Credentials) > 0
}

// ConnectionUpdate is a partial update. Nil fields are left unchanged.
// The owner is not part of it: ownership is fixed at creation.
type ConnectionUpdate struct {
	Name         *string
	Kind         *string
	Host         *string
	Port         *string
	DatabaseName *string
	Username     *string
	ProjectID    *string
	Dataset      *string
	Credentials  map[string]any // nil means unchanged, empty map clears
}

// Apply merges the update into c.
func (u *ConnectionUpdate) Apply(c *Connection) {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Kind != nil {
		c.Kind = *u.Kind
	}
	if u.Host != nil {
		c.Host = *u.Host
	}
	if u.Port != nil {
		c.Port = *u.Port
	}
	if u.DatabaseName != nil {
		c.DatabaseName = *u.DatabaseName
	}
	if u.Username != nil {
		c.Username = *u.Username
	}
	if u.ProjectID != nil {
		c.ProjectID = *u.ProjectID
	}
	if u.Dataset != nil {
		c.Dataset = *u.Dataset
	}
	if u.Credentials != nil {
		c.Credentials = u.Credentials
	}
}
