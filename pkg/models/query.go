package models

import "github.com/google/uuid"

// GenerateQueryRequest is one natural-language question against a connection.
type GenerateQueryRequest struct {
	Question  string
	UseCaseID *uuid.UUID
}

// GeneratedQuery is the validated result of one generation call. It is not persisted.
type GeneratedQuery struct {
	SQLQuery    string         `json:"sql_query"`
	Explanation string         `json:"explanation"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
