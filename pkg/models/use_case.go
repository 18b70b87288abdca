package models

import (
	"time"

	"github.com/google/uuid"
)

// UseCase is a worked question/SQL pair pinned to one connection and used as
// few-shot grounding during generation.
type UseCase struct {
	ID                     uuid.UUID `json:"id"`
	ConnectionID           uuid.UUID `json:"database_connection_id"`
	Title                  string    `json:"title"`
	Description            string    `json:"description"`
	NaturalLanguageExample string    `json:"natural_language_example"`
	ExampleQuery           string    `json:"example_query"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// UseCaseUpdate is a partial update. Nil fields are left unchanged.
type UseCaseUpdate struct {
	Title                  *string
	Description            *string
	NaturalLanguageExample *string
	ExampleQuery           *string
}

// Apply merges the update into uc.
func (u *UseCaseUpdate) Apply(uc *UseCase) {
	if u.Title != nil {
		uc.Title = *u.Title
	}
	if u.Description != nil {
		uc.Description = *u.Description
	}
	if u.NaturalLanguageExample != nil {
		uc.NaturalLanguageExample = *u.NaturalLanguageExample
	}
	if u.ExampleQuery != nil {
		uc.ExampleQuery = *u.ExampleQuery
	}
}
