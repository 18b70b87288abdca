package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
)

// thinkTagPattern matches a <think>...</think> block at the start of a response.
var thinkTagPattern = regexp.MustCompile(`(?s)^\s*<think>.*?</think>\s*`)

// codeFencePattern matches a response wrapped in one markdown code fence.
var codeFencePattern = regexp.MustCompile("(?s)^```[A-Za-z]*\\s*\n(.*?)\n?\\s*```$")

// sqlOutput is the only accepted response shape. Unknown keys are rejected,
// matching the additionalProperties false schema sent with the prompt.
type sqlOutput struct {
	SQLQuery    *string         `json:"sql_query"`
	Explanation *string         `json:"explanation"`
	Metadata    json.RawMessage `json:"metadata"`
}

// ParseSQLOutput validates raw model text and returns the generated query.
// Any deviation from the response schema is an *apperrors.ParseError of kind Malformed.
func ParseSQLOutput(raw string) (*models.GeneratedQuery, error) {
	body := stripWrapping(raw)
	if body == "" {
		return nil, apperrors.Malformed("empty response")
	}
	if !strings.HasPrefix(body, "{") {
		return nil, apperrors.Malformed("response is not a JSON object")
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()

	var out sqlOutput
	if err := dec.Decode(&out); err != nil {
		return nil, apperrors.Malformed("invalid JSON object: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, apperrors.Malformed("unexpected content after JSON object")
	}

	if out.SQLQuery == nil {
		return nil, apperrors.Malformed("sql_query is required")
	}
	sqlQuery := strings.TrimSpace(*out.SQLQuery)
	if sqlQuery == "" {
		return nil, apperrors.Malformed("sql_query is empty")
	}
	if out.Explanation == nil {
		return nil, apperrors.Malformed("explanation is required")
	}

	metadata, err := parseMetadata(out.Metadata)
	if err != nil {
		return nil, err
	}

	return &models.GeneratedQuery{
		SQLQuery:    sqlQuery,
		Explanation: *out.Explanation,
		Metadata:    metadata,
	}, nil
}

func stripWrapping(raw string) string {
	s := thinkTagPattern.ReplaceAllString(raw, "")
	s = strings.TrimSpace(s)
	if m := codeFencePattern.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	return s
}

// parseMetadata accepts an absent value, null or an object.
func parseMetadata(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '{' {
		return nil, apperrors.Malformed("metadata must be an object or null")
	}
	var metadata map[string]any
	if err := json.Unmarshal(trimmed, &metadata); err != nil {
		return nil, apperrors.Malformed("invalid metadata: %v", err)
	}
	return metadata, nil
}
