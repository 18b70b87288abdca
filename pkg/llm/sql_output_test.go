package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
)

func TestParseSQLOutput_Valid(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		sql      string
		metadata map[string]any
	}{
		{
			name: "plain object",
			raw:  `{"sql_query": "SELECT region, SUM(amount) FROM sales.orders GROUP BY region", "explanation": "Totals by region."}`,
			sql:  "SELECT region, SUM(amount) FROM sales.orders GROUP BY region",
		},
		{
			name:     "with metadata",
			raw:      `{"sql_query":"SELECT 1","explanation":"","metadata":{"tables":["sales.orders"]}}`,
			sql:      "SELECT 1",
			metadata: map[string]any{"tables": []any{"sales.orders"}},
		},
		{
			name: "null metadata",
			raw:  `{"sql_query":"SELECT 1","explanation":"x","metadata":null}`,
			sql:  "SELECT 1",
		},
		{
			name: "think block and code fence",
			raw:  "<think>\nThe user wants a count.\n</think>\n```json\n{\"sql_query\":\"SELECT COUNT(*) FROM t\",\"explanation\":\"count\"}\n```",
			sql:  "SELECT COUNT(*) FROM t",
		},
		{
			name: "bare fence with surrounding whitespace",
			raw:  "\n```\n{\"sql_query\":\"  SELECT 2  \",\"explanation\":\"two\"}\n```\n",
			sql:  "SELECT 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSQLOutput(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, got.SQLQuery)
			assert.Equal(t, tt.metadata, got.Metadata)
		})
	}
}

func TestParseSQLOutput_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", "   "},
		{"prose", "Here is your query: SELECT 1"},
		{"array", `[{"sql_query":"SELECT 1","explanation":"x"}]`},
		{"truncated", `{"sql_query":"SELECT 1","explanation":`},
		{"missing sql_query", `{"explanation":"x"}`},
		{"blank sql_query", `{"sql_query":"   ","explanation":"x"}`},
		{"sql_query not a string", `{"sql_query":42,"explanation":"x"}`},
		{"missing explanation", `{"sql_query":"SELECT 1"}`},
		{"explanation not a string", `{"sql_query":"SELECT 1","explanation":["a"]}`},
		{"metadata is a string", `{"sql_query":"SELECT 1","explanation":"x","metadata":"none"}`},
		{"metadata is an array", `{"sql_query":"SELECT 1","explanation":"x","metadata":[1]}`},
		{"unknown key", `{"sql_query":"SELECT 1","explanation":"x","confidence":0.9}`},
		{"two objects", `{"sql_query":"SELECT 1","explanation":"x"} {"sql_query":"SELECT 2","explanation":"y"}`},
		{"trailing text", `{"sql_query":"SELECT 1","explanation":"x"} done`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSQLOutput(tt.raw)
			assert.Nil(t, got)

			var parseErr *apperrors.ParseError
			require.True(t, errors.As(err, &parseErr), "expected ParseError, got %v", err)
			assert.Equal(t, apperrors.ParseMalformed, parseErr.Kind)
			assert.NotEmpty(t, parseErr.Detail)
			assert.ErrorIs(t, err, apperrors.ErrParse)
		})
	}
}
