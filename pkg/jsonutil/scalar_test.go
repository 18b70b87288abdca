package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberOrString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "integer", input: `{"v": 5432}`, want: "5432"},
		{name: "string", input: `{"v": "5432"}`, want: "5432"},
		{name: "float keeps its text", input: `{"v": 3.5}`, want: "3.5"},
		{name: "empty string", input: `{"v": ""}`, want: ""},
		{name: "null", input: `{"v": null}`, want: "unchanged"},
		{name: "missing", input: `{}`, want: "unchanged"},
		{name: "boolean", input: `{"v": true}`, wantErr: true},
		{name: "object", input: `{"v": {"port": 1}}`, wantErr: true},
		{name: "array", input: `{"v": [1]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := struct {
				V NumberOrString `json:"v"`
			}{V: "unchanged"}
			err := json.Unmarshal([]byte(tt.input), &out)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.V.String())
		})
	}
}

func TestNumberOrString_Pointer(t *testing.T) {
	var out struct {
		V *NumberOrString `json:"v"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"v": 3306}`), &out))
	require.NotNil(t, out.V)
	assert.Equal(t, "3306", out.V.String())

	out.V = nil
	require.NoError(t, json.Unmarshal([]byte(`{"v": null}`), &out))
	assert.Nil(t, out.V)
}
