// Package jsonutil holds JSON decoding helpers for loosely typed client input.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NumberOrString decodes a JSON number or string into its string form, so
// clients may send "port": 5432 or "port": "5432". null leaves the value
// unchanged; any other JSON type is an error.
type NumberOrString string

func (v *NumberOrString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = NumberOrString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected a number or string, got %s", data)
	}
	*v = NumberOrString(n.String())
	return nil
}

// String returns the decoded text.
func (v NumberOrString) String() string {
	return string(v)
}
