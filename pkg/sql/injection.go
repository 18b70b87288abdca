package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionFinding describes text that libinjection fingerprints as SQL injection.
type InjectionFinding struct {
	Field       string
	Fingerprint string
}

// ScreenText runs libinjection over a free-text value and returns a finding
// when it matches a known SQL injection fingerprint, nil otherwise.
//
// Questions are prose, so this only catches input that is shaped like an
// injection payload:
//
//	ScreenText("question", "total revenue by month") // nil
//	ScreenText("question", "' OR '1'='1")            // &InjectionFinding{...}
func ScreenText(field, text string) *InjectionFinding {
	if text == "" {
		return nil
	}
	isSQLi, fingerprint := libinjection.IsSQLi(text)
	if !isSQLi {
		return nil
	}
	return &InjectionFinding{Field: field, Fingerprint: string(fingerprint)}
}

// ScreenFields screens each named value and returns every finding.
func ScreenFields(fields map[string]string) []*InjectionFinding {
	var findings []*InjectionFinding
	for name, text := range fields {
		if f := ScreenText(name, text); f != nil {
			findings = append(findings, f)
		}
	}
	return findings
}
