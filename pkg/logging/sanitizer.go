package logging

import (
	"regexp"

	"go.uber.org/zap"
)

const (
	// MaxQuestionLogLength bounds how much of a user question reaches the logs.
	MaxQuestionLogLength = 100
	// RedactedText is the replacement text for sensitive data.
	RedactedText = "[REDACTED]"
)

type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

// Order matters: PEM blocks and JSON fields are removed before the looser
// key=value patterns get a chance to match parts of them.
var redactions = []redaction{
	// PEM private keys, raw or JSON-escaped inside service-account payloads.
	{regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----(?s:.*?)-----END [A-Z ]*PRIVATE KEY-----`), RedactedText},
	// "private_key": "...", "client_secret": "...", "password": "..." inside JSON.
	{regexp.MustCompile(`(?i)"(private_key|private_key_id|client_secret|password|api_key)"\s*:\s*"(?:[^"\\]|\\.)*"`), `"${1}":"` + RedactedText + `"`},
	// password=..., pwd=..., pass=... in DSNs and driver errors.
	{regexp.MustCompile(`(?i)\b(password|pwd|pass)=[^;&\s]+`), "${1}=" + RedactedText},
	// Bearer tokens.
	{regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`), "Bearer " + RedactedText},
	// api_key=..., key=... query parameters.
	{regexp.MustCompile(`(?i)\b(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`), "${1}=" + RedactedText},
	// Provider keys echoed back in error bodies (sk-..., sk-ant-...).
	{regexp.MustCompile(`\bsk-[A-Za-z0-9-_]{16,}`), RedactedText},
	// user:pass@host in URLs.
	{regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`), "://" + RedactedText + "@" + RedactedText},
}

// Sanitize redacts credentials, tokens and keys from free text.
func Sanitize(s string) string {
	for _, r := range redactions {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}

// SanitizeError returns the redacted error message, or "" for nil.
// Use this before logging any error from a warehouse or model provider.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return Sanitize(err.Error())
}

// ErrorField is zap.Error with the message redacted.
func ErrorField(err error) zap.Field {
	return zap.String("error", SanitizeError(err))
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
