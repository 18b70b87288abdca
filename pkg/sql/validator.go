// Package sql holds text-level checks on SQL and on user input destined for SQL generation.
package sql

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyStatement indicates the text contains no SQL once whitespace and a trailing semicolon are removed.
	ErrEmptyStatement = errors.New("SQL statement is empty")

	// ErrMultipleStatements indicates the text contains more than one SQL statement.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
)

// NormalizeStatement trims the text, strips one trailing semicolon and rejects
// anything that still has a statement separator outside quotes or comments.
//
// Example queries stored with a use case go through here so the prompt shows
// every example in the same shape.
func NormalizeStatement(text string) (string, error) {
	normalized := stripTrailingSemicolon(strings.TrimSpace(text))
	if normalized == "" {
		return "", ErrEmptyStatement
	}
	if hasSeparator(normalized) {
		return "", ErrMultipleStatements
	}
	return normalized, nil
}

type scanState int

const (
	stateNormal scanState = iota
	stateSingleQuote
	stateDoubleQuote
	stateBacktick
	stateLineComment
	stateBlockComment
)

// hasSeparator reports whether a semicolon appears outside string literals,
// quoted identifiers and comments.
func hasSeparator(text string) bool {
	state := stateNormal
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateNormal:
			switch {
			case c == ';':
				return true
			case c == '\'':
				state = stateSingleQuote
			case c == '"':
				state = stateDoubleQuote
			case c == '`':
				state = stateBacktick
			case c == '-' && next == '-':
				state = stateLineComment
				i++
			case c == '/' && next == '*':
				state = stateBlockComment
				i++
			}
		case stateSingleQuote:
			if c == '\\' {
				i++
			} else if c == '\'' {
				// '' re-enters the literal on the next iteration.
				state = stateNormal
			}
		case stateDoubleQuote:
			if c == '"' {
				state = stateNormal
			}
		case stateBacktick:
			if c == '`' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return false
}

func stripTrailingSemicolon(text string) string {
	text = strings.TrimRight(text, " \t\n\r")
	if strings.HasSuffix(text, ";") {
		text = strings.TrimRight(strings.TrimSuffix(text, ";"), " \t\n\r")
	}
	return text
}
