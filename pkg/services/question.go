package services

import (
	"strings"
	"unicode/utf8"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/config"
	sqltext "github.com/ekaya-inc/t2sql-engine/pkg/sql"
)

// InjectionRejectedError is a validation failure raised by the injection screen.
type InjectionRejectedError struct {
	Finding *sqltext.InjectionFinding
	err     error
}

func (e *InjectionRejectedError) Error() string { return e.err.Error() }

func (e *InjectionRejectedError) Unwrap() error { return e.err }

// ValidateQuestion checks a natural-language question and returns it trimmed.
// The question is otherwise passed to the prompt verbatim.
func ValidateQuestion(question string, cfg config.GenerationConfig) (string, error) {
	if !utf8.ValidString(question) {
		return "", apperrors.Validation("question must be valid UTF-8")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", apperrors.Validation("question is required")
	}
	if cfg.MaxQuestionLength > 0 && utf8.RuneCountInString(question) > cfg.MaxQuestionLength {
		return "", apperrors.Validation("question exceeds %d characters", cfg.MaxQuestionLength)
	}
	if cfg.InjectionCheck {
		if finding := sqltext.ScreenText("question", question); finding != nil {
			return "", &InjectionRejectedError{
				Finding: finding,
				err:     apperrors.Validation("question looks like a SQL injection payload (fingerprint %s)", finding.Fingerprint),
			}
		}
	}
	return question, nil
}
