package metrics

import (
	"context"
	"errors"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
)

// OutcomeFor maps a pipeline error to its outcome label. nil is success.
func OutcomeFor(err error) string {
	var genErr *apperrors.GenerationError
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, apperrors.ErrValidation):
		return OutcomeValidation
	case errors.Is(err, apperrors.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, apperrors.ErrConflict):
		return OutcomeConflict
	case errors.Is(err, apperrors.ErrCredential):
		return OutcomeCredential
	case errors.Is(err, apperrors.ErrCatalog):
		return OutcomeCatalog
	case errors.Is(err, apperrors.ErrPromptTooLarge):
		return OutcomePromptTooLarge
	case errors.Is(err, apperrors.ErrParse):
		return OutcomeModelOutput
	case errors.As(err, &genErr):
		if genErr.Kind == apperrors.GenerationTimeout {
			return OutcomeTimeout
		}
		return OutcomeTransport
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	}
	return OutcomeInternal
}
