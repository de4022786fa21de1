package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/utafrali/contentsearch/internal/domain"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

// mergeValidation folds several validation errors into one so a caller
// sees every offending field at once. Non-validation errors are returned
// unchanged.
func mergeValidation(errs ...error) error {
	fields := map[string]string{}
	for _, err := range errs {
		if err == nil {
			continue
		}
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) || !errors.Is(err, apperrors.ErrValidation) {
			return err
		}
		for k, v := range appErr.Fields {
			fields[k] = v
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return apperrors.Validation(fields)
}

// normalizeLanguage lower-cases code, falling back to def.
func normalizeLanguage(code, def string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return strings.ToLower(def)
	}
	return code
}

func validateDocumentType(field string, t domain.DocumentType) error {
	if !t.IsValid() {
		return apperrors.FieldError(field, "must be one of article, project, person, partner, social_post, notification")
	}
	return nil
}

// boundedInt applies a default to zero and rejects values outside [lo, hi].
func boundedInt(field string, v, def, lo, hi int) (int, error) {
	if v == 0 {
		return def, nil
	}
	if v < lo || v > hi {
		return 0, apperrors.FieldError(field, fmt.Sprintf("must be between %d and %d", lo, hi))
	}
	return v, nil
}
