package command

import (
	"net/http"

	"github.com/goliatone/go-commerce/core"
	goerrors "github.com/goliatone/go-errors"
)

func commandDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorTextInternal)
}

func commandValidationError(field string, message string) error {
	return goerrors.NewValidation("command: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorTextBadInput).
		WithSeverity(goerrors.SeverityError)
}
