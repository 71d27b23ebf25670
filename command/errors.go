package command

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-issuer/core"
)

// missingService reports a command handler built without the core service
// it delegates to.
func missingService(service string) error {
	return goerrors.New(fmt.Sprintf("command: %s is required", service), goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.IssuerErrorInternal).
		WithMetadata(map[string]any{"dependency": service})
}

func commandValidationError(field string, message string) error {
	return goerrors.NewValidation("command: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.IssuerErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// commandWrapValidation lifts a core validation error into the command
// envelope, keeping the original as the cause.
func commandWrapValidation(err error, message string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, message).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.IssuerErrorBadInput)
}
