package query

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-issuer/core"
)

// missingReader reports a query constructed without its backing reader.
func missingReader(reader string) error {
	return goerrors.New(fmt.Sprintf("query: %s is required", reader), goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.IssuerErrorInternal).
		WithMetadata(map[string]any{"dependency": reader})
}

func queryValidationError(field string, message string) error {
	return goerrors.NewValidation("query: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.IssuerErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}
