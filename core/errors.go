package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	IssuerErrorBadInput         = "ISSUER_BAD_INPUT"
	IssuerErrorNotFound         = "ISSUER_NOT_FOUND"
	IssuerErrorForbidden        = "ISSUER_FORBIDDEN"
	IssuerErrorUnauthorized     = "ISSUER_UNAUTHORIZED"
	IssuerErrorConflict         = "ISSUER_CONFLICT"
	IssuerErrorProgrammingError = "ISSUER_PROGRAMMING_ERROR"
	IssuerErrorTransient        = "ISSUER_TRANSIENT"
	IssuerErrorProcessingFailed = "ISSUER_PROCESSING_FAILED"
	IssuerErrorInternal         = "ISSUER_INTERNAL_ERROR"
)

var (
	// ErrProgrammingError marks conditions that cannot occur in a correctly
	// configured system, such as an unregistered attestation type.
	ErrProgrammingError = errors.New("core: programming error")

	ErrStoreNotFound          = errors.New("core: entity not found")
	ErrStoreAlreadyExists     = errors.New("core: entity already exists")
	ErrConcurrentModification = errors.New("core: concurrent modification")
)

// StoreErrorKind tags the outcome of a failed store operation.
type StoreErrorKind string

const (
	StoreErrorNotFound      StoreErrorKind = "not_found"
	StoreErrorAlreadyExists StoreErrorKind = "already_exists"
	StoreErrorConflict      StoreErrorKind = "conflict"
)

// StoreError is returned by store implementations for the not-found,
// already-exists and version-conflict outcomes. Any other error is a general
// store failure.
type StoreError struct {
	Kind   StoreErrorKind
	Entity string
	ID     string
}

func (e *StoreError) Error() string {
	entity := strings.TrimSpace(e.Entity)
	if entity == "" {
		entity = "entity"
	}
	switch e.Kind {
	case StoreErrorNotFound:
		return fmt.Sprintf("%s with ID '%s' was not found", entity, e.ID)
	case StoreErrorAlreadyExists:
		return fmt.Sprintf("%s with ID '%s' already exists", entity, e.ID)
	case StoreErrorConflict:
		return fmt.Sprintf("%s with ID '%s' was modified concurrently", entity, e.ID)
	default:
		return fmt.Sprintf("%s with ID '%s': store failure", entity, e.ID)
	}
}

func (e *StoreError) Unwrap() error {
	switch e.Kind {
	case StoreErrorNotFound:
		return ErrStoreNotFound
	case StoreErrorAlreadyExists:
		return ErrStoreAlreadyExists
	case StoreErrorConflict:
		return ErrConcurrentModification
	default:
		return nil
	}
}

func NewNotFoundStoreError(entity string, id string) error {
	return &StoreError{Kind: StoreErrorNotFound, Entity: entity, ID: id}
}

func NewAlreadyExistsStoreError(entity string, id string) error {
	return &StoreError{Kind: StoreErrorAlreadyExists, Entity: entity, ID: id}
}

func NewConflictStoreError(entity string, id string) error {
	return &StoreError{Kind: StoreErrorConflict, Entity: entity, ID: id}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrStoreNotFound)
}

func IsProgrammingError(err error) bool {
	if errors.Is(err, ErrProgrammingError) {
		return true
	}
	var rich *goerrors.Error
	return goerrors.As(err, &rich) && rich.TextCode == IssuerErrorProgrammingError
}

func validationError(message string, fields ...goerrors.FieldError) *goerrors.Error {
	return goerrors.NewValidation(message, fields...).
		WithCode(http.StatusBadRequest).
		WithTextCode(IssuerErrorBadInput)
}

func notFoundError(message string) *goerrors.Error {
	return newIssuerError(message, goerrors.CategoryNotFound, IssuerErrorNotFound)
}

func forbiddenError(message string) *goerrors.Error {
	return newIssuerError(message, goerrors.CategoryAuthz, IssuerErrorForbidden)
}

func unauthorizedError(message string) *goerrors.Error {
	return newIssuerError(message, goerrors.CategoryAuth, IssuerErrorUnauthorized)
}

func conflictError(message string) *goerrors.Error {
	return newIssuerError(message, goerrors.CategoryConflict, IssuerErrorConflict)
}

func processingError(err error, message string) *goerrors.Error {
	return ensureIssuerErrorEnvelope(
		goerrors.Wrap(err, goerrors.CategoryOperation, message).
			WithTextCode(IssuerErrorProcessingFailed),
	)
}

func programmingError(message string) *goerrors.Error {
	return ensureIssuerErrorEnvelope(
		goerrors.Wrap(ErrProgrammingError, goerrors.CategoryInternal, message).
			WithTextCode(IssuerErrorProgrammingError).
			WithSeverity(goerrors.SeverityCritical),
	)
}

// mapStoreError converts a store failure into a service failure without
// leaking store specific text for general errors.
func mapStoreError(err error, action string) error {
	if err == nil {
		return nil
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		switch storeErr.Kind {
		case StoreErrorNotFound:
			return notFoundError(storeErr.Error())
		case StoreErrorAlreadyExists, StoreErrorConflict:
			return conflictError(storeErr.Error())
		}
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureIssuerErrorEnvelope(rich)
	}
	return ensureIssuerErrorEnvelope(
		goerrors.Wrap(err, goerrors.CategoryInternal, "core: "+action+" failed").
			WithTextCode(IssuerErrorInternal),
	)
}

func issuerErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureIssuerErrorEnvelope(richErr)
	}

	var storeErr *StoreError
	switch {
	case errors.As(err, &storeErr):
		mapped := mapStoreError(err, "store operation")
		if goerrors.As(mapped, &richErr) {
			return richErr
		}
	case errors.Is(err, ErrProgrammingError):
		return programmingError(err.Error())
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newIssuerError(err.Error(), goerrors.CategoryBadInput, IssuerErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureIssuerErrorEnvelope(mapped)
}

func newIssuerError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureIssuerErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureIssuerErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = issuerHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultIssuerTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultIssuerTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return IssuerErrorBadInput
	case goerrors.CategoryNotFound:
		return IssuerErrorNotFound
	case goerrors.CategoryAuth:
		return IssuerErrorUnauthorized
	case goerrors.CategoryAuthz:
		return IssuerErrorForbidden
	case goerrors.CategoryConflict:
		return IssuerErrorConflict
	case goerrors.CategoryExternal:
		return IssuerErrorTransient
	case goerrors.CategoryOperation:
		return IssuerErrorProcessingFailed
	default:
		return IssuerErrorInternal
	}
}

func issuerHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
