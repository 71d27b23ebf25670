package transport

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-issuer/core"
)

// DeliveryError describes a failed push to a holder credential service.
// The process manager asks Retryable() whether the attempt is worth
// repeating.
type DeliveryError struct {
	Endpoint   string
	StatusCode int
	Detail     string
	Cause      error
	retryable  bool
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return "transport: delivery failed"
	}
	message := "transport: delivery to " + e.Endpoint + " failed"
	if e.StatusCode > 0 {
		message += fmt.Sprintf(" with status %d", e.StatusCode)
	}
	if e.Cause != nil {
		message += ": " + e.Cause.Error()
	}
	return message
}

func (e *DeliveryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *DeliveryError) Retryable() bool {
	return e != nil && e.retryable
}

func (e *DeliveryError) ToServiceError() *goerrors.Error {
	category := goerrors.CategoryOperation
	code := http.StatusBadGateway
	if e.Retryable() {
		category = goerrors.CategoryExternal
		code = http.StatusServiceUnavailable
	}
	metadata := map[string]any{"endpoint": e.Endpoint}
	if e.StatusCode > 0 {
		metadata["status_code"] = e.StatusCode
	}
	if e.Detail != "" {
		metadata["detail"] = e.Detail
	}
	return transportError(e.Error(), category, code, metadata)
}

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.IssuerErrorBadInput
	case goerrors.CategoryOperation:
		return core.IssuerErrorProcessingFailed
	case goerrors.CategoryExternal:
		return core.IssuerErrorTransient
	default:
		return core.IssuerErrorInternal
	}
}

// retryableStatus reports statuses a holder may recover from on its own.
func retryableStatus(code int) bool {
	switch {
	case code >= http.StatusInternalServerError:
		return true
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return true
	default:
		return false
	}
}
