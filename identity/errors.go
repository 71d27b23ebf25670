package identity

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-issuer/core"
)

var (
	ErrTokenRejected    = errors.New("identity: token rejected")
	ErrKeyNotFound      = errors.New("identity: verification key not found")
	ErrServiceNotFound  = errors.New("identity: service endpoint not found")
	ErrUnsupportedDID   = errors.New("identity: unsupported did method")
	ErrDocumentNotFound = errors.New("identity: did document not found")
)

// TokenRejectedError carries the reason a token failed verification. The
// reason is meant for logs; callers answer every rejection the same way.
type TokenRejectedError struct {
	Reason string
	Cause  error
}

func (e *TokenRejectedError) Error() string {
	if e == nil {
		return ErrTokenRejected.Error()
	}
	message := ErrTokenRejected.Error()
	if e.Reason != "" {
		message += ": " + e.Reason
	}
	if e.Cause != nil {
		message += ": " + e.Cause.Error()
	}
	return message
}

func (e *TokenRejectedError) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.Cause == nil {
		return ErrTokenRejected
	}
	return errors.Join(ErrTokenRejected, e.Cause)
}

func (e *TokenRejectedError) ToServiceError() *goerrors.Error {
	return goerrors.New(ErrTokenRejected.Error(), goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.IssuerErrorUnauthorized)
}

func tokenRejected(reason string, cause error) error {
	return &TokenRejectedError{Reason: reason, Cause: cause}
}
