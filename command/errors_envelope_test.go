package command

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-issuer/core"
)

func TestRevokeCredentialMessage_ValidateReturnsRichError(t *testing.T) {
	err := (RevokeCredentialMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.IssuerErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.IssuerErrorBadInput, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
	validation := rich.AllValidationErrors()
	if len(validation) == 0 || validation[0].Field != "credential_id" {
		t.Fatalf("expected credential_id validation field, got %#v", validation)
	}
}

func TestCreateParticipantMessage_DomainValidationIsWrapped(t *testing.T) {
	err := (CreateParticipantMessage{}).Validate()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
}

func TestRequestCredentialCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *RequestCredentialCommand
	err := cmd.Execute(context.Background(), RequestCredentialMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.IssuerErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.IssuerErrorInternal, rich.TextCode)
	}
}
