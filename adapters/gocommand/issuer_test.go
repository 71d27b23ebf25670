package gocommand

import (
	"context"
	"testing"

	issuercommand "github.com/goliatone/go-issuer/command"
	"github.com/goliatone/go-issuer/core"
	issuerquery "github.com/goliatone/go-issuer/query"

	"github.com/goliatone/go-command"
)

// stubIssuanceService panics on any method it does not override.
type stubIssuanceService struct {
	core.IssuanceService
	revoked []string
}

func (s *stubIssuanceService) RevokeCredential(_ context.Context, credentialID string, participantID string) error {
	s.revoked = append(s.revoked, participantID+"/"+credentialID)
	return nil
}

func (s *stubIssuanceService) CheckCredentialStatus(context.Context, string, string) (string, error) {
	return string(core.CredentialStateRevoked), nil
}

func TestRegisterIssuerHandlers_DispatchesCommandsAndQueries(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	service := &stubIssuanceService{}

	subscriptions, err := RegisterIssuerHandlers(adapter, service)
	if err != nil {
		t.Fatalf("register issuer handlers: %v", err)
	}
	defer subscriptions.Unsubscribe()

	if len(subscriptions) != 28 {
		t.Fatalf("expected 28 subscriptions, got %d", len(subscriptions))
	}

	msg := issuercommand.RevokeCredentialMessage{CredentialID: "cred-1", ParticipantID: "p-1"}
	if err := Dispatch(context.Background(), msg); err != nil {
		t.Fatalf("dispatch revoke: %v", err)
	}
	if len(service.revoked) != 1 || service.revoked[0] != "p-1/cred-1" {
		t.Fatalf("unexpected revocations %v", service.revoked)
	}

	status, err := Query[issuerquery.CheckCredentialStatusMessage, string](context.Background(), issuerquery.CheckCredentialStatusMessage{
		CredentialID:  "cred-1",
		ParticipantID: "p-1",
	})
	if err != nil {
		t.Fatalf("query status: %v", err)
	}
	if status != string(core.CredentialStateRevoked) {
		t.Fatalf("expected revoked status, got %q", status)
	}
}

func TestRegisterIssuerHandlers_RequiresService(t *testing.T) {
	if _, err := RegisterIssuerHandlers(NewRegistryAdapter(nil), nil); err == nil {
		t.Fatalf("expected missing service error")
	}
}
