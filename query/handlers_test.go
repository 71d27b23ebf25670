package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/goliatone/go-issuer/core"
)

func TestGetCredentialQuery_QueryDelegates(t *testing.T) {
	expected := core.VerifiableCredentialResource{
		ID:                   "cred-1",
		ParticipantContextID: "p-1",
		State:                core.CredentialStateIssued,
	}
	called := false
	reader := stubCredentialReader{
		getFn: func(_ context.Context, credentialID string, participantID string) (core.VerifiableCredentialResource, error) {
			called = true
			if credentialID != "cred-1" || participantID != "p-1" {
				t.Fatalf("unexpected get request: %q %q", credentialID, participantID)
			}
			return expected, nil
		},
	}

	result, err := NewGetCredentialQuery(reader).Query(context.Background(), GetCredentialMessage{
		CredentialID:  "cred-1",
		ParticipantID: "p-1",
	})
	if err != nil {
		t.Fatalf("query credential: %v", err)
	}
	if !called {
		t.Fatalf("expected credential reader invocation")
	}
	if result.ID != expected.ID || result.State != expected.State {
		t.Fatalf("unexpected credential result: %#v", result)
	}
}

func TestCredentialQueries_Delegate(t *testing.T) {
	reader := stubCredentialReader{
		queryFn: func(_ context.Context, participantID string, spec core.QuerySpec) ([]core.VerifiableCredentialResource, error) {
			if participantID != "p-1" || spec.Limit != 10 {
				t.Fatalf("unexpected list request: %q %#v", participantID, spec)
			}
			return []core.VerifiableCredentialResource{{ID: "cred-1"}, {ID: "cred-2"}}, nil
		},
		statusFn: func(_ context.Context, credentialID string, _ string) (string, error) {
			if credentialID != "cred-1" {
				t.Fatalf("unexpected status credential id %q", credentialID)
			}
			return string(core.CredentialStateRevoked), nil
		},
	}

	spec := core.NewQuerySpec(core.Equal("state", string(core.CredentialStateIssued)))
	spec.Limit = 10
	creds, err := NewQueryCredentialsQuery(reader).Query(context.Background(), QueryCredentialsMessage{ParticipantID: "p-1", Spec: spec})
	if err != nil {
		t.Fatalf("query credentials: %v", err)
	}
	if len(creds) != 2 {
		t.Fatalf("expected two credentials, got %d", len(creds))
	}

	status, err := NewCheckCredentialStatusQuery(reader).Query(context.Background(), CheckCredentialStatusMessage{CredentialID: "cred-1", ParticipantID: "p-1"})
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if status != string(core.CredentialStateRevoked) {
		t.Fatalf("expected revoked status, got %q", status)
	}
}

func TestIssuanceProcessQueries_Delegate(t *testing.T) {
	reader := stubIssuanceProcessReader{
		getFn: func(_ context.Context, processID string) (core.IssuanceProcess, error) {
			return core.IssuanceProcess{ID: processID, State: core.IssuanceProcessStateDelivered}, nil
		},
		queryFn: func(_ context.Context, spec core.QuerySpec) ([]core.IssuanceProcess, error) {
			if len(spec.Filter) != 1 || spec.Filter[0].Field != "state" {
				t.Fatalf("unexpected process spec: %#v", spec)
			}
			return []core.IssuanceProcess{{ID: "proc-1"}}, nil
		},
	}

	process, err := NewGetIssuanceProcessQuery(reader).Query(context.Background(), GetIssuanceProcessMessage{ProcessID: "proc-1"})
	if err != nil {
		t.Fatalf("get process: %v", err)
	}
	if process.State != core.IssuanceProcessStateDelivered {
		t.Fatalf("unexpected process state %q", process.State)
	}

	spec := core.NewQuerySpec(core.Equal("state", string(core.IssuanceProcessStateSubmitted)))
	processes, err := NewQueryIssuanceProcessesQuery(reader).Query(context.Background(), QueryIssuanceProcessesMessage{Spec: spec})
	if err != nil {
		t.Fatalf("query processes: %v", err)
	}
	if len(processes) != 1 {
		t.Fatalf("expected one process, got %d", len(processes))
	}
}

func TestParticipantAttestationsQuery_Delegates(t *testing.T) {
	reader := stubAttestationDefinitionReader{
		forParticipantFn: func(_ context.Context, participantID string) ([]core.AttestationDefinition, error) {
			if participantID != "p-1" {
				t.Fatalf("unexpected participant id %q", participantID)
			}
			return []core.AttestationDefinition{{ID: "att-1", AttestationType: "database"}}, nil
		},
	}
	defs, err := NewGetAttestationsForParticipantQuery(reader).Query(context.Background(), GetAttestationsForParticipantMessage{ParticipantID: "p-1"})
	if err != nil {
		t.Fatalf("attestations for participant: %v", err)
	}
	if len(defs) != 1 || defs[0].AttestationType != "database" {
		t.Fatalf("unexpected definitions: %#v", defs)
	}
}

func TestQueryMessageValidation(t *testing.T) {
	negativeLimit := core.NewQuerySpec()
	negativeLimit.Limit = -1

	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{name: "find attestation definition valid", msg: FindAttestationDefinitionMessage{ID: "att-1"}},
		{name: "find attestation definition missing id", msg: FindAttestationDefinitionMessage{}, wantErr: true},
		{name: "query participants empty spec", msg: QueryParticipantsMessage{}},
		{name: "query participants negative limit", msg: QueryParticipantsMessage{Spec: negativeLimit}, wantErr: true},
		{
			name:    "query definitions blank filter field",
			msg:     QueryCredentialDefinitionsMessage{Spec: core.NewQuerySpec(core.Equal(" ", "x"))},
			wantErr: true,
		},
		{name: "get process missing id", msg: GetIssuanceProcessMessage{}, wantErr: true},
		{name: "query credentials missing participant", msg: QueryCredentialsMessage{}, wantErr: true},
		{name: "check status missing credential", msg: CheckCredentialStatusMessage{ParticipantID: "p-1"}, wantErr: true},
		{name: "get credential valid", msg: GetCredentialMessage{CredentialID: "cred-1", ParticipantID: "p-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type stubAttestationDefinitionReader struct {
	forParticipantFn func(ctx context.Context, participantID string) ([]core.AttestationDefinition, error)
}

func (stubAttestationDefinitionReader) FindAttestationDefinition(context.Context, string) (core.AttestationDefinition, error) {
	return core.AttestationDefinition{}, fmt.Errorf("find not configured")
}

func (stubAttestationDefinitionReader) QueryAttestationDefinitions(context.Context, core.QuerySpec) ([]core.AttestationDefinition, error) {
	return nil, fmt.Errorf("query not configured")
}

func (s stubAttestationDefinitionReader) GetAttestationsForParticipant(ctx context.Context, participantID string) ([]core.AttestationDefinition, error) {
	if s.forParticipantFn == nil {
		return nil, fmt.Errorf("attestations for participant not configured")
	}
	return s.forParticipantFn(ctx, participantID)
}

type stubIssuanceProcessReader struct {
	getFn   func(ctx context.Context, processID string) (core.IssuanceProcess, error)
	queryFn func(ctx context.Context, spec core.QuerySpec) ([]core.IssuanceProcess, error)
}

func (s stubIssuanceProcessReader) GetIssuanceProcess(ctx context.Context, processID string) (core.IssuanceProcess, error) {
	if s.getFn == nil {
		return core.IssuanceProcess{}, fmt.Errorf("get not configured")
	}
	return s.getFn(ctx, processID)
}

func (s stubIssuanceProcessReader) QueryIssuanceProcesses(ctx context.Context, spec core.QuerySpec) ([]core.IssuanceProcess, error) {
	if s.queryFn == nil {
		return nil, fmt.Errorf("query not configured")
	}
	return s.queryFn(ctx, spec)
}

type stubCredentialReader struct {
	getFn    func(ctx context.Context, credentialID string, participantID string) (core.VerifiableCredentialResource, error)
	queryFn  func(ctx context.Context, participantID string, spec core.QuerySpec) ([]core.VerifiableCredentialResource, error)
	statusFn func(ctx context.Context, credentialID string, participantID string) (string, error)
}

func (s stubCredentialReader) GetCredential(ctx context.Context, credentialID string, participantID string) (core.VerifiableCredentialResource, error) {
	if s.getFn == nil {
		return core.VerifiableCredentialResource{}, fmt.Errorf("get not configured")
	}
	return s.getFn(ctx, credentialID, participantID)
}

func (s stubCredentialReader) QueryCredentials(ctx context.Context, participantID string, spec core.QuerySpec) ([]core.VerifiableCredentialResource, error) {
	if s.queryFn == nil {
		return nil, fmt.Errorf("query not configured")
	}
	return s.queryFn(ctx, participantID, spec)
}

func (s stubCredentialReader) CheckCredentialStatus(ctx context.Context, credentialID string, participantID string) (string, error) {
	if s.statusFn == nil {
		return "", fmt.Errorf("status not configured")
	}
	return s.statusFn(ctx, credentialID, participantID)
}
