package core

import (
	"errors"
	"testing"
	"time"
)

func newSubmittedProcess(t *testing.T, now time.Time) IssuanceProcess {
	t.Helper()
	process, err := NewIssuanceProcess(NewIssuanceProcessInput{
		ID:                    "proc-1",
		ParticipantID:         "p1",
		IssuerContextID:       "did:web:issuer",
		HolderPID:             "holder-1",
		CredentialDefinitions: []string{"cd-1"},
	}, now)
	if err != nil {
		t.Fatalf("new process: %v", err)
	}
	return process
}

func TestNewIssuanceProcess_RequiresFields(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := map[string]NewIssuanceProcessInput{
		"id":          {ParticipantID: "p", IssuerContextID: "i", HolderPID: "h", CredentialDefinitions: []string{"cd"}},
		"participant": {ID: "x", IssuerContextID: "i", HolderPID: "h", CredentialDefinitions: []string{"cd"}},
		"issuer":      {ID: "x", ParticipantID: "p", HolderPID: "h", CredentialDefinitions: []string{"cd"}},
		"holder":      {ID: "x", ParticipantID: "p", IssuerContextID: "i", CredentialDefinitions: []string{"cd"}},
		"definitions": {ID: "x", ParticipantID: "p", IssuerContextID: "i", HolderPID: "h"},
	}
	for name, input := range cases {
		if _, err := NewIssuanceProcess(input, now); !errors.Is(err, ErrInvalidIssuanceProcess) {
			t.Fatalf("%s: expected invalid process error, got %v", name, err)
		}
	}

	process := newSubmittedProcess(t, now)
	if process.State != IssuanceProcessStateSubmitted || process.StateCount != 1 || !process.StateTimestamp.Equal(now) {
		t.Fatalf("unexpected initial process %#v", process)
	}
}

func TestIssuanceProcess_DeliveredRequiresApproval(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	process := newSubmittedProcess(t, now)

	err := process.TransitionToDelivered(now.Add(time.Minute))
	var transitionErr *InvalidTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}
	if transitionErr.From != IssuanceProcessStateSubmitted || transitionErr.To != IssuanceProcessStateDelivered {
		t.Fatalf("unexpected transition error %#v", transitionErr)
	}
	if !errors.Is(err, ErrProgrammingError) || !errors.Is(err, ErrInvalidIssuanceProcessTransition) {
		t.Fatalf("expected transition error to match sentinels, got %v", err)
	}
	if process.State != IssuanceProcessStateSubmitted || !process.StateTimestamp.Equal(now) {
		t.Fatalf("expected process to be unchanged, got %#v", process)
	}
}

func TestIssuanceProcess_ReentrantApprovalCountsAttempts(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	process := newSubmittedProcess(t, now)

	if err := process.TransitionToApproved(now.Add(time.Second)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if process.StateCount != 1 {
		t.Fatalf("expected state count reset on new state, got %d", process.StateCount)
	}
	if err := process.TransitionToApproved(now.Add(2 * time.Second)); err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	if process.StateCount != 2 || !process.StateTimestamp.Equal(now.Add(2*time.Second)) {
		t.Fatalf("expected second approval to bump count, got %#v", process)
	}

	if err := process.TransitionToError(" boom ", now.Add(3*time.Second)); err != nil {
		t.Fatalf("error transition: %v", err)
	}
	if process.ErrorDetail != "boom" || !process.State.IsTerminal() {
		t.Fatalf("unexpected errored process %#v", process)
	}
	if err := process.TransitionToApproved(now.Add(4 * time.Second)); err == nil {
		t.Fatalf("expected terminal state to reject transitions")
	}
}

func TestCredentialResource_Transitions(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	resource := VerifiableCredentialResource{ID: "vc-1", State: CredentialStateIssued}

	if err := resource.TransitionTo(CredentialStateSuspended, now); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if err := resource.TransitionTo(CredentialStateIssued, now); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := resource.TransitionTo(CredentialStateRevoked, now); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := resource.TransitionTo(CredentialStateRevoked, now); err != nil {
		t.Fatalf("same state must be a no-op: %v", err)
	}
	if err := resource.TransitionTo(CredentialStateIssued, now); !errors.Is(err, ErrInvalidCredentialStateTransition) {
		t.Fatalf("expected revoked to be terminal, got %v", err)
	}
	if resource.State.RequiresStatusCheck() {
		t.Fatalf("revoked credentials need no status check")
	}
}

func TestCredentialResource_SuspendedMayBecomeNotYetValid(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	resource := VerifiableCredentialResource{ID: "vc-1", State: CredentialStateSuspended}

	if err := resource.TransitionTo(CredentialStateNotYetValid, now); err != nil {
		t.Fatalf("suspended to not yet valid: %v", err)
	}
	if resource.State != CredentialStateNotYetValid {
		t.Fatalf("expected NOT_YET_VALID, got %s", resource.State)
	}
}

func TestParticipant_LinkHelpers(t *testing.T) {
	participant := Participant{ParticipantID: "p1", DID: "did:web:p1"}
	if !participant.LinkAttestation("a") || participant.LinkAttestation("a") {
		t.Fatalf("expected link to report change only once")
	}
	if !participant.HasAttestation("a") {
		t.Fatalf("expected attestation to be linked")
	}
	if !participant.UnlinkAttestation("a") || participant.UnlinkAttestation("a") {
		t.Fatalf("expected unlink to report change only once")
	}
}
