package core

import (
	"context"
	"fmt"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func newLinkerFixture(participants ...Participant) (*AttestationDefinitionService, *memoryAttestationStore, *memoryParticipantStore) {
	attestations := newMemoryAttestationStore(
		AttestationDefinition{ID: "1", AttestationType: "static"},
		AttestationDefinition{ID: "2", AttestationType: "static"},
	)
	participantStore := newMemoryParticipantStore(participants...)
	registry := NewAttestationSourceRegistry()
	registry.RegisterFactory("static", configSourceFactory())
	return NewAttestationDefinitionService(attestations, participantStore, registry, nil), attestations, participantStore
}

func requireTextCode(t *testing.T, err error, textCode string) *goerrors.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", textCode)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T: %v", err, err)
	}
	if rich.TextCode != textCode {
		t.Fatalf("expected text code %s, got %s (%v)", textCode, rich.TextCode, err)
	}
	return rich
}

func TestLinkAttestation_IsIdempotent(t *testing.T) {
	svc, _, participants := newLinkerFixture(Participant{ParticipantID: "p1", DID: "did:web:p1"})
	ctx := context.Background()

	linked, err := svc.LinkAttestation(ctx, "1", "p1")
	if err != nil {
		t.Fatalf("first link: %v", err)
	}
	if !linked {
		t.Fatalf("expected first link to report a change")
	}
	if participants.count("update") != 1 {
		t.Fatalf("expected one participant write, got %d", participants.count("update"))
	}

	linked, err = svc.LinkAttestation(ctx, "1", "p1")
	if err != nil {
		t.Fatalf("second link: %v", err)
	}
	if linked {
		t.Fatalf("expected second link to be a no-op")
	}
	if participants.count("update") != 1 {
		t.Fatalf("expected no additional write, got %d updates", participants.count("update"))
	}

	stored, _ := participants.FindByID(ctx, "p1")
	if len(stored.LinkedAttestations) != 1 || stored.LinkedAttestations[0] != "1" {
		t.Fatalf("unexpected linked attestations %v", stored.LinkedAttestations)
	}
}

func TestLinkAttestation_NotFound(t *testing.T) {
	svc, _, participants := newLinkerFixture(Participant{ParticipantID: "p1", DID: "did:web:p1"})
	ctx := context.Background()

	_, err := svc.LinkAttestation(ctx, "missing", "p1")
	requireTextCode(t, err, IssuerErrorNotFound)

	_, err = svc.LinkAttestation(ctx, "1", "nobody")
	requireTextCode(t, err, IssuerErrorNotFound)

	if participants.writes() != 0 {
		t.Fatalf("expected no writes, got %d", participants.writes())
	}
}

func TestUnlinkAttestation_IsIdempotent(t *testing.T) {
	svc, _, participants := newLinkerFixture(Participant{ParticipantID: "p1", DID: "did:web:p1", LinkedAttestations: []string{"1", "2"}})
	ctx := context.Background()

	unlinked, err := svc.UnlinkAttestation(ctx, "3", "p1")
	if err != nil {
		t.Fatalf("unlink not linked: %v", err)
	}
	if unlinked || participants.writes() != 0 {
		t.Fatalf("expected no-op without write, got changed=%v writes=%d", unlinked, participants.writes())
	}

	unlinked, err = svc.UnlinkAttestation(ctx, "1", "p1")
	if err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if !unlinked || participants.count("update") != 1 {
		t.Fatalf("expected one write, got changed=%v updates=%d", unlinked, participants.count("update"))
	}
	stored, _ := participants.FindByID(ctx, "p1")
	if len(stored.LinkedAttestations) != 1 || stored.LinkedAttestations[0] != "2" {
		t.Fatalf("unexpected linked attestations %v", stored.LinkedAttestations)
	}

	_, err = svc.UnlinkAttestation(ctx, "1", "nobody")
	requireTextCode(t, err, IssuerErrorNotFound)
}

func TestGetAttestationsForParticipant_SkipsDanglingReferences(t *testing.T) {
	svc, _, _ := newLinkerFixture(Participant{ParticipantID: "p1", DID: "did:web:p1", LinkedAttestations: []string{"1", "2", "3"}})

	defs, err := svc.GetAttestationsForParticipant(context.Background(), "p1")
	if err != nil {
		t.Fatalf("get attestations: %v", err)
	}
	if len(defs) != 2 || defs[0].ID != "1" || defs[1].ID != "2" {
		t.Fatalf("expected definitions 1 and 2, got %#v", defs)
	}
}

func TestGetAttestationsForParticipant_ParticipantNotFoundCarriesStoreDetail(t *testing.T) {
	svc, _, _ := newLinkerFixture()

	_, err := svc.GetAttestationsForParticipant(context.Background(), "ghost")
	rich := requireTextCode(t, err, IssuerErrorNotFound)
	if !strings.Contains(rich.Message, "Participant with ID 'ghost' was not found") {
		t.Fatalf("expected store detail in message, got %q", rich.Message)
	}
}

type rejectingFactory struct{}

func (rejectingFactory) CreateSource(AttestationDefinition) (AttestationSource, error) {
	return staticClaimsSource{}, nil
}

func (rejectingFactory) ValidateDefinition(def AttestationDefinition) error {
	if _, ok := def.Configuration["table"]; !ok {
		return fmt.Errorf("table is required")
	}
	return nil
}

func TestCreateAttestationDefinition_Validation(t *testing.T) {
	svc, attestations, _ := newLinkerFixture()
	svc.registry.RegisterFactory("database", rejectingFactory{})
	ctx := context.Background()

	_, err := svc.CreateAttestationDefinition(ctx, AttestationDefinition{ID: "x", AttestationType: "unknown"})
	requireTextCode(t, err, IssuerErrorBadInput)

	_, err = svc.CreateAttestationDefinition(ctx, AttestationDefinition{ID: "x", AttestationType: "database"})
	requireTextCode(t, err, IssuerErrorBadInput)

	_, err = svc.CreateAttestationDefinition(ctx, AttestationDefinition{AttestationType: "static"})
	requireTextCode(t, err, IssuerErrorBadInput)

	if attestations.count("create") != 0 {
		t.Fatalf("expected no create calls, got %d", attestations.count("create"))
	}

	created, err := svc.CreateAttestationDefinition(ctx, AttestationDefinition{
		ID:              "x",
		AttestationType: "database",
		Configuration:   map[string]any{"table": "members"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.CreatedAt.IsZero() {
		t.Fatalf("expected created timestamp")
	}

	_, err = svc.CreateAttestationDefinition(ctx, created)
	requireTextCode(t, err, IssuerErrorConflict)
}

func TestDeleteAttestationDefinition_NotFound(t *testing.T) {
	svc, _, _ := newLinkerFixture()

	err := svc.DeleteAttestationDefinition(context.Background(), "nope")
	requireTextCode(t, err, IssuerErrorNotFound)

	if err := svc.DeleteAttestationDefinition(context.Background(), "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
