package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// AttestationDefinitionService manages attestation definitions and their
// links to participants.
type AttestationDefinitionService struct {
	attestations AttestationDefinitionStore
	participants ParticipantStore
	registry     AttestationRegistry
	tx           TransactionContext
	clock        func() time.Time
}

func NewAttestationDefinitionService(
	attestations AttestationDefinitionStore,
	participants ParticipantStore,
	registry AttestationRegistry,
	tx TransactionContext,
) *AttestationDefinitionService {
	if tx == nil {
		tx = NoopTransactionContext{}
	}
	return &AttestationDefinitionService{
		attestations: attestations,
		participants: participants,
		registry:     registry,
		tx:           tx,
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *AttestationDefinitionService) CreateAttestationDefinition(ctx context.Context, def AttestationDefinition) (AttestationDefinition, error) {
	if err := s.validateDefinition(def); err != nil {
		return AttestationDefinition{}, err
	}
	now := s.clock()
	def.CreatedAt = now
	def.UpdatedAt = now
	created, err := s.attestations.Create(ctx, def)
	if err != nil {
		return AttestationDefinition{}, mapStoreError(err, "create attestation definition")
	}
	return created, nil
}

func (s *AttestationDefinitionService) UpdateAttestationDefinition(ctx context.Context, def AttestationDefinition) (AttestationDefinition, error) {
	if err := s.validateDefinition(def); err != nil {
		return AttestationDefinition{}, err
	}
	def.UpdatedAt = s.clock()
	updated, err := s.attestations.Update(ctx, def)
	if err != nil {
		return AttestationDefinition{}, mapStoreError(err, "update attestation definition")
	}
	return updated, nil
}

func (s *AttestationDefinitionService) DeleteAttestationDefinition(ctx context.Context, id string) error {
	if err := s.attestations.DeleteByID(ctx, strings.TrimSpace(id)); err != nil {
		return mapStoreError(err, "delete attestation definition")
	}
	return nil
}

func (s *AttestationDefinitionService) FindAttestationDefinition(ctx context.Context, id string) (AttestationDefinition, error) {
	def, err := s.attestations.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return AttestationDefinition{}, mapStoreError(err, "find attestation definition")
	}
	return def, nil
}

func (s *AttestationDefinitionService) QueryAttestationDefinitions(ctx context.Context, spec QuerySpec) ([]AttestationDefinition, error) {
	defs, err := s.attestations.Query(ctx, spec)
	if err != nil {
		return nil, mapStoreError(err, "query attestation definitions")
	}
	return defs, nil
}

// LinkAttestation returns false without writing when the link already exists.
func (s *AttestationDefinitionService) LinkAttestation(ctx context.Context, attestationID string, participantID string) (bool, error) {
	var linked bool
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		if _, err := s.attestations.FindByID(ctx, attestationID); err != nil {
			return mapStoreError(err, "resolve attestation definition")
		}
		participant, err := s.participants.FindByID(ctx, participantID)
		if err != nil {
			return mapStoreError(err, "resolve participant")
		}
		if !participant.LinkAttestation(attestationID) {
			return nil
		}
		participant.UpdatedAt = s.clock()
		if _, err := s.participants.Update(ctx, participant); err != nil {
			return mapStoreError(err, "update participant")
		}
		linked = true
		return nil
	})
	return linked, err
}

// UnlinkAttestation returns false without writing when no link exists.
func (s *AttestationDefinitionService) UnlinkAttestation(ctx context.Context, attestationID string, participantID string) (bool, error) {
	var unlinked bool
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		participant, err := s.participants.FindByID(ctx, participantID)
		if err != nil {
			return mapStoreError(err, "resolve participant")
		}
		if !participant.UnlinkAttestation(attestationID) {
			return nil
		}
		participant.UpdatedAt = s.clock()
		if _, err := s.participants.Update(ctx, participant); err != nil {
			return mapStoreError(err, "update participant")
		}
		unlinked = true
		return nil
	})
	return unlinked, err
}

// GetAttestationsForParticipant resolves linked ids with the tolerant policy:
// ids that no longer resolve are omitted.
func (s *AttestationDefinitionService) GetAttestationsForParticipant(ctx context.Context, participantID string) ([]AttestationDefinition, error) {
	participant, err := s.participants.FindByID(ctx, participantID)
	if err != nil {
		return nil, mapStoreError(err, "resolve participant")
	}
	out := make([]AttestationDefinition, 0, len(participant.LinkedAttestations))
	for _, id := range participant.LinkedAttestations {
		def, found, err := resolveAttestationDefinition(ctx, s.attestations, id, ResolutionTolerant)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, def)
		}
	}
	return out, nil
}

func (s *AttestationDefinitionService) validateDefinition(def AttestationDefinition) error {
	if err := def.Validate(); err != nil {
		return validationError(err.Error())
	}
	if s.registry == nil {
		return nil
	}
	factory, ok := s.registry.Factory(def.AttestationType)
	if !ok {
		return validationError(
			fmt.Sprintf("core: attestation type %q is not supported", def.AttestationType),
			goerrors.FieldError{Field: "attestationType", Message: "unsupported attestation type"},
		)
	}
	if validator, ok := factory.(AttestationDefinitionValidator); ok {
		if err := validator.ValidateDefinition(def); err != nil {
			return validationError(
				fmt.Sprintf("core: attestation definition %q is invalid: %v", def.ID, err),
				goerrors.FieldError{Field: "configuration", Message: err.Error()},
			)
		}
	}
	return nil
}
