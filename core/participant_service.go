package core

import (
	"context"
	"strings"
	"time"
)

type ParticipantService struct {
	participants ParticipantStore
	clock        func() time.Time
}

func NewParticipantService(participants ParticipantStore) *ParticipantService {
	return &ParticipantService{
		participants: participants,
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateParticipant stores a participant with a de-duplicated link set.
func (s *ParticipantService) CreateParticipant(ctx context.Context, participant Participant) (Participant, error) {
	if err := participant.Validate(); err != nil {
		return Participant{}, validationError(err.Error())
	}
	participant.ParticipantID = strings.TrimSpace(participant.ParticipantID)
	participant.DID = strings.TrimSpace(participant.DID)
	participant.LinkedAttestations = dedupeStrings(participant.LinkedAttestations)
	now := s.clock()
	participant.CreatedAt = now
	participant.UpdatedAt = now
	created, err := s.participants.Create(ctx, participant)
	if err != nil {
		return Participant{}, mapStoreError(err, "create participant")
	}
	return created, nil
}

func (s *ParticipantService) FindParticipant(ctx context.Context, participantID string) (Participant, error) {
	participant, err := s.participants.FindByID(ctx, strings.TrimSpace(participantID))
	if err != nil {
		return Participant{}, mapStoreError(err, "find participant")
	}
	return participant, nil
}

func (s *ParticipantService) DeleteParticipant(ctx context.Context, participantID string) error {
	if err := s.participants.DeleteByID(ctx, strings.TrimSpace(participantID)); err != nil {
		return mapStoreError(err, "delete participant")
	}
	return nil
}

func (s *ParticipantService) QueryParticipants(ctx context.Context, spec QuerySpec) ([]Participant, error) {
	participants, err := s.participants.Query(ctx, spec)
	if err != nil {
		return nil, mapStoreError(err, "query participants")
	}
	return participants, nil
}
