package sqlstore

import (
	"context"
	"time"

	"github.com/goliatone/go-issuer/core"
	"github.com/uptrace/bun"
)

const participantEntity = "Participant"

type ParticipantStore struct {
	table tableStore[participantRecord]
}

func NewParticipantStore(db *bun.DB) (*ParticipantStore, error) {
	table, err := newTableStore(db, participantHandlers(), participantEntity, participantColumns)
	if err != nil {
		return nil, err
	}
	return &ParticipantStore{table: table}, nil
}

func (s *ParticipantStore) Create(ctx context.Context, participant core.Participant) (core.Participant, error) {
	if s == nil || !s.table.configured() {
		return core.Participant{}, notConfigured("participant")
	}
	record := newParticipantRecord(participant, time.Now().UTC())
	if err := s.table.insert(ctx, record, record.ID); err != nil {
		return core.Participant{}, err
	}
	return record.toDomain(), nil
}

func (s *ParticipantStore) Update(ctx context.Context, participant core.Participant) (core.Participant, error) {
	if s == nil || !s.table.configured() {
		return core.Participant{}, notConfigured("participant")
	}
	record := newParticipantRecord(participant, time.Now().UTC())
	if err := s.table.updateColumns(ctx, record, record.ID,
		"did",
		"name",
		"linked_attestations",
		"updated_at",
	); err != nil {
		return core.Participant{}, err
	}
	return s.FindByID(ctx, record.ID)
}

func (s *ParticipantStore) DeleteByID(ctx context.Context, id string) error {
	if s == nil || !s.table.configured() {
		return notConfigured("participant")
	}
	return s.table.deleteByID(ctx, id)
}

func (s *ParticipantStore) FindByID(ctx context.Context, id string) (core.Participant, error) {
	if s == nil || !s.table.configured() {
		return core.Participant{}, notConfigured("participant")
	}
	record, err := s.table.findBy(ctx, "id", id)
	if err != nil {
		return core.Participant{}, err
	}
	return record.toDomain(), nil
}

func (s *ParticipantStore) FindByDID(ctx context.Context, did string) (core.Participant, error) {
	if s == nil || !s.table.configured() {
		return core.Participant{}, notConfigured("participant")
	}
	record, err := s.table.findBy(ctx, "did", did)
	if err != nil {
		return core.Participant{}, err
	}
	return record.toDomain(), nil
}

func (s *ParticipantStore) Query(ctx context.Context, spec core.QuerySpec) ([]core.Participant, error) {
	if s == nil || !s.table.configured() {
		return nil, notConfigured("participant")
	}
	records, err := s.table.query(ctx, spec)
	if err != nil {
		return nil, err
	}
	out := make([]core.Participant, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}
