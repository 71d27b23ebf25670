package sqlstore

import (
	"context"
	"time"

	"github.com/goliatone/go-issuer/core"
	"github.com/uptrace/bun"
)

const attestationDefinitionEntity = "AttestationDefinition"

type AttestationDefinitionStore struct {
	table tableStore[attestationDefinitionRecord]
}

func NewAttestationDefinitionStore(db *bun.DB) (*AttestationDefinitionStore, error) {
	table, err := newTableStore(db, attestationDefinitionHandlers(), attestationDefinitionEntity, attestationDefinitionColumns)
	if err != nil {
		return nil, err
	}
	return &AttestationDefinitionStore{table: table}, nil
}

func (s *AttestationDefinitionStore) Create(ctx context.Context, def core.AttestationDefinition) (core.AttestationDefinition, error) {
	if s == nil || !s.table.configured() {
		return core.AttestationDefinition{}, notConfigured("attestation definition")
	}
	record := newAttestationDefinitionRecord(def, time.Now().UTC())
	if err := s.table.insert(ctx, record, record.ID); err != nil {
		return core.AttestationDefinition{}, err
	}
	return record.toDomain(), nil
}

func (s *AttestationDefinitionStore) Update(ctx context.Context, def core.AttestationDefinition) (core.AttestationDefinition, error) {
	if s == nil || !s.table.configured() {
		return core.AttestationDefinition{}, notConfigured("attestation definition")
	}
	record := newAttestationDefinitionRecord(def, time.Now().UTC())
	if err := s.table.updateColumns(ctx, record, record.ID,
		"attestation_type",
		"participant_context_id",
		"configuration",
		"updated_at",
	); err != nil {
		return core.AttestationDefinition{}, err
	}
	return s.FindByID(ctx, record.ID)
}

func (s *AttestationDefinitionStore) DeleteByID(ctx context.Context, id string) error {
	if s == nil || !s.table.configured() {
		return notConfigured("attestation definition")
	}
	return s.table.deleteByID(ctx, id)
}

func (s *AttestationDefinitionStore) FindByID(ctx context.Context, id string) (core.AttestationDefinition, error) {
	if s == nil || !s.table.configured() {
		return core.AttestationDefinition{}, notConfigured("attestation definition")
	}
	record, err := s.table.findBy(ctx, "id", id)
	if err != nil {
		return core.AttestationDefinition{}, err
	}
	return record.toDomain(), nil
}

func (s *AttestationDefinitionStore) Query(ctx context.Context, spec core.QuerySpec) ([]core.AttestationDefinition, error) {
	if s == nil || !s.table.configured() {
		return nil, notConfigured("attestation definition")
	}
	records, err := s.table.query(ctx, spec)
	if err != nil {
		return nil, err
	}
	out := make([]core.AttestationDefinition, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}
