package sqlstore

import (
	"context"
	"time"

	"github.com/goliatone/go-issuer/core"
	"github.com/uptrace/bun"
)

const credentialDefinitionEntity = "CredentialDefinition"

type CredentialDefinitionStore struct {
	table tableStore[credentialDefinitionRecord]
}

func NewCredentialDefinitionStore(db *bun.DB) (*CredentialDefinitionStore, error) {
	table, err := newTableStore(db, credentialDefinitionHandlers(), credentialDefinitionEntity, credentialDefinitionColumns)
	if err != nil {
		return nil, err
	}
	return &CredentialDefinitionStore{table: table}, nil
}

func (s *CredentialDefinitionStore) Create(ctx context.Context, def core.CredentialDefinition) (core.CredentialDefinition, error) {
	if s == nil || !s.table.configured() {
		return core.CredentialDefinition{}, notConfigured("credential definition")
	}
	record := newCredentialDefinitionRecord(def, time.Now().UTC())
	if err := s.table.insert(ctx, record, record.ID); err != nil {
		return core.CredentialDefinition{}, err
	}
	return record.toDomain(), nil
}

func (s *CredentialDefinitionStore) Update(ctx context.Context, def core.CredentialDefinition) (core.CredentialDefinition, error) {
	if s == nil || !s.table.configured() {
		return core.CredentialDefinition{}, notConfigured("credential definition")
	}
	record := newCredentialDefinitionRecord(def, time.Now().UTC())
	if err := s.table.updateColumns(ctx, record, record.ID,
		"credential_type",
		"participant_context_id",
		"json_schema",
		"json_schema_url",
		"data_model",
		"validity",
		"attestations",
		"rules",
		"mappings",
		"formats",
		"updated_at",
	); err != nil {
		return core.CredentialDefinition{}, err
	}
	return s.FindByID(ctx, record.ID)
}

func (s *CredentialDefinitionStore) DeleteByID(ctx context.Context, id string) error {
	if s == nil || !s.table.configured() {
		return notConfigured("credential definition")
	}
	return s.table.deleteByID(ctx, id)
}

func (s *CredentialDefinitionStore) FindByID(ctx context.Context, id string) (core.CredentialDefinition, error) {
	if s == nil || !s.table.configured() {
		return core.CredentialDefinition{}, notConfigured("credential definition")
	}
	record, err := s.table.findBy(ctx, "id", id)
	if err != nil {
		return core.CredentialDefinition{}, err
	}
	return record.toDomain(), nil
}

func (s *CredentialDefinitionStore) Query(ctx context.Context, spec core.QuerySpec) ([]core.CredentialDefinition, error) {
	if s == nil || !s.table.configured() {
		return nil, notConfigured("credential definition")
	}
	records, err := s.table.query(ctx, spec)
	if err != nil {
		return nil, err
	}
	out := make([]core.CredentialDefinition, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}
