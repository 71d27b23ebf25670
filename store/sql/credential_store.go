package sqlstore

import (
	"context"
	"time"

	"github.com/goliatone/go-issuer/core"
	"github.com/uptrace/bun"
)

const credentialEntity = "Credential"

// CredentialStore keeps issued and status list credentials. Writes after
// Create are guarded by the version column.
type CredentialStore struct {
	table tableStore[verifiableCredentialRecord]
}

func NewCredentialStore(db *bun.DB) (*CredentialStore, error) {
	table, err := newTableStore(db, credentialHandlers(), credentialEntity, credentialColumns)
	if err != nil {
		return nil, err
	}
	return &CredentialStore{table: table}, nil
}

func (s *CredentialStore) Create(ctx context.Context, resource core.VerifiableCredentialResource) (core.VerifiableCredentialResource, error) {
	if s == nil || !s.table.configured() {
		return core.VerifiableCredentialResource{}, notConfigured("credential")
	}
	resource.Version = 1
	record, err := newCredentialRecord(resource, time.Now().UTC())
	if err != nil {
		return core.VerifiableCredentialResource{}, err
	}
	if err := s.table.insert(ctx, record, record.ID); err != nil {
		return core.VerifiableCredentialResource{}, err
	}
	return record.toDomain()
}

func (s *CredentialStore) Update(ctx context.Context, resource core.VerifiableCredentialResource) (core.VerifiableCredentialResource, error) {
	if s == nil || !s.table.configured() {
		return core.VerifiableCredentialResource{}, notConfigured("credential")
	}
	expected := resource.Version
	resource.Version = expected + 1
	record, err := newCredentialRecord(resource, time.Now().UTC())
	if err != nil {
		return core.VerifiableCredentialResource{}, err
	}

	result, err := conn(ctx, s.table.db).NewUpdate().
		Model(record).
		Column(
			"participant_context_id",
			"issuer_id",
			"holder_id",
			"state",
			"format",
			"raw_credential",
			"document",
			"expires_at",
			"version",
			"updated_at",
		).
		Where("id = ?", record.ID).
		Where("version = ?", expected).
		Exec(ctx)
	if err != nil {
		return core.VerifiableCredentialResource{}, err
	}
	affected, err := affectedRows(result)
	if err != nil {
		return core.VerifiableCredentialResource{}, err
	}
	if affected == 0 {
		if _, findErr := s.table.findBy(ctx, "id", record.ID); findErr != nil {
			return core.VerifiableCredentialResource{}, findErr
		}
		return core.VerifiableCredentialResource{}, core.NewConflictStoreError(credentialEntity, record.ID)
	}
	return s.FindByID(ctx, record.ID)
}

func (s *CredentialStore) DeleteByID(ctx context.Context, id string) error {
	if s == nil || !s.table.configured() {
		return notConfigured("credential")
	}
	return s.table.deleteByID(ctx, id)
}

func (s *CredentialStore) FindByID(ctx context.Context, id string) (core.VerifiableCredentialResource, error) {
	if s == nil || !s.table.configured() {
		return core.VerifiableCredentialResource{}, notConfigured("credential")
	}
	record, err := s.table.findBy(ctx, "id", id)
	if err != nil {
		return core.VerifiableCredentialResource{}, err
	}
	return record.toDomain()
}

func (s *CredentialStore) Query(ctx context.Context, spec core.QuerySpec) ([]core.VerifiableCredentialResource, error) {
	if s == nil || !s.table.configured() {
		return nil, notConfigured("credential")
	}
	records, err := s.table.query(ctx, spec)
	if err != nil {
		return nil, err
	}
	out := make([]core.VerifiableCredentialResource, 0, len(records))
	for i := range records {
		resource, err := records[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, resource)
	}
	return out, nil
}
