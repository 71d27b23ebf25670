package sqlstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-issuer/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const issuanceProcessEntity = "IssuanceProcess"

// issuanceProcessColumnsWritable lists what Update persists. The lease
// columns are included so the nil values on the record release the lease.
var issuanceProcessColumnsWritable = []string{
	"participant_id",
	"issuer_context_id",
	"holder_pid",
	"claims",
	"credential_definitions",
	"credential_formats",
	"state",
	"state_count",
	"state_timestamp",
	"retry_count",
	"next_attempt_at",
	"error_detail",
	"lease_owner",
	"lease_expires_at",
	"updated_at",
}

type IssuanceProcessStore struct {
	table tableStore[issuanceProcessRecord]
}

func NewIssuanceProcessStore(db *bun.DB) (*IssuanceProcessStore, error) {
	table, err := newTableStore(db, issuanceProcessHandlers(), issuanceProcessEntity, issuanceProcessColumns)
	if err != nil {
		return nil, err
	}
	return &IssuanceProcessStore{table: table}, nil
}

func (s *IssuanceProcessStore) Create(ctx context.Context, process core.IssuanceProcess) (core.IssuanceProcess, error) {
	if s == nil || !s.table.configured() {
		return core.IssuanceProcess{}, notConfigured("issuance process")
	}
	record := newIssuanceProcessRecord(process, time.Now().UTC())
	if err := s.table.insert(ctx, record, record.ID); err != nil {
		return core.IssuanceProcess{}, err
	}
	return record.toDomain(), nil
}

func (s *IssuanceProcessStore) DeleteByID(ctx context.Context, id string) error {
	if s == nil || !s.table.configured() {
		return notConfigured("issuance process")
	}
	return s.table.deleteByID(ctx, id)
}

func (s *IssuanceProcessStore) FindByID(ctx context.Context, id string) (core.IssuanceProcess, error) {
	if s == nil || !s.table.configured() {
		return core.IssuanceProcess{}, notConfigured("issuance process")
	}
	record, err := s.table.findBy(ctx, "id", id)
	if err != nil {
		return core.IssuanceProcess{}, err
	}
	return record.toDomain(), nil
}

func (s *IssuanceProcessStore) Query(ctx context.Context, spec core.QuerySpec) ([]core.IssuanceProcess, error) {
	if s == nil || !s.table.configured() {
		return nil, notConfigured("issuance process")
	}
	records, err := s.table.query(ctx, spec)
	if err != nil {
		return nil, err
	}
	out := make([]core.IssuanceProcess, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}

// ClaimNext leases up to req.Limit due processes in one statement. The
// outer WHERE repeats the lease predicate so a concurrent claimer that lost
// the race updates nothing. The lease token is fresh for every claim, so
// re-claims by the same owner fence off the previous holder.
func (s *IssuanceProcessStore) ClaimNext(ctx context.Context, req core.ClaimRequest) ([]core.ClaimedProcess, error) {
	if s == nil || !s.table.configured() {
		return nil, notConfigured("issuance process")
	}
	owner := strings.TrimSpace(req.Owner)
	if owner == "" {
		return nil, queryError("sqlstore: lease owner is required", nil)
	}
	if len(req.States) == 0 {
		return []core.ClaimedProcess{}, nil
	}
	token := owner + "/" + uuid.NewString()
	limit := req.Limit
	if limit <= 0 {
		limit = 1
	}
	now := req.Now.UTC()
	if req.Now.IsZero() {
		now = time.Now().UTC()
	}
	leaseUntil := now.Add(req.LeaseDuration)
	states := make([]string, 0, len(req.States))
	for _, state := range req.States {
		states = append(states, string(state))
	}

	query := `
WITH claimable AS (
	SELECT id
	FROM issuer_issuance_processes
	WHERE state IN (?)
	  AND (lease_owner IS NULL OR lease_expires_at IS NULL OR lease_expires_at <= ?)
	  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
	ORDER BY state_timestamp ASC, id ASC
	LIMIT ?
)
UPDATE issuer_issuance_processes
SET lease_owner = ?, lease_expires_at = ?
WHERE id IN (SELECT id FROM claimable)
  AND (lease_owner IS NULL OR lease_expires_at IS NULL OR lease_expires_at <= ?)
RETURNING
	id,
	participant_id,
	issuer_context_id,
	holder_pid,
	claims,
	credential_definitions,
	credential_formats,
	state,
	state_count,
	state_timestamp,
	retry_count,
	next_attempt_at,
	error_detail,
	lease_owner,
	lease_expires_at,
	created_at,
	updated_at
`
	var records []issuanceProcessRecord
	if err := conn(ctx, s.table.db).NewRaw(
		query,
		bun.In(states),
		now,
		now,
		limit,
		token,
		leaseUntil,
		now,
	).Scan(ctx, &records); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].StateTimestamp.Equal(records[j].StateTimestamp) {
			return records[i].StateTimestamp.Before(records[j].StateTimestamp)
		}
		return records[i].ID < records[j].ID
	})
	out := make([]core.ClaimedProcess, 0, len(records))
	for i := range records {
		out = append(out, core.ClaimedProcess{
			Process: records[i].toDomain(),
			Lease: core.ProcessLease{
				Token:     token,
				State:     core.IssuanceProcessState(records[i].State),
				ExpiresAt: leaseUntil,
			},
		})
	}
	return out, nil
}

// Update persists the process only while lease is the live lease on the
// row and the row is still in the claimed state. The lease is released in
// the same statement.
func (s *IssuanceProcessStore) Update(ctx context.Context, process core.IssuanceProcess, lease core.ProcessLease, now time.Time) (core.IssuanceProcess, error) {
	if s == nil || !s.table.configured() {
		return core.IssuanceProcess{}, notConfigured("issuance process")
	}
	if now.IsZero() {
		now = time.Now()
	}
	record := newIssuanceProcessRecord(process, time.Now().UTC())

	result, err := conn(ctx, s.table.db).NewUpdate().
		Model(record).
		Column(issuanceProcessColumnsWritable...).
		Where("id = ?", record.ID).
		Where("lease_owner = ?", strings.TrimSpace(lease.Token)).
		Where("lease_expires_at > ?", now.UTC()).
		Where("state = ?", string(lease.State)).
		Exec(ctx)
	if err != nil {
		return core.IssuanceProcess{}, err
	}
	affected, err := affectedRows(result)
	if err != nil {
		return core.IssuanceProcess{}, err
	}
	if affected == 0 {
		if _, findErr := s.table.findBy(ctx, "id", record.ID); findErr != nil {
			return core.IssuanceProcess{}, findErr
		}
		return core.IssuanceProcess{}, core.NewConflictStoreError(issuanceProcessEntity, record.ID)
	}
	return record.toDomain(), nil
}
