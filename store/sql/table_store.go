package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-issuer/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// tableStore holds the plumbing shared by the entity stores: inserts go
// through go-repository-bun, everything else through the bun query builder
// bound to the transaction found in ctx.
type tableStore[R any] struct {
	db      *bun.DB
	repo    repository.Repository[*R]
	entity  string
	columns columnMap
}

func newTableStore[R any](db *bun.DB, handlers repository.ModelHandlers[*R], entity string, columns columnMap) (tableStore[R], error) {
	if db == nil {
		return tableStore[R]{}, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*R](db, handlers)
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return tableStore[R]{}, fmt.Errorf("sqlstore: invalid %s repository wiring: %w", entity, err)
		}
	}
	return tableStore[R]{db: db, repo: repo, entity: entity, columns: columns}, nil
}

func (s tableStore[R]) configured() bool {
	return s.db != nil && s.repo != nil
}

func (s tableStore[R]) insert(ctx context.Context, record *R, id string) error {
	var err error
	if tx, ok := txFromContext(ctx); ok {
		_, err = s.repo.CreateTx(ctx, tx, record)
	} else {
		_, err = s.repo.Create(ctx, record)
	}
	if err != nil {
		return mapCreateError(err, s.entity, id)
	}
	return nil
}

// updateColumns writes columns of record by primary key.
func (s tableStore[R]) updateColumns(ctx context.Context, record *R, id string, columns ...string) error {
	result, err := conn(ctx, s.db).NewUpdate().
		Model(record).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return mapCreateError(err, s.entity, id)
	}
	affected, err := affectedRows(result)
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.NewNotFoundStoreError(s.entity, id)
	}
	return nil
}

func (s tableStore[R]) deleteByID(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	result, err := conn(ctx, s.db).NewDelete().
		Model((*R)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := affectedRows(result)
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.NewNotFoundStoreError(s.entity, id)
	}
	return nil
}

func (s tableStore[R]) findBy(ctx context.Context, column string, value string) (*R, error) {
	record := new(R)
	err := conn(ctx, s.db).NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), strings.TrimSpace(value)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapReadError(err, s.entity, value)
	}
	return record, nil
}

func (s tableStore[R]) query(ctx context.Context, spec core.QuerySpec) ([]R, error) {
	var records []R
	q, err := applySpec(conn(ctx, s.db).NewSelect().Model(&records), spec, s.columns)
	if err != nil {
		return nil, err
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return records, nil
}
