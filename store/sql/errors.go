package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-issuer/core"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Category == goerrors.CategoryConflict {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key")
}

func mapCreateError(err error, entity string, id string) error {
	if isUniqueViolation(err) {
		return core.NewAlreadyExistsStoreError(entity, id)
	}
	return err
}

func mapReadError(err error, entity string, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewNotFoundStoreError(entity, id)
	}
	return err
}

func notConfigured(store string) error {
	return fmt.Errorf("sqlstore: %s store is not configured", store)
}

func affectedRows(result sql.Result) (int64, error) {
	if result == nil {
		return 0, nil
	}
	return result.RowsAffected()
}
