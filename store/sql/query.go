package sqlstore

import (
	"fmt"
	"math"
	"net/http"
	"reflect"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-issuer/core"
	"github.com/uptrace/bun"
)

// columnMap translates domain field names used in core.QuerySpec to
// columns of one table.
type columnMap map[string]string

var (
	attestationDefinitionColumns = columnMap{
		"id":                   "id",
		"attestationType":      "attestation_type",
		"participantContextId": "participant_context_id",
	}
	participantColumns = columnMap{
		"participantId": "id",
		"id":            "id",
		"did":           "did",
		"name":          "name",
	}
	credentialDefinitionColumns = columnMap{
		"id":                   "id",
		"credentialType":       "credential_type",
		"participantContextId": "participant_context_id",
		"dataModel":            "data_model",
	}
	issuanceProcessColumns = columnMap{
		"id":              "id",
		"participantId":   "participant_id",
		"issuerContextId": "issuer_context_id",
		"holderPid":       "holder_pid",
		"state":           "state",
	}
	credentialColumns = columnMap{
		"id":                   "id",
		"participantContextId": "participant_context_id",
		"issuerId":             "issuer_id",
		"holderId":             "holder_id",
		"state":                "state",
		"format":               "format",
	}
)

func (m columnMap) column(field string) (string, error) {
	column, ok := m[strings.TrimSpace(field)]
	if !ok {
		return "", queryError(fmt.Sprintf("sqlstore: unsupported query field %q", field), map[string]any{"field": field})
	}
	return column, nil
}

// applySpec adds the filter, ordering and paging of spec to q. Results are
// ordered by id unless the query names a sort field.
func applySpec(q *bun.SelectQuery, spec core.QuerySpec, columns columnMap) (*bun.SelectQuery, error) {
	for _, criterion := range spec.Filter {
		column, err := columns.column(criterion.Field)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(strings.TrimSpace(criterion.Operator)) {
		case core.QueryOperatorEqual, "":
			q = q.Where(fmt.Sprintf("?TableAlias.%s = ?", column), scalar(criterion.Value))
		case core.QueryOperatorNotEqual:
			q = q.Where(fmt.Sprintf("?TableAlias.%s <> ?", column), scalar(criterion.Value))
		case core.QueryOperatorIn:
			values := listValues(criterion.Value)
			if len(values) == 0 {
				q = q.Where("1 = 0")
				continue
			}
			q = q.Where(fmt.Sprintf("?TableAlias.%s IN (?)", column), bun.In(values))
		default:
			return nil, queryError(
				fmt.Sprintf("sqlstore: unsupported query operator %q", criterion.Operator),
				map[string]any{"field": criterion.Field, "operator": criterion.Operator},
			)
		}
	}

	sortColumn := "id"
	if strings.TrimSpace(spec.SortField) != "" {
		column, err := columns.column(spec.SortField)
		if err != nil {
			return nil, err
		}
		sortColumn = column
	}
	direction := "ASC"
	if spec.SortDescending {
		direction = "DESC"
	}
	q = q.OrderExpr(fmt.Sprintf("?TableAlias.%s %s", sortColumn, direction))
	if sortColumn != "id" {
		q = q.OrderExpr("?TableAlias.id ASC")
	}

	if spec.Limit > 0 {
		q = q.Limit(spec.Limit)
	}
	if spec.Offset > 0 {
		if spec.Limit <= 0 {
			// sqlite rejects OFFSET without LIMIT
			q = q.Limit(math.MaxInt32)
		}
		q = q.Offset(spec.Offset)
	}
	return q, nil
}

// scalar unwraps named string types so drivers bind them as text.
func scalar(value any) any {
	rv := reflect.ValueOf(value)
	if rv.IsValid() && rv.Kind() == reflect.String {
		return rv.String()
	}
	return value
}

func listValues(value any) []any {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return nil
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{scalar(value)}
	}
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out = append(out, scalar(rv.Index(i).Interface()))
	}
	return out
}

func queryError(message string, metadata map[string]any) error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.IssuerErrorBadInput).
		WithMetadata(metadata)
}
