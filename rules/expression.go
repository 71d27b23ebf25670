package rules

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"
	"github.com/mitchellh/mapstructure"
)

// ExpressionConfig is the configuration of an "expression" rule, e.g.
// {"claim": "onboarding.signedDocuments", "operator": "eq", "value": true}.
type ExpressionConfig struct {
	Claim    string `mapstructure:"claim"`
	Operator string `mapstructure:"operator"`
	Value    any    `mapstructure:"value"`
}

const (
	OperatorEqual        = "eq"
	OperatorNotEqual     = "neq"
	OperatorGreater      = "gt"
	OperatorGreaterEqual = "geq"
	OperatorLess         = "lt"
	OperatorLessEqual    = "leq"
	OperatorIn           = "in"
	OperatorContains     = "contains"
	OperatorExists       = "exists"
)

var comparisonSymbols = map[string]string{
	OperatorEqual:        "==",
	OperatorNotEqual:     "!=",
	OperatorGreater:      ">",
	OperatorGreaterEqual: ">=",
	OperatorLess:         "<",
	OperatorLessEqual:    "<=",
	OperatorIn:           "in",
}

var language = gval.Full(jsonpath.PlaceholderExtension())

type expressionRule struct {
	claim      string
	operator   string
	value      any
	selector   gval.Evaluable
	comparison gval.Evaluable
}

func NewExpressionRule(configuration map[string]any) (Rule, error) {
	var cfg ExpressionConfig
	if err := mapstructure.Decode(configuration, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	claim := strings.TrimSpace(cfg.Claim)
	if claim == "" {
		return nil, fmt.Errorf("%w: expression claim is required", ErrInvalidRule)
	}
	operator := strings.ToLower(strings.TrimSpace(cfg.Operator))
	if operator == "" {
		return nil, fmt.Errorf("%w: expression operator is required", ErrInvalidRule)
	}

	selector, err := language.NewEvaluable(claimPath(claim))
	if err != nil {
		return nil, fmt.Errorf("%w: claim path %q: %v", ErrInvalidRule, claim, err)
	}
	rule := &expressionRule{
		claim:    claim,
		operator: operator,
		value:    normalize(cfg.Value),
		selector: selector,
	}

	switch operator {
	case OperatorExists, OperatorContains:
	default:
		symbol, ok := comparisonSymbols[operator]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalidRule, cfg.Operator)
		}
		if operator == OperatorIn {
			if _, isList := rule.value.([]any); !isList {
				return nil, fmt.Errorf("%w: operator %q requires a list value", ErrInvalidRule, operator)
			}
		}
		rule.comparison, err = language.NewEvaluable("claim " + symbol + " value")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
	}
	return rule, nil
}

func (r *expressionRule) Evaluate(ctx context.Context, claims map[string]any) error {
	if claims == nil {
		claims = map[string]any{}
	}
	actual, err := r.selector(ctx, claims)
	if err != nil {
		return fmt.Errorf("%w: claim %q not present", ErrRuleNotSatisfied, r.claim)
	}
	actual = normalize(actual)

	switch r.operator {
	case OperatorExists:
		if actual == nil {
			return fmt.Errorf("%w: claim %q not present", ErrRuleNotSatisfied, r.claim)
		}
		return nil
	case OperatorContains:
		if !containsValue(actual, r.value) {
			return fmt.Errorf("%w: claim %q does not contain %v", ErrRuleNotSatisfied, r.claim, r.value)
		}
		return nil
	}

	ok, err := r.comparison.EvalBool(ctx, map[string]any{"claim": actual, "value": r.value})
	if err != nil {
		return fmt.Errorf("%w: claim %q cannot be compared: %v", ErrRuleNotSatisfied, r.claim, err)
	}
	if !ok {
		return fmt.Errorf("%w: claim %q %s %v", ErrRuleNotSatisfied, r.claim, r.operator, r.value)
	}
	return nil
}

func claimPath(claim string) string {
	if strings.HasPrefix(claim, "$") {
		return claim
	}
	return "$." + claim
}

func containsValue(haystack any, needle any) bool {
	switch typed := haystack.(type) {
	case string:
		text, ok := needle.(string)
		return ok && strings.Contains(typed, text)
	case []any:
		for _, item := range typed {
			if reflect.DeepEqual(item, needle) {
				return true
			}
		}
	}
	return false
}

// normalize maps numeric kinds to float64 and typed slices to []any so that
// JSON decoded claims and Go literals compare equal.
func normalize(value any) any {
	if value == nil {
		return nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return value
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	}
	return value
}
