// Package rules evaluates credential issuance rules against gathered claims.
package rules

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

const TypeExpression = "expression"

var (
	ErrUnknownRuleType  = errors.New("rules: unknown rule type")
	ErrInvalidRule      = errors.New("rules: invalid rule configuration")
	ErrRuleNotSatisfied = errors.New("rules: rule not satisfied")
)

// Definition is a named predicate with a type specific configuration.
type Definition struct {
	Type          string         `json:"type"`
	Configuration map[string]any `json:"configuration"`
}

// Rule is a compiled Definition.
type Rule interface {
	Evaluate(ctx context.Context, claims map[string]any) error
}

// Factory compiles a rule configuration.
type Factory func(configuration map[string]any) (Rule, error)

// ViolationError reports the first rule that rejected the claims.
type ViolationError struct {
	Index  int
	Type   string
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("rules: rule %d (%s) not satisfied: %s", e.Index, e.Type, e.Reason)
}

func (e *ViolationError) Unwrap() error {
	return ErrRuleNotSatisfied
}

type Engine struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

type Option func(*Engine)

func WithFactory(ruleType string, factory Factory) Option {
	return func(e *Engine) {
		e.register(ruleType, factory)
	}
}

// NewEngine returns an engine with the expression rule registered.
func NewEngine(opts ...Option) *Engine {
	engine := &Engine{factories: map[string]Factory{}}
	engine.register(TypeExpression, NewExpressionRule)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(engine)
	}
	return engine
}

func (e *Engine) Register(ruleType string, factory Factory) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.register(ruleType, factory)
}

func (e *Engine) register(ruleType string, factory Factory) {
	ruleType = strings.TrimSpace(ruleType)
	if ruleType == "" || factory == nil {
		return
	}
	e.factories[ruleType] = factory
}

func (e *Engine) Types() []string {
	if e == nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.factories))
	for ruleType := range e.factories {
		out = append(out, ruleType)
	}
	sort.Strings(out)
	return out
}

// Validate compiles a definition without evaluating it.
func (e *Engine) Validate(def Definition) error {
	_, err := e.compile(def)
	return err
}

// Evaluate runs every definition in order and stops at the first violation.
func (e *Engine) Evaluate(ctx context.Context, defs []Definition, claims map[string]any) error {
	for index, def := range defs {
		rule, err := e.compile(def)
		if err != nil {
			return err
		}
		if err := rule.Evaluate(ctx, claims); err != nil {
			if errors.Is(err, ErrRuleNotSatisfied) {
				return &ViolationError{Index: index, Type: def.Type, Reason: reason(err)}
			}
			return err
		}
	}
	return nil
}

func (e *Engine) compile(def Definition) (Rule, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: engine is nil", ErrUnknownRuleType)
	}
	ruleType := strings.TrimSpace(def.Type)
	e.mu.RLock()
	factory, ok := e.factories[ruleType]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleType, ruleType)
	}
	rule, err := factory(def.Configuration)
	if err != nil {
		if errors.Is(err, ErrInvalidRule) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return rule, nil
}

func reason(err error) string {
	message := err.Error()
	return strings.TrimSpace(strings.TrimPrefix(message, ErrRuleNotSatisfied.Error()+":"))
}
