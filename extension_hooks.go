package issuer

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-issuer/core"
	"github.com/goliatone/go-issuer/rules"
)

// AttestationSourcePack contributes source factories keyed by attestation
// type.
type AttestationSourcePack struct {
	Name      string
	Factories map[string]core.AttestationSourceFactory
}

// RulePack contributes rule factories keyed by rule type.
type RulePack struct {
	Name      string
	Factories map[string]rules.Factory
}

// RuleRegistrar is implemented by *rules.Engine.
type RuleRegistrar interface {
	Register(ruleType string, factory rules.Factory)
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	attestationPacks map[string]AttestationSourcePack
	rulePacks        map[string]RulePack
	bundles          map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		attestationPacks: map[string]AttestationSourcePack{},
		rulePacks:        map[string]RulePack{},
		bundles:          map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterAttestationSourcePack(pack AttestationSourcePack) error {
	if h == nil {
		return fmt.Errorf("issuer: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("issuer: attestation source pack name is required")
	}
	if len(pack.Factories) == 0 {
		return fmt.Errorf("issuer: attestation source pack %q has no factories", name)
	}

	normalized := AttestationSourcePack{
		Name:      name,
		Factories: make(map[string]core.AttestationSourceFactory, len(pack.Factories)),
	}
	for attestationType, factory := range pack.Factories {
		attestationType = strings.TrimSpace(attestationType)
		if attestationType == "" {
			return fmt.Errorf("issuer: attestation source pack %q has an empty attestation type", name)
		}
		if factory == nil {
			return fmt.Errorf("issuer: attestation source pack %q has nil factory for %q", name, attestationType)
		}
		normalized.Factories[attestationType] = factory
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.attestationPacks[name]; exists {
		return fmt.Errorf("issuer: attestation source pack %q already registered", name)
	}
	h.attestationPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterRulePack(pack RulePack) error {
	if h == nil {
		return fmt.Errorf("issuer: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("issuer: rule pack name is required")
	}
	if len(pack.Factories) == 0 {
		return fmt.Errorf("issuer: rule pack %q has no factories", name)
	}

	normalized := RulePack{
		Name:      name,
		Factories: make(map[string]rules.Factory, len(pack.Factories)),
	}
	for ruleType, factory := range pack.Factories {
		ruleType = strings.TrimSpace(ruleType)
		if ruleType == "" || factory == nil {
			return fmt.Errorf("issuer: rule pack %q has an invalid factory entry", name)
		}
		normalized.Factories[ruleType] = factory
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.rulePacks[name]; exists {
		return fmt.Errorf("issuer: rule pack %q already registered", name)
	}
	h.rulePacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("issuer: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("issuer: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("issuer: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("issuer: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyAttestationSourcePacks registers every pack in name order. A type
// contributed by two packs ends with the later pack's factory.
func (h *ExtensionHooks) ApplyAttestationSourcePacks(registry core.AttestationRegistry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("issuer: attestation registry is required")
	}
	for _, pack := range h.AttestationSourcePacks() {
		for _, attestationType := range sortedKeys(pack.Factories) {
			registry.RegisterFactory(attestationType, pack.Factories[attestationType])
		}
	}
	return nil
}

func (h *ExtensionHooks) ApplyRulePacks(registrar RuleRegistrar) error {
	if h == nil {
		return nil
	}
	if registrar == nil {
		return fmt.Errorf("issuer: rule registrar is required")
	}
	h.mu.RLock()
	names := sortedKeys(h.rulePacks)
	packs := make([]RulePack, 0, len(names))
	for _, name := range names {
		packs = append(packs, h.rulePacks[name])
	}
	h.mu.RUnlock()

	for _, pack := range packs {
		for _, ruleType := range sortedKeys(pack.Factories) {
			registrar.Register(ruleType, pack.Factories[ruleType])
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("issuer: command/query service is required")
	}

	h.mu.RLock()
	names := sortedKeys(h.bundles)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) AttestationSourcePacks() []AttestationSourcePack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]AttestationSourcePack, 0, len(h.attestationPacks))
	for _, name := range sortedKeys(h.attestationPacks) {
		pack := h.attestationPacks[name]
		factories := make(map[string]core.AttestationSourceFactory, len(pack.Factories))
		for attestationType, factory := range pack.Factories {
			factories[attestationType] = factory
		}
		out = append(out, AttestationSourcePack{Name: pack.Name, Factories: factories})
	}
	return out
}

// AttestationTypes lists every attestation type contributed by a pack.
func (h *ExtensionHooks) AttestationTypes() []string {
	seen := map[string]struct{}{}
	for _, pack := range h.AttestationSourcePacks() {
		for attestationType := range pack.Factories {
			seen[attestationType] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.bundles)
}

func sortedKeys[V any](values map[string]V) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

var _ RuleRegistrar = (*rules.Engine)(nil)
