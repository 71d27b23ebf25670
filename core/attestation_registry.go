package core

import (
	"sort"
	"strings"
	"sync"
)

// AttestationSourceRegistry maps attestation types to source factories.
// Registration is additive and last-write-wins; there is no removal.
type AttestationSourceRegistry struct {
	mu        sync.RWMutex
	factories map[string]AttestationSourceFactory
}

func NewAttestationSourceRegistry() *AttestationSourceRegistry {
	return &AttestationSourceRegistry{
		factories: map[string]AttestationSourceFactory{},
	}
}

func (r *AttestationSourceRegistry) RegisterFactory(attestationType string, factory AttestationSourceFactory) {
	if r == nil || factory == nil {
		return
	}
	attestationType = strings.TrimSpace(attestationType)
	if attestationType == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[attestationType] = factory
}

func (r *AttestationSourceRegistry) Factory(attestationType string) (AttestationSourceFactory, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[strings.TrimSpace(attestationType)]
	return factory, ok
}

func (r *AttestationSourceRegistry) RegisteredTypes() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for attestationType := range r.factories {
		types = append(types, attestationType)
	}
	sort.Strings(types)
	return types
}

var _ AttestationRegistry = (*AttestationSourceRegistry)(nil)
