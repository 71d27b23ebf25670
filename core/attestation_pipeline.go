package core

import (
	"context"
	"fmt"
	"strings"
)

// ResolutionPolicy decides what happens when an attestation id does not
// resolve to a stored definition.
type ResolutionPolicy string

const (
	// ResolutionStrict treats a dangling id as a programming error. The
	// pipeline uses it because its ids come from validated credential
	// definitions.
	ResolutionStrict ResolutionPolicy = "strict"
	// ResolutionTolerant silently omits dangling ids. Participant listings use it.
	ResolutionTolerant ResolutionPolicy = "tolerant"
)

// AttestationPipeline resolves attestation definitions into claims.
// Later definitions overwrite claim keys produced by earlier ones.
type AttestationPipeline struct {
	store    AttestationDefinitionStore
	registry AttestationRegistry
	logger   Logger
}

func NewAttestationPipeline(store AttestationDefinitionStore, registry AttestationRegistry, logger Logger) *AttestationPipeline {
	return &AttestationPipeline{store: store, registry: registry, logger: logger}
}

// Evaluate runs the source of every id in order and merges their claims.
// The first failing source aborts evaluation and no claims are returned.
func (p *AttestationPipeline) Evaluate(ctx context.Context, attestationIDs []string, actx AttestationContext) (map[string]any, error) {
	if p == nil || p.store == nil || p.registry == nil {
		return nil, programmingError("core: attestation pipeline is not configured")
	}

	claims := map[string]any{}
	for _, id := range dedupeStrings(attestationIDs) {
		def, _, err := resolveAttestationDefinition(ctx, p.store, id, ResolutionStrict)
		if err != nil {
			return nil, err
		}

		factory, ok := p.registry.Factory(def.AttestationType)
		if !ok {
			return nil, programmingError(fmt.Sprintf("core: no attestation source factory registered for type %q", def.AttestationType))
		}
		source, err := factory.CreateSource(def)
		if err != nil {
			return nil, processingError(err, fmt.Sprintf("core: create attestation source %q failed", id))
		}
		if source == nil {
			return nil, programmingError(fmt.Sprintf("core: attestation factory for type %q returned no source", def.AttestationType))
		}

		result, err := source.Execute(ctx, actx)
		if err != nil {
			emitLog(ctx, p.logger, "debug", "attestation source failed", map[string]any{
				"attestation_id":   id,
				"attestation_type": def.AttestationType,
				"error":            err.Error(),
			})
			return nil, processingError(err, fmt.Sprintf("core: attestation %q failed", id))
		}
		for key, value := range result {
			claims[key] = value
		}
	}
	return claims, nil
}

func resolveAttestationDefinition(
	ctx context.Context,
	store AttestationDefinitionStore,
	id string,
	policy ResolutionPolicy,
) (AttestationDefinition, bool, error) {
	def, err := store.FindByID(ctx, id)
	if err == nil {
		return def, true, nil
	}
	if !IsNotFound(err) {
		return AttestationDefinition{}, false, mapStoreError(err, "resolve attestation definition")
	}
	if policy == ResolutionTolerant {
		return AttestationDefinition{}, false, nil
	}
	return AttestationDefinition{}, false, programmingError(
		fmt.Sprintf("core: attestation definition %q referenced by a credential definition does not exist", id),
	)
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
