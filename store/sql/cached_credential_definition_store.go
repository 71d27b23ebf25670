package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/goliatone/go-issuer/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const credentialDefinitionCacheKeyPrefix = "go-issuer::credential_definition::v1"

// CachedCredentialDefinitionStore serves FindByID and credential type
// lookups from a read-through cache. Every write goes to the base store and
// evicts the affected id and type entries.
type CachedCredentialDefinitionStore struct {
	base  core.CredentialDefinitionStore
	cache repositorycache.CacheService
}

func NewCachedCredentialDefinitionStore(
	base core.CredentialDefinitionStore,
	cacheService repositorycache.CacheService,
) (*CachedCredentialDefinitionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base credential definition store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: credential definition cache service is required")
	}
	return &CachedCredentialDefinitionStore{base: base, cache: cacheService}, nil
}

// CredentialDefinitionIDCacheKey returns
// go-issuer::credential_definition::v1::id::<id> with the id path escaped.
func CredentialDefinitionIDCacheKey(id string) string {
	return strings.Join([]string{credentialDefinitionCacheKeyPrefix, "id", url.PathEscape(strings.TrimSpace(id))}, "::")
}

// CredentialDefinitionTypeCacheKey returns
// go-issuer::credential_definition::v1::type::<credential type>.
func CredentialDefinitionTypeCacheKey(credentialType string) string {
	return strings.Join([]string{credentialDefinitionCacheKeyPrefix, "type", url.PathEscape(strings.TrimSpace(credentialType))}, "::")
}

func (s *CachedCredentialDefinitionStore) Create(ctx context.Context, def core.CredentialDefinition) (core.CredentialDefinition, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.CredentialDefinition{}, notConfigured("cached credential definition")
	}
	created, err := s.base.Create(ctx, def)
	if err != nil {
		return core.CredentialDefinition{}, err
	}
	s.invalidate(ctx, created.ID, created.CredentialType)
	return created, nil
}

func (s *CachedCredentialDefinitionStore) Update(ctx context.Context, def core.CredentialDefinition) (core.CredentialDefinition, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.CredentialDefinition{}, notConfigured("cached credential definition")
	}
	previous, findErr := s.base.FindByID(ctx, def.ID)
	updated, err := s.base.Update(ctx, def)
	if err != nil {
		return core.CredentialDefinition{}, err
	}
	if findErr == nil && previous.CredentialType != updated.CredentialType {
		s.invalidate(ctx, "", previous.CredentialType)
	}
	s.invalidate(ctx, updated.ID, updated.CredentialType)
	return updated, nil
}

func (s *CachedCredentialDefinitionStore) DeleteByID(ctx context.Context, id string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return notConfigured("cached credential definition")
	}
	previous, findErr := s.base.FindByID(ctx, id)
	if err := s.base.DeleteByID(ctx, id); err != nil {
		return err
	}
	credentialType := ""
	if findErr == nil {
		credentialType = previous.CredentialType
	}
	s.invalidate(ctx, id, credentialType)
	return nil
}

func (s *CachedCredentialDefinitionStore) FindByID(ctx context.Context, id string) (core.CredentialDefinition, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.CredentialDefinition{}, notConfigured("cached credential definition")
	}
	def, err := repositorycache.GetOrFetch(ctx, s.cache, CredentialDefinitionIDCacheKey(id), func(ctx context.Context) (core.CredentialDefinition, error) {
		return s.base.FindByID(ctx, id)
	})
	if err != nil {
		return core.CredentialDefinition{}, err
	}
	return cloneCredentialDefinition(def), nil
}

// Query answers single credential type lookups from the cache and passes
// every other spec to the base store.
func (s *CachedCredentialDefinitionStore) Query(ctx context.Context, spec core.QuerySpec) ([]core.CredentialDefinition, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, notConfigured("cached credential definition")
	}
	credentialType, ok := credentialTypeLookup(spec)
	if !ok {
		return s.base.Query(ctx, spec)
	}
	defs, err := repositorycache.GetOrFetch(ctx, s.cache, CredentialDefinitionTypeCacheKey(credentialType), func(ctx context.Context) ([]core.CredentialDefinition, error) {
		return s.base.Query(ctx, spec)
	})
	if err != nil {
		return nil, err
	}
	out := make([]core.CredentialDefinition, 0, len(defs))
	for _, def := range defs {
		out = append(out, cloneCredentialDefinition(def))
	}
	return out, nil
}

// invalidate drops cached entries. A missing entry is not an error and a
// failed eviction only costs a stale read until the TTL passes.
func (s *CachedCredentialDefinitionStore) invalidate(ctx context.Context, id string, credentialType string) {
	if strings.TrimSpace(id) != "" {
		_ = s.cache.Delete(ctx, CredentialDefinitionIDCacheKey(id))
	}
	if strings.TrimSpace(credentialType) != "" {
		_ = s.cache.Delete(ctx, CredentialDefinitionTypeCacheKey(credentialType))
	}
}

func credentialTypeLookup(spec core.QuerySpec) (string, bool) {
	if len(spec.Filter) != 1 || spec.Offset != 0 || spec.Limit != 0 || spec.SortField != "" || spec.SortDescending {
		return "", false
	}
	criterion := spec.Filter[0]
	if criterion.Field != "credentialType" || criterion.Operator != core.QueryOperatorEqual {
		return "", false
	}
	value, ok := criterion.Value.(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

func cloneCredentialDefinition(def core.CredentialDefinition) core.CredentialDefinition {
	cloned := def
	cloned.Attestations = slices.Clone(def.Attestations)
	cloned.Rules = slices.Clone(def.Rules)
	cloned.Mappings = slices.Clone(def.Mappings)
	cloned.Formats = slices.Clone(def.Formats)
	return cloned
}

var _ core.CredentialDefinitionStore = (*CachedCredentialDefinitionStore)(nil)
