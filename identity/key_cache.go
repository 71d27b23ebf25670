package identity

import (
	"context"
	"crypto"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/goliatone/go-issuer/core"
)

const defaultKeyCacheSize = 256

// CachingKeyResolver keeps resolved keys in an LRU so a busy holder does not
// cost a DID resolution per request. Failures are never cached.
type CachingKeyResolver struct {
	next  core.KeyResolver
	cache gcache.Cache
}

func NewCachingKeyResolver(next core.KeyResolver, size int, ttl time.Duration) *CachingKeyResolver {
	if size <= 0 {
		size = defaultKeyCacheSize
	}
	builder := gcache.New(size).LRU()
	if ttl > 0 {
		builder = builder.Expiration(ttl)
	}
	return &CachingKeyResolver{next: next, cache: builder.Build()}
}

func (c *CachingKeyResolver) ResolveKey(ctx context.Context, keyID string) (crypto.PublicKey, error) {
	keyID = strings.TrimSpace(keyID)
	if c == nil || c.next == nil {
		return nil, ErrKeyNotFound
	}
	if cached, err := c.cache.Get(keyID); err == nil {
		return cached, nil
	} else if !errors.Is(err, gcache.KeyNotFoundError) {
		return nil, err
	}
	key, err := c.next.ResolveKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(keyID, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Invalidate drops a key, typically after the holder rotated it.
func (c *CachingKeyResolver) Invalidate(keyID string) {
	if c == nil {
		return
	}
	c.cache.Remove(strings.TrimSpace(keyID))
}

func (c *CachingKeyResolver) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len(true)
}

// StaticKeyResolver serves keys registered up front.
type StaticKeyResolver struct {
	mu   sync.RWMutex
	keys map[string]crypto.PublicKey
}

func NewStaticKeyResolver() *StaticKeyResolver {
	return &StaticKeyResolver{keys: map[string]crypto.PublicKey{}}
}

func (r *StaticKeyResolver) Register(keyID string, key crypto.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[strings.TrimSpace(keyID)] = key
}

func (r *StaticKeyResolver) ResolveKey(_ context.Context, keyID string) (crypto.PublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keys[strings.TrimSpace(keyID)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}
