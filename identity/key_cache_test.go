package identity

import (
	"context"
	"crypto"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachingKeyResolver(t *testing.T) {
	pub, _ := newHolderKey(t)
	keyID := holderDID + "#key-1"
	next := &countingKeyResolver{keys: map[string]crypto.PublicKey{keyID: pub}}
	cache := NewCachingKeyResolver(next, 8, time.Hour)

	for range 3 {
		key, err := cache.ResolveKey(context.Background(), keyID)
		require.NoError(t, err)
		assert.Equal(t, pub, key)
	}
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, 1, cache.Len())

	cache.Invalidate(keyID)
	_, err := cache.ResolveKey(context.Background(), keyID)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachingKeyResolver_DoesNotCacheFailures(t *testing.T) {
	next := &countingKeyResolver{err: errors.New("resolver down")}
	cache := NewCachingKeyResolver(next, 0, 0)

	_, err := cache.ResolveKey(context.Background(), "did:web:a#1")
	require.Error(t, err)
	_, err = cache.ResolveKey(context.Background(), "did:web:a#1")
	require.Error(t, err)
	assert.Equal(t, 2, next.calls)
	assert.Zero(t, cache.Len())
}

func TestStaticKeyResolver(t *testing.T) {
	pub, _ := newHolderKey(t)
	resolver := NewStaticKeyResolver()
	resolver.Register(" did:web:a#1 ", pub)

	key, err := resolver.ResolveKey(context.Background(), "did:web:a#1")
	require.NoError(t, err)
	assert.Equal(t, pub, key)

	_, err = resolver.ResolveKey(context.Background(), "did:web:a#2")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
