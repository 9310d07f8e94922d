package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceStore_ReplayRejected(t *testing.T) {
	_, client := newTestClient(t)
	store := NewNonceStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "bank-transfer", "nonce-xyz", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CheckAndSet(ctx, "bank-transfer", "nonce-xyz", 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "replayed nonce should return false")
}

func TestNonceStore_ScopedPerProvider(t *testing.T) {
	_, client := newTestClient(t)
	store := NewNonceStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "gateway-a", "nonce-123", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CheckAndSet(ctx, "gateway-b", "nonce-123", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "same nonce from another provider should be accepted")
}

func TestNonceStore_ExpiredNonce(t *testing.T) {
	s, client := newTestClient(t)
	store := NewNonceStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "gateway-a", "nonce-expire", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	s.FastForward(2 * time.Second)

	ok, err = store.CheckAndSet(ctx, "gateway-a", "nonce-expire", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired nonce should be accepted again")
}

func TestThrottleStore_Acquire(t *testing.T) {
	s, client := newTestClient(t)
	throttle := NewThrottleStore(client)
	ctx := context.Background()

	ok, err := throttle.Acquire(ctx, "requery:500", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = throttle.Acquire(ctx, "requery:500", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second caller inside the window is refused")

	ok, err = throttle.Acquire(ctx, "requery:501", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	s.FastForward(31 * time.Second)

	ok, err = throttle.Acquire(ctx, "requery:500", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
