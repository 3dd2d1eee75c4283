package keyreg

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
)

func keyRecord(keyID, owner string) *contracts.PublicKeyRecord {
	return &contracts.PublicKeyRecord{
		KeyID:        keyID,
		PublicKey:    strings.Repeat("ab", 32),
		Owner:        owner,
		RegisteredAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestMemoryRegistry_RegisterAndGet(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, reg.RegisterPublicKey(ctx, keyRecord("key-1", "alice")))

	got, err := reg.GetPublicKey(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Owner)

	// Absent keys are (nil, nil), not an error.
	missing, err := reg.GetPublicKey(ctx, "key-missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryRegistry_DuplicateRegistration(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, reg.RegisterPublicKey(ctx, keyRecord("key-1", "alice")))
	err := reg.RegisterPublicKey(ctx, keyRecord("key-1", "bob"))
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestMemoryRegistry_Revoke(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, reg.RegisterPublicKey(ctx, keyRecord("key-1", "alice")))

	require.NoError(t, reg.RevokeKey(ctx, "key-1"))
	got, err := reg.GetPublicKey(ctx, "key-1")
	require.NoError(t, err)
	assert.True(t, got.Revoked)

	// Revoking twice is a no-op.
	require.NoError(t, reg.RevokeKey(ctx, "key-1"))

	assert.ErrorIs(t, reg.RevokeKey(ctx, "key-missing"), ErrKeyNotFound)
}

func TestMemoryRegistry_ListKeysByOwner(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, reg.RegisterPublicKey(ctx, keyRecord("key-1", "alice")))
	require.NoError(t, reg.RegisterPublicKey(ctx, keyRecord("key-2", "alice")))
	require.NoError(t, reg.RegisterPublicKey(ctx, keyRecord("key-3", "bob")))

	keys, err := reg.ListKeys(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	keys, err = reg.ListKeys(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryRegistry_ValidatesRecords(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	assert.Error(t, reg.RegisterPublicKey(ctx, nil))

	bad := keyRecord("key-1", "alice")
	bad.PublicKey = "not-hex"
	assert.Error(t, reg.RegisterPublicKey(ctx, bad))

	short := keyRecord("key-2", "alice")
	short.PublicKey = "abcd"
	assert.Error(t, reg.RegisterPublicKey(ctx, short))

	noOwner := keyRecord("key-3", "")
	assert.Error(t, reg.RegisterPublicKey(ctx, noOwner))
}

func TestMemoryRegistry_HonorsCancellation(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reg.GetPublicKey(ctx, "key-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, reg.RegisterPublicKey(ctx, keyRecord("key-1", "alice")), context.Canceled)
	assert.ErrorIs(t, reg.RevokeKey(ctx, "key-1"), context.Canceled)
}

func TestMemoryRegistry_GetReturnsCopy(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, reg.RegisterPublicKey(ctx, keyRecord("key-1", "alice")))

	first, err := reg.GetPublicKey(ctx, "key-1")
	require.NoError(t, err)
	first.Revoked = true

	second, err := reg.GetPublicKey(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, second.Revoked)
}
