package keys

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkwallet-io/starkwallet-client/internal/log"
	"github.com/starkwallet-io/starkwallet-client/internal/starkcurve"
	"github.com/starkwallet-io/starkwallet-client/internal/storage"
	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

func init() { log.Silence() }

func newTestKeyManager(t *testing.T) (*Manager, *storage.Manager) {
	t.Helper()
	store := storage.NewManager(storage.NewMemorySecureStore(false), storage.NewMemoryGeneralStore())
	require.NoError(t, store.Initialize(context.Background()))
	return NewManager(starkcurve.New(), store), store
}

func TestGenerateProducesCanonicalKeys(t *testing.T) {
	m, _ := newTestKeyManager(t)

	key, err := m.Generate(context.Background())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "0x"))
	assert.Len(t, key, 2+64)
	assert.Equal(t, strings.ToLower(key), key)
	assert.False(t, m.LowEntropyMode())

	// Normalizing our own output is a no-op.
	again, err := m.Import(key)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

// dryCurve keeps real curve semantics but has no randomness.
type dryCurve struct{ starkcurve.Stark }

func (dryCurve) RandomScalar() (*big.Int, error) {
	return nil, errors.New("entropy source unavailable")
}

func TestGenerateFallsBackWhenEntropyFails(t *testing.T) {
	store := storage.NewManager(storage.NewMemorySecureStore(false), storage.NewMemoryGeneralStore())
	require.NoError(t, store.Initialize(context.Background()))
	m := NewManager(dryCurve{}, store)

	key, err := m.Generate(context.Background())
	require.NoError(t, err)
	assert.Len(t, key, 2+64)
	assert.True(t, m.LowEntropyMode(), "downgrade must be observable")

	// The fallback still yields valid, distinct keys in batches.
	out, err := m.GenerateMultiple(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.NotEqual(t, out[0], out[1])
}

func TestImportNormalizesShortKeys(t *testing.T) {
	m, _ := newTestKeyManager(t)

	got, err := m.Import("0xabcd")
	require.NoError(t, err)
	assert.Len(t, got, 2+64)
	assert.True(t, strings.HasSuffix(got, "abcd"))
	assert.True(t, strings.HasPrefix(got, "0x0"))
}

func TestImportRejectsMalformedKeys(t *testing.T) {
	m, _ := newTestKeyManager(t)

	cases := map[string]string{
		"empty":       "",
		"prefix only": "0x",
		"odd length":  "0xabc",
		"non-hex":     "0xzz" + strings.Repeat("00", 31),
		"too long":    "0x" + strings.Repeat("ab", 33),
		"zero scalar": "0x" + strings.Repeat("00", 32),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.Import(raw)
			require.Error(t, err)
			assert.Equal(t, walleterr.CodeInvalidPrivateKey, walleterr.CodeOf(err))
		})
	}
}

func TestStoreRejectsInvalidKeyBeforeWriting(t *testing.T) {
	m, store := newTestKeyManager(t)
	ctx := context.Background()

	err := m.Store(ctx, "0xnothex", "sepolia", "app", "standard-guardian", "0xaa", false)
	require.Error(t, err)
	assert.Equal(t, walleterr.CodeInvalidPrivateKey, walleterr.CodeOf(err))

	entries, err := store.GetAvailableKeys(ctx, "app")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateMultipleBounds(t *testing.T) {
	m, _ := newTestKeyManager(t)
	ctx := context.Background()

	for _, n := range []int{0, -1, 101} {
		_, err := m.GenerateMultiple(ctx, n)
		require.Error(t, err, "count %d", n)
	}

	out, err := m.GenerateMultiple(ctx, 5)
	require.NoError(t, err)
	require.Len(t, out, 5)

	seen := map[string]bool{}
	for _, k := range out {
		assert.False(t, seen[k], "duplicate key in batch")
		seen[k] = true
	}
}

func TestGetRefreshesLastUsed(t *testing.T) {
	m, store := newTestKeyManager(t)
	ctx := context.Background()

	key, err := m.Generate(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Store(ctx, key, "sepolia", "app", "standard-guardian", "0xaa", false))

	_, ok, err := store.GetWalletMetadata(ctx, "app", "0xaa")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := m.Get(ctx, "sepolia", "app", "standard-guardian", "0xaa", false)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	meta, ok, err := store.GetWalletMetadata(ctx, "app", "0xaa")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, meta.LastUsed)
}
