package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

func TestFileSecureStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileSecureStore(t.TempDir(), []byte("correct horse"))
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "sepolia.app.standard.0xaa", "0xdeadbeef"))

	got, ok, err := s.Get(ctx, "sepolia.app.standard.0xaa")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0xdeadbeef", got)

	require.NoError(t, s.Delete(ctx, "sepolia.app.standard.0xaa"))
	_, ok, err = s.Get(ctx, "sepolia.app.standard.0xaa")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileSecureStoreWrongPassphrase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := NewFileSecureStore(dir, []byte("right"))
	require.NoError(t, err)
	require.NoError(t, s1.Put(ctx, "k", "secret"))

	s2, err := NewFileSecureStore(dir, []byte("wrong"))
	require.NoError(t, err)
	_, _, err = s2.Get(ctx, "k")
	require.Error(t, err)
	assert.Equal(t, walleterr.CodeEncryptionFailed, walleterr.CodeOf(err))
}

func TestFileSecureStoreHasNoBiometricGate(t *testing.T) {
	s, err := NewFileSecureStore(t.TempDir(), []byte("pw"))
	require.NoError(t, err)

	assert.False(t, s.SupportsBiometrics())
	err = s.PutProtected(context.Background(), "k", "v")
	assert.Equal(t, walleterr.CodeBiometricUnavailable, walleterr.CodeOf(err))
}

func TestBoltGeneralStoreRoundTripAndEnumeration(t *testing.T) {
	ctx := context.Background()
	s, err := NewBoltGeneralStore(filepath.Join(t.TempDir(), "general.db"))
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.SupportsEnumeration())

	require.NoError(t, s.Put(ctx, "wallet.app.0x1", "a"))
	require.NoError(t, s.Put(ctx, "wallet.app.0x2", "b"))
	require.NoError(t, s.Put(ctx, "keys.app", "c"))

	got, ok, err := s.Get(ctx, "keys.app")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c", got)

	keys, err := s.Keys(ctx, "wallet.app.")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"wallet.app.0x1", "wallet.app.0x2"}, keys)

	require.NoError(t, s.Delete(ctx, "wallet.app.0x1"))
	keys, err = s.Keys(ctx, "wallet.app.")
	require.NoError(t, err)
	assert.Equal(t, []string{"wallet.app.0x2"}, keys)

	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManagerOverFileAndBoltBackends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	sec, err := NewFileSecureStore(filepath.Join(dir, "secure"), []byte("pw"))
	require.NoError(t, err)
	gen, err := NewBoltGeneralStore(filepath.Join(dir, "general.db"))
	require.NoError(t, err)
	defer gen.Close()

	m := NewManager(sec, gen)
	require.NoError(t, m.Initialize(ctx))

	require.NoError(t, m.StorePrivateKey(ctx, "0xk", "sepolia", "app", "standard-guardian", "0xaddr", false))
	got, err := m.GetPrivateKey(ctx, "sepolia", "app", "standard-guardian", "0xaddr", false)
	require.NoError(t, err)
	assert.Equal(t, "0xk", got)

	entries, err := m.GetAvailableKeys(ctx, "app")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sepolia.app.standard-guardian.0xaddr", entries[0].KeyID())
}
