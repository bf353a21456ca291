package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkwallet-io/starkwallet-client/internal/log"
	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

func init() { log.Silence() }

const (
	testApp  = "app-1"
	testNet  = "sepolia"
	testType = "standard-guardian"
)

func newTestManager(t *testing.T) (*Manager, *MemorySecureStore, *MemoryGeneralStore) {
	t.Helper()
	sec := NewMemorySecureStore(false)
	gen := NewMemoryGeneralStore()
	m := NewManager(sec, gen)
	require.NoError(t, m.Initialize(context.Background()))
	return m, sec, gen
}

func TestStoreGetRemoveRoundTrip(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	addr := "0x00aa"
	key := "0x" + "11" + "22"

	require.NoError(t, m.StorePrivateKey(ctx, key, testNet, testApp, testType, addr, false))

	got, err := m.GetPrivateKey(ctx, testNet, testApp, testType, addr, false)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	require.NoError(t, m.RemovePrivateKey(ctx, testNet, testApp, testType, addr))

	_, err = m.GetPrivateKey(ctx, testNet, testApp, testType, addr, false)
	require.Error(t, err)
	assert.Equal(t, walleterr.CodeKeyNotFound, walleterr.CodeOf(err))

	entries, err := m.GetAvailableKeys(ctx, testApp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAvailableKeysEmptyIsNotAnError(t *testing.T) {
	m, _, _ := newTestManager(t)

	entries, err := m.GetAvailableKeys(context.Background(), "app-with-no-keys")
	require.NoError(t, err)
	require.NotNil(t, entries)
	assert.Len(t, entries, 0)
}

func TestRegistryUpsertReplacesByAddress(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	addr := "0x00bb"
	require.NoError(t, m.StorePrivateKey(ctx, "0x01", testNet, testApp, testType, addr, false))
	require.NoError(t, m.StorePrivateKey(ctx, "0x02", testNet, testApp, testType, addr, false))

	entries, err := m.GetAvailableKeys(ctx, testApp)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, addr, entries[0].Address)

	got, err := m.GetPrivateKey(ctx, testNet, testApp, testType, addr, false)
	require.NoError(t, err)
	assert.Equal(t, "0x02", got)
}

func TestClearAppDataRemovesEverything(t *testing.T) {
	m, _, gen := newTestManager(t)
	ctx := context.Background()

	addrs := []string{"0x01", "0x02", "0x03"}
	for _, a := range addrs {
		require.NoError(t, m.StorePrivateKey(ctx, "0xfeed"+a, testNet, testApp, testType, a, false))
		require.NoError(t, m.PutWalletMetadata(ctx, testApp, a, WalletMetadata{CreatedAt: "now"}))
	}
	require.NoError(t, m.PutCachedConfig(ctx, testApp, `{"a":1}`))
	require.NoError(t, m.SaveSession(ctx, testApp, SessionPointer{Address: addrs[0]}))
	require.NoError(t, m.PutBiometricSettings(ctx, testApp, true))

	require.NoError(t, m.ClearAppData(ctx, testApp))

	entries, err := m.GetAvailableKeys(ctx, testApp)
	require.NoError(t, err)
	assert.Empty(t, entries)

	for _, a := range addrs {
		_, err := m.GetPrivateKey(ctx, testNet, testApp, testType, a, false)
		assert.Equal(t, walleterr.CodeKeyNotFound, walleterr.CodeOf(err))
	}

	_, ok, err := m.LoadSession(ctx, testApp)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m.GetCachedConfig(ctx, testApp)
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := gen.Keys(ctx, "wallet."+testApp+".")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestClearAppDataContinuesPastFailures(t *testing.T) {
	sec := &flakySecure{MemorySecureStore: NewMemorySecureStore(false), failDeletes: map[string]bool{}}
	gen := NewMemoryGeneralStore()
	m := NewManager(sec, gen)
	ctx := context.Background()

	require.NoError(t, m.StorePrivateKey(ctx, "0x01", testNet, testApp, testType, "0xaa", false))
	require.NoError(t, m.StorePrivateKey(ctx, "0x02", testNet, testApp, testType, "0xbb", false))
	sec.failDeletes[PrivateKeyID(testNet, testApp, testType, "0xaa")] = true

	err := m.ClearAppData(ctx, testApp)
	require.Error(t, err)
	assert.True(t, walleterr.IsKind(err, walleterr.KindStorage))

	// The sweep did not stop at the first failure: the second key is gone.
	_, ok, getErr := sec.Get(ctx, PrivateKeyID(testNet, testApp, testType, "0xbb"))
	require.NoError(t, getErr)
	assert.False(t, ok)
}

func TestInitializeFailsOnBrokenBackend(t *testing.T) {
	m := NewManager(&brokenSecure{}, NewMemoryGeneralStore())
	err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, walleterr.CodeSelfTestFailed, walleterr.CodeOf(err))
}

func TestBiometricDowngradeWhenUnsupported(t *testing.T) {
	m, sec, _ := newTestManager(t)
	ctx := context.Background()

	// Backend reports no biometric capability; a gated read must downgrade.
	require.NoError(t, m.StorePrivateKey(ctx, "0x0c", testNet, testApp, testType, "0xcc", true))
	got, err := m.GetPrivateKey(ctx, testNet, testApp, testType, "0xcc", true)
	require.NoError(t, err)
	assert.Equal(t, "0x0c", got)
	assert.Zero(t, sec.ProtectedReads)
}

func TestBiometricPathUsedWhenSupported(t *testing.T) {
	sec := NewMemorySecureStore(true)
	m := NewManager(sec, NewMemoryGeneralStore())
	ctx := context.Background()

	require.NoError(t, m.StorePrivateKey(ctx, "0x0d", testNet, testApp, testType, "0xdd", true))
	_, err := m.GetPrivateKey(ctx, testNet, testApp, testType, "0xdd", true)
	require.NoError(t, err)
	assert.Equal(t, 1, sec.ProtectedReads)
}

func TestTouchLastUsedCreatesAndUpdates(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	m.TouchLastUsed(ctx, testApp, "0xee")
	meta, ok, err := m.GetWalletMetadata(ctx, testApp, "0xee")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, meta.LastUsed)
	assert.NotEmpty(t, meta.CreatedAt)
}

// --- fakes ---

type flakySecure struct {
	*MemorySecureStore
	failDeletes map[string]bool
}

func (f *flakySecure) Delete(ctx context.Context, key string) error {
	if f.failDeletes[key] {
		return walleterr.New(walleterr.KindStorage, walleterr.CodeStorageAccess, "injected delete failure")
	}
	return f.MemorySecureStore.Delete(ctx, key)
}

type brokenSecure struct{}

func (brokenSecure) Put(context.Context, string, string) error {
	return walleterr.New(walleterr.KindStorage, walleterr.CodeStorageAccess, "broken")
}
func (brokenSecure) Get(context.Context, string) (string, bool, error) {
	return "", false, walleterr.New(walleterr.KindStorage, walleterr.CodeStorageAccess, "broken")
}
func (brokenSecure) Delete(context.Context, string) error {
	return walleterr.New(walleterr.KindStorage, walleterr.CodeStorageAccess, "broken")
}
func (brokenSecure) SupportsBiometrics() bool { return false }
func (brokenSecure) PutProtected(context.Context, string, string) error {
	return walleterr.New(walleterr.KindAuthentication, walleterr.CodeBiometricUnavailable, "broken")
}
func (brokenSecure) GetProtected(context.Context, string) (string, bool, error) {
	return "", false, walleterr.New(walleterr.KindAuthentication, walleterr.CodeBiometricUnavailable, "broken")
}
