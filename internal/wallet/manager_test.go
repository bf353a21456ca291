package wallet

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkwallet-io/starkwallet-client/internal/account"
	"github.com/starkwallet-io/starkwallet-client/internal/keys"
	"github.com/starkwallet-io/starkwallet-client/internal/network"
	"github.com/starkwallet-io/starkwallet-client/internal/starkcurve"
	"github.com/starkwallet-io/starkwallet-client/internal/storage"
	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

const testAppID = "demo-app"

// newWalletManager builds a full stack over in-memory stores and a stub RPC
// endpoint wired in as the devnet override.
func newWalletManager(t *testing.T) (*WalletManager, *storage.Manager) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":42}`)
	}))
	t.Cleanup(srv.Close)

	store := storage.NewManager(storage.NewMemorySecureStore(false), storage.NewMemoryGeneralStore())
	require.NoError(t, store.Initialize(context.Background()))

	nets, err := network.NewManager([]network.Network{network.Devnet}, network.Devnet, srv.URL)
	require.NoError(t, err)
	require.NoError(t, nets.Initialize(context.Background()))

	curve := starkcurve.New()
	wm := NewWalletManager(ManagerParams{
		AppID:          testAppID,
		Variant:        account.VariantDevnet,
		Curve:          curve,
		Keys:           keys.NewManager(curve, store),
		Store:          store,
		Networks:       nets,
		DefaultRetries: 0,
	})
	return wm, store
}

func TestCreateConnectsAndPersists(t *testing.T) {
	wm, store := newWalletManager(t)
	ctx := context.Background()

	w, err := wm.Create(ctx)
	require.NoError(t, err)
	assert.Len(t, w.Address(), 66)

	active, err := wm.Active()
	require.NoError(t, err)
	assert.Same(t, w, active)

	list, err := wm.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, w.Address(), list[0].Address)

	ptr, ok, err := store.LoadSession(ctx, testAppID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, w.Address(), ptr.Address)
	assert.Equal(t, sessionTypeInApp, ptr.Type)
}

func TestImportRejectsBadKeyBeforeStorage(t *testing.T) {
	wm, store := newWalletManager(t)
	ctx := context.Background()

	_, err := wm.Import(ctx, "not-a-key")
	require.Error(t, err)
	assert.Equal(t, walleterr.CodeInvalidPrivateKey, walleterr.CodeOf(err))

	list, err := store.GetAvailableKeys(ctx, testAppID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestImportSameKeyYieldsSameAddress(t *testing.T) {
	wm, _ := newWalletManager(t)
	ctx := context.Background()

	a, err := wm.Import(ctx, testWalletKey)
	require.NoError(t, err)
	b, err := wm.Import(ctx, "0xABC123") // same scalar, sloppy form
	require.NoError(t, err)
	assert.Equal(t, a.Address(), b.Address())

	list, err := wm.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1, "re-import replaces, never duplicates")
}

func TestConnectReplacesAndDisconnectsPrevious(t *testing.T) {
	wm, _ := newWalletManager(t)
	ctx := context.Background()

	first, err := wm.Create(ctx)
	require.NoError(t, err)
	second, err := wm.Create(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.Address(), second.Address())

	_, err = first.SignMessage("x")
	assert.Equal(t, walleterr.CodeWalletDisconnected, walleterr.CodeOf(err),
		"replaced wallet's key must be destroyed")
	_, err = second.SignMessage("x")
	assert.NoError(t, err)
}

func TestReconnectLastSession(t *testing.T) {
	wm, _ := newWalletManager(t)
	ctx := context.Background()

	created, err := wm.Create(ctx)
	require.NoError(t, err)
	wm.active = nil // simulate restart without clearing the pointer

	w, err := wm.ReconnectLastSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, created.Address(), w.Address())
}

func TestReconnectWithoutSessionIsNoop(t *testing.T) {
	wm, _ := newWalletManager(t)

	w, err := wm.ReconnectLastSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestReconnectClearsStalePointer(t *testing.T) {
	wm, store := newWalletManager(t)
	ctx := context.Background()

	w, err := wm.Create(ctx)
	require.NoError(t, err)
	addr := w.Address()
	require.NoError(t, wm.keys.Remove(ctx, string(network.Devnet), testAppID, string(account.VariantDevnet), addr))
	wm.active = nil

	_, err = wm.ReconnectLastSession(ctx)
	require.Error(t, err)

	_, ok, err := store.LoadSession(ctx, testAppID)
	require.NoError(t, err)
	assert.False(t, ok, "failed reconnect must clear the pointer so startup does not loop")
}

func TestDisconnectClearsSession(t *testing.T) {
	wm, store := newWalletManager(t)
	ctx := context.Background()

	_, err := wm.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, wm.Disconnect(ctx))

	_, err = wm.Active()
	assert.Equal(t, walleterr.CodeWalletNotFound, walleterr.CodeOf(err))

	_, ok, err := store.LoadSession(ctx, testAppID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, wm.Disconnect(ctx), "disconnect is idempotent")
}

func TestOnNetworkChangedRewritesPointer(t *testing.T) {
	wm, store := newWalletManager(t)
	ctx := context.Background()

	w, err := wm.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, wm.OnNetworkChanged(ctx))

	ptr, ok, err := store.LoadSession(ctx, testAppID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, w.Address(), ptr.Address)
	assert.Equal(t, string(network.Devnet), ptr.Network)
}
