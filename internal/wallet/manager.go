package wallet

import (
	"context"
	"time"

	"github.com/starkwallet-io/starkwallet-client/internal/account"
	"github.com/starkwallet-io/starkwallet-client/internal/keys"
	"github.com/starkwallet-io/starkwallet-client/internal/log"
	"github.com/starkwallet-io/starkwallet-client/internal/network"
	"github.com/starkwallet-io/starkwallet-client/internal/starkcurve"
	"github.com/starkwallet-io/starkwallet-client/internal/storage"
	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

const sessionTypeInApp = "inapp"

// WalletManager owns the active wallet slot and the session pointer that lets
// a restart reconnect the last wallet. At most one wallet is active at a time;
// connecting a new one disconnects (destroys the key of) the previous.
type WalletManager struct {
	appID    string
	variant  account.Variant
	curve    starkcurve.Capability
	keys     *keys.Manager
	store    *storage.Manager
	networks *network.Manager

	defaultRetries int
	useBiometric   bool

	active *InAppWallet
}

// ManagerParams wires the wallet manager's collaborators.
type ManagerParams struct {
	AppID          string
	Variant        account.Variant
	Curve          starkcurve.Capability
	Keys           *keys.Manager
	Store          *storage.Manager
	Networks       *network.Manager
	DefaultRetries int
	UseBiometric   bool
}

func NewWalletManager(p ManagerParams) *WalletManager {
	return &WalletManager{
		appID:          p.AppID,
		variant:        p.Variant,
		curve:          p.Curve,
		keys:           p.Keys,
		store:          p.Store,
		networks:       p.Networks,
		defaultRetries: p.DefaultRetries,
		useBiometric:   p.UseBiometric,
	}
}

// Active returns the connected wallet, or a typed error when none is.
func (wm *WalletManager) Active() (*InAppWallet, error) {
	if wm.active == nil {
		return nil, walleterr.New(walleterr.KindWallet, walleterr.CodeWalletNotFound,
			"no wallet is connected")
	}
	return wm.active, nil
}

// Create generates a fresh key, persists it under the derived address and
// connects the wallet. The key is stored before the session pointer so a crash
// between the two loses only the pointer, never the key.
func (wm *WalletManager) Create(ctx context.Context) (*InAppWallet, error) {
	key, err := wm.keys.Generate(ctx)
	if err != nil {
		return nil, err
	}
	return wm.adopt(ctx, key)
}

// Import validates and normalizes a caller-supplied key, persists it and
// connects the wallet.
func (wm *WalletManager) Import(ctx context.Context, rawKey string) (*InAppWallet, error) {
	key, err := wm.keys.Import(rawKey)
	if err != nil {
		return nil, err
	}
	return wm.adopt(ctx, key)
}

// adopt binds a canonical-form key: derive the address, persist key and
// metadata, record the session pointer, swap the active slot.
func (wm *WalletManager) adopt(ctx context.Context, key string) (*InAppWallet, error) {
	w, err := New(Params{
		PrivateKey:     key,
		Variant:        wm.variant,
		Networks:       wm.networks,
		Curve:          wm.curve,
		DefaultRetries: wm.defaultRetries,
	})
	if err != nil {
		return nil, err
	}

	net := string(wm.networks.Current())
	if err := wm.keys.Store(ctx, key, net, wm.appID, string(wm.variant), w.Address(), wm.useBiometric); err != nil {
		w.Disconnect()
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	meta := storage.WalletMetadata{CreatedAt: now, LastUsed: now}
	if err := wm.store.PutWalletMetadata(ctx, wm.appID, w.Address(), meta); err != nil {
		log.Warn("wallet metadata write failed", "address", w.Address(), "error", err)
	}
	wm.saveSession(ctx, w.Address(), net, meta)

	wm.replaceActive(w)
	log.Info("wallet connected", "address", w.Address(), "network", net)
	return w, nil
}

// ConnectFromStorage loads a previously stored key by address and connects it.
func (wm *WalletManager) ConnectFromStorage(ctx context.Context, address string) (*InAppWallet, error) {
	net := string(wm.networks.Current())
	key, err := wm.keys.Get(ctx, net, wm.appID, string(wm.variant), address, wm.useBiometric)
	if err != nil {
		return nil, err
	}

	w, err := New(Params{
		PrivateKey:     key,
		Variant:        wm.variant,
		Networks:       wm.networks,
		Curve:          wm.curve,
		DefaultRetries: wm.defaultRetries,
	})
	if err != nil {
		return nil, err
	}

	meta, ok, err := wm.store.GetWalletMetadata(ctx, wm.appID, address)
	if err != nil || !ok {
		meta = storage.WalletMetadata{CreatedAt: time.Now().UTC().Format(time.RFC3339)}
	}
	wm.saveSession(ctx, w.Address(), net, meta)

	wm.replaceActive(w)
	return w, nil
}

// ReconnectLastSession restores the wallet named by the session pointer.
// A missing pointer is "nothing to do", not an error. A pointer naming a
// wallet that can no longer be loaded is cleared so the failure does not
// repeat on every startup.
func (wm *WalletManager) ReconnectLastSession(ctx context.Context) (*InAppWallet, error) {
	ptr, ok, err := wm.store.LoadSession(ctx, wm.appID)
	if err != nil {
		return nil, err
	}
	if !ok || ptr.Type != sessionTypeInApp {
		return nil, nil
	}

	w, err := wm.ConnectFromStorage(ctx, ptr.Address)
	if err != nil {
		log.Warn("stale session pointer cleared after reconnect failure",
			"address", ptr.Address, "error", err)
		if cerr := wm.store.ClearSession(ctx, wm.appID); cerr != nil {
			log.Warn("session pointer cleanup failed", "error", cerr)
		}
		return nil, err
	}
	return w, nil
}

// Disconnect destroys the active wallet's key and clears the session pointer.
// Idempotent.
func (wm *WalletManager) Disconnect(ctx context.Context) error {
	if wm.active != nil {
		wm.active.Disconnect()
		wm.active = nil
	}
	return wm.store.ClearSession(ctx, wm.appID)
}

// OnNetworkChanged rebinds the active wallet after a network switch. The key
// and address are network-independent; only the stored-key namespace and the
// session pointer move.
func (wm *WalletManager) OnNetworkChanged(ctx context.Context) error {
	if wm.active == nil {
		return nil
	}
	addr := wm.active.Address()
	net := string(wm.networks.Current())

	meta, ok, err := wm.store.GetWalletMetadata(ctx, wm.appID, addr)
	if err != nil || !ok {
		meta = storage.WalletMetadata{CreatedAt: time.Now().UTC().Format(time.RFC3339)}
	}
	wm.saveSession(ctx, addr, net, meta)
	return nil
}

// List returns the stored-key registry for this app.
func (wm *WalletManager) List(ctx context.Context) ([]storage.KeyMetadata, error) {
	return wm.keys.Available(ctx, wm.appID)
}

func (wm *WalletManager) replaceActive(w *InAppWallet) {
	if wm.active != nil && wm.active != w {
		wm.active.Disconnect()
	}
	wm.active = w
}

// saveSession persists the pointer; failures are logged, not propagated, since
// the wallet itself is already usable.
func (wm *WalletManager) saveSession(ctx context.Context, address, net string, meta storage.WalletMetadata) {
	ptr := storage.SessionPointer{
		Type:     sessionTypeInApp,
		KeyID:    storage.PrivateKeyID(net, wm.appID, string(wm.variant), address),
		Network:  net,
		Address:  address,
		Metadata: meta,
	}
	if err := wm.store.SaveSession(ctx, wm.appID, ptr); err != nil {
		log.Warn("session pointer write failed", "address", address, "error", err)
	}
}
