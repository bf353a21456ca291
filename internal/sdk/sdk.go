// Package sdk is the embedding surface: it owns initialization sequencing and
// exposes the wallet operations integrators call. Nothing here panics across
// the boundary; every failure is a typed error.
package sdk

import (
	"context"
	"net/http"

	"github.com/starkwallet-io/starkwallet-client/internal/account"
	"github.com/starkwallet-io/starkwallet-client/internal/backend"
	"github.com/starkwallet-io/starkwallet-client/internal/config"
	"github.com/starkwallet-io/starkwallet-client/internal/keys"
	"github.com/starkwallet-io/starkwallet-client/internal/log"
	"github.com/starkwallet-io/starkwallet-client/internal/network"
	"github.com/starkwallet-io/starkwallet-client/internal/starkcurve"
	"github.com/starkwallet-io/starkwallet-client/internal/storage"
	"github.com/starkwallet-io/starkwallet-client/internal/wallet"
	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

// Options wires the SDK's pluggable pieces. Config is required; stores default
// to in-memory (ephemeral) when omitted.
type Options struct {
	Config       *config.App
	SecureStore  storage.SecureStore
	GeneralStore storage.GeneralStore
	Variant      account.Variant
	HTTPClient   *http.Client
}

// SDK is the facade over storage, keys, networks, wallets and the optional
// backend.
type SDK struct {
	app      *config.App
	store    *storage.Manager
	networks *network.Manager
	wallets  *wallet.WalletManager
	backend  *backend.Client

	initialized bool
}

// New validates the configuration and assembles the component graph. No I/O
// happens until Initialize.
func New(opts Options) (*SDK, error) {
	if opts.Config == nil {
		return nil, walleterr.New(walleterr.KindConfiguration, walleterr.CodeInvalidAppID,
			"sdk requires a configuration")
	}
	app := opts.Config
	if err := app.Validate(); err != nil {
		return nil, err
	}
	log.SetLevel(app.LogLevel)

	secure := opts.SecureStore
	if secure == nil {
		secure = storage.NewMemorySecureStore(false)
	}
	general := opts.GeneralStore
	if general == nil {
		general = storage.NewMemoryGeneralStore()
	}
	store := storage.NewManager(secure, general)

	supported, current := app.Networks()
	networks, err := network.NewManager(supported, current, app.CustomRPCURL)
	if err != nil {
		return nil, err
	}

	variant := opts.Variant
	if variant == "" {
		variant = account.VariantStandard
		if current == network.Devnet {
			variant = account.VariantDevnet
		}
	}

	curve := starkcurve.New()
	wallets := wallet.NewWalletManager(wallet.ManagerParams{
		AppID:          app.AppID,
		Variant:        variant,
		Curve:          curve,
		Keys:           keys.NewManager(curve, store),
		Store:          store,
		Networks:       networks,
		DefaultRetries: app.MaxTransactionRetries,
		UseBiometric:   app.EnableBiometrics,
	})

	s := &SDK{
		app:      app,
		store:    store,
		networks: networks,
		wallets:  wallets,
	}
	if app.BackendURL != "" {
		s.backend, err = backend.New(app.BackendURL, store, opts.HTTPClient)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Initialize runs the startup sequence: storage self-test, network pool
// bring-up, best-effort backend config fetch, best-effort reconnect of the
// last session. Storage or current-network failure aborts; the rest degrades.
func (s *SDK) Initialize(ctx context.Context) error {
	if s.initialized {
		return nil
	}
	if err := s.store.Initialize(ctx); err != nil {
		return err
	}
	if err := s.networks.Initialize(ctx); err != nil {
		return err
	}

	if s.backend != nil {
		if _, err := s.backend.FetchAppConfig(ctx, s.app.AppID); err != nil {
			log.Warn("backend config unavailable, continuing with cache/defaults",
				"appId", s.app.AppID, "error", err)
		}
	}

	if _, err := s.wallets.ReconnectLastSession(ctx); err != nil {
		log.Warn("last session not restored", "error", err)
	}

	s.initialized = true
	log.Info("sdk initialized", "appId", s.app.AppID, "network", s.networks.Current())
	return nil
}

func (s *SDK) requireInit() error {
	if !s.initialized {
		return walleterr.New(walleterr.KindConfiguration, walleterr.CodeNotInitialized,
			"sdk used before Initialize")
	}
	return nil
}

// CreateWallet generates a key and connects a fresh wallet.
func (s *SDK) CreateWallet(ctx context.Context) (*wallet.InAppWallet, error) {
	if err := s.requireInit(); err != nil {
		return nil, err
	}
	w, err := s.wallets.Create(ctx)
	if err != nil {
		return nil, err
	}
	s.report(ctx, "wallet_created")
	return w, nil
}

// ImportWallet connects a wallet from a caller-supplied private key.
func (s *SDK) ImportWallet(ctx context.Context, privateKey string) (*wallet.InAppWallet, error) {
	if err := s.requireInit(); err != nil {
		return nil, err
	}
	w, err := s.wallets.Import(ctx, privateKey)
	if err != nil {
		return nil, err
	}
	s.report(ctx, "wallet_imported")
	return w, nil
}

// ConnectWallet loads a stored wallet by address.
func (s *SDK) ConnectWallet(ctx context.Context, address string) (*wallet.InAppWallet, error) {
	if err := s.requireInit(); err != nil {
		return nil, err
	}
	return s.wallets.ConnectFromStorage(ctx, address)
}

// DisconnectWallet destroys the active wallet's key and session pointer.
func (s *SDK) DisconnectWallet(ctx context.Context) error {
	if err := s.requireInit(); err != nil {
		return err
	}
	return s.wallets.Disconnect(ctx)
}

// ActiveWallet returns the connected wallet or a typed not-found error.
func (s *SDK) ActiveWallet() (*wallet.InAppWallet, error) {
	if err := s.requireInit(); err != nil {
		return nil, err
	}
	return s.wallets.Active()
}

// ListWallets returns the stored-key registry.
func (s *SDK) ListWallets(ctx context.Context) ([]storage.KeyMetadata, error) {
	if err := s.requireInit(); err != nil {
		return nil, err
	}
	return s.wallets.List(ctx)
}

// SwitchNetwork changes the selection and rebinds the active wallet.
func (s *SDK) SwitchNetwork(ctx context.Context, n network.Network) error {
	if err := s.requireInit(); err != nil {
		return err
	}
	if err := s.networks.SwitchNetwork(ctx, n); err != nil {
		return err
	}
	return s.wallets.OnNetworkChanged(ctx)
}

// CurrentNetwork returns the selected network.
func (s *SDK) CurrentNetwork() network.Network { return s.networks.Current() }

// RefreshConnections re-checks the provider pool, failing over if needed.
func (s *SDK) RefreshConnections(ctx context.Context) error {
	if err := s.requireInit(); err != nil {
		return err
	}
	return s.networks.RefreshConnections(ctx)
}

// StorageInfo reports key count and backend capabilities.
func (s *SDK) StorageInfo(ctx context.Context) (storage.UsageInfo, error) {
	if err := s.requireInit(); err != nil {
		return storage.UsageInfo{}, err
	}
	return s.store.Usage(ctx, s.app.AppID)
}

// BiometricAvailability reports whether the secure store can gate reads.
func (s *SDK) BiometricAvailability() bool { return s.store.BiometricsAvailable() }

// ClearAppData wipes everything this app persisted. Best-effort; aggregated
// error reports what could not be removed.
func (s *SDK) ClearAppData(ctx context.Context) error {
	if err := s.requireInit(); err != nil {
		return err
	}
	if err := s.wallets.Disconnect(ctx); err != nil {
		log.Warn("disconnect before wipe failed", "error", err)
	}
	return s.store.ClearAppData(ctx, s.app.AppID)
}

func (s *SDK) report(ctx context.Context, name string) {
	if s.backend == nil {
		return
	}
	s.backend.ReportEvent(ctx, backend.Event{
		Name:    name,
		AppID:   s.app.AppID,
		Network: string(s.networks.Current()),
	})
}
