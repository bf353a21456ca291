package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/multierr"

	"github.com/starkwallet-io/starkwallet-client/internal/log"
	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

// Manager unifies the secure and general stores behind the wallet API.
// The secure store holds private keys only; everything enumerable (the key
// registry, wallet metadata, cached config, the session pointer) lives in the
// general store because secure backends cannot list their own contents.
type Manager struct {
	secure  SecureStore
	general GeneralStore
}

func NewManager(secure SecureStore, general GeneralStore) *Manager {
	return &Manager{secure: secure, general: general}
}

// Initialize self-tests both backends with a throwaway round trip. A failure
// here is fatal to SDK startup: storage that cannot round-trip must never be
// trusted with key material.
func (m *Manager) Initialize(ctx context.Context) error {
	probe := make([]byte, 8)
	if _, err := rand.Read(probe); err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeSelfTestFailed, "probe entropy")
	}
	key := "selftest." + hex.EncodeToString(probe)
	want := hex.EncodeToString(probe)

	if err := roundTrip(ctx, m.secure, key, want); err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeSelfTestFailed, "secure store")
	}
	if err := roundTrip(ctx, m.general, key, want); err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeSelfTestFailed, "general store")
	}
	return nil
}

type kvStore interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

func roundTrip(ctx context.Context, s kvStore, key, want string) error {
	if err := s.Put(ctx, key, want); err != nil {
		return err
	}
	got, ok, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok || got != want {
		return walleterr.New(walleterr.KindStorage, walleterr.CodeSelfTestFailed,
			"round trip mismatch (present=%v)", ok)
	}
	return s.Delete(ctx, key)
}

// StorePrivateKey writes the key to the secure store, then upserts its
// registry entry. Registry upsert is last-write-wins keyed by address.
func (m *Manager) StorePrivateKey(ctx context.Context, privateKey, network, appID, accountType, address string, biometric bool) error {
	keyID := PrivateKeyID(network, appID, accountType, address)

	if biometric && m.secure.SupportsBiometrics() {
		if err := m.secure.PutProtected(ctx, keyID, privateKey); err != nil {
			return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "store key %s", keyID)
		}
	} else {
		if err := m.secure.Put(ctx, keyID, privateKey); err != nil {
			return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "store key %s", keyID)
		}
	}

	meta := KeyMetadata{
		Network:     network,
		AppID:       appID,
		AccountType: accountType,
		Address:     address,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	return m.upsertRegistry(ctx, appID, meta)
}

// GetPrivateKey reads the key, preferring the biometric-gated path when the
// flag is set and the backend supports it. A backend without the capability is
// downgraded to the plain path rather than failed.
func (m *Manager) GetPrivateKey(ctx context.Context, network, appID, accountType, address string, biometric bool) (string, error) {
	keyID := PrivateKeyID(network, appID, accountType, address)

	var (
		v   string
		ok  bool
		err error
	)
	if biometric && m.secure.SupportsBiometrics() {
		v, ok, err = m.secure.GetProtected(ctx, keyID)
	} else {
		v, ok, err = m.secure.Get(ctx, keyID)
	}
	if err != nil {
		return "", walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "read key %s", keyID)
	}
	if !ok {
		return "", walleterr.New(walleterr.KindStorage, walleterr.CodeKeyNotFound, "no key for %s", keyID)
	}
	return v, nil
}

// RemovePrivateKey deletes the key and prunes its registry entry by address.
func (m *Manager) RemovePrivateKey(ctx context.Context, network, appID, accountType, address string) error {
	keyID := PrivateKeyID(network, appID, accountType, address)
	if err := m.secure.Delete(ctx, keyID); err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "delete key %s", keyID)
	}

	entries, err := m.readRegistry(ctx, appID)
	if err != nil {
		return err
	}
	next := make([]KeyMetadata, 0, len(entries))
	for _, e := range entries {
		if e.Address != address {
			next = append(next, e)
		}
	}
	return m.writeRegistry(ctx, appID, next)
}

// GetAvailableKeys returns the per-app registry. Zero stored keys is an empty
// slice, never nil and never an error.
func (m *Manager) GetAvailableKeys(ctx context.Context, appID string) ([]KeyMetadata, error) {
	entries, err := m.readRegistry(ctx, appID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []KeyMetadata{}
	}
	return entries, nil
}

// ClearAppData removes every stored key for the app, the registry, cached
// config, the session pointer, network/biometric settings and all wallet
// metadata. Deletion is best-effort: a failure is recorded and the sweep
// continues, and the aggregate is surfaced at the end.
func (m *Manager) ClearAppData(ctx context.Context, appID string) error {
	var errs error

	entries, err := m.readRegistry(ctx, appID)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	for _, e := range entries {
		if err := m.secure.Delete(ctx, e.KeyID()); err != nil {
			errs = multierr.Append(errs, err)
		}
		if err := m.general.Delete(ctx, walletMetaKey(appID, e.Address)); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	// Enumeration-capable backends can sweep metadata the registry lost track of.
	if m.general.SupportsEnumeration() {
		if keys, err := m.general.Keys(ctx, "wallet."+appID+"."); err == nil {
			for _, k := range keys {
				if err := m.general.Delete(ctx, k); err != nil {
					errs = multierr.Append(errs, err)
				}
			}
		} else {
			errs = multierr.Append(errs, err)
		}
	}

	for _, k := range []string{registryKey(appID), configKey(appID), sessionKey(appID), biometricKey(appID)} {
		if err := m.general.Delete(ctx, k); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if errs != nil {
		return walleterr.Wrap(errs, walleterr.KindStorage, walleterr.CodeStorageAccess, "clear app data for %s", appID)
	}
	return nil
}

// --- wallet metadata ---

func (m *Manager) GetWalletMetadata(ctx context.Context, appID, address string) (WalletMetadata, bool, error) {
	raw, ok, err := m.general.Get(ctx, walletMetaKey(appID, address))
	if err != nil || !ok {
		return WalletMetadata{}, false, err
	}
	var meta WalletMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return WalletMetadata{}, false, walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess,
			"decode wallet metadata for %s", address)
	}
	return meta, true, nil
}

func (m *Manager) PutWalletMetadata(ctx context.Context, appID, address string, meta WalletMetadata) error {
	b, err := json.Marshal(meta)
	if err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "encode wallet metadata")
	}
	if err := m.general.Put(ctx, walletMetaKey(appID, address), string(b)); err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "write wallet metadata for %s", address)
	}
	return nil
}

// TouchLastUsed refreshes lastUsed bookkeeping. Callers treat this as
// best-effort; it logs instead of failing key reads.
func (m *Manager) TouchLastUsed(ctx context.Context, appID, address string) {
	now := time.Now().UTC().Format(time.RFC3339)
	meta, ok, err := m.GetWalletMetadata(ctx, appID, address)
	if err != nil {
		log.Warn("lastUsed refresh failed", "address", address, "error", err)
		return
	}
	if !ok {
		meta = WalletMetadata{CreatedAt: now}
	}
	meta.LastUsed = now
	if err := m.PutWalletMetadata(ctx, appID, address, meta); err != nil {
		log.Warn("lastUsed write failed", "address", address, "error", err)
	}
}

// --- session pointer ---

func (m *Manager) SaveSession(ctx context.Context, appID string, s SessionPointer) error {
	b, err := json.Marshal(s)
	if err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "encode session")
	}
	if err := m.general.Put(ctx, sessionKey(appID), string(b)); err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "write session")
	}
	return nil
}

func (m *Manager) LoadSession(ctx context.Context, appID string) (SessionPointer, bool, error) {
	raw, ok, err := m.general.Get(ctx, sessionKey(appID))
	if err != nil || !ok {
		return SessionPointer{}, false, err
	}
	var s SessionPointer
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return SessionPointer{}, false, walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "decode session")
	}
	return s, true, nil
}

func (m *Manager) ClearSession(ctx context.Context, appID string) error {
	if err := m.general.Delete(ctx, sessionKey(appID)); err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "clear session")
	}
	return nil
}

// --- cached app config ---

func (m *Manager) PutCachedConfig(ctx context.Context, appID, rawJSON string) error {
	if err := m.general.Put(ctx, configKey(appID), rawJSON); err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "cache config")
	}
	return nil
}

func (m *Manager) GetCachedConfig(ctx context.Context, appID string) (string, bool, error) {
	return m.general.Get(ctx, configKey(appID))
}

// --- biometric settings ---

func (m *Manager) PutBiometricSettings(ctx context.Context, appID string, enabled bool) error {
	v := "false"
	if enabled {
		v = "true"
	}
	if err := m.general.Put(ctx, biometricKey(appID), v); err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "write biometric settings")
	}
	return nil
}

func (m *Manager) GetBiometricSettings(ctx context.Context, appID string) (bool, error) {
	v, ok, err := m.general.Get(ctx, biometricKey(appID))
	if err != nil {
		return false, err
	}
	return ok && v == "true", nil
}

// BiometricsAvailable reports the secure backend's capability to the facade.
func (m *Manager) BiometricsAvailable() bool { return m.secure.SupportsBiometrics() }

// Usage reports storage counts and capabilities to the facade.
func (m *Manager) Usage(ctx context.Context, appID string) (UsageInfo, error) {
	entries, err := m.GetAvailableKeys(ctx, appID)
	if err != nil {
		return UsageInfo{}, err
	}
	return UsageInfo{
		KeyCount:            len(entries),
		SupportsBiometrics:  m.secure.SupportsBiometrics(),
		SupportsEnumeration: m.general.SupportsEnumeration(),
	}, nil
}

// --- registry internals ---

func (m *Manager) readRegistry(ctx context.Context, appID string) ([]KeyMetadata, error) {
	raw, ok, err := m.general.Get(ctx, registryKey(appID))
	if err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "read registry for %s", appID)
	}
	if !ok {
		return nil, nil
	}
	var entries []KeyMetadata
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "decode registry for %s", appID)
	}
	return entries, nil
}

func (m *Manager) writeRegistry(ctx context.Context, appID string, entries []KeyMetadata) error {
	b, err := json.Marshal(entries)
	if err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "encode registry for %s", appID)
	}
	if err := m.general.Put(ctx, registryKey(appID), string(b)); err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "write registry for %s", appID)
	}
	return nil
}

func (m *Manager) upsertRegistry(ctx context.Context, appID string, meta KeyMetadata) error {
	entries, err := m.readRegistry(ctx, appID)
	if err != nil {
		return err
	}

	// Build the replacement list, then swap: replace-by-address, never duplicate.
	next := make([]KeyMetadata, 0, len(entries)+1)
	replaced := false
	for _, e := range entries {
		if e.Address == meta.Address {
			next = append(next, meta)
			replaced = true
			continue
		}
		next = append(next, e)
	}
	if !replaced {
		next = append(next, meta)
	}
	return m.writeRegistry(ctx, appID, next)
}
