// Package storage unifies the platform secure store and general store behind a
// wallet-oriented manager. Backends are capability-gated: some cannot enumerate
// their own keys, some cannot gate reads behind biometrics. Call sites branch
// on the capability flags, never on platform identity.
package storage

import "context"

// SecureStore is a platform key-value backend for secret material.
// Get returns ("", false, nil) when the key is absent; absence is not an error.
type SecureStore interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error

	// SupportsBiometrics reports whether the protected path is available.
	// When false, PutProtected/GetProtected fail with an authentication error
	// and callers must use the plain path instead.
	SupportsBiometrics() bool
	PutProtected(ctx context.Context, key, value string) error
	GetProtected(ctx context.Context, key string) (string, bool, error)
}

// GeneralStore is a platform key-value backend for non-secret data.
type GeneralStore interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error

	// SupportsEnumeration reports whether Keys is available. The manager keeps
	// its own key registry precisely because not every backend can enumerate.
	SupportsEnumeration() bool
	Keys(ctx context.Context, prefix string) ([]string, error)
}
