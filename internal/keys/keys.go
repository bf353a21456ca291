// Package keys generates, imports and validates Stark-curve private keys and
// delegates persistence to the storage manager.
package keys

import (
	"context"
	"fmt"
	"math/big"
	weakrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/starkwallet-io/starkwallet-client/internal/log"
	"github.com/starkwallet-io/starkwallet-client/internal/starkcurve"
	"github.com/starkwallet-io/starkwallet-client/internal/storage"
	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

const (
	// hexDigits is the canonical key length after normalization.
	hexDigits = 64

	maxBatch = 100
)

// Manager owns key generation and format rules. Persistence goes through the
// storage manager; the key itself is held in memory only transiently.
type Manager struct {
	curve starkcurve.Capability
	store *storage.Manager

	mu         sync.Mutex
	lowEntropy bool
	weakSrc    *weakrand.Rand
}

func NewManager(curve starkcurve.Capability, store *storage.Manager) *Manager {
	return &Manager{curve: curve, store: store}
}

// Generate produces a fresh private key from the curve capability's CSPRNG.
// If that source is unavailable it falls back to a time-seeded one and records
// the downgrade; LowEntropyMode lets callers detect it. The result is
// canonical-form hex.
func (m *Manager) Generate(ctx context.Context) (string, error) {
	_ = ctx

	scalar, err := m.curve.RandomScalar()
	if err != nil {
		log.Warn("OS entropy unavailable, falling back to weak source", "error", err)
		scalar = m.weakScalar()
		m.mu.Lock()
		m.lowEntropy = true
		m.mu.Unlock()
	}

	key := canonicalHex(scalar)
	// Validate our own output before handing it out.
	if _, err := m.Import(key); err != nil {
		return "", err
	}
	return key, nil
}

// LowEntropyMode reports whether any generated key came from the fallback
// entropy source. Test-observable by contract.
func (m *Manager) LowEntropyMode() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lowEntropy
}

// GenerateMultiple produces count keys, bounded to [1,100]. The first failing
// generation aborts the whole batch with its index reported.
func (m *Manager) GenerateMultiple(ctx context.Context, count int) ([]string, error) {
	if count < 1 || count > maxBatch {
		return nil, walleterr.New(walleterr.KindWallet, walleterr.CodeInvalidPrivateKey,
			"batch size %d out of range [1,%d]", count, maxBatch)
	}
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		k, err := m.Generate(ctx)
		if err != nil {
			return nil, walleterr.Wrap(err, walleterr.KindWallet, walleterr.CodeInvalidPrivateKey,
				"batch generation failed at index %d", i)
		}
		out = append(out, k)
	}
	return out, nil
}

// Import normalizes a caller-supplied key to canonical form and validates it.
// Rejections happen before any storage write.
func (m *Manager) Import(raw string) (string, error) {
	digits := strings.ToLower(strings.TrimSpace(raw))
	digits = strings.TrimPrefix(digits, "0x")

	if digits == "" {
		return "", walleterr.New(walleterr.KindWallet, walleterr.CodeInvalidPrivateKey, "empty private key")
	}
	if len(digits)%2 != 0 {
		return "", walleterr.New(walleterr.KindWallet, walleterr.CodeInvalidPrivateKey,
			"odd-length private key (%d digits)", len(digits))
	}
	if len(digits) > hexDigits {
		return "", walleterr.New(walleterr.KindWallet, walleterr.CodeInvalidPrivateKey,
			"private key too long (%d digits, max %d)", len(digits), hexDigits)
	}
	for _, c := range digits {
		if !isHexDigit(c) {
			return "", walleterr.New(walleterr.KindWallet, walleterr.CodeInvalidPrivateKey,
				"non-hex character in private key")
		}
	}

	scalar, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return "", walleterr.New(walleterr.KindWallet, walleterr.CodeInvalidPrivateKey, "unparsable private key")
	}
	if !m.curve.InRange(scalar) {
		return "", walleterr.New(walleterr.KindWallet, walleterr.CodeInvalidPrivateKey,
			"private key out of curve range")
	}
	return canonicalHex(scalar), nil
}

// Store persists a key for (network, appId, accountType, address).
func (m *Manager) Store(ctx context.Context, key, network, appID, accountType, address string, biometric bool) error {
	normalized, err := m.Import(key)
	if err != nil {
		return err
	}
	return m.store.StorePrivateKey(ctx, normalized, network, appID, accountType, address, biometric)
}

// Get reads a stored key and refreshes lastUsed bookkeeping as a side effect.
// Bookkeeping failures are logged, never propagated.
func (m *Manager) Get(ctx context.Context, network, appID, accountType, address string, biometric bool) (string, error) {
	key, err := m.store.GetPrivateKey(ctx, network, appID, accountType, address, biometric)
	if err != nil {
		return "", err
	}
	m.store.TouchLastUsed(ctx, appID, address)
	return key, nil
}

// Remove deletes a stored key and its registry entry.
func (m *Manager) Remove(ctx context.Context, network, appID, accountType, address string) error {
	return m.store.RemovePrivateKey(ctx, network, appID, accountType, address)
}

// Available lists the per-app key registry.
func (m *Manager) Available(ctx context.Context, appID string) ([]storage.KeyMetadata, error) {
	return m.store.GetAvailableKeys(ctx, appID)
}

// weakScalar draws from a single time-seeded source so repeated fallbacks
// within one process never reuse a seed.
func (m *Manager) weakScalar() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.weakSrc == nil {
		m.weakSrc = weakrand.New(weakrand.NewSource(time.Now().UnixNano()))
	}
	for {
		buf := make([]byte, 32)
		m.weakSrc.Read(buf)
		scalar := new(big.Int).SetBytes(buf)
		if m.curve.InRange(scalar) {
			return scalar
		}
	}
}

func canonicalHex(scalar *big.Int) string {
	return fmt.Sprintf("0x%064s", scalar.Text(16))
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}
