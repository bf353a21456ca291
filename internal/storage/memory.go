package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

// MemorySecureStore is an in-process SecureStore. It backs tests and
// short-lived embedders that opt out of persistence. The biometric capability
// is configurable so the manager's downgrade path can be exercised.
type MemorySecureStore struct {
	mu         sync.RWMutex
	data       map[string]string
	biometrics bool

	// ProtectedReads counts GetProtected calls; test-observable.
	ProtectedReads int
}

func NewMemorySecureStore(biometrics bool) *MemorySecureStore {
	return &MemorySecureStore{data: map[string]string{}, biometrics: biometrics}
}

func (s *MemorySecureStore) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemorySecureStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *MemorySecureStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemorySecureStore) SupportsBiometrics() bool { return s.biometrics }

func (s *MemorySecureStore) PutProtected(ctx context.Context, key, value string) error {
	if !s.biometrics {
		return walleterr.New(walleterr.KindAuthentication, walleterr.CodeBiometricUnavailable,
			"memory store has no biometric gate")
	}
	return s.Put(ctx, key, value)
}

func (s *MemorySecureStore) GetProtected(ctx context.Context, key string) (string, bool, error) {
	if !s.biometrics {
		return "", false, walleterr.New(walleterr.KindAuthentication, walleterr.CodeBiometricUnavailable,
			"memory store has no biometric gate")
	}
	s.mu.Lock()
	s.ProtectedReads++
	s.mu.Unlock()
	return s.Get(ctx, key)
}

// MemoryGeneralStore is an in-process GeneralStore with enumeration.
type MemoryGeneralStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryGeneralStore() *MemoryGeneralStore {
	return &MemoryGeneralStore{data: map[string]string{}}
}

func (s *MemoryGeneralStore) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemoryGeneralStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *MemoryGeneralStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryGeneralStore) SupportsEnumeration() bool { return true }

func (s *MemoryGeneralStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}
