// Package network owns the per-network provider pool: lazy creation, health
// checking, selection switching and failover on refresh.
package network

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/starkwallet-io/starkwallet-client/internal/log"
	"github.com/starkwallet-io/starkwallet-client/internal/starkrpc"
	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

// Network names the chains the SDK ships configurations for.
type Network string

const (
	Mainnet Network = "mainnet"
	Sepolia Network = "sepolia"
	Devnet  Network = "devnet"
)

// Config is the static per-network description. Only devnet's RPC URL is
// user-overridable.
type Config struct {
	DisplayName string
	RPCURL      string
	ChainID     string // short-string-encoded felt
	SpecVersion string

	// HasFeeRelay selects the relayed execution path, which is not
	// implemented; all shipped networks use the direct path.
	HasFeeRelay bool
}

var defaultConfigs = map[Network]Config{
	Mainnet: {
		DisplayName: "Starknet Mainnet",
		RPCURL:      "https://starknet-mainnet.public.blastapi.io/rpc/v0_7",
		ChainID:     "0x534e5f4d41494e", // "SN_MAIN"
		SpecVersion: "0.7.1",
	},
	Sepolia: {
		DisplayName: "Starknet Sepolia",
		RPCURL:      "https://starknet-sepolia.public.blastapi.io/rpc/v0_7",
		ChainID:     "0x534e5f5345504f4c4941", // "SN_SEPOLIA"
		SpecVersion: "0.7.1",
	},
	Devnet: {
		DisplayName: "Local Devnet",
		RPCURL:      "http://127.0.0.1:5050/rpc",
		ChainID:     "0x534e5f5345504f4c4941",
		SpecVersion: "0.7.1",
	},
}

const defaultHealthTimeout = 10 * time.Second

// ProviderFactory builds a provider for an RPC URL. Injectable for tests.
type ProviderFactory func(rpcURL string) (*starkrpc.Provider, error)

// Manager holds one provider handle per initialized network. The pool follows
// a read-mostly, replace-on-write discipline: mutations build the new map and
// swap it under the lock.
type Manager struct {
	mu      sync.RWMutex
	configs map[Network]Config
	pool    map[Network]*starkrpc.Provider
	current Network

	factory       ProviderFactory
	healthTimeout time.Duration
}

// NewManager validates the supported set and selection and prepares an empty
// pool. customDevnetRPC overrides devnet's endpoint when non-empty.
func NewManager(supported []Network, current Network, customDevnetRPC string) (*Manager, error) {
	if len(supported) == 0 {
		return nil, walleterr.New(walleterr.KindConfiguration, walleterr.CodeUnsupportedNetwork,
			"no supported networks configured")
	}

	configs := make(map[Network]Config, len(supported))
	for _, n := range supported {
		cfg, ok := defaultConfigs[n]
		if !ok {
			return nil, walleterr.New(walleterr.KindConfiguration, walleterr.CodeUnsupportedNetwork,
				"unknown network %q", n)
		}
		if n == Devnet && customDevnetRPC != "" {
			cfg.RPCURL = customDevnetRPC
		}
		configs[n] = cfg
	}
	if _, ok := configs[current]; !ok {
		return nil, walleterr.New(walleterr.KindConfiguration, walleterr.CodeUnsupportedNetwork,
			"current network %q not in supported set", current)
	}

	return &Manager{
		configs:       configs,
		pool:          map[Network]*starkrpc.Provider{},
		current:       current,
		factory:       func(u string) (*starkrpc.Provider, error) { return starkrpc.New(u, nil) },
		healthTimeout: defaultHealthTimeout,
	}, nil
}

// SetProviderFactory replaces provider construction; test hook.
func (m *Manager) SetProviderFactory(f ProviderFactory) { m.factory = f }

// SetHealthTimeout overrides the health-check bound; test hook.
func (m *Manager) SetHealthTimeout(d time.Duration) { m.healthTimeout = d }

// Initialize eagerly creates and health-checks a provider for every supported
// network. A failing non-current network is tolerated (retried lazily later);
// a failing current network is fatal.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for n, cfg := range m.configs {
		p, err := m.connect(ctx, cfg.RPCURL)
		if err != nil {
			if n == m.current {
				return walleterr.Wrap(err, walleterr.KindNetwork, walleterr.CodeProviderUnreachable,
					"current network %s failed initialization", n)
			}
			log.Warn("network unavailable at init, will retry lazily", "network", n, "error", err)
			continue
		}
		m.pool[n] = p
	}
	return nil
}

// Current returns the selected network.
func (m *Manager) Current() Network {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// CurrentConfig returns the selected network's configuration.
func (m *Manager) CurrentConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.configs[m.current]
}

// ConfigFor returns a supported network's configuration.
func (m *Manager) ConfigFor(n Network) (Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[n]
	if !ok {
		return Config{}, walleterr.New(walleterr.KindConfiguration, walleterr.CodeUnsupportedNetwork,
			"network %q not supported", n)
	}
	return cfg, nil
}

// Supported lists the configured networks.
func (m *Manager) Supported() []Network {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Network, 0, len(m.configs))
	for n := range m.configs {
		out = append(out, n)
	}
	return out
}

// Provider returns the current network's handle, lazily connecting if the
// pool lost it.
func (m *Manager) Provider(ctx context.Context) (*starkrpc.Provider, error) {
	m.mu.RLock()
	p, ok := m.pool[m.current]
	m.mu.RUnlock()
	if ok {
		return p, nil
	}
	return m.ensure(ctx, m.Current())
}

// SwitchNetwork flips the selection, lazily creating and testing a provider
// if none exists. Other providers are never torn down.
func (m *Manager) SwitchNetwork(ctx context.Context, n Network) error {
	m.mu.RLock()
	_, supported := m.configs[n]
	_, pooled := m.pool[n]
	m.mu.RUnlock()

	if !supported {
		return walleterr.New(walleterr.KindConfiguration, walleterr.CodeUnsupportedNetwork,
			"cannot switch to unsupported network %q", n)
	}
	if !pooled {
		if _, err := m.ensure(ctx, n); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.current = n
	m.mu.Unlock()
	log.Info("network switched", "network", n)
	return nil
}

// RefreshConnections re-tests every held provider. A failing provider gets one
// recreate-and-retest; repeated failure evicts it. If the current network ends
// up unpooled, the selection fails over to any network that still has a
// healthy provider; only when none remain does this return an error.
func (m *Manager) RefreshConnections(ctx context.Context) error {
	m.mu.RLock()
	snapshot := make(map[Network]*starkrpc.Provider, len(m.pool))
	for n, p := range m.pool {
		snapshot[n] = p
	}
	current := m.current
	m.mu.RUnlock()

	next := make(map[Network]*starkrpc.Provider, len(snapshot))
	for n, p := range snapshot {
		if err := m.healthCheck(ctx, p); err == nil {
			next[n] = p
			continue
		}
		log.Warn("provider failed health check, recreating", "network", n)

		cfg := m.configs[n]
		fresh, err := m.connect(ctx, cfg.RPCURL)
		if err != nil {
			log.Warn("provider evicted after repeated failure", "network", n, "error", err)
			continue
		}
		next[n] = fresh
	}

	m.mu.Lock()
	m.pool = next
	_, currentHealthy := next[current]
	var fallback Network
	if !currentHealthy {
		for n := range next {
			fallback = n
			m.current = n
			break
		}
	}
	m.mu.Unlock()

	if currentHealthy {
		return nil
	}
	if fallback != "" {
		log.Warn("current network lost its provider, failed over", "from", current, "to", fallback)
		return nil
	}
	return walleterr.New(walleterr.KindNetwork, walleterr.CodeNoHealthyProvider,
		"no healthy provider remains after refresh")
}

// ensure creates, health-checks and pools a provider for n.
func (m *Manager) ensure(ctx context.Context, n Network) (*starkrpc.Provider, error) {
	cfg, err := m.ConfigFor(n)
	if err != nil {
		return nil, err
	}
	p, err := m.connect(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.pool[n] = p
	m.mu.Unlock()
	return p, nil
}

func (m *Manager) connect(ctx context.Context, rpcURL string) (*starkrpc.Provider, error) {
	p, err := m.factory(rpcURL)
	if err != nil {
		return nil, err
	}
	if err := m.healthCheck(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// healthCheck is a single lightweight call raced against the fixed timeout.
func (m *Manager) healthCheck(ctx context.Context, p *starkrpc.Provider) error {
	hctx, cancel := context.WithTimeout(ctx, m.healthTimeout)
	defer cancel()

	_, err := p.BlockNumber(hctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(hctx.Err(), context.DeadlineExceeded) {
			return walleterr.Wrap(err, walleterr.KindNetwork, walleterr.CodeHealthCheckTimeout,
				"health check timed out for %s", p.URL())
		}
		return walleterr.Wrap(err, walleterr.KindNetwork, walleterr.CodeProviderUnreachable,
			"health check failed for %s", p.URL())
	}
	return nil
}
