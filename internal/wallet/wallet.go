// Package wallet binds a private key, its derived account address and a
// borrowed network provider into the in-app wallet: transaction execution
// with retry and confirmation tracking, first-use deployment, message
// signing and balance queries.
package wallet

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/starkwallet-io/starkwallet-client/internal/account"
	"github.com/starkwallet-io/starkwallet-client/internal/log"
	"github.com/starkwallet-io/starkwallet-client/internal/network"
	"github.com/starkwallet-io/starkwallet-client/internal/starkcurve"
	"github.com/starkwallet-io/starkwallet-client/internal/starkrpc"
	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

// Status is the terminal view of a submitted transaction.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusPending   Status = "pending"
)

// TransactionResult reports a submission's hash and observed status.
type TransactionResult struct {
	Hash   string `json:"hash"`
	Status Status `json:"status"`
}

// Call is one contract invocation inside an execute request.
type Call struct {
	ContractAddress string   `json:"contractAddress"`
	Entrypoint      string   `json:"entrypoint"`
	Calldata        []string `json:"calldata,omitempty"`
}

// ExecuteOptions override per call what the config defaults.
// Retry/backoff sleeps honor ctx cancellation; there is no other way to
// interrupt an in-flight execute.
type ExecuteOptions struct {
	Retries *int
	MaxFee  *big.Int
}

// NetworkSource is the borrowed view of the network manager. The wallet never
// creates or owns provider handles.
type NetworkSource interface {
	Provider(ctx context.Context) (*starkrpc.Provider, error)
	CurrentConfig() network.Config
	Current() network.Network
}

const (
	// defaultMaxFee is the fixed fee ceiling for the no-relay network class.
	defaultMaxFeeWei = "0x2386f26fc10000" // 0.01 * 10^18

	confirmAttempts = 60
	confirmInterval = 2 * time.Second

	// ethTokenAddress is the canonical ETH ERC-20 contract.
	ethTokenAddress = "0x049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7"
	ethDecimals     = 18

	signDomainName    = "StarkWallet"
	signDomainVersion = "1"
)

var defaultMaxFee, _ = starkcurve.ParseFelt(defaultMaxFeeWei)

// InAppWallet exclusively owns its key material while connected. Disconnect
// destroys the key; operations that need it afterwards fail with a
// wallet-disconnected error, distinct from not-found.
type InAppWallet struct {
	curve    starkcurve.Capability
	deriver  *account.Deriver
	networks NetworkSource
	variant  account.Variant

	mu         sync.Mutex
	privateKey *big.Int
	privHex    string
	deployed   bool

	publicKey *big.Int
	address   string

	defaultRetries int

	// sleep is injectable so tests do not wait out real backoff.
	sleep        func(ctx context.Context, d time.Duration) error
	pollInterval time.Duration
	pollAttempts int
}

// Params configures a wallet binding.
type Params struct {
	PrivateKey     string // canonical form
	Variant        account.Variant
	Networks       NetworkSource
	Curve          starkcurve.Capability
	DefaultRetries int
}

// New derives the public key and canonical address and binds the wallet.
func New(p Params) (*InAppWallet, error) {
	if p.Networks == nil {
		return nil, walleterr.New(walleterr.KindConfiguration, walleterr.CodeNotInitialized,
			"wallet: nil network source")
	}
	deriver := account.NewDeriver(p.Curve)

	scalar, err := starkcurve.ParseFelt(p.PrivateKey)
	if err != nil || scalar.Sign() == 0 {
		return nil, walleterr.New(walleterr.KindWallet, walleterr.CodeInvalidPrivateKey, "wallet: bad private key")
	}
	pub, err := deriver.PublicKey(p.PrivateKey)
	if err != nil {
		return nil, err
	}
	addr, err := deriver.DeriveAddressFromPublicKey(pub, p.Variant)
	if err != nil {
		return nil, err
	}

	return &InAppWallet{
		curve:          p.Curve,
		deriver:        deriver,
		networks:       p.Networks,
		variant:        p.Variant,
		privateKey:     scalar,
		privHex:        p.PrivateKey,
		publicKey:      pub,
		address:        addr,
		defaultRetries: p.DefaultRetries,
		sleep:          sleepCtx,
		pollInterval:   confirmInterval,
		pollAttempts:   confirmAttempts,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Address returns the canonical (salt-zero) account address.
func (w *InAppWallet) Address() string { return w.address }

// PublicKey returns the owner public key felt.
func (w *InAppWallet) PublicKey() *big.Int { return new(big.Int).Set(w.publicKey) }

// Variant returns the bound account variant.
func (w *InAppWallet) Variant() account.Variant { return w.variant }

// Disconnect destroys the in-memory key immediately.
func (w *InAppWallet) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.privateKey != nil {
		w.privateKey.SetInt64(0)
		w.privateKey = nil
	}
	w.privHex = ""
}

// key returns the owned scalar, or a disconnected error.
func (w *InAppWallet) key() (*big.Int, string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.privateKey == nil {
		return nil, "", walleterr.New(walleterr.KindWallet, walleterr.CodeWalletDisconnected,
			"wallet %s is disconnected", w.address)
	}
	return w.privateKey, w.privHex, nil
}

// IsDeployed queries the network for the bound address's class hash. An RPC
// failure is "unknown": reported as not deployed, never fatal, since deploy
// itself re-checks and is idempotent.
func (w *InAppWallet) IsDeployed(ctx context.Context) bool {
	provider, err := w.networks.Provider(ctx)
	if err != nil {
		log.Warn("deployment check skipped, no provider", "address", w.address, "error", err)
		return false
	}
	_, ok, err := provider.ClassHashAt(ctx, w.address)
	if err != nil {
		log.Warn("deployment check failed", "address", w.address, "error", err)
		return false
	}
	return ok
}

// Execute validates and submits a call set. Validation failures surface
// before any network traffic. The relayed (gasless) path is a recognized but
// unimplemented network class and fails fast.
func (w *InAppWallet) Execute(ctx context.Context, calls []Call, opts *ExecuteOptions) (*TransactionResult, error) {
	if err := validateCalls(calls); err != nil {
		return nil, err
	}

	cfg := w.networks.CurrentConfig()
	if cfg.HasFeeRelay {
		return nil, walleterr.New(walleterr.KindTransaction, walleterr.CodeNotImplemented,
			"relayed execution is not implemented for %s", w.networks.Current())
	}
	return w.executeDirect(ctx, calls, opts, cfg)
}

func (w *InAppWallet) executeDirect(ctx context.Context, calls []Call, opts *ExecuteOptions, cfg network.Config) (*TransactionResult, error) {
	retries := w.defaultRetries
	if opts != nil && opts.Retries != nil {
		retries = *opts.Retries
	}
	if retries < 0 {
		retries = 0
	}
	maxFee := defaultMaxFee
	if opts != nil && opts.MaxFee != nil {
		maxFee = opts.MaxFee
	}

	// Bounded loop carrying (attempt, lastErr); delays double per attempt and
	// are invisible to the caller until exhaustion.
	var (
		hash    string
		lastErr error
	)
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * time.Second
			log.Debug("retrying execution", "attempt", attempt, "delay", delay)
			if err := w.sleep(ctx, delay); err != nil {
				return nil, walleterr.Wrap(err, walleterr.KindTransaction, walleterr.CodeExecutionFailed,
					"canceled during backoff at attempt %d", attempt)
			}
		}
		hash, lastErr = w.submitInvoke(ctx, calls, maxFee, cfg)
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return nil, walleterr.Wrap(lastErr, walleterr.KindTransaction, walleterr.CodeExecutionFailed,
			"execution failed after %d attempts", retries+1)
	}

	if retries > 0 {
		return w.waitForConfirmation(ctx, hash)
	}
	return &TransactionResult{Hash: hash, Status: StatusPending}, nil
}

func (w *InAppWallet) submitInvoke(ctx context.Context, calls []Call, maxFee *big.Int, cfg network.Config) (string, error) {
	priv, _, err := w.key()
	if err != nil {
		return "", err
	}
	provider, err := w.networks.Provider(ctx)
	if err != nil {
		return "", err
	}

	nonceHex, err := provider.Nonce(ctx, w.address)
	if err != nil {
		return "", err
	}
	nonce, err := starkcurve.ParseFelt(nonceHex)
	if err != nil {
		return "", walleterr.Wrap(err, walleterr.KindNetwork, walleterr.CodeRPCFailure, "nonce %q", nonceHex)
	}

	calldata, err := executeCalldata(w.curve, calls)
	if err != nil {
		return "", err
	}
	sender, _ := starkcurve.ParseFelt(w.address)
	chainID, err := starkcurve.ParseFelt(cfg.ChainID)
	if err != nil {
		return "", walleterr.Wrap(err, walleterr.KindConfiguration, walleterr.CodeUnsupportedNetwork,
			"chain id %q", cfg.ChainID)
	}

	txHash, err := invokeTxHash(w.curve, sender, calldata, maxFee, chainID, nonce)
	if err != nil {
		return "", err
	}
	r, s, err := w.curve.Sign(txHash, priv)
	if err != nil {
		return "", err
	}

	tx := starkrpc.InvokeTxn{
		Type:          "INVOKE",
		SenderAddress: w.address,
		Calldata:      feltsToHex(calldata),
		MaxFee:        starkcurve.FeltHex(maxFee),
		Version:       "0x1",
		Signature:     []string{starkcurve.FeltHex(r), starkcurve.FeltHex(s)},
		Nonce:         starkcurve.FeltHex(nonce),
	}
	return provider.AddInvokeTransaction(ctx, tx)
}

// waitForConfirmation polls the receipt until a terminal status or the
// attempt bound. A still-pending receipt keeps polling; exhausting the bound
// is a confirmation timeout, not a crash.
func (w *InAppWallet) waitForConfirmation(ctx context.Context, hash string) (*TransactionResult, error) {
	provider, err := w.networks.Provider(ctx)
	if err != nil {
		return &TransactionResult{Hash: hash, Status: StatusPending}, err
	}

	for i := 0; i < w.pollAttempts; i++ {
		if i > 0 {
			if err := w.sleep(ctx, w.pollInterval); err != nil {
				return &TransactionResult{Hash: hash, Status: StatusPending},
					walleterr.Wrap(err, walleterr.KindTransaction, walleterr.CodeConfirmationTimeout,
						"canceled while confirming %s", hash)
			}
		}

		receipt, ok, err := provider.TransactionReceipt(ctx, hash)
		if err != nil {
			// Transient RPC trouble during polling burns an attempt, nothing more.
			log.Debug("receipt fetch failed", "hash", hash, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if receipt.Reverted() {
			return &TransactionResult{Hash: hash, Status: StatusFailed},
				walleterr.New(walleterr.KindTransaction, walleterr.CodeExecutionFailed,
					"transaction %s reverted: %s", hash, receipt.RevertReason)
		}
		if receipt.Accepted() {
			return &TransactionResult{Hash: hash, Status: StatusConfirmed}, nil
		}
	}

	return &TransactionResult{Hash: hash, Status: StatusPending},
		walleterr.New(walleterr.KindTransaction, walleterr.CodeConfirmationTimeout,
			"transaction %s unconfirmed after %d attempts", hash, w.pollAttempts)
}

// Deploy instantiates the account contract. It re-checks deployment first so
// deploying twice is a no-op, submits a deploy-account transaction with the
// fixed fee ceiling, and waits for inclusion before marking local state.
// Sponsored deployment (fee relay) is not implemented.
func (w *InAppWallet) Deploy(ctx context.Context) (*TransactionResult, error) {
	_, privHex, err := w.key()
	if err != nil {
		return nil, err
	}
	cfg := w.networks.CurrentConfig()
	if cfg.HasFeeRelay {
		return nil, walleterr.New(walleterr.KindTransaction, walleterr.CodeNotImplemented,
			"sponsored deployment is not implemented for %s", w.networks.Current())
	}

	data, err := w.deriver.PrepareDeploymentData(privHex, w.variant)
	if err != nil {
		return nil, err
	}

	provider, err := w.networks.Provider(ctx)
	if err != nil {
		return nil, err
	}

	// Idempotence: the deployment target already holding a class hash means
	// a previous deploy landed; skip without submitting a duplicate.
	if _, deployed, err := provider.ClassHashAt(ctx, data.ContractAddress); err == nil && deployed {
		w.mu.Lock()
		w.deployed = true
		w.mu.Unlock()
		return &TransactionResult{Status: StatusConfirmed}, nil
	}

	classHash, _ := starkcurve.ParseFelt(data.ClassHash)
	salt, _ := starkcurve.ParseFelt(data.Salt)
	target, _ := starkcurve.ParseFelt(data.ContractAddress)
	chainID, err := starkcurve.ParseFelt(cfg.ChainID)
	if err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindConfiguration, walleterr.CodeUnsupportedNetwork,
			"chain id %q", cfg.ChainID)
	}

	calldata := make([]*big.Int, 0, len(data.ConstructorCalldata))
	for _, c := range data.ConstructorCalldata {
		felt, err := starkcurve.ParseFelt(c)
		if err != nil {
			return nil, walleterr.Wrap(err, walleterr.KindTransaction, walleterr.CodeExecutionFailed,
				"constructor calldata %q", c)
		}
		calldata = append(calldata, felt)
	}

	nonce := big.NewInt(0)
	txHash, err := deployAccountTxHash(w.curve, target, classHash, salt, calldata, defaultMaxFee, chainID, nonce)
	if err != nil {
		return nil, err
	}

	priv, _, err := w.key()
	if err != nil {
		return nil, err
	}
	r, s, err := w.curve.Sign(txHash, priv)
	if err != nil {
		return nil, err
	}

	tx := starkrpc.DeployAccountTxn{
		Type:                "DEPLOY_ACCOUNT",
		MaxFee:              starkcurve.FeltHex(defaultMaxFee),
		Version:             "0x1",
		Signature:           []string{starkcurve.FeltHex(r), starkcurve.FeltHex(s)},
		Nonce:               "0x0",
		ClassHash:           data.ClassHash,
		ContractAddressSalt: data.Salt,
		ConstructorCalldata: data.ConstructorCalldata,
	}
	hash, err := provider.AddDeployAccountTransaction(ctx, tx)
	if err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindTransaction, walleterr.CodeExecutionFailed,
			"deploy account at %s", data.ContractAddress)
	}

	result, err := w.waitForConfirmation(ctx, hash)
	if err != nil {
		return result, err
	}
	if result.Status == StatusConfirmed {
		w.mu.Lock()
		w.deployed = true
		w.mu.Unlock()
		log.Info("account deployed", "address", data.ContractAddress, "tx", hash)
	}
	return result, nil
}

// SignMessage wraps the message in the fixed typed structure (domain name and
// version constants, bound to the account address) and returns the signature
// as a flat comma-joined pair of felts.
func (w *InAppWallet) SignMessage(message string) (string, error) {
	priv, _, err := w.key()
	if err != nil {
		return "", err
	}

	chunks := feltChunks(message)
	messageHash, err := w.curve.HashElements(chunks)
	if err != nil {
		return "", err
	}
	addr, _ := starkcurve.ParseFelt(w.address)
	digest, err := w.curve.HashElements([]*big.Int{
		new(big.Int).SetBytes([]byte(signDomainName)),
		new(big.Int).SetBytes([]byte(signDomainVersion)),
		addr,
		messageHash,
	})
	if err != nil {
		return "", err
	}

	r, s, err := w.curve.Sign(digest, priv)
	if err != nil {
		return "", err
	}
	return starkcurve.FeltHex(r) + "," + starkcurve.FeltHex(s), nil
}

func validateCalls(calls []Call) error {
	if len(calls) == 0 {
		return walleterr.New(walleterr.KindTransaction, walleterr.CodeInvalidCall, "empty call set")
	}
	for i, c := range calls {
		if strings.TrimSpace(c.ContractAddress) == "" {
			return walleterr.New(walleterr.KindTransaction, walleterr.CodeInvalidCall,
				"call %d: missing contract address", i)
		}
		if _, err := starkcurve.ParseFelt(c.ContractAddress); err != nil {
			return walleterr.Wrap(err, walleterr.KindTransaction, walleterr.CodeInvalidCall,
				"call %d: bad contract address", i)
		}
		if strings.TrimSpace(c.Entrypoint) == "" {
			return walleterr.New(walleterr.KindTransaction, walleterr.CodeInvalidCall,
				"call %d: missing entrypoint", i)
		}
		for j, d := range c.Calldata {
			if _, err := starkcurve.ParseFelt(d); err != nil {
				return walleterr.Wrap(err, walleterr.KindTransaction, walleterr.CodeInvalidCall,
					"call %d: calldata %d", i, j)
			}
		}
	}
	return nil
}

// feltChunks packs a string into 31-byte big-endian felts.
func feltChunks(s string) []*big.Int {
	b := []byte(s)
	if len(b) == 0 {
		return []*big.Int{big.NewInt(0)}
	}
	var out []*big.Int
	for len(b) > 0 {
		n := 31
		if len(b) < n {
			n = len(b)
		}
		out = append(out, new(big.Int).SetBytes(b[:n]))
		b = b[n:]
	}
	return out
}

func feltsToHex(felts []*big.Int) []string {
	out := make([]string, 0, len(felts))
	for _, f := range felts {
		out = append(out, starkcurve.FeltHex(f))
	}
	return out
}
