// Package starkrpc is a thin typed client over the Starknet JSON-RPC surface.
// It exposes exactly the methods the wallet runtime needs; quantities travel
// as 0x hex felts, matching the wire format.
package starkrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

// JSON-RPC error codes the client branches on.
const (
	codeContractNotFound = 20
	codeTxnHashNotFound  = 29
)

const defaultHTTPTimeout = 10 * time.Second

// FunctionCall is the read-only call request shape.
type FunctionCall struct {
	ContractAddress    string   `json:"contract_address"`
	EntryPointSelector string   `json:"entry_point_selector"`
	Calldata           []string `json:"calldata"`
}

// InvokeTxn is a v1 invoke transaction ready for submission.
type InvokeTxn struct {
	Type          string   `json:"type"`
	SenderAddress string   `json:"sender_address"`
	Calldata      []string `json:"calldata"`
	MaxFee        string   `json:"max_fee"`
	Version       string   `json:"version"`
	Signature     []string `json:"signature"`
	Nonce         string   `json:"nonce"`
}

// DeployAccountTxn is a v1 deploy-account transaction ready for submission.
type DeployAccountTxn struct {
	Type                string   `json:"type"`
	MaxFee              string   `json:"max_fee"`
	Version             string   `json:"version"`
	Signature           []string `json:"signature"`
	Nonce               string   `json:"nonce"`
	ClassHash           string   `json:"class_hash"`
	ContractAddressSalt string   `json:"contract_address_salt"`
	ConstructorCalldata []string `json:"constructor_calldata"`
}

// Receipt is the subset of the transaction receipt the runtime reads.
type Receipt struct {
	TransactionHash string `json:"transaction_hash"`
	FinalityStatus  string `json:"finality_status"`
	ExecutionStatus string `json:"execution_status"`
	RevertReason    string `json:"revert_reason,omitempty"`
}

// Accepted reports whether the receipt is terminal and successful.
func (r *Receipt) Accepted() bool {
	return (r.FinalityStatus == "ACCEPTED_ON_L2" || r.FinalityStatus == "ACCEPTED_ON_L1") &&
		r.ExecutionStatus != "REVERTED"
}

// Reverted reports whether the receipt is terminal and failed.
func (r *Receipt) Reverted() bool { return r.ExecutionStatus == "REVERTED" }

// Provider is one connection handle to one network's RPC endpoint.
type Provider struct {
	rpcURL string
	client *http.Client
	nextID atomic.Uint64
}

// New validates the endpoint URL and builds a provider. The HTTP client is
// injectable for tests; pass nil for the default.
func New(rpcURL string, client *http.Client) (*Provider, error) {
	u, err := url.Parse(rpcURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, walleterr.New(walleterr.KindConfiguration, walleterr.CodeInvalidURL,
			"invalid rpc url %q", rpcURL)
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Provider{rpcURL: rpcURL, client: client}, nil
}

func (p *Provider) URL() string { return p.rpcURL }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      uint64 `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (p *Provider) do(ctx context.Context, method string, params, result any) error {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      p.nextID.Add(1),
	})
	if err != nil {
		return walleterr.Wrap(err, walleterr.KindNetwork, walleterr.CodeRPCFailure, "encode %s", method)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.rpcURL, bytes.NewReader(body))
	if err != nil {
		return walleterr.Wrap(err, walleterr.KindNetwork, walleterr.CodeRPCFailure, "build %s", method)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return walleterr.Wrap(err, walleterr.KindNetwork, walleterr.CodeProviderUnreachable, "%s", method)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return walleterr.Wrap(err, walleterr.KindNetwork, walleterr.CodeRPCFailure, "read %s response", method)
	}
	if resp.StatusCode != http.StatusOK {
		return walleterr.New(walleterr.KindNetwork, walleterr.CodeRPCFailure,
			"%s: http %d: %s", method, resp.StatusCode, truncate(raw))
	}

	var out rpcResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return walleterr.Wrap(err, walleterr.KindNetwork, walleterr.CodeRPCFailure, "decode %s response", method)
	}
	if out.Error != nil {
		return walleterr.Wrap(out.Error, walleterr.KindNetwork, walleterr.CodeRPCFailure, "%s", method)
	}
	if result != nil {
		if err := json.Unmarshal(out.Result, result); err != nil {
			return walleterr.Wrap(err, walleterr.KindNetwork, walleterr.CodeRPCFailure, "decode %s result", method)
		}
	}
	return nil
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// ChainID returns the network's chain id felt (short-string encoded).
func (p *Provider) ChainID(ctx context.Context) (string, error) {
	var out string
	if err := p.do(ctx, "starknet_chainId", nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

// SpecVersion returns the RPC spec version string.
func (p *Provider) SpecVersion(ctx context.Context) (string, error) {
	var out string
	if err := p.do(ctx, "starknet_specVersion", nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

// BlockNumber is the lightweight liveness probe used by health checks.
func (p *Provider) BlockNumber(ctx context.Context) (uint64, error) {
	var out uint64
	if err := p.do(ctx, "starknet_blockNumber", nil, &out); err != nil {
		return 0, err
	}
	return out, nil
}

// ClassHashAt returns the class hash deployed at an address. An undeployed
// address reports ("", false, nil) rather than an error.
func (p *Provider) ClassHashAt(ctx context.Context, address string) (string, bool, error) {
	var out string
	err := p.do(ctx, "starknet_getClassHashAt", []any{"latest", address}, &out)
	if err != nil {
		var re *rpcError
		if asRPCError(err, &re) && re.Code == codeContractNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return out, true, nil
}

// Nonce returns the account's current nonce felt.
func (p *Provider) Nonce(ctx context.Context, address string) (string, error) {
	var out string
	if err := p.do(ctx, "starknet_getNonce", []any{"pending", address}, &out); err != nil {
		return "", err
	}
	return out, nil
}

// Call performs a read-only contract call at the latest block.
func (p *Provider) Call(ctx context.Context, call FunctionCall) ([]string, error) {
	if call.Calldata == nil {
		call.Calldata = []string{}
	}
	var out []string
	if err := p.do(ctx, "starknet_call", []any{call, "latest"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type addTxResponse struct {
	TransactionHash string `json:"transaction_hash"`
	ContractAddress string `json:"contract_address,omitempty"`
}

// AddInvokeTransaction submits a signed invoke and returns its hash.
func (p *Provider) AddInvokeTransaction(ctx context.Context, tx InvokeTxn) (string, error) {
	var out addTxResponse
	params := map[string]any{"invoke_transaction": tx}
	if err := p.do(ctx, "starknet_addInvokeTransaction", params, &out); err != nil {
		return "", err
	}
	return out.TransactionHash, nil
}

// AddDeployAccountTransaction submits a signed deploy-account and returns its hash.
func (p *Provider) AddDeployAccountTransaction(ctx context.Context, tx DeployAccountTxn) (string, error) {
	var out addTxResponse
	params := map[string]any{"deploy_account_transaction": tx}
	if err := p.do(ctx, "starknet_addDeployAccountTransaction", params, &out); err != nil {
		return "", err
	}
	return out.TransactionHash, nil
}

// TransactionReceipt fetches a receipt. A not-yet-known hash reports
// (nil, false, nil): still pending, not an error.
func (p *Provider) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, bool, error) {
	var out Receipt
	err := p.do(ctx, "starknet_getTransactionReceipt", []any{txHash}, &out)
	if err != nil {
		var re *rpcError
		if asRPCError(err, &re) && re.Code == codeTxnHashNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &out, true, nil
}

func asRPCError(err error, target **rpcError) bool {
	return errors.As(err, target)
}
