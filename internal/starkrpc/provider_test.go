package starkrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

// rpcStub answers each JSON-RPC method from a canned table.
func rpcStub(t *testing.T, results map[string]any, errs map[string]*rpcError) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if e, ok := errs[req.Method]; ok {
			resp["error"] = e
		} else if res, ok := results[req.Method]; ok {
			resp["result"] = res
		} else {
			resp["error"] = &rpcError{Code: -32601, Message: "method not found"}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestNewRejectsBadURLs(t *testing.T) {
	for _, u := range []string{"", "not a url", "ftp://host", "http://"} {
		_, err := New(u, nil)
		require.Error(t, err, "url %q", u)
		assert.Equal(t, walleterr.CodeInvalidURL, walleterr.CodeOf(err))
	}
}

func TestChainIDAndBlockNumber(t *testing.T) {
	srv := rpcStub(t, map[string]any{
		"starknet_chainId":     "0x534e5f5345504f4c4941",
		"starknet_blockNumber": 1234,
	}, nil)
	defer srv.Close()

	p, err := New(srv.URL, nil)
	require.NoError(t, err)

	id, err := p.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0x534e5f5345504f4c4941", id)

	n, err := p.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1234, n)
}

func TestClassHashAtUndeployedIsAbsentNotError(t *testing.T) {
	srv := rpcStub(t, nil, map[string]*rpcError{
		"starknet_getClassHashAt": {Code: codeContractNotFound, Message: "Contract not found"},
	})
	defer srv.Close()

	p, err := New(srv.URL, nil)
	require.NoError(t, err)

	hash, ok, err := p.ClassHashAt(context.Background(), "0x1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, hash)
}

func TestClassHashAtDeployed(t *testing.T) {
	srv := rpcStub(t, map[string]any{"starknet_getClassHashAt": "0xabc"}, nil)
	defer srv.Close()

	p, err := New(srv.URL, nil)
	require.NoError(t, err)

	hash, ok, err := p.ClassHashAt(context.Background(), "0x1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0xabc", hash)
}

func TestTransactionReceiptPending(t *testing.T) {
	srv := rpcStub(t, nil, map[string]*rpcError{
		"starknet_getTransactionReceipt": {Code: codeTxnHashNotFound, Message: "Transaction hash not found"},
	})
	defer srv.Close()

	p, err := New(srv.URL, nil)
	require.NoError(t, err)

	rcpt, ok, err := p.TransactionReceipt(context.Background(), "0xdead")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, rcpt)
}

func TestTransactionReceiptTerminalStates(t *testing.T) {
	accepted := Receipt{FinalityStatus: "ACCEPTED_ON_L2", ExecutionStatus: "SUCCEEDED"}
	assert.True(t, accepted.Accepted())
	assert.False(t, accepted.Reverted())

	reverted := Receipt{FinalityStatus: "ACCEPTED_ON_L2", ExecutionStatus: "REVERTED"}
	assert.False(t, reverted.Accepted())
	assert.True(t, reverted.Reverted())
}

func TestCallReturnsFelts(t *testing.T) {
	srv := rpcStub(t, map[string]any{"starknet_call": []string{"0x14d1120d7b160000", "0x0"}}, nil)
	defer srv.Close()

	p, err := New(srv.URL, nil)
	require.NoError(t, err)

	out, err := p.Call(context.Background(), FunctionCall{
		ContractAddress:    "0x49d",
		EntryPointSelector: "0x2e4",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0x14d1120d7b160000", "0x0"}, out)
}

func TestRPCErrorsAreNetworkErrors(t *testing.T) {
	srv := rpcStub(t, nil, map[string]*rpcError{
		"starknet_getNonce": {Code: -32603, Message: "internal error"},
	})
	defer srv.Close()

	p, err := New(srv.URL, nil)
	require.NoError(t, err)

	_, err = p.Nonce(context.Background(), "0x1")
	require.Error(t, err)
	assert.True(t, walleterr.IsKind(err, walleterr.KindNetwork))
	assert.Equal(t, walleterr.CodeRPCFailure, walleterr.CodeOf(err))
}

func TestUnreachableProvider(t *testing.T) {
	p, err := New("http://127.0.0.1:1", nil)
	require.NoError(t, err)

	_, err = p.ChainID(context.Background())
	require.Error(t, err)
	assert.Equal(t, walleterr.CodeProviderUnreachable, walleterr.CodeOf(err))
}
