package wallet

import (
	"context"
	"math/big"
	"strings"

	"github.com/starkwallet-io/starkwallet-client/internal/starkcurve"
	"github.com/starkwallet-io/starkwallet-client/internal/starkrpc"
	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

// ETHBalance returns the account's ETH balance as a trimmed decimal string.
func (w *InAppWallet) ETHBalance(ctx context.Context) (string, error) {
	return w.ERC20Balance(ctx, ethTokenAddress, ethDecimals)
}

// ERC20Balance queries balanceOf on an ERC-20 token and formats the uint256
// result with the given decimals.
func (w *InAppWallet) ERC20Balance(ctx context.Context, token string, decimals uint8) (string, error) {
	raw, err := w.balanceOf(ctx, token)
	if err != nil {
		return "", err
	}
	return formatUnits(raw, decimals), nil
}

// TokenBalance queries the token's own decimals entrypoint first, then its
// balance. Use ERC20Balance when the decimals are already known.
func (w *InAppWallet) TokenBalance(ctx context.Context, token string) (string, error) {
	provider, err := w.networks.Provider(ctx)
	if err != nil {
		return "", err
	}
	out, err := provider.Call(ctx, starkrpc.FunctionCall{
		ContractAddress:    token,
		EntryPointSelector: starkcurve.FeltHex(w.curve.SelectorFromName("decimals")),
	})
	if err != nil {
		return "", err
	}
	if len(out) != 1 {
		return "", walleterr.New(walleterr.KindNetwork, walleterr.CodeRPCFailure,
			"decimals on %s returned %d felts", token, len(out))
	}
	dec, err := starkcurve.ParseFelt(out[0])
	if err != nil || !dec.IsUint64() || dec.Uint64() > 77 {
		return "", walleterr.New(walleterr.KindNetwork, walleterr.CodeRPCFailure,
			"decimals on %s returned %q", token, out[0])
	}
	return w.ERC20Balance(ctx, token, uint8(dec.Uint64()))
}

// balanceOf reads the uint256 (low, high) pair and recombines it.
func (w *InAppWallet) balanceOf(ctx context.Context, token string) (*big.Int, error) {
	provider, err := w.networks.Provider(ctx)
	if err != nil {
		return nil, err
	}
	out, err := provider.Call(ctx, starkrpc.FunctionCall{
		ContractAddress:    token,
		EntryPointSelector: starkcurve.FeltHex(w.curve.SelectorFromName("balanceOf")),
		Calldata:           []string{w.address},
	})
	if err != nil {
		return nil, err
	}
	if len(out) != 2 {
		return nil, walleterr.New(walleterr.KindNetwork, walleterr.CodeRPCFailure,
			"balanceOf on %s returned %d felts, want 2", token, len(out))
	}
	low, err := starkcurve.ParseFelt(out[0])
	if err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindNetwork, walleterr.CodeRPCFailure, "balance low word")
	}
	high, err := starkcurve.ParseFelt(out[1])
	if err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindNetwork, walleterr.CodeRPCFailure, "balance high word")
	}
	return new(big.Int).Add(low, new(big.Int).Lsh(high, 128)), nil
}

// formatUnits renders amount/10^decimals as a decimal string, trimming
// trailing zeros from the fraction and dropping the point when it empties.
// Precision is exact; nothing is rounded away.
func formatUnits(amount *big.Int, decimals uint8) string {
	if amount.Sign() == 0 {
		return "0"
	}
	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(amount, div, new(big.Int))

	if frac.Sign() == 0 {
		return whole.String()
	}

	digits := frac.String()
	if pad := int(decimals) - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	digits = strings.TrimRight(digits, "0")
	return whole.String() + "." + digits
}
