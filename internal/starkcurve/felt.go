package starkcurve

import (
	"fmt"
	"math/big"
	"strings"
)

// FeltHex renders a felt as minimal-length 0x hex, the JSON-RPC wire form.
func FeltHex(x *big.Int) string {
	if x == nil || x.Sign() == 0 {
		return "0x0"
	}
	return "0x" + x.Text(16)
}

// AddressHex renders a felt as fixed-length 0x + 64 hex digits, the canonical
// account-address form persisted in storage keys.
func AddressHex(x *big.Int) string {
	if x == nil {
		return "0x" + strings.Repeat("0", 64)
	}
	return fmt.Sprintf("0x%064s", x.Text(16))
}

// ParseFelt parses a 0x-prefixed or bare hex felt.
func ParseFelt(s string) (*big.Int, error) {
	t := strings.TrimSpace(strings.ToLower(s))
	t = strings.TrimPrefix(t, "0x")
	if t == "" {
		return nil, fmt.Errorf("empty felt")
	}
	x, ok := new(big.Int).SetString(t, 16)
	if !ok {
		return nil, fmt.Errorf("invalid felt %q", s)
	}
	return x, nil
}
