// Package starkcurve adapts the Stark-curve cryptographic primitives the SDK
// depends on (key derivation, ECDSA signing, Pedersen array hashing, the
// deterministic contract-address hash, entrypoint selectors) behind a single
// capability interface. The rest of the SDK never imports the curve library
// directly, so tests can substitute a fake.
package starkcurve

import (
	"math/big"

	"github.com/NethermindEth/starknet.go/curve"
	"github.com/NethermindEth/starknet.go/utils"

	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

// Capability is the crypto surface consumed by keys, account and wallet.
type Capability interface {
	// RandomScalar returns a uniformly random private-key scalar in curve range.
	RandomScalar() (*big.Int, error)
	// PublicKeyFromPrivate derives the x coordinate of priv*G.
	PublicKeyFromPrivate(priv *big.Int) (*big.Int, error)
	// Sign produces the (r, s) signature felts over a message hash.
	Sign(msgHash, priv *big.Int) (r, s *big.Int, err error)
	// HashElements is the chain-standard compute_hash_on_elements.
	HashElements(elems []*big.Int) (*big.Int, error)
	// ContractAddress computes the deterministic account contract address.
	ContractAddress(deployer, salt, classHash *big.Int, constructorCalldata []*big.Int) (*big.Int, error)
	// SelectorFromName returns the entrypoint selector felt for a function name.
	SelectorFromName(name string) *big.Int
	// InRange reports whether scalar is a valid non-zero private key.
	InRange(scalar *big.Int) bool
}

var (
	// contractAddressPrefix is the felt encoding of "STARKNET_CONTRACT_ADDRESS".
	contractAddressPrefix = new(big.Int).SetBytes([]byte("STARKNET_CONTRACT_ADDRESS"))

	// addrBound = 2^251 - 256; contract addresses are reduced modulo this bound.
	addrBound = new(big.Int).Sub(
		new(big.Int).Lsh(big.NewInt(1), 251),
		big.NewInt(256),
	)
)

// Stark implements Capability over NethermindEth/starknet.go.
type Stark struct{}

// New returns the production capability.
func New() Stark { return Stark{} }

func (Stark) RandomScalar() (*big.Int, error) {
	priv, err := curve.Curve.GetRandomPrivateKey()
	if err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindWallet, walleterr.CodeInvalidPrivateKey, "random scalar")
	}
	return priv, nil
}

func (Stark) PublicKeyFromPrivate(priv *big.Int) (*big.Int, error) {
	x, _, err := curve.Curve.PrivateToPoint(priv)
	if err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindWallet, walleterr.CodeInvalidPrivateKey, "derive public key")
	}
	return x, nil
}

func (Stark) Sign(msgHash, priv *big.Int) (*big.Int, *big.Int, error) {
	r, s, err := curve.Curve.Sign(msgHash, priv)
	if err != nil {
		return nil, nil, walleterr.Wrap(err, walleterr.KindTransaction, walleterr.CodeExecutionFailed, "sign hash")
	}
	return r, s, nil
}

func (Stark) HashElements(elems []*big.Int) (*big.Int, error) {
	return curve.ComputeHashOnElements(elems), nil
}

func (s Stark) ContractAddress(deployer, salt, classHash *big.Int, constructorCalldata []*big.Int) (*big.Int, error) {
	calldataHash, err := s.HashElements(constructorCalldata)
	if err != nil {
		return nil, err
	}
	addr, err := s.HashElements([]*big.Int{
		contractAddressPrefix,
		deployer,
		salt,
		classHash,
		calldataHash,
	})
	if err != nil {
		return nil, err
	}
	return addr.Mod(addr, addrBound), nil
}

func (Stark) SelectorFromName(name string) *big.Int {
	return utils.GetSelectorFromName(name)
}

func (Stark) InRange(scalar *big.Int) bool {
	if scalar == nil || scalar.Sign() <= 0 {
		return false
	}
	return scalar.Cmp(curve.Curve.N) < 0
}
