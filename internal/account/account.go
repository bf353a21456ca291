// Package account maps (private key, account variant) to deterministic
// contract addresses and deployment payloads. Everything here is pure and
// side-effect free; the network is never touched.
package account

import (
	"math/big"

	"github.com/starkwallet-io/starkwallet-client/internal/starkcurve"
	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

// Variant identifies a supported account implementation. Each maps 1:1 to a
// fixed class hash and a constructor-argument shape.
type Variant string

const (
	// VariantStandard is the guardian-capable account: calldata is
	// [owner public key, guardian] with the guardian fixed to zero.
	VariantStandard Variant = "standard-guardian"

	// VariantDevnet is the devnet test account: calldata is [public_key].
	VariantDevnet Variant = "devnet-test"
)

var classHashes = map[Variant]*big.Int{
	VariantStandard: mustFelt("0x036078334509b514626504edc9fb252328d1a240e4e948bef8d0c08dff45927f"),
	VariantDevnet:   mustFelt("0x061dac032f228abef9c6626f995015233097ae253a7f72d68552db02f2971b8f"),
}

func mustFelt(s string) *big.Int {
	x, err := starkcurve.ParseFelt(s)
	if err != nil {
		panic(err)
	}
	return x
}

// DeploymentData is everything a deploy-account transaction needs.
// The deployment salt is the public key, while canonical address derivation
// uses salt zero; the two addresses intentionally differ. ContractAddress here
// is the address the deploy transaction will instantiate (salt = public key).
type DeploymentData struct {
	ClassHash           string   `json:"classHash"`
	Salt                string   `json:"salt"`
	ConstructorCalldata []string `json:"constructorCalldata"`
	ContractAddress     string   `json:"contractAddress"`
}

// Deriver computes addresses and deployment payloads through the injected
// crypto capability.
type Deriver struct {
	curve starkcurve.Capability
}

func NewDeriver(curve starkcurve.Capability) *Deriver {
	return &Deriver{curve: curve}
}

// ClassHash returns the fixed class hash for a variant.
func (d *Deriver) ClassHash(variant Variant) (*big.Int, error) {
	h, ok := classHashes[variant]
	if !ok {
		return nil, walleterr.New(walleterr.KindConfiguration, walleterr.CodeUnsupportedVariant,
			"unsupported account variant %q", variant)
	}
	return h, nil
}

// ConstructorCalldata builds the variant's constructor arguments for a public key.
func (d *Deriver) ConstructorCalldata(variant Variant, publicKey *big.Int) ([]*big.Int, error) {
	switch variant {
	case VariantStandard:
		return []*big.Int{publicKey, big.NewInt(0)}, nil
	case VariantDevnet:
		return []*big.Int{publicKey}, nil
	default:
		return nil, walleterr.New(walleterr.KindConfiguration, walleterr.CodeUnsupportedVariant,
			"unsupported account variant %q", variant)
	}
}

// PublicKey derives the public key felt from a canonical-form private key.
func (d *Deriver) PublicKey(privateKey string) (*big.Int, error) {
	scalar, err := starkcurve.ParseFelt(privateKey)
	if err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindWallet, walleterr.CodeInvalidPrivateKey, "parse private key")
	}
	return d.curve.PublicKeyFromPrivate(scalar)
}

// DeriveAddress computes the canonical account address: salt fixed at zero,
// deployer zero. Stable across calls and restarts for the same (key, variant).
func (d *Deriver) DeriveAddress(privateKey string, variant Variant) (string, error) {
	pub, err := d.PublicKey(privateKey)
	if err != nil {
		return "", err
	}
	return d.DeriveAddressFromPublicKey(pub, variant)
}

// DeriveAddressFromPublicKey computes the canonical address without touching a
// private key.
func (d *Deriver) DeriveAddressFromPublicKey(publicKey *big.Int, variant Variant) (string, error) {
	addr, err := d.addressWithSalt(publicKey, variant, big.NewInt(0))
	if err != nil {
		return "", err
	}
	return starkcurve.AddressHex(addr), nil
}

// PrepareDeploymentData builds the deploy-account payload. Deployment salts
// with the public key, unlike canonical derivation.
func (d *Deriver) PrepareDeploymentData(privateKey string, variant Variant) (*DeploymentData, error) {
	pub, err := d.PublicKey(privateKey)
	if err != nil {
		return nil, err
	}
	classHash, err := d.ClassHash(variant)
	if err != nil {
		return nil, err
	}
	calldata, err := d.ConstructorCalldata(variant, pub)
	if err != nil {
		return nil, err
	}
	addr, err := d.addressWithSalt(pub, variant, pub)
	if err != nil {
		return nil, err
	}

	out := &DeploymentData{
		ClassHash:       starkcurve.FeltHex(classHash),
		Salt:            starkcurve.FeltHex(pub),
		ContractAddress: starkcurve.AddressHex(addr),
	}
	for _, c := range calldata {
		out.ConstructorCalldata = append(out.ConstructorCalldata, starkcurve.FeltHex(c))
	}
	return out, nil
}

func (d *Deriver) addressWithSalt(publicKey *big.Int, variant Variant, salt *big.Int) (*big.Int, error) {
	classHash, err := d.ClassHash(variant)
	if err != nil {
		return nil, err
	}
	calldata, err := d.ConstructorCalldata(variant, publicKey)
	if err != nil {
		return nil, err
	}
	return d.curve.ContractAddress(big.NewInt(0), salt, classHash, calldata)
}
