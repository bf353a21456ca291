package wallet

import (
	"math/big"

	"github.com/starkwallet-io/starkwallet-client/internal/starkcurve"
	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

// Transaction hash prefixes, short-string encoded per the chain spec.
var (
	invokePrefix        = new(big.Int).SetBytes([]byte("invoke"))
	deployAccountPrefix = new(big.Int).SetBytes([]byte("deploy_account"))

	versionOne = big.NewInt(1)
)

// executeCalldata flattens calls into the account __execute__ layout:
// [n_calls, (to, selector, n_args, args...)*].
func executeCalldata(curve starkcurve.Capability, calls []Call) ([]*big.Int, error) {
	out := []*big.Int{big.NewInt(int64(len(calls)))}
	for _, c := range calls {
		to, err := starkcurve.ParseFelt(c.ContractAddress)
		if err != nil {
			return nil, walleterr.Wrap(err, walleterr.KindTransaction, walleterr.CodeInvalidCall,
				"call target %q", c.ContractAddress)
		}
		out = append(out, to, curve.SelectorFromName(c.Entrypoint), big.NewInt(int64(len(c.Calldata))))
		for _, d := range c.Calldata {
			felt, err := starkcurve.ParseFelt(d)
			if err != nil {
				return nil, walleterr.Wrap(err, walleterr.KindTransaction, walleterr.CodeInvalidCall,
					"calldata element %q", d)
			}
			out = append(out, felt)
		}
	}
	return out, nil
}

// invokeTxHash computes the v1 invoke transaction hash:
// h(prefix, version, sender, 0, h(calldata), max_fee, chain_id, nonce).
func invokeTxHash(curve starkcurve.Capability, sender *big.Int, calldata []*big.Int, maxFee, chainID, nonce *big.Int) (*big.Int, error) {
	calldataHash, err := curve.HashElements(calldata)
	if err != nil {
		return nil, err
	}
	return curve.HashElements([]*big.Int{
		invokePrefix,
		versionOne,
		sender,
		big.NewInt(0),
		calldataHash,
		maxFee,
		chainID,
		nonce,
	})
}

// deployAccountTxHash computes the v1 deploy-account transaction hash:
// h(prefix, version, contract_address, 0, h(class_hash, salt, calldata...), max_fee, chain_id, nonce).
func deployAccountTxHash(curve starkcurve.Capability, contractAddress, classHash, salt *big.Int, constructorCalldata []*big.Int, maxFee, chainID, nonce *big.Int) (*big.Int, error) {
	inner := append([]*big.Int{classHash, salt}, constructorCalldata...)
	innerHash, err := curve.HashElements(inner)
	if err != nil {
		return nil, err
	}
	return curve.HashElements([]*big.Int{
		deployAccountPrefix,
		versionOne,
		contractAddress,
		big.NewInt(0),
		innerHash,
		maxFee,
		chainID,
		nonce,
	})
}
