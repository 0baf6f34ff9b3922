package zkverifier

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/frontend"
	gmimc "github.com/consensys/gnark/std/hash/mimc"

	"attesto/pkg/domain"
)

// EligibilityCircuit is the reference circuit for attribute-threshold
// eligibility. The prover shows it knows an attribute value and blinding
// nonce whose commitment matches the attested one and whose value meets
// the policy threshold.
//
// Public inputs are declared first and their order is load-bearing: the
// verifier rebuilds the public witness in declaration order.
type EligibilityCircuit struct {
	PolicyID   frontend.Variable `gnark:",public"`
	Version    frontend.Variable `gnark:",public"`
	Commitment frontend.Variable `gnark:",public"`
	Threshold  frontend.Variable `gnark:",public"`

	AttrValue frontend.Variable
	Nonce     frontend.Variable
}

func (c *EligibilityCircuit) Define(api frontend.API) error {
	hasher, err := gmimc.NewMiMC(api)
	if err != nil {
		return err
	}
	hasher.Write(c.PolicyID, c.Version, c.AttrValue, c.Nonce)
	api.AssertIsEqual(hasher.Sum(), c.Commitment)

	api.AssertIsLessOrEqual(c.Threshold, c.AttrValue)
	return nil
}

// ComputeCommitment derives the reference-circuit commitment outside the
// circuit: MiMC over (policyID, version, attr, nonce) as BN254 field
// elements, in that order. Provers and test fixtures use it; the platform
// core never interprets commitment contents.
func ComputeCommitment(policyID, version uint64, attr, nonce *big.Int) (domain.Commitment, error) {
	h := mimc.NewMiMC()
	for _, v := range []*big.Int{
		new(big.Int).SetUint64(policyID),
		new(big.Int).SetUint64(version),
		attr,
		nonce,
	} {
		var el fr.Element
		el.SetBigInt(v)
		b := el.Bytes()
		if _, err := h.Write(b[:]); err != nil {
			return domain.Commitment{}, err
		}
	}
	return domain.NewCommitment(new(big.Int).SetBytes(h.Sum(nil)))
}
