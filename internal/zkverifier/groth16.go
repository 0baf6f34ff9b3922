package zkverifier

import (
	"bytes"
	"context"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
)

// Groth16Verifier checks Groth16 proofs over BN254 against a fixed
// verifying key. One instance serves one circuit; deployments register an
// instance per verifier ref.
type Groth16Verifier struct {
	vk groth16.VerifyingKey
}

func NewGroth16Verifier(vk groth16.VerifyingKey) *Groth16Verifier {
	return &Groth16Verifier{vk: vk}
}

// ParseVerifyingKey deserializes a BN254 Groth16 verifying key.
func ParseVerifyingKey(raw []byte) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("deserialize verifying key: %w", err)
	}
	return vk, nil
}

// VerifyProof deserializes the proof, rebuilds the public witness in the
// fixed input order and runs pairing verification. Every failure mode,
// malformed bytes included, means the proof does not verify.
func (v *Groth16Verifier) VerifyProof(_ context.Context, proofBytes []byte, inputs PublicInputs) error {
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("deserialize proof: %w", err)
	}

	publicWitness, err := buildPublicWitness(inputs)
	if err != nil {
		return fmt.Errorf("build public witness: %w", err)
	}

	if err := groth16.Verify(proof, v.vk, publicWitness); err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}
	return nil
}

func buildPublicWitness(inputs PublicInputs) (witness.Witness, error) {
	assignment := EligibilityCircuit{
		PolicyID:   inputs.PolicyID,
		Version:    inputs.Version,
		Commitment: inputs.Commitment.Big(),
		Threshold:  inputs.Threshold,
	}
	return frontend.NewWitness(&assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
}
