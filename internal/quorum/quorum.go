// Package quorum verifies stake-weighted aggregate attestations from the
// oracle operator set. The platform treats the registry as a trusted,
// deterministic collaborator: callers hand it the signed message hash and
// the aggregate-signature material and receive the attested stake and
// signer-set hash, or an error describing why the attestation fails.
package quorum

import (
	"context"
	"fmt"
)

// Attestation is the outcome of a successful aggregate-signature check.
type Attestation struct {
	TotalStake    uint64
	SignerSetHash [32]byte
}

// Material carries the aggregate-signature artifacts supplied by the
// attestation submitter. It lives only for the duration of one verify
// call and is never persisted.
type Material struct {
	// ApkHash commits to the aggregate public key. The registry recomputes
	// it from Apk and rejects the material on mismatch.
	ApkHash [32]byte
	// Apk is the compressed aggregate public key of the claimed signers.
	Apk []byte
	// Signature is the compressed aggregate signature over the message hash.
	Signature []byte
	// SignerBitmap marks which operators signed, by operator index.
	SignerBitmap []byte
}

// Registry verifies that a quorum of operator stake signed msgHash at the
// given reference block.
type Registry interface {
	VerifySignature(ctx context.Context, msgHash [32]byte, refBlock uint64, material Material) (*Attestation, error)
}

// Operator is one oracle operator: its BLS public key and stake weight.
type Operator struct {
	PubKey []byte
	Stake  uint64
}

// OperatorSet is the static operator registry. The quorum fraction is
// stake-weighted: an attestation passes when the signers hold at least
// num/den of the total stake, rounded up.
type OperatorSet struct {
	operators []Operator
	total     uint64
	num, den  uint64
}

// NewOperatorSet builds the registry from the configured operators.
//
// Errors: rejects an empty set, malformed public keys, zero stakes, and a
// quorum fraction that is zero or above one.
func NewOperatorSet(operators []Operator, num, den uint64) (*OperatorSet, error) {
	if len(operators) == 0 {
		return nil, fmt.Errorf("operator set cannot be empty")
	}
	if num == 0 || den == 0 || num > den {
		return nil, fmt.Errorf("invalid quorum fraction %d/%d", num, den)
	}

	var total uint64
	for i, op := range operators {
		if len(op.PubKey) != PublicKeySize {
			return nil, fmt.Errorf("operator %d: public key must be %d bytes, got %d", i, PublicKeySize, len(op.PubKey))
		}
		if op.Stake == 0 {
			return nil, fmt.Errorf("operator %d: stake cannot be zero", i)
		}
		total += op.Stake
	}

	set := &OperatorSet{
		operators: make([]Operator, len(operators)),
		total:     total,
		num:       num,
		den:       den,
	}
	copy(set.operators, operators)
	return set, nil
}

// Len returns the number of registered operators.
func (s *OperatorSet) Len() int {
	return len(s.operators)
}

// TotalStake returns the stake held by the whole operator set.
func (s *OperatorSet) TotalStake() uint64 {
	return s.total
}

// QuorumStake returns the minimum signed stake for a valid attestation,
// rounded up so a bare majority of a tiny set still needs a real signer.
func (s *OperatorSet) QuorumStake() uint64 {
	return (s.total*s.num + s.den - 1) / s.den
}

// Operator returns the operator at the given index.
func (s *OperatorSet) Operator(i int) (Operator, bool) {
	if i < 0 || i >= len(s.operators) {
		return Operator{}, false
	}
	return s.operators[i], true
}
