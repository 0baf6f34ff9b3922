package domain

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	dErrors "attesto/pkg/domain-errors"
)

// CommitmentSize is the canonical byte width of a commitment.
const CommitmentSize = 32

// Commitment is a hiding commitment to a subject's verified attributes,
// an element of the BN254 scalar field in big-endian form. The zero value
// means "no commitment recorded"; the type is comparable so records can be
// compared and restored wholesale.
//
// Usage: construct via ParseCommitment (wire form) or NewCommitment (field
// element) at trust boundaries.
type Commitment [CommitmentSize]byte

// ParseCommitment constructs a Commitment from its canonical wire form, a
// 0x-prefixed big-endian hex string.
//
// Errors: returns CodeInvalidInput when the value is missing the prefix, is
// not valid hex, overflows 32 bytes, or is not reduced modulo the field.
func ParseCommitment(s string) (Commitment, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return Commitment{}, dErrors.New(dErrors.CodeInvalidInput, "commitment must be 0x-prefixed hex")
	}
	digits := s[2:]
	if digits == "" {
		return Commitment{}, dErrors.New(dErrors.CodeInvalidInput, "commitment hex cannot be empty")
	}
	if len(digits) > 2*CommitmentSize {
		return Commitment{}, dErrors.New(dErrors.CodeInvalidInput, "commitment exceeds 32 bytes")
	}
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	raw, err := hex.DecodeString(digits)
	if err != nil {
		return Commitment{}, dErrors.New(dErrors.CodeInvalidInput, "commitment is not valid hex")
	}
	var c Commitment
	copy(c[CommitmentSize-len(raw):], raw)
	if !c.inField() {
		return Commitment{}, dErrors.New(dErrors.CodeInvalidInput, "commitment is not a reduced field element")
	}
	return c, nil
}

// NewCommitment constructs a Commitment from a field element.
//
// Errors: returns CodeInvalidInput when v is nil, negative, or not reduced
// modulo the field.
func NewCommitment(v *big.Int) (Commitment, error) {
	if v == nil || v.Sign() < 0 {
		return Commitment{}, dErrors.New(dErrors.CodeInvalidInput, "commitment must be a non-negative field element")
	}
	if v.Cmp(fr.Modulus()) >= 0 {
		return Commitment{}, dErrors.New(dErrors.CodeInvalidInput, "commitment is not a reduced field element")
	}
	var c Commitment
	v.FillBytes(c[:])
	return c, nil
}

func (c Commitment) inField() bool {
	return new(big.Int).SetBytes(c[:]).Cmp(fr.Modulus()) < 0
}

// Big returns the commitment as a fresh big.Int.
func (c Commitment) Big() *big.Int {
	return new(big.Int).SetBytes(c[:])
}

// String returns the canonical wire form, 0x followed by 64 hex digits.
func (c Commitment) String() string {
	return "0x" + hex.EncodeToString(c[:])
}

// IsZero returns true if no commitment is recorded.
func (c Commitment) IsZero() bool {
	return c == Commitment{}
}
