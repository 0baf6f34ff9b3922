package domain

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "attesto/pkg/domain-errors"
)

func TestParseCommitment(t *testing.T) {
	t.Run("round-trips canonical form", func(t *testing.T) {
		c, err := NewCommitment(big.NewInt(42))
		require.NoError(t, err)

		parsed, err := ParseCommitment(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
		assert.Equal(t, int64(42), parsed.Big().Int64())
	})

	t.Run("accepts short hex", func(t *testing.T) {
		c, err := ParseCommitment("0x2a")
		require.NoError(t, err)
		assert.Equal(t, int64(42), c.Big().Int64())
	})

	t.Run("rejects missing prefix", func(t *testing.T) {
		_, err := ParseCommitment("2a")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects non-hex digits", func(t *testing.T) {
		_, err := ParseCommitment("0xzz")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects values outside the field", func(t *testing.T) {
		var buf [CommitmentSize]byte
		fr.Modulus().FillBytes(buf[:])

		_, err := ParseCommitment("0x" + hex.EncodeToString(buf[:]))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects overlong input", func(t *testing.T) {
		_, err := ParseCommitment("0x" + strings.Repeat("00", CommitmentSize+1))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestNewCommitment_FieldBounds(t *testing.T) {
	t.Run("rejects nil", func(t *testing.T) {
		_, err := NewCommitment(nil)
		require.Error(t, err)
	})

	t.Run("rejects modulus", func(t *testing.T) {
		_, err := NewCommitment(fr.Modulus())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts modulus minus one", func(t *testing.T) {
		max := new(big.Int).Sub(fr.Modulus(), big.NewInt(1))
		c, err := NewCommitment(max)
		require.NoError(t, err)
		assert.Equal(t, 0, c.Big().Cmp(max))
	})

	t.Run("zero value means no commitment", func(t *testing.T) {
		var c Commitment
		assert.True(t, c.IsZero())

		set, err := NewCommitment(big.NewInt(1))
		require.NoError(t, err)
		assert.False(t, set.IsZero())
	})
}

// FuzzParseCommitment tests that parsing never panics on arbitrary input and
// that accepted values round-trip through the canonical wire form.
func FuzzParseCommitment(f *testing.F) {
	f.Add("")
	f.Add("0x2a")
	f.Add("0x" + "ff")
	f.Add("0x30644e72e131a029b85045b68181585d2833e84879b9709143e1f593f0000001")
	f.Add("0X2A")
	f.Add("0x")
	f.Add("'; DROP TABLE subjects;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		c, err := ParseCommitment(input)
		if err != nil {
			return
		}
		roundTrip, err2 := ParseCommitment(c.String())
		if err2 != nil {
			t.Errorf("accepted value failed round-trip: %v", err2)
		}
		if roundTrip != c {
			t.Error("round-trip changed commitment value")
		}
	})
}
