package quorum

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

// signMaterial builds valid attestation material for the given signer indices.
func signMaterial(t *testing.T, keys []*KeyPair, indices []int, msgHash [32]byte) Material {
	t.Helper()
	sigs := make([][]byte, 0, len(indices))
	pubkeys := make([][]byte, 0, len(indices))
	for _, idx := range indices {
		sigs = append(sigs, keys[idx].Sign(msgHash[:]))
		pubkeys = append(pubkeys, keys[idx].PublicKeyBytes())
	}

	aggSig, err := AggregateSignatures(sigs)
	require.NoError(t, err)
	apk, err := AggregatePublicKeys(pubkeys)
	require.NoError(t, err)

	return Material{
		ApkHash:      ApkHash(apk),
		Apk:          apk,
		Signature:    aggSig,
		SignerBitmap: BuildSignerBitmap(indices, len(keys)),
	}
}

func TestDeterministicKeyFromSeed(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}

	key1, err := GenerateKeyFromSeed(seed)
	require.NoError(t, err)
	key2, err := GenerateKeyFromSeed(seed)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(key1.PublicKeyBytes(), key2.PublicKeyBytes()),
		"same seed should produce same key")

	_, err = GenerateKeyFromSeed(seed[:16])
	require.Error(t, err, "short seed should be rejected")
}

func TestVerifySignature(t *testing.T) {
	keys, operators := testOperators(t, 10, 20, 30, 40)
	set, err := NewOperatorSet(operators, 2, 3)
	require.NoError(t, err)
	registry := NewBLSRegistry(set)

	msgHash := blake3.Sum256([]byte("subject|commitment|1024"))
	ctx := context.Background()

	t.Run("quorum of stake verifies", func(t *testing.T) {
		// operators 1,2,3 hold 90 of 100; quorum is 67
		material := signMaterial(t, keys, []int{1, 2, 3}, msgHash)

		att, err := registry.VerifySignature(ctx, msgHash, 1024, material)
		require.NoError(t, err)
		assert.Equal(t, uint64(90), att.TotalStake)
		assert.NotEqual(t, [32]byte{}, att.SignerSetHash)
	})

	t.Run("signer set hash is deterministic", func(t *testing.T) {
		material := signMaterial(t, keys, []int{1, 2, 3}, msgHash)

		first, err := registry.VerifySignature(ctx, msgHash, 1024, material)
		require.NoError(t, err)
		second, err := registry.VerifySignature(ctx, msgHash, 1024, material)
		require.NoError(t, err)
		assert.Equal(t, first.SignerSetHash, second.SignerSetHash)
	})

	t.Run("different signer sets hash differently", func(t *testing.T) {
		all := signMaterial(t, keys, []int{0, 1, 2, 3}, msgHash)
		most := signMaterial(t, keys, []int{1, 2, 3}, msgHash)

		attAll, err := registry.VerifySignature(ctx, msgHash, 1024, all)
		require.NoError(t, err)
		attMost, err := registry.VerifySignature(ctx, msgHash, 1024, most)
		require.NoError(t, err)
		assert.NotEqual(t, attAll.SignerSetHash, attMost.SignerSetHash)
	})

	t.Run("stake below quorum is rejected", func(t *testing.T) {
		// operators 0,1 hold 30 of 100; quorum is 67
		material := signMaterial(t, keys, []int{0, 1}, msgHash)

		_, err := registry.VerifySignature(ctx, msgHash, 1024, material)
		require.ErrorContains(t, err, "below quorum")
	})

	t.Run("wrong message hash is rejected", func(t *testing.T) {
		material := signMaterial(t, keys, []int{1, 2, 3}, msgHash)
		wrong := blake3.Sum256([]byte("some other message"))

		_, err := registry.VerifySignature(ctx, wrong, 1024, material)
		require.ErrorContains(t, err, "does not verify")
	})

	t.Run("bitmap not matching apk is rejected", func(t *testing.T) {
		material := signMaterial(t, keys, []int{1, 2, 3}, msgHash)
		material.SignerBitmap = BuildSignerBitmap([]int{0, 1, 2, 3}, len(keys))

		_, err := registry.VerifySignature(ctx, msgHash, 1024, material)
		require.ErrorContains(t, err, "does not match signer bitmap")
	})

	t.Run("tampered apk hash is rejected", func(t *testing.T) {
		material := signMaterial(t, keys, []int{1, 2, 3}, msgHash)
		material.ApkHash[0] ^= 0xff

		_, err := registry.VerifySignature(ctx, msgHash, 1024, material)
		require.ErrorContains(t, err, "hash mismatch")
	})

	t.Run("empty bitmap is rejected", func(t *testing.T) {
		material := signMaterial(t, keys, []int{1, 2, 3}, msgHash)
		material.SignerBitmap = nil

		_, err := registry.VerifySignature(ctx, msgHash, 1024, material)
		require.ErrorContains(t, err, "bitmap is empty")
	})

	t.Run("signer index outside operator set is rejected", func(t *testing.T) {
		material := signMaterial(t, keys, []int{1, 2, 3}, msgHash)
		material.SignerBitmap = BuildSignerBitmap([]int{1, 2, 3, 5}, 8)

		_, err := registry.VerifySignature(ctx, msgHash, 1024, material)
		require.ErrorContains(t, err, "outside operator set")
	})

	t.Run("malformed signature bytes are rejected", func(t *testing.T) {
		material := signMaterial(t, keys, []int{1, 2, 3}, msgHash)
		material.Signature = make([]byte, SignatureSize)

		_, err := registry.VerifySignature(ctx, msgHash, 1024, material)
		require.ErrorContains(t, err, "malformed aggregate signature")
	})

	t.Run("truncated apk is rejected", func(t *testing.T) {
		material := signMaterial(t, keys, []int{1, 2, 3}, msgHash)
		material.Apk = material.Apk[:20]

		_, err := registry.VerifySignature(ctx, msgHash, 1024, material)
		require.ErrorContains(t, err, "must be 48 bytes")
	})
}

func TestAggregateSignaturesValidation(t *testing.T) {
	_, err := AggregateSignatures(nil)
	require.Error(t, err)

	_, err = AggregateSignatures([][]byte{{1, 2, 3}})
	require.ErrorContains(t, err, "invalid signature size")
}

func TestAggregatePublicKeysValidation(t *testing.T) {
	_, err := AggregatePublicKeys(nil)
	require.Error(t, err)

	_, err = AggregatePublicKeys([][]byte{{1, 2, 3}})
	require.ErrorContains(t, err, "invalid public key size")
}

func TestSignerBitmapRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		indices []int
		total   int
	}{
		{"empty", nil, 8},
		{"single", []int{0}, 8},
		{"spread", []int{0, 3, 7}, 8},
		{"across bytes", []int{1, 9, 14}, 16},
		{"all", []int{0, 1, 2, 3}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bitmap := BuildSignerBitmap(tt.indices, tt.total)
			got := ParseSignerBitmap(bitmap)
			if len(tt.indices) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.indices, got)
		})
	}

	t.Run("out of range indices are dropped", func(t *testing.T) {
		bitmap := BuildSignerBitmap([]int{-1, 2, 99}, 8)
		assert.Equal(t, []int{2}, ParseSignerBitmap(bitmap))
	})
}
