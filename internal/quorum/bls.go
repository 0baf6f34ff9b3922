package quorum

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"

	blst "github.com/supranational/blst/bindings/go"
	"github.com/zeebo/blake3"
)

const (
	// PublicKeySize is the size of a compressed BLS public key in bytes.
	PublicKeySize = 48

	// SignatureSize is the size of a compressed BLS signature in bytes.
	SignatureSize = 96
)

// dst is the domain separation tag for BLS signatures.
var dst = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")

// BLSRegistry verifies aggregate attestations against the operator set
// using BLS12-381 with public keys on G1 and signatures on G2.
type BLSRegistry struct {
	operators *OperatorSet
	logger    *slog.Logger
}

type Option func(r *BLSRegistry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *BLSRegistry) {
		r.logger = logger
	}
}

func NewBLSRegistry(operators *OperatorSet, opts ...Option) *BLSRegistry {
	r := &BLSRegistry{
		operators: operators,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// VerifySignature checks the aggregate attestation and returns the signed
// stake and signer-set hash. Any failure means the attestation is invalid;
// the registry performs no I/O.
//
// The reference block is bound into msgHash by the caller, so a static
// operator set only reports it for observability.
func (r *BLSRegistry) VerifySignature(ctx context.Context, msgHash [32]byte, refBlock uint64, material Material) (*Attestation, error) {
	if len(material.Apk) != PublicKeySize {
		return nil, fmt.Errorf("aggregate public key must be %d bytes, got %d", PublicKeySize, len(material.Apk))
	}
	if len(material.Signature) != SignatureSize {
		return nil, fmt.Errorf("aggregate signature must be %d bytes, got %d", SignatureSize, len(material.Signature))
	}

	indices := ParseSignerBitmap(material.SignerBitmap)
	if len(indices) == 0 {
		return nil, fmt.Errorf("signer bitmap is empty")
	}

	signers := make([][]byte, 0, len(indices))
	var signedStake uint64
	for _, idx := range indices {
		op, ok := r.operators.Operator(idx)
		if !ok {
			return nil, fmt.Errorf("signer index %d outside operator set", idx)
		}
		signers = append(signers, op.PubKey)
		signedStake += op.Stake
	}

	apk, err := AggregatePublicKeys(signers)
	if err != nil {
		return nil, fmt.Errorf("aggregate signer keys: %w", err)
	}
	if !bytes.Equal(apk, material.Apk) {
		return nil, fmt.Errorf("aggregate public key does not match signer bitmap")
	}
	if blake3.Sum256(material.Apk) != material.ApkHash {
		return nil, fmt.Errorf("aggregate public key hash mismatch")
	}

	sig := new(blst.P2Affine).Uncompress(material.Signature)
	if sig == nil {
		return nil, fmt.Errorf("malformed aggregate signature")
	}
	pk := new(blst.P1Affine).Uncompress(material.Apk)
	if pk == nil {
		return nil, fmt.Errorf("malformed aggregate public key")
	}
	if !sig.Verify(true, pk, true, msgHash[:], dst) {
		return nil, fmt.Errorf("aggregate signature does not verify against message hash")
	}

	if quorum := r.operators.QuorumStake(); signedStake < quorum {
		return nil, fmt.Errorf("signed stake %d below quorum %d", signedStake, quorum)
	}

	r.logger.DebugContext(ctx, "aggregate attestation verified",
		"ref_block", refBlock,
		"signers", len(indices),
		"signed_stake", signedStake,
	)
	return &Attestation{
		TotalStake:    signedStake,
		SignerSetHash: hashSignerSet(signers),
	}, nil
}

// hashSignerSet hashes the signer public keys in operator-index order, which
// the bitmap already yields ascending.
func hashSignerSet(signers [][]byte) [32]byte {
	h := blake3.New()
	for _, pk := range signers {
		h.Write(pk)
	}
	var sum [32]byte
	h.Sum(sum[:0])
	return sum
}

// KeyPair holds a BLS private/public key pair. Operators sign attestation
// message hashes with it; the platform itself only ever verifies.
type KeyPair struct {
	secret *blst.SecretKey
	public *blst.P1Affine
}

// GenerateKey creates a new BLS key pair from a random seed.
func GenerateKey() (*KeyPair, error) {
	var ikm [32]byte
	if _, err := rand.Read(ikm[:]); err != nil {
		return nil, fmt.Errorf("generate random seed: %w", err)
	}
	return GenerateKeyFromSeed(ikm[:])
}

// GenerateKeyFromSeed creates a BLS key pair from a deterministic seed.
// The seed must be at least 32 bytes.
func GenerateKeyFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) < 32 {
		return nil, fmt.Errorf("seed must be at least 32 bytes")
	}
	secret := blst.KeyGen(seed)
	if secret == nil {
		return nil, fmt.Errorf("failed to generate BLS key")
	}
	return &KeyPair{
		secret: secret,
		public: new(blst.P1Affine).From(secret),
	}, nil
}

// Sign creates a BLS signature over the message.
func (k *KeyPair) Sign(message []byte) []byte {
	sig := new(blst.P2Affine).Sign(k.secret, message, dst)
	return sig.Compress()
}

// PublicKeyBytes returns the compressed public key bytes.
func (k *KeyPair) PublicKeyBytes() []byte {
	return k.public.Compress()
}

// AggregateSignatures combines multiple BLS signatures into one.
// All signatures must be over the same message.
func AggregateSignatures(signatures [][]byte) ([]byte, error) {
	if len(signatures) == 0 {
		return nil, fmt.Errorf("no signatures to aggregate")
	}
	sigs := make([]*blst.P2Affine, len(signatures))
	for i, sigBytes := range signatures {
		if len(sigBytes) != SignatureSize {
			return nil, fmt.Errorf("invalid signature size at index %d", i)
		}
		sig := new(blst.P2Affine).Uncompress(sigBytes)
		if sig == nil {
			return nil, fmt.Errorf("invalid signature at index %d", i)
		}
		sigs[i] = sig
	}
	agg := new(blst.P2Aggregate)
	if !agg.Aggregate(sigs, true) {
		return nil, fmt.Errorf("signature aggregation failed")
	}
	return agg.ToAffine().Compress(), nil
}

// AggregatePublicKeys combines multiple compressed public keys into one.
func AggregatePublicKeys(publicKeys [][]byte) ([]byte, error) {
	if len(publicKeys) == 0 {
		return nil, fmt.Errorf("no public keys to aggregate")
	}
	pks := make([]*blst.P1Affine, len(publicKeys))
	for i, pkBytes := range publicKeys {
		if len(pkBytes) != PublicKeySize {
			return nil, fmt.Errorf("invalid public key size at index %d", i)
		}
		pk := new(blst.P1Affine).Uncompress(pkBytes)
		if pk == nil {
			return nil, fmt.Errorf("invalid public key at index %d", i)
		}
		pks[i] = pk
	}
	agg := new(blst.P1Aggregate)
	if !agg.Aggregate(pks, true) {
		return nil, fmt.Errorf("public key aggregation failed")
	}
	return agg.ToAffine().Compress(), nil
}

// BuildSignerBitmap creates a bitmap marking which operators signed.
// indices contains the operator indices that signed, total is the operator count.
func BuildSignerBitmap(indices []int, total int) []byte {
	bitmap := make([]byte, (total+7)/8)
	for _, idx := range indices {
		if idx >= 0 && idx < total {
			bitmap[idx/8] |= 1 << (idx % 8)
		}
	}
	return bitmap
}

// ParseSignerBitmap extracts the operator indices from a bitmap, ascending.
func ParseSignerBitmap(bitmap []byte) []int {
	var indices []int
	for byteIdx, b := range bitmap {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) != 0 {
				indices = append(indices, byteIdx*8+bit)
			}
		}
	}
	return indices
}

// ApkHash commits to an aggregate public key.
func ApkHash(apk []byte) [32]byte {
	return blake3.Sum256(apk)
}
