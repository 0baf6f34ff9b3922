package attestation

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"attesto/pkg/domain"
)

// MessageHash is the canonical digest oracle operators sign when attesting
// that a subject passed verification under a commitment as of a reference
// block: keccak256(subject || commitment || refBlock big-endian).
//
// The gateway never recomputes it. Submitters send the hash alongside the
// signature material and the quorum registry checks the aggregate signature
// against it; this helper exists so operator tooling and the gateway's
// callers agree on the preimage layout.
func MessageHash(subject domain.SubjectID, commitment domain.Commitment, refBlock uint64) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(subject))
	h.Write(commitment[:])

	var block [8]byte
	binary.BigEndian.PutUint64(block[:], refBlock)
	h.Write(block[:])

	var digest [32]byte
	h.Sum(digest[:0])
	return digest
}
