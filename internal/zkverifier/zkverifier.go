// Package zkverifier exposes the proof-verification collaborator: a
// Verifier port consuming the fixed public-input vector, a registry that
// resolves verifier refs to live verifiers, and a Groth16 adapter over
// BN254.
package zkverifier

import (
	"context"
	"sync"

	"attesto/pkg/domain"
	"attesto/pkg/platform/sentinel"
)

// PublicInputs is the statement a proof is checked against. The wire order
// is fixed: policy id, version, commitment, threshold. Both prover and
// verifier derive the same vector or verification fails.
type PublicInputs struct {
	PolicyID   uint64
	Version    uint64
	Commitment domain.Commitment
	Threshold  uint64
}

// Verifier checks a serialized proof against the public inputs. A nil
// return means the proof is valid for exactly this statement.
type Verifier interface {
	VerifyProof(ctx context.Context, proof []byte, inputs PublicInputs) error
}

// Registry resolves verifier refs to registered verifiers. Registration
// happens at startup; resolution happens on every check.
type Registry struct {
	mu        sync.RWMutex
	verifiers map[domain.VerifierRef]Verifier
}

func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[domain.VerifierRef]Verifier)}
}

// Register binds a ref to a verifier, replacing any previous binding.
func (r *Registry) Register(ref domain.VerifierRef, verifier Verifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifiers[ref] = verifier
}

// Resolve returns the verifier for a ref.
// Returns sentinel.ErrNotFound when no verifier is registered under it.
func (r *Registry) Resolve(ref domain.VerifierRef) (Verifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	verifier, ok := r.verifiers[ref]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return verifier, nil
}

// Refs returns the registered refs, for startup logging.
func (r *Registry) Refs() []domain.VerifierRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refs := make([]domain.VerifierRef, 0, len(r.verifiers))
	for ref := range r.verifiers {
		refs = append(refs, ref)
	}
	return refs
}
