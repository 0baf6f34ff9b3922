package store

import (
	"context"
	"sync"

	"attesto/internal/policy/models"
	"attesto/pkg/domain"
	"attesto/pkg/platform/sentinel"
)

// InMemory keeps policy and verifier bindings in mutex-guarded maps.
// Setters update one field and preserve the other, matching the registry's
// independent-upsert semantics.
type InMemory struct {
	mu        sync.RWMutex
	policies  map[domain.PolicyID]models.Binding
	verifiers map[domain.VerifierDesc]models.VerifierBinding
}

// NewInMemory creates an empty in-memory binding store.
func NewInMemory() *InMemory {
	return &InMemory{
		policies:  make(map[domain.PolicyID]models.Binding),
		verifiers: make(map[domain.VerifierDesc]models.VerifierBinding),
	}
}

// SetPolicySource upserts the source a policy trusts.
func (s *InMemory) SetPolicySource(_ context.Context, policyID domain.PolicyID, source domain.SourceRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.policies[policyID]
	b.Source = source
	s.policies[policyID] = b
	return nil
}

// SetPolicyVersion upserts the policy's current version.
func (s *InMemory) SetPolicyVersion(_ context.Context, policyID domain.PolicyID, version domain.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.policies[policyID]
	b.LatestVersion = version
	s.policies[policyID] = b
	return nil
}

// GetPolicyBinding retrieves a policy's binding.
// Returns sentinel.ErrNotFound if the policy has never been configured.
func (s *InMemory) GetPolicyBinding(_ context.Context, policyID domain.PolicyID) (models.Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.policies[policyID]
	if !ok {
		return models.Binding{}, sentinel.ErrNotFound
	}
	return b, nil
}

// SetVerifierRef upserts the verifier backing a description. Empty refs are
// stored as-is; a disabled description is configuration, not absence.
func (s *InMemory) SetVerifierRef(_ context.Context, desc domain.VerifierDesc, ref domain.VerifierRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.verifiers[desc]
	b.Ref = ref
	s.verifiers[desc] = b
	return nil
}

// SetVerifierThreshold upserts the threshold for a description.
func (s *InMemory) SetVerifierThreshold(_ context.Context, desc domain.VerifierDesc, threshold domain.Threshold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.verifiers[desc]
	b.Threshold = threshold
	s.verifiers[desc] = b
	return nil
}

// GetVerifierBinding retrieves a description's binding.
// Returns sentinel.ErrNotFound if the description has never been configured.
func (s *InMemory) GetVerifierBinding(_ context.Context, desc domain.VerifierDesc) (models.VerifierBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.verifiers[desc]
	if !ok {
		return models.VerifierBinding{}, sentinel.ErrNotFound
	}
	return b, nil
}
