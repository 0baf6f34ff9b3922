// Package models holds the policy registry's binding records.
package models

import (
	"attesto/pkg/domain"
)

// Binding is the per-policy configuration: which verification source the
// policy trusts and which version is current. Unset fields read as zero
// values; binding a policy never requires both fields at once.
type Binding struct {
	Source        domain.SourceRef
	LatestVersion domain.Version
}

// VerifierBinding is the per-description verifier configuration. An empty
// Ref disables the description; Threshold rides along as the public input
// bound for proofs under this description.
type VerifierBinding struct {
	Ref       domain.VerifierRef
	Threshold domain.Threshold
}
