package domain

import (
	dErrors "attesto/pkg/domain-errors"
)

// maxIdentifierLen bounds every external identifier accepted at a trust
// boundary. Keeps store keys and log lines sane.
const maxIdentifierLen = 255

// SubjectID identifies the principal a verification attestation is about.
// Invariant: non-empty, at most maxIdentifierLen bytes.
//
// Usage: construct via ParseSubjectID at trust boundaries; direct casting
// bypasses validation.
type SubjectID string

// ParseSubjectID constructs a SubjectID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or too long; no
// other errors are expected.
func ParseSubjectID(s string) (SubjectID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject cannot be empty")
	}
	if len(s) > maxIdentifierLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject exceeds maximum length")
	}
	return SubjectID(s), nil
}

// String returns the string representation of the subject ID.
func (s SubjectID) String() string {
	return string(s)
}

// IsNil returns true if the subject ID is empty.
func (s SubjectID) IsNil() bool {
	return s == ""
}

// Identity is the principal attached to a request. Subjects and callers
// share one identifier space: a relying party proves eligibility for itself,
// so the subject of a policy check is the caller's own identity.
type Identity string

// ParseIdentity constructs an Identity from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or too long.
func ParseIdentity(s string) (Identity, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity cannot be empty")
	}
	if len(s) > maxIdentifierLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity exceeds maximum length")
	}
	return Identity(s), nil
}

// Subject converts a caller identity into the subject identifier space.
func (i Identity) Subject() SubjectID {
	return SubjectID(i)
}

// String returns the string representation of the identity.
func (i Identity) String() string {
	return string(i)
}

// IsNil returns true if the identity is empty.
func (i Identity) IsNil() bool {
	return i == ""
}

// SourceRef names a verification store a policy trusts. The zero value means
// "no source bound".
type SourceRef string

// ParseSourceRef constructs a SourceRef from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or too long.
func ParseSourceRef(s string) (SourceRef, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "source ref cannot be empty")
	}
	if len(s) > maxIdentifierLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "source ref exceeds maximum length")
	}
	return SourceRef(s), nil
}

func (r SourceRef) String() string {
	return string(r)
}

// IsNil returns true if no source is bound.
func (r SourceRef) IsNil() bool {
	return r == ""
}

// VerifierRef names a proof verifier bound to a verifier description.
// The zero value is meaningful: an empty ref disables the description.
type VerifierRef string

// ParseVerifierRef constructs a VerifierRef from external input. Empty input
// is valid and yields the disabled ref.
//
// Errors: returns CodeInvalidInput when the value is too long.
func ParseVerifierRef(s string) (VerifierRef, error) {
	if len(s) > maxIdentifierLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "verifier ref exceeds maximum length")
	}
	return VerifierRef(s), nil
}

func (r VerifierRef) String() string {
	return string(r)
}

// IsDisabled returns true when the ref is empty, meaning proofs for its
// description must be rejected.
func (r VerifierRef) IsDisabled() bool {
	return r == ""
}

// VerifierDesc is the human-facing name of a verifier family, e.g.
// "age-over-18/v1". Policies reference verifiers through descriptions so the
// backing verifier can be rotated without touching policy records.
type VerifierDesc string

// ParseVerifierDesc constructs a VerifierDesc from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or too long.
func ParseVerifierDesc(s string) (VerifierDesc, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "verifier description cannot be empty")
	}
	if len(s) > maxIdentifierLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "verifier description exceeds maximum length")
	}
	return VerifierDesc(s), nil
}

func (d VerifierDesc) String() string {
	return string(d)
}

// IsNil returns true if the description is empty.
func (d VerifierDesc) IsNil() bool {
	return d == ""
}
