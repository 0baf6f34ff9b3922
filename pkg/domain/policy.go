package domain

import (
	"strconv"

	dErrors "attesto/pkg/domain-errors"
)

// PolicyID identifies an eligibility policy. Zero is not a valid policy.
type PolicyID uint64

// ParsePolicyID constructs a PolicyID from a decimal string (URL params,
// request bodies).
//
// Errors: returns CodeInvalidInput for non-numeric or zero input.
func ParsePolicyID(s string) (PolicyID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "policy id must be a positive integer")
	}
	if v == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "policy id cannot be zero")
	}
	return PolicyID(v), nil
}

func (p PolicyID) String() string {
	return strconv.FormatUint(uint64(p), 10)
}

// IsNil returns true if the policy ID is unset.
func (p PolicyID) IsNil() bool {
	return p == 0
}

// Version is a policy version. Zero means "no version published"; proofs
// always target an explicit version.
type Version uint64

// ParseVersion constructs a Version from a decimal string.
//
// Errors: returns CodeInvalidInput for non-numeric or zero input.
func ParseVersion(s string) (Version, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "version must be a positive integer")
	}
	if v == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "version cannot be zero")
	}
	return Version(v), nil
}

func (v Version) String() string {
	return strconv.FormatUint(uint64(v), 10)
}

// IsNil returns true if no version is set.
func (v Version) IsNil() bool {
	return v == 0
}

// Threshold is the policy-specific numeric bound fed to the proof verifier
// as a public input. Unset thresholds read as zero and are passed through
// unchanged; the service never invents a bound.
type Threshold uint64

// ParseThreshold constructs a Threshold from a decimal string. Zero is valid.
//
// Errors: returns CodeInvalidInput for non-numeric input.
func ParseThreshold(s string) (Threshold, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "threshold must be a non-negative integer")
	}
	return Threshold(v), nil
}

func (t Threshold) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
