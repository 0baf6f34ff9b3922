// Package dErrors provides coded domain errors.
//
// Services return *Error values carrying a stable machine-readable Code;
// transports map codes to their own status vocabulary. Wrapping preserves the
// cause chain for errors.Is/errors.As while the outermost code wins.
package dErrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of domain failure. Values are stable wire strings.
type Code string

const (
	// Ambient codes shared by every component.
	CodeInternal           Code = "internal_error"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_failed"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"

	// Verification pipeline codes. Each maps to exactly one rejection
	// reason in the attestation and policy-verification flows.
	CodeUnauthorized       Code = "unauthorized"
	CodeInvalidSignature   Code = "invalid_signature"
	CodeVersionMismatch    Code = "version_mismatch"
	CodeSourceNotBound     Code = "source_not_bound"
	CodeSubjectNotVerified Code = "subject_not_verified"
	CodeVerifierNotBound   Code = "verifier_not_bound"
	CodeProofInvalid       Code = "proof_invalid"
	CodeOracleAttestation  Code = "oracle_attestation_invalid"
)

// Error is a domain error with a stable code and a human-readable message.
type Error struct {
	code Code
	msg  string
	err  error
}

// New constructs a domain error with no underlying cause.
func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// Wrap annotates err with a domain code and message. The returned error
// unwraps to err, so sentinel checks on the cause keep working.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{code: code, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

// Unwrap exposes the cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the machine-readable classification.
func (e *Error) Code() Code {
	return e.code
}

// Message returns the human-readable message without the code prefix.
// Transports use it for client-facing descriptions.
func (e *Error) Message() string {
	return e.msg
}

// GetCode extracts the code of the outermost domain error in err's chain.
// Non-domain errors classify as CodeInternal so callers fail closed.
func GetCode(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	var de *Error
	if errors.As(err, &de) {
		return de.code == code
	}
	return false
}

// Is is an alias for HasCode, matching the errors.Is call shape.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}
