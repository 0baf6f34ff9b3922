package httptransport

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"attesto/internal/attestation"
	"attesto/internal/quorum"
	"attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
)

// AttestationMaterial is the wire form of the aggregate-signature artifacts.
// All fields are hex encoded, with or without a 0x prefix.
type AttestationMaterial struct {
	ApkHash      string `json:"apk_hash"`
	Apk          string `json:"apk"`
	Signature    string `json:"signature"`
	SignerBitmap string `json:"signer_bitmap"`
}

func (m *AttestationMaterial) parse() (quorum.Material, error) {
	apkHash, err := decodeHexField("attestation.apk_hash", m.ApkHash, 32)
	if err != nil {
		return quorum.Material{}, err
	}
	apk, err := decodeHexField("attestation.apk", m.Apk, quorum.PublicKeySize)
	if err != nil {
		return quorum.Material{}, err
	}
	signature, err := decodeHexField("attestation.signature", m.Signature, quorum.SignatureSize)
	if err != nil {
		return quorum.Material{}, err
	}
	bitmap, err := decodeHexField("attestation.signer_bitmap", m.SignerBitmap, 0)
	if err != nil {
		return quorum.Material{}, err
	}

	material := quorum.Material{
		Apk:          apk,
		Signature:    signature,
		SignerBitmap: bitmap,
	}
	copy(material.ApkHash[:], apkHash)
	return material, nil
}

// SubmitAttestationRequest is the HTTP request body for POST /attestations.
type SubmitAttestationRequest struct {
	Source      string              `json:"source"`
	Subject     string              `json:"subject"`
	Commitment  string              `json:"commitment"`
	MsgHash     string              `json:"msg_hash"`
	RefBlock    uint64              `json:"ref_block"`
	Attestation AttestationMaterial `json:"attestation"`

	// Parsed values (populated by Validate)
	parsed attestation.SubmitRequest
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SubmitAttestationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	source, err := domain.ParseSourceRef(strings.TrimSpace(r.Source))
	if err != nil {
		return err
	}
	subject, err := domain.ParseSubjectID(strings.TrimSpace(r.Subject))
	if err != nil {
		return err
	}
	commitment, err := domain.ParseCommitment(strings.TrimSpace(r.Commitment))
	if err != nil {
		return err
	}
	msgHash, err := decodeHexField("msg_hash", r.MsgHash, 32)
	if err != nil {
		return err
	}
	material, err := r.Attestation.parse()
	if err != nil {
		return err
	}

	r.parsed = attestation.SubmitRequest{
		Source:     source,
		Subject:    subject,
		Commitment: commitment,
		RefBlock:   r.RefBlock,
		Material:   material,
	}
	copy(r.parsed.MsgHash[:], msgHash)
	return nil
}

// Parsed returns the validated domain request.
func (r *SubmitAttestationRequest) Parsed() attestation.SubmitRequest {
	return r.parsed
}

// VerifyPolicyRequest is the HTTP request body for
// POST /policies/{policyID}/verify. The commitment, msg_hash, ref_block and
// attestation fields are consumed by the fresh strategy only; the cached
// strategy reads the commitment from the policy's bound source instead.
type VerifyPolicyRequest struct {
	Version     uint64               `json:"version"`
	Description string               `json:"description"`
	Proof       string               `json:"proof"`
	Commitment  string               `json:"commitment,omitempty"`
	MsgHash     string               `json:"msg_hash,omitempty"`
	RefBlock    uint64               `json:"ref_block,omitempty"`
	Attestation *AttestationMaterial `json:"attestation,omitempty"`

	// Parsed values (populated by Validate)
	parsedVersion     domain.Version
	parsedDescription domain.VerifierDesc
	parsedProof       []byte
	parsedCommitment  domain.Commitment
	parsedMsgHash     [32]byte
	parsedMaterial    quorum.Material
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *VerifyPolicyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	if r.Version == 0 {
		return dErrors.New(dErrors.CodeValidation, "version is required")
	}
	r.parsedVersion = domain.Version(r.Version)

	description, err := domain.ParseVerifierDesc(strings.TrimSpace(r.Description))
	if err != nil {
		return err
	}
	r.parsedDescription = description

	if strings.TrimSpace(r.Proof) == "" {
		return dErrors.New(dErrors.CodeValidation, "proof is required")
	}
	proof, err := base64.StdEncoding.DecodeString(r.Proof)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "proof must be base64 encoded")
	}
	r.parsedProof = proof

	if strings.TrimSpace(r.Commitment) != "" {
		commitment, err := domain.ParseCommitment(strings.TrimSpace(r.Commitment))
		if err != nil {
			return err
		}
		r.parsedCommitment = commitment
	}
	if strings.TrimSpace(r.MsgHash) != "" {
		msgHash, err := decodeHexField("msg_hash", r.MsgHash, 32)
		if err != nil {
			return err
		}
		copy(r.parsedMsgHash[:], msgHash)
	}
	if r.Attestation != nil {
		material, err := r.Attestation.parse()
		if err != nil {
			return err
		}
		r.parsedMaterial = material
	}

	return nil
}

// ParsedVersion returns the validated proof target version.
func (r *VerifyPolicyRequest) ParsedVersion() domain.Version {
	return r.parsedVersion
}

// ParsedDescription returns the validated verifier description.
func (r *VerifyPolicyRequest) ParsedDescription() domain.VerifierDesc {
	return r.parsedDescription
}

// ParsedProof returns the decoded proof bytes.
func (r *VerifyPolicyRequest) ParsedProof() []byte {
	return r.parsedProof
}

// ParsedCommitment returns the caller-supplied commitment, zero when absent.
func (r *VerifyPolicyRequest) ParsedCommitment() domain.Commitment {
	return r.parsedCommitment
}

// ParsedMsgHash returns the signed message hash, zero when absent.
func (r *VerifyPolicyRequest) ParsedMsgHash() [32]byte {
	return r.parsedMsgHash
}

// ParsedMaterial returns the aggregate-signature material, zero when absent.
func (r *VerifyPolicyRequest) ParsedMaterial() quorum.Material {
	return r.parsedMaterial
}

// BindVerifierRequest is the HTTP request body for
// PUT /admin/verifiers/{description}. An empty ref disables the description.
type BindVerifierRequest struct {
	VerifierRef string `json:"verifier_ref"`

	parsedRef domain.VerifierRef
}

// Validate validates and parses the request.
func (r *BindVerifierRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	ref, err := domain.ParseVerifierRef(strings.TrimSpace(r.VerifierRef))
	if err != nil {
		return err
	}
	r.parsedRef = ref
	return nil
}

// ParsedRef returns the validated verifier ref.
func (r *BindVerifierRequest) ParsedRef() domain.VerifierRef {
	return r.parsedRef
}

// SetThresholdRequest is the HTTP request body for
// PUT /admin/verifiers/{description}/threshold. Zero is a legitimate bound.
type SetThresholdRequest struct {
	Threshold uint64 `json:"threshold"`
}

// BindSourceRequest is the HTTP request body for
// PUT /admin/policies/{policyID}/source.
type BindSourceRequest struct {
	Source string `json:"source"`

	parsedSource domain.SourceRef
}

// Validate validates and parses the request.
func (r *BindSourceRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	source, err := domain.ParseSourceRef(strings.TrimSpace(r.Source))
	if err != nil {
		return err
	}
	r.parsedSource = source
	return nil
}

// ParsedSource returns the validated source ref.
func (r *BindSourceRequest) ParsedSource() domain.SourceRef {
	return r.parsedSource
}

// SetVersionRequest is the HTTP request body for
// PUT /admin/policies/{policyID}/version.
type SetVersionRequest struct {
	Version uint64 `json:"version"`
}

// Validate validates the request.
func (r *SetVersionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Version == 0 {
		return dErrors.New(dErrors.CodeValidation, "version cannot be zero")
	}
	return nil
}

// TransferRoleRequest is the HTTP request body for POST /admin/roles/{role}.
type TransferRoleRequest struct {
	Identity string `json:"identity"`

	parsedIdentity domain.Identity
}

// Validate validates and parses the request.
func (r *TransferRoleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	identity, err := domain.ParseIdentity(strings.TrimSpace(r.Identity))
	if err != nil {
		return err
	}
	r.parsedIdentity = identity
	return nil
}

// ParsedIdentity returns the validated target principal.
func (r *TransferRoleRequest) ParsedIdentity() domain.Identity {
	return r.parsedIdentity
}

// decodeHexField decodes a hex wire field, tolerating a 0x prefix. A wantLen
// of zero accepts any non-empty payload.
func decodeHexField(name, value string, wantLen int) ([]byte, error) {
	s := strings.TrimSpace(value)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, dErrors.New(dErrors.CodeValidation, name+" is required")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, name+" must be hex encoded")
	}
	if wantLen > 0 && len(raw) != wantLen {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be %d bytes, got %d", name, wantLen, len(raw)))
	}
	return raw, nil
}
