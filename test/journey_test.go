// Package test drives the assembled HTTP surface end to end: a real BLS
// operator set signing attestations, a real Groth16 circuit proving
// eligibility, and in-memory stores underneath. Nothing is mocked.
package test

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"attesto/internal/attestation"
	"attesto/internal/audit"
	auditmemory "attesto/internal/audit/store/memory"
	"attesto/internal/guard"
	"attesto/internal/jwtauth"
	"attesto/internal/platform/metrics"
	"attesto/internal/policy"
	policystore "attesto/internal/policy/store"
	"attesto/internal/quorum"
	"attesto/internal/router"
	httptransport "attesto/internal/transport/http"
	"attesto/internal/verification"
	verificationstore "attesto/internal/verification/store"
	"attesto/internal/zkverifier"
	"attesto/pkg/domain"
	"attesto/pkg/testutil"
)

const (
	ownerID      = "ops-owner"
	submitterID  = "oracle-relay"
	managerID    = "attestation-gateway"
	subjectID    = "did:example:alice"
	sourceRef    = "primary-kyc"
	verifierDesc = "age-over-18"
	verifierRef  = "groth16:age-v1"

	policyID      = 1
	policyVersion = 2
	threshold     = 18

	refBlock = 12845
)

// Three operators with a 2/3 stake quorum: any two of them clear it, the
// smallest alone does not.
var operatorStakes = []uint64{50, 30, 20}

// The trusted setup is expensive, so every test shares one.
var (
	circuitOnce sync.Once
	circuitErr  error
	circuitCCS  constraint.ConstraintSystem
	circuitPK   groth16.ProvingKey
	circuitVK   groth16.VerifyingKey
)

func eligibilityCircuit(t *testing.T) (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey) {
	t.Helper()
	circuitOnce.Do(func() {
		ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &zkverifier.EligibilityCircuit{})
		if err != nil {
			circuitErr = err
			return
		}
		pk, vk, err := groth16.Setup(ccs)
		if err != nil {
			circuitErr = err
			return
		}
		circuitCCS, circuitPK, circuitVK = ccs, pk, vk
	})
	require.NoError(t, circuitErr)
	return circuitCCS, circuitPK, circuitVK
}

// platform bundles the assembled handler with the key material tests drive
// it with.
type platform struct {
	handler   http.Handler
	tokens    *jwtauth.Service
	operators []*quorum.KeyPair
}

func newPlatform(t *testing.T, strategy string) *platform {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, _, vk := eligibilityCircuit(t)

	roleGuard, err := guard.New(ownerID, submitterID, guard.WithLogger(logger))
	require.NoError(t, err)

	publisher := audit.NewPublisher(auditmemory.NewInMemoryStore(), audit.WithLogger(logger))
	policies := policy.New(policystore.NewInMemory(), roleGuard,
		policy.WithLogger(logger),
		policy.WithAuditPublisher(publisher),
	)

	source := verification.NewService(sourceRef, managerID, verificationstore.NewInMemory(), verification.WithLogger(logger))
	sources := verification.NewResolver()
	sources.Register(source)

	keys := make([]*quorum.KeyPair, 0, len(operatorStakes))
	operators := make([]quorum.Operator, 0, len(operatorStakes))
	for _, stake := range operatorStakes {
		kp, err := quorum.GenerateKey()
		require.NoError(t, err)
		keys = append(keys, kp)
		operators = append(operators, quorum.Operator{PubKey: kp.PublicKeyBytes(), Stake: stake})
	}
	set, err := quorum.NewOperatorSet(operators, 2, 3)
	require.NoError(t, err)
	registry := quorum.NewBLSRegistry(set, quorum.WithLogger(logger))

	verifiers := zkverifier.NewRegistry()
	verifiers.Register(verifierRef, zkverifier.NewGroth16Verifier(vk))

	gateway, err := attestation.NewGateway(managerID, registry, sources, roleGuard, publisher, attestation.WithLogger(logger))
	require.NoError(t, err)

	var checks router.Service
	switch strategy {
	case router.StrategyFresh:
		checks = router.NewFresh(policies, registry, verifiers, publisher, router.WithLogger(logger))
	default:
		checks = router.NewCached(policies, sources, verifiers, publisher, router.WithLogger(logger))
	}

	tokens := jwtauth.NewService("journey-signing-key", "attesto", "attesto-clients")

	handler := httptransport.NewRouter(httptransport.Deps{
		Attestations:   httptransport.NewAttestationHandler(gateway, logger),
		Eligibility:    httptransport.NewEligibilityHandler(checks, logger),
		Admin:          httptransport.NewAdminHandler(policies, roleGuard, logger),
		Records:        httptransport.NewRecordsHandler(sources, publisher, logger),
		TokenValidator: tokens,
		Logger:         logger,
		Metrics:        metrics.NewWith(prometheus.NewRegistry()),
		RequestTimeout: 5 * time.Second,
	})

	return &platform{handler: handler, tokens: tokens, operators: keys}
}

func (p *platform) client(t *testing.T, identity string) *testutil.Client {
	t.Helper()
	token, err := p.tokens.GenerateToken(identity, time.Hour)
	require.NoError(t, err)
	return &testutil.Client{Handler: p.handler, Token: token}
}

// signAttestation aggregates real BLS signatures from the operators named
// by index.
func (p *platform) signAttestation(t *testing.T, msgHash [32]byte, signerIdx []int) httptransport.AttestationMaterial {
	t.Helper()

	sigs := make([][]byte, 0, len(signerIdx))
	pubs := make([][]byte, 0, len(signerIdx))
	for _, idx := range signerIdx {
		sigs = append(sigs, p.operators[idx].Sign(msgHash[:]))
		pubs = append(pubs, p.operators[idx].PublicKeyBytes())
	}

	aggSig, err := quorum.AggregateSignatures(sigs)
	require.NoError(t, err)
	apk, err := quorum.AggregatePublicKeys(pubs)
	require.NoError(t, err)
	apkHash := quorum.ApkHash(apk)

	return httptransport.AttestationMaterial{
		ApkHash:      hex.EncodeToString(apkHash[:]),
		Apk:          hex.EncodeToString(apk),
		Signature:    hex.EncodeToString(aggSig),
		SignerBitmap: hex.EncodeToString(quorum.BuildSignerBitmap(signerIdx, len(p.operators))),
	}
}

// attestationDigest is the message the operators sign. The platform treats
// it as opaque; only the signers and verifiers agree on its derivation.
func attestationDigest(commitment domain.Commitment, block uint64) [32]byte {
	h := blake3.New()
	h.Write([]byte(subjectID))
	h.Write(commitment[:])
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], block)
	h.Write(raw[:])
	var sum [32]byte
	h.Sum(sum[:0])
	return sum
}

// proveEligibility mints a real Groth16 proof for the statement.
func proveEligibility(t *testing.T, commitment domain.Commitment, attr, nonce *big.Int) string {
	t.Helper()
	ccs, pk, _ := eligibilityCircuit(t)

	assignment := zkverifier.EligibilityCircuit{
		PolicyID:   policyID,
		Version:    policyVersion,
		Commitment: commitment.Big(),
		Threshold:  threshold,
		AttrValue:  attr,
		Nonce:      nonce,
	}
	fullWitness, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField())
	require.NoError(t, err)

	proof, err := groth16.Prove(ccs, pk, fullWitness)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = proof.WriteTo(&buf)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func configurePolicy(t *testing.T, owner *testutil.Client) {
	t.Helper()

	rec := owner.Do(t, http.MethodPut, "/admin/verifiers/"+verifierDesc, httptransport.BindVerifierRequest{VerifierRef: verifierRef})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = owner.Do(t, http.MethodPut, "/admin/verifiers/"+verifierDesc+"/threshold", httptransport.SetThresholdRequest{Threshold: threshold})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = owner.Do(t, http.MethodPut, "/admin/policies/1/source", httptransport.BindSourceRequest{Source: sourceRef})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = owner.Do(t, http.MethodPut, "/admin/policies/1/version", httptransport.SetVersionRequest{Version: policyVersion})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestEligibilityJourney(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping journey test in short mode")
	}

	p := newPlatform(t, router.StrategyCached)
	owner := p.client(t, ownerID)
	oracle := p.client(t, submitterID)
	alice := p.client(t, subjectID)

	attr, nonce := big.NewInt(42), big.NewInt(7)
	commitment, err := zkverifier.ComputeCommitment(policyID, policyVersion, attr, nonce)
	require.NoError(t, err)
	msgHash := attestationDigest(commitment, refBlock)

	testutil.Given(t, "an owner-configured policy", func(t *testing.T) {
		configurePolicy(t, owner)
	})

	testutil.When(t, "the oracle submitter records an attestation", func(t *testing.T) {
		rec := oracle.Do(t, http.MethodPost, "/attestations", httptransport.SubmitAttestationRequest{
			Source:      sourceRef,
			Subject:     subjectID,
			Commitment:  commitment.String(),
			MsgHash:     hex.EncodeToString(msgHash[:]),
			RefBlock:    refBlock,
			Attestation: p.signAttestation(t, msgHash, []int{0, 1}),
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		resp := testutil.Decode[httptransport.AttestationResponse](t, rec)
		require.Equal(t, "recorded", resp.Status)
		require.Equal(t, uint64(refBlock), resp.RefBlock)
	})

	testutil.Then(t, "the verification record is readable", func(t *testing.T) {
		rec := alice.Do(t, http.MethodGet, "/subjects/"+subjectID+"/verification?source="+sourceRef, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := testutil.Decode[httptransport.VerificationRecordResponse](t, rec)
		require.True(t, resp.Verified)
		require.Equal(t, commitment.String(), resp.Commitment)
	})

	testutil.Then(t, "the subject proves eligibility against the cached commitment", func(t *testing.T) {
		rec := alice.Do(t, http.MethodPost, "/policies/1/verify", httptransport.VerifyPolicyRequest{
			Version:     policyVersion,
			Description: verifierDesc,
			Proof:       proveEligibility(t, commitment, attr, nonce),
		})
		require.Equal(t, http.StatusOK, rec.Code)

		resp := testutil.Decode[httptransport.EligibilityResponse](t, rec)
		require.True(t, resp.Eligible)
		require.Equal(t, verifierRef, resp.VerifierRef)
		require.Equal(t, commitment.String(), resp.Commitment)
		require.Equal(t, uint64(threshold), resp.Threshold)
	})

	testutil.Then(t, "the audit trail carries both events", func(t *testing.T) {
		rec := alice.Do(t, http.MethodGet, "/audit/events?subject="+subjectID, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := testutil.Decode[httptransport.AuditEventsResponse](t, rec)
		require.Len(t, resp.Events, 2)
		require.Equal(t, "policy_verified", resp.Events[0].Action)
		require.Equal(t, subjectID, resp.Events[0].Actor)
		require.Equal(t, "attestation_recorded", resp.Events[1].Action)
		require.Equal(t, submitterID, resp.Events[1].Actor)
		require.Equal(t, uint64(80), resp.Events[1].TotalStake)
	})

	testutil.Then(t, "disabling the verifier turns the route off", func(t *testing.T) {
		rec := owner.Do(t, http.MethodPut, "/admin/verifiers/"+verifierDesc, httptransport.BindVerifierRequest{VerifierRef: ""})
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, testutil.Decode[httptransport.VerifierBindingResponse](t, rec).Disabled)

		rec = alice.Do(t, http.MethodPost, "/policies/1/verify", httptransport.VerifyPolicyRequest{
			Version:     policyVersion,
			Description: verifierDesc,
			Proof:       base64.StdEncoding.EncodeToString([]byte("does not matter")),
		})
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, "verifier_not_bound", testutil.Decode[map[string]string](t, rec)["error"])
	})
}

func TestFreshStrategyJourney(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping journey test in short mode")
	}

	p := newPlatform(t, router.StrategyFresh)
	owner := p.client(t, ownerID)
	alice := p.client(t, subjectID)

	attr, nonce := big.NewInt(42), big.NewInt(7)
	commitment, err := zkverifier.ComputeCommitment(policyID, policyVersion, attr, nonce)
	require.NoError(t, err)
	msgHash := attestationDigest(commitment, refBlock)

	configurePolicy(t, owner)

	t.Run("inline attestation plus proof verifies", func(t *testing.T) {
		material := p.signAttestation(t, msgHash, []int{0, 2})
		rec := alice.Do(t, http.MethodPost, "/policies/1/verify", httptransport.VerifyPolicyRequest{
			Version:     policyVersion,
			Description: verifierDesc,
			Proof:       proveEligibility(t, commitment, attr, nonce),
			Commitment:  commitment.String(),
			MsgHash:     hex.EncodeToString(msgHash[:]),
			RefBlock:    refBlock,
			Attestation: &material,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		resp := testutil.Decode[httptransport.EligibilityResponse](t, rec)
		require.True(t, resp.Eligible)
		require.Equal(t, commitment.String(), resp.Commitment)
	})

	t.Run("inline attestation below quorum stake is rejected", func(t *testing.T) {
		material := p.signAttestation(t, msgHash, []int{2})
		rec := alice.Do(t, http.MethodPost, "/policies/1/verify", httptransport.VerifyPolicyRequest{
			Version:     policyVersion,
			Description: verifierDesc,
			Proof:       proveEligibility(t, commitment, attr, nonce),
			Commitment:  commitment.String(),
			MsgHash:     hex.EncodeToString(msgHash[:]),
			RefBlock:    refBlock,
			Attestation: &material,
		})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.Equal(t, "oracle_attestation_invalid", testutil.Decode[map[string]string](t, rec)["error"])
	})
}

func TestJourneyRejections(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping journey test in short mode")
	}

	p := newPlatform(t, router.StrategyCached)
	owner := p.client(t, ownerID)
	oracle := p.client(t, submitterID)
	alice := p.client(t, subjectID)

	attr, nonce := big.NewInt(42), big.NewInt(7)
	commitment, err := zkverifier.ComputeCommitment(policyID, policyVersion, attr, nonce)
	require.NoError(t, err)
	msgHash := attestationDigest(commitment, refBlock)

	configurePolicy(t, owner)

	t.Run("non-owner cannot write policy bindings", func(t *testing.T) {
		rec := alice.Do(t, http.MethodPut, "/admin/policies/1/version", httptransport.SetVersionRequest{Version: 3})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "unauthorized", testutil.Decode[map[string]string](t, rec)["error"])
	})

	t.Run("non-submitter cannot record attestations", func(t *testing.T) {
		rec := alice.Do(t, http.MethodPost, "/attestations", httptransport.SubmitAttestationRequest{
			Source:      sourceRef,
			Subject:     subjectID,
			Commitment:  commitment.String(),
			MsgHash:     hex.EncodeToString(msgHash[:]),
			RefBlock:    refBlock,
			Attestation: p.signAttestation(t, msgHash, []int{0, 1}),
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("attestation below quorum stake is rejected", func(t *testing.T) {
		rec := oracle.Do(t, http.MethodPost, "/attestations", httptransport.SubmitAttestationRequest{
			Source:      sourceRef,
			Subject:     subjectID,
			Commitment:  commitment.String(),
			MsgHash:     hex.EncodeToString(msgHash[:]),
			RefBlock:    refBlock,
			Attestation: p.signAttestation(t, msgHash, []int{2}),
		})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.Equal(t, "invalid_signature", testutil.Decode[map[string]string](t, rec)["error"])
	})

	t.Run("proof against a stale version is rejected", func(t *testing.T) {
		rec := alice.Do(t, http.MethodPost, "/policies/1/verify", httptransport.VerifyPolicyRequest{
			Version:     policyVersion - 1,
			Description: verifierDesc,
			Proof:       base64.StdEncoding.EncodeToString([]byte("stale")),
		})
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, "version_mismatch", testutil.Decode[map[string]string](t, rec)["error"])
	})

	t.Run("unverified subject cannot pass the cached strategy", func(t *testing.T) {
		bob := p.client(t, "did:example:bob")
		rec := bob.Do(t, http.MethodPost, "/policies/1/verify", httptransport.VerifyPolicyRequest{
			Version:     policyVersion,
			Description: verifierDesc,
			Proof:       base64.StdEncoding.EncodeToString([]byte("no record")),
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "subject_not_verified", testutil.Decode[map[string]string](t, rec)["error"])
	})
}
