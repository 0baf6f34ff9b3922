package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"attesto/internal/quorum"
	"attesto/internal/zkverifier"
	"attesto/pkg/domain"
)

// parseOperators decodes "pubkeyhex:stake" pairs into the oracle operator
// set. Keys are compressed BLS public keys; the operator set constructor
// enforces their size.
func parseOperators(pairs []string) ([]quorum.Operator, error) {
	operators := make([]quorum.Operator, 0, len(pairs))
	for i, pair := range pairs {
		key, stake, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("operator %d: want pubkeyhex:stake, got %q", i, pair)
		}
		pubKey, err := hex.DecodeString(strings.TrimPrefix(key, "0x"))
		if err != nil {
			return nil, fmt.Errorf("operator %d: decode public key: %w", i, err)
		}
		weight, err := strconv.ParseUint(stake, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("operator %d: parse stake: %w", i, err)
		}
		operators = append(operators, quorum.Operator{PubKey: pubKey, Stake: weight})
	}
	return operators, nil
}

// registerVerifiers loads each "ref=path" Groth16 verifying key from disk
// and registers it under its ref. A node with no keys still serves
// attestation traffic; every proof check fails with verifier_not_bound.
func registerVerifiers(registry *zkverifier.Registry, keys []string) error {
	for _, entry := range keys {
		ref, path, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("verifier key %q: want ref=path", entry)
		}
		parsedRef, err := domain.ParseVerifierRef(ref)
		if err != nil {
			return fmt.Errorf("verifier key %q: %w", entry, err)
		}
		if parsedRef.IsDisabled() {
			return fmt.Errorf("verifier key %q: ref cannot be empty", entry)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("verifier key %q: %w", entry, err)
		}
		vk, err := zkverifier.ParseVerifyingKey(raw)
		if err != nil {
			return fmt.Errorf("verifier key %q: %w", entry, err)
		}
		registry.Register(parsedRef, zkverifier.NewGroth16Verifier(vk))
	}
	return nil
}

// noQuorum stands in for the operator registry when no operators are
// configured. Submissions and fresh checks are rejected until the
// deployment supplies an operator set.
type noQuorum struct{}

func (noQuorum) VerifySignature(context.Context, [32]byte, uint64, quorum.Material) (*quorum.Attestation, error) {
	return nil, fmt.Errorf("no oracle operators configured")
}
