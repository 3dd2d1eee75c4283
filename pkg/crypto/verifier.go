package crypto

import (
	"context"
	"fmt"
	"time"

	"github.com/Patchlock-Labs/patchlock/core/pkg/canonicalize"
	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
)

// FailureCode classifies why verification did not succeed. Verification
// failure is an expected outcome on the hot path, so it is returned as data,
// never as an error.
type FailureCode string

const (
	FailureNone             FailureCode = ""
	FailureMissingSignature FailureCode = "MISSING_SIGNATURE"
	FailureKeyNotFound      FailureCode = "KEY_NOT_FOUND"
	FailureKeyRevoked       FailureCode = "KEY_REVOKED"
	FailureKeyExpired       FailureCode = "KEY_EXPIRED"
	FailureSignatureInvalid FailureCode = "SIGNATURE_INVALID"
	FailureLookupFailed     FailureCode = "KEY_LOOKUP_FAILED"
)

// VerificationResult is the structured outcome of verifying an approval.
type VerificationResult struct {
	Valid bool        `json:"valid"`
	Code  FailureCode `json:"code,omitempty"`
	Error string      `json:"error,omitempty"`
}

func verificationFailure(code FailureCode, format string, args ...any) VerificationResult {
	return VerificationResult{Valid: false, Code: code, Error: fmt.Sprintf(format, args...)}
}

// KeyLookup is the slice of the key registry the verifier consumes. The full
// registry contract lives in pkg/keyreg; any implementation of it satisfies
// this. Lookups must honor ctx so a slow registry fails verification instead
// of blocking indefinitely.
type KeyLookup interface {
	GetPublicKey(ctx context.Context, keyID string) (*contracts.PublicKeyRecord, error)
}

// Verifier checks approval signatures against registered public keys.
type Verifier struct {
	keys  KeyLookup
	clock func() time.Time
}

// NewVerifier creates a verifier backed by the given key lookup.
func NewVerifier(keys KeyLookup) *Verifier {
	return &Verifier{keys: keys, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (v *Verifier) WithClock(clock func() time.Time) *Verifier {
	v.clock = clock
	return v
}

// VerifyApproval verifies an approval against the key registry. Checks run
// in a fixed order and short-circuit: signature present, key found, key not
// revoked, key not expired, signature valid. Only a record passing all five
// is Valid.
func (v *Verifier) VerifyApproval(ctx context.Context, a *contracts.SignedApproval) VerificationResult {
	if a == nil {
		return verificationFailure(FailureMissingSignature, "nil approval")
	}
	if a.Signature == "" || a.SigningKeyID == "" {
		return verificationFailure(FailureMissingSignature, "approval %s is unsigned", a.ApprovalID)
	}

	record, err := v.keys.GetPublicKey(ctx, a.SigningKeyID)
	if err != nil {
		// Fail closed: an unreachable registry means no verification.
		return verificationFailure(FailureLookupFailed, "key lookup for %s failed: %v", a.SigningKeyID, err)
	}
	if record == nil {
		return verificationFailure(FailureKeyNotFound, "signing key %s not found", a.SigningKeyID)
	}
	if record.Revoked {
		return verificationFailure(FailureKeyRevoked, "signing key %s is revoked", a.SigningKeyID)
	}
	now := v.clock()
	if record.ExpiresAt != nil && now.After(*record.ExpiresAt) {
		return verificationFailure(FailureKeyExpired, "signing key %s expired at %s", a.SigningKeyID, record.ExpiresAt.UTC().Format(time.RFC3339))
	}

	payload, err := canonicalize.SigningPayload(a)
	if err != nil {
		return verificationFailure(FailureSignatureInvalid, "canonicalization failed: %v", err)
	}
	ok, err := Verify(record.PublicKey, a.Signature, payload)
	if err != nil {
		return verificationFailure(FailureSignatureInvalid, "signature decode failed: %v", err)
	}
	if !ok {
		return verificationFailure(FailureSignatureInvalid, "signature mismatch for approval %s", a.ApprovalID)
	}
	return VerificationResult{Valid: true}
}

// VerifyApprovalWithKey verifies an approval against a known public key,
// bypassing the registry. Used when the caller has already resolved and
// trusted the key material.
func VerifyApprovalWithKey(a *contracts.SignedApproval, pubKeyHex string) (bool, error) {
	if a == nil || a.Signature == "" {
		return false, fmt.Errorf("crypto: missing signature")
	}
	payload, err := canonicalize.SigningPayload(a)
	if err != nil {
		return false, err
	}
	return Verify(pubKeyHex, a.Signature, payload)
}
