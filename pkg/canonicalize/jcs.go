// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// serialization for deterministic hashing and signing of approval records.
//
// Canonicalization is fully recursive: object keys are sorted at every
// nesting level and set-valued arrays (approval scopes) are sorted before
// serialization, so two independent implementations given the same logical
// record produce identical bytes.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
)

// Canonical returns the RFC 8785 canonical JSON representation of v.
//
// Strategy: marshal through encoding/json first so struct tags are honored,
// then run the JCS transform to fix key ordering, number formatting, and
// escaping. Go's marshaler alone is not sufficient: it HTML-escapes and does
// not define ordering for nested maps decoded from arbitrary input.
func Canonical(v any) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: pre-marshal failed: %w", err)
	}
	out, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: jcs transform failed: %w", err)
	}
	return out, nil
}

// CanonicalHash returns the SHA-256 hex digest of the canonical form of v.
func CanonicalHash(v any) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 hash of raw bytes and returns the hex string.
// Used for intent hashes (plan text) and patch hashes (literal diff bytes);
// no salt, so re-hashing the same bytes always reproduces the same digest.
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// SigningPayload returns the canonical bytes of an approval with the
// signature fields excluded. Signing and verification both go through here,
// which is what makes an approval's signature bind every other field.
func SigningPayload(a *contracts.SignedApproval) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("canonicalize: nil approval")
	}

	// Work on a copy; the record itself is immutable.
	unsigned := *a
	unsigned.Signature = ""
	unsigned.SigningKeyID = ""

	// Scope sets are unordered by definition; sort before serializing.
	unsigned.ScopesApproved = contracts.SortScopes(unsigned.ScopesApproved)

	// Normalize timestamps to UTC so the byte form does not depend on the
	// producer's zone offset.
	unsigned.CreatedAt = unsigned.CreatedAt.UTC()
	if unsigned.ExpiresAt != nil {
		utc := unsigned.ExpiresAt.UTC()
		unsigned.ExpiresAt = &utc
	}

	return Canonical(&unsigned)
}
