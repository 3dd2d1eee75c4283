// Package keyreg defines the key registry contract and ships reference
// implementations: in-memory for tests and development, SQLite for
// single-node deployments, Postgres for shared ones.
//
// The registry owns PublicKeyRecord lifecycle. Revocation is monotonic and
// idempotent; records are otherwise never mutated. Any caching of verified
// keys is the caller's optimization and must be invalidated on RevokeKey.
package keyreg

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
)

var (
	// ErrKeyNotFound is returned by RevokeKey for an unknown key ID.
	// GetPublicKey returns (nil, nil) instead: absence is an expected
	// verification outcome, not an error.
	ErrKeyNotFound = errors.New("keyreg: key not found")

	// ErrDuplicateKey is returned when registering an already-known key ID.
	ErrDuplicateKey = errors.New("keyreg: key already registered")
)

// Registry is the key registry contract consumed by the verifier and
// implemented by a persistence layer. All methods take ctx so callers can
// impose timeouts; implementations must not block past cancellation.
type Registry interface {
	// GetPublicKey returns the record for keyID, or (nil, nil) if absent.
	GetPublicKey(ctx context.Context, keyID string) (*contracts.PublicKeyRecord, error)

	// RegisterPublicKey stores a new key record. Duplicate key IDs are
	// rejected with ErrDuplicateKey.
	RegisterPublicKey(ctx context.Context, record *contracts.PublicKeyRecord) error

	// RevokeKey marks a key revoked. Revoking an already-revoked key is a
	// no-op; revoking an unknown key returns ErrKeyNotFound.
	RevokeKey(ctx context.Context, keyID string) error

	// ListKeys returns all records owned by owner.
	ListKeys(ctx context.Context, owner string) ([]contracts.PublicKeyRecord, error)
}

// validateRecord rejects malformed key material before it enters the
// registry. This is the construction-time ValidationError arm: bad input
// errors here instead of surfacing later as a confusing signature mismatch.
func validateRecord(record *contracts.PublicKeyRecord) error {
	if record == nil {
		return fmt.Errorf("keyreg: nil record")
	}
	if record.KeyID == "" {
		return fmt.Errorf("keyreg: empty key id")
	}
	raw, err := hex.DecodeString(record.PublicKey)
	if err != nil {
		return fmt.Errorf("keyreg: public key for %s is not hex: %w", record.KeyID, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("keyreg: public key for %s must be 32 bytes, got %d", record.KeyID, len(raw))
	}
	if record.Owner == "" {
		return fmt.Errorf("keyreg: empty owner for %s", record.KeyID)
	}
	return nil
}
