package keyreg

import (
	"context"
	"sync"

	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
)

// MemoryRegistry is an in-process Registry for tests and development.
// Instances are independent; there is no package-level singleton.
type MemoryRegistry struct {
	mu   sync.RWMutex
	keys map[string]contracts.PublicKeyRecord
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{keys: make(map[string]contracts.PublicKeyRecord)}
}

func (r *MemoryRegistry) GetPublicKey(ctx context.Context, keyID string) (*contracts.PublicKeyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.keys[keyID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (r *MemoryRegistry) RegisterPublicKey(ctx context.Context, record *contracts.PublicKeyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecord(record); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.keys[record.KeyID]; exists {
		return ErrDuplicateKey
	}
	r.keys[record.KeyID] = *record
	return nil
}

func (r *MemoryRegistry) RevokeKey(ctx context.Context, keyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.keys[keyID]
	if !ok {
		return ErrKeyNotFound
	}
	if record.Revoked {
		return nil // idempotent
	}
	record.Revoked = true
	r.keys[keyID] = record
	return nil
}

func (r *MemoryRegistry) ListKeys(ctx context.Context, owner string) ([]contracts.PublicKeyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []contracts.PublicKeyRecord
	for _, record := range r.keys {
		if record.Owner == owner {
			out = append(out, record)
		}
	}
	return out, nil
}
