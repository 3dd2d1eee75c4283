package contracts

import "time"

// SigningKeyPair holds the key material generated for one signer identity.
// The private key never leaves the signer's trust boundary; this core does
// not persist it.
type SigningKeyPair struct {
	KeyID      string    `json:"key_id"`
	PublicKey  string    `json:"public_key"`  // hex-encoded Ed25519 public key
	PrivateKey string    `json:"private_key"` // hex-encoded Ed25519 private key
	CreatedAt  time.Time `json:"created_at"`
	Algorithm  string    `json:"algorithm"` // "ed25519"
}

// PublicKeyRecord is the registry's view of a signing key. Revoked is
// monotonic: once true it never goes back. ExpiresAt, when set, makes the
// key unusable for verification past that instant regardless of Revoked.
type PublicKeyRecord struct {
	KeyID        string     `json:"key_id"`
	PublicKey    string     `json:"public_key"` // hex-encoded Ed25519 public key
	Owner        string     `json:"owner"`
	RegisteredAt time.Time  `json:"registered_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Revoked      bool       `json:"revoked"`
}

// Usable reports whether the key may verify signatures at the given instant.
func (r *PublicKeyRecord) Usable(now time.Time) bool {
	if r.Revoked {
		return false
	}
	if r.ExpiresAt != nil && now.After(*r.ExpiresAt) {
		return false
	}
	return true
}
