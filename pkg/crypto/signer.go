// Package crypto implements Ed25519 signing and verification of approval
// records over their canonical JSON form, plus the content hashing that binds
// approvals to exact patch bytes.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Patchlock-Labs/patchlock/core/pkg/canonicalize"
	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
)

// AlgorithmEd25519 is the only signature scheme this core produces.
// Deterministic, no nonce-reuse risk, fast verification.
const AlgorithmEd25519 = "ed25519"

// GenerateKeyPair creates a fresh Ed25519 key pair for a signer identity.
func GenerateKeyPair(keyID string) (*contracts.SigningKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: key generation failed: %w", err)
	}
	return &contracts.SigningKeyPair{
		KeyID:      keyID,
		PublicKey:  hex.EncodeToString(pub),
		PrivateKey: hex.EncodeToString(priv),
		CreatedAt:  time.Now().UTC(),
		Algorithm:  AlgorithmEd25519,
	}, nil
}

// Signer signs approval records with a single Ed25519 key.
type Signer struct {
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
	KeyID   string
	clock   func() time.Time
}

// NewSigner creates a signer with a freshly generated key.
func NewSigner(keyID string) (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: key generation failed: %w", err)
	}
	return &Signer{privKey: priv, pubKey: pub, KeyID: keyID, clock: time.Now}, nil
}

// NewSignerFromKeyPair reconstructs a signer from persisted key material.
// Malformed key material is a construction-time error, not a verification
// result.
func NewSignerFromKeyPair(kp *contracts.SigningKeyPair) (*Signer, error) {
	if kp == nil {
		return nil, fmt.Errorf("crypto: nil key pair")
	}
	if kp.Algorithm != "" && kp.Algorithm != AlgorithmEd25519 {
		return nil, fmt.Errorf("crypto: unsupported algorithm %q", kp.Algorithm)
	}
	priv, err := hex.DecodeString(kp.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key hex: %w", err)
	}
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	key := ed25519.PrivateKey(priv)
	return &Signer{
		privKey: key,
		pubKey:  key.Public().(ed25519.PublicKey),
		KeyID:   kp.KeyID,
		clock:   time.Now,
	}, nil
}

// WithClock overrides the clock for deterministic testing.
func (s *Signer) WithClock(clock func() time.Time) *Signer {
	s.clock = clock
	return s
}

// Sign signs raw bytes, returning the hex-encoded signature.
func (s *Signer) Sign(data []byte) string {
	return hex.EncodeToString(ed25519.Sign(s.privKey, data))
}

// PublicKey returns the hex-encoded public key.
func (s *Signer) PublicKey() string {
	return hex.EncodeToString(s.pubKey)
}

// PublicKeyRecord builds the registry record for this signer's key.
func (s *Signer) PublicKeyRecord(owner string) *contracts.PublicKeyRecord {
	return &contracts.PublicKeyRecord{
		KeyID:        s.KeyID,
		PublicKey:    s.PublicKey(),
		Owner:        owner,
		RegisteredAt: s.clock().UTC(),
	}
}

// SignApproval validates the approval, canonicalizes it with the signature
// fields excluded, and fills in Signature and SigningKeyID. The record must
// not be mutated afterwards.
func (s *Signer) SignApproval(a *contracts.SignedApproval) error {
	if a.SchemaVersion == "" {
		a.SchemaVersion = contracts.CurrentSchemaVersion
	}
	if err := contracts.ValidateApproval(a); err != nil {
		return err
	}
	payload, err := canonicalize.SigningPayload(a)
	if err != nil {
		return err
	}
	a.Signature = s.Sign(payload)
	a.SigningKeyID = s.KeyID
	return nil
}

// Verify checks a hex signature over data against a hex public key.
// Malformed key material is an error; a well-formed but wrong signature is a
// false result.
func Verify(pubKeyHex, sigHex string, data []byte) (bool, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("crypto: invalid public key hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("crypto: invalid public key size %d", len(pubKey))
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("crypto: invalid signature hex: %w", err)
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), data, sig), nil
}

// ComputeHash returns the SHA-256 hex digest of content. Used for both
// intent hashes and patch hashes.
func ComputeHash(content []byte) string {
	return canonicalize.HashBytes(content)
}
