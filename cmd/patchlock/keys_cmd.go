package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Patchlock-Labs/patchlock/core/pkg/config"
	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
	"github.com/Patchlock-Labs/patchlock/core/pkg/crypto"
)

// runKeygenCmd implements `patchlock keygen`: generates an Ed25519 key pair,
// registers the public half, and writes the pair to a file the signer keeps
// private.
//
// Exit codes: 0 = success, 2 = runtime error.
func runKeygenCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("keygen", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		keyID   string
		owner   string
		outFile string
		ttl     time.Duration
	)
	cmd.StringVar(&keyID, "key-id", "", "Key identifier (REQUIRED)")
	cmd.StringVar(&owner, "owner", "", "Key owner identity (REQUIRED)")
	cmd.StringVar(&outFile, "out", "", "File to write the key pair to (REQUIRED)")
	cmd.DurationVar(&ttl, "ttl", 0, "Optional key lifetime; zero means no expiry")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if keyID == "" || owner == "" || outFile == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --key-id, --owner and --out are required")
		return 2
	}

	kp, err := crypto.GenerateKeyPair(keyID)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	record := &contracts.PublicKeyRecord{
		KeyID:        kp.KeyID,
		PublicKey:    kp.PublicKey,
		Owner:        owner,
		RegisteredAt: kp.CreatedAt,
	}
	if ttl > 0 {
		expires := kp.CreatedAt.Add(ttl)
		record.ExpiresAt = &expires
	}

	registry, closeFn, err := openRegistry(config.Load())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = closeFn() }()

	if err := registry.RegisterPublicKey(context.Background(), record); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: register key: %v\n", err)
		return 2
	}

	data, err := json.MarshalIndent(kp, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if err := os.WriteFile(outFile, data, 0600); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: write key file: %v\n", err)
		return 2
	}

	_, _ = fmt.Fprintf(stdout, "registered key %s for %s (public key %s)\n", kp.KeyID, owner, kp.PublicKey)
	return 0
}

// runRevokeCmd implements `patchlock revoke`.
//
// Exit codes: 0 = revoked (or already revoked), 1 = key not found,
// 2 = runtime error.
func runRevokeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("revoke", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var keyID string
	cmd.StringVar(&keyID, "key-id", "", "Key identifier (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if keyID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --key-id is required")
		return 2
	}

	registry, closeFn, err := openRegistry(config.Load())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = closeFn() }()

	if err := registry.RevokeKey(context.Background(), keyID); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "revoked key %s\n", keyID)
	return 0
}
