package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
	"github.com/Patchlock-Labs/patchlock/core/pkg/crypto"
)

// runSignCmd implements `patchlock sign`: reads an unsigned approval record,
// computes the intent and patch hashes when raw inputs are given, signs the
// record, and prints the signed JSON.
//
// Exit codes: 0 = signed, 2 = runtime error.
func runSignCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("sign", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		keyFile      string
		approvalFile string
		intentFile   string
		patchFile    string
	)
	cmd.StringVar(&keyFile, "key", "", "Path to the signing key pair (REQUIRED)")
	cmd.StringVar(&approvalFile, "approval", "", "Path to the unsigned approval JSON (REQUIRED)")
	cmd.StringVar(&intentFile, "intent", "", "Optional plan text to hash into intent_hash")
	cmd.StringVar(&patchFile, "patch", "", "Optional patch file to hash into patch_hash")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if keyFile == "" || approvalFile == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --key and --approval are required")
		return 2
	}

	keyData, err := os.ReadFile(keyFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read key: %v\n", err)
		return 2
	}
	var kp contracts.SigningKeyPair
	if err := json.Unmarshal(keyData, &kp); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: parse key: %v\n", err)
		return 2
	}
	signer, err := crypto.NewSignerFromKeyPair(&kp)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	approvalData, err := os.ReadFile(approvalFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read approval: %v\n", err)
		return 2
	}
	var approval contracts.SignedApproval
	if err := json.Unmarshal(approvalData, &approval); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: parse approval: %v\n", err)
		return 2
	}

	if approval.ApprovalID == "" {
		approval.ApprovalID = uuid.New().String()
	}
	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = time.Now().UTC()
	}
	if intentFile != "" {
		intent, err := os.ReadFile(intentFile)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: read intent: %v\n", err)
			return 2
		}
		approval.IntentHash = crypto.ComputeHash(intent)
	}
	if patchFile != "" {
		patch, err := os.ReadFile(patchFile)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: read patch: %v\n", err)
			return 2
		}
		approval.PatchHash = crypto.ComputeHash(patch)
	}

	if err := signer.SignApproval(&approval); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: sign approval: %v\n", err)
		return 2
	}

	out, err := json.MarshalIndent(&approval, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintln(stdout, string(out))
	return 0
}
