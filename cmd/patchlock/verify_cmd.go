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

// runVerifyCmd implements `patchlock verify`: verifies a signed approval
// against the key registry.
//
// Exit codes: 0 = valid, 1 = invalid, 2 = runtime error.
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		approvalFile string
		timeout      time.Duration
		jsonOutput   bool
	)
	cmd.StringVar(&approvalFile, "approval", "", "Path to the signed approval JSON (REQUIRED)")
	cmd.DurationVar(&timeout, "timeout", 5*time.Second, "Key registry lookup timeout")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the verification result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if approvalFile == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --approval is required")
		return 2
	}

	data, err := os.ReadFile(approvalFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read approval: %v\n", err)
		return 2
	}
	var approval contracts.SignedApproval
	if err := json.Unmarshal(data, &approval); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: parse approval: %v\n", err)
		return 2
	}

	registry, closeFn, err := openRegistry(config.Load())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = closeFn() }()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result := crypto.NewVerifier(registry).VerifyApproval(ctx, &approval)

	if jsonOutput {
		out, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(out))
	} else if result.Valid {
		_, _ = fmt.Fprintf(stdout, "approval %s: valid\n", approval.ApprovalID)
	} else {
		_, _ = fmt.Fprintf(stdout, "approval %s: INVALID (%s: %s)\n", approval.ApprovalID, result.Code, result.Error)
	}

	if result.Valid {
		return 0
	}
	return 1
}
