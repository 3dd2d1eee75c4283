package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Patchlock-Labs/patchlock/core/pkg/audit"
	"github.com/Patchlock-Labs/patchlock/core/pkg/config"
	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
	"github.com/Patchlock-Labs/patchlock/core/pkg/crypto"
	"github.com/Patchlock-Labs/patchlock/core/pkg/gate"
	"github.com/Patchlock-Labs/patchlock/core/pkg/observability"
	"github.com/Patchlock-Labs/patchlock/core/pkg/policy"
)

// runCheckCmd implements `patchlock check`: verifies the approval signature,
// then runs an operation request through the capability gate with the
// built-in policy set. The execution callback is a no-op report, so a check
// never performs the gated operation itself.
//
// Exit codes: 0 = allowed, 1 = denied, 2 = runtime error.
func runCheckCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("check", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		approvalFile  string
		patchFile     string
		action        string
		actorID       string
		actorRole     string
		protected     bool
		production    bool
		businessHours bool
		timeout       time.Duration
	)
	cmd.StringVar(&approvalFile, "approval", "", "Path to the signed approval JSON")
	cmd.StringVar(&patchFile, "patch", "", "Path to the patch content the approval must bind to")
	cmd.StringVar(&action, "action", "", "Operation kind, e.g. commit, push, merge, deploy (REQUIRED)")
	cmd.StringVar(&actorID, "actor", "", "Requesting actor ID (REQUIRED)")
	cmd.StringVar(&actorRole, "role", "DEVELOPER", "Actor role: VIEWER, DEVELOPER, ADMIN, OWNER")
	cmd.BoolVar(&protected, "protected-branch", false, "Target is a protected branch")
	cmd.BoolVar(&production, "production", false, "Target is production")
	cmd.BoolVar(&businessHours, "business-hours", true, "Evaluation happens during business hours")
	cmd.DurationVar(&timeout, "timeout", 5*time.Second, "Key registry lookup timeout")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if action == "" || actorID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --action and --actor are required")
		return 2
	}

	var approval *contracts.SignedApproval
	if approvalFile != "" {
		data, err := os.ReadFile(approvalFile)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: read approval: %v\n", err)
			return 2
		}
		approval = &contracts.SignedApproval{}
		if err := json.Unmarshal(data, approval); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: parse approval: %v\n", err)
			return 2
		}
	}

	var patchContent []byte
	if patchFile != "" {
		var err error
		patchContent, err = os.ReadFile(patchFile)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: read patch: %v\n", err)
			return 2
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg := config.Load()

	g := gate.New(policy.NewDefaultEngine(), audit.NewLoggerWithWriter(stderr))
	if cfg.OTelEnabled {
		otelCfg := observability.DefaultConfig()
		otelCfg.OTLPEndpoint = cfg.OTLPEndpoint
		provider, err := observability.Setup(ctx, otelCfg)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = provider.Shutdown(shutdownCtx)
		}()

		instruments, err := observability.NewGateInstruments()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		g = g.WithInstruments(instruments)
	}

	// An approval only enters the policy context once its signature holds.
	var approvals []contracts.SignedApproval
	if approval != nil {
		registry, closeFn, err := openRegistry(cfg)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		defer func() { _ = closeFn() }()

		verification := crypto.NewVerifier(registry).VerifyApproval(ctx, approval)
		if !verification.Valid {
			_, _ = fmt.Fprintf(stdout, "denied: approval signature invalid (%s: %s)\n", verification.Code, verification.Error)
			return 1
		}
		approvals = append(approvals, *approval)
	}

	kind := contracts.OperationKind(action)
	req := contracts.OperationRequest{
		RequestID: uuid.New().String(),
		ActorID:   actorID,
		Kind:      kind,
	}

	result := g.ExecuteIfApproved(ctx, req, approval, patchContent, policy.Context{
		Actor:  policy.Actor{ID: actorID, Role: contracts.Role(actorRole)},
		Action: kind,
		Resource: policy.Resource{
			policy.AttrProtectedBranch: protected,
			policy.AttrProduction:      production,
		},
		Approvals:      approvals,
		RequiredScopes: gate.RequiredScopes(kind),
		Environment:    policy.Environment{IsBusinessHours: businessHours},
	}, func(context.Context) (any, error) {
		return "authorized (dry run, nothing executed)", nil
	})

	out, _ := json.MarshalIndent(result, "", "  ")
	_, _ = fmt.Fprintln(stdout, string(out))

	if result.Allowed {
		return 0
	}
	return 1
}
