// Package gate is the single entry point callers use to ask "may operation O
// proceed, and if so, run it." It binds approvals to exact patch content,
// consults the policy engine, and invokes the caller-supplied action at most
// once, only after authorization succeeds.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/Patchlock-Labs/patchlock/core/pkg/audit"
	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
	"github.com/Patchlock-Labs/patchlock/core/pkg/crypto"
	"github.com/Patchlock-Labs/patchlock/core/pkg/observability"
	"github.com/Patchlock-Labs/patchlock/core/pkg/policy"
)

// OperationScopeMap maps each gated operation kind to the minimal scope set
// an approval must grant for it.
var OperationScopeMap = map[contracts.OperationKind][]contracts.Scope{
	contracts.OpCommit: {contracts.ScopeCommit},
	contracts.OpPush:   {contracts.ScopeCommit, contracts.ScopePush},
	contracts.OpOpenPR: {contracts.ScopeOpenPR},
	contracts.OpMerge:  {contracts.ScopeMerge},
	contracts.OpDeploy: {contracts.ScopeDeploy},
}

// ModeCapabilities maps each operating mode to the safe operations permitted
// without any approval. Gated operations never appear here.
var ModeCapabilities = map[contracts.Mode][]contracts.OperationKind{
	contracts.ModeCommentOnly: {
		contracts.OpReadRepo,
		contracts.OpComment,
		contracts.OpReportStatus,
	},
	contracts.ModePatchOnly: {
		contracts.OpReadRepo,
		contracts.OpComment,
		contracts.OpCreatePatch,
		contracts.OpRunAnalysis,
		contracts.OpReportStatus,
	},
	contracts.ModeCommitAfterApproval: {
		contracts.OpReadRepo,
		contracts.OpComment,
		contracts.OpCreatePatch,
		contracts.OpRunAnalysis,
		contracts.OpReportStatus,
	},
}

// RequiredScopes returns the scope set for a gated operation kind, or nil
// for kinds not in the map (safe operations, extended policy-only actions).
func RequiredScopes(kind contracts.OperationKind) []contracts.Scope {
	return OperationScopeMap[kind]
}

// AllowedWithoutApproval reports whether kind is a safe operation under mode.
func AllowedWithoutApproval(mode contracts.Mode, kind contracts.OperationKind) bool {
	for _, k := range ModeCapabilities[mode] {
		if k == kind {
			return true
		}
	}
	return false
}

// Action is the caller-supplied execution callback. It runs at most once,
// only after authorization succeeds, and may itself be long-running; the
// gate waits for it and does not consider the operation done until it
// returns.
type Action func(ctx context.Context) (any, error)

// Gate combines approval checking and policy evaluation into one decision
// surface. Construct one per process or per tenant; there is no package
// singleton.
type Gate struct {
	engine      *policy.Engine
	audit       audit.Logger
	instruments *observability.GateInstruments
	clock       func() time.Time
}

// New creates a gate over the given policy engine. A nil logger disables
// auditing (tests); production callers pass a real sink.
func New(engine *policy.Engine, auditLogger audit.Logger) *Gate {
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	return &Gate{
		engine: engine,
		audit:  auditLogger,
		clock:  time.Now,
	}
}

// WithInstruments attaches OpenTelemetry instruments.
func (g *Gate) WithInstruments(instruments *observability.GateInstruments) *Gate {
	g.instruments = instruments
	return g
}

// WithClock overrides the clock for deterministic testing.
func (g *Gate) WithClock(clock func() time.Time) *Gate {
	g.clock = clock
	return g
}

// CheckApproval performs the pre-policy checks, in order: presence, expiry,
// content binding, scope coverage. Content binding is the control that
// prevents "approve patch A, silently apply patch B": any hash mismatch
// denies even when scopes and quorum are otherwise satisfied.
func (g *Gate) CheckApproval(req contracts.OperationRequest, approval *contracts.SignedApproval, patchContent []byte) contracts.ApprovalCheckResult {
	if approval == nil {
		return contracts.ApprovalCheckResult{
			Approved: false,
			Reason:   contracts.DenialNoApproval,
			Detail:   fmt.Sprintf("operation %q has no approval", req.Kind),
		}
	}

	switch approval.Decision {
	case contracts.DecisionApproved:
	case contracts.DecisionRevoked:
		return contracts.ApprovalCheckResult{
			Approved: false,
			Reason:   contracts.DenialRevoked,
			Detail:   fmt.Sprintf("approval %s was revoked", approval.ApprovalID),
		}
	default:
		return contracts.ApprovalCheckResult{
			Approved: false,
			Reason:   contracts.DenialNoApproval,
			Detail:   fmt.Sprintf("approval %s carries decision %q, not an approval", approval.ApprovalID, approval.Decision),
		}
	}

	if approval.Expired(g.clock()) {
		return contracts.ApprovalCheckResult{
			Approved: false,
			Reason:   contracts.DenialExpired,
			Detail:   fmt.Sprintf("approval %s expired at %s", approval.ApprovalID, approval.ExpiresAt.UTC().Format(time.RFC3339)),
		}
	}

	if approval.PatchHash != "" || len(patchContent) > 0 {
		computed := crypto.ComputeHash(patchContent)
		if computed != approval.PatchHash {
			return contracts.ApprovalCheckResult{
				Approved: false,
				Reason:   contracts.DenialPatchHashMismatch,
				Detail:   fmt.Sprintf("approval %s is bound to different patch content", approval.ApprovalID),
			}
		}
	}

	granted := make(map[contracts.Scope]bool, len(approval.ScopesApproved))
	for _, s := range approval.ScopesApproved {
		granted[s] = true
	}
	if missing := contracts.MissingScopes(RequiredScopes(req.Kind), granted); len(missing) > 0 {
		return contracts.ApprovalCheckResult{
			Approved: false,
			Reason:   contracts.DenialScopeMismatch,
			Detail:   fmt.Sprintf("approval %s does not grant required scopes: %v", approval.ApprovalID, missing),
		}
	}

	return contracts.ApprovalCheckResult{Approved: true}
}

// ExecuteIfApproved runs the full authorization pipeline and, only on policy
// ALLOW, invokes action exactly once. On any denial the callback is never
// invoked: either nothing externally visible happens, or the full callback
// runs.
func (g *Gate) ExecuteIfApproved(
	ctx context.Context,
	req contracts.OperationRequest,
	approval *contracts.SignedApproval,
	patchContent []byte,
	policyCtx policy.Context,
	action Action,
) contracts.GatedOperationResult {
	ctx, span := g.instruments.StartSpan(ctx, string(req.Kind))
	defer span.End()
	started := g.clock()

	check := g.CheckApproval(req, approval, patchContent)
	g.recordCheck(ctx, req, approval, check)
	if !check.Approved {
		return g.finish(ctx, req, started, contracts.GatedOperationResult{
			Allowed:    false,
			Reason:     check.Reason,
			Detail:     check.Detail,
			Resolution: resolutionFor(check.Reason),
		})
	}

	decision := g.engine.Evaluate(policyCtx)
	g.recordPolicy(ctx, req, decision)
	switch decision.Decision {
	case policy.Deny:
		return g.finish(ctx, req, started, contracts.GatedOperationResult{
			Allowed:    false,
			Reason:     contracts.DenialPolicyDenied,
			Detail:     decision.DenyMessage,
			Resolution: decision.Resolution,
		})
	case policy.RequireMoreApprovals:
		return g.finish(ctx, req, started, contracts.GatedOperationResult{
			Allowed:    false,
			Reason:     contracts.DenialInsufficientQuorum,
			Detail:     decision.DenyMessage,
			Resolution: decision.Resolution,
		})
	}

	result := contracts.GatedOperationResult{Allowed: true, Executed: true}
	output, err := action(ctx)
	result.Output = output
	if err != nil {
		result.Err = err.Error()
	}
	return g.finish(ctx, req, started, result)
}

func (g *Gate) finish(ctx context.Context, req contracts.OperationRequest, started time.Time, result contracts.GatedOperationResult) contracts.GatedOperationResult {
	result.DecidedAt = g.clock().UTC()
	elapsed := float64(result.DecidedAt.Sub(started)) / float64(time.Millisecond)
	g.instruments.RecordDecision(ctx, string(req.Kind), string(result.Reason), result.Allowed, elapsed)

	_ = g.audit.Record(ctx, contracts.AuditRecord{
		Type:       contracts.AuditGateResult,
		ReasonCode: string(result.Reason),
		TenantID:   req.TenantID,
		ActorID:    req.ActorID,
		Action:     string(req.Kind),
		Detail:     result.Detail,
	})
	return result
}

func (g *Gate) recordCheck(ctx context.Context, req contracts.OperationRequest, approval *contracts.SignedApproval, check contracts.ApprovalCheckResult) {
	record := contracts.AuditRecord{
		Type:       contracts.AuditApprovalCheck,
		ReasonCode: string(check.Reason),
		TenantID:   req.TenantID,
		ActorID:    req.ActorID,
		Action:     string(req.Kind),
		Detail:     check.Detail,
	}
	if approval != nil {
		record.ApprovalRef = approval.ApprovalID
	}
	_ = g.audit.Record(ctx, record)
}

func (g *Gate) recordPolicy(ctx context.Context, req contracts.OperationRequest, decision policy.Result) {
	_ = g.audit.Record(ctx, contracts.AuditRecord{
		Type:       contracts.AuditPolicyDecision,
		ReasonCode: string(decision.Decision),
		TenantID:   req.TenantID,
		ActorID:    req.ActorID,
		Action:     string(req.Kind),
		Detail:     decision.DenyMessage,
	})
}

// resolutionFor maps pre-policy denial codes to actor guidance. Policy
// denials carry their own policy-specific resolution instead.
func resolutionFor(code contracts.DenialCode) string {
	switch code {
	case contracts.DenialNoApproval:
		return "request an approval for this operation before retrying"
	case contracts.DenialExpired:
		return "the approval lapsed; request a fresh approval"
	case contracts.DenialRevoked:
		return "the approval was revoked; request a new approval"
	case contracts.DenialPatchHashMismatch:
		return "the patch changed after approval; re-submit the current patch for approval"
	case contracts.DenialScopeMismatch:
		return "request an approval granting the operation's required scopes"
	default:
		return ""
	}
}
