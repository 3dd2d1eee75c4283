package contracts

import "time"

// OperationKind names an action an agent or human wants to perform against
// the codebase. Gated kinds require a satisfying approval; safe kinds are
// granted by operating mode alone.
type OperationKind string

const (
	// Gated operations.
	OpCommit OperationKind = "commit"
	OpPush   OperationKind = "push"
	OpOpenPR OperationKind = "open_pr"
	OpMerge  OperationKind = "merge"
	OpDeploy OperationKind = "deploy"

	// Extended gated operations, reached through the policy engine rather
	// than the scope map.
	OpCandidateExecute OperationKind = "candidate.execute"
	OpTenantUpdate     OperationKind = "tenant.update"
	OpBillingUpdate    OperationKind = "billing.update"
	OpMemberRemove     OperationKind = "member.remove"

	// Safe operations.
	OpReadRepo     OperationKind = "read_repo"
	OpComment      OperationKind = "comment"
	OpCreatePatch  OperationKind = "create_patch"
	OpRunAnalysis  OperationKind = "run_analysis"
	OpReportStatus OperationKind = "report_status"
)

// Mode is the operating mode of the automation driving the request. It
// bounds what the automation may do without touching the approval machinery.
type Mode string

const (
	ModeCommentOnly         Mode = "comment-only"
	ModePatchOnly           Mode = "patch-only"
	ModeCommitAfterApproval Mode = "commit-after-approval"
)

// DenialCode is the reason taxonomy surfaced to callers and audit logs.
type DenialCode string

const (
	DenialNone               DenialCode = ""
	DenialNoApproval         DenialCode = "NO_APPROVAL"
	DenialPatchHashMismatch  DenialCode = "PATCH_HASH_MISMATCH"
	DenialScopeMismatch      DenialCode = "SCOPE_MISMATCH"
	DenialExpired            DenialCode = "EXPIRED"
	DenialRevoked            DenialCode = "REVOKED"
	DenialPolicyDenied       DenialCode = "POLICY_DENIED"
	DenialInsufficientQuorum DenialCode = "INSUFFICIENT_QUORUM"
)

// OperationRequest is the capability gate's input.
type OperationRequest struct {
	RequestID string        `json:"request_id"`
	TenantID  string        `json:"tenant_id"`
	ActorID   string        `json:"actor_id"`
	Kind      OperationKind `json:"kind"`
	Target    Target        `json:"target"`
	Mode      Mode          `json:"mode,omitempty"`
}

// ApprovalCheckResult is the outcome of the gate's pre-policy checks
// (presence, expiry, content binding, scopes).
type ApprovalCheckResult struct {
	Approved bool       `json:"approved"`
	Reason   DenialCode `json:"reason,omitempty"`
	Detail   string     `json:"detail,omitempty"`
}

// GatedOperationResult is the gate's final output. Executed is true only when
// the caller-supplied action callback ran; its outcome is then in Output/Err.
type GatedOperationResult struct {
	Allowed    bool       `json:"allowed"`
	Reason     DenialCode `json:"reason,omitempty"`
	Detail     string     `json:"detail,omitempty"`
	Resolution string     `json:"resolution,omitempty"`
	Executed   bool       `json:"executed"`
	Output     any        `json:"output,omitempty"`
	Err        string     `json:"error,omitempty"`
	DecidedAt  time.Time  `json:"decided_at"`
}
