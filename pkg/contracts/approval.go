// Package contracts defines the wire-stable types shared by every Patchlock
// subsystem: signed approvals, key records, gated operation requests and
// results, and the flat audit record.
//
// Types here are serialized, canonicalized, and signed. Fields are only ever
// added (as optional), never repurposed, so that records signed by one
// version of the core verify under another.
package contracts

import "time"

// DecisionValue is the approver's verdict carried inside a SignedApproval.
type DecisionValue string

const (
	DecisionApproved DecisionValue = "approved"
	DecisionDenied   DecisionValue = "denied"
	DecisionRevoked  DecisionValue = "revoked"
)

// TargetType identifies what kind of unit an approval is bound to.
type TargetType string

const (
	TargetCandidate TargetType = "candidate"
	TargetRun       TargetType = "run"
	TargetPR        TargetType = "pr"
)

// Approver identifies the identity that produced an approval decision.
type Approver struct {
	Type           string `json:"type"` // "human" or "service"
	ID             string `json:"id"`
	DisplayName    string `json:"display_name,omitempty"`
	Email          string `json:"email,omitempty"`
	GithubUsername string `json:"github_username,omitempty"`
	Organization   string `json:"organization,omitempty"`
}

// Target locates the unit of work an approval applies to.
type Target struct {
	CandidateID string `json:"candidate_id,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	PRNumber    int    `json:"pr_number,omitempty"`
	Repo        string `json:"repo,omitempty"`
}

// ID returns the first non-empty locator, used as the fold key when deriving
// per-target status from the approval history.
func (t Target) ID() string {
	switch {
	case t.CandidateID != "":
		return t.CandidateID
	case t.RunID != "":
		return t.RunID
	case t.Repo != "":
		return t.Repo
	}
	return ""
}

// SignedApproval is the immutable, append-only unit of the approval history.
//
// Security properties:
//   - IntentHash binds the approval to the exact plan text that was reviewed.
//   - PatchHash binds the approval to the literal diff bytes; the gate
//     recomputes and compares it before any execution.
//   - Signature is Ed25519 over the canonical JSON form of this record with
//     Signature and SigningKeyID excluded (see pkg/canonicalize).
//
// A change of mind is never expressed by mutating a record: the approver
// emits a new record with Decision = DecisionRevoked against the same target.
type SignedApproval struct {
	SchemaVersion string        `json:"schema_version,omitempty"`
	ApprovalID    string        `json:"approval_id"`
	TenantID      string        `json:"tenant_id"`
	Approver      Approver      `json:"approver"`
	ApproverRole  Role          `json:"approver_role"`
	Decision      DecisionValue `json:"decision"`

	// ScopesApproved is empty for denied/revoked decisions. The set is
	// unordered by definition; canonicalization sorts it before signing.
	ScopesApproved []Scope `json:"scopes_approved"`

	TargetType TargetType `json:"target_type"`
	Target     Target     `json:"target"`

	IntentHash string `json:"intent_hash"`
	PatchHash  string `json:"patch_hash,omitempty"`

	Source  string `json:"source"` // e.g. "cli", "web", "github"
	Reason  string `json:"reason,omitempty"`
	Comment string `json:"comment,omitempty"`

	Signature    string `json:"signature,omitempty"`
	SigningKeyID string `json:"signing_key_id,omitempty"`

	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the approval itself has lapsed at the given instant.
func (a *SignedApproval) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// StatusValue is the derived lifecycle state of a target, recomputed on
// demand by folding its approval history. It is never stored as ground truth.
type StatusValue string

const (
	StatusPending  StatusValue = "pending"
	StatusApproved StatusValue = "approved"
	StatusDenied   StatusValue = "denied"
	StatusRevoked  StatusValue = "revoked"
	StatusExpired  StatusValue = "expired"
)

// ApprovalStatus is the derived quorum/scope picture for one target.
type ApprovalStatus struct {
	TargetID          string           `json:"target_id"`
	TargetType        TargetType       `json:"target_type"`
	Status            StatusValue      `json:"status"`
	Approvals         []SignedApproval `json:"approvals"`
	RequiredApprovals int              `json:"required_approvals"`
	CurrentApprovals  int              `json:"current_approvals"`
	MissingScopes     []Scope          `json:"missing_scopes,omitempty"`
	DenialReasons     []string         `json:"denial_reasons,omitempty"`
}
