package gate

import (
	"fmt"
	"time"

	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
)

// DeriveStatus folds a target's approval history into its current status.
// The result is recomputed fresh on every call, never cached: the latest
// decision per unique approver is authoritative, a revoked entry cancels
// that approver's earlier approval, and scope/quorum sufficiency is measured
// against the surviving set. The fold is order-independent, so out-of-order
// arrival does not change the outcome.
func DeriveStatus(
	targetID string,
	targetType contracts.TargetType,
	history []contracts.SignedApproval,
	requiredScopes []contracts.Scope,
	requiredApprovals int,
	now time.Time,
) contracts.ApprovalStatus {
	if requiredApprovals < 1 {
		requiredApprovals = 1
	}

	status := contracts.ApprovalStatus{
		TargetID:          targetID,
		TargetType:        targetType,
		RequiredApprovals: requiredApprovals,
		Status:            contracts.StatusPending,
	}

	if len(history) == 0 {
		status.MissingScopes = contracts.SortScopes(requiredScopes)
		return status
	}

	latest := contracts.FoldLatestByApprover(history)

	// A standing denial from any approver dominates.
	for _, a := range latest {
		if a.Decision == contracts.DecisionDenied {
			status.Status = contracts.StatusDenied
			reason := a.Reason
			if reason == "" {
				reason = fmt.Sprintf("denied by %s", a.Approver.ID)
			}
			status.DenialReasons = append(status.DenialReasons, reason)
		}
	}

	effective := contracts.EffectiveApprovals(history, now)
	status.Approvals = effective
	status.CurrentApprovals = len(effective)
	status.MissingScopes = contracts.MissingScopes(requiredScopes, contracts.ScopeUnion(effective))

	if status.Status == contracts.StatusDenied {
		return status
	}

	if len(effective) > 0 {
		if status.CurrentApprovals >= requiredApprovals && len(status.MissingScopes) == 0 {
			status.Status = contracts.StatusApproved
		}
		return status
	}

	// No surviving approvals: distinguish why.
	revoked, expired := false, false
	for _, a := range latest {
		switch {
		case a.Decision == contracts.DecisionRevoked:
			revoked = true
		case a.Decision == contracts.DecisionApproved && a.Expired(now):
			expired = true
		}
	}
	switch {
	case revoked:
		status.Status = contracts.StatusRevoked
	case expired:
		status.Status = contracts.StatusExpired
	}
	return status
}
