package policy

import (
	"time"

	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
)

// Helper semantics here are load-bearing for quorum correctness: all of them
// operate on the effective approval set (latest decision per approver, not
// expired), so repeated approvals never double-count and a revocation cancels
// the same approver's earlier grant regardless of arrival order.

// CountUniqueApprovers returns the number of distinct approver IDs whose
// authoritative decision is "approved".
func CountUniqueApprovers(ctx Context) int {
	return len(contracts.EffectiveApprovals(ctx.Approvals, time.Now()))
}

// HasAllScopes reports whether the union of scopes across effective approvals
// covers every required scope.
func HasAllScopes(ctx Context) bool {
	effective := contracts.EffectiveApprovals(ctx.Approvals, time.Now())
	granted := contracts.ScopeUnion(effective)
	for _, s := range ctx.RequiredScopes {
		if !granted[s] {
			return false
		}
	}
	return true
}

// MissingScopes lists required scopes not yet covered, sorted.
func MissingScopes(ctx Context) []contracts.Scope {
	effective := contracts.EffectiveApprovals(ctx.Approvals, time.Now())
	return contracts.MissingScopes(ctx.RequiredScopes, contracts.ScopeUnion(effective))
}

// HasRole reports whether the actor's role ranks at or above required.
func HasRole(ctx Context, required contracts.Role) bool {
	return ctx.Actor.Role.AtLeast(required)
}

// OnlySelfApproved reports whether every effective approval was authored by
// the requesting actor. False when there are no effective approvals at all;
// the zero-approvals case belongs to the quorum policies.
func OnlySelfApproved(ctx Context) bool {
	effective := contracts.EffectiveApprovals(ctx.Approvals, time.Now())
	if len(effective) == 0 {
		return false
	}
	for i := range effective {
		if effective[i].Approver.ID != ctx.Actor.ID {
			return false
		}
	}
	return true
}
