package policy

import (
	"fmt"
	"strings"

	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
)

// LargePatchThreshold is the combined churn above which a commit or push
// needs explicit review even when scopes are already covered.
const LargePatchThreshold = 500

// RequiredQuorumProtectedBranch is the distinct-approver count required to
// merge or push to a protected branch.
const RequiredQuorumProtectedBranch = 2

func gatedActions() map[contracts.OperationKind]bool {
	return actionSet(
		contracts.OpCommit,
		contracts.OpPush,
		contracts.OpOpenPR,
		contracts.OpMerge,
		contracts.OpDeploy,
		contracts.OpCandidateExecute,
		contracts.OpTenantUpdate,
		contracts.OpBillingUpdate,
		contracts.OpMemberRemove,
	)
}

// BuiltinPolicies returns the reference rule set. Each entry is an immutable
// record; deployments may register more, but these semantics are preserved.
func BuiltinPolicies() []Policy {
	return []Policy{
		requireApproval(),
		destructiveRequiresOwner(),
		protectedBranchTwoApprovals(),
		productionDeployAdminBusinessHours(),
		memberRemovalAdmin(),
		largePatchReview(),
		noSelfApproval(),
	}
}

// requireApproval is the baseline gate: every gated action needs at least
// one approver and full scope coverage. It never denies outright.
func requireApproval() Policy {
	return Policy{
		ID:          "require-approval",
		Name:        "Require approval",
		Description: "Every gated action needs at least one approval covering all required scopes.",
		Priority:    PriorityNormal,
		Actions:     gatedActions(),
		Evaluate: func(ctx Context) Decision {
			if CountUniqueApprovers(ctx) == 0 || !HasAllScopes(ctx) {
				return RequireMoreApprovals
			}
			return Allow
		},
		DenyMessage: func(ctx Context) string {
			if CountUniqueApprovers(ctx) == 0 {
				return fmt.Sprintf("action %q has no approvals", ctx.Action)
			}
			return fmt.Sprintf("action %q is missing approval for scopes: %s", ctx.Action, scopeList(MissingScopes(ctx)))
		},
		ResolutionMessage: func(ctx Context) string {
			return fmt.Sprintf("obtain an approval granting scopes: %s", scopeList(ctx.RequiredScopes))
		},
	}
}

func destructiveRequiresOwner() Policy {
	return Policy{
		ID:          "destructive-requires-owner",
		Name:        "Destructive changes require owner",
		Description: "Tenant and billing mutations are restricted to OWNER.",
		Priority:    PriorityCritical,
		Actions:     actionSet(contracts.OpTenantUpdate, contracts.OpBillingUpdate),
		Evaluate: func(ctx Context) Decision {
			if !HasRole(ctx, contracts.RoleOwner) {
				return Deny
			}
			return Allow
		},
		DenyMessage: func(ctx Context) string {
			return fmt.Sprintf("action %q requires role OWNER; actor %s has role %s", ctx.Action, ctx.Actor.ID, ctx.Actor.Role)
		},
		ResolutionMessage: func(ctx Context) string {
			return "ask an organization owner to perform this change"
		},
	}
}

func protectedBranchTwoApprovals() Policy {
	return Policy{
		ID:          "protected-branch-two-approvals",
		Name:        "Protected branches need two approvals",
		Description: "Merging or pushing to a protected branch needs two distinct approvers.",
		Priority:    PriorityHigh,
		Actions:     actionSet(contracts.OpMerge, contracts.OpPush),
		When: func(ctx Context) bool {
			return ctx.Resource.Bool(AttrProtectedBranch)
		},
		Evaluate: func(ctx Context) Decision {
			if CountUniqueApprovers(ctx) < RequiredQuorumProtectedBranch {
				return RequireMoreApprovals
			}
			return Allow
		},
		DenyMessage: func(ctx Context) string {
			return fmt.Sprintf("protected branch requires %d distinct approvers, have %d",
				RequiredQuorumProtectedBranch, CountUniqueApprovers(ctx))
		},
		ResolutionMessage: func(ctx Context) string {
			return "obtain an approval from a second reviewer"
		},
	}
}

func productionDeployAdminBusinessHours() Policy {
	return Policy{
		ID:          "production-deploy-admin-business-hours",
		Name:        "Production deploys: admin, business hours",
		Description: "Production deploys need ADMIN role, business hours, and at least one approval.",
		Priority:    PriorityCritical,
		Actions:     actionSet(contracts.OpDeploy),
		When: func(ctx Context) bool {
			return ctx.Resource.Bool(AttrProduction)
		},
		Evaluate: func(ctx Context) Decision {
			if !HasRole(ctx, contracts.RoleAdmin) || !ctx.Environment.IsBusinessHours {
				return Deny
			}
			if CountUniqueApprovers(ctx) == 0 {
				return RequireMoreApprovals
			}
			return Allow
		},
		DenyMessage: func(ctx Context) string {
			if !HasRole(ctx, contracts.RoleAdmin) {
				return fmt.Sprintf("production deploy requires role ADMIN; actor %s has role %s", ctx.Actor.ID, ctx.Actor.Role)
			}
			if !ctx.Environment.IsBusinessHours {
				return "production deploys are only permitted during business hours"
			}
			return "production deploy has no approvals"
		},
		ResolutionMessage: func(ctx Context) string {
			if !ctx.Environment.IsBusinessHours {
				return "retry during business hours or request an emergency exception"
			}
			return "obtain a deploy approval from an admin"
		},
	}
}

func memberRemovalAdmin() Policy {
	return Policy{
		ID:          "member-removal-admin",
		Name:        "Member removal requires admin",
		Description: "Removing a member is restricted to ADMIN and above.",
		Priority:    PriorityCritical,
		Actions:     actionSet(contracts.OpMemberRemove),
		Evaluate: func(ctx Context) Decision {
			if !HasRole(ctx, contracts.RoleAdmin) {
				return Deny
			}
			return Allow
		},
		DenyMessage: func(ctx Context) string {
			return fmt.Sprintf("member removal requires role ADMIN; actor %s has role %s", ctx.Actor.ID, ctx.Actor.Role)
		},
		ResolutionMessage: func(ctx Context) string {
			return "ask an admin to remove the member"
		},
	}
}

func largePatchReview() Policy {
	return Policy{
		ID:          "large-patch-review",
		Name:        "Large patches need review",
		Description: "Commits or pushes changing more than 500 lines need at least one approval.",
		Priority:    PriorityHigh,
		Actions:     actionSet(contracts.OpCommit, contracts.OpPush),
		When: func(ctx Context) bool {
			return ctx.Patch != nil && ctx.Patch.Total() > LargePatchThreshold
		},
		Evaluate: func(ctx Context) Decision {
			if CountUniqueApprovers(ctx) == 0 {
				return RequireMoreApprovals
			}
			return Allow
		},
		DenyMessage: func(ctx Context) string {
			return fmt.Sprintf("patch changes %d lines (threshold %d) and has no approvals",
				ctx.Patch.Total(), LargePatchThreshold)
		},
		ResolutionMessage: func(ctx Context) string {
			return "have the patch reviewed and approved before committing"
		},
	}
}

func noSelfApproval() Policy {
	return Policy{
		ID:          "no-self-approval",
		Name:        "No self-approval",
		Description: "A candidate cannot be executed on the strength of its author's own approval alone.",
		Priority:    PriorityHigh,
		Actions:     actionSet(contracts.OpCandidateExecute),
		Evaluate: func(ctx Context) Decision {
			if OnlySelfApproved(ctx) {
				return RequireMoreApprovals
			}
			return Allow
		},
		DenyMessage: func(ctx Context) string {
			return fmt.Sprintf("all approvals were authored by the requesting actor %s", ctx.Actor.ID)
		},
		ResolutionMessage: func(ctx Context) string {
			return "obtain an approval from someone other than the requesting actor"
		},
	}
}

func scopeList(scopes []contracts.Scope) string {
	if len(scopes) == 0 {
		return "(none)"
	}
	parts := make([]string, len(scopes))
	for i, s := range contracts.SortScopes(scopes) {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
