// Package policy implements the policy-as-code evaluation engine: policy
// records, the evaluation algorithm, quorum/scope/role helpers, the built-in
// rule set, and a CEL adapter for operator-defined policies.
package policy

import (
	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
)

// Decision is one of the engine's three terminal outcomes.
type Decision string

const (
	Allow                Decision = "ALLOW"
	Deny                 Decision = "DENY"
	RequireMoreApprovals Decision = "REQUIRE_MORE_APPROVALS"
)

// Priority orders policy evaluation: critical before high before normal.
// Priority never changes the outcome of a DENY (a denial at any priority is
// absolute); it only fixes evaluation and reporting order.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
)

var priorityOrder = []Priority{PriorityCritical, PriorityHigh, PriorityNormal}

// Actor is the requesting identity with its already-resolved role.
type Actor struct {
	ID   string         `json:"id"`
	Role contracts.Role `json:"role"`
}

// Resource is the opaque attribute bag describing what is being acted on.
// The calling workflow populates it (branch protection, production flags).
type Resource map[string]any

// Bool reads a boolean attribute, false when absent or mistyped.
func (r Resource) Bool(key string) bool {
	v, ok := r[key].(bool)
	return ok && v
}

// Common resource attribute keys.
const (
	AttrProtectedBranch = "isProtectedBranch"
	AttrProduction      = "isProduction"
)

// PatchStats summarizes the size of the change under review.
type PatchStats struct {
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`
}

// Total returns the combined churn of the patch.
func (p PatchStats) Total() int {
	return p.LinesAdded + p.LinesRemoved
}

// Environment carries caller-computed environmental facts.
type Environment struct {
	IsBusinessHours bool           `json:"is_business_hours"`
	Attributes      map[string]any `json:"attributes,omitempty"`
}

// Context is the immutable evaluation input. Evaluation never mutates it,
// which is what makes concurrent evaluation safe without locks.
type Context struct {
	Actor          Actor
	Action         contracts.OperationKind
	Resource       Resource
	Approvals      []contracts.SignedApproval
	RequiredScopes []contracts.Scope
	Patch          *PatchStats
	Environment    Environment
}

// Policy is the immutable policy record. The contract is this record, not
// any construction DSL: built-ins are struct literals, operator policies come
// from the CEL adapter, both evaluate identically.
type Policy struct {
	ID          string
	Name        string
	Description string
	Priority    Priority

	// Actions is the set of action kinds this policy applies to.
	Actions map[contracts.OperationKind]bool

	// When further narrows applicability. A nil When matches always.
	// Policies that do not match are inert: their absence is not a denial.
	When func(Context) bool

	// Evaluate produces the policy's decision. Must be pure with respect to
	// the given context.
	Evaluate func(Context) Decision

	// DenyMessage explains a DENY or REQUIRE_MORE_APPROVALS outcome.
	DenyMessage func(Context) string

	// ResolutionMessage tells the actor what to do next.
	ResolutionMessage func(Context) string
}

// AppliesTo reports whether the policy is registered for the action and its
// When predicate (if any) matches the context.
func (p *Policy) AppliesTo(ctx Context) bool {
	if !p.Actions[ctx.Action] {
		return false
	}
	if p.When != nil && !p.When(ctx) {
		return false
	}
	return true
}

func (p *Policy) denyMessage(ctx Context) string {
	if p.DenyMessage != nil {
		return p.DenyMessage(ctx)
	}
	return ""
}

func (p *Policy) resolutionMessage(ctx Context) string {
	if p.ResolutionMessage != nil {
		return p.ResolutionMessage(ctx)
	}
	return ""
}

// actionSet builds the Actions map from a list.
func actionSet(kinds ...contracts.OperationKind) map[contracts.OperationKind]bool {
	set := make(map[contracts.OperationKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}
