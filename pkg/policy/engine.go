package policy

import (
	"fmt"
	"strings"
	"sync"
)

// Requirement describes one policy's unmet demand when the overall decision
// is REQUIRE_MORE_APPROVALS.
type Requirement struct {
	PolicyID   string `json:"policy_id"`
	Message    string `json:"message"`
	Resolution string `json:"resolution"`
}

// Result is the engine's output for one evaluation.
type Result struct {
	Decision Decision `json:"decision"`

	// Matched lists the IDs of policies that applied, in evaluation order.
	Matched []string `json:"matched,omitempty"`

	// DeniedBy is the policy that produced a DENY, when Decision is DENY.
	DeniedBy string `json:"denied_by,omitempty"`

	// DenyMessage and Resolution are policy-specific, never generic. For
	// REQUIRE_MORE_APPROVALS they aggregate every unsatisfied policy.
	DenyMessage string `json:"deny_message,omitempty"`
	Resolution  string `json:"resolution,omitempty"`

	// Requirements carries the per-policy breakdown for
	// REQUIRE_MORE_APPROVALS outcomes.
	Requirements []Requirement `json:"requirements,omitempty"`
}

// Engine holds registered policies and evaluates contexts against them.
// Registration happens at construction time; evaluation is read-only and
// safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	policies []Policy
	byID     map[string]int
}

// NewEngine creates an empty engine. Use NewDefaultEngine for one preloaded
// with the built-in rule set.
func NewEngine() *Engine {
	return &Engine{byID: make(map[string]int)}
}

// NewDefaultEngine creates an engine preloaded with the built-in policies.
func NewDefaultEngine() *Engine {
	e := NewEngine()
	for _, p := range BuiltinPolicies() {
		// Built-ins are statically valid.
		if err := e.Register(p); err != nil {
			panic(fmt.Sprintf("policy: builtin registration failed: %v", err))
		}
	}
	return e
}

// Register adds a policy. Policies are immutable once registered; replacing
// one requires a new engine instance.
func (e *Engine) Register(p Policy) error {
	if p.ID == "" {
		return fmt.Errorf("policy: empty policy id")
	}
	if p.Evaluate == nil {
		return fmt.Errorf("policy: %s has no Evaluate", p.ID)
	}
	if len(p.Actions) == 0 {
		return fmt.Errorf("policy: %s applies to no actions", p.ID)
	}
	switch p.Priority {
	case PriorityCritical, PriorityHigh, PriorityNormal:
	default:
		return fmt.Errorf("policy: %s has invalid priority %q", p.ID, p.Priority)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.byID[p.ID]; exists {
		return fmt.Errorf("policy: %s already registered", p.ID)
	}
	e.byID[p.ID] = len(e.policies)
	e.policies = append(e.policies, p)
	return nil
}

// Policies returns the registered policy IDs in registration order.
func (e *Engine) Policies() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.policies))
	for i := range e.policies {
		out[i] = e.policies[i].ID
	}
	return out
}

// Evaluate runs the evaluation algorithm:
//
//  1. Select policies registered for ctx.Action whose When matches.
//  2. Partition by priority, critical first.
//  3. Any DENY is absolute and returns immediately; it cannot be outvoted.
//  4. Otherwise, any REQUIRE_MORE_APPROVALS yields that overall decision
//     with every unsatisfied policy's messages aggregated.
//  5. Otherwise ALLOW — including the vacuous case of zero matched policies.
func (e *Engine) Evaluate(ctx Context) Result {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := Result{Decision: Allow}
	var requirements []Requirement

	for _, prio := range priorityOrder {
		for i := range e.policies {
			p := &e.policies[i]
			if p.Priority != prio || !p.AppliesTo(ctx) {
				continue
			}
			result.Matched = append(result.Matched, p.ID)

			switch p.Evaluate(ctx) {
			case Deny:
				result.Decision = Deny
				result.DeniedBy = p.ID
				result.DenyMessage = p.denyMessage(ctx)
				result.Resolution = p.resolutionMessage(ctx)
				return result
			case RequireMoreApprovals:
				requirements = append(requirements, Requirement{
					PolicyID:   p.ID,
					Message:    p.denyMessage(ctx),
					Resolution: p.resolutionMessage(ctx),
				})
			case Allow:
				// No effect; an ALLOW never overrides anything.
			}
		}
	}

	if len(requirements) > 0 {
		result.Decision = RequireMoreApprovals
		result.Requirements = requirements
		result.DenyMessage = joinRequirementMessages(requirements, func(r Requirement) string { return r.Message })
		result.Resolution = joinRequirementMessages(requirements, func(r Requirement) string { return r.Resolution })
	}
	return result
}

func joinRequirementMessages(reqs []Requirement, pick func(Requirement) string) string {
	var parts []string
	for _, r := range reqs {
		if msg := pick(r); msg != "" {
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, "; ")
}
