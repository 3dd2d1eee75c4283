package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"

	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
)

// CELPolicyConfig describes an operator-defined policy expressed as a CEL
// expression. The expression evaluates over the standard attribute set and
// must yield either a bool (true = ALLOW, false = DENY) or one of the
// decision strings "ALLOW", "DENY", "REQUIRE_MORE_APPROVALS".
type CELPolicyConfig struct {
	ID          string
	Name        string
	Description string
	Priority    Priority
	Actions     []contracts.OperationKind
	Source      string

	// DenyMessage and Resolution are the human-readable strings surfaced
	// when the expression does not allow. Required: denials are never
	// generic.
	DenyMessage string
	Resolution  string
}

func newCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.VariableDecls(
			decls.NewVariable("action", types.StringType),
			decls.NewVariable("actor_id", types.StringType),
			decls.NewVariable("actor_role", types.StringType),
			decls.NewVariable("resource", types.NewMapType(types.StringType, types.DynType)),
			decls.NewVariable("environment", types.NewMapType(types.StringType, types.DynType)),
			decls.NewVariable("required_scopes", types.NewListType(types.StringType)),
			decls.NewVariable("unique_approvers", types.IntType),
			decls.NewVariable("has_all_scopes", types.BoolType),
			decls.NewVariable("only_self_approved", types.BoolType),
			decls.NewVariable("patch_total", types.IntType),
			decls.NewVariable("is_business_hours", types.BoolType),
		),
	)
}

// NewCELPolicy compiles the expression and wraps it as an immutable policy
// record. Compilation failure is a construction-time error; runtime
// evaluation errors fail closed to DENY.
func NewCELPolicy(cfg CELPolicyConfig) (Policy, error) {
	if cfg.ID == "" {
		return Policy{}, fmt.Errorf("policy: cel policy has empty id")
	}
	if cfg.DenyMessage == "" || cfg.Resolution == "" {
		return Policy{}, fmt.Errorf("policy: cel policy %s needs deny and resolution messages", cfg.ID)
	}

	env, err := newCELEnv()
	if err != nil {
		return Policy{}, fmt.Errorf("policy: cel env: %w", err)
	}
	ast, issues := env.Compile(cfg.Source)
	if issues != nil && issues.Err() != nil {
		return Policy{}, fmt.Errorf("policy: cel policy %s compile failed: %w", cfg.ID, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return Policy{}, fmt.Errorf("policy: cel policy %s program failed: %w", cfg.ID, err)
	}

	priority := cfg.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	return Policy{
		ID:          cfg.ID,
		Name:        cfg.Name,
		Description: cfg.Description,
		Priority:    priority,
		Actions:     actionSet(cfg.Actions...),
		Evaluate: func(ctx Context) Decision {
			out, _, err := prg.Eval(celInput(ctx))
			if err != nil {
				return Deny // fail closed
			}
			switch v := out.Value().(type) {
			case bool:
				if v {
					return Allow
				}
				return Deny
			case string:
				switch Decision(v) {
				case Allow, Deny, RequireMoreApprovals:
					return Decision(v)
				}
			}
			return Deny // unrecognized output fails closed
		},
		DenyMessage:       func(Context) string { return cfg.DenyMessage },
		ResolutionMessage: func(Context) string { return cfg.Resolution },
	}, nil
}

func celInput(ctx Context) map[string]any {
	scopes := make([]string, len(ctx.RequiredScopes))
	for i, s := range ctx.RequiredScopes {
		scopes[i] = string(s)
	}
	patchTotal := 0
	if ctx.Patch != nil {
		patchTotal = ctx.Patch.Total()
	}
	env := map[string]any{}
	for k, v := range ctx.Environment.Attributes {
		env[k] = v
	}
	resource := map[string]any(ctx.Resource)
	if resource == nil {
		resource = map[string]any{}
	}

	return map[string]any{
		"action":             string(ctx.Action),
		"actor_id":           ctx.Actor.ID,
		"actor_role":         string(ctx.Actor.Role),
		"resource":           resource,
		"environment":        env,
		"required_scopes":    scopes,
		"unique_approvers":   CountUniqueApprovers(ctx),
		"has_all_scopes":     HasAllScopes(ctx),
		"only_self_approved": OnlySelfApproved(ctx),
		"patch_total":        patchTotal,
		"is_business_hours":  ctx.Environment.IsBusinessHours,
	}
}
