package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
	"github.com/Patchlock-Labs/patchlock/core/pkg/crypto"
	"github.com/Patchlock-Labs/patchlock/core/pkg/policy"
)

var testPatch = []byte("--- a/main.go\n+++ b/main.go\n@@ -1 +1 @@\n-old\n+new\n")

func gateApproval(approverID string, scopes ...contracts.Scope) *contracts.SignedApproval {
	return &contracts.SignedApproval{
		ApprovalID:     "appr-" + approverID,
		TenantID:       "tenant-1",
		Approver:       contracts.Approver{Type: "human", ID: approverID},
		ApproverRole:   contracts.RoleAdmin,
		Decision:       contracts.DecisionApproved,
		ScopesApproved: scopes,
		TargetType:     contracts.TargetCandidate,
		Target:         contracts.Target{CandidateID: "cand-1"},
		IntentHash:     crypto.ComputeHash([]byte("intent")),
		PatchHash:      crypto.ComputeHash(testPatch),
		Source:         "test",
		CreatedAt:      time.Now().Add(-time.Hour),
	}
}

func commitRequest() contracts.OperationRequest {
	return contracts.OperationRequest{
		RequestID: "req-1",
		TenantID:  "tenant-1",
		ActorID:   "alice",
		Kind:      contracts.OpCommit,
	}
}

func policyCtxFor(req contracts.OperationRequest, approval *contracts.SignedApproval) policy.Context {
	var approvals []contracts.SignedApproval
	if approval != nil {
		approvals = []contracts.SignedApproval{*approval}
	}
	return policy.Context{
		Actor:          policy.Actor{ID: req.ActorID, Role: contracts.RoleDeveloper},
		Action:         req.Kind,
		Resource:       policy.Resource{},
		Approvals:      approvals,
		RequiredScopes: RequiredScopes(req.Kind),
		Environment:    policy.Environment{IsBusinessHours: true},
	}
}

func TestCheckApproval_Ordering(t *testing.T) {
	g := New(policy.NewDefaultEngine(), nil)
	req := commitRequest()

	t.Run("nil approval", func(t *testing.T) {
		result := g.CheckApproval(req, nil, testPatch)
		assert.False(t, result.Approved)
		assert.Equal(t, contracts.DenialNoApproval, result.Reason)
	})

	t.Run("revoked decision", func(t *testing.T) {
		a := gateApproval("bob", contracts.ScopeCommit)
		a.Decision = contracts.DecisionRevoked
		a.ScopesApproved = nil
		result := g.CheckApproval(req, a, testPatch)
		assert.Equal(t, contracts.DenialRevoked, result.Reason)
	})

	t.Run("denied decision is no approval", func(t *testing.T) {
		a := gateApproval("bob", contracts.ScopeCommit)
		a.Decision = contracts.DecisionDenied
		a.ScopesApproved = nil
		result := g.CheckApproval(req, a, testPatch)
		assert.Equal(t, contracts.DenialNoApproval, result.Reason)
	})

	t.Run("expired approval", func(t *testing.T) {
		a := gateApproval("bob", contracts.ScopeCommit)
		past := time.Now().Add(-time.Minute)
		a.ExpiresAt = &past
		result := g.CheckApproval(req, a, testPatch)
		assert.Equal(t, contracts.DenialExpired, result.Reason)
	})

	t.Run("patch mismatch beats scope coverage", func(t *testing.T) {
		// Scopes are fully covered; only the content differs.
		a := gateApproval("bob", contracts.ScopeCommit)
		result := g.CheckApproval(req, a, []byte("entirely different patch"))
		assert.Equal(t, contracts.DenialPatchHashMismatch, result.Reason)
	})

	t.Run("one-sided hash presence mismatches", func(t *testing.T) {
		a := gateApproval("bob", contracts.ScopeCommit)
		result := g.CheckApproval(req, a, nil)
		assert.Equal(t, contracts.DenialPatchHashMismatch, result.Reason)

		b := gateApproval("bob", contracts.ScopeCommit)
		b.PatchHash = ""
		result = g.CheckApproval(req, b, testPatch)
		assert.Equal(t, contracts.DenialPatchHashMismatch, result.Reason)
	})

	t.Run("unbound approval with no patch skips binding", func(t *testing.T) {
		a := gateApproval("bob", contracts.ScopeCommit)
		a.PatchHash = ""
		result := g.CheckApproval(req, a, nil)
		assert.True(t, result.Approved)
	})

	t.Run("missing scope", func(t *testing.T) {
		pushReq := commitRequest()
		pushReq.Kind = contracts.OpPush
		a := gateApproval("bob", contracts.ScopeCommit) // push needs commit+push
		result := g.CheckApproval(pushReq, a, testPatch)
		assert.Equal(t, contracts.DenialScopeMismatch, result.Reason)
		assert.Contains(t, result.Detail, "push")
	})

	t.Run("fully satisfying approval passes", func(t *testing.T) {
		a := gateApproval("bob", contracts.ScopeCommit)
		result := g.CheckApproval(req, a, testPatch)
		assert.True(t, result.Approved)
		assert.Equal(t, contracts.DenialNone, result.Reason)
	})
}

func TestExecuteIfApproved_RunsActionOnce(t *testing.T) {
	g := New(policy.NewDefaultEngine(), nil)
	req := commitRequest()
	a := gateApproval("bob", contracts.ScopeCommit)

	calls := 0
	result := g.ExecuteIfApproved(context.Background(), req, a, testPatch, policyCtxFor(req, a), func(context.Context) (any, error) {
		calls++
		return "committed", nil
	})

	assert.True(t, result.Allowed)
	assert.True(t, result.Executed)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "committed", result.Output)
	assert.Empty(t, result.Err)
	assert.False(t, result.DecidedAt.IsZero())
}

func TestExecuteIfApproved_ActionErrorStillExecuted(t *testing.T) {
	g := New(policy.NewDefaultEngine(), nil)
	req := commitRequest()
	a := gateApproval("bob", contracts.ScopeCommit)

	result := g.ExecuteIfApproved(context.Background(), req, a, testPatch, policyCtxFor(req, a), func(context.Context) (any, error) {
		return nil, errors.New("git exploded")
	})

	assert.True(t, result.Allowed)
	assert.True(t, result.Executed)
	assert.Equal(t, "git exploded", result.Err)
}

func TestExecuteIfApproved_DenialNeverRunsAction(t *testing.T) {
	g := New(policy.NewDefaultEngine(), nil)
	req := commitRequest()

	cases := map[string]struct {
		approval *contracts.SignedApproval
		patch    []byte
		reason   contracts.DenialCode
	}{
		"no approval": {nil, testPatch, contracts.DenialNoApproval},
		"tampered patch": {
			gateApproval("bob", contracts.ScopeCommit),
			[]byte("malicious patch"),
			contracts.DenialPatchHashMismatch,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			called := false
			result := g.ExecuteIfApproved(context.Background(), req, tc.approval, tc.patch, policyCtxFor(req, tc.approval), func(context.Context) (any, error) {
				called = true
				return nil, nil
			})
			assert.False(t, result.Allowed)
			assert.False(t, result.Executed)
			assert.False(t, called, "denied operation must never invoke the action")
			assert.Equal(t, tc.reason, result.Reason)
			assert.NotEmpty(t, result.Resolution)
		})
	}
}

func TestExecuteIfApproved_PolicyDenyPropagates(t *testing.T) {
	g := New(policy.NewDefaultEngine(), nil)
	req := contracts.OperationRequest{
		RequestID: "req-1",
		TenantID:  "tenant-1",
		ActorID:   "alice",
		Kind:      contracts.OpDeploy,
	}
	a := gateApproval("bob", contracts.ScopeDeploy)

	policyCtx := policyCtxFor(req, a)
	policyCtx.Actor.Role = contracts.RoleDeveloper
	policyCtx.Resource = policy.Resource{policy.AttrProduction: true}

	called := false
	result := g.ExecuteIfApproved(context.Background(), req, a, testPatch, policyCtx, func(context.Context) (any, error) {
		called = true
		return nil, nil
	})

	assert.False(t, result.Allowed)
	assert.False(t, called)
	assert.Equal(t, contracts.DenialPolicyDenied, result.Reason)
	assert.Contains(t, result.Detail, "ADMIN")
	assert.NotEmpty(t, result.Resolution)
}

func TestExecuteIfApproved_QuorumShortfallPropagates(t *testing.T) {
	g := New(policy.NewDefaultEngine(), nil)
	req := contracts.OperationRequest{
		RequestID: "req-1",
		TenantID:  "tenant-1",
		ActorID:   "alice",
		Kind:      contracts.OpMerge,
	}
	a := gateApproval("bob", contracts.ScopeMerge)

	policyCtx := policyCtxFor(req, a)
	policyCtx.Resource = policy.Resource{policy.AttrProtectedBranch: true}

	result := g.ExecuteIfApproved(context.Background(), req, a, testPatch, policyCtx, func(context.Context) (any, error) {
		return nil, nil
	})

	assert.False(t, result.Allowed)
	assert.Equal(t, contracts.DenialInsufficientQuorum, result.Reason)
	assert.Contains(t, result.Detail, "2 distinct approvers")
}

func TestModeCapabilities(t *testing.T) {
	assert.True(t, AllowedWithoutApproval(contracts.ModeCommentOnly, contracts.OpComment))
	assert.False(t, AllowedWithoutApproval(contracts.ModeCommentOnly, contracts.OpCreatePatch))

	assert.True(t, AllowedWithoutApproval(contracts.ModePatchOnly, contracts.OpCreatePatch))
	assert.False(t, AllowedWithoutApproval(contracts.ModePatchOnly, contracts.OpCommit))

	// Gated kinds are never approval-free in any mode.
	for mode := range ModeCapabilities {
		for kind := range OperationScopeMap {
			assert.False(t, AllowedWithoutApproval(mode, kind), "%s must stay gated under %s", kind, mode)
		}
	}
}

func TestRequiredScopes(t *testing.T) {
	assert.Equal(t, []contracts.Scope{contracts.ScopeCommit}, RequiredScopes(contracts.OpCommit))
	assert.Equal(t, []contracts.Scope{contracts.ScopeCommit, contracts.ScopePush}, RequiredScopes(contracts.OpPush))
	assert.Nil(t, RequiredScopes(contracts.OpComment))
}

func TestGate_WithClock(t *testing.T) {
	frozen := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	g := New(policy.NewDefaultEngine(), nil).WithClock(func() time.Time { return frozen })
	req := commitRequest()
	a := gateApproval("bob", contracts.ScopeCommit)

	result := g.ExecuteIfApproved(context.Background(), req, a, testPatch, policyCtxFor(req, a), func(context.Context) (any, error) {
		return nil, nil
	})
	require.True(t, result.Allowed)
	assert.Equal(t, frozen, result.DecidedAt)
}
