package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func foldEntry(id, approverID string, decision DecisionValue, createdAt time.Time, scopes ...Scope) SignedApproval {
	return SignedApproval{
		ApprovalID:     id,
		Approver:       Approver{Type: "human", ID: approverID},
		Decision:       decision,
		ScopesApproved: scopes,
		CreatedAt:      createdAt,
	}
}

func TestFoldLatestByApprover(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	history := []SignedApproval{
		foldEntry("a1", "alice", DecisionApproved, base, ScopeCommit),
		foldEntry("a2", "alice", DecisionRevoked, base.Add(time.Minute)),
		foldEntry("b1", "bob", DecisionApproved, base, ScopePush),
	}

	latest := FoldLatestByApprover(history)
	require.Len(t, latest, 2)
	assert.Equal(t, DecisionRevoked, latest["alice"].Decision)
	assert.Equal(t, DecisionApproved, latest["bob"].Decision)
}

func TestFoldLatestByApprover_OrderIndependent(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	forward := []SignedApproval{
		foldEntry("a1", "alice", DecisionApproved, base, ScopeCommit),
		foldEntry("a2", "alice", DecisionDenied, base.Add(time.Minute)),
	}
	reversed := []SignedApproval{forward[1], forward[0]}

	assert.Equal(t, FoldLatestByApprover(forward), FoldLatestByApprover(reversed))
	assert.Equal(t, DecisionDenied, FoldLatestByApprover(reversed)["alice"].Decision)
}

func TestFoldLatestByApprover_SameInstantTieBreak(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	a := foldEntry("appr-001", "alice", DecisionApproved, at, ScopeCommit)
	b := foldEntry("appr-002", "alice", DecisionRevoked, at)

	// Greater approval ID wins a timestamp tie, in either arrival order.
	assert.Equal(t, "appr-002", FoldLatestByApprover([]SignedApproval{a, b})["alice"].ApprovalID)
	assert.Equal(t, "appr-002", FoldLatestByApprover([]SignedApproval{b, a})["alice"].ApprovalID)
}

func TestEffectiveApprovals(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	now := base.Add(time.Hour)

	expiry := base.Add(time.Minute)
	expired := foldEntry("c1", "carol", DecisionApproved, base, ScopeDeploy)
	expired.ExpiresAt = &expiry

	history := []SignedApproval{
		foldEntry("a1", "alice", DecisionApproved, base, ScopeCommit),
		foldEntry("b1", "bob", DecisionApproved, base, ScopePush),
		foldEntry("b2", "bob", DecisionRevoked, base.Add(time.Minute)),
		foldEntry("d1", "dave", DecisionDenied, base),
		expired,
	}

	effective := EffectiveApprovals(history, now)
	require.Len(t, effective, 1)
	assert.Equal(t, "alice", effective[0].Approver.ID)
}

func TestEffectiveApprovals_SortedByApproverID(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	history := []SignedApproval{
		foldEntry("c1", "carol", DecisionApproved, base, ScopeCommit),
		foldEntry("a1", "alice", DecisionApproved, base, ScopeCommit),
		foldEntry("b1", "bob", DecisionApproved, base, ScopeCommit),
	}

	effective := EffectiveApprovals(history, base.Add(time.Minute))
	require.Len(t, effective, 3)
	assert.Equal(t, "alice", effective[0].Approver.ID)
	assert.Equal(t, "bob", effective[1].Approver.ID)
	assert.Equal(t, "carol", effective[2].Approver.ID)
}

func TestScopeUnion(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	union := ScopeUnion([]SignedApproval{
		foldEntry("a1", "alice", DecisionApproved, base, ScopeCommit, ScopePush),
		foldEntry("b1", "bob", DecisionApproved, base, ScopeMerge),
		foldEntry("c1", "carol", DecisionDenied, base), // denied grants nothing
	})

	assert.True(t, union[ScopeCommit])
	assert.True(t, union[ScopePush])
	assert.True(t, union[ScopeMerge])
	assert.False(t, union[ScopeDeploy])
}

func TestMissingScopes(t *testing.T) {
	granted := map[Scope]bool{ScopeCommit: true}
	assert.Equal(t, []Scope{ScopeDeploy, ScopePush}, MissingScopes([]Scope{ScopePush, ScopeCommit, ScopeDeploy}, granted))
	assert.Empty(t, MissingScopes([]Scope{ScopeCommit}, granted))
	assert.Empty(t, MissingScopes(nil, nil))
}

func TestSortScopes(t *testing.T) {
	in := []Scope{ScopePush, ScopeCommit, ScopeDeploy}
	out := SortScopes(in)
	assert.Equal(t, []Scope{ScopeCommit, ScopeDeploy, ScopePush}, out)
	// Input is untouched.
	assert.Equal(t, []Scope{ScopePush, ScopeCommit, ScopeDeploy}, in)
}

func TestApprovalExpired(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	a := foldEntry("a1", "alice", DecisionApproved, now.Add(-time.Hour), ScopeCommit)

	assert.False(t, a.Expired(now), "no expiry set")

	at := now.Add(-time.Minute)
	a.ExpiresAt = &at
	assert.True(t, a.Expired(now))

	exact := now
	a.ExpiresAt = &exact
	assert.False(t, a.Expired(now), "expiry instant itself is still valid")
}

func TestTargetID(t *testing.T) {
	assert.Equal(t, "cand-1", Target{CandidateID: "cand-1", RunID: "run-1"}.ID())
	assert.Equal(t, "run-1", Target{RunID: "run-1"}.ID())
	assert.Equal(t, "acme/repo", Target{Repo: "acme/repo"}.ID())
	assert.Equal(t, "", Target{}.ID())
}
