package contracts

import "sort"

// Scope is a named permission an approver explicitly grants.
type Scope string

const (
	ScopeCommit Scope = "commit"
	ScopePush   Scope = "push"
	ScopeOpenPR Scope = "open_pr"
	ScopeMerge  Scope = "merge"
	ScopeDeploy Scope = "deploy"
)

// SortScopes returns a lexicographically sorted copy. Scope sets are
// unordered; sorting makes canonicalization and comparison deterministic.
func SortScopes(scopes []Scope) []Scope {
	out := make([]Scope, len(scopes))
	copy(out, scopes)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ScopeUnion folds the scopes granted by all approved records into one set.
func ScopeUnion(approvals []SignedApproval) map[Scope]bool {
	union := make(map[Scope]bool)
	for i := range approvals {
		if approvals[i].Decision != DecisionApproved {
			continue
		}
		for _, s := range approvals[i].ScopesApproved {
			union[s] = true
		}
	}
	return union
}

// MissingScopes returns the required scopes not present in granted, sorted.
func MissingScopes(required []Scope, granted map[Scope]bool) []Scope {
	var missing []Scope
	for _, s := range required {
		if !granted[s] {
			missing = append(missing, s)
		}
	}
	return SortScopes(missing)
}
