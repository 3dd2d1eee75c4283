package contracts

import (
	"sort"
	"time"
)

// FoldLatestByApprover reduces an approval history to the authoritative
// decision per unique approver: the record with the greatest CreatedAt wins,
// with ApprovalID as a deterministic tie-break so concurrent same-instant
// records fold identically regardless of arrival order. A later revoked
// record therefore cancels that approver's earlier approval.
//
// The input may be in any order; the fold is order-independent.
func FoldLatestByApprover(approvals []SignedApproval) map[string]SignedApproval {
	latest := make(map[string]SignedApproval)
	for i := range approvals {
		a := approvals[i]
		current, ok := latest[a.Approver.ID]
		if !ok || laterThan(a, current) {
			latest[a.Approver.ID] = a
		}
	}
	return latest
}

func laterThan(a, b SignedApproval) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ApprovalID > b.ApprovalID
}

// EffectiveApprovals returns the approvals that currently count toward
// quorum and scope coverage: per approver, the latest decision must be
// "approved" and not expired at now. Result is sorted by approver ID for
// deterministic downstream iteration.
func EffectiveApprovals(approvals []SignedApproval, now time.Time) []SignedApproval {
	latest := FoldLatestByApprover(approvals)

	out := make([]SignedApproval, 0, len(latest))
	for _, a := range latest {
		if a.Decision != DecisionApproved {
			continue
		}
		if a.Expired(now) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Approver.ID < out[j].Approver.ID })
	return out
}
