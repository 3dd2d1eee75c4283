package contracts

// Role is an already-resolved actor role. Membership/RBAC resolution happens
// upstream; the core only compares ranks.
type Role string

const (
	RoleViewer    Role = "VIEWER"
	RoleDeveloper Role = "DEVELOPER"
	RoleAdmin     Role = "ADMIN"
	RoleOwner     Role = "OWNER"
)

// roleRank is the single source of truth for role ordering. Every policy
// compares through AtLeast; no policy carries its own hierarchy map.
var roleRank = map[Role]int{
	RoleViewer:    0,
	RoleDeveloper: 1,
	RoleAdmin:     2,
	RoleOwner:     3,
}

// AtLeast reports whether r ranks at or above required. Unknown roles rank
// below VIEWER, so a garbled role never satisfies a requirement.
func (r Role) AtLeast(required Role) bool {
	rr, ok := roleRank[r]
	if !ok {
		return false
	}
	return rr >= roleRank[required]
}

// Known reports whether r is one of the defined roles.
func (r Role) Known() bool {
	_, ok := roleRank[r]
	return ok
}
