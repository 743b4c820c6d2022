package account

import (
	"errors"
	"sort"
	"time"
)

// Role gates which dashboard and which mutations an identity may perform.
type Role string

// Role constants
const (
	RoleAdmin     Role = "admin"
	RoleVolunteer Role = "volunteer"
	RoleDonor     Role = "donor"
)

// NoRole is the zero Role: the user holds no role row.
const NoRole Role = ""

// ValidRoles contains all valid role values, most privileged first.
var ValidRoles = []Role{RoleAdmin, RoleVolunteer, RoleDonor}

// ErrInvalidRole is returned for a role outside the closed set.
var ErrInvalidRole = errors.New("role must be one of: admin, volunteer, donor")

// ErrRoleNotHeld is returned when selecting a role the user does not hold.
var ErrRoleNotHeld = errors.New("role is not assigned to this user")

// RoleAssignment is one row granting a role to a user.
type RoleAssignment struct {
	ID        string
	UserID    string
	Role      Role
	CreatedAt time.Time
}

// ParseRole converts a string into a Role.
// PRE: none
// POST: Returns the Role or ErrInvalidRole
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return NoRole, ErrInvalidRole
	}
	return r, nil
}

// Valid reports whether r is in the closed role set.
func (r Role) Valid() bool {
	for _, v := range ValidRoles {
		if v == r {
			return true
		}
	}
	return false
}

// rank orders roles by privilege; higher wins.
func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleVolunteer:
		return 2
	case RoleDonor:
		return 1
	}
	return 0
}

// HomePath is the dashboard route for the role.
func (r Role) HomePath() string {
	switch r {
	case RoleAdmin:
		return "/admin"
	case RoleVolunteer:
		return "/volunteer"
	case RoleDonor:
		return "/donor"
	}
	return "/"
}

// SortByPrivilege returns the roles ordered most-privileged first with duplicates
// and invalid values removed.
func SortByPrivilege(roles []Role) []Role {
	seen := make(map[Role]bool, len(roles))
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if !r.Valid() || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].rank() > out[j].rank() })
	return out
}

// PrimaryRole picks the navigation role for a user holding roles.
// An explicit selection wins when the user still holds it; otherwise the most
// privileged role wins. Returns NoRole when roles is empty.
func PrimaryRole(roles []Role, selected Role) Role {
	if selected != NoRole && HasRole(roles, selected) {
		return selected
	}
	sorted := SortByPrivilege(roles)
	if len(sorted) == 0 {
		return NoRole
	}
	return sorted[0]
}

// HasRole reports whether want appears in roles.
func HasRole(roles []Role, want Role) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

// RolesOf extracts the Role values from assignments.
func RolesOf(assignments []RoleAssignment) []Role {
	out := make([]Role, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, a.Role)
	}
	return out
}
