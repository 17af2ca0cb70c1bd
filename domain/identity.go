package domain

// Role constants. A user may carry more than one role.
const (
	RoleRegularUser = "REGULAR_USER"
	RoleTechnician  = "TECHNICIAN"
	RoleAdmin       = "ADMIN"
)

// Identity is an immutable snapshot of the authenticated user, replaced
// wholesale on every successful login or refresh.
type Identity struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
}

// HasRole reports whether the identity carries the given role.
func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ValidRoles returns the set of valid roles.
func ValidRoles() []string {
	return []string{RoleRegularUser, RoleTechnician, RoleAdmin}
}

// IsValidRole checks whether the given string is a valid role.
func IsValidRole(r string) bool {
	for _, v := range ValidRoles() {
		if v == r {
			return true
		}
	}
	return false
}
