package domain

// Role is a resolved authorization role. Token parsing happens upstream;
// this core only consumes role semantics.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleOperations Role = "OPERATIONS"
	RoleViewer     Role = "VIEWER"
)

// Caller identifies the user behind an operation or subscription.
type Caller struct {
	Username string
	Roles    []Role
}

// HasRole reports whether the caller holds the given role.
func (c Caller) HasRole(role Role) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the caller holds at least one of the given roles.
func (c Caller) HasAnyRole(roles ...Role) bool {
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

// IsAdmin is a shortcut for the stricter per-operation checks.
func (c Caller) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}
