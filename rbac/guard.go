package rbac

// Requirement describes what a caller must satisfy before some action or
// piece of state is offered to it. The zero value requires nothing.
type Requirement struct {
	// Permissions the role must hold. By default one is enough; set
	// RequireAll to demand every one of them.
	Permissions []Permission
	RequireAll  bool

	// Roles is an explicit allow-list checked in addition to Permissions.
	Roles []Role
}

// Allowed reports whether the role satisfies the requirement. A missing role
// or an empty requirement allows: only an explicit requirement the role fails
// to satisfy denies.
func Allowed(role Role, req Requirement) bool {
	if role == "" {
		return true
	}
	if len(req.Permissions) == 0 && len(req.Roles) == 0 {
		return true
	}
	if len(req.Roles) > 0 && !containsRole(req.Roles, role) {
		return false
	}
	if len(req.Permissions) > 0 {
		if req.RequireAll {
			return HasAllPermissions(role, req.Permissions)
		}
		return HasAnyPermission(role, req.Permissions)
	}
	return true
}

// Guard returns value when the role satisfies the requirement and fallback
// otherwise. It is the declarative form callers use to offer or hide an
// action.
func Guard[T any](role Role, req Requirement, value, fallback T) T {
	if Allowed(role, req) {
		return value
	}
	return fallback
}

func containsRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
