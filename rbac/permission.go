// Package rbac maps coarse membership roles to the fine-grained capabilities
// the rest of the system checks before acting. The table is fixed at compile
// time; there are no per-user overrides and nothing here performs I/O.
package rbac

// Role is the coarse access classification carried by an organization
// membership. The empty value means "no role known".
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
	RoleViewer  Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleMember, RoleViewer:
		return true
	}
	return false
}

// Permission is a single allowed action on a resource class.
type Permission string

const (
	// Organization permissions.
	PermManageOrganization Permission = "manage_organization"
	PermInviteMembers      Permission = "invite_members"
	PermRemoveMembers      Permission = "remove_members"

	// Project permissions.
	PermCreateProject Permission = "create_project"
	PermEditProject   Permission = "edit_project"
	PermDeleteProject Permission = "delete_project"
	PermManageMembers Permission = "manage_members"

	// Task permissions.
	PermCreateTask Permission = "create_task"
	PermEditTask   Permission = "edit_task"
	PermDeleteTask Permission = "delete_task"
	PermAssignTask Permission = "assign_task"
	PermViewTask   Permission = "view_task"
)

// AllPermissions returns the full permission enumeration.
func AllPermissions() []Permission {
	return []Permission{
		PermManageOrganization,
		PermInviteMembers,
		PermRemoveMembers,
		PermCreateProject,
		PermEditProject,
		PermDeleteProject,
		PermManageMembers,
		PermCreateTask,
		PermEditTask,
		PermDeleteTask,
		PermAssignTask,
		PermViewTask,
	}
}

// rolePermissions is the single source of truth for authorization. Each
// role's set is declared in full rather than derived from the role above it.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermManageOrganization,
		PermInviteMembers,
		PermRemoveMembers,
		PermCreateProject,
		PermEditProject,
		PermDeleteProject,
		PermManageMembers,
		PermCreateTask,
		PermEditTask,
		PermDeleteTask,
		PermAssignTask,
		PermViewTask,
	},
	RoleManager: {
		PermCreateProject,
		PermEditProject,
		PermManageMembers,
		PermCreateTask,
		PermEditTask,
		PermDeleteTask,
		PermAssignTask,
		PermViewTask,
	},
	RoleMember: {
		PermCreateTask,
		PermEditTask,
		PermViewTask,
	},
	RoleViewer: {
		PermViewTask,
	},
}

// HasPermission reports whether the role's declared set contains the
// permission. Unknown roles and unknown permissions are simply not granted;
// the check never fails.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether at least one of the permissions is
// granted. An empty list grants nothing.
func HasAnyPermission(role Role, perms []Permission) bool {
	for _, p := range perms {
		if HasPermission(role, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every permission is granted. An empty
// list is vacuously satisfied.
func HasAllPermissions(role Role, perms []Permission) bool {
	for _, p := range perms {
		if !HasPermission(role, p) {
			return false
		}
	}
	return true
}
