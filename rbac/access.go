package rbac

// Access is a read-only snapshot of capability flags for one role. Consumers
// derive a fresh value whenever the acting role changes instead of mutating
// fields in place.
type Access struct {
	Role                  Role `json:"role"`
	CanManageOrganization bool `json:"canManageOrganization"`
	CanInviteMembers      bool `json:"canInviteMembers"`
	CanRemoveMembers      bool `json:"canRemoveMembers"`
	CanCreateProject      bool `json:"canCreateProject"`
	CanEditProject        bool `json:"canEditProject"`
	CanDeleteProject      bool `json:"canDeleteProject"`
	CanManageMembers      bool `json:"canManageMembers"`
	CanCreateTask         bool `json:"canCreateTask"`
	CanEditTask           bool `json:"canEditTask"`
	CanDeleteTask         bool `json:"canDeleteTask"`
	CanAssignTask         bool `json:"canAssignTask"`
}

// DeriveAccess evaluates the permission table for the role. An absent role
// (the empty value) yields every flag false: authorization defaults to fully
// closed, never to fully open.
func DeriveAccess(role Role) Access {
	if role == "" {
		return Access{}
	}
	return Access{
		Role:                  role,
		CanManageOrganization: HasPermission(role, PermManageOrganization),
		CanInviteMembers:      HasPermission(role, PermInviteMembers),
		CanRemoveMembers:      HasPermission(role, PermRemoveMembers),
		CanCreateProject:      HasPermission(role, PermCreateProject),
		CanEditProject:        HasPermission(role, PermEditProject),
		CanDeleteProject:      HasPermission(role, PermDeleteProject),
		CanManageMembers:      HasPermission(role, PermManageMembers),
		CanCreateTask:         HasPermission(role, PermCreateTask),
		CanEditTask:           HasPermission(role, PermEditTask),
		CanDeleteTask:         HasPermission(role, PermDeleteTask),
		CanAssignTask:         HasPermission(role, PermAssignTask),
	}
}
