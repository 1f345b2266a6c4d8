package rbac

import "testing"

func TestAllowedOpenGateDefaults(t *testing.T) {
	if !Allowed("", Requirement{Permissions: []Permission{PermDeleteTask}}) {
		t.Fatal("absent role must allow")
	}
	if !Allowed(RoleViewer, Requirement{}) {
		t.Fatal("absent requirement must allow")
	}
	if !Allowed("", Requirement{}) {
		t.Fatal("absent role and requirement must allow")
	}
}

func TestAllowedSinglePermission(t *testing.T) {
	req := Requirement{Permissions: []Permission{PermDeleteTask}}
	if Allowed(RoleViewer, req) {
		t.Fatal("viewer must not pass a delete_task gate")
	}
	if !Allowed(RoleManager, req) {
		t.Fatal("manager must pass a delete_task gate")
	}
}

func TestAllowedAnyVersusAll(t *testing.T) {
	perms := []Permission{PermCreateTask, PermDeleteTask}

	if !Allowed(RoleMember, Requirement{Permissions: perms}) {
		t.Fatal("member holds create_task, ANY gate must pass")
	}
	if Allowed(RoleMember, Requirement{Permissions: perms, RequireAll: true}) {
		t.Fatal("member lacks delete_task, ALL gate must deny")
	}
	if !Allowed(RoleAdmin, Requirement{Permissions: perms, RequireAll: true}) {
		t.Fatal("admin holds everything, ALL gate must pass")
	}
}

func TestAllowedRoleList(t *testing.T) {
	req := Requirement{Roles: []Role{RoleAdmin, RoleManager}}
	if Allowed(RoleMember, req) {
		t.Fatal("member is outside the allow-list")
	}
	if !Allowed(RoleManager, req) {
		t.Fatal("manager is inside the allow-list")
	}
}

func TestAllowedCombinedRolesAndPermissions(t *testing.T) {
	req := Requirement{
		Roles:       []Role{RoleManager, RoleMember},
		Permissions: []Permission{PermDeleteTask},
	}
	if Allowed(RoleAdmin, req) {
		t.Fatal("admin is outside the role list even with the permission")
	}
	if Allowed(RoleMember, req) {
		t.Fatal("member is listed but lacks the permission")
	}
	if !Allowed(RoleManager, req) {
		t.Fatal("manager satisfies both conditions")
	}
}

func TestGuardReturnsFallbackOnDeny(t *testing.T) {
	req := Requirement{Permissions: []Permission{PermManageOrganization}}

	got := Guard(RoleViewer, req, "settings", "hidden")
	if got != "hidden" {
		t.Fatalf("expected fallback, got %q", got)
	}
	got = Guard(RoleAdmin, req, "settings", "hidden")
	if got != "settings" {
		t.Fatalf("expected value, got %q", got)
	}
}
