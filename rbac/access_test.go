package rbac

import "testing"

func TestDeriveAccessAbsentRoleIsFullyClosed(t *testing.T) {
	access := DeriveAccess("")
	if access != (Access{}) {
		t.Fatalf("expected every flag false for absent role, got %+v", access)
	}
}

func TestDeriveAccessAdmin(t *testing.T) {
	access := DeriveAccess(RoleAdmin)
	if access.Role != RoleAdmin {
		t.Fatalf("expected role to be carried, got %q", access.Role)
	}
	if !access.CanManageOrganization || !access.CanDeleteProject || !access.CanDeleteTask || !access.CanAssignTask {
		t.Fatalf("admin flags incomplete: %+v", access)
	}
}

func TestDeriveAccessManager(t *testing.T) {
	access := DeriveAccess(RoleManager)
	if access.CanManageOrganization {
		t.Fatal("manager must not manage the organization")
	}
	if access.CanDeleteProject {
		t.Fatal("manager must not delete projects")
	}
	if !access.CanCreateProject || !access.CanManageMembers || !access.CanDeleteTask {
		t.Fatalf("manager flags incomplete: %+v", access)
	}
}

func TestDeriveAccessViewer(t *testing.T) {
	access := DeriveAccess(RoleViewer)
	want := Access{Role: RoleViewer}
	if access != want {
		t.Fatalf("viewer should hold no capability flags, got %+v", access)
	}
}

func TestDeriveAccessUnknownRole(t *testing.T) {
	access := DeriveAccess("superuser")
	want := Access{Role: "superuser"}
	if access != want {
		t.Fatalf("unknown role must derive no capabilities, got %+v", access)
	}
}
