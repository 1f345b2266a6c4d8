package api

import (
	"context"

	"trellis-api/domain"
	"trellis-api/rbac"
)

// Board is the per-project task store surface the handlers drive. Every
// mutation takes the acting role explicitly.
type Board interface {
	EnsureLoaded(ctx context.Context) error
	Load(ctx context.Context) ([]domain.Task, error)
	Tasks() []domain.Task
	Create(ctx context.Context, role rbac.Role, status domain.Status, fields domain.Fields) (domain.Task, error)
	Update(ctx context.Context, role rbac.Role, taskID string, fields domain.Fields) (domain.Task, error)
	Move(ctx context.Context, role rbac.Role, taskID string, status domain.Status) (domain.Task, error)
	Delete(ctx context.Context, role rbac.Role, taskID string) error
}

// Boards hands out the board store owning one project's state.
type Boards interface {
	Board(projectID string) Board
}

// Principal is the acting user as asserted by the identity boundary: a
// subject plus the role it holds in each organization.
type Principal struct {
	UserID   string
	OrgRoles map[string]rbac.Role
}

// RoleFor returns the principal's role in the organization, or the empty
// role when it holds none.
func (p Principal) RoleFor(orgID string) rbac.Role {
	return p.OrgRoles[orgID]
}

// Authenticator is implemented by types able to extract principals from
// Authorization headers.
type Authenticator interface {
	PrincipalFromAuthHeader(string) (Principal, error)
}

// Deduper prevents processing of duplicate mutation requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the mutation fails so
	// the client may retry.
	Remove(ctx context.Context, userID, key string) error
}
