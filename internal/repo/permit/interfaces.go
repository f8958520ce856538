package permit

import (
	"context"

	"github.com/researchops/workbench-authz/internal/models"
)

// PermissionStore persists identity→permission facts. Writes are durable
// before the call returns; provisioning immediately follows creation with
// group-assignment calls that would fail on stale reads.
type PermissionStore interface {
	// CreateIdentityPermissions creates every fact or none of them. If any
	// tuple already exists the call fails with KindPermissionAlreadyExists
	// and no partial writes are left behind.
	CreateIdentityPermissions(ctx context.Context, perms []models.IdentityPermission, actingUser models.AuthenticatedUser) ([]models.IdentityPermission, error)

	// DeleteIdentityPermissions removes facts; deleting a non-existent fact
	// is not an error.
	DeleteIdentityPermissions(ctx context.Context, perms []models.IdentityPermission, actingUser models.AuthenticatedUser) error

	// GetIdentityPermissionsByIdentity pages through every fact attached to
	// one identity. An empty pageToken starts the scan; callers loop while a
	// non-empty nextToken is returned.
	GetIdentityPermissionsByIdentity(ctx context.Context, identityType models.IdentityType, identityID string, limit int, pageToken string) (perms []models.IdentityPermission, nextToken string, err error)

	// GetIdentityPermissionsBySubject returns every fact targeting the
	// subject, used by the decision engine to gather candidates.
	GetIdentityPermissionsBySubject(ctx context.Context, subjectType models.SubjectType, subjectID string) ([]models.IdentityPermission, error)
}

// GroupStore tracks groups and their memberships. Groups have two states,
// absent and active; there is no disabled state.
type GroupStore interface {
	// CreateGroup fails with KindGroupAlreadyExists on a duplicate id.
	CreateGroup(ctx context.Context, groupID, description string, actingUser models.AuthenticatedUser) error

	// DeleteGroup fails with KindGroupNotFound if the group is absent.
	DeleteGroup(ctx context.Context, groupID string, actingUser models.AuthenticatedUser) error

	AddUserToGroup(ctx context.Context, groupID, userID string, actingUser models.AuthenticatedUser) error
	RemoveUserFromGroup(ctx context.Context, groupID, userID string, actingUser models.AuthenticatedUser) error

	// GetUserGroups resolves a caller's effective group set before
	// authorization.
	GetUserGroups(ctx context.Context, userID string) ([]string, error)
	GetGroupUsers(ctx context.Context, groupID string) ([]string, error)
}
