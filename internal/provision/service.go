// Package provision keeps permission facts and groups consistent with
// resource lifecycle events: project create/delete, environment
// create/terminate, and root-admin bootstrap. All operations are safe to
// re-run; the known idempotency errors from the store are swallowed and
// logged, anything else aborts the enclosing lifecycle operation.
package provision

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/researchops/workbench-authz/internal/models"
	"github.com/researchops/workbench-authz/internal/monitoring"
	"github.com/researchops/workbench-authz/internal/repo/permit"
	"github.com/researchops/workbench-authz/pkg/logger"
)

// purgePageSize is the default page size for PurgeGroupPermissions when the
// configured value is zero.
const defaultPurgePageSize = 100

// Service provisions and tears down the permission facts that make the
// project boundary real. It is stateless; every call goes straight to the
// stores.
type Service struct {
	groups        permit.GroupStore
	permissions   permit.PermissionStore
	logger        logger.Logger
	purgePageSize int
}

// NewService creates a provisioning service over the given stores.
func NewService(groups permit.GroupStore, permissions permit.PermissionStore, purgePageSize int, log logger.Logger) *Service {
	if purgePageSize <= 0 {
		purgePageSize = defaultPurgePageSize
	}
	return &Service{
		groups:        groups,
		permissions:   permissions,
		logger:        log,
		purgePageSize: purgePageSize,
	}
}

// CreateProjectPermissions installs the two lifecycle groups and their
// deterministic permission fact sets for a new project. Groups are created
// before permissions so a partial failure never leaves facts pointing at a
// group that does not exist. Re-running after a partial failure completes
// the remainder.
func (s *Service) CreateProjectPermissions(ctx context.Context, projectID string, actingUser models.AuthenticatedUser) error {
	correlationID := uuid.New().String()
	s.logger.Info("Provisioning project permissions",
		"project_id", projectID, "correlation_id", correlationID)

	for _, groupID := range []string{ProjectAdminGroupID(projectID), ResearcherGroupID(projectID)} {
		if err := s.createGroupIdempotent(ctx, groupID, "Project lifecycle group for "+projectID, actingUser, correlationID); err != nil {
			monitoring.RecordProvisioningOperation("create_project", "error")
			return fmt.Errorf("failed to create group %s: %w", groupID, err)
		}
	}

	if err := s.createPermissionsIdempotent(ctx, projectPermissions(projectID), actingUser, correlationID); err != nil {
		monitoring.RecordProvisioningOperation("create_project", "error")
		return fmt.Errorf("failed to create project permissions: %w", err)
	}

	monitoring.RecordProvisioningOperation("create_project", "success")
	return nil
}

// DeleteProjectPermissions removes the project's permission fact sets and
// then its two groups. Permissions go first so no fact ever outlives its
// group. Both steps are idempotent; a repeat call on an already-deleted
// project is a no-op.
func (s *Service) DeleteProjectPermissions(ctx context.Context, projectID string, actingUser models.AuthenticatedUser) error {
	correlationID := uuid.New().String()
	s.logger.Info("Tearing down project permissions",
		"project_id", projectID, "correlation_id", correlationID)

	if err := s.permissions.DeleteIdentityPermissions(ctx, projectPermissions(projectID), actingUser); err != nil {
		monitoring.RecordProvisioningOperation("delete_project", "error")
		return fmt.Errorf("failed to delete project permissions: %w", err)
	}

	for _, groupID := range []string{ProjectAdminGroupID(projectID), ResearcherGroupID(projectID)} {
		// Per-environment facts were attached to the group outside the
		// deterministic project set; purge whatever remains before the
		// group itself goes away.
		if err := s.PurgeGroupPermissions(ctx, groupID, actingUser); err != nil {
			monitoring.RecordProvisioningOperation("delete_project", "error")
			return fmt.Errorf("failed to purge permissions for group %s: %w", groupID, err)
		}
		if err := s.deleteGroupIdempotent(ctx, groupID, actingUser, correlationID); err != nil {
			monitoring.RecordProvisioningOperation("delete_project", "error")
			return fmt.Errorf("failed to delete group %s: %w", groupID, err)
		}
	}

	monitoring.RecordProvisioningOperation("delete_project", "success")
	return nil
}

// CreateEnvironmentPermissions grants both project groups lifecycle control
// over a newly created environment and read access to its connection
// details, scoped to the owning project.
func (s *Service) CreateEnvironmentPermissions(ctx context.Context, projectID, environmentID string, actingUser models.AuthenticatedUser) error {
	correlationID := uuid.New().String()
	s.logger.Info("Provisioning environment permissions",
		"project_id", projectID, "environment_id", environmentID, "correlation_id", correlationID)

	for _, groupID := range []string{ProjectAdminGroupID(projectID), ResearcherGroupID(projectID)} {
		if err := s.createPermissionsIdempotent(ctx, environmentPermissions(projectID, environmentID, groupID), actingUser, correlationID); err != nil {
			monitoring.RecordProvisioningOperation("create_environment", "error")
			return fmt.Errorf("failed to create environment permissions for group %s: %w", groupID, err)
		}
	}

	monitoring.RecordProvisioningOperation("create_environment", "success")
	return nil
}

// DeleteEnvironmentPermissions removes the per-environment facts from both
// project groups after environment termination. Idempotent.
func (s *Service) DeleteEnvironmentPermissions(ctx context.Context, projectID, environmentID string, actingUser models.AuthenticatedUser) error {
	correlationID := uuid.New().String()
	s.logger.Info("Tearing down environment permissions",
		"project_id", projectID, "environment_id", environmentID, "correlation_id", correlationID)

	for _, groupID := range []string{ProjectAdminGroupID(projectID), ResearcherGroupID(projectID)} {
		if err := s.permissions.DeleteIdentityPermissions(ctx, environmentPermissions(projectID, environmentID, groupID), actingUser); err != nil {
			monitoring.RecordProvisioningOperation("delete_environment", "error")
			return fmt.Errorf("failed to delete environment permissions for group %s: %w", groupID, err)
		}
	}

	monitoring.RecordProvisioningOperation("delete_environment", "success")
	return nil
}

// SetupRootAdmin creates the deployment-wide administrators group, grants it
// every action on every subject type, and adds the root user to it. Safe to
// run on every deployment start.
func (s *Service) SetupRootAdmin(ctx context.Context, rootUserEmail string) error {
	correlationID := uuid.New().String()
	s.logger.Info("Bootstrapping root admin",
		"root_user", rootUserEmail, "correlation_id", correlationID)

	actingUser := models.AuthenticatedUser{ID: rootUserEmail}

	if err := s.createGroupIdempotent(ctx, RootAdminGroupID, "Deployment administrators", actingUser, correlationID); err != nil {
		monitoring.RecordProvisioningOperation("setup_root_admin", "error")
		return fmt.Errorf("failed to create %s group: %w", RootAdminGroupID, err)
	}

	if err := s.createPermissionsIdempotent(ctx, rootAdminPermissions(), actingUser, correlationID); err != nil {
		monitoring.RecordProvisioningOperation("setup_root_admin", "error")
		return fmt.Errorf("failed to create root admin permissions: %w", err)
	}

	if err := s.groups.AddUserToGroup(ctx, RootAdminGroupID, rootUserEmail, actingUser); err != nil {
		monitoring.RecordProvisioningOperation("setup_root_admin", "error")
		return fmt.Errorf("failed to add root user to %s: %w", RootAdminGroupID, err)
	}

	monitoring.RecordProvisioningOperation("setup_root_admin", "success")
	s.logger.Info("Root admin bootstrap complete", "correlation_id", correlationID)
	return nil
}

// PurgeGroupPermissions deletes every fact attached to a group, paging
// through the identity index. Best-effort under concurrent writes: facts
// added mid-scan may survive one purge pass.
func (s *Service) PurgeGroupPermissions(ctx context.Context, groupID string, actingUser models.AuthenticatedUser) error {
	pageToken := ""
	for {
		perms, nextToken, err := s.permissions.GetIdentityPermissionsByIdentity(ctx, models.IdentityGroup, groupID, s.purgePageSize, pageToken)
		if err != nil {
			monitoring.RecordProvisioningOperation("purge_group", "error")
			return fmt.Errorf("failed to list permissions for group %s: %w", groupID, err)
		}
		if len(perms) > 0 {
			if err := s.permissions.DeleteIdentityPermissions(ctx, perms, actingUser); err != nil {
				monitoring.RecordProvisioningOperation("purge_group", "error")
				return fmt.Errorf("failed to delete permissions for group %s: %w", groupID, err)
			}
			// The deletions shrank the set under the scan, so a held
			// cursor could skip surviving facts. Restart; the loop
			// terminates because each pass removes at least one fact.
			pageToken = ""
			continue
		}
		if nextToken == "" {
			break
		}
		pageToken = nextToken
	}

	monitoring.RecordProvisioningOperation("purge_group", "success")
	return nil
}

// createGroupIdempotent creates a group, treating an existing group as
// success.
func (s *Service) createGroupIdempotent(ctx context.Context, groupID, description string, actingUser models.AuthenticatedUser, correlationID string) error {
	err := s.groups.CreateGroup(ctx, groupID, description, actingUser)
	if err == nil {
		return nil
	}
	if permit.IsKind(err, permit.KindGroupAlreadyExists) {
		s.logger.Info("Group already exists, continuing",
			"group_id", groupID, "correlation_id", correlationID)
		return nil
	}
	return err
}

// deleteGroupIdempotent deletes a group, treating a missing group as
// success.
func (s *Service) deleteGroupIdempotent(ctx context.Context, groupID string, actingUser models.AuthenticatedUser, correlationID string) error {
	err := s.groups.DeleteGroup(ctx, groupID, actingUser)
	if err == nil {
		return nil
	}
	if permit.IsKind(err, permit.KindGroupNotFound) {
		s.logger.Info("Group already absent, continuing",
			"group_id", groupID, "correlation_id", correlationID)
		return nil
	}
	return err
}

// createPermissionsIdempotent creates facts one at a time, treating an
// existing tuple as success. The per-fact loop keeps the already-exists
// carve-out from masking a genuinely failed batch: with the all-or-nothing
// batch call a single duplicate would roll back the new facts too.
func (s *Service) createPermissionsIdempotent(ctx context.Context, perms []models.IdentityPermission, actingUser models.AuthenticatedUser, correlationID string) error {
	for _, perm := range perms {
		_, err := s.permissions.CreateIdentityPermissions(ctx, []models.IdentityPermission{perm}, actingUser)
		if err == nil {
			continue
		}
		if permit.IsKind(err, permit.KindPermissionAlreadyExists) {
			s.logger.Debug("Permission already exists, continuing",
				"tuple_key", perm.TupleKey(), "correlation_id", correlationID)
			continue
		}
		return err
	}
	return nil
}
