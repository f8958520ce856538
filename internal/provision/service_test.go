package provision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchops/workbench-authz/internal/authz"
	"github.com/researchops/workbench-authz/internal/models"
	"github.com/researchops/workbench-authz/internal/repo/permit"
	"github.com/researchops/workbench-authz/pkg/cache"
	"github.com/researchops/workbench-authz/pkg/logger"
)

var actingAdmin = models.AuthenticatedUser{ID: "it-admin@example.com", Groups: []string{RootAdminGroupID}}

func newTestService(t *testing.T) (*Service, *permit.ValkeyStore) {
	t.Helper()
	store := permit.NewValkeyStore(cache.NewNoopValkeyStore(nil))
	return NewService(store, store, 10, logger.New("error")), store
}

func groupFactCount(t *testing.T, store *permit.ValkeyStore, groupID string) int {
	t.Helper()
	ctx := context.Background()

	count := 0
	token := ""
	for {
		perms, next, err := store.GetIdentityPermissionsByIdentity(ctx, models.IdentityGroup, groupID, 10, token)
		require.NoError(t, err)
		count += len(perms)
		if next == "" {
			return count
		}
		token = next
	}
}

func TestCreateProjectPermissions_Idempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateProjectPermissions(ctx, "proj-1", actingAdmin))
	adminCount := groupFactCount(t, store, ProjectAdminGroupID("proj-1"))
	researcherCount := groupFactCount(t, store, ResearcherGroupID("proj-1"))
	assert.Equal(t, len(projectAdminPermissions("proj-1")), adminCount)
	assert.Equal(t, len(researcherPermissions("proj-1")), researcherCount)

	// Second run swallows the already-exists errors and changes nothing.
	require.NoError(t, svc.CreateProjectPermissions(ctx, "proj-1", actingAdmin))
	assert.Equal(t, adminCount, groupFactCount(t, store, ProjectAdminGroupID("proj-1")))
	assert.Equal(t, researcherCount, groupFactCount(t, store, ResearcherGroupID("proj-1")))
}

func TestDeleteProjectPermissions_RoundTrip(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateProjectPermissions(ctx, "proj-1", actingAdmin))
	require.NoError(t, svc.CreateEnvironmentPermissions(ctx, "proj-1", "env-1", actingAdmin))
	require.NoError(t, svc.DeleteProjectPermissions(ctx, "proj-1", actingAdmin))

	assert.Zero(t, groupFactCount(t, store, ProjectAdminGroupID("proj-1")))
	assert.Zero(t, groupFactCount(t, store, ResearcherGroupID("proj-1")))

	// Both groups are gone: membership changes now fail with group-not-found.
	err := store.AddUserToGroup(ctx, ProjectAdminGroupID("proj-1"), "alice", actingAdmin)
	assert.True(t, permit.IsKind(err, permit.KindGroupNotFound))

	// Teardown of an already-deleted project is a no-op.
	require.NoError(t, svc.DeleteProjectPermissions(ctx, "proj-1", actingAdmin))
}

func TestSetupRootAdmin_GrantsEverythingViaGroup(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetupRootAdmin(ctx, "root@example.com"))
	require.NoError(t, svc.SetupRootAdmin(ctx, "root@example.com")) // re-runnable

	groups, err := store.GetUserGroups(ctx, "root@example.com")
	require.NoError(t, err)
	require.Contains(t, groups, RootAdminGroupID)

	engine := authz.NewEngine(store, logger.New("error"))
	root := models.AuthenticatedUser{ID: "root@example.com", Groups: groups}
	for _, action := range models.AllActions() {
		assert.NoError(t, engine.IsAuthorized(ctx, root, models.DynamicOperation{
			Action:      action,
			SubjectType: models.SubjectProject,
			SubjectID:   "proj-1",
		}))
	}

	// A plain researcher still cannot create projects.
	require.NoError(t, svc.CreateProjectPermissions(ctx, "proj-1", actingAdmin))
	researcher := models.AuthenticatedUser{ID: "bob", Groups: []string{ResearcherGroupID("proj-1")}}
	err = engine.IsAuthorized(ctx, researcher, models.DynamicOperation{
		Action:      models.ActionCreate,
		SubjectType: models.SubjectProject,
		SubjectID:   models.WildcardSubjectID,
	})
	assert.ErrorIs(t, err, authz.ErrAccessDenied)
}

func TestEnvironmentPermissions_ScopedToOwningProject(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateProjectPermissions(ctx, "proj-a", actingAdmin))
	require.NoError(t, svc.CreateProjectPermissions(ctx, "proj-b", actingAdmin))
	require.NoError(t, svc.CreateEnvironmentPermissions(ctx, "proj-a", "env-1", actingAdmin))

	engine := authz.NewEngine(store, logger.New("error"))
	readConn := func(user models.AuthenticatedUser, projectID string) error {
		return engine.IsAuthorized(ctx, user, models.DynamicOperation{
			Action:      models.ActionRead,
			SubjectType: models.SubjectEnvironmentConnection,
			SubjectID:   "env-1",
			ProjectID:   projectID,
		})
	}

	inA := models.AuthenticatedUser{ID: "alice", Groups: []string{ResearcherGroupID("proj-a")}}
	inB := models.AuthenticatedUser{ID: "bob", Groups: []string{ResearcherGroupID("proj-b")}}

	assert.NoError(t, readConn(inA, "proj-a"))
	assert.ErrorIs(t, readConn(inB, "proj-b"), authz.ErrAccessDenied)
	// Even the right group loses access outside its project scope.
	assert.ErrorIs(t, readConn(inA, "proj-b"), authz.ErrAccessDenied)
}

func TestDeleteEnvironmentPermissions(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateProjectPermissions(ctx, "proj-a", actingAdmin))
	require.NoError(t, svc.CreateEnvironmentPermissions(ctx, "proj-a", "env-1", actingAdmin))
	require.NoError(t, svc.DeleteEnvironmentPermissions(ctx, "proj-a", "env-1", actingAdmin))

	engine := authz.NewEngine(store, logger.New("error"))
	alice := models.AuthenticatedUser{ID: "alice", Groups: []string{ResearcherGroupID("proj-a")}}
	err := engine.IsAuthorized(ctx, alice, models.DynamicOperation{
		Action:      models.ActionRead,
		SubjectType: models.SubjectEnvironmentConnection,
		SubjectID:   "env-1",
		ProjectID:   "proj-a",
	})
	assert.ErrorIs(t, err, authz.ErrAccessDenied)

	// Project-level facts survive environment teardown.
	assert.Equal(t, len(researcherPermissions("proj-a")), groupFactCount(t, store, ResearcherGroupID("proj-a")))
}

func TestPurgeGroupPermissions_Paginates(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.CreateGroup(ctx, "bulk-group", "test", actingAdmin))
	for _, subject := range models.AllSubjectTypes() {
		for _, action := range models.AllActions() {
			_, err := store.CreateIdentityPermissions(ctx, []models.IdentityPermission{{
				IdentityType: models.IdentityGroup,
				IdentityID:   "bulk-group",
				SubjectType:  subject,
				SubjectID:    models.WildcardSubjectID,
				Action:       action,
				Effect:       models.EffectAllow,
			}}, actingAdmin)
			require.NoError(t, err)
		}
	}
	require.Greater(t, groupFactCount(t, store, "bulk-group"), 10)

	require.NoError(t, svc.PurgeGroupPermissions(ctx, "bulk-group", actingAdmin))
	assert.Zero(t, groupFactCount(t, store, "bulk-group"))
}
