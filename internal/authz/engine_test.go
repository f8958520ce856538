package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchops/workbench-authz/internal/models"
	"github.com/researchops/workbench-authz/internal/repo/permit"
	"github.com/researchops/workbench-authz/pkg/cache"
	"github.com/researchops/workbench-authz/pkg/logger"
)

func newEngineWithStore(t *testing.T) (*Engine, *permit.ValkeyStore) {
	t.Helper()
	store := permit.NewValkeyStore(cache.NewNoopValkeyStore(nil))
	return NewEngine(store, logger.New("error")), store
}

func seed(t *testing.T, store *permit.ValkeyStore, perms ...models.IdentityPermission) {
	t.Helper()
	_, err := store.CreateIdentityPermissions(context.Background(), perms,
		models.AuthenticatedUser{ID: "seed"})
	require.NoError(t, err)
}

func allow(identityID string, subjectType models.SubjectType, subjectID string, action models.Action, conds ...models.Condition) models.IdentityPermission {
	return models.IdentityPermission{
		IdentityType: models.IdentityGroup,
		IdentityID:   identityID,
		SubjectType:  subjectType,
		SubjectID:    subjectID,
		Action:       action,
		Effect:       models.EffectAllow,
		Conditions:   conds,
	}
}

func TestEngine_DefaultDeny(t *testing.T) {
	engine, _ := newEngineWithStore(t)

	user := models.AuthenticatedUser{ID: "stranger"}
	err := engine.IsAuthorized(context.Background(), user, models.DynamicOperation{
		Action:      models.ActionRead,
		SubjectType: models.SubjectProject,
		SubjectID:   "proj-p",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestEngine_GroupGrantViaWildcard(t *testing.T) {
	engine, store := newEngineWithStore(t)
	seed(t, store, allow("proj-a#Researcher", models.SubjectEnvironment, models.WildcardSubjectID,
		models.ActionRead, models.ProjectScope("proj-a")))

	researcher := models.AuthenticatedUser{ID: "alice", Groups: []string{"proj-a#Researcher"}}

	// Same project: the wildcard fact's condition holds.
	err := engine.IsAuthorized(context.Background(), researcher, models.DynamicOperation{
		Action:      models.ActionRead,
		SubjectType: models.SubjectEnvironment,
		SubjectID:   "env-42",
		ProjectID:   "proj-a",
	})
	require.NoError(t, err)

	// Other project: wildcard matches the subject but the condition fails.
	err = engine.IsAuthorized(context.Background(), researcher, models.DynamicOperation{
		Action:      models.ActionRead,
		SubjectType: models.SubjectEnvironment,
		SubjectID:   "env-42",
		ProjectID:   "proj-b",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestEngine_ConditionRequiresContext(t *testing.T) {
	engine, store := newEngineWithStore(t)
	seed(t, store, allow("proj-a#Researcher", models.SubjectDataset, models.WildcardSubjectID,
		models.ActionCreate, models.ProjectScope("proj-a")))

	user := models.AuthenticatedUser{ID: "alice", Groups: []string{"proj-a#Researcher"}}

	// No project in the request context: the conditioned fact cannot apply.
	err := engine.IsAuthorized(context.Background(), user, models.DynamicOperation{
		Action:      models.ActionCreate,
		SubjectType: models.SubjectDataset,
		SubjectID:   models.WildcardSubjectID,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestEngine_UnconditionedFactApplies(t *testing.T) {
	engine, store := newEngineWithStore(t)
	seed(t, store, allow("proj-a#Researcher", models.SubjectEnvironmentType, models.WildcardSubjectID, models.ActionRead))

	user := models.AuthenticatedUser{ID: "alice", Groups: []string{"proj-a#Researcher"}}
	err := engine.IsAuthorized(context.Background(), user, models.DynamicOperation{
		Action:      models.ActionRead,
		SubjectType: models.SubjectEnvironmentType,
		SubjectID:   "et-basic",
	})
	require.NoError(t, err)
}

func TestEngine_ActionMustMatch(t *testing.T) {
	engine, store := newEngineWithStore(t)
	seed(t, store, allow("proj-a#Researcher", models.SubjectProject, "proj-a", models.ActionRead))

	user := models.AuthenticatedUser{ID: "alice", Groups: []string{"proj-a#Researcher"}}
	err := engine.IsAuthorized(context.Background(), user, models.DynamicOperation{
		Action:      models.ActionUpdate,
		SubjectType: models.SubjectProject,
		SubjectID:   "proj-a",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestEngine_DenyFactNeverGrants(t *testing.T) {
	engine, store := newEngineWithStore(t)

	denyFact := allow("proj-a#Researcher", models.SubjectProject, "proj-a", models.ActionRead)
	denyFact.Effect = models.EffectDeny
	seed(t, store, denyFact)

	user := models.AuthenticatedUser{ID: "alice", Groups: []string{"proj-a#Researcher"}}
	err := engine.IsAuthorized(context.Background(), user, models.DynamicOperation{
		Action:      models.ActionRead,
		SubjectType: models.SubjectProject,
		SubjectID:   "proj-a",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestEngine_UserAttachedFact(t *testing.T) {
	engine, store := newEngineWithStore(t)
	seed(t, store, models.IdentityPermission{
		IdentityType: models.IdentityUser,
		IdentityID:   "bob",
		SubjectType:  models.SubjectSSHKey,
		SubjectID:    "key-1",
		Action:       models.ActionDelete,
		Effect:       models.EffectAllow,
	})

	err := engine.IsAuthorized(context.Background(), models.AuthenticatedUser{ID: "bob"}, models.DynamicOperation{
		Action:      models.ActionDelete,
		SubjectType: models.SubjectSSHKey,
		SubjectID:   "key-1",
	})
	require.NoError(t, err)

	// Another user with the same groups (none) is denied.
	err = engine.IsAuthorized(context.Background(), models.AuthenticatedUser{ID: "mallory"}, models.DynamicOperation{
		Action:      models.ActionDelete,
		SubjectType: models.SubjectSSHKey,
		SubjectID:   "key-1",
	})
	require.Error(t, err)
}

func TestEngine_DynamicOperations_AllMustPass(t *testing.T) {
	engine, store := newEngineWithStore(t)
	seed(t, store, allow("proj-a#ProjectAdmin", models.SubjectProject, "proj-a", models.ActionRead))

	adminUser := models.AuthenticatedUser{ID: "carol", Groups: []string{"proj-a#ProjectAdmin"}}

	ops := []models.DynamicOperation{
		{Action: models.ActionRead, SubjectType: models.SubjectProject, SubjectID: "proj-a"},
		{Action: models.ActionUpdate, SubjectType: models.SubjectProject, SubjectID: "proj-a"},
	}
	err := engine.IsAuthorizedOnDynamicOperations(context.Background(), adminUser, ops)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessDenied)

	seed(t, store, allow("proj-a#ProjectAdmin", models.SubjectProject, "proj-a", models.ActionUpdate))
	require.NoError(t, engine.IsAuthorizedOnDynamicOperations(context.Background(), adminUser, ops))
}
