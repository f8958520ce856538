package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchops/workbench-authz/internal/models"
)

func TestResolve_ProjectRead(t *testing.T) {
	r := NewResolver()

	ops, err := r.Resolve("GET", "/projects/:projectId", map[string]string{"projectId": "proj-123"})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, models.DynamicOperation{
		Action:      models.ActionRead,
		SubjectType: models.SubjectProject,
		SubjectID:   "proj-123",
	}, ops[0])

	// Resolution is deterministic.
	again, err := r.Resolve("GET", "/projects/:projectId", map[string]string{"projectId": "proj-123"})
	require.NoError(t, err)
	assert.Equal(t, ops, again)
}

func TestResolve_WildcardIsNotSubstituted(t *testing.T) {
	r := NewResolver()

	ops, err := r.Resolve("POST", "/projects/:projectId/environments", map[string]string{"projectId": "proj-a"})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, models.WildcardSubjectID, ops[0].SubjectID)
	assert.Equal(t, "proj-a", ops[0].ProjectID)
}

func TestResolve_EnvironmentConnection(t *testing.T) {
	r := NewResolver()

	ops, err := r.Resolve("GET", "/projects/:projectId/environments/:environmentId/connections",
		map[string]string{"projectId": "proj-a", "environmentId": "env-1"})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, models.SubjectEnvironmentConnection, ops[0].SubjectType)
	assert.Equal(t, "env-1", ops[0].SubjectID)
	assert.Equal(t, "proj-a", ops[0].ProjectID)
}

func TestResolve_UnregisteredRouteFailsClosed(t *testing.T) {
	r := NewResolver()

	_, err := r.Resolve("GET", "/not/a/route", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRouteNotRegistered)

	// Same path, wrong method is also unregistered.
	_, err = r.Resolve("DELETE", "/projects", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRouteNotRegistered)
}

func TestResolve_MissingPathParameter(t *testing.T) {
	r := NewResolver()

	_, err := r.Resolve("GET", "/projects/:projectId", map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved placeholder")
}

func TestIsRouteIgnored(t *testing.T) {
	r := NewResolver()

	assert.True(t, r.IsRouteIgnored("POST", "/login"))
	assert.True(t, r.IsRouteIgnored("POST", "/token"))
	assert.True(t, r.IsRouteIgnored("POST", "/refresh"))
	assert.False(t, r.IsRouteIgnored("GET", "/projects"))
	assert.False(t, r.IsRouteIgnored("DELETE", "/login"))
}

func TestNewResolverWithTables_CopiesInput(t *testing.T) {
	protected := map[RouteKey]RouteProtection{
		{Method: "GET", Path: "/things"}: protect(op(models.ActionRead, models.SubjectDataset, "*")),
	}
	r := NewResolverWithTables(protected, nil)

	// Mutating the caller's map after construction must not reach the
	// resolver.
	delete(protected, RouteKey{Method: "GET", Path: "/things"})

	_, err := r.Resolve("GET", "/things", nil)
	require.NoError(t, err)
}

func TestDefaultTableSubjectTypesAreValid(t *testing.T) {
	for key, protection := range defaultProtectedRoutes() {
		for _, tmpl := range protection.Operations {
			assert.True(t, tmpl.SubjectType.Valid(), "route %s %s", key.Method, key.Path)
			assert.True(t, tmpl.Action.Valid(), "route %s %s", key.Method, key.Path)
		}
	}
}
