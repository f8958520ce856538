package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchops/workbench-authz/internal/config"
	"github.com/researchops/workbench-authz/internal/provision"
	"github.com/researchops/workbench-authz/internal/repo/permit"
	"github.com/researchops/workbench-authz/pkg/cache"
	"github.com/researchops/workbench-authz/pkg/logger"
)

// newTestServer builds a server with auth disabled over an in-memory store
// and bootstraps the root admin so requests can be authorized at all.
func newTestServer(t *testing.T) (*Server, cache.ValkeyStore) {
	t.Helper()

	cfg := &config.Config{
		Environment: "test",
		Port:        0,
		LogLevel:    "error",
		Auth:        config.AuthConfig{Enabled: false, RootUserEmail: "root@example.com"},
		Authz:       config.AuthzConfig{PurgePageSize: 50},
	}

	store := cache.NewNoopValkeyStore(nil)
	srv := NewServer(cfg, logger.New("error"), store)

	permits := permit.NewValkeyStore(store)
	svc := provision.NewService(permits, permits, 50, logger.New("error"))
	require.NoError(t, svc.SetupRootAdmin(t.Context(), "root@example.com"))

	return srv, store
}

func do(srv *Server, method, path, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	assert.Equal(t, http.StatusOK, do(srv, "GET", "/health", "").Code)
	// The in-memory store reports unhealthy, so readiness fails.
	assert.Equal(t, http.StatusServiceUnavailable, do(srv, "GET", "/ready", "").Code)
}

func TestServer_ProjectLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	root := "root@example.com"

	assert.Equal(t, http.StatusCreated, do(srv, "POST", "/authz/projects/proj-1/permissions", root).Code)
	assert.Equal(t, http.StatusCreated, do(srv, "POST", "/authz/projects/proj-1/environments/env-1/permissions", root).Code)

	// Membership management and introspection
	assert.Equal(t, http.StatusOK, do(srv, "PUT", "/authz/groups/proj-1%23Researcher/users/alice", root).Code)

	w := do(srv, "GET", "/authz/users/alice/groups", root)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "proj-1#Researcher")

	w = do(srv, "GET", "/authz/identities/GROUP/proj-1%23Researcher/permissions", root)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ENVIRONMENT")

	// Teardown
	assert.Equal(t, http.StatusOK, do(srv, "DELETE", "/authz/projects/proj-1/environments/env-1/permissions", root).Code)
	assert.Equal(t, http.StatusOK, do(srv, "DELETE", "/authz/projects/proj-1/permissions", root).Code)
}

func TestServer_NonAdminDeniedOnAdminSurface(t *testing.T) {
	srv, _ := newTestServer(t)

	assert.Equal(t, http.StatusForbidden, do(srv, "POST", "/authz/projects/proj-1/permissions", "mallory").Code)
	assert.Equal(t, http.StatusForbidden, do(srv, "GET", "/authz/users/alice/groups", "mallory").Code)
}

func TestServer_BadIdentityTypeRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(srv, "GET", "/authz/identities/ROBOT/some-id/permissions", "root@example.com")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
