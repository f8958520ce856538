package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/researchops/workbench-authz/internal/api/handlers"
	"github.com/researchops/workbench-authz/internal/api/middleware"
	"github.com/researchops/workbench-authz/internal/authz"
	"github.com/researchops/workbench-authz/internal/config"
	"github.com/researchops/workbench-authz/internal/monitoring"
	"github.com/researchops/workbench-authz/internal/provision"
	"github.com/researchops/workbench-authz/internal/repo/permit"
	"github.com/researchops/workbench-authz/pkg/cache"
	"github.com/researchops/workbench-authz/pkg/logger"
)

// Server wires the permission store, decision engine, and provisioning
// service behind the HTTP boundary. Every request passes authentication and
// then the route-table authorization check before reaching a handler.
type Server struct {
	config     *config.Config
	logger     logger.Logger
	store      cache.ValkeyStore
	permits    *permit.ValkeyStore
	resolver   *authz.Resolver
	engine     *authz.Engine
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(cfg *config.Config, log logger.Logger, store cache.ValkeyStore) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	permits := permit.NewValkeyStore(store)

	server := &Server{
		config:   cfg,
		logger:   log,
		store:    store,
		permits:  permits,
		resolver: authz.NewResolver(),
		engine:   authz.NewEngine(permits, log),
		router:   gin.New(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(monitoring.HTTPMetricsMiddleware())

	groupResolver := middleware.NewGroupResolver(s.permits, s.store, s.config.Authz.GroupCacheTTL)
	if s.config.Auth.Enabled {
		s.router.Use(middleware.AuthMiddleware(s.config.Auth, groupResolver, s.resolver, s.logger))
	} else {
		s.router.Use(middleware.NoAuthMiddleware(groupResolver, s.logger))
		s.logger.Warn("Authentication is DISABLED by configuration; callers are resolved from the X-User-Id header")
	}

	s.router.Use(middleware.AuthzMiddleware(s.resolver, s.engine, s.logger))
}

func (s *Server) setupRoutes() {
	provisioner := provision.NewService(s.permits, s.permits, s.config.Authz.PurgePageSize, s.logger)

	healthHandler := handlers.NewHealthHandler(s.store, s.logger)
	authzHandler := handlers.NewAuthzHandler(provisioner, s.permits, s.permits, s.logger)

	// Operational endpoints, outside the protection table
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)
	monitoring.SetupPrometheusMetrics(s.router)

	// Authorization admin surface
	authzGroup := s.router.Group("/authz")
	{
		authzGroup.GET("/users/:userId/groups", authzHandler.GetUserGroups)
		authzGroup.GET("/identities/:identityType/:identityId/permissions", authzHandler.GetIdentityPermissions)
		authzGroup.PUT("/groups/:groupId/users/:userId", authzHandler.AddUserToGroup)
		authzGroup.DELETE("/groups/:groupId/users/:userId", authzHandler.RemoveUserFromGroup)
		authzGroup.POST("/projects/:projectId/permissions", authzHandler.CreateProjectPermissions)
		authzGroup.DELETE("/projects/:projectId/permissions", authzHandler.DeleteProjectPermissions)
		authzGroup.POST("/projects/:projectId/environments/:environmentId/permissions", authzHandler.CreateEnvironmentPermissions)
		authzGroup.DELETE("/projects/:projectId/environments/:environmentId/permissions", authzHandler.DeleteEnvironmentPermissions)
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Authorization service starting", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the underlying Gin engine so tests can mount it.
func (s *Server) Handler() http.Handler {
	return s.router
}
