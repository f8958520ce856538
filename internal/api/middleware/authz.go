package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/researchops/workbench-authz/internal/authz"
	"github.com/researchops/workbench-authz/internal/monitoring"
	"github.com/researchops/workbench-authz/pkg/logger"
)

// AuthzMiddleware resolves the route's required operations and asks the
// decision engine whether the caller may perform all of them. Unregistered
// routes are denied outright; the table is the only thing that opens a
// route up.
func AuthzMiddleware(resolver *authz.Resolver, engine *authz.Engine, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if resolver.IsRouteIgnored(c.Request.Method, c.FullPath()) || isPublicEndpoint(c.FullPath()) {
			c.Next()
			return
		}

		user, ok := UserFromContext(c)
		if !ok {
			monitoring.RecordError("missing_identity", "authz_middleware")
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "Authentication required",
			})
			c.Abort()
			return
		}

		params := make(map[string]string, len(c.Params))
		for _, p := range c.Params {
			params[p.Key] = p.Value
		}

		ops, err := resolver.Resolve(c.Request.Method, c.FullPath(), params)
		if err != nil {
			if errors.Is(err, authz.ErrRouteNotRegistered) {
				monitoring.RecordError("unregistered_route", "authz_middleware")
				log.Warn("Denying unregistered route",
					"method", c.Request.Method, "path", c.FullPath())
			} else {
				monitoring.RecordError("route_resolution_failed", "authz_middleware")
				log.Error("Route resolution failed",
					"method", c.Request.Method, "path", c.FullPath(), "error", err)
			}
			c.JSON(http.StatusForbidden, gin.H{
				"status": "error",
				"error":  "Access denied",
			})
			c.Abort()
			return
		}

		if err := engine.IsAuthorizedOnDynamicOperations(c.Request.Context(), user, ops); err != nil {
			if errors.Is(err, authz.ErrAccessDenied) {
				c.JSON(http.StatusForbidden, gin.H{
					"status": "error",
					"error":  "Access denied",
				})
			} else {
				monitoring.RecordError("decision_failed", "authz_middleware")
				log.Error("Authorization check failed",
					"user_id", user.ID, "path", c.FullPath(), "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"status": "error",
					"error":  "Authorization check failed",
				})
			}
			c.Abort()
			return
		}

		c.Next()
	}
}
