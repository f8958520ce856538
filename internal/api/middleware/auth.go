package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/researchops/workbench-authz/internal/authz"
	"github.com/researchops/workbench-authz/internal/config"
	"github.com/researchops/workbench-authz/internal/models"
	"github.com/researchops/workbench-authz/internal/monitoring"
	"github.com/researchops/workbench-authz/internal/repo/permit"
	"github.com/researchops/workbench-authz/pkg/cache"
	"github.com/researchops/workbench-authz/pkg/logger"
)

// userContextKey is where the resolved caller lives on the gin context.
const userContextKey = "authenticated_user"

// userGroupsCachePrefix keys cached group sets, separate from the group
// store's own membership keys.
const userGroupsCachePrefix = "authz:cache:user-groups:"

// GroupResolver resolves a caller's group memberships, serving repeat
// lookups from a TTL-bounded cache entry so hot callers do not hit the
// group store on every request. A TTL of zero disables caching; membership
// changes then take effect immediately, otherwise within the TTL.
type GroupResolver struct {
	groups permit.GroupStore
	store  cache.ValkeyStore
	ttl    time.Duration
}

func NewGroupResolver(groups permit.GroupStore, store cache.ValkeyStore, ttlSeconds int) *GroupResolver {
	return &GroupResolver{
		groups: groups,
		store:  store,
		ttl:    time.Duration(ttlSeconds) * time.Second,
	}
}

// Resolve returns the user's group ids, from cache when a fresh entry
// exists.
func (r *GroupResolver) Resolve(ctx context.Context, userID string) ([]string, error) {
	if r.ttl <= 0 {
		return r.groups.GetUserGroups(ctx, userID)
	}

	key := userGroupsCachePrefix + userID
	if data, err := r.store.Get(ctx, key); err == nil {
		var groups []string
		if err := json.Unmarshal(data, &groups); err == nil {
			monitoring.RecordCacheOperation("user_groups", "hit")
			return groups, nil
		}
	}
	monitoring.RecordCacheOperation("user_groups", "miss")

	groups, err := r.groups.GetUserGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	// A failed cache write only costs the next request a live read.
	_ = r.store.Set(ctx, key, groups, r.ttl)
	return groups, nil
}

// AuthMiddleware validates the bearer token, resolves the caller's group
// memberships, and stores the resulting identity on the request context.
// Routes the resolver ignores pass through without a token.
func AuthMiddleware(authConfig config.AuthConfig, groups *GroupResolver, resolver *authz.Resolver, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if resolver.IsRouteIgnored(c.Request.Method, c.FullPath()) || isPublicEndpoint(c.FullPath()) {
			c.Next()
			return
		}

		token := extractToken(c)
		if token == "" {
			monitoring.RecordError("missing_token", "auth_middleware")
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "Authentication required",
			})
			c.Abort()
			return
		}

		userID, err := validateJWT(token, authConfig)
		if err != nil {
			monitoring.RecordError("invalid_token", "auth_middleware")
			log.Debug("Token validation failed", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "Invalid authentication token",
			})
			c.Abort()
			return
		}

		userGroups, err := groups.Resolve(c.Request.Context(), userID)
		if err != nil {
			monitoring.RecordError("group_lookup_failed", "auth_middleware")
			log.Error("Failed to resolve user groups", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"status": "error",
				"error":  "Failed to resolve caller identity",
			})
			c.Abort()
			return
		}

		c.Set(userContextKey, models.AuthenticatedUser{ID: userID, Groups: userGroups})
		c.Set("user_id", userID)

		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")

		c.Next()
	}
}

// NoAuthMiddleware resolves the caller from the X-User-Id header without
// verifying a token. Development deployments only.
func NoAuthMiddleware(groups *GroupResolver, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-Id")
		if userID == "" {
			userID = "anonymous"
		}

		userGroups, err := groups.Resolve(c.Request.Context(), userID)
		if err != nil {
			log.Error("Failed to resolve user groups", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"status": "error",
				"error":  "Failed to resolve caller identity",
			})
			c.Abort()
			return
		}

		c.Set(userContextKey, models.AuthenticatedUser{ID: userID, Groups: userGroups})
		c.Set("user_id", userID)
		c.Next()
	}
}

// UserFromContext returns the identity the auth middleware resolved.
func UserFromContext(c *gin.Context) (models.AuthenticatedUser, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return models.AuthenticatedUser{}, false
	}
	user, ok := v.(models.AuthenticatedUser)
	return user, ok
}

// extractToken pulls the bearer token from the Authorization header.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

// validateJWT verifies an HMAC-signed token and returns the subject claim.
func validateJWT(tokenString string, authConfig config.AuthConfig) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if authConfig.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(authConfig.JWTIssuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(authConfig.JWTSecret), nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("invalid JWT token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("missing user ID in token")
	}
	return userID, nil
}

// isPublicEndpoint covers operational endpoints that sit outside the route
// protection table.
func isPublicEndpoint(path string) bool {
	switch path {
	case "/health", "/ready", "/metrics":
		return true
	}
	return false
}
