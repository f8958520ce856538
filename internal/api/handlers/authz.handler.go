package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/researchops/workbench-authz/internal/api/middleware"
	"github.com/researchops/workbench-authz/internal/models"
	"github.com/researchops/workbench-authz/internal/provision"
	"github.com/researchops/workbench-authz/internal/repo/permit"
	"github.com/researchops/workbench-authz/pkg/logger"
)

const defaultPageLimit = 50

// AuthzHandler exposes the provisioning lifecycle and permission
// introspection over HTTP. Lifecycle endpoints are called by the resource
// services on project and environment events; introspection serves admins.
type AuthzHandler struct {
	provisioner *provision.Service
	permissions permit.PermissionStore
	groups      permit.GroupStore
	logger      logger.Logger
}

func NewAuthzHandler(provisioner *provision.Service, permissions permit.PermissionStore, groups permit.GroupStore, l logger.Logger) *AuthzHandler {
	return &AuthzHandler{
		provisioner: provisioner,
		permissions: permissions,
		groups:      groups,
		logger:      l,
	}
}

// GET /authz/users/:userId/groups
func (h *AuthzHandler) GetUserGroups(c *gin.Context) {
	userID := c.Param("userId")

	groups, err := h.groups.GetUserGroups(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get user groups", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "Failed to get user groups"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{
		"userId": userID,
		"groups": groups,
		"total":  len(groups),
	}})
}

// GET /authz/identities/:identityType/:identityId/permissions?limit=&pageToken=
func (h *AuthzHandler) GetIdentityPermissions(c *gin.Context) {
	identityType := models.IdentityType(c.Param("identityType"))
	if identityType != models.IdentityUser && identityType != models.IdentityGroup {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "identityType must be USER or GROUP"})
		return
	}
	identityID := c.Param("identityId")

	limit := defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	perms, nextToken, err := h.permissions.GetIdentityPermissionsByIdentity(
		c.Request.Context(), identityType, identityID, limit, c.Query("pageToken"))
	if err != nil {
		h.logger.Error("Failed to list identity permissions",
			"identity_type", identityType, "identity_id", identityID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "Failed to list permissions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{
		"permissions":   perms,
		"total":         len(perms),
		"nextPageToken": nextToken,
	}})
}

// PUT /authz/groups/:groupId/users/:userId
func (h *AuthzHandler) AddUserToGroup(c *gin.Context) {
	groupID := c.Param("groupId")
	userID := c.Param("userId")
	actingUser, _ := middleware.UserFromContext(c)

	err := h.groups.AddUserToGroup(c.Request.Context(), groupID, userID, actingUser)
	if err != nil {
		if permit.IsKind(err, permit.KindGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "Group not found"})
			return
		}
		h.logger.Error("Failed to add user to group",
			"group_id", groupID, "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "Failed to add user to group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{
		"groupId": groupID,
		"userId":  userID,
	}})
}

// DELETE /authz/groups/:groupId/users/:userId
func (h *AuthzHandler) RemoveUserFromGroup(c *gin.Context) {
	groupID := c.Param("groupId")
	userID := c.Param("userId")
	actingUser, _ := middleware.UserFromContext(c)

	if err := h.groups.RemoveUserFromGroup(c.Request.Context(), groupID, userID, actingUser); err != nil {
		h.logger.Error("Failed to remove user from group",
			"group_id", groupID, "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "Failed to remove user from group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{
		"groupId": groupID,
		"userId":  userID,
	}})
}

// POST /authz/projects/:projectId/permissions
func (h *AuthzHandler) CreateProjectPermissions(c *gin.Context) {
	projectID := c.Param("projectId")
	actingUser, _ := middleware.UserFromContext(c)

	if err := h.provisioner.CreateProjectPermissions(c.Request.Context(), projectID, actingUser); err != nil {
		h.logger.Error("Project permission provisioning failed", "project_id", projectID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "Provisioning failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": gin.H{"projectId": projectID}})
}

// DELETE /authz/projects/:projectId/permissions
func (h *AuthzHandler) DeleteProjectPermissions(c *gin.Context) {
	projectID := c.Param("projectId")
	actingUser, _ := middleware.UserFromContext(c)

	if err := h.provisioner.DeleteProjectPermissions(c.Request.Context(), projectID, actingUser); err != nil {
		h.logger.Error("Project permission teardown failed", "project_id", projectID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "Teardown failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"projectId": projectID}})
}

// DELETE /authz/projects/:projectId/environments/:environmentId/permissions
func (h *AuthzHandler) DeleteEnvironmentPermissions(c *gin.Context) {
	projectID := c.Param("projectId")
	environmentID := c.Param("environmentId")
	actingUser, _ := middleware.UserFromContext(c)

	if err := h.provisioner.DeleteEnvironmentPermissions(c.Request.Context(), projectID, environmentID, actingUser); err != nil {
		h.logger.Error("Environment permission teardown failed",
			"project_id", projectID, "environment_id", environmentID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "Teardown failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{
		"projectId":     projectID,
		"environmentId": environmentID,
	}})
}

// POST /authz/projects/:projectId/environments/:environmentId/permissions
func (h *AuthzHandler) CreateEnvironmentPermissions(c *gin.Context) {
	projectID := c.Param("projectId")
	environmentID := c.Param("environmentId")
	actingUser, _ := middleware.UserFromContext(c)

	if err := h.provisioner.CreateEnvironmentPermissions(c.Request.Context(), projectID, environmentID, actingUser); err != nil {
		h.logger.Error("Environment permission provisioning failed",
			"project_id", projectID, "environment_id", environmentID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "Provisioning failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": gin.H{
		"projectId":     projectID,
		"environmentId": environmentID,
	}})
}
