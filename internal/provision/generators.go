package provision

import (
	"github.com/researchops/workbench-authz/internal/models"
)

// Group naming: every project owns exactly two groups, and bootstrap owns a
// single administrators group shared across the deployment.
const (
	projectAdminSuffix = "#ProjectAdmin"
	researcherSuffix   = "#Researcher"

	// RootAdminGroupID is the deployment-wide administrators group created
	// by SetupRootAdmin.
	RootAdminGroupID = "ITAdmin"
)

// ProjectAdminGroupID returns the admin group id for a project.
func ProjectAdminGroupID(projectID string) string {
	return projectID + projectAdminSuffix
}

// ResearcherGroupID returns the researcher group id for a project.
func ResearcherGroupID(projectID string) string {
	return projectID + researcherSuffix
}

// groupAllow builds one ALLOW fact attached to a group identity.
func groupAllow(groupID string, subjectType models.SubjectType, subjectID string, action models.Action, conditions ...models.Condition) models.IdentityPermission {
	return models.IdentityPermission{
		IdentityType: models.IdentityGroup,
		IdentityID:   groupID,
		SubjectType:  subjectType,
		SubjectID:    subjectID,
		Action:       action,
		Effect:       models.EffectAllow,
		Conditions:   conditions,
	}
}

// projectAdminPermissions is the deterministic fact set for a project's
// admin group. Subjects that span projects carry a projectId condition on
// the wildcard subject; the PROJECT subject itself is granted on the
// concrete project id. PROJECT_LIST, ENVIRONMENT_TYPE, and USER reads are
// unconditioned so membership in any one project is enough to browse the
// global catalogs.
func projectAdminPermissions(projectID string) []models.IdentityPermission {
	group := ProjectAdminGroupID(projectID)
	scope := models.ProjectScope(projectID)

	return []models.IdentityPermission{
		groupAllow(group, models.SubjectDataset, models.WildcardSubjectID, models.ActionCreate, scope),
		groupAllow(group, models.SubjectDatasetList, models.WildcardSubjectID, models.ActionRead, scope),
		groupAllow(group, models.SubjectEnvironment, models.WildcardSubjectID, models.ActionCreate, scope),
		groupAllow(group, models.SubjectEnvironment, models.WildcardSubjectID, models.ActionRead, scope),
		groupAllow(group, models.SubjectEnvironmentType, models.WildcardSubjectID, models.ActionRead),
		groupAllow(group, models.SubjectETC, models.WildcardSubjectID, models.ActionRead, scope),
		groupAllow(group, models.SubjectProjectList, models.WildcardSubjectID, models.ActionRead),
		groupAllow(group, models.SubjectProject, projectID, models.ActionRead),
		groupAllow(group, models.SubjectProject, projectID, models.ActionUpdate),
		groupAllow(group, models.SubjectProject, projectID, models.ActionDelete),
		groupAllow(group, models.SubjectProjectUserAssociation, models.WildcardSubjectID, models.ActionCreate, scope),
		groupAllow(group, models.SubjectProjectUserAssociation, models.WildcardSubjectID, models.ActionRead, scope),
		groupAllow(group, models.SubjectProjectUserAssociation, models.WildcardSubjectID, models.ActionDelete, scope),
		groupAllow(group, models.SubjectSSHKey, models.WildcardSubjectID, models.ActionCreate, scope),
		groupAllow(group, models.SubjectSSHKey, models.WildcardSubjectID, models.ActionRead, scope),
		groupAllow(group, models.SubjectSSHKey, models.WildcardSubjectID, models.ActionDelete, scope),
		groupAllow(group, models.SubjectUser, models.WildcardSubjectID, models.ActionRead),
	}
}

// researcherPermissions is the deterministic fact set for a project's
// researcher group: the admin set minus project mutation, dataset creation,
// and user-association management.
func researcherPermissions(projectID string) []models.IdentityPermission {
	group := ResearcherGroupID(projectID)
	scope := models.ProjectScope(projectID)

	return []models.IdentityPermission{
		groupAllow(group, models.SubjectDatasetList, models.WildcardSubjectID, models.ActionRead, scope),
		groupAllow(group, models.SubjectEnvironment, models.WildcardSubjectID, models.ActionCreate, scope),
		groupAllow(group, models.SubjectEnvironment, models.WildcardSubjectID, models.ActionRead, scope),
		groupAllow(group, models.SubjectEnvironmentType, models.WildcardSubjectID, models.ActionRead),
		groupAllow(group, models.SubjectETC, models.WildcardSubjectID, models.ActionRead, scope),
		groupAllow(group, models.SubjectProjectList, models.WildcardSubjectID, models.ActionRead),
		groupAllow(group, models.SubjectProject, projectID, models.ActionRead),
		groupAllow(group, models.SubjectSSHKey, models.WildcardSubjectID, models.ActionCreate, scope),
		groupAllow(group, models.SubjectSSHKey, models.WildcardSubjectID, models.ActionRead, scope),
		groupAllow(group, models.SubjectSSHKey, models.WildcardSubjectID, models.ActionDelete, scope),
	}
}

// projectPermissions is the complete per-project fact set across both
// lifecycle groups. Create and delete use the same builder so teardown
// removes exactly what creation installed.
func projectPermissions(projectID string) []models.IdentityPermission {
	perms := projectAdminPermissions(projectID)
	return append(perms, researcherPermissions(projectID)...)
}

// environmentPermissions is the per-environment fact set for one group:
// lifecycle control over the environment itself plus read access to its
// connection details, both scoped to the owning project.
func environmentPermissions(projectID, environmentID, groupID string) []models.IdentityPermission {
	scope := models.ProjectScope(projectID)

	return []models.IdentityPermission{
		groupAllow(groupID, models.SubjectEnvironment, environmentID, models.ActionRead, scope),
		groupAllow(groupID, models.SubjectEnvironment, environmentID, models.ActionUpdate, scope),
		groupAllow(groupID, models.SubjectEnvironment, environmentID, models.ActionDelete, scope),
		groupAllow(groupID, models.SubjectEnvironmentConnection, environmentID, models.ActionRead, scope),
	}
}

// rootAdminPermissions grants the administrators group every action on every
// subject type, wildcard subject, unconditioned.
func rootAdminPermissions() []models.IdentityPermission {
	subjects := models.AllSubjectTypes()
	actions := models.AllActions()

	perms := make([]models.IdentityPermission, 0, len(subjects)*len(actions))
	for _, subject := range subjects {
		for _, action := range actions {
			perms = append(perms, groupAllow(RootAdminGroupID, subject, models.WildcardSubjectID, action))
		}
	}
	return perms
}
