package authz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/researchops/workbench-authz/internal/models"
)

// ErrRouteNotRegistered marks a route that is neither protected nor ignored.
// The boundary layer must treat this as deny: every new route has to be
// explicitly registered or explicitly ignored.
var ErrRouteNotRegistered = errors.New("route is not registered in the route protection table")

// RouteKey identifies one HTTP route by method and path template (gin form,
// e.g. "/projects/:projectId").
type RouteKey struct {
	Method string
	Path   string
}

// OperationTemplate is one required (action, subject) pair for a route.
// SubjectID and ProjectID may contain ${param} placeholders substituted from
// path parameters at resolution time; a literal "*" is never substituted.
type OperationTemplate struct {
	Action      models.Action
	SubjectType models.SubjectType
	SubjectID   string
	ProjectID   string
}

// RouteProtection lists the operations a caller must be allowed to perform
// before the route's handler runs. All of them must be satisfied.
type RouteProtection struct {
	Operations []OperationTemplate
}

// Resolver maps incoming routes to required operations. The tables are built
// once at construction and never mutated, so the fail-closed default is a
// structural guarantee rather than a convention.
type Resolver struct {
	protected map[RouteKey]RouteProtection
	ignored   map[RouteKey]struct{}
}

// NewResolver builds a resolver over the default workbench route table.
func NewResolver() *Resolver {
	return NewResolverWithTables(defaultProtectedRoutes(), defaultIgnoredRoutes())
}

// NewResolverWithTables builds a resolver over caller-supplied tables. The
// maps are copied so later caller mutation cannot reach the resolver.
func NewResolverWithTables(protected map[RouteKey]RouteProtection, ignored []RouteKey) *Resolver {
	p := make(map[RouteKey]RouteProtection, len(protected))
	for k, v := range protected {
		p[k] = v
	}
	ig := make(map[RouteKey]struct{}, len(ignored))
	for _, k := range ignored {
		ig[k] = struct{}{}
	}
	return &Resolver{protected: p, ignored: ig}
}

// IsRouteIgnored reports whether the route bypasses authorization entirely
// (login/logout/token exchange style endpoints).
func (r *Resolver) IsRouteIgnored(method, path string) bool {
	_, ok := r.ignored[RouteKey{Method: method, Path: path}]
	return ok
}

// Resolve returns the operations required for the route, with path
// parameters substituted into subject ids and project scopes. An unknown
// route returns ErrRouteNotRegistered.
func (r *Resolver) Resolve(method, path string, params map[string]string) ([]models.DynamicOperation, error) {
	protection, ok := r.protected[RouteKey{Method: method, Path: path}]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrRouteNotRegistered, method, path)
	}

	ops := make([]models.DynamicOperation, 0, len(protection.Operations))
	for _, tmpl := range protection.Operations {
		subjectID, err := substitute(tmpl.SubjectID, params)
		if err != nil {
			return nil, fmt.Errorf("route %s %s: %w", method, path, err)
		}
		projectID, err := substitute(tmpl.ProjectID, params)
		if err != nil {
			return nil, fmt.Errorf("route %s %s: %w", method, path, err)
		}
		ops = append(ops, models.DynamicOperation{
			Action:      tmpl.Action,
			SubjectType: tmpl.SubjectType,
			SubjectID:   subjectID,
			ProjectID:   projectID,
		})
	}
	return ops, nil
}

// substitute replaces every ${param} occurrence with its path-parameter
// value. A wildcard "*" passes through untouched; a placeholder without a
// matching parameter is a table/routing mismatch and errors rather than
// resolving to an unintended subject.
func substitute(template string, params map[string]string) (string, error) {
	if template == models.WildcardSubjectID || !strings.Contains(template, "${") {
		return template, nil
	}
	out := template
	for name, value := range params {
		out = strings.ReplaceAll(out, "${"+name+"}", value)
	}
	if strings.Contains(out, "${") {
		return "", fmt.Errorf("unresolved placeholder in %q", template)
	}
	return out, nil
}

func op(action models.Action, subjectType models.SubjectType, subjectID string) OperationTemplate {
	return OperationTemplate{Action: action, SubjectType: subjectType, SubjectID: subjectID}
}

func scopedOp(action models.Action, subjectType models.SubjectType, subjectID string) OperationTemplate {
	return OperationTemplate{Action: action, SubjectType: subjectType, SubjectID: subjectID, ProjectID: "${projectId}"}
}

func protect(ops ...OperationTemplate) RouteProtection {
	return RouteProtection{Operations: ops}
}

// defaultProtectedRoutes is the workbench route table. Loaded once at
// startup; any route missing from both tables is denied.
func defaultProtectedRoutes() map[RouteKey]RouteProtection {
	wildcard := models.WildcardSubjectID

	return map[RouteKey]RouteProtection{
		// Projects
		{Method: "POST", Path: "/projects"}:                        protect(op(models.ActionCreate, models.SubjectProject, wildcard)),
		{Method: "GET", Path: "/projects"}:                         protect(op(models.ActionRead, models.SubjectProjectList, wildcard)),
		{Method: "GET", Path: "/projects/:projectId"}:              protect(op(models.ActionRead, models.SubjectProject, "${projectId}")),
		{Method: "PATCH", Path: "/projects/:projectId"}:            protect(op(models.ActionUpdate, models.SubjectProject, "${projectId}")),
		{Method: "PUT", Path: "/projects/:projectId/softDelete"}:   protect(op(models.ActionDelete, models.SubjectProject, "${projectId}")),

		// Environments (project scoped)
		{Method: "POST", Path: "/projects/:projectId/environments"}:                             protect(scopedOp(models.ActionCreate, models.SubjectEnvironment, wildcard)),
		{Method: "GET", Path: "/projects/:projectId/environments"}:                              protect(scopedOp(models.ActionRead, models.SubjectEnvironment, wildcard)),
		{Method: "GET", Path: "/projects/:projectId/environments/:environmentId"}:               protect(scopedOp(models.ActionRead, models.SubjectEnvironment, "${environmentId}")),
		{Method: "PUT", Path: "/projects/:projectId/environments/:environmentId/start"}:         protect(scopedOp(models.ActionUpdate, models.SubjectEnvironment, "${environmentId}")),
		{Method: "PUT", Path: "/projects/:projectId/environments/:environmentId/stop"}:          protect(scopedOp(models.ActionUpdate, models.SubjectEnvironment, "${environmentId}")),
		{Method: "PUT", Path: "/projects/:projectId/environments/:environmentId/terminate"}:     protect(scopedOp(models.ActionDelete, models.SubjectEnvironment, "${environmentId}")),
		{Method: "GET", Path: "/projects/:projectId/environments/:environmentId/connections"}:   protect(scopedOp(models.ActionRead, models.SubjectEnvironmentConnection, "${environmentId}")),

		// Datasets (project scoped)
		{Method: "POST", Path: "/projects/:projectId/datasets"}:            protect(scopedOp(models.ActionCreate, models.SubjectDataset, wildcard)),
		{Method: "GET", Path: "/projects/:projectId/datasets"}:             protect(scopedOp(models.ActionRead, models.SubjectDatasetList, wildcard)),
		{Method: "GET", Path: "/projects/:projectId/datasets/:datasetId"}:  protect(scopedOp(models.ActionRead, models.SubjectDataset, "${datasetId}")),

		// Project/user associations
		{Method: "POST", Path: "/projects/:projectId/users/:userId"}:   protect(scopedOp(models.ActionCreate, models.SubjectProjectUserAssociation, wildcard)),
		{Method: "GET", Path: "/projects/:projectId/users"}:            protect(scopedOp(models.ActionRead, models.SubjectProjectUserAssociation, wildcard)),
		{Method: "DELETE", Path: "/projects/:projectId/users/:userId"}: protect(scopedOp(models.ActionDelete, models.SubjectProjectUserAssociation, wildcard)),

		// SSH keys (project scoped)
		{Method: "POST", Path: "/projects/:projectId/sshKeys"}:              protect(scopedOp(models.ActionCreate, models.SubjectSSHKey, wildcard)),
		{Method: "GET", Path: "/projects/:projectId/sshKeys"}:               protect(scopedOp(models.ActionRead, models.SubjectSSHKey, wildcard)),
		{Method: "DELETE", Path: "/projects/:projectId/sshKeys/:sshKeyId"}:  protect(scopedOp(models.ActionDelete, models.SubjectSSHKey, "${sshKeyId}")),

		// Users
		{Method: "POST", Path: "/users"}:           protect(op(models.ActionCreate, models.SubjectUser, wildcard)),
		{Method: "GET", Path: "/users"}:            protect(op(models.ActionRead, models.SubjectUser, wildcard)),
		{Method: "GET", Path: "/users/:userId"}:    protect(op(models.ActionRead, models.SubjectUser, "${userId}")),
		{Method: "DELETE", Path: "/users/:userId"}: protect(op(models.ActionDelete, models.SubjectUser, "${userId}")),

		// Cost centers
		{Method: "POST", Path: "/costCenters"}:                        protect(op(models.ActionCreate, models.SubjectCostCenter, wildcard)),
		{Method: "GET", Path: "/costCenters"}:                         protect(op(models.ActionRead, models.SubjectCostCenter, wildcard)),
		{Method: "GET", Path: "/costCenters/:costCenterId"}:           protect(op(models.ActionRead, models.SubjectCostCenter, "${costCenterId}")),
		{Method: "PATCH", Path: "/costCenters/:costCenterId"}:         protect(op(models.ActionUpdate, models.SubjectCostCenter, "${costCenterId}")),
		{Method: "PUT", Path: "/costCenters/:costCenterId/softDelete"}: protect(op(models.ActionDelete, models.SubjectCostCenter, "${costCenterId}")),

		// AWS accounts
		{Method: "POST", Path: "/awsAccounts"}:                   protect(op(models.ActionCreate, models.SubjectAWSAccount, wildcard)),
		{Method: "GET", Path: "/awsAccounts"}:                    protect(op(models.ActionRead, models.SubjectAWSAccount, wildcard)),
		{Method: "GET", Path: "/awsAccounts/:awsAccountId"}:      protect(op(models.ActionRead, models.SubjectAWSAccount, "${awsAccountId}")),
		{Method: "PATCH", Path: "/awsAccounts/:awsAccountId"}:    protect(op(models.ActionUpdate, models.SubjectAWSAccount, "${awsAccountId}")),
		{Method: "POST", Path: "/awsAccountTemplateUrls"}:        protect(op(models.ActionCreate, models.SubjectAWSAccountTemplateURL, wildcard)),

		// Environment types and configurations
		{Method: "GET", Path: "/environmentTypes"}:                protect(op(models.ActionRead, models.SubjectEnvironmentType, wildcard)),
		{Method: "GET", Path: "/environmentTypes/:envTypeId"}:     protect(op(models.ActionRead, models.SubjectEnvironmentType, "${envTypeId}")),
		{Method: "PATCH", Path: "/environmentTypes/:envTypeId"}:   protect(op(models.ActionUpdate, models.SubjectEnvironmentType, "${envTypeId}")),

		{Method: "POST", Path: "/environmentTypes/:envTypeId/configurations"}:                               protect(op(models.ActionCreate, models.SubjectETC, wildcard)),
		{Method: "GET", Path: "/environmentTypes/:envTypeId/configurations"}:                                protect(op(models.ActionRead, models.SubjectETC, wildcard)),
		{Method: "GET", Path: "/environmentTypes/:envTypeId/configurations/:envTypeConfigId"}:               protect(op(models.ActionRead, models.SubjectETC, "${envTypeConfigId}")),
		{Method: "PATCH", Path: "/environmentTypes/:envTypeId/configurations/:envTypeConfigId"}:             protect(op(models.ActionUpdate, models.SubjectETC, "${envTypeConfigId}")),
		{Method: "PUT", Path: "/environmentTypes/:envTypeId/configurations/:envTypeConfigId/softDelete"}:    protect(op(models.ActionDelete, models.SubjectETC, "${envTypeConfigId}")),
		{Method: "GET", Path: "/environmentTypes/:envTypeId/configurations/:envTypeConfigId/projects"}:      protect(op(models.ActionRead, models.SubjectProjectListByETC, wildcard)),

		// Authorization admin surface (this service's own endpoints)
		{Method: "GET", Path: "/authz/users/:userId/groups"}:                                           protect(op(models.ActionRead, models.SubjectUser, "${userId}")),
		{Method: "GET", Path: "/authz/identities/:identityType/:identityId/permissions"}:               protect(op(models.ActionRead, models.SubjectUser, wildcard)),
		{Method: "PUT", Path: "/authz/groups/:groupId/users/:userId"}:                                  protect(op(models.ActionUpdate, models.SubjectUser, "${userId}")),
		{Method: "DELETE", Path: "/authz/groups/:groupId/users/:userId"}:                               protect(op(models.ActionUpdate, models.SubjectUser, "${userId}")),
		{Method: "POST", Path: "/authz/projects/:projectId/permissions"}:                               protect(op(models.ActionUpdate, models.SubjectProject, "${projectId}")),
		{Method: "DELETE", Path: "/authz/projects/:projectId/permissions"}:                             protect(op(models.ActionDelete, models.SubjectProject, "${projectId}")),
		{Method: "POST", Path: "/authz/projects/:projectId/environments/:environmentId/permissions"}:   protect(op(models.ActionUpdate, models.SubjectProject, "${projectId}")),
		{Method: "DELETE", Path: "/authz/projects/:projectId/environments/:environmentId/permissions"}: protect(op(models.ActionUpdate, models.SubjectProject, "${projectId}")),
	}
}

// defaultIgnoredRoutes lists the endpoints that bypass authorization: the
// identity provider handles them before any identity exists to authorize.
func defaultIgnoredRoutes() []RouteKey {
	return []RouteKey{
		{Method: "GET", Path: "/login"},
		{Method: "POST", Path: "/login"},
		{Method: "GET", Path: "/logout"},
		{Method: "POST", Path: "/logout"},
		{Method: "POST", Path: "/token"},
		{Method: "GET", Path: "/refresh"},
		{Method: "POST", Path: "/refresh"},
	}
}
