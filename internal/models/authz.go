package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Authorization model for the multi-tenant research workbench. Projects are
// the horizontal boundary: nearly every subject's visibility is scoped to
// project membership.

// SubjectType is the closed set of resource types a permission fact or a
// route requirement can target. The route table, the provisioning service and
// the decision engine all share this enumeration so a typo is a validation
// error rather than a silent deny-by-mismatch.
type SubjectType string

const (
	SubjectProject                SubjectType = "PROJECT"
	SubjectProjectList            SubjectType = "PROJECT_LIST"
	SubjectProjectListByETC       SubjectType = "PROJECT_LIST_BY_ETC"
	SubjectEnvironment            SubjectType = "ENVIRONMENT"
	SubjectEnvironmentConnection  SubjectType = "ENVIRONMENT_CONNECTION"
	SubjectEnvironmentType        SubjectType = "ENVIRONMENT_TYPE"
	SubjectETC                    SubjectType = "ENVIRONMENT_TYPE_CONFIG"
	SubjectDataset                SubjectType = "DATASET"
	SubjectDatasetList            SubjectType = "DATASET_LIST"
	SubjectUser                   SubjectType = "USER"
	SubjectCostCenter             SubjectType = "COST_CENTER"
	SubjectAWSAccount             SubjectType = "AWS_ACCOUNT"
	SubjectAWSAccountTemplateURL  SubjectType = "AWS_ACCOUNT_TEMPLATE_URL"
	SubjectProjectUserAssociation SubjectType = "PROJECT_USER_ASSOCIATION"
	SubjectSSHKey                 SubjectType = "SSH_KEY"
)

// AllSubjectTypes returns the full closed set, in a stable order. The root
// admin bootstrap grants every action on every one of these.
func AllSubjectTypes() []SubjectType {
	return []SubjectType{
		SubjectProject,
		SubjectProjectList,
		SubjectProjectListByETC,
		SubjectEnvironment,
		SubjectEnvironmentConnection,
		SubjectEnvironmentType,
		SubjectETC,
		SubjectDataset,
		SubjectDatasetList,
		SubjectUser,
		SubjectCostCenter,
		SubjectAWSAccount,
		SubjectAWSAccountTemplateURL,
		SubjectProjectUserAssociation,
		SubjectSSHKey,
	}
}

// Valid reports whether s is a member of the closed subject-type set.
func (s SubjectType) Valid() bool {
	for _, known := range AllSubjectTypes() {
		if s == known {
			return true
		}
	}
	return false
}

// Action is the closed set of operations a permission fact can grant.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionRead   Action = "READ"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// AllActions returns every action, in a stable order.
func AllActions() []Action {
	return []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Effect is the outcome a permission fact carries. Provisioning only ever
// writes ALLOW facts; DENY is representable for forward compatibility but is
// never treated as a grant and never overrides anything.
type Effect string

const (
	EffectAllow Effect = "ALLOW"
	EffectDeny  Effect = "DENY"
)

// IdentityType distinguishes user-attached from group-attached facts.
type IdentityType string

const (
	IdentityUser  IdentityType = "USER"
	IdentityGroup IdentityType = "GROUP"
)

// WildcardSubjectID matches any instance of a subject type, subject to the
// fact's conditions.
const WildcardSubjectID = "*"

// IdentityPermission is the atomic access-control fact: identity X may
// perform action A on subject S, optionally under conditions.
type IdentityPermission struct {
	IdentityType IdentityType `json:"identityType"`
	IdentityID   string       `json:"identityId"`
	SubjectType  SubjectType  `json:"subjectType"`
	SubjectID    string       `json:"subjectId"`
	Action       Action       `json:"action"`
	Effect       Effect       `json:"effect"`
	Conditions   []Condition  `json:"conditions,omitempty"`
	Description  string       `json:"description,omitempty"`
	CreatedAt    time.Time    `json:"createdAt,omitempty"`
	CreatedBy    string       `json:"createdBy,omitempty"`
}

// TupleKey returns the canonical uniqueness key for the fact. Two facts with
// the same key are the same grant; the store rejects duplicate creation.
// Conditions participate in the key in sorted order so field ordering in the
// slice does not produce distinct keys.
func (p IdentityPermission) TupleKey() string {
	conds := make([]string, 0, len(p.Conditions))
	for _, c := range p.Conditions {
		conds = append(conds, fmt.Sprintf("%s%s%s", c.Field, c.Operator, c.Value))
	}
	sort.Strings(conds)

	raw := strings.Join([]string{
		string(p.IdentityType),
		p.IdentityID,
		string(p.SubjectType),
		p.SubjectID,
		string(p.Action),
		strings.Join(conds, "&"),
	}, "|")

	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Group is a named identity that users can belong to. Project lifecycle
// creates two groups per project (<projectId>#ProjectAdmin and
// <projectId>#Researcher); bootstrap creates a single ITAdmin group.
type Group struct {
	ID          string    `json:"id"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	CreatedBy   string    `json:"createdBy,omitempty"`
}

// AuthenticatedUser is a resolved caller: the user id plus the group ids the
// caller belongs to at decision time.
type AuthenticatedUser struct {
	ID     string   `json:"id"`
	Groups []string `json:"groups"`
}

// EffectiveIdentities returns the identity set used to look up permission
// facts: the user's own id plus every group id.
func (u AuthenticatedUser) EffectiveIdentities() []string {
	ids := make([]string, 0, len(u.Groups)+1)
	ids = append(ids, u.ID)
	ids = append(ids, u.Groups...)
	return ids
}

// DynamicOperation is one required (action, subject) pair produced by route
// resolution. ProjectID carries the request's project scope into condition
// evaluation; it is empty for routes with no project path parameter.
type DynamicOperation struct {
	Action      Action      `json:"action"`
	SubjectType SubjectType `json:"subjectType"`
	SubjectID   string      `json:"subjectId"`
	ProjectID   string      `json:"projectId,omitempty"`
}
