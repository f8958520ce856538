package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/researchops/workbench-authz/internal/models"
	"github.com/researchops/workbench-authz/internal/monitoring"
	"github.com/researchops/workbench-authz/internal/repo/permit"
	"github.com/researchops/workbench-authz/pkg/logger"
)

// ErrAccessDenied is the engine's deny outcome. It is a normal result of
// evaluation, not a failure; translating it to an HTTP status is the
// boundary layer's concern.
var ErrAccessDenied = errors.New("access denied")

// Engine decides ALLOW/DENY for required operations against stored
// permission facts. The model is ALLOW-only with default deny: a requirement
// is satisfied by any one ALLOW fact whose conditions hold, and nothing ever
// overrides the absence of such a fact.
type Engine struct {
	permissions permit.PermissionStore
	logger      logger.Logger
}

func NewEngine(permissions permit.PermissionStore, log logger.Logger) *Engine {
	return &Engine{permissions: permissions, logger: log}
}

// IsAuthorizedOnDynamicOperations decides a whole route's operation list in
// one call, short-circuiting to deny on the first unsatisfied requirement.
func (e *Engine) IsAuthorizedOnDynamicOperations(ctx context.Context, user models.AuthenticatedUser, ops []models.DynamicOperation) error {
	for _, op := range ops {
		if err := e.IsAuthorized(ctx, user, op); err != nil {
			return err
		}
	}
	return nil
}

// IsAuthorized decides a single required operation.
func (e *Engine) IsAuthorized(ctx context.Context, user models.AuthenticatedUser, op models.DynamicOperation) error {
	start := time.Now()

	candidates, err := e.gatherCandidates(ctx, op)
	if err != nil {
		monitoring.RecordAuthzDecision(string(op.SubjectType), "error", time.Since(start))
		return fmt.Errorf("gather permission facts: %w", err)
	}

	identities := make(map[string]struct{}, len(user.Groups)+1)
	for _, id := range user.EffectiveIdentities() {
		identities[id] = struct{}{}
	}

	requestContext := map[string]string{}
	if op.ProjectID != "" {
		requestContext["projectId"] = op.ProjectID
	}

	for _, fact := range candidates {
		if _, ok := identities[fact.IdentityID]; !ok {
			continue
		}
		if fact.Action != op.Action {
			continue
		}
		if fact.Effect != models.EffectAllow {
			// DENY facts are representable but carry no override
			// semantics; they simply never satisfy a requirement.
			continue
		}
		if !models.EvaluateAll(fact.Conditions, requestContext) {
			continue
		}
		monitoring.RecordAuthzDecision(string(op.SubjectType), "allow", time.Since(start))
		return nil
	}

	e.logger.Debug("authorization denied",
		"userId", user.ID,
		"action", op.Action,
		"subjectType", op.SubjectType,
		"subjectId", op.SubjectID,
		"projectId", op.ProjectID,
	)
	monitoring.RecordAuthzDecision(string(op.SubjectType), "deny", time.Since(start))
	return fmt.Errorf("%w: %s on %s %s", ErrAccessDenied, op.Action, op.SubjectType, op.SubjectID)
}

// gatherCandidates loads facts targeting the exact subject id plus facts
// targeting the type's wildcard.
func (e *Engine) gatherCandidates(ctx context.Context, op models.DynamicOperation) ([]models.IdentityPermission, error) {
	candidates, err := e.permissions.GetIdentityPermissionsBySubject(ctx, op.SubjectType, op.SubjectID)
	if err != nil {
		return nil, err
	}
	if op.SubjectID != models.WildcardSubjectID {
		wildcardFacts, err := e.permissions.GetIdentityPermissionsBySubject(ctx, op.SubjectType, models.WildcardSubjectID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, wildcardFacts...)
	}
	return candidates, nil
}
