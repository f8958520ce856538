package models

// ConditionOperator tags the predicate kind of a Condition. Only equality
// exists today; new operators extend the tag rather than introducing a
// general expression evaluator.
type ConditionOperator string

const (
	OperatorEquals ConditionOperator = "$eq"
)

// Condition is a predicate attached to a permission fact, evaluated against
// request-derived context. A fact with conditions only grants access when
// every condition evaluates true; a fact with none is unconditionally
// applicable to its subject.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    string            `json:"value"`
}

// EqualsCondition builds an equality condition on a context field.
func EqualsCondition(field, value string) Condition {
	return Condition{Field: field, Operator: OperatorEquals, Value: value}
}

// ProjectScope is the condition the provisioning service attaches to facts
// whose subject spans multiple projects.
func ProjectScope(projectID string) Condition {
	return EqualsCondition("projectId", projectID)
}

// Evaluate applies the condition to the request context. Unknown operators
// evaluate false, keeping the default-deny posture if a newer fact format is
// ever read by an older binary.
func (c Condition) Evaluate(requestContext map[string]string) bool {
	switch c.Operator {
	case OperatorEquals:
		got, ok := requestContext[c.Field]
		return ok && got == c.Value
	default:
		return false
	}
}

// EvaluateAll reports whether every condition holds against the context.
// An empty condition list evaluates true.
func EvaluateAll(conditions []Condition, requestContext map[string]string) bool {
	for _, c := range conditions {
		if !c.Evaluate(requestContext) {
			return false
		}
	}
	return true
}
