package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCondition_Evaluate(t *testing.T) {
	cond := ProjectScope("proj-a")

	assert.True(t, cond.Evaluate(map[string]string{"projectId": "proj-a"}))
	assert.False(t, cond.Evaluate(map[string]string{"projectId": "proj-b"}))
	assert.False(t, cond.Evaluate(map[string]string{}))
	assert.False(t, cond.Evaluate(nil))
}

func TestCondition_UnknownOperatorFailsClosed(t *testing.T) {
	cond := Condition{Field: "projectId", Operator: "$gt", Value: "proj-a"}
	assert.False(t, cond.Evaluate(map[string]string{"projectId": "proj-a"}))
}

func TestEvaluateAll(t *testing.T) {
	ctx := map[string]string{"projectId": "proj-a", "region": "us-east-1"}

	assert.True(t, EvaluateAll(nil, ctx))
	assert.True(t, EvaluateAll([]Condition{
		EqualsCondition("projectId", "proj-a"),
		EqualsCondition("region", "us-east-1"),
	}, ctx))
	assert.False(t, EvaluateAll([]Condition{
		EqualsCondition("projectId", "proj-a"),
		EqualsCondition("region", "eu-west-1"),
	}, ctx))
}
