package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTupleKey_ConditionOrderIndependent(t *testing.T) {
	a := IdentityPermission{
		IdentityType: IdentityGroup,
		IdentityID:   "proj-1#Researcher",
		SubjectType:  SubjectEnvironment,
		SubjectID:    WildcardSubjectID,
		Action:       ActionRead,
		Effect:       EffectAllow,
		Conditions: []Condition{
			EqualsCondition("projectId", "proj-1"),
			EqualsCondition("region", "us-east-1"),
		},
	}
	b := a
	b.Conditions = []Condition{
		EqualsCondition("region", "us-east-1"),
		EqualsCondition("projectId", "proj-1"),
	}

	assert.Equal(t, a.TupleKey(), b.TupleKey())
}

func TestTupleKey_DistinguishesFacts(t *testing.T) {
	base := IdentityPermission{
		IdentityType: IdentityGroup,
		IdentityID:   "proj-1#ProjectAdmin",
		SubjectType:  SubjectProject,
		SubjectID:    "proj-1",
		Action:       ActionRead,
		Effect:       EffectAllow,
	}

	otherAction := base
	otherAction.Action = ActionUpdate
	assert.NotEqual(t, base.TupleKey(), otherAction.TupleKey())

	otherSubject := base
	otherSubject.SubjectID = "proj-2"
	assert.NotEqual(t, base.TupleKey(), otherSubject.TupleKey())

	conditioned := base
	conditioned.Conditions = []Condition{ProjectScope("proj-1")}
	assert.NotEqual(t, base.TupleKey(), conditioned.TupleKey())
}

func TestIdentityPermission_Validate(t *testing.T) {
	valid := IdentityPermission{
		IdentityType: IdentityGroup,
		IdentityID:   "proj-1#Researcher",
		SubjectType:  SubjectSSHKey,
		SubjectID:    WildcardSubjectID,
		Action:       ActionCreate,
		Effect:       EffectAllow,
		Conditions:   []Condition{ProjectScope("proj-1")},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*IdentityPermission)
		want   error
	}{
		{"bad identity type", func(p *IdentityPermission) { p.IdentityType = "ROBOT" }, ErrInvalidIdentityType},
		{"empty identity id", func(p *IdentityPermission) { p.IdentityID = "" }, ErrRequiredField},
		{"bad subject type", func(p *IdentityPermission) { p.SubjectType = "WIDGET" }, ErrInvalidSubjectType},
		{"empty subject id", func(p *IdentityPermission) { p.SubjectID = "" }, ErrRequiredField},
		{"bad action", func(p *IdentityPermission) { p.Action = "EXECUTE" }, ErrInvalidAction},
		{"bad effect", func(p *IdentityPermission) { p.Effect = "MAYBE" }, ErrInvalidEffect},
		{"empty condition field", func(p *IdentityPermission) { p.Conditions = []Condition{{Operator: OperatorEquals, Value: "x"}} }, ErrInvalidCondition},
		{"unknown operator", func(p *IdentityPermission) { p.Conditions = []Condition{{Field: "projectId", Operator: "$ne", Value: "x"}} }, ErrInvalidCondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEffectiveIdentities(t *testing.T) {
	u := AuthenticatedUser{ID: "user-1", Groups: []string{"proj-1#Researcher", "ITAdmin"}}
	assert.Equal(t, []string{"user-1", "proj-1#Researcher", "ITAdmin"}, u.EffectiveIdentities())

	lone := AuthenticatedUser{ID: "user-2"}
	assert.Equal(t, []string{"user-2"}, lone.EffectiveIdentities())
}

func TestSubjectTypeClosedSet(t *testing.T) {
	for _, s := range AllSubjectTypes() {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, SubjectType("WORKSPACE").Valid())
	assert.Len(t, AllSubjectTypes(), 15)
}
