package models

import (
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrInvalidIdentityType = errors.New("invalid identity type")
	ErrInvalidSubjectType  = errors.New("invalid subject type")
	ErrInvalidAction       = errors.New("invalid action")
	ErrInvalidEffect       = errors.New("invalid effect")
	ErrInvalidCondition    = errors.New("invalid condition")
	ErrRequiredField       = errors.New("required field is missing")
)

// Validate checks an IdentityPermission before it is persisted.
func (p IdentityPermission) Validate() error {
	switch p.IdentityType {
	case IdentityUser, IdentityGroup:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidIdentityType, p.IdentityType)
	}

	if p.IdentityID == "" {
		return fmt.Errorf("%w: identityId", ErrRequiredField)
	}

	if !p.SubjectType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSubjectType, p.SubjectType)
	}

	if p.SubjectID == "" {
		return fmt.Errorf("%w: subjectId", ErrRequiredField)
	}

	if !p.Action.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAction, p.Action)
	}

	switch p.Effect {
	case EffectAllow, EffectDeny:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEffect, p.Effect)
	}

	for _, c := range p.Conditions {
		if c.Field == "" {
			return fmt.Errorf("%w: condition field is empty", ErrInvalidCondition)
		}
		if c.Operator != OperatorEquals {
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidCondition, c.Operator)
		}
	}

	return nil
}

// Validate checks a Group before it is persisted.
func (g Group) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("%w: group id", ErrRequiredField)
	}
	return nil
}
