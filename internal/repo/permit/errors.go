package permit

import (
	"errors"
	"fmt"
)

// ErrorKind classifies store errors so callers can pattern-match the known
// idempotency cases instead of inspecting error strings.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindGroupAlreadyExists
	KindGroupNotFound
	KindPermissionAlreadyExists
)

func (k ErrorKind) String() string {
	switch k {
	case KindGroupAlreadyExists:
		return "group_already_exists"
	case KindGroupNotFound:
		return "group_not_found"
	case KindPermissionAlreadyExists:
		return "permission_already_exists"
	default:
		return "unknown"
	}
}

// Error is the store's typed error. Callers use IsKind to detect the
// idempotency kinds; any other error propagates unchanged.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a store Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}

// NewGroupAlreadyExistsError reports a duplicate group creation.
func NewGroupAlreadyExistsError(groupID string) *Error {
	return &Error{Kind: KindGroupAlreadyExists, Msg: fmt.Sprintf("group %q already exists", groupID)}
}

// NewGroupNotFoundError reports an operation against an absent group.
func NewGroupNotFoundError(groupID string) *Error {
	return &Error{Kind: KindGroupNotFound, Msg: fmt.Sprintf("group %q not found", groupID)}
}

// NewPermissionAlreadyExistsError reports a duplicate permission tuple.
func NewPermissionAlreadyExistsError(tupleKey string) *Error {
	return &Error{Kind: KindPermissionAlreadyExists, Msg: fmt.Sprintf("identity permission %s already exists", tupleKey)}
}
