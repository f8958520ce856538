package permit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/researchops/workbench-authz/internal/models"
	"github.com/researchops/workbench-authz/internal/monitoring"
	"github.com/researchops/workbench-authz/pkg/cache"
)

// Valkey key layout:
//
//	authz:perm:fact:<tupleKey>                    JSON fact (SetNX guards uniqueness)
//	authz:perm:identity:<identityType>:<id>       set of fact keys
//	authz:perm:subject:<subjectType>:<id>         set of fact keys
//	authz:group:<groupId>                         JSON group
//	authz:group:members:<groupId>                 set of user ids
//	authz:user:groups:<userId>                    set of group ids
const (
	factKeyPrefix       = "authz:perm:fact:"
	identityIndexPrefix = "authz:perm:identity:"
	subjectIndexPrefix  = "authz:perm:subject:"
	groupKeyPrefix      = "authz:group:"
	groupMembersPrefix  = "authz:group:members:"
	userGroupsPrefix    = "authz:user:groups:"
)

func factKey(tupleKey string) string {
	return factKeyPrefix + tupleKey
}

func identityIndexKey(identityType models.IdentityType, identityID string) string {
	return fmt.Sprintf("%s%s:%s", identityIndexPrefix, identityType, identityID)
}

func subjectIndexKey(subjectType models.SubjectType, subjectID string) string {
	return fmt.Sprintf("%s%s:%s", subjectIndexPrefix, subjectType, subjectID)
}

func groupKey(groupID string) string {
	return groupKeyPrefix + groupID
}

func groupMembersKey(groupID string) string {
	return groupMembersPrefix + groupID
}

func userGroupsKey(userID string) string {
	return userGroupsPrefix + userID
}

// ValkeyStore implements PermissionStore and GroupStore on a Valkey/Redis
// keyspace. Facts are immutable once written; the identity and subject index
// sets support the two lookup paths the decision engine and the purge loop
// need.
type ValkeyStore struct {
	store cache.ValkeyStore
}

func NewValkeyStore(store cache.ValkeyStore) *ValkeyStore {
	return &ValkeyStore{store: store}
}

// CreateIdentityPermissions writes all facts or none. Tuple uniqueness is
// enforced by SetNX on the fact key; on a conflict every fact written so far
// in this call is rolled back before the error returns.
func (s *ValkeyStore) CreateIdentityPermissions(ctx context.Context, perms []models.IdentityPermission, actingUser models.AuthenticatedUser) ([]models.IdentityPermission, error) {
	for _, p := range perms {
		if err := p.Validate(); err != nil {
			monitoring.RecordStoreOperation("create_identity_permissions", "invalid")
			return nil, fmt.Errorf("invalid identity permission: %w", err)
		}
	}

	created := make([]models.IdentityPermission, 0, len(perms))
	for _, p := range perms {
		p.CreatedAt = time.Now().UTC()
		p.CreatedBy = actingUser.ID

		key := factKey(p.TupleKey())
		ok, err := s.store.SetNX(ctx, key, p, 0)
		if err != nil {
			s.rollbackCreated(ctx, created, actingUser)
			monitoring.RecordStoreOperation("create_identity_permissions", "error")
			return nil, fmt.Errorf("write permission fact: %w", err)
		}
		if !ok {
			s.rollbackCreated(ctx, created, actingUser)
			monitoring.RecordStoreOperation("create_identity_permissions", "conflict")
			return nil, NewPermissionAlreadyExistsError(p.TupleKey())
		}

		if err := s.indexFact(ctx, key, p); err != nil {
			created = append(created, p)
			s.rollbackCreated(ctx, created, actingUser)
			monitoring.RecordStoreOperation("create_identity_permissions", "error")
			return nil, err
		}
		created = append(created, p)
	}

	monitoring.RecordStoreOperation("create_identity_permissions", "success")
	return created, nil
}

func (s *ValkeyStore) indexFact(ctx context.Context, key string, p models.IdentityPermission) error {
	if err := s.store.SAdd(ctx, identityIndexKey(p.IdentityType, p.IdentityID), key); err != nil {
		return fmt.Errorf("index fact by identity: %w", err)
	}
	if err := s.store.SAdd(ctx, subjectIndexKey(p.SubjectType, p.SubjectID), key); err != nil {
		return fmt.Errorf("index fact by subject: %w", err)
	}
	return nil
}

// rollbackCreated undoes partial writes from a failed create so the
// all-or-nothing contract holds. Best effort; a failed rollback leaves the
// original error as the caller's signal.
func (s *ValkeyStore) rollbackCreated(ctx context.Context, created []models.IdentityPermission, actingUser models.AuthenticatedUser) {
	if len(created) == 0 {
		return
	}
	_ = s.DeleteIdentityPermissions(ctx, created, actingUser)
}

// DeleteIdentityPermissions removes facts and their index entries. Absent
// facts are skipped, making deletion idempotent.
func (s *ValkeyStore) DeleteIdentityPermissions(ctx context.Context, perms []models.IdentityPermission, actingUser models.AuthenticatedUser) error {
	for _, p := range perms {
		key := factKey(p.TupleKey())
		if err := s.store.Delete(ctx, key); err != nil {
			monitoring.RecordStoreOperation("delete_identity_permissions", "error")
			return fmt.Errorf("delete permission fact: %w", err)
		}
		if err := s.store.SRem(ctx, identityIndexKey(p.IdentityType, p.IdentityID), key); err != nil {
			monitoring.RecordStoreOperation("delete_identity_permissions", "error")
			return fmt.Errorf("unindex fact by identity: %w", err)
		}
		if err := s.store.SRem(ctx, subjectIndexKey(p.SubjectType, p.SubjectID), key); err != nil {
			monitoring.RecordStoreOperation("delete_identity_permissions", "error")
			return fmt.Errorf("unindex fact by subject: %w", err)
		}
	}
	monitoring.RecordStoreOperation("delete_identity_permissions", "success")
	return nil
}

// GetIdentityPermissionsByIdentity pages through the identity index with
// SSCAN. The pagination token is the opaque scan cursor; facts deleted
// between pages are skipped rather than erroring, so a concurrent purge and
// a concurrent add are both tolerated (best-effort scan, not a snapshot).
func (s *ValkeyStore) GetIdentityPermissionsByIdentity(ctx context.Context, identityType models.IdentityType, identityID string, limit int, pageToken string) ([]models.IdentityPermission, string, error) {
	var cursor uint64
	if pageToken != "" {
		parsed, err := strconv.ParseUint(pageToken, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token %q: %w", pageToken, err)
		}
		cursor = parsed
	}
	if limit <= 0 {
		limit = 100
	}

	keys, next, err := s.store.SScan(ctx, identityIndexKey(identityType, identityID), cursor, int64(limit))
	if err != nil {
		monitoring.RecordStoreOperation("get_identity_permissions_by_identity", "error")
		return nil, "", fmt.Errorf("scan identity index: %w", err)
	}

	perms, err := s.fetchFacts(ctx, keys)
	if err != nil {
		monitoring.RecordStoreOperation("get_identity_permissions_by_identity", "error")
		return nil, "", err
	}

	nextToken := ""
	if next != 0 {
		nextToken = strconv.FormatUint(next, 10)
	}
	monitoring.RecordStoreOperation("get_identity_permissions_by_identity", "success")
	return perms, nextToken, nil
}

// GetIdentityPermissionsBySubject returns every fact targeting the subject.
func (s *ValkeyStore) GetIdentityPermissionsBySubject(ctx context.Context, subjectType models.SubjectType, subjectID string) ([]models.IdentityPermission, error) {
	keys, err := s.store.SMembers(ctx, subjectIndexKey(subjectType, subjectID))
	if err != nil {
		monitoring.RecordStoreOperation("get_identity_permissions_by_subject", "error")
		return nil, fmt.Errorf("read subject index: %w", err)
	}

	perms, err := s.fetchFacts(ctx, keys)
	if err != nil {
		monitoring.RecordStoreOperation("get_identity_permissions_by_subject", "error")
		return nil, err
	}
	monitoring.RecordStoreOperation("get_identity_permissions_by_subject", "success")
	return perms, nil
}

func (s *ValkeyStore) fetchFacts(ctx context.Context, keys []string) ([]models.IdentityPermission, error) {
	perms := make([]models.IdentityPermission, 0, len(keys))
	for _, key := range keys {
		data, err := s.store.Get(ctx, key)
		if err != nil {
			// Index entry without a fact: deleted concurrently. Skip.
			continue
		}
		var p models.IdentityPermission
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal permission fact %s: %w", key, err)
		}
		perms = append(perms, p)
	}
	return perms, nil
}

// CreateGroup creates a group, failing with KindGroupAlreadyExists on a
// duplicate id.
func (s *ValkeyStore) CreateGroup(ctx context.Context, groupID, description string, actingUser models.AuthenticatedUser) error {
	g := models.Group{
		ID:          groupID,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   actingUser.ID,
	}
	if err := g.Validate(); err != nil {
		monitoring.RecordStoreOperation("create_group", "invalid")
		return err
	}

	ok, err := s.store.SetNX(ctx, groupKey(groupID), g, 0)
	if err != nil {
		monitoring.RecordStoreOperation("create_group", "error")
		return fmt.Errorf("write group: %w", err)
	}
	if !ok {
		monitoring.RecordStoreOperation("create_group", "conflict")
		return NewGroupAlreadyExistsError(groupID)
	}

	monitoring.RecordStoreOperation("create_group", "success")
	return nil
}

// DeleteGroup removes a group, its membership set, and each member's reverse
// mapping. Fails with KindGroupNotFound if the group is absent.
func (s *ValkeyStore) DeleteGroup(ctx context.Context, groupID string, actingUser models.AuthenticatedUser) error {
	n, err := s.store.Exists(ctx, groupKey(groupID))
	if err != nil {
		monitoring.RecordStoreOperation("delete_group", "error")
		return fmt.Errorf("check group: %w", err)
	}
	if n == 0 {
		monitoring.RecordStoreOperation("delete_group", "not_found")
		return NewGroupNotFoundError(groupID)
	}

	members, err := s.store.SMembers(ctx, groupMembersKey(groupID))
	if err != nil {
		monitoring.RecordStoreOperation("delete_group", "error")
		return fmt.Errorf("read group members: %w", err)
	}
	for _, userID := range members {
		if err := s.store.SRem(ctx, userGroupsKey(userID), groupID); err != nil {
			monitoring.RecordStoreOperation("delete_group", "error")
			return fmt.Errorf("remove group from user %s: %w", userID, err)
		}
	}

	if err := s.store.Delete(ctx, groupKey(groupID), groupMembersKey(groupID)); err != nil {
		monitoring.RecordStoreOperation("delete_group", "error")
		return fmt.Errorf("delete group: %w", err)
	}

	monitoring.RecordStoreOperation("delete_group", "success")
	return nil
}

// AddUserToGroup adds the user to the group's membership set and the group to
// the user's group set. The group must exist.
func (s *ValkeyStore) AddUserToGroup(ctx context.Context, groupID, userID string, actingUser models.AuthenticatedUser) error {
	n, err := s.store.Exists(ctx, groupKey(groupID))
	if err != nil {
		monitoring.RecordStoreOperation("add_user_to_group", "error")
		return fmt.Errorf("check group: %w", err)
	}
	if n == 0 {
		monitoring.RecordStoreOperation("add_user_to_group", "not_found")
		return NewGroupNotFoundError(groupID)
	}

	if err := s.store.SAdd(ctx, groupMembersKey(groupID), userID); err != nil {
		monitoring.RecordStoreOperation("add_user_to_group", "error")
		return fmt.Errorf("add member: %w", err)
	}
	if err := s.store.SAdd(ctx, userGroupsKey(userID), groupID); err != nil {
		monitoring.RecordStoreOperation("add_user_to_group", "error")
		return fmt.Errorf("add user group: %w", err)
	}

	monitoring.RecordStoreOperation("add_user_to_group", "success")
	return nil
}

// RemoveUserFromGroup is idempotent; removing an absent membership succeeds.
func (s *ValkeyStore) RemoveUserFromGroup(ctx context.Context, groupID, userID string, actingUser models.AuthenticatedUser) error {
	if err := s.store.SRem(ctx, groupMembersKey(groupID), userID); err != nil {
		monitoring.RecordStoreOperation("remove_user_from_group", "error")
		return fmt.Errorf("remove member: %w", err)
	}
	if err := s.store.SRem(ctx, userGroupsKey(userID), groupID); err != nil {
		monitoring.RecordStoreOperation("remove_user_from_group", "error")
		return fmt.Errorf("remove user group: %w", err)
	}
	monitoring.RecordStoreOperation("remove_user_from_group", "success")
	return nil
}

// GetUserGroups returns the group ids the user belongs to.
func (s *ValkeyStore) GetUserGroups(ctx context.Context, userID string) ([]string, error) {
	groups, err := s.store.SMembers(ctx, userGroupsKey(userID))
	if err != nil {
		monitoring.RecordStoreOperation("get_user_groups", "error")
		return nil, fmt.Errorf("read user groups: %w", err)
	}
	monitoring.RecordStoreOperation("get_user_groups", "success")
	return groups, nil
}

// GetGroupUsers returns the user ids belonging to the group.
func (s *ValkeyStore) GetGroupUsers(ctx context.Context, groupID string) ([]string, error) {
	users, err := s.store.SMembers(ctx, groupMembersKey(groupID))
	if err != nil {
		monitoring.RecordStoreOperation("get_group_users", "error")
		return nil, fmt.Errorf("read group members: %w", err)
	}
	monitoring.RecordStoreOperation("get_group_users", "success")
	return users, nil
}
