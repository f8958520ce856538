package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/researchops/workbench-authz/pkg/logger"
)

// noopValkeyStore provides an in-memory, process-local fallback that satisfies
// ValkeyStore when the external store is unavailable. It is best-effort and
// intended for development and tests; data is not shared across replicas and
// is lost on restart.
type noopValkeyStore struct {
	m      map[string][]byte
	sets   map[string]map[string]struct{}
	mu     sync.RWMutex
	logger logger.Logger
}

func NewNoopValkeyStore(log logger.Logger) ValkeyStore {
	if log != nil {
		log.Warn("Valkey unavailable; using in-memory fallback (noop)")
	}
	return &noopValkeyStore{
		m:      make(map[string][]byte),
		sets:   make(map[string]map[string]struct{}),
		logger: log,
	}
}

func (n *noopValkeyStore) Get(ctx context.Context, key string) ([]byte, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	b, ok := n.m[key]
	if !ok {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return b, nil
}

func (n *noopValkeyStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := n.encode(value)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.m[key] = b
	n.mu.Unlock()
	return nil
}

func (n *noopValkeyStore) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	b, err := n.encode(value)
	if err != nil {
		return false, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.m[key]; exists {
		return false, nil
	}
	n.m[key] = b
	return true, nil
}

func (n *noopValkeyStore) Delete(ctx context.Context, keys ...string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, key := range keys {
		delete(n.m, key)
		delete(n.sets, key)
	}
	return nil
}

func (n *noopValkeyStore) Exists(ctx context.Context, keys ...string) (int64, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var count int64
	for _, key := range keys {
		if _, ok := n.m[key]; ok {
			count++
			continue
		}
		if _, ok := n.sets[key]; ok {
			count++
		}
	}
	return count, nil
}

func (n *noopValkeyStore) SAdd(ctx context.Context, key string, members ...string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.sets[key]
	if !ok {
		set = make(map[string]struct{})
		n.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

func (n *noopValkeyStore) SRem(ctx context.Context, key string, members ...string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.sets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(set, m)
	}
	if len(set) == 0 {
		delete(n.sets, key)
	}
	return nil
}

func (n *noopValkeyStore) SMembers(ctx context.Context, key string) ([]string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	set := n.sets[key]
	members := make([]string, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

// SScan pages through the sorted member list, using the cursor as an offset
// into it. Callers looping on the returned cursor see the same multi-page
// behavior they would against a real server; the cursor is only meaningful
// to the store that issued it, as with real scan cursors.
func (n *noopValkeyStore) SScan(ctx context.Context, key string, cursor uint64, count int64) ([]string, uint64, error) {
	members, err := n.SMembers(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	if cursor >= uint64(len(members)) {
		return nil, 0, nil
	}
	if count <= 0 {
		count = 10
	}
	end := cursor + uint64(count)
	if end >= uint64(len(members)) {
		return members[cursor:], 0, nil
	}
	return members[cursor:end], end, nil
}

// HealthCheck returns an error to indicate no external Valkey connectivity.
func (n *noopValkeyStore) HealthCheck(ctx context.Context) error {
	return fmt.Errorf("valkey noop store in use (external store not connected)")
}

func (n *noopValkeyStore) encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}
