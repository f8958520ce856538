package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/researchops/workbench-authz/internal/monitoring"
)

// ValkeyStore is the primitive key/value and set surface the authorization
// stores are built on. Values passed to Set/SetNX are JSON-marshalled unless
// they are already []byte or string.
type ValkeyStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// SetNX writes the key only if it does not exist. Returns false (and no
	// error) when the key was already present.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (int64, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	// SScan iterates a set incrementally; cursor 0 starts a scan and a
	// returned cursor of 0 ends it.
	SScan(ctx context.Context, key string, cursor uint64, count int64) ([]string, uint64, error)

	HealthCheck(ctx context.Context) error
}

// valkeyStoreImpl implements ValkeyStore against a single-node Valkey/Redis
// instance.
type valkeyStoreImpl struct {
	client *redis.Client
	ttl    time.Duration
}

func NewValkeyStore(addr string, db int, password string, defaultTTL time.Duration) (ValkeyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &valkeyStoreImpl{
		client: client,
		ttl:    defaultTTL,
	}, nil
}

func encodeValue(key string, value interface{}) ([]byte, error) {
	switch x := value.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		j, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %s: %w", key, err)
		}
		return j, nil
	}
}

func (v *valkeyStoreImpl) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := v.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		monitoring.RecordCacheOperation("get", "miss")
		return nil, fmt.Errorf("key not found: %s", key)
	}

	if err != nil {
		monitoring.RecordCacheOperation("get", "error")
		return nil, err
	}

	monitoring.RecordCacheOperation("get", "hit")
	return b, nil
}

func (v *valkeyStoreImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encodeValue(key, value)
	if err != nil {
		monitoring.RecordCacheOperation("set", "error")
		return err
	}
	if ttl <= 0 {
		ttl = v.ttl
	}
	if err := v.client.Set(ctx, key, data, ttl).Err(); err != nil {
		monitoring.RecordCacheOperation("set", "error")
		return err
	}
	monitoring.RecordCacheOperation("set", "success")
	return nil
}

func (v *valkeyStoreImpl) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	data, err := encodeValue(key, value)
	if err != nil {
		monitoring.RecordCacheOperation("setnx", "error")
		return false, err
	}
	ok, err := v.client.SetNX(ctx, key, data, ttl).Result()
	if err != nil {
		monitoring.RecordCacheOperation("setnx", "error")
		return false, err
	}
	monitoring.RecordCacheOperation("setnx", "success")
	return ok, nil
}

func (v *valkeyStoreImpl) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := v.client.Del(ctx, keys...).Err(); err != nil {
		monitoring.RecordCacheOperation("delete", "error")
		return err
	}
	monitoring.RecordCacheOperation("delete", "success")
	return nil
}

func (v *valkeyStoreImpl) Exists(ctx context.Context, keys ...string) (int64, error) {
	n, err := v.client.Exists(ctx, keys...).Result()
	if err != nil {
		monitoring.RecordCacheOperation("exists", "error")
		return 0, err
	}
	monitoring.RecordCacheOperation("exists", "success")
	return n, nil
}

func (v *valkeyStoreImpl) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := v.client.SAdd(ctx, key, args...).Err(); err != nil {
		monitoring.RecordCacheOperation("sadd", "error")
		return err
	}
	monitoring.RecordCacheOperation("sadd", "success")
	return nil
}

func (v *valkeyStoreImpl) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := v.client.SRem(ctx, key, args...).Err(); err != nil {
		monitoring.RecordCacheOperation("srem", "error")
		return err
	}
	monitoring.RecordCacheOperation("srem", "success")
	return nil
}

func (v *valkeyStoreImpl) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := v.client.SMembers(ctx, key).Result()
	if err != nil {
		monitoring.RecordCacheOperation("smembers", "error")
		return nil, err
	}
	monitoring.RecordCacheOperation("smembers", "success")
	return members, nil
}

func (v *valkeyStoreImpl) SScan(ctx context.Context, key string, cursor uint64, count int64) ([]string, uint64, error) {
	members, next, err := v.client.SScan(ctx, key, cursor, "", count).Result()
	if err != nil {
		monitoring.RecordCacheOperation("sscan", "error")
		return nil, 0, err
	}
	monitoring.RecordCacheOperation("sscan", "success")
	return members, next, nil
}

func (v *valkeyStoreImpl) HealthCheck(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}
