package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures from the Redis backend.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisBackend stores entries as plain keys under "<namespace>:<entry>".
// The client is owned by the caller and is not closed by the backend.
type RedisBackend struct {
	redis     redis.UniversalClient
	namespace string
}

// NewRedisBackend returns a backend bound to namespace. An empty namespace
// defaults to "authsession".
func NewRedisBackend(client redis.UniversalClient, namespace string) (*RedisBackend, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = "authsession"
	}
	return &RedisBackend{redis: client, namespace: namespace}, nil
}

func (r *RedisBackend) key(name string) string {
	return r.namespace + ":" + name
}

func (r *RedisBackend) Get(ctx context.Context, name string) ([]byte, bool, error) {
	data, err := r.redis.Get(ctx, r.key(name)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s: %v", ErrRedisUnavailable, name, err)
	}
	return data, true, nil
}

// GetEntries reads every name with a single MGET.
func (r *RedisBackend) GetEntries(ctx context.Context, names ...string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(names))
	if len(names) == 0 {
		return out, nil
	}
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = r.key(name)
	}
	values, err := r.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: mget: %v", ErrRedisUnavailable, err)
	}
	for i, v := range values {
		switch val := v.(type) {
		case string:
			out[names[i]] = []byte(val)
		case []byte:
			out[names[i]] = val
		}
	}
	return out, nil
}

// SetEntries writes every entry inside one MULTI/EXEC.
func (r *RedisBackend) SetEntries(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, r.key(e.Name), e.Value, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: set entries: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = r.key(name)
	}
	if err := r.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: delete: %v", ErrRedisUnavailable, err)
	}
	return nil
}
