package genstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares reload generations across processes. A build pipeline or
// editor bumping a generation in Redis invalidates the asset in every
// process using the same namespace.
// Optionally, a TTL can be applied to generation keys to prevent unbounded
// growth; an expired key reads as generation 0, costing one re-bind.
type Redis struct {
	rdb redis.UniversalClient
	ns  string        // logical namespace; isolates independent caches
	ttl time.Duration // optional TTL for generation keys; 0 disables expiry
}

var _ GenStore = (*Redis)(nil)

// NewRedis creates a Redis-backed generation store without TTL.
func NewRedis(client redis.UniversalClient, namespace string) *Redis {
	return &Redis{rdb: client, ns: namespace}
}

// NewRedisWithTTL creates a Redis-backed generation store with TTL.
// If ttl <= 0, keys do not expire.
func NewRedisWithTTL(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) key(id string) string { return "gen:" + s.ns + ":" + id }

// Snapshot returns the current generation. Missing ids read as 0.
func (s *Redis) Snapshot(ctx context.Context, id string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(id)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis gen parse: %w", err)
	}
	return u, nil
}

// SnapshotMany returns generations for multiple ids. Missing ids map to 0.
func (s *Redis) SnapshotMany(ctx context.Context, ids []string) (map[string]uint64, error) {
	if len(ids) == 0 {
		return map[string]uint64{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]uint64, len(ids))
	for i, v := range vals {
		switch vv := v.(type) {
		case nil:
			out[ids[i]] = 0
		case string:
			u, err := strconv.ParseUint(vv, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("redis gen parse at %s: %w", ids[i], err)
			}
			out[ids[i]] = u
		case []byte:
			u, err := strconv.ParseUint(string(vv), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("redis gen parse at %s: %w", ids[i], err)
			}
			out[ids[i]] = u
		default:
			u, err := strconv.ParseUint(fmt.Sprint(vv), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("redis gen parse at %s: %w", ids[i], err)
			}
			out[ids[i]] = u
		}
	}
	return out, nil
}

// Bump atomically increments the generation and (optionally) refreshes TTL.
// When ttl > 0, INCR + EXPIRE are pipelined in a single round-trip and the
// INCR result is captured from the pipeline.
func (s *Redis) Bump(ctx context.Context, id string) (uint64, error) {
	k := s.key(id)

	if s.ttl <= 0 {
		v, err := s.rdb.Incr(ctx, k).Result()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

// Cleanup is not applicable here (Redis handles expiry if TTL is set).
func (s *Redis) Cleanup(time.Duration) {}

// Close closes the underlying Redis client.
func (s *Redis) Close(ctx context.Context) error { return s.rdb.Close() }
