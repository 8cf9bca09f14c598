package resolver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"debridstream/resolverservice/internal/domain"
)

const redisLedgerPrefix = "resolver:ledger:"

// RedisLedgerBackend mirrors ledger entries in Redis with JSON serialization
// so selection handles stay valid across process restarts.
type RedisLedgerBackend struct {
	client *redis.Client
}

func NewRedisLedgerBackend(client *redis.Client) *RedisLedgerBackend {
	return &RedisLedgerBackend{client: client}
}

func (r *RedisLedgerBackend) Get(ctx context.Context, handle string) ([]domain.Candidate, bool, error) {
	data, err := r.client.Get(ctx, redisLedgerPrefix+handle).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	var candidates []domain.Candidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, false, err
	}
	return candidates, true, nil
}

func (r *RedisLedgerBackend) Set(ctx context.Context, handle string, candidates []domain.Candidate, ttl time.Duration) error {
	data, err := json.Marshal(candidates)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisLedgerPrefix+handle, data, ttl).Err()
}

func (r *RedisLedgerBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
