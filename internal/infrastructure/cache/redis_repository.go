package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"swapStreamApp/internal/domain/model"
	"swapStreamApp/internal/domain/repository"
)

const keyPrefix = "bridge:stats:"

// RedisRepository implements the BridgeStatsCache interface using Redis as the backend.
// Entries expire so a feed that stopped reporting disappears on its own.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(addr, password string, db int, ttl time.Duration) *RedisRepository {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisRepository{client: client, ttl: ttl}
}

// Ensure RedisRepository implements the BridgeStatsCache interface
var _ repository.BridgeStatsCache = (*RedisRepository)(nil)

// Ping checks that the server is reachable.
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) SaveBridgeStats(ctx context.Context, stats *model.BridgeStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal bridge stats: %w", err)
	}

	return r.client.Set(ctx, keyPrefix+stats.Feed, data, r.ttl).Err()
}

func (r *RedisRepository) GetBridgeStats(ctx context.Context, feed string) (*model.BridgeStats, error) {
	data, err := r.client.Get(ctx, keyPrefix+feed).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var stats model.BridgeStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bridge stats: %w", err)
	}

	return &stats, nil
}

func (r *RedisRepository) GetAllBridgeStats(ctx context.Context) ([]*model.BridgeStats, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		return []*model.BridgeStats{}, nil
	}

	// Get all values in a pipeline for efficiency
	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}

	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	result := make([]*model.BridgeStats, 0, len(keys))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue // expired between SCAN and GET
		}

		var stats model.BridgeStats
		if err := json.Unmarshal([]byte(data), &stats); err != nil {
			continue // Skip malformed data
		}

		result = append(result, &stats)
	}

	return result, nil
}

// Close releases the connection pool.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
