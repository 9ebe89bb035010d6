// Package queue wakes the generation worker through a Redis list. The
// database stays the source of truth; a lost wake-up only delays a job until
// the worker's next poll.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the list jobs are pushed onto.
const DefaultKey = "static_ads:queue"

// listClient is the part of *redis.Client the queue uses.
type listClient interface {
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisQueue pushes job ids on enqueue and pops them in the worker.
type RedisQueue struct {
	rdb listClient
	key string
}

// Connect parses a redis:// or rediss:// URL and pings the server.
func Connect(ctx context.Context, rawURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("queue: parse redis url: %w", err)
	}
	opts.DialTimeout = 10 * time.Second
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("queue: ping redis: %w", err)
	}
	return newRedisQueue(rdb, DefaultKey), nil
}

func newRedisQueue(rdb listClient, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{rdb: rdb, key: key}
}

// Notify announces a newly queued job.
func (q *RedisQueue) Notify(ctx context.Context, jobID string) error {
	if err := q.rdb.LPush(ctx, q.key, jobID).Err(); err != nil {
		return fmt.Errorf("queue: push %s: %w", jobID, err)
	}
	return nil
}

// Wait blocks up to timeout for a wake-up. It returns the announced job id,
// or "" when the timeout elapsed.
func (q *RedisQueue) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("queue: pop: %w", err)
	}
	// res[0] is the list name, res[1] the value.
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}
