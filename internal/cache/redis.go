// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list finished matches are pushed onto.
const DefaultQueueName = "codearena_results"

// Connect opens a Redis client and checks it with a PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ResultQueue is a Redis list of MatchRecords. The server pushes, the
// historian pops.
type ResultQueue struct {
	rdb  *redis.Client
	name string
}

func NewResultQueue(rdb *redis.Client, name string) *ResultQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &ResultQueue{rdb: rdb, name: name}
}

// PublishMatch serializes rec and RPushes it onto the queue.
func (q *ResultQueue) PublishMatch(ctx context.Context, rec models.MatchRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal MatchRecord: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// ErrBadRecord marks a payload that could not be decoded. The payload is gone
// from the queue either way.
var ErrBadRecord = errors.New("invalid match record")

// Pop waits up to timeout for the next record. It returns nil, nil when the
// queue stayed empty.
func (q *ResultQueue) Pop(ctx context.Context, timeout time.Duration) (*models.MatchRecord, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", q.name, err)
	}
	// res[0] is the list name, res[1] the payload
	if len(res) < 2 {
		return nil, nil
	}
	var rec models.MatchRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	return &rec, nil
}

// Len is the number of records waiting.
func (q *ResultQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.name).Result()
}
