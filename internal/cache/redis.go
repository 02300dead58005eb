// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list (queue) name for submitted action records.
const DefaultQueueName = "holosync_actions"

// ActionRecord describes one action this client submitted and how it ended.
type ActionRecord struct {
	MatchID     string          `json:"match_id"`
	ActionIndex int             `json:"action_index"`
	ActorID     string          `json:"actor_id"`
	ActionType  string          `json:"action_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Outcome     string          `json:"outcome"` // "ok", "rejected", "refused", "timeout", "error"
	Detail      string          `json:"detail,omitempty"`
	Timestamp   int64           `json:"timestamp"`
}

// Publisher ships action records somewhere durable.
type Publisher interface {
	Publish(ctx context.Context, record ActionRecord) error
	Close() error
}

// RedisPublisher pushes records onto a Redis list for an out-of-process consumer.
type RedisPublisher struct {
	rdb   *redis.Client
	queue string
}

// ConnectRedis connects to addr and verifies the connection.
func ConnectRedis(ctx context.Context, addr string, db int, queue string) (*RedisPublisher, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &RedisPublisher{rdb: rdb, queue: queue}, nil
}

// Publish serializes the record to JSON and RPUSHes it to the queue.
func (p *RedisPublisher) Publish(ctx context.Context, record ActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error { return p.rdb.Close() }

// NopPublisher drops every record. Used when no Redis address is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ActionRecord) error { return nil }
func (NopPublisher) Close() error                                { return nil }

// Recorder numbers records and publishes them without blocking the caller.
type Recorder struct {
	pub    Publisher
	logger *logrus.Logger

	mu    sync.Mutex
	index int
}

func NewRecorder(pub Publisher, logger *logrus.Logger) *Recorder {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Recorder{pub: pub, logger: logger}
}

// Record assigns the next action index and publishes asynchronously with a short timeout.
func (r *Recorder) Record(rec ActionRecord) {
	r.mu.Lock()
	r.index++
	rec.ActionIndex = r.index
	r.mu.Unlock()
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}

	go func(rec ActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.pub.Publish(ctx, rec); err != nil {
			r.logger.WithError(err).WithFields(logrus.Fields{
				"match_id":     rec.MatchID,
				"action_index": rec.ActionIndex,
			}).Warn("failed to publish action record")
		}
	}(rec)
}

// QueueReader pops raw records from the Redis list the publisher writes to.
type QueueReader struct {
	rdb   *redis.Client
	queue string
}

// NewQueueReader wraps an existing client; the caller owns rdb.
func NewQueueReader(rdb *redis.Client, queue string) *QueueReader {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &QueueReader{rdb: rdb, queue: queue}
}

// Pop blocks up to timeout for the next record. It returns (nil, nil) when nothing arrived.
func (q *QueueReader) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", q.queue, err)
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}
