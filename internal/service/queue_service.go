package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"meal-plan-worker/internal/entity"
)

type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, jobID string) error

	// Retry schedules a redelivery with exponential backoff and returns
	// the attempt count so far (including the failed one).
	Retry(ctx context.Context, jobID string) (int, error)
	Attempts(ctx context.Context, jobID string) (int, error)
	// Forget clears attempt bookkeeping after a definitive outcome.
	Forget(ctx context.Context, jobID string) error

	DeadLetter(ctx context.Context, dl entity.DeadLetter) error
	DeadLetters(ctx context.Context, limit int64) ([]entity.DeadLetter, error)

	// MoveDueRetries promotes backoff entries whose delay elapsed back
	// onto the ready queue.
	MoveDueRetries(ctx context.Context, max int64) (int64, error)
	// RequeueStale returns claimed-but-unacked jobs to the queue
	// (worker crash recovery, at-least-once delivery).
	RequeueStale(ctx context.Context, max int64) (int64, error)
}

type QueueKeys struct {
	Queue      string
	Processing string
	Retry      string
	Attempts   string
	DeadLetter string
}

// redisQueue implements a reliable queue on Redis lists.
// Claim: BRPOPLPUSH queue -> processing
// Ack:   LREM from processing
// Retry: ZADD to a delay ZSet scored by ready time; a pump moves due
//        entries back onto the queue.
type redisQueue struct {
	rdb  *redis.Client
	keys QueueKeys

	backoffBase time.Duration
	backoffMax  time.Duration
}

func NewRedisQueue(rdb *redis.Client, keys QueueKeys, backoffBase time.Duration) Queue {
	if backoffBase <= 0 {
		backoffBase = 30 * time.Second
	}
	return &redisQueue{
		rdb:         rdb,
		keys:        keys,
		backoffBase: backoffBase,
		backoffMax:  15 * time.Minute,
	}
}

func (q *redisQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.rdb.LPush(ctx, q.keys.Queue, jobID).Err()
}

func (q *redisQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	id, err := q.rdb.BRPopLPush(ctx, q.keys.Queue, q.keys.Processing, timeout).Result()
	if err != nil {
		return "", err
	}
	return id, nil
}

func (q *redisQueue) Ack(ctx context.Context, jobID string) error {
	return q.rdb.LRem(ctx, q.keys.Processing, 1, jobID).Err()
}

func (q *redisQueue) Attempts(ctx context.Context, jobID string) (int, error) {
	n, err := q.rdb.HGet(ctx, q.keys.Attempts, jobID).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (q *redisQueue) Retry(ctx context.Context, jobID string) (int, error) {
	attempts, err := q.rdb.HIncrBy(ctx, q.keys.Attempts, jobID, 1).Result()
	if err != nil {
		return 0, err
	}

	readyAt := time.Now().Add(q.backoffDelay(int(attempts)))
	if err := q.rdb.ZAdd(ctx, q.keys.Retry, redis.Z{
		Score:  float64(readyAt.Unix()),
		Member: jobID,
	}).Err(); err != nil {
		return int(attempts), err
	}
	return int(attempts), nil
}

// backoffDelay grows exponentially with the attempt count, capped.
func (q *redisQueue) backoffDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := q.backoffBase << (attempts - 1)
	if d > q.backoffMax || d <= 0 {
		return q.backoffMax
	}
	return d
}

func (q *redisQueue) Forget(ctx context.Context, jobID string) error {
	if err := q.rdb.HDel(ctx, q.keys.Attempts, jobID).Err(); err != nil {
		return err
	}
	return q.rdb.ZRem(ctx, q.keys.Retry, jobID).Err()
}

func (q *redisQueue) DeadLetter(ctx context.Context, dl entity.DeadLetter) error {
	payload, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.keys.DeadLetter, payload).Err(); err != nil {
		return err
	}
	// Attempt bookkeeping is finished for this job; a dead-lettered job
	// is never auto-retried.
	return q.Forget(ctx, dl.JobID)
}

func (q *redisQueue) DeadLetters(ctx context.Context, limit int64) ([]entity.DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}
	raw, err := q.rdb.LRange(ctx, q.keys.DeadLetter, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]entity.DeadLetter, 0, len(raw))
	for _, item := range raw {
		var dl entity.DeadLetter
		if err := json.Unmarshal([]byte(item), &dl); err != nil {
			continue
		}
		out = append(out, dl)
	}
	return out, nil
}

func (q *redisQueue) MoveDueRetries(ctx context.Context, max int64) (int64, error) {
	now := time.Now().Unix()
	ids, err := q.rdb.ZRangeByScore(ctx, q.keys.Retry, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now),
		Count: max,
	}).Result()
	if err != nil {
		return 0, err
	}

	var moved int64
	for _, id := range ids {
		removed, err := q.rdb.ZRem(ctx, q.keys.Retry, id).Result()
		if err != nil {
			return moved, err
		}
		// Another pump instance may have raced us; only the one that
		// removed the member re-enqueues.
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, q.keys.Queue, id).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func (q *redisQueue) RequeueStale(ctx context.Context, max int64) (int64, error) {
	var moved int64
	for i := int64(0); i < max; i++ {
		id, err := q.rdb.RPopLPush(ctx, q.keys.Processing, q.keys.Queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return moved, err
		}
		if id != "" {
			moved++
		}
	}
	return moved, nil
}
