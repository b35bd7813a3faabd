package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a list-backed queue: LPUSH to enqueue, BRPOP to dequeue,
// so jobs leave in arrival order.
type RedisQueue struct {
	rdb  redis.Cmdable
	key  string
	poll time.Duration
}

func NewRedisQueue(rdb redis.Cmdable, key string, poll time.Duration) *RedisQueue {
	if poll <= 0 {
		poll = time.Second
	}
	return &RedisQueue{rdb: rdb, key: key, poll: poll}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	b, err := encode(job)
	if err != nil {
		return fmt.Errorf("queue: encode job: %w", err)
	}
	return q.rdb.LPush(ctx, q.key, b).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Job, bool, error) {
	res, err := q.rdb.BRPop(ctx, q.poll, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return Job{}, false, ctx.Err()
		}
		return Job{}, false, err
	}
	// res = [key, value]
	if len(res) != 2 {
		return Job{}, false, fmt.Errorf("queue: unexpected BRPOP reply of %d items", len(res))
	}
	job, err := decode([]byte(res[1]))
	if err != nil {
		return Job{}, false, fmt.Errorf("queue: decode job: %w", err)
	}
	return job, true, nil
}

// Len reports the backlog size.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
