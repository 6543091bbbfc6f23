package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// RedisDriver keeps ready jobs in a list (LPUSH/BRPOP) and delayed jobs in
// a sorted set scored by due time in milliseconds. Several worker processes
// may share one Redis; promotion of due jobs is atomic so each runs once.
type RedisDriver struct {
	rdb     *redis.Client
	ready   string
	delayed string
	block   time.Duration
}

// promote moves up to ARGV[2] members scored <= ARGV[1] from KEYS[1] to KEYS[2].
var promote = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, job in ipairs(due) do
  redis.call('ZREM', KEYS[1], job)
  redis.call('LPUSH', KEYS[2], job)
end
return #due
`)

// NewRedisDriver namespaces its keys under prefix ("storefront" when empty).
// Call Run in one goroutine per process to promote delayed jobs.
func NewRedisDriver(rdb *redis.Client, prefix ...string) *RedisDriver {
	p := "storefront"
	if len(prefix) > 0 && prefix[0] != "" {
		p = prefix[0]
	}
	return &RedisDriver{
		rdb:     rdb,
		ready:   p + ":queue:jobs",
		delayed: p + ":queue:delayed",
		block:   5 * time.Second,
	}
}

func (d *RedisDriver) Push(ctx context.Context, payload []byte) error {
	if err := d.rdb.LPush(ctx, d.ready, payload).Err(); err != nil {
		return fmt.Errorf("queue/redis: push: %w", err)
	}
	return nil
}

// Pop blocks for up to five seconds. (nil, nil) means nothing arrived.
func (d *RedisDriver) Pop(ctx context.Context) ([]byte, error) {
	res, err := d.rdb.BRPop(ctx, d.block, d.ready).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("queue/redis: pop: %w", err)
	case len(res) < 2:
		return nil, nil
	}
	return []byte(res[1]), nil
}

func (d *RedisDriver) PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error {
	due := time.Now().Add(delay).UnixMilli()
	if err := d.rdb.ZAdd(ctx, d.delayed, redis.Z{Score: float64(due), Member: payload}).Err(); err != nil {
		return fmt.Errorf("queue/redis: push delayed: %w", err)
	}
	return nil
}

// Promote moves jobs due by now onto the ready list and reports how many.
func (d *RedisDriver) Promote(ctx context.Context, now time.Time) (int, error) {
	n, err := promote.Run(ctx, d.rdb, []string{d.delayed, d.ready},
		strconv.FormatInt(now.UnixMilli(), 10), 500).Int()
	if err != nil {
		return 0, fmt.Errorf("queue/redis: promote: %w", err)
	}
	return n, nil
}

// Len reports ready and delayed job counts.
func (d *RedisDriver) Len(ctx context.Context) (ready, delayed int64, err error) {
	pipe := d.rdb.Pipeline()
	r := pipe.LLen(ctx, d.ready)
	z := pipe.ZCard(ctx, d.delayed)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("queue/redis: len: %w", err)
	}
	return r.Val(), z.Val(), nil
}

// Run promotes due jobs every second until ctx is done.
func (d *RedisDriver) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := d.Promote(ctx, now); err != nil && ctx.Err() == nil {
				logger.Warn("queue: delayed promotion failed", "error", err)
			}
		}
	}
}
