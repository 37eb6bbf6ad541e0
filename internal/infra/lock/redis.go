package lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var ErrNotAcquired = errors.New("lock not acquired")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis serializes keys across processes sharing one redis instance.
type Redis struct {
	rdb   *redis.Client
	ttl   time.Duration
	retry time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{
		rdb:   rdb,
		ttl:   ttl,
		retry: 20 * time.Millisecond,
	}
}

// Lock retries until the key is free or ctx is done. The lock expires after
// the configured ttl if the holder never releases it.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	key = "lock:" + key
	token := uuid.NewString()

	for {
		ok, err := r.rdb.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, errors.Wrap(err, "Lock.Redis: SetNX failed")
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ErrNotAcquired, ctx.Err().Error())
		case <-time.After(r.retry):
		}
	}

	return func() {
		err := releaseScript.Run(context.Background(), r.rdb, []string{key}, token).Err()
		if err != nil {
			slog.Error(
				"failed to release lock",
				slog.String("error", err.Error()),
				slog.String("key", key),
				slog.String("module", "lock"),
			)
		}
	}, nil
}
