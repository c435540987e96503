package redisad

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"review_insights/internal/domain"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker hands out exclusive leases with SET NX PX. A lease expires on its
// own if the holder dies.
type Locker struct{ c *redis.Client }

func NewLocker(c *redis.Client) *Locker { return &Locker{c: c} }

// Lock fails fast with domain.ErrLockHeld when another holder owns key.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := l.c.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}
	return func() {
		// release must work even if the run's ctx was cancelled
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.c, []string{key}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("lock release failed")
		}
	}, nil
}
