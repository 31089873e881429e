package renewal

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const leaseKey = "soilsync:renewal:lease"

// lease is a best-effort single-runner guard across scheduler instances.
// The per-subscription row lock remains the real double-charge barrier; the
// lease just stops overlapping batch runs from burning work.
type lease struct {
	client *redis.Client
	ttl    time.Duration
}

// acquire returns false when another runner holds the lease. The token is
// the run id so a runner only ever releases its own lease.
func (l *lease) acquire(ctx context.Context, token string) (bool, error) {
	return l.client.SetNX(ctx, leaseKey, token, l.ttl).Result()
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *lease) release(ctx context.Context, token string) error {
	return releaseScript.Run(ctx, l.client, []string{leaseKey}, token).Err()
}
