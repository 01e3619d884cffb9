package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseIfOwner deletes the lease only while it still carries the caller's token,
// so an expired holder cannot free a lease someone else has since taken.
var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLease takes the named lease for ttl. The returned token is needed to release it.
func (c *Client) AcquireLease(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.SetNX(ctx, c.LockKey(name), token, ttl)
	if err != nil {
		return "", false, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLease reports whether the lease was still held by token.
func (c *Client) ReleaseLease(ctx context.Context, name, token string) (bool, error) {
	if c.scripter == nil {
		return false, errNotConnected
	}
	n, err := releaseIfOwner.Run(ctx, c.scripter, []string{c.LockKey(name)}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("release lease %s: %w", name, err)
	}
	return n == 1, nil
}
