package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the guard only if it still holds the caller's token,
// so an expired holder never frees a guard taken over by another instance.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SettlementGuard implements ports.SettlementGuard using Redis SET NX PX.
type SettlementGuard struct {
	client *goredis.Client
	prefix string
}

// NewSettlementGuard creates a new Redis-backed settlement guard.
func NewSettlementGuard(client *goredis.Client) *SettlementGuard {
	return &SettlementGuard{
		client: client,
		prefix: "lts:settle:",
	}
}

// Acquire takes the guard for userID. ok is false if another holder owns it.
func (g *SettlementGuard) Acquire(ctx context.Context, userID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	result, err := g.client.SetArgs(ctx, g.prefix+userID, token, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis settlement guard acquire: %w", err)
	}
	if result != "OK" {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the guard if token still owns it.
func (g *SettlementGuard) Release(ctx context.Context, userID string, token string) error {
	if err := releaseScript.Run(ctx, g.client, []string{g.prefix + userID}, token).Err(); err != nil {
		return fmt.Errorf("redis settlement guard release: %w", err)
	}
	return nil
}
