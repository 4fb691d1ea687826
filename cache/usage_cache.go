package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pleia/db"

	"github.com/redis/go-redis/v9"
)

// Monthly tallies stay around a little past the month boundary so a
// request straddling midnight still finds its key.
const usageTallyTTL = 35 * 24 * time.Hour

// UsageKey builds the per-user monthly tally key.
func UsageKey(userID int64, month time.Time) string {
	return fmt.Sprintf("usage:month:%d:%s", userID, month.Format("2006-01"))
}

// IncrUsage bumps the monthly tally by units and returns the new value.
// The tally mirrors the SQL ledger for cheap limit checks; the ledger is
// the source of truth.
func IncrUsage(ctx context.Context, userID int64, month time.Time, units int) (int64, error) {
	if db.RedisClient == nil {
		return 0, fmt.Errorf("Redis client not initialized")
	}

	key := UsageKey(userID, month)
	n, err := db.RedisClient.IncrBy(ctx, key, int64(units)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage tally: %w", err)
	}
	if err := db.RedisClient.Expire(ctx, key, usageTallyTTL).Err(); err != nil {
		return n, fmt.Errorf("failed to set usage tally expiration: %w", err)
	}
	return n, nil
}

// DecrUsage reverses a tally increment after a refund. Best-effort; a
// missing key is not an error.
func DecrUsage(ctx context.Context, userID int64, month time.Time, units int) error {
	if db.RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if err := db.RedisClient.DecrBy(ctx, UsageKey(userID, month), int64(units)).Err(); err != nil {
		return fmt.Errorf("failed to decrement usage tally: %w", err)
	}
	return nil
}

// GetUsage reads the monthly tally, returning (0, false, nil) when the key
// is absent so callers can fall back to the ledger.
func GetUsage(ctx context.Context, userID int64, month time.Time) (int, bool, error) {
	if db.RedisClient == nil {
		return 0, false, fmt.Errorf("Redis client not initialized")
	}

	n, err := db.RedisClient.Get(ctx, UsageKey(userID, month)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read usage tally: %w", err)
	}
	return int(n), true, nil
}

// SetUsage overwrites the tally, used to resync from the ledger.
func SetUsage(ctx context.Context, userID int64, month time.Time, units int) error {
	if db.RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if err := db.RedisClient.Set(ctx, UsageKey(userID, month), units, usageTallyTTL).Err(); err != nil {
		return fmt.Errorf("failed to set usage tally: %w", err)
	}
	return nil
}
