package cache

import (
	"context"
	"errors"
	"fmt"

	"pleia/db"

	"github.com/redis/go-redis/v9"
)

// ReferralKey builds the Redis key counting signups for a referral code.
func ReferralKey(code string) string {
	return fmt.Sprintf("referral:%s", code)
}

// CreditReferral increments the signup counter for a referral code and
// returns the new count. The counter is a fast mirror of the newsletter
// table; the table is the source of truth.
func CreditReferral(ctx context.Context, code string) (int64, error) {
	if db.RedisClient == nil {
		return 0, fmt.Errorf("Redis client not initialized")
	}

	n, err := db.RedisClient.Incr(ctx, ReferralKey(code)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to credit referral %s: %w", code, err)
	}
	return n, nil
}

// ReferralCount reads the current counter, returning 0 when the key is
// absent.
func ReferralCount(ctx context.Context, code string) (int64, error) {
	if db.RedisClient == nil {
		return 0, fmt.Errorf("Redis client not initialized")
	}

	n, err := db.RedisClient.Get(ctx, ReferralKey(code)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read referral count for %s: %w", code, err)
	}
	return n, nil
}

// SetReferralCount overwrites the counter, used to resync from the table.
func SetReferralCount(ctx context.Context, code string, n int64) error {
	if db.RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if err := db.RedisClient.Set(ctx, ReferralKey(code), n, 0).Err(); err != nil {
		return fmt.Errorf("failed to set referral count for %s: %w", code, err)
	}
	return nil
}
