package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pleia/db"
	"pleia/model"

	"github.com/redis/go-redis/v9"
)

const profileTTL = 15 * time.Minute

// ProfileKey builds the Redis key caching a user's public profile.
func ProfileKey(userID int64) string {
	return fmt.Sprintf("profile:%d", userID)
}

// GetProfile returns the cached profile, or (nil, nil) on a cache miss.
func GetProfile(ctx context.Context, userID int64) (*model.PublicProfile, error) {
	if db.RedisClient == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	raw, err := db.RedisClient.Get(ctx, ProfileKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached profile: %w", err)
	}

	var profile model.PublicProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached profile: %w", err)
	}
	return &profile, nil
}

// SetProfile caches the profile with a short TTL.
func SetProfile(ctx context.Context, profile model.PublicProfile) error {
	if db.RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	if err := db.RedisClient.Set(ctx, ProfileKey(profile.ID), raw, profileTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache profile: %w", err)
	}
	return nil
}

// InvalidateProfile drops the cached profile, e.g. after a plan change or
// terms acceptance.
func InvalidateProfile(ctx context.Context, userID int64) error {
	if db.RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if err := db.RedisClient.Del(ctx, ProfileKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate profile: %w", err)
	}
	return nil
}
