package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cargoyard/cargoyard/internal/model"
)

const (
	userKeyPrefix  = "session:user:"
	tokenKeyPrefix = "auth:token:"

	// tokenCacheTTL bounds how long a revoked token may keep working.
	tokenCacheTTL = 5 * time.Minute
)

// cachedUser is the Redis form of model.User. Lock fields are hidden from
// the API JSON of User, so the cache carries them explicitly.
type cachedUser struct {
	ID                   int64      `json:"id"`
	Login                string     `json:"login"`
	Name                 *string    `json:"name,omitempty"`
	Avatar               *string    `json:"avatar,omitempty"`
	IsAdmin              bool       `json:"is_admin"`
	PublishNotifications bool       `json:"publish_notifications"`
	LockReason           *string    `json:"lock_reason,omitempty"`
	LockUntil            *time.Time `json:"lock_until,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

func userKey(userID int64) string {
	return userKeyPrefix + strconv.FormatInt(userID, 10)
}

// GetUser returns the cached session user. Returns ErrCacheMiss when absent.
func (c *Cache) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	data, err := c.client.Get(ctx, userKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cu cachedUser
	if err := json.Unmarshal(data, &cu); err != nil {
		// Corrupted entry, treat as miss
		return nil, ErrCacheMiss
	}

	return &model.User{
		ID:                   cu.ID,
		Login:                cu.Login,
		Name:                 cu.Name,
		Avatar:               cu.Avatar,
		IsAdmin:              cu.IsAdmin,
		PublishNotifications: cu.PublishNotifications,
		LockReason:           cu.LockReason,
		LockUntil:            cu.LockUntil,
		CreatedAt:            cu.CreatedAt,
	}, nil
}

// SetUser caches a session user for ttl.
func (c *Cache) SetUser(ctx context.Context, user *model.User, ttl time.Duration) error {
	data, err := json.Marshal(cachedUser{
		ID:                   user.ID,
		Login:                user.Login,
		Name:                 user.Name,
		Avatar:               user.Avatar,
		IsAdmin:              user.IsAdmin,
		PublishNotifications: user.PublishNotifications,
		LockReason:           user.LockReason,
		LockUntil:            user.LockUntil,
		CreatedAt:            user.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	if err := c.client.Set(ctx, userKey(user.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache user: %w", err)
	}
	return nil
}

// InvalidateUser drops the cached session user. Called after lock, unlock
// and profile changes so the next request sees fresh state.
func (c *Cache) InvalidateUser(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, userKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate user: %w", err)
	}
	return nil
}

// TokenAuth is the cached result of verifying an API token.
type TokenAuth struct {
	TokenID string
	UserID  int64
}

// GetTokenAuth looks up a verified token by the hash of its plaintext.
func (c *Cache) GetTokenAuth(ctx context.Context, tokenHash string) (*TokenAuth, error) {
	result, err := c.client.HGetAll(ctx, tokenKeyPrefix+tokenHash).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(result) == 0 {
		return nil, ErrCacheMiss
	}

	userID, err := strconv.ParseInt(result["user_id"], 10, 64)
	if err != nil || result["token_id"] == "" {
		return nil, ErrCacheMiss
	}
	return &TokenAuth{TokenID: result["token_id"], UserID: userID}, nil
}

// SetTokenAuth caches a verified token so the Argon2 check is skipped on
// subsequent requests.
func (c *Cache) SetTokenAuth(ctx context.Context, tokenHash string, auth *TokenAuth) error {
	key := tokenKeyPrefix + tokenHash

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"token_id": auth.TokenID,
		"user_id":  strconv.FormatInt(auth.UserID, 10),
	})
	pipe.Expire(ctx, key, tokenCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache token auth: %w", err)
	}
	return nil
}

// DeleteTokenAuth removes a cached token verification.
func (c *Cache) DeleteTokenAuth(ctx context.Context, tokenHash string) error {
	return c.client.Del(ctx, tokenKeyPrefix+tokenHash).Err()
}
