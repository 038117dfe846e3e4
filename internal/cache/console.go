package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cargoyard/cargoyard/internal/model"
)

const (
	flashKeyPrefix      = "console:flash:"
	transitionKeyPrefix = "console:transition:"
)

// ConsoleState keeps per-session console state: flash notifications and
// the navigation saved by the admin guard. Keys are derived from a hash of
// the operator's session, never the raw cookie.
type ConsoleState struct {
	cache  *Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewConsoleState creates a ConsoleState whose entries expire after ttl.
func NewConsoleState(c *Cache, ttl time.Duration, logger *slog.Logger) *ConsoleState {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleState{cache: c, ttl: ttl, logger: logger}
}

// Notify appends a notification to the session's flash list.
func (s *ConsoleState) Notify(ctx context.Context, sessionKey string, n model.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	key := flashKeyPrefix + sessionKey
	pipe := s.cache.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	return nil
}

// Flashes returns and clears the session's pending notifications.
func (s *ConsoleState) Flashes(ctx context.Context, sessionKey string) ([]model.Notification, error) {
	key := flashKeyPrefix + sessionKey

	var items *redis.StringSliceCmd
	_, err := s.cache.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		items = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}

	return decodeNotifications(items.Val(), s.logger), nil
}

// decodeNotifications skips entries that are not valid notifications.
func decodeNotifications(raw []string, logger *slog.Logger) []model.Notification {
	out := make([]model.Notification, 0, len(raw))
	for i, item := range raw {
		var n model.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			logger.Warn("dropping undecodable flash notification",
				slog.Int("index", i),
				slog.Int("bytes", len(item)),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, n)
	}
	return out
}

// SaveTransition stores the navigation target to resume after login.
func (s *ConsoleState) SaveTransition(ctx context.Context, sessionKey, target string) error {
	if err := s.cache.client.Set(ctx, transitionKeyPrefix+sessionKey, target, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save transition: %w", err)
	}
	return nil
}

// PopTransition returns and removes the saved navigation target.
// Returns ErrCacheMiss when nothing was saved.
func (s *ConsoleState) PopTransition(ctx context.Context, sessionKey string) (string, error) {
	target, err := s.cache.client.GetDel(ctx, transitionKeyPrefix+sessionKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("failed to pop transition: %w", err)
	}
	return target, nil
}
