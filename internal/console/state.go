package console

import (
	"context"
	"log/slog"

	"github.com/cargoyard/cargoyard/internal/model"
)

// StateStore holds per-session console state. *cache.ConsoleState
// implements it on Redis.
type StateStore interface {
	Notify(ctx context.Context, sessionKey string, n model.Notification) error
	Flashes(ctx context.Context, sessionKey string) ([]model.Notification, error)
	SaveTransition(ctx context.Context, sessionKey, target string) error
	PopTransition(ctx context.Context, sessionKey string) (string, error)
}

// Notifier shows one-shot messages to the operator.
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

// flashNotifier queues notifications for the next page the session loads.
type flashNotifier struct {
	state      StateStore
	sessionKey string
	logger     *slog.Logger
}

func (n *flashNotifier) Success(ctx context.Context, message string) {
	n.push(ctx, model.Notification{Level: model.NotificationSuccess, Message: message})
}

func (n *flashNotifier) Error(ctx context.Context, message string) {
	n.push(ctx, model.Notification{Level: model.NotificationError, Message: message})
}

func (n *flashNotifier) push(ctx context.Context, note model.Notification) {
	if err := n.state.Notify(ctx, n.sessionKey, note); err != nil {
		n.logger.WarnContext(ctx, "failed to queue notification",
			"level", note.Level,
			"error", err,
		)
	}
}
