package service

import (
	"context"
	"log/slog"
)

// Mailer delivers account emails.
type Mailer interface {
	SendVerification(ctx context.Context, to, login, token string) error
	SendNotificationsDisabled(ctx context.Context, to, login string) error
}

// LogMailer writes emails to the log instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("component", "mailer")}
}

// SendVerification logs the confirmation link for to.
func (m *LogMailer) SendVerification(ctx context.Context, to, login, token string) error {
	m.logger.InfoContext(ctx, "verification email",
		"to", to,
		"login", login,
		"confirm_path", "/confirm/"+token,
	)
	return nil
}

// SendNotificationsDisabled logs the publish-notifications opt-out notice.
func (m *LogMailer) SendNotificationsDisabled(ctx context.Context, to, login string) error {
	m.logger.InfoContext(ctx, "publish notifications disabled email", "to", to, "login", login)
	return nil
}
