package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cargoyard/cargoyard/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrLoginExists   = errors.New("login already exists")
	ErrEmailNotFound = errors.New("email not found")
)

const userColumns = `
	u.id, u.gh_login, u.name, u.gh_avatar, u.is_admin, u.publish_notifications,
	u.account_lock_reason, u.account_lock_until, u.created_at
`

// CreateUser inserts a new user and fills in its ID and CreatedAt.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (gh_login, name, gh_avatar, is_admin, publish_notifications)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		user.Login,
		user.Name,
		user.Avatar,
		user.IsAdmin,
		user.PublishNotifications,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrLoginExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetAdminUserByLogin retrieves the admin view of a user, matching the
// login case-insensitively.
func (r *Repository) GetAdminUserByLogin(ctx context.Context, login string) (*model.AdminUser, error) {
	return r.getAdminUser(ctx, r.pool, login)
}

// LockUser sets the account lock of the user with login and returns the
// updated admin view. The read and write share one transaction.
func (r *Repository) LockUser(ctx context.Context, login, reason string, until *time.Time) (*model.AdminUser, error) {
	var result *model.AdminUser
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		user, err := r.getAdminUser(ctx, tx, login)
		if err != nil {
			return err
		}

		query := `
			UPDATE users
			SET account_lock_reason = $2, account_lock_until = $3
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, query, user.ID, reason, until); err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}

		user.LockReason = &reason
		user.LockUntil = until
		result = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UnlockUser ends the lock of the user with login by setting its expiry
// to now. The reason is kept as history.
func (r *Repository) UnlockUser(ctx context.Context, login string, now time.Time) (*model.AdminUser, error) {
	var result *model.AdminUser
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		user, err := r.getAdminUser(ctx, tx, login)
		if err != nil {
			return err
		}

		query := `UPDATE users SET account_lock_until = $2 WHERE id = $1`
		if _, err := tx.Exec(ctx, query, user.ID, now); err != nil {
			return fmt.Errorf("failed to unlock user: %w", err)
		}

		user.LockUntil = &now
		result = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdatePublishNotifications sets the user's publish notification preference.
func (r *Repository) UpdatePublishNotifications(ctx context.Context, userID int64, enabled bool) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE users SET publish_notifications = $2 WHERE id = $1`,
		userID, enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to update publish notifications: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpsertEmail replaces the user's email address with an unverified one
// carrying a fresh verification token.
func (r *Repository) UpsertEmail(ctx context.Context, userID int64, email, token string, now time.Time) error {
	query := `
		INSERT INTO emails (user_id, email, verified, token, token_generated_at)
		VALUES ($1, $2, FALSE, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			verified = FALSE,
			token = EXCLUDED.token,
			token_generated_at = EXCLUDED.token_generated_at
	`

	if _, err := r.pool.Exec(ctx, query, userID, email, token, now); err != nil {
		return fmt.Errorf("failed to upsert email: %w", err)
	}
	return nil
}

// RegenerateEmailToken issues a new verification token for the user's
// email and returns the email record.
func (r *Repository) RegenerateEmailToken(ctx context.Context, userID int64, token string, now time.Time) (*model.Email, error) {
	query := `
		UPDATE emails
		SET token = $2, token_generated_at = $3
		WHERE user_id = $1
		RETURNING user_id, email, verified, token, token_generated_at
	`

	var email model.Email
	err := r.pool.QueryRow(ctx, query, userID, token, now).Scan(
		&email.UserID,
		&email.Email,
		&email.Verified,
		&email.Token,
		&email.TokenGeneratedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmailNotFound
		}
		return nil, fmt.Errorf("failed to regenerate email token: %w", err)
	}
	return &email, nil
}

// TotalDownloads sums downloads over all crates the user owns.
func (r *Repository) TotalDownloads(ctx context.Context, userID int64) (int64, error) {
	query := `
		SELECT COALESCE(SUM(c.downloads), 0)::bigint
		FROM crates c
		JOIN crate_owners o ON o.crate_id = c.id
		WHERE o.owner_id = $1
	`

	var total int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum downloads: %w", err)
	}
	return total, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repository) getAdminUser(ctx context.Context, q querier, login string) (*model.AdminUser, error) {
	query := `
		SELECT ` + userColumns + `,
			e.email,
			COALESCE(e.verified, FALSE),
			COALESCE(e.verified, FALSE) OR e.token_generated_at IS NOT NULL
		FROM users u
		LEFT JOIN emails e ON e.user_id = u.id
		WHERE lower(u.gh_login) = lower($1)
	`

	var u model.AdminUser
	err := q.QueryRow(ctx, query, login).Scan(
		&u.ID,
		&u.Login,
		&u.Name,
		&u.Avatar,
		&u.IsAdmin,
		&u.PublishNotifications,
		&u.LockReason,
		&u.LockUntil,
		&u.CreatedAt,
		&u.Email,
		&u.EmailVerified,
		&u.EmailVerificationSent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}
	return &u, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Login,
		&u.Name,
		&u.Avatar,
		&u.IsAdmin,
		&u.PublishNotifications,
		&u.LockReason,
		&u.LockUntil,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
