package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cargoyard/cargoyard/internal/model"
)

// Common errors for API token repository operations.
var (
	ErrAPITokenNotFound = errors.New("API token not found")
)

const apiTokenColumns = `id, user_id, name, token_hash, token_prefix, revoked_at, last_used_at, created_at`

// CreateAPIToken inserts a new API token.
func (r *Repository) CreateAPIToken(ctx context.Context, token *model.APIToken) error {
	query := `
		INSERT INTO api_tokens (id, user_id, name, token_hash, token_prefix, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.Name,
		token.TokenHash,
		token.TokenPrefix,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create API token: %w", err)
	}
	return nil
}

// GetAPITokensByPrefix retrieves all active tokens matching a prefix.
// Used during authentication to find candidates for hash verification.
func (r *Repository) GetAPITokensByPrefix(ctx context.Context, prefix string) ([]*model.APIToken, error) {
	query := `SELECT ` + apiTokenColumns + ` FROM api_tokens WHERE token_prefix = $1 AND revoked_at IS NULL`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get API tokens by prefix: %w", err)
	}
	return collectAPITokens(rows)
}

// ListAPITokensByUserID retrieves all tokens for a user, newest first.
func (r *Repository) ListAPITokensByUserID(ctx context.Context, userID int64) ([]*model.APIToken, error) {
	query := `SELECT ` + apiTokenColumns + ` FROM api_tokens WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list API tokens: %w", err)
	}
	return collectAPITokens(rows)
}

// RevokeAPIToken revokes one of the user's active tokens.
func (r *Repository) RevokeAPIToken(ctx context.Context, userID int64, id string) error {
	query := `
		UPDATE api_tokens
		SET revoked_at = $3
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to revoke API token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAPITokenNotFound
	}
	return nil
}

// UpdateAPITokenLastUsed updates the last_used_at timestamp.
// Called asynchronously after successful authentication.
func (r *Repository) UpdateAPITokenLastUsed(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_tokens SET last_used_at = $2 WHERE id = $1`, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update API token last used: %w", err)
	}
	return nil
}

func collectAPITokens(rows pgx.Rows) ([]*model.APIToken, error) {
	defer rows.Close()

	var tokens []*model.APIToken
	for rows.Next() {
		var t model.APIToken
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Name,
			&t.TokenHash,
			&t.TokenPrefix,
			&t.RevokedAt,
			&t.LastUsedAt,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan API token: %w", err)
		}
		tokens = append(tokens, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating API tokens: %w", err)
	}
	return tokens, nil
}
