package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cargoyard/cargoyard/internal/auth"
	"github.com/cargoyard/cargoyard/internal/model"
	"github.com/cargoyard/cargoyard/internal/repository"
)

const maxTokenNameLength = 64

// TokenRepository stores API tokens.
type TokenRepository interface {
	CreateAPIToken(ctx context.Context, token *model.APIToken) error
	ListAPITokensByUserID(ctx context.Context, userID int64) ([]*model.APIToken, error)
	RevokeAPIToken(ctx context.Context, userID int64, id string) error
}

// TokenService manages a user's API tokens.
type TokenService struct {
	repo   TokenRepository
	logger *slog.Logger
}

// NewTokenService creates a new TokenService.
func NewTokenService(repo TokenRepository, logger *slog.Logger) *TokenService {
	return &TokenService{repo: repo, logger: logger.With("component", "service.token")}
}

// List returns all tokens of the user, newest first.
func (s *TokenService) List(ctx context.Context, userID int64) ([]*model.APIToken, error) {
	tokens, err := s.repo.ListAPITokensByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}

// Create mints a token for the user. The plaintext is returned once and
// never stored.
func (s *TokenService) Create(ctx context.Context, userID int64, name string) (*model.APIToken, string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxTokenNameLength {
		return nil, "", ErrTokenNameMissing
	}

	generated, err := auth.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	token := &model.APIToken{
		ID:          ulid.Make().String(),
		UserID:      userID,
		Name:        name,
		TokenHash:   generated.Hash,
		TokenPrefix: generated.Prefix,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateAPIToken(ctx, token); err != nil {
		return nil, "", fmt.Errorf("create token: %w", err)
	}

	s.logger.InfoContext(ctx, "api token created", "user_id", userID, "token_id", token.ID, "prefix", token.TokenPrefix)
	return token, generated.Plaintext, nil
}

// Revoke revokes one of the user's tokens.
func (s *TokenService) Revoke(ctx context.Context, userID int64, id string) error {
	if err := s.repo.RevokeAPIToken(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrAPITokenNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("revoke token: %w", err)
	}
	s.logger.InfoContext(ctx, "api token revoked", "user_id", userID, "token_id", id)
	return nil
}
