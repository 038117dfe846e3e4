// Command mint-session prints a session cookie value or a fresh API token for
// an existing registry user. With -create it inserts the user first.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cargoyard/cargoyard/internal/auth"
	"github.com/cargoyard/cargoyard/internal/model"
	"github.com/cargoyard/cargoyard/internal/repository"
)

type output struct {
	UserID  int64  `json:"user_id"`
	Login   string `json:"login"`
	IsAdmin bool   `json:"is_admin"`
	Mode    string `json:"mode"`
	Cookie  string `json:"cookie,omitempty"`
	TokenID string `json:"token_id,omitempty"`
	Value   string `json:"value"`
}

func main() {
	var (
		databaseURL   = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		sessionSecret = flag.String("session-secret", os.Getenv("SESSION_SECRET"), "HS256 secret shared with the registry API")
		sessionTTL    = flag.Duration("ttl", 24*time.Hour, "Session lifetime")
		login         = flag.String("login", "", "Login of the user")
		create        = flag.Bool("create", false, "Create the user when it does not exist")
		admin         = flag.Bool("admin", false, "Mark a created user as admin")
		mode          = flag.String("mode", "session", "What to mint: session or token")
		name          = flag.String("name", "bootstrap", "API token name (token mode)")
		format        = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fail("DATABASE_URL is required")
	}
	if strings.TrimSpace(*login) == "" {
		fail("-login is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fail("connect database:", err)
	}
	defer repo.Close()

	user, err := ensureUser(ctx, repo, strings.TrimSpace(*login), *create, *admin)
	if err != nil {
		fail(err)
	}

	out := output{UserID: user.ID, Login: user.Login, IsAdmin: user.IsAdmin, Mode: *mode}

	switch *mode {
	case "session":
		if *sessionSecret == "" {
			fail("SESSION_SECRET is required in session mode")
		}
		value, err := auth.NewSessionManager(*sessionSecret, *sessionTTL).Issue(user.ID, time.Now())
		if err != nil {
			fail("issue session:", err)
		}
		out.Cookie = auth.SessionCookieName
		out.Value = value
	case "token":
		generated, err := auth.GenerateToken()
		if err != nil {
			fail("generate token:", err)
		}
		token := &model.APIToken{
			ID:          ulid.Make().String(),
			UserID:      user.ID,
			Name:        *name,
			TokenHash:   generated.Hash,
			TokenPrefix: generated.Prefix,
			CreatedAt:   time.Now().UTC(),
		}
		if err := repo.CreateAPIToken(ctx, token); err != nil {
			fail("create token:", err)
		}
		out.TokenID = token.ID
		out.Value = generated.Plaintext
	default:
		fail("invalid mode; use session or token")
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Value)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fail("invalid format; use plain or json")
	}
}

func ensureUser(ctx context.Context, repo *repository.Repository, login string, create, admin bool) (*model.User, error) {
	existing, err := repo.GetAdminUserByLogin(ctx, login)
	if err == nil {
		return &existing.User, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if !create {
		return nil, fmt.Errorf("user %s does not exist; pass -create to add it", login)
	}

	user := &model.User{Login: login, IsAdmin: admin, PublishNotifications: true}
	if err := repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func fail(args ...any) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}
