package model

import "time"

// APIToken is a user-owned credential for non-browser clients.
type APIToken struct {
	ID          string     `json:"id"`
	UserID      int64      `json:"user_id"`
	Name        string     `json:"name"`
	TokenHash   string     `json:"-"`
	TokenPrefix string     `json:"token_prefix"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsRevoked returns true if the token has been revoked.
func (t *APIToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// APITokenResponse is the JSON view of a token without secrets.
type APITokenResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	TokenPrefix string     `json:"token_prefix"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	Revoked     bool       `json:"revoked"`
}

// ToResponse converts an APIToken to APITokenResponse.
func (t *APIToken) ToResponse() APITokenResponse {
	return APITokenResponse{
		ID:          t.ID,
		Name:        t.Name,
		TokenPrefix: t.TokenPrefix,
		CreatedAt:   t.CreatedAt,
		LastUsedAt:  t.LastUsedAt,
		Revoked:     t.IsRevoked(),
	}
}

// APITokenCreateResponse includes the plaintext token, shown once.
type APITokenCreateResponse struct {
	APITokenResponse
	Token string `json:"token"`
}

// AuthMethod records how a request was authenticated.
type AuthMethod string

const (
	AuthMethodCookie AuthMethod = "cookie"
	AuthMethodToken  AuthMethod = "token"
)

// AuthContext holds the authenticated principal of a request.
type AuthContext struct {
	UserID  int64
	Login   string
	IsAdmin bool
	Method  AuthMethod
	TokenID string
}
