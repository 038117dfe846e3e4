package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// Token format: cy_{prefix}_{secret}
// Example: cy_7a9x3k_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	TokenPrefixLen = 6
	TokenSecretLen = 32
)

var (
	// ErrInvalidTokenFormat indicates the token does not look like a registry token.
	ErrInvalidTokenFormat = errors.New("invalid API token format")

	tokenFormatRegex = regexp.MustCompile(`^cy_([a-f0-9]{6})_([a-f0-9]{32})$`)
)

// GeneratedToken holds a freshly minted API token.
type GeneratedToken struct {
	Plaintext string // shown to the user once
	Hash      string // Argon2id, stored
	Prefix    string // lookup key
}

// GenerateToken creates a new random API token and its hash.
func GenerateToken() (*GeneratedToken, error) {
	prefixBytes := make([]byte, TokenPrefixLen/2)
	if _, err := rand.Read(prefixBytes); err != nil {
		return nil, fmt.Errorf("generate prefix: %w", err)
	}
	secretBytes := make([]byte, TokenSecretLen/2)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	prefix := hex.EncodeToString(prefixBytes)
	plaintext := fmt.Sprintf("cy_%s_%s", prefix, hex.EncodeToString(secretBytes))

	hash, err := HashToken(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	return &GeneratedToken{Plaintext: plaintext, Hash: hash, Prefix: prefix}, nil
}

// ParseTokenPrefix returns the lookup prefix of a plaintext token.
func ParseTokenPrefix(token string) (string, error) {
	matches := tokenFormatRegex.FindStringSubmatch(token)
	if matches == nil {
		return "", ErrInvalidTokenFormat
	}
	return matches[1], nil
}

// ValidateTokenFormat checks if the token matches the expected format.
func ValidateTokenFormat(token string) bool {
	return tokenFormatRegex.MatchString(token)
}
