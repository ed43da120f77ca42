package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Token constants.
const (
	// TokenPrefix is the prefix for bearer tokens (sensitive, uses underscore).
	TokenPrefix = "attk_"

	// TokenHashPrefix is the prefix for stored token hashes.
	TokenHashPrefix = "atth_"

	// TokenBytesLength is the number of random bytes for token generation.
	TokenBytesLength = 32

	// TokenBodyLength is the Base64 RawURL encoded length (32 bytes -> 43 chars).
	TokenBodyLength = 43

	// TokenLength is the total token length (prefix + body).
	TokenLength = 5 + TokenBodyLength // attk_ + 43 = 48

	// TokenHashLength is the total token hash length (prefix + hex SHA-256).
	TokenHashLength = 5 + 64 // atth_ + 64 = 69
)

// GenerateToken generates a cryptographically secure bearer token.
// Returns the plaintext token (attk_...) and its hash (atth_...).
//
// The plaintext is handed to the client once at login and never stored.
func GenerateToken() (plaintext string, hash string, err error) {
	bytes := make([]byte, TokenBytesLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", ErrInternalServer.WithCause(err)
	}

	plaintext = TokenPrefix + base64.RawURLEncoding.EncodeToString(bytes)
	hash = HashToken(plaintext)

	return plaintext, hash, nil
}

// HashToken computes the SHA-256 hash of a token.
// Returns the hash in format: atth_{hex_sha256}.
func HashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return TokenHashPrefix + hex.EncodeToString(h[:])
}

// ValidateTokenFormat checks if a string has valid token format.
func ValidateTokenFormat(token string) bool {
	if len(token) != TokenLength || !strings.HasPrefix(token, TokenPrefix) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(token[len(TokenPrefix):])
	return err == nil
}

// AuthToken is the persisted form of an issued bearer token.
// Only the hash is stored; the plaintext never leaves the login response.
type AuthToken struct {
	// Hash is the SHA-256 hash of the raw token (format: atth_...).
	Hash string `json:"hash"`

	// UserID is the owner of the token.
	UserID string `json:"user_id"`

	// CreatedAt is the issue timestamp (Unix milliseconds).
	CreatedAt int64 `json:"created_at"`

	// LastUsed is the last successful authentication (Unix milliseconds).
	LastUsed int64 `json:"last_used,omitempty"`
}

// NewAuthToken creates a token record for userID.
func NewAuthToken(hash, userID string) *AuthToken {
	return &AuthToken{
		Hash:      hash,
		UserID:    userID,
		CreatedAt: currentTimeMillis(),
	}
}

// MaskToken masks a token for safe logging.
// Example: attk_ABC...xyz
func MaskToken(token string) string {
	if len(token) < 10 {
		return "***REDACTED***"
	}
	if strings.HasPrefix(token, TokenPrefix) {
		body := token[len(TokenPrefix):]
		if len(body) > 6 {
			return TokenPrefix + body[:3] + "..." + body[len(body)-3:]
		}
		return TokenPrefix + "***"
	}
	return "***REDACTED***"
}
