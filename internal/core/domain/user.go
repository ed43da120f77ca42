package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/argon2"
)

// UserIDPrefix is the prefix for user IDs (public, uses hyphen).
const UserIDPrefix = "amus-"

// User constraints.
const (
	MaxUsernameLength = 150
	MaxNameLength     = 150
	MaxEmailLength    = 254
	MaxPasswordLength = 1024
)

// Argon2 parameters for password hashing.
const (
	// Argon2Memory is the memory parameter in KB (16 MB).
	Argon2Memory uint32 = 16384

	// Argon2Time is the iteration count.
	Argon2Time uint32 = 2

	// Argon2Parallelism is the parallelism factor.
	Argon2Parallelism uint8 = 2

	// Argon2KeyLen is the output hash length in bytes.
	Argon2KeyLen uint32 = 32

	// Argon2SaltLen is the salt length in bytes.
	Argon2SaltLen = 16
)

// User is an employee or staff account.
type User struct {
	// ID format: amus-{ulid_lowercase}.
	ID string `json:"id"`

	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`

	// PasswordHash is the Argon2id hash, never returned by the API.
	PasswordHash string `json:"password_hash"`

	// IsStaff grants the admin endpoints.
	IsStaff bool `json:"is_staff"`

	IsActive bool `json:"is_active"`

	CreatedAt int64 `json:"created_at"`
	LastLogin int64 `json:"last_login,omitempty"`

	// Version is the optimistic lock version number.
	Version uint64 `json:"version"`
}

// NewUser creates an active user with a hashed password.
func NewUser(username, password string) (*User, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(timeNow()), entropy)
	if err != nil {
		return nil, ErrInternalServer.WithCause(err)
	}

	u := &User{
		ID:        UserIDPrefix + strings.ToLower(id.String()),
		Username:  username,
		IsActive:  true,
		CreatedAt: currentTimeMillis(),
		Version:   1,
	}
	if err := u.SetPassword(password); err != nil {
		return nil, err
	}
	return u, nil
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// SetPassword replaces the password hash.
func (u *User) SetPassword(password string) error {
	if password == "" {
		return ErrUserValidation.WithDetails("password is required")
	}
	if len(password) > MaxPasswordLength {
		return ErrUserValidation.WithDetails("password too long")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return ErrInternalServer.WithCause(err)
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword verifies password in constant time.
func (u *User) CheckPassword(password string) bool {
	return VerifyPassword(password, u.PasswordHash)
}

// IncrVersion increments the version number for optimistic locking.
func (u *User) IncrVersion() {
	u.Version++
}

// Clone returns a copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Validate validates the user fields.
func (u *User) Validate() error {
	var violations []string

	if !strings.HasPrefix(u.ID, UserIDPrefix) {
		violations = append(violations, "id format invalid")
	}
	if !IsValidUsername(u.Username) {
		violations = append(violations, "username must be 1-150 characters of letters, digits and @/./+/-/_")
	}
	if len(u.FirstName) > MaxNameLength || len(u.LastName) > MaxNameLength {
		violations = append(violations, "name too long")
	}
	if len(u.Email) > MaxEmailLength {
		violations = append(violations, "email too long")
	}
	if u.Email != "" && !strings.Contains(u.Email, "@") {
		violations = append(violations, "email format invalid")
	}
	if u.PasswordHash == "" {
		violations = append(violations, "password is required")
	}

	if len(violations) > 0 {
		return ErrUserValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// IsValidUsername checks length and allowed characters.
func IsValidUsername(name string) bool {
	if name == "" || len(name) > MaxUsernameLength {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '@', r == '.', r == '+', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// HashPassword computes an Argon2id hash of the password.
// Returns the hash in the format: $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>
func HashPassword(password string) (string, error) {
	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, Argon2Memory, Argon2Time, Argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword checks password against an Argon2id hash produced by HashPassword.
func VerifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
