package service

import (
	"context"

	"github.com/yndnr/attendmesh/internal/core/domain"
)

// AttendanceRepository defines the storage interface for attendance records.
type AttendanceRepository interface {
	// GetAttendance retrieves an attendance by ID.
	GetAttendance(ctx context.Context, id string) (*domain.Attendance, error)

	// CreateAttendance stores a new attendance.
	CreateAttendance(ctx context.Context, a *domain.Attendance) error

	// UpdateAttendance replaces an attendance (with optimistic locking).
	// On success the stored version and a.Version are incremented.
	UpdateAttendance(ctx context.Context, a *domain.Attendance, expectedVersion uint64) error

	// ListAttendanceByUser returns a user's attendances ordered by start time.
	ListAttendanceByUser(ctx context.Context, userID string) ([]*domain.Attendance, error)

	// ListAttendanceStartedBetween returns attendances with from <= start < to,
	// ordered by start time.
	ListAttendanceStartedBetween(ctx context.Context, from, to int64) ([]*domain.Attendance, error)

	// DeleteAttendanceByUser deletes all attendances of a user.
	DeleteAttendanceByUser(ctx context.Context, userID string) (int, error)
}

// UserRepository defines the storage interface for user accounts.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// GetUserByUsername matches case-insensitively.
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)

	CreateUser(ctx context.Context, u *domain.User) error

	// UpdateUser replaces a user (with optimistic locking).
	UpdateUser(ctx context.Context, u *domain.User, expectedVersion uint64) error

	DeleteUser(ctx context.Context, id string) error

	ListUsers(ctx context.Context) ([]*domain.User, error)
}

// TokenRepository defines the storage interface for issued bearer tokens.
type TokenRepository interface {
	CreateToken(ctx context.Context, t *domain.AuthToken) error

	// GetToken retrieves a token by its hash.
	GetToken(ctx context.Context, hash string) (*domain.AuthToken, error)

	DeleteToken(ctx context.Context, hash string) error

	// DeleteTokensByUser revokes every token of a user and returns their hashes.
	DeleteTokensByUser(ctx context.Context, userID string) ([]string, error)
}

// Repository is the full storage surface used by the services.
type Repository interface {
	AttendanceRepository
	UserRepository
	TokenRepository
}
