package memory

import (
	"strings"
	"sync"

	"github.com/yndnr/attendmesh/internal/core/domain"
	"github.com/yndnr/attendmesh/pkg/cmap"
)

// DefaultMaxAttendancesPerUser is the default history quota per user.
const DefaultMaxAttendancesPerUser = 10000

// Store provides in-memory storage of attendances, users and tokens.
type Store struct {
	// Primary indexes
	attendances *cmap.Map[string, *domain.Attendance]
	users       *cmap.Map[string, *domain.User]
	tokens      *cmap.Map[string, *domain.AuthToken]

	// Secondary index: lower(username) -> UserID
	usernames *cmap.Map[string, string]

	// Secondary indexes: UserID -> attendance IDs / token hashes
	userAttendances *UserIndex
	userTokens      *UserIndex

	// Configuration
	maxAttendancesPerUser int

	// Global lock for operations requiring atomicity across indexes
	mu sync.RWMutex
}

// Option configures the Store.
type Option func(*Store)

// WithMaxAttendancesPerUser sets the maximum stored attendances per user.
func WithMaxAttendancesPerUser(max int) Option {
	return func(s *Store) {
		s.maxAttendancesPerUser = max
	}
}

// New creates a new in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		attendances:           cmap.New[string, *domain.Attendance](),
		users:                 cmap.New[string, *domain.User](),
		tokens:                cmap.New[string, *domain.AuthToken](),
		usernames:             cmap.New[string, string](),
		userAttendances:       NewUserIndex(),
		userTokens:            NewUserIndex(),
		maxAttendancesPerUser: DefaultMaxAttendancesPerUser,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Counts returns the number of stored attendances, users and tokens.
func (s *Store) Counts() (attendances, users, tokens int) {
	return s.attendances.Count(), s.users.Count(), s.tokens.Count()
}

func usernameKey(name string) string {
	return strings.ToLower(name)
}
