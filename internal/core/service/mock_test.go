package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/attendmesh/internal/core/domain"
)

// mockRepo is an in-memory Repository for testing.
type mockRepo struct {
	mu          sync.Mutex
	attendances map[string]*domain.Attendance
	users       map[string]*domain.User
	tokens      map[string]*domain.AuthToken
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		attendances: make(map[string]*domain.Attendance),
		users:       make(map[string]*domain.User),
		tokens:      make(map[string]*domain.AuthToken),
	}
}

func (m *mockRepo) GetAttendance(ctx context.Context, id string) (*domain.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attendances[id]
	if !ok {
		return nil, domain.ErrAttendanceNotFound
	}
	return a.Clone(), nil
}

func (m *mockRepo) CreateAttendance(ctx context.Context, a *domain.Attendance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attendances[a.ID] = a.Clone()
	return nil
}

func (m *mockRepo) UpdateAttendance(ctx context.Context, a *domain.Attendance, expectedVersion uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attendances[a.ID]
	if !ok {
		return domain.ErrAttendanceNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrAttendanceVersionConflict
	}
	a.IncrVersion()
	m.attendances[a.ID] = a.Clone()
	return nil
}

func (m *mockRepo) ListAttendanceByUser(ctx context.Context, userID string) ([]*domain.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Attendance
	for _, a := range m.attendances {
		if a.UserID == userID {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (m *mockRepo) ListAttendanceStartedBetween(ctx context.Context, from, to int64) ([]*domain.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Attendance
	for _, a := range m.attendances {
		if a.StartTime >= from && a.StartTime < to {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (m *mockRepo) DeleteAttendanceByUser(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, a := range m.attendances {
		if a.UserID == userID {
			delete(m.attendances, id)
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (m *mockRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return u.Clone(), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockRepo) CreateUser(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u.Clone()
	return nil
}

func (m *mockRepo) UpdateUser(ctx context.Context, u *domain.User, expectedVersion uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrUserVersionConflict
	}
	u.IncrVersion()
	m.users[u.ID] = u.Clone()
	return nil
}

func (m *mockRepo) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *mockRepo) ListUsers(ctx context.Context) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.User
	for _, u := range m.users {
		out = append(out, u.Clone())
	}
	return out, nil
}

func (m *mockRepo) CreateToken(ctx context.Context, t *domain.AuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *t
	m.tokens[t.Hash] = &c
	return nil
}

func (m *mockRepo) GetToken(ctx context.Context, hash string) (*domain.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	c := *t
	return &c, nil
}

func (m *mockRepo) DeleteToken(ctx context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, hash)
	return nil
}

func (m *mockRepo) DeleteTokensByUser(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var hashes []string
	for h, t := range m.tokens {
		if t.UserID == userID {
			delete(m.tokens, h)
			hashes = append(hashes, h)
		}
	}
	return hashes, nil
}

// addUser stores a user with the given password and role.
func (m *mockRepo) addUser(username, password string, staff bool) *domain.User {
	u, err := domain.NewUser(username, password)
	if err != nil {
		panic(err)
	}
	u.IsStaff = staff
	_ = m.CreateUser(context.Background(), u)
	return u
}

// fakeClock is a settable clock for services.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// eventRecorder collects emitted events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) OnAttendanceEvent(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) count(typ EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}
