package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/attendmesh/internal/core/domain"
	"github.com/yndnr/attendmesh/pkg/cmap"
)

// AttendanceService handles attendance lifecycle operations.
type AttendanceService struct {
	repo  AttendanceRepository
	users UserRepository

	graceMillis atomic.Int64
	loc         *time.Location
	now         func() time.Time

	locks     *cmap.Map[string, *sync.Mutex]
	observers observerSet
	logger    *slog.Logger
}

// AttendanceServiceConfig holds configuration for AttendanceService.
type AttendanceServiceConfig struct {
	// GraceWindow bounds how long after a close-end a revive is honoured.
	GraceWindow time.Duration

	// Location is used for day boundaries in reports (default: Local).
	Location *time.Location
}

// DefaultAttendanceServiceConfig returns default configuration.
func DefaultAttendanceServiceConfig() *AttendanceServiceConfig {
	return &AttendanceServiceConfig{
		GraceWindow: domain.DefaultGraceWindow,
		Location:    time.Local,
	}
}

// NewAttendanceService creates a new AttendanceService.
func NewAttendanceService(repo AttendanceRepository, users UserRepository, config *AttendanceServiceConfig, logger *slog.Logger) *AttendanceService {
	if config == nil {
		config = DefaultAttendanceServiceConfig()
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &AttendanceService{
		repo:   repo,
		users:  users,
		loc:    config.Location,
		now:    time.Now,
		locks:  cmap.New[string, *sync.Mutex](),
		logger: logger,
	}
	s.SetGraceWindow(config.GraceWindow)
	return s
}

// Subscribe registers an observer for attendance events.
func (s *AttendanceService) Subscribe(o Observer) {
	s.observers.add(o)
}

// GraceWindow returns the current revive grace window.
func (s *AttendanceService) GraceWindow() time.Duration {
	return time.Duration(s.graceMillis.Load()) * time.Millisecond
}

// SetGraceWindow changes the revive grace window at runtime.
// Non-positive values reset it to the default.
func (s *AttendanceService) SetGraceWindow(d time.Duration) {
	if d <= 0 {
		d = domain.DefaultGraceWindow
	}
	s.graceMillis.Store(d.Milliseconds())
}

// Location returns the time zone used for day boundaries.
func (s *AttendanceService) Location() *time.Location {
	return s.loc
}

// lockUser serializes attendance mutations of one user.
func (s *AttendanceService) lockUser(userID string) func() {
	mu, _ := s.locks.GetOrSet(userID, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}

// latest returns the most recent attendance of a user, or nil.
func (s *AttendanceService) latest(ctx context.Context, userID string) (*domain.Attendance, error) {
	list, err := s.repo.ListAttendanceByUser(ctx, userID)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[len(list)-1], nil
}

// save persists a mutated attendance under optimistic locking.
func (s *AttendanceService) save(ctx context.Context, a *domain.Attendance) error {
	if err := s.repo.UpdateAttendance(ctx, a, a.Version); err != nil {
		if domain.IsDomainError(err, "") {
			return err
		}
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

func (s *AttendanceService) emit(ev Event) {
	s.observers.emit(ev)
}

// ============================================================================
// Start
// ============================================================================

// StartOutcome describes what Start did.
type StartOutcome string

const (
	StartCreated       StartOutcome = "started"
	StartAlreadyActive StartOutcome = "already_active"
	StartRestored      StartOutcome = "restored"
)

// StartRequest contains parameters for starting an attendance.
type StartRequest struct {
	UserID   string
	Username string
}

// StartResponse contains the result of Start.
type StartResponse struct {
	Outcome    StartOutcome
	Attendance *domain.Attendance
}

// Start begins an attendance. An already running attendance is returned
// unchanged; one close-ended within the grace window is restored instead
// of opening a new one.
func (s *AttendanceService) Start(ctx context.Context, req *StartRequest) (*StartResponse, error) {
	// 1. Validate input
	if req.UserID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("user_id is required")
	}

	unlock := s.lockUser(req.UserID)
	defer unlock()

	now := s.now().UnixMilli()

	// 2. Inspect the latest attendance
	last, err := s.latest(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if last != nil && last.IsActive() {
		return &StartResponse{Outcome: StartAlreadyActive, Attendance: last}, nil
	}

	// 3. Restore after a fast reload
	if last != nil && last.CanRevive(now, s.GraceWindow()) {
		last.Revive(now, 0, s.GraceWindow())
		if err := s.save(ctx, last); err != nil {
			return nil, err
		}
		s.emit(Event{Type: EventRestored, UserID: req.UserID, Username: req.Username, AttendanceID: last.ID, At: now})
		return &StartResponse{Outcome: StartRestored, Attendance: last}, nil
	}

	// 4. Open a new attendance
	a, err := domain.NewAttendance(req.UserID, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateAttendance(ctx, a); err != nil {
		if domain.IsDomainError(err, "") {
			return nil, err
		}
		return nil, domain.ErrStorageError.WithCause(err)
	}

	s.emit(Event{Type: EventStarted, UserID: req.UserID, Username: req.Username, AttendanceID: a.ID, At: now})
	return &StartResponse{Outcome: StartCreated, Attendance: a}, nil
}

// ============================================================================
// Breaks
// ============================================================================

// ToggleBreakRequest contains parameters for ToggleBreak.
type ToggleBreakRequest struct {
	UserID   string
	Username string
}

// ToggleBreakResponse contains the result of ToggleBreak.
type ToggleBreakResponse struct {
	Started    bool
	Break      domain.Break
	Attendance *domain.Attendance
}

// ToggleBreak ends the running break, or starts one.
func (s *AttendanceService) ToggleBreak(ctx context.Context, req *ToggleBreakRequest) (*ToggleBreakResponse, error) {
	if req.UserID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("user_id is required")
	}

	unlock := s.lockUser(req.UserID)
	defer unlock()

	last, err := s.latest(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if last == nil || !last.IsActive() {
		return nil, domain.ErrNoActiveAttendance.WithDetails("start attendance first")
	}

	now := s.now().UnixMilli()
	b, started, err := last.ToggleBreak(now)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, last); err != nil {
		return nil, err
	}

	typ := EventBreakEnded
	if started {
		typ = EventBreakStarted
	}
	s.emit(Event{Type: typ, UserID: req.UserID, Username: req.Username, AttendanceID: last.ID, At: now})

	return &ToggleBreakResponse{Started: started, Break: b, Attendance: last}, nil
}

// ============================================================================
// Queries
// ============================================================================

// StatusResponse contains the current and latest attendance of a user.
type StatusResponse struct {
	Active *domain.Attendance
	Last   *domain.Attendance
}

// Status returns the running attendance (if any) and the latest one.
func (s *AttendanceService) Status(ctx context.Context, userID string) (*StatusResponse, error) {
	last, err := s.latest(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := &StatusResponse{Last: last}
	if last != nil && last.IsActive() {
		resp.Active = last
	}
	return resp, nil
}

// History returns every attendance of a user ordered by start time.
func (s *AttendanceService) History(ctx context.Context, userID string) ([]*domain.Attendance, error) {
	list, err := s.repo.ListAttendanceByUser(ctx, userID)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	return list, nil
}

// ReportEntry is one attendance joined with its owner, for exports.
type ReportEntry struct {
	Username   string
	FullName   string
	Attendance *domain.Attendance
}

// DailyReport returns all attendances started on the calendar day of day,
// evaluated in the service location.
func (s *AttendanceService) DailyReport(ctx context.Context, day time.Time) ([]ReportEntry, error) {
	d := day.In(s.loc)
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 0, 1)

	list, err := s.repo.ListAttendanceStartedBetween(ctx, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	names := make(map[string]*domain.User)
	entries := make([]ReportEntry, 0, len(list))
	for _, a := range list {
		u, ok := names[a.UserID]
		if !ok {
			u, _ = s.users.GetUser(ctx, a.UserID)
			names[a.UserID] = u
		}
		entry := ReportEntry{Attendance: a, Username: "user_" + a.UserID}
		if u != nil {
			entry.Username = u.Username
			entry.FullName = u.FullName()
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Attendance.StartTime < entries[j].Attendance.StartTime
	})
	return entries, nil
}

// Today returns the current time in the service location.
func (s *AttendanceService) Today() time.Time {
	return s.now().In(s.loc)
}

// Flush deletes every attendance of a user and returns how many were removed.
func (s *AttendanceService) Flush(ctx context.Context, userID, username string) (int, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	n, err := s.repo.DeleteAttendanceByUser(ctx, userID)
	if err != nil {
		return 0, domain.ErrStorageError.WithCause(err)
	}
	s.emit(Event{Type: EventFlushed, UserID: userID, Username: username, At: s.now().UnixMilli()})
	return n, nil
}
