package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// AttendanceIDPrefix is the prefix for attendance IDs.
	AttendanceIDPrefix = "amat-"

	// DefaultGraceWindow is the shared reload threshold. The client revives
	// when its unload marker is younger than this; the server only honours a
	// revive while the close-end it would undo is younger than this.
	DefaultGraceWindow = time.Second

	// MaxBreaksPerAttendance bounds the break list of a single attendance.
	MaxBreaksPerAttendance = 500
)

// timeNow is replaced in tests.
var timeNow = time.Now

func currentTimeMillis() int64 {
	return timeNow().UnixMilli()
}

// EndReason records how an attendance was ended.
type EndReason string

const (
	// EndReasonClose means the client went away (beacon or keep-alive end).
	// Only close-ended attendances are eligible for revive.
	EndReasonClose EndReason = "close"

	// EndReasonManual means the user explicitly clocked out.
	EndReasonManual EndReason = "manual"
)

// ParseEndReason converts a wire value to an EndReason. Empty means close,
// which is what the unload notifier sends implicitly.
func ParseEndReason(s string) (EndReason, bool) {
	switch EndReason(strings.ToLower(strings.TrimSpace(s))) {
	case "", EndReasonClose:
		return EndReasonClose, true
	case EndReasonManual:
		return EndReasonManual, true
	}
	return "", false
}

// Break is a pause inside an attendance. EndTime is 0 while the break is open.
type Break struct {
	StartTime int64 `json:"start_time"`
	EndTime   int64 `json:"end_time,omitempty"`

	// ClosedByEnd marks a break that was open when the attendance ended.
	// A revive reopens exactly these breaks.
	ClosedByEnd bool `json:"closed_by_end,omitempty"`
}

// IsOpen reports whether the break is still running.
func (b Break) IsOpen() bool {
	return b.EndTime == 0
}

// Attendance is one work period of a user.
type Attendance struct {
	// ID format: amat-{ulid_lowercase}.
	ID string `json:"id"`

	UserID string `json:"user_id"`

	// StartTime is when the attendance began (Unix ms).
	StartTime int64 `json:"start_time"`

	// EndTime is the effective end (Unix ms); 0 while active.
	EndTime int64 `json:"end_time,omitempty"`

	// EndReason is set together with EndTime.
	EndReason EndReason `json:"end_reason,omitempty"`

	// EndReceivedAt is the server time at which the end was applied.
	// The revive grace window is measured from here, not from EndTime,
	// so client clock skew cannot widen or close the window.
	EndReceivedAt int64 `json:"end_received_at,omitempty"`

	// RevivedAt is the server time of the most recent revive (0 = never).
	RevivedAt int64 `json:"revived_at,omitempty"`

	// ReportedEnd is the client-stamped logout_time of the applied end
	// (Unix ms, client clock); 0 when the server supplied the time.
	ReportedEnd int64 `json:"reported_end,omitempty"`

	// EndFence is a client-clock instant (Unix ms). Close notifications
	// stamped at or before it belong to an unload that was already
	// reconciled and must not end the attendance. Comparing it only with
	// client stamps keeps clock skew out of the decision.
	EndFence int64 `json:"end_fence,omitempty"`

	// EndFenceUntil is a server-clock deadline (Unix ms) used when the
	// client reported no unload instant: close notifications received
	// before it are stale.
	EndFenceUntil int64 `json:"end_fence_until,omitempty"`

	ReviveCount int `json:"revive_count,omitempty"`

	Breaks []Break `json:"breaks"`

	LastUpdate int64 `json:"last_update"`

	// Version is the optimistic lock version number.
	Version uint64 `json:"version"`
}

// NewAttendance starts a new attendance for userID at now (Unix ms).
func NewAttendance(userID string, now int64) (*Attendance, error) {
	id, err := GenerateAttendanceID()
	if err != nil {
		return nil, err
	}
	return &Attendance{
		ID:         id,
		UserID:     userID,
		StartTime:  now,
		Breaks:     []Break{},
		LastUpdate: now,
		Version:    1,
	}, nil
}

// GenerateAttendanceID generates a new attendance ID using ULID.
func GenerateAttendanceID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(timeNow()), entropy)
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return AttendanceIDPrefix + strings.ToLower(id.String()), nil
}

// IsActive reports whether the attendance is running.
func (a *Attendance) IsActive() bool {
	return a.EndTime == 0
}

// OpenBreak returns the running break, or nil.
func (a *Attendance) OpenBreak() *Break {
	for i := len(a.Breaks) - 1; i >= 0; i-- {
		if a.Breaks[i].IsOpen() {
			return &a.Breaks[i]
		}
	}
	return nil
}

// OnBreak reports whether a break is running.
func (a *Attendance) OnBreak() bool {
	return a.OpenBreak() != nil
}

// ToggleBreak ends the running break or starts a new one.
// It returns the affected break and whether a break was started.
func (a *Attendance) ToggleBreak(now int64) (Break, bool, error) {
	if !a.IsActive() {
		return Break{}, false, ErrNoActiveAttendance
	}
	if b := a.OpenBreak(); b != nil {
		b.EndTime = max(now, b.StartTime)
		a.touch(now)
		return *b, false, nil
	}
	if len(a.Breaks) >= MaxBreaksPerAttendance {
		return Break{}, false, ErrAttendanceValidation.WithDetails("too many breaks")
	}
	nb := Break{StartTime: now}
	a.Breaks = append(a.Breaks, nb)
	a.touch(now)
	return nb, true, nil
}

// End closes the attendance at the given effective time. at is clamped
// into [StartTime, receivedAt]. Breaks still open are closed at the same
// instant and flagged so that a later revive can reopen them.
//
// Ending an already ended attendance is a no-op and returns false.
func (a *Attendance) End(at, receivedAt int64, reason EndReason) bool {
	if !a.IsActive() {
		return false
	}
	at = min(max(at, a.StartTime), max(receivedAt, a.StartTime))

	for i := range a.Breaks {
		if a.Breaks[i].IsOpen() {
			a.Breaks[i].EndTime = max(at, a.Breaks[i].StartTime)
			a.Breaks[i].ClosedByEnd = true
		}
	}

	a.EndTime = at
	a.EndReason = reason
	a.EndReceivedAt = receivedAt
	a.ReportedEnd = 0
	a.touch(receivedAt)
	return true
}

// EndReported is End with a client-stamped logoutAt. The raw stamp is kept
// so that a revive can fence this notification on the client's clock.
func (a *Attendance) EndReported(logoutAt, receivedAt int64, reason EndReason) bool {
	if !a.End(logoutAt, receivedAt, reason) {
		return false
	}
	a.ReportedEnd = logoutAt
	return true
}

// IsStaleEnd reports whether a close notification stamped logoutAt
// (client clock, 0 if absent) and received at receivedAt (server clock)
// was overtaken by a revive and must be ignored. Stamps are never compared
// with server-clock fields; out-of-range stamps are clamped by End.
func (a *Attendance) IsStaleEnd(logoutAt, receivedAt int64) bool {
	if logoutAt != 0 && a.EndFence != 0 && logoutAt <= a.EndFence {
		return true
	}
	return receivedAt < a.EndFenceUntil
}

// FenceEnds makes close notifications of an already reconciled unload
// stale. unloadAt is the client's unload instant; when it is unknown the
// fence falls back to notifications received within grace of now.
func (a *Attendance) FenceEnds(unloadAt, now int64, grace time.Duration) {
	if unloadAt > 0 {
		a.EndFence = max(a.EndFence, unloadAt)
	} else {
		a.EndFenceUntil = max(a.EndFenceUntil, now+grace.Milliseconds())
	}
	a.touch(now)
}

// CanRevive reports whether the attendance was close-ended less than
// grace before now. The boundary itself is not revivable.
func (a *Attendance) CanRevive(now int64, grace time.Duration) bool {
	if a.IsActive() || a.EndReason != EndReasonClose {
		return false
	}
	elapsed := now - a.EndReceivedAt
	return elapsed >= 0 && elapsed < grace.Milliseconds()
}

// Revive undoes the last close-end and fences its notification: at the
// later of unloadAt and the stamp the undone end carried, both client
// clock.
func (a *Attendance) Revive(now, unloadAt int64, grace time.Duration) {
	fence := max(unloadAt, a.ReportedEnd)
	for i := range a.Breaks {
		if a.Breaks[i].ClosedByEnd {
			a.Breaks[i].EndTime = 0
			a.Breaks[i].ClosedByEnd = false
		}
	}
	a.EndTime = 0
	a.EndReason = ""
	a.EndReceivedAt = 0
	a.ReportedEnd = 0
	a.RevivedAt = now
	a.ReviveCount++
	a.FenceEnds(fence, now, grace)
}

// Duration returns the wall time between start and end (or now while active).
func (a *Attendance) Duration(now int64) time.Duration {
	end := a.EndTime
	if end == 0 {
		end = now
	}
	if end < a.StartTime {
		return 0
	}
	return time.Duration(end-a.StartTime) * time.Millisecond
}

// BreakDuration sums the length of all breaks, counting open ones up to now.
func (a *Attendance) BreakDuration(now int64) time.Duration {
	var total int64
	for _, b := range a.Breaks {
		end := b.EndTime
		if end == 0 {
			end = now
		}
		if end > b.StartTime {
			total += end - b.StartTime
		}
	}
	return time.Duration(total) * time.Millisecond
}

// StartTimeValue returns StartTime as time.Time.
func (a *Attendance) StartTimeValue() time.Time {
	return time.UnixMilli(a.StartTime)
}

// EndTimeValue returns EndTime as time.Time, zero while active.
func (a *Attendance) EndTimeValue() time.Time {
	if a.EndTime == 0 {
		return time.Time{}
	}
	return time.UnixMilli(a.EndTime)
}

// IncrVersion increments the version number for optimistic locking.
func (a *Attendance) IncrVersion() {
	a.Version++
}

func (a *Attendance) touch(now int64) {
	if now > a.LastUpdate {
		a.LastUpdate = now
	}
}

// Clone returns a deep copy.
func (a *Attendance) Clone() *Attendance {
	if a == nil {
		return nil
	}
	c := *a
	c.Breaks = make([]Break, len(a.Breaks))
	copy(c.Breaks, a.Breaks)
	return &c
}

// Validate validates the attendance fields.
func (a *Attendance) Validate() error {
	var violations []string

	if !strings.HasPrefix(a.ID, AttendanceIDPrefix) {
		violations = append(violations, "id format invalid")
	}
	if a.UserID == "" {
		violations = append(violations, "user_id is required")
	}
	if a.StartTime <= 0 {
		violations = append(violations, "start_time is required")
	}
	if a.EndTime != 0 && a.EndTime < a.StartTime {
		violations = append(violations, "end_time before start_time")
	}
	if a.EndTime != 0 && a.EndReason == "" {
		violations = append(violations, "end_reason is required when ended")
	}
	if len(a.Breaks) > MaxBreaksPerAttendance {
		violations = append(violations, "too many breaks")
	}
	open := 0
	for _, b := range a.Breaks {
		if b.IsOpen() {
			open++
		} else if b.EndTime < b.StartTime {
			violations = append(violations, "break ends before it starts")
		}
	}
	if open > 1 {
		violations = append(violations, "more than one open break")
	}

	if len(violations) > 0 {
		return ErrAttendanceValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}
