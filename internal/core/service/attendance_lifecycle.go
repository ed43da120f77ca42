package service

import (
	"context"
	"time"

	"github.com/yndnr/attendmesh/internal/core/domain"
)

// ============================================================================
// End
// ============================================================================

// EndOutcome describes what End did.
type EndOutcome string

const (
	// EndApplied means the active attendance was ended.
	EndApplied EndOutcome = "ended"

	// EndNotActive means there was nothing to end. Repeated end
	// notifications land here, which makes End idempotent.
	EndNotActive EndOutcome = "not_active"

	// EndStale means a close notification belonged to an unload that a
	// revive already reconciled, and was ignored.
	EndStale EndOutcome = "stale"
)

// EndRequest contains parameters for ending an attendance.
type EndRequest struct {
	UserID   string
	Username string

	// LogoutTime is the client-reported end instant on the client's clock;
	// zero means "now". It is clamped into [start, receipt].
	LogoutTime time.Time

	// Reason defaults to close.
	Reason domain.EndReason
}

// EndResponse contains the result of End.
type EndResponse struct {
	Outcome    EndOutcome
	Attendance *domain.Attendance
}

// End ends the user's running attendance. It never fails because there is
// nothing to end, and it refuses to end an attendance that was revived
// after the notification was stamped.
func (s *AttendanceService) End(ctx context.Context, req *EndRequest) (*EndResponse, error) {
	// 1. Validate input
	if req.UserID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("user_id is required")
	}
	reason := req.Reason
	if reason == "" {
		reason = domain.EndReasonClose
	}

	unlock := s.lockUser(req.UserID)
	defer unlock()

	now := s.now().UnixMilli()

	// 2. Find the running attendance
	last, err := s.latest(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if last == nil || !last.IsActive() {
		return &EndResponse{Outcome: EndNotActive, Attendance: last}, nil
	}

	// 3. Drop close notifications fenced off by a revive. Manual ends are
	// explicit user actions and always apply.
	var reported int64
	if !req.LogoutTime.IsZero() {
		reported = req.LogoutTime.UnixMilli()
	}
	if reason == domain.EndReasonClose && last.IsStaleEnd(reported, now) {
		s.logger.Info("ignoring stale end notification",
			"user_id", req.UserID,
			"attendance_id", last.ID,
			"logout_time", reported,
			"end_fence", last.EndFence,
			"end_fence_until", last.EndFenceUntil)
		s.emit(Event{Type: EventEndIgnored, UserID: req.UserID, Username: req.Username, AttendanceID: last.ID, Detail: string(EndStale), At: now})
		return &EndResponse{Outcome: EndStale, Attendance: last}, nil
	}

	// 4. End and persist
	if reported != 0 {
		last.EndReported(reported, now, reason)
	} else {
		last.End(now, now, reason)
	}
	if err := s.save(ctx, last); err != nil {
		return nil, err
	}

	s.logger.Info("attendance ended",
		"user_id", req.UserID,
		"attendance_id", last.ID,
		"reason", reason,
		"end_time", last.EndTime)
	s.emit(Event{Type: EventEnded, UserID: req.UserID, Username: req.Username, AttendanceID: last.ID, EndReason: string(reason), At: now})

	return &EndResponse{Outcome: EndApplied, Attendance: last}, nil
}

// ============================================================================
// Revive
// ============================================================================

// ReviveOutcome describes what ReviveIfRecent did.
type ReviveOutcome string

const (
	ReviveApplied       ReviveOutcome = "revived"
	ReviveAlreadyActive ReviveOutcome = "already_active"
	ReviveNoRecent      ReviveOutcome = "no_recent"
	ReviveNotCloseEnded ReviveOutcome = "not_close_ended"
	ReviveTooOld        ReviveOutcome = "too_old"
)

// ReviveRequest contains parameters for ReviveIfRecent.
type ReviveRequest struct {
	UserID   string
	Username string

	// UnloadTime is the client's record of the unload being reconciled,
	// on the client's clock. Optional; without it the end fence falls
	// back to a server-side receipt window.
	UnloadTime time.Time
}

// ReviveResponse contains the result of ReviveIfRecent.
type ReviveResponse struct {
	Outcome    ReviveOutcome
	Attendance *domain.Attendance

	// Elapsed is the time since the close-end, when there was one.
	Elapsed time.Duration
}

// ReviveIfRecent undoes a close-end applied less than the grace window ago.
// Every other state is a successful no-op. When the attendance is still
// active (the revive overtook the end notification) the attendance is
// fenced so that the late notification cannot end it. Fences compare
// client stamps with client stamps, or server receipt with server time.
func (s *AttendanceService) ReviveIfRecent(ctx context.Context, req *ReviveRequest) (*ReviveResponse, error) {
	if req.UserID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("user_id is required")
	}

	unlock := s.lockUser(req.UserID)
	defer unlock()

	now := s.now().UnixMilli()
	grace := s.GraceWindow()
	var unloadAt int64
	if !req.UnloadTime.IsZero() {
		unloadAt = req.UnloadTime.UnixMilli()
	}

	last, err := s.latest(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return &ReviveResponse{Outcome: ReviveNoRecent}, nil
	}

	if last.IsActive() {
		last.FenceEnds(unloadAt, now, grace)
		if err := s.save(ctx, last); err != nil {
			return nil, err
		}
		return &ReviveResponse{Outcome: ReviveAlreadyActive, Attendance: last}, nil
	}

	elapsed := time.Duration(now-last.EndReceivedAt) * time.Millisecond

	if last.CanRevive(now, grace) {
		last.Revive(now, unloadAt, grace)
		if err := s.save(ctx, last); err != nil {
			return nil, err
		}
		s.logger.Info("attendance revived",
			"user_id", req.UserID,
			"attendance_id", last.ID,
			"elapsed", elapsed)
		s.emit(Event{Type: EventRevived, UserID: req.UserID, Username: req.Username, AttendanceID: last.ID, At: now})
		return &ReviveResponse{Outcome: ReviveApplied, Attendance: last, Elapsed: elapsed}, nil
	}

	outcome := ReviveTooOld
	if last.EndReason != domain.EndReasonClose {
		outcome = ReviveNotCloseEnded
	}
	s.logger.Info("revive skipped",
		"user_id", req.UserID,
		"attendance_id", last.ID,
		"outcome", outcome,
		"elapsed", elapsed,
		"grace", grace)
	s.emit(Event{Type: EventReviveSkipped, UserID: req.UserID, Username: req.Username, AttendanceID: last.ID, Detail: string(outcome), At: now})

	return &ReviveResponse{Outcome: outcome, Attendance: last, Elapsed: elapsed}, nil
}
