package memory

import (
	"context"
	"sort"

	"github.com/yndnr/attendmesh/internal/core/domain"
)

// GetAttendance retrieves an attendance by ID.
func (s *Store) GetAttendance(_ context.Context, id string) (*domain.Attendance, error) {
	a, ok := s.attendances.Get(id)
	if !ok {
		return nil, domain.ErrAttendanceNotFound
	}

	// Return a clone to prevent external modification
	return a.Clone(), nil
}

// CreateAttendance stores a new attendance.
func (s *Store) CreateAttendance(_ context.Context, a *domain.Attendance) error {
	if err := a.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userAttendances.Count(a.UserID) >= s.maxAttendancesPerUser {
		return domain.ErrAttendanceValidation.WithDetails("attendance history quota exceeded")
	}
	if s.attendances.Has(a.ID) {
		return domain.ErrAttendanceVersionConflict.WithDetails("attendance already exists")
	}

	s.attendances.Set(a.ID, a.Clone())
	s.userAttendances.Add(a.UserID, a.ID)

	return nil
}

// UpdateAttendance updates an existing attendance with optimistic locking.
func (s *Store) UpdateAttendance(_ context.Context, a *domain.Attendance, expectedVersion uint64) error {
	if err := a.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.attendances.Get(a.ID)
	if !ok {
		return domain.ErrAttendanceNotFound
	}
	if existing.Version != expectedVersion {
		return domain.ErrAttendanceVersionConflict
	}
	if existing.UserID != a.UserID {
		return domain.ErrAttendanceValidation.WithDetails("user_id is immutable")
	}

	clone := a.Clone()
	clone.IncrVersion()
	s.attendances.Set(a.ID, clone)

	// Update version in the caller's record too
	a.Version = clone.Version

	return nil
}

// PutAttendance stores an attendance as-is, replacing any existing copy.
// Used when loading persisted state.
func (s *Store) PutAttendance(a *domain.Attendance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attendances.Set(a.ID, a.Clone())
	s.userAttendances.Add(a.UserID, a.ID)
}

// ListAttendanceByUser returns a user's attendances ordered by start time.
func (s *Store) ListAttendanceByUser(_ context.Context, userID string) ([]*domain.Attendance, error) {
	ids := s.userAttendances.Get(userID)
	if len(ids) == 0 {
		return nil, nil
	}

	list := make([]*domain.Attendance, 0, len(ids))
	for _, id := range ids {
		a, ok := s.attendances.Get(id)
		if !ok {
			continue // deleted concurrently
		}
		list = append(list, a.Clone())
	}

	sortByStart(list)
	return list, nil
}

// ListAttendanceStartedBetween returns attendances with from <= start < to.
func (s *Store) ListAttendanceStartedBetween(_ context.Context, from, to int64) ([]*domain.Attendance, error) {
	var list []*domain.Attendance
	s.attendances.Range(func(_ string, a *domain.Attendance) bool {
		if a.StartTime >= from && a.StartTime < to {
			list = append(list, a.Clone())
		}
		return true
	})

	sortByStart(list)
	return list, nil
}

// DeleteAttendanceByUser deletes all attendances of a user.
func (s *Store) DeleteAttendanceByUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, id := range s.userAttendances.Get(userID) {
		if _, ok := s.attendances.Pop(id); ok {
			deleted++
		}
	}
	s.userAttendances.Clear(userID)

	return deleted, nil
}

// AllAttendances returns clones of every stored attendance.
func (s *Store) AllAttendances() []*domain.Attendance {
	list := make([]*domain.Attendance, 0, s.attendances.Count())
	s.attendances.Range(func(_ string, a *domain.Attendance) bool {
		list = append(list, a.Clone())
		return true
	})
	sortByStart(list)
	return list
}

func sortByStart(list []*domain.Attendance) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].StartTime != list[j].StartTime {
			return list[i].StartTime < list[j].StartTime
		}
		return list[i].ID < list[j].ID
	})
}

// DeleteAttendance removes one attendance.
func (s *Store) DeleteAttendance(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attendances.Pop(id)
	if !ok {
		return domain.ErrAttendanceNotFound
	}
	s.userAttendances.Remove(a.UserID, id)
	return nil
}
