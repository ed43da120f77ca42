package memory

import (
	"context"

	"github.com/yndnr/attendmesh/internal/core/domain"
)

// GetUser retrieves a user by ID.
func (s *Store) GetUser(_ context.Context, id string) (*domain.User, error) {
	u, ok := s.users.Get(id)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u.Clone(), nil
}

// GetUserByUsername retrieves a user by username, ignoring case.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	id, ok := s.usernames.Get(usernameKey(username))
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return s.GetUser(ctx, id)
}

// CreateUser stores a new user.
func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.usernames.Has(usernameKey(u.Username)) {
		return domain.ErrUsernameTaken
	}
	if s.users.Has(u.ID) {
		return domain.ErrUserValidation.WithDetails("user already exists")
	}

	s.users.Set(u.ID, u.Clone())
	s.usernames.Set(usernameKey(u.Username), u.ID)

	return nil
}

// UpdateUser updates an existing user with optimistic locking.
// Renames are allowed as long as the new name is free.
func (s *Store) UpdateUser(_ context.Context, u *domain.User, expectedVersion uint64) error {
	if err := u.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users.Get(u.ID)
	if !ok {
		return domain.ErrUserNotFound
	}
	if existing.Version != expectedVersion {
		return domain.ErrUserVersionConflict
	}

	oldKey, newKey := usernameKey(existing.Username), usernameKey(u.Username)
	if oldKey != newKey {
		if s.usernames.Has(newKey) {
			return domain.ErrUsernameTaken
		}
		s.usernames.Delete(oldKey)
		s.usernames.Set(newKey, u.ID)
	}

	clone := u.Clone()
	clone.IncrVersion()
	s.users.Set(u.ID, clone)
	u.Version = clone.Version

	return nil
}

// PutUser stores a user as-is. Used when loading persisted state.
func (s *Store) PutUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users.Set(u.ID, u.Clone())
	s.usernames.Set(usernameKey(u.Username), u.ID)
}

// DeleteUser removes a user. Attendances and tokens are left to the caller.
func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users.Pop(id)
	if !ok {
		return domain.ErrUserNotFound
	}
	s.usernames.Delete(usernameKey(u.Username))

	return nil
}

// ListUsers returns every user.
func (s *Store) ListUsers(_ context.Context) ([]*domain.User, error) {
	list := make([]*domain.User, 0, s.users.Count())
	s.users.Range(func(_ string, u *domain.User) bool {
		list = append(list, u.Clone())
		return true
	})
	return list, nil
}
