package memory

import (
	"context"

	"github.com/yndnr/attendmesh/internal/core/domain"
)

// CreateToken stores an issued token.
func (s *Store) CreateToken(_ context.Context, t *domain.AuthToken) error {
	if t.Hash == "" || t.UserID == "" {
		return domain.ErrInvalidArgument.WithDetails("token hash and user_id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := *t
	s.tokens.Set(t.Hash, &c)
	s.userTokens.Add(t.UserID, t.Hash)

	return nil
}

// GetToken retrieves a token by hash.
func (s *Store) GetToken(_ context.Context, hash string) (*domain.AuthToken, error) {
	t, ok := s.tokens.Get(hash)
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	c := *t
	return &c, nil
}

// DeleteToken removes a token. Unknown hashes are ignored.
func (s *Store) DeleteToken(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tokens.Pop(hash); ok {
		s.userTokens.Remove(t.UserID, hash)
	}
	return nil
}

// DeleteTokensByUser removes every token of a user and returns their hashes.
func (s *Store) DeleteTokensByUser(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hashes := s.userTokens.Get(userID)
	for _, h := range hashes {
		s.tokens.Delete(h)
	}
	s.userTokens.Clear(userID)

	return hashes, nil
}

// AllTokens returns copies of every stored token.
func (s *Store) AllTokens() []*domain.AuthToken {
	list := make([]*domain.AuthToken, 0, s.tokens.Count())
	s.tokens.Range(func(_ string, t *domain.AuthToken) bool {
		c := *t
		list = append(list, &c)
		return true
	})
	return list
}
