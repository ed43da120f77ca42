package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/yndnr/attendmesh/internal/core/domain"
)

// AdminService implements the staff-only user management operations.
type AdminService struct {
	repo       Repository
	auth       *AuthService
	attendance *AttendanceService
	logger     *slog.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(repo Repository, auth *AuthService, attendance *AttendanceService, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{repo: repo, auth: auth, attendance: attendance, logger: logger}
}

// CreateUserRequest contains parameters for CreateUser.
type CreateUserRequest struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
	IsStaff   bool
}

// CreateUser creates an account. Usernames are unique case-insensitively.
func (s *AdminService) CreateUser(ctx context.Context, req *CreateUserRequest) (*domain.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return nil, domain.ErrMissingArgument.WithDetails("username and password are required")
	}
	if _, err := s.repo.GetUserByUsername(ctx, req.Username); err == nil {
		return nil, domain.ErrUsernameTaken
	}

	u, err := domain.NewUser(req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	u.FirstName = req.FirstName
	u.LastName = req.LastName
	u.Email = req.Email
	u.IsStaff = req.IsStaff
	if err := u.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateUser(ctx, u); err != nil {
		if domain.IsDomainError(err, "") {
			return nil, err
		}
		return nil, domain.ErrStorageError.WithCause(err)
	}

	s.logger.Info("user created", "user_id", u.ID, "username", u.Username, "is_staff", u.IsStaff)
	return u, nil
}

// GetUser retrieves a user by ID.
func (s *AdminService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUser(ctx, id)
}

// ListUsers returns all users ordered by username.
func (s *AdminService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	sort.Slice(users, func(i, j int) bool {
		return strings.ToLower(users[i].Username) < strings.ToLower(users[j].Username)
	})
	return users, nil
}

// SetStaff grants or revokes the staff role.
func (s *AdminService) SetStaff(ctx context.Context, id string, staff bool) (*domain.User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsStaff == staff {
		return u, nil
	}
	u.IsStaff = staff
	if err := s.repo.UpdateUser(ctx, u, u.Version); err != nil {
		return nil, err
	}
	s.logger.Info("user role changed", "user_id", u.ID, "is_staff", staff)
	return u, nil
}

// DeleteUser removes a non-staff account along with its attendances and tokens.
// Callers cannot delete themselves.
func (s *AdminService) DeleteUser(ctx context.Context, callerID, id string) error {
	if callerID == id {
		return domain.ErrInvalidArgument.WithDetails("cannot delete yourself")
	}
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if u.IsStaff {
		return domain.ErrStaffProtected.WithDetails("cannot delete staff users")
	}

	if _, err := s.attendance.Flush(ctx, u.ID, u.Username); err != nil {
		return err
	}
	hashes, err := s.repo.DeleteTokensByUser(ctx, u.ID)
	if err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	for _, h := range hashes {
		s.auth.cache.Delete(h)
	}
	if err := s.repo.DeleteUser(ctx, u.ID); err != nil {
		return err
	}

	s.logger.Info("user deleted", "user_id", u.ID, "username", u.Username, "tokens_revoked", len(hashes))
	return nil
}

// FlushUser deletes the attendance history of a non-staff user.
func (s *AdminService) FlushUser(ctx context.Context, id string) (int, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return 0, err
	}
	if u.IsStaff {
		return 0, domain.ErrStaffProtected.WithDetails("cannot flush staff users")
	}
	n, err := s.attendance.Flush(ctx, u.ID, u.Username)
	if err != nil {
		return 0, err
	}
	s.logger.Info("attendance flushed", "user_id", u.ID, "records", n)
	return n, nil
}

// FlushAllResult lists which users were flushed and which were skipped.
type FlushAllResult struct {
	Flushed []string `json:"flushed"`
	Skipped []string `json:"skipped"`
}

// FlushAll flushes every non-staff user. Staff users are skipped.
func (s *AdminService) FlushAll(ctx context.Context) (*FlushAllResult, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	res := &FlushAllResult{Flushed: []string{}, Skipped: []string{}}
	for _, u := range users {
		if u.IsStaff {
			res.Skipped = append(res.Skipped, u.ID)
			continue
		}
		if _, err := s.attendance.Flush(ctx, u.ID, u.Username); err != nil {
			return res, err
		}
		res.Flushed = append(res.Flushed, u.ID)
	}
	return res, nil
}

// EnsureBootstrapAdmin creates a staff account when no user exists yet.
// It reports whether an account was created.
func (s *AdminService) EnsureBootstrapAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return false, domain.ErrStorageError.WithCause(err)
	}
	if len(users) > 0 {
		return false, nil
	}
	if _, err := s.CreateUser(ctx, &CreateUserRequest{Username: username, Password: password, IsStaff: true}); err != nil {
		return false, err
	}
	return true, nil
}
