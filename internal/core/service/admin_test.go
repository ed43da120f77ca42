package service

import (
	"context"
	"testing"
	"time"

	"github.com/yndnr/attendmesh/internal/core/domain"
)

func newTestAdminService(t *testing.T) (*AdminService, *AttendanceService, *AuthService, *mockRepo) {
	t.Helper()
	repo := newMockRepo()
	auth := NewAuthService(repo, nil, nil)
	att := NewAttendanceService(repo, repo, &AttendanceServiceConfig{GraceWindow: time.Second, Location: time.UTC}, nil)
	return NewAdminService(repo, auth, att, nil), att, auth, repo
}

func TestAdminService_CreateUser(t *testing.T) {
	svc, _, _, _ := newTestAdminService(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, &CreateUserRequest{
		Username:  "alice",
		Password:  "pw",
		FirstName: "Alice",
		Email:     "alice@example.com",
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if u.IsStaff || !u.IsActive || u.FullName() != "Alice" {
		t.Errorf("CreateUser() = %+v", u)
	}

	tests := []struct {
		name    string
		req     *CreateUserRequest
		wantErr *domain.DomainError
	}{
		{"duplicate", &CreateUserRequest{Username: "Alice", Password: "pw"}, domain.ErrUsernameTaken},
		{"missing password", &CreateUserRequest{Username: "bob"}, domain.ErrMissingArgument},
		{"missing username", &CreateUserRequest{Password: "pw"}, domain.ErrMissingArgument},
		{"bad username", &CreateUserRequest{Username: "bob smith", Password: "pw"}, domain.ErrUserValidation},
		{"bad email", &CreateUserRequest{Username: "bob", Password: "pw", Email: "nope"}, domain.ErrUserValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateUser(ctx, tt.req); !domain.IsDomainError(err, tt.wantErr.Code) {
				t.Errorf("CreateUser() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAdminService_SetStaff(t *testing.T) {
	svc, _, _, repo := newTestAdminService(t)
	ctx := context.Background()
	u := repo.addUser("alice", "pw", false)

	got, err := svc.SetStaff(ctx, u.ID, true)
	if err != nil {
		t.Fatalf("SetStaff() error = %v", err)
	}
	if !got.IsStaff {
		t.Error("user should be staff")
	}
	if _, err := svc.SetStaff(ctx, "amus-missing", true); !domain.IsDomainError(err, domain.ErrUserNotFound.Code) {
		t.Errorf("SetStaff() error = %v, want %v", err, domain.ErrUserNotFound)
	}
}

func TestAdminService_DeleteUser(t *testing.T) {
	svc, att, auth, repo := newTestAdminService(t)
	ctx := context.Background()
	admin := repo.addUser("admin", "pw", true)
	other := repo.addUser("boss", "pw", true)
	emp := repo.addUser("emp", "pw", false)

	if _, err := att.Start(ctx, &StartRequest{UserID: emp.ID}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	login, err := auth.Login(ctx, &LoginRequest{Username: "emp", Password: "pw"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if _, err := auth.Authenticate(ctx, login.Token); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	tests := []struct {
		name    string
		target  string
		wantErr *domain.DomainError
	}{
		{"self", admin.ID, domain.ErrInvalidArgument},
		{"staff", other.ID, domain.ErrStaffProtected},
		{"missing", "amus-missing", domain.ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.DeleteUser(ctx, admin.ID, tt.target); !domain.IsDomainError(err, tt.wantErr.Code) {
				t.Errorf("DeleteUser() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := svc.DeleteUser(ctx, admin.ID, emp.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if _, err := repo.GetUser(ctx, emp.ID); err == nil {
		t.Error("user should be deleted")
	}
	if history, _ := att.History(ctx, emp.ID); len(history) != 0 {
		t.Error("attendance should be deleted with the user")
	}
	if _, err := auth.Authenticate(ctx, login.Token); err == nil {
		t.Error("token of a deleted user should be rejected")
	}
}

func TestAdminService_FlushAll(t *testing.T) {
	svc, att, _, repo := newTestAdminService(t)
	ctx := context.Background()
	admin := repo.addUser("admin", "pw", true)
	emp := repo.addUser("emp", "pw", false)

	for _, id := range []string{admin.ID, emp.ID} {
		if _, err := att.Start(ctx, &StartRequest{UserID: id}); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	}

	res, err := svc.FlushAll(ctx)
	if err != nil {
		t.Fatalf("FlushAll() error = %v", err)
	}
	if len(res.Flushed) != 1 || res.Flushed[0] != emp.ID {
		t.Errorf("Flushed = %v, want [%s]", res.Flushed, emp.ID)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != admin.ID {
		t.Errorf("Skipped = %v, want [%s]", res.Skipped, admin.ID)
	}
	if h, _ := att.History(ctx, admin.ID); len(h) != 1 {
		t.Error("staff attendance must be kept")
	}

	if _, err := svc.FlushUser(ctx, admin.ID); !domain.IsDomainError(err, domain.ErrStaffProtected.Code) {
		t.Errorf("FlushUser(staff) error = %v, want %v", err, domain.ErrStaffProtected)
	}
}

func TestAdminService_EnsureBootstrapAdmin(t *testing.T) {
	svc, _, _, repo := newTestAdminService(t)
	ctx := context.Background()

	created, err := svc.EnsureBootstrapAdmin(ctx, "root", "pw")
	if err != nil {
		t.Fatalf("EnsureBootstrapAdmin() error = %v", err)
	}
	if !created {
		t.Fatal("admin should be created on an empty store")
	}
	u, err := repo.GetUserByUsername(ctx, "root")
	if err != nil || !u.IsStaff {
		t.Errorf("bootstrap admin = %+v, err = %v", u, err)
	}

	created, err = svc.EnsureBootstrapAdmin(ctx, "root2", "pw")
	if err != nil || created {
		t.Errorf("EnsureBootstrapAdmin() on populated store = %v, %v", created, err)
	}
}
