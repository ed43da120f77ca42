package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/yndnr/attendmesh/internal/core/domain"
)

func newTestAuthService(t *testing.T) (*AuthService, *mockRepo) {
	t.Helper()
	repo := newMockRepo()
	return NewAuthService(repo, nil, nil), repo
}

func TestAuthService_Login(t *testing.T) {
	svc, repo := newTestAuthService(t)
	ctx := context.Background()
	repo.addUser("alice", "s3cret", false)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  *domain.DomainError
	}{
		{"success", "alice", "s3cret", nil},
		{"case-insensitive username", "ALICE", "s3cret", nil},
		{"wrong password", "alice", "nope", domain.ErrBadCredentials},
		{"unknown user", "bob", "s3cret", domain.ErrBadCredentials},
		{"missing password", "alice", "", domain.ErrMissingArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Login(ctx, &LoginRequest{Username: tt.username, Password: tt.password})
			if tt.wantErr != nil {
				if !domain.IsDomainError(err, tt.wantErr.Code) {
					t.Errorf("Login() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if !domain.ValidateTokenFormat(resp.Token) {
				t.Errorf("token %q has invalid format", resp.Token)
			}
			if resp.User.LastLogin == 0 {
				t.Error("LastLogin should be recorded")
			}
		})
	}
}

func TestAuthService_LoginInactive(t *testing.T) {
	svc, repo := newTestAuthService(t)
	u := repo.addUser("carol", "pw", false)
	u.IsActive = false
	_ = repo.UpdateUser(context.Background(), u, u.Version)

	_, err := svc.Login(context.Background(), &LoginRequest{Username: "carol", Password: "pw"})
	if !domain.IsDomainError(err, domain.ErrUserInactive.Code) {
		t.Errorf("Login() error = %v, want %v", err, domain.ErrUserInactive)
	}
}

func TestAuthService_LoginRateLimit(t *testing.T) {
	repo := newMockRepo()
	svc := NewAuthService(repo, &AuthServiceConfig{LoginAttemptsPerMinute: 3, CacheTTL: time.Minute}, nil)
	ctx := context.Background()

	var lastErr error
	for i := 0; i < 4; i++ {
		_, lastErr = svc.Login(ctx, &LoginRequest{Username: "mallory", Password: "guess"})
	}
	if !domain.IsDomainError(lastErr, domain.ErrRateLimited.Code) {
		t.Errorf("4th Login() error = %v, want %v", lastErr, domain.ErrRateLimited)
	}
}

func TestAuthService_AuthenticateAndLogout(t *testing.T) {
	svc, repo := newTestAuthService(t)
	ctx := context.Background()
	alice := repo.addUser("alice", "s3cret", false)

	resp, err := svc.Login(ctx, &LoginRequest{Username: "alice", Password: "s3cret"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	user, err := svc.Authenticate(ctx, resp.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.ID != alice.ID {
		t.Errorf("Authenticate() user = %s, want %s", user.ID, alice.ID)
	}
	if svc.cache.Size() != 1 {
		t.Errorf("cache size = %d, want 1", svc.cache.Size())
	}

	if err := svc.Logout(ctx, resp.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := svc.Authenticate(ctx, resp.Token); !domain.IsDomainError(err, domain.ErrTokenInvalid.Code) {
		t.Errorf("Authenticate() after logout error = %v, want %v", err, domain.ErrTokenInvalid)
	}
}

func TestAuthService_AuthenticateErrors(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		token   string
		wantErr *domain.DomainError
	}{
		{"empty", "", domain.ErrCredentialsMissing},
		{"malformed", "Token abc", domain.ErrTokenInvalid},
		{"unknown", "attk_ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopq", domain.ErrTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Authenticate(ctx, tt.token); !domain.IsDomainError(err, tt.wantErr.Code) {
				t.Errorf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthService_RequireStaff(t *testing.T) {
	svc, _ := newTestAuthService(t)

	if err := svc.RequireStaff(&domain.User{IsStaff: true}); err != nil {
		t.Errorf("RequireStaff(staff) error = %v", err)
	}
	if err := svc.RequireStaff(&domain.User{}); !domain.IsDomainError(err, domain.ErrAdminRequired.Code) {
		t.Errorf("RequireStaff(employee) error = %v, want %v", err, domain.ErrAdminRequired)
	}
	if err := svc.RequireStaff(nil); err == nil {
		t.Error("RequireStaff(nil) should fail")
	}
}

func TestTokenCache(t *testing.T) {
	cache := NewTokenCache(5, 100*time.Millisecond)

	t.Run("set and get", func(t *testing.T) {
		cache.Set("h1", &domain.AuthToken{Hash: "h1", UserID: "u1"})

		got := cache.Get("h1")
		if got == nil {
			t.Fatal("Should retrieve cached token")
		}
		if got.UserID != "u1" {
			t.Errorf("UserID = %s, want u1", got.UserID)
		}
	})

	t.Run("get non-existent", func(t *testing.T) {
		if cache.Get("missing") != nil {
			t.Error("Should return nil for non-existent hash")
		}
	})

	t.Run("delete", func(t *testing.T) {
		cache.Set("h2", &domain.AuthToken{Hash: "h2"})
		cache.Delete("h2")
		if cache.Get("h2") != nil {
			t.Error("Should return nil after delete")
		}
	})

	t.Run("expiration", func(t *testing.T) {
		shortCache := NewTokenCache(5, 50*time.Millisecond)
		shortCache.Set("h3", &domain.AuthToken{Hash: "h3"})

		if shortCache.Get("h3") == nil {
			t.Error("Should exist immediately after set")
		}

		time.Sleep(100 * time.Millisecond)

		if shortCache.Get("h3") != nil {
			t.Error("Should be expired after TTL")
		}
	})

	t.Run("LRU eviction", func(t *testing.T) {
		smallCache := NewTokenCache(3, time.Minute)
		for i := 1; i <= 3; i++ {
			h := fmt.Sprintf("k%d", i)
			smallCache.Set(h, &domain.AuthToken{Hash: h})
		}

		// Access k1 to make it recently used
		smallCache.Get("k1")

		// Add a 4th, should evict k2 (least recently used)
		smallCache.Set("k4", &domain.AuthToken{Hash: "k4"})

		if smallCache.Get("k1") == nil {
			t.Error("k1 should still exist (was recently accessed)")
		}
		if smallCache.Get("k2") != nil {
			t.Error("k2 should be evicted (least recently used)")
		}
		if smallCache.Size() != 3 {
			t.Errorf("Size() = %d, want 3", smallCache.Size())
		}
	})
}

func TestRateLimiterRegistry(t *testing.T) {
	registry := NewRateLimiterRegistry()

	limiter1 := registry.GetOrCreate("key1", 1, 1)
	limiter2 := registry.GetOrCreate("key1", 1, 1)
	if limiter1 != limiter2 {
		t.Error("Same key should return same limiter")
	}
	if limiter1 == registry.GetOrCreate("key2", 1, 1) {
		t.Error("Different keys should return different limiters")
	}

	registry.Delete("key1")
	if registry.GetOrCreate("key1", 1, 1) == limiter1 {
		t.Error("Delete should drop the limiter")
	}
}
