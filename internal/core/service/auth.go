package service

import (
	"container/list"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/attendmesh/internal/core/domain"
)

// AuthService handles login, bearer token authentication and user administration.
type AuthService struct {
	repo         Repository
	cache        *TokenCache
	rateLimiters *RateLimiterRegistry
	loginLimit   rate.Limit
	loginBurst   int
	now          func() time.Time
	logger       *slog.Logger
}

// AuthServiceConfig holds configuration for AuthService.
type AuthServiceConfig struct {
	// CacheTTL is the cache time-to-live for resolved tokens (default: 60s).
	CacheTTL time.Duration

	// CacheSize is the maximum number of cached tokens (default: 10,000).
	CacheSize int

	// LoginAttemptsPerMinute limits password attempts per username (default: 10).
	LoginAttemptsPerMinute int
}

// DefaultAuthServiceConfig returns default configuration.
func DefaultAuthServiceConfig() *AuthServiceConfig {
	return &AuthServiceConfig{
		CacheTTL:               60 * time.Second,
		CacheSize:              10000,
		LoginAttemptsPerMinute: 10,
	}
}

// NewAuthService creates a new AuthService.
func NewAuthService(repo Repository, config *AuthServiceConfig, logger *slog.Logger) *AuthService {
	if config == nil {
		config = DefaultAuthServiceConfig()
	}
	if config.LoginAttemptsPerMinute <= 0 {
		config.LoginAttemptsPerMinute = 10
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		repo:         repo,
		cache:        NewTokenCache(config.CacheSize, config.CacheTTL),
		rateLimiters: NewRateLimiterRegistry(),
		loginLimit:   rate.Every(time.Minute / time.Duration(config.LoginAttemptsPerMinute)),
		loginBurst:   config.LoginAttemptsPerMinute,
		now:          time.Now,
		logger:       logger,
	}
}

// LoginRequest contains parameters for Login.
type LoginRequest struct {
	Username string
	Password string
	ClientIP string
}

// LoginResponse contains the issued bearer token.
type LoginResponse struct {
	Token string
	User  *domain.User
}

// Login verifies a username/password pair and issues a bearer token.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	// 1. Validate input
	if req.Username == "" || req.Password == "" {
		return nil, domain.ErrMissingArgument.WithDetails("username and password are required")
	}

	// 2. Throttle password guessing per username
	if err := s.checkLoginRate(strings.ToLower(req.Username)); err != nil {
		return nil, err
	}

	// 3. Look up the account
	user, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, domain.ErrBadCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	// 4. Verify password (Argon2 - expensive operation)
	if !user.CheckPassword(req.Password) {
		s.logger.Warn("login failed", "username", req.Username, "client_ip", req.ClientIP)
		return nil, domain.ErrBadCredentials
	}

	// 5. Issue token
	plaintext, hash, err := domain.GenerateToken()
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateToken(ctx, domain.NewAuthToken(hash, user.ID)); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	// 6. Record last login; failure here does not fail the login
	user.LastLogin = s.now().UnixMilli()
	if err := s.repo.UpdateUser(ctx, user, user.Version); err != nil {
		s.logger.Warn("record last login failed", "user_id", user.ID, "error", err)
	}

	return &LoginResponse{Token: plaintext, User: user}, nil
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrCredentialsMissing
	}
	if !domain.ValidateTokenFormat(token) {
		return nil, domain.ErrTokenInvalid
	}
	hash := domain.HashToken(token)

	// 1. Check cache first
	rec := s.cache.Get(hash)
	if rec == nil {
		// 2. Cache miss, query from storage
		var err error
		rec, err = s.repo.GetToken(ctx, hash)
		if err != nil {
			return nil, domain.ErrTokenInvalid
		}
		s.cache.Set(hash, rec)
	}

	// 3. Resolve and check the owner
	user, err := s.repo.GetUser(ctx, rec.UserID)
	if err != nil {
		s.cache.Delete(hash)
		return nil, domain.ErrTokenInvalid
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}
	return user, nil
}

// Logout revokes a bearer token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if !domain.ValidateTokenFormat(token) {
		return nil
	}
	hash := domain.HashToken(token)
	s.cache.Delete(hash)
	if err := s.repo.DeleteToken(ctx, hash); err != nil && !domain.IsDomainError(err, domain.ErrTokenInvalid.Code) {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

// RequireStaff returns ErrAdminRequired unless user is staff.
func (s *AuthService) RequireStaff(user *domain.User) error {
	if user == nil || !user.IsStaff {
		return domain.ErrAdminRequired
	}
	return nil
}

// checkLoginRate applies the per-username login limiter.
func (s *AuthService) checkLoginRate(key string) error {
	limiter := s.rateLimiters.GetOrCreate(key, s.loginLimit, s.loginBurst)

	if !limiter.Allow() {
		reservation := limiter.Reserve()
		delay := reservation.Delay()
		reservation.Cancel()

		return domain.ErrRateLimited.WithDetails(
			"too many login attempts, retry after " + delay.Round(time.Second).String(),
		)
	}
	return nil
}

// ============================================================================
// TokenCache - LRU Cache for resolved tokens
// ============================================================================

// TokenCache implements an LRU cache with TTL for token records.
type TokenCache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // LRU order, front = most recently used
	capacity int
	ttl      time.Duration
}

type cacheEntry struct {
	hash      string
	token     *domain.AuthToken
	expiresAt time.Time
}

// NewTokenCache creates a new TokenCache with LRU eviction.
func NewTokenCache(capacity int, ttl time.Duration) *TokenCache {
	if capacity <= 0 {
		capacity = 10000
	}
	return &TokenCache{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Get retrieves a token record if present and not expired.
func (c *TokenCache) Get(hash string) *domain.AuthToken {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[hash]
	if !exists {
		return nil
	}

	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.items, hash)
		return nil
	}

	c.order.MoveToFront(elem)
	return entry.token
}

// Set adds a token record, evicting the oldest entries at capacity.
func (c *TokenCache) Set(hash string, token *domain.AuthToken) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[hash]; exists {
		entry := elem.Value.(*cacheEntry)
		entry.token = token
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	for c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		delete(c.items, oldest.Value.(*cacheEntry).hash)
		c.order.Remove(oldest)
	}

	elem := c.order.PushFront(&cacheEntry{
		hash:      hash,
		token:     token,
		expiresAt: time.Now().Add(c.ttl),
	})
	c.items[hash] = elem
}

// Delete removes a token record from the cache.
func (c *TokenCache) Delete(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[hash]; exists {
		c.order.Remove(elem)
		delete(c.items, hash)
	}
}

// Size returns the current number of items in the cache.
func (c *TokenCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// ============================================================================
// RateLimiterRegistry - Rate Limiter Management
// ============================================================================

// RateLimiterRegistry manages one rate limiter per key.
type RateLimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiterRegistry creates a new RateLimiterRegistry.
func NewRateLimiterRegistry() *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: make(map[string]*rate.Limiter),
	}
}

// GetOrCreate retrieves an existing rate limiter or creates a new one.
func (r *RateLimiterRegistry) GetOrCreate(key string, limit rate.Limit, burst int) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[key]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := r.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(limit, burst)
	r.limiters[key] = limiter
	return limiter
}

// Delete removes the rate limiter for a key.
func (r *RateLimiterRegistry) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limiters, key)
}
