package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/yndnr/attendmesh/internal/core/domain"
	"github.com/yndnr/attendmesh/internal/core/service"
	"github.com/yndnr/attendmesh/internal/storage/memory"
)

// Key prefixes in the KV engine.
const (
	prefixUser       = "usr/"
	prefixToken      = "tok/"
	prefixAttendance = "att/"
)

// DefaultKVDir is the Badger directory below DataDir.
const DefaultKVDir = "kv"

// Config configures the storage engine.
type Config struct {
	// DataDir is the base directory for all storage files.
	// Empty means memory-only.
	DataDir string

	// KV configuration (Dir is derived from DataDir when empty).
	KV KVConfig

	// MaxAttendancesPerUser is the history quota per user.
	MaxAttendancesPerUser int

	// Logger is the structured logger.
	Logger *slog.Logger
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir: dataDir,
		KV:      DefaultKVConfig(filepath.Join(dataDir, DefaultKVDir)),
		Logger:  slog.Default(),
	}
}

// Engine is the storage engine. It implements service.Repository.
type Engine struct {
	store  *memory.Store
	kv     KVEngine
	logger *slog.Logger

	// wmu serializes writes so that memory and KV apply in the same order.
	wmu sync.Mutex
}

var _ service.Repository = (*Engine)(nil)

// New creates a new storage engine.
//
// This initializes all components but does NOT perform recovery.
// Call Recover() after New() to load existing data.
func New(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var kv KVEngine
	if cfg.DataDir != "" || cfg.KV.InMemory {
		if cfg.KV.Dir == "" && !cfg.KV.InMemory {
			cfg.KV.Dir = filepath.Join(cfg.DataDir, DefaultKVDir)
		}
		be, err := NewBadgerEngine(cfg.KV, cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("storage: open kv: %w", err)
		}
		kv = be
	}

	return NewWithKV(kv, cfg), nil
}

// NewWithKV creates an engine over an existing KV engine (nil = memory-only).
func NewWithKV(kv KVEngine, cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	var opts []memory.Option
	if cfg.MaxAttendancesPerUser > 0 {
		opts = append(opts, memory.WithMaxAttendancesPerUser(cfg.MaxAttendancesPerUser))
	}
	return &Engine{
		store:  memory.New(opts...),
		kv:     kv,
		logger: cfg.Logger,
	}
}

// KV returns the underlying KV engine, or nil when memory-only.
func (e *Engine) KV() KVEngine {
	return e.kv
}

// Durable reports whether writes are persisted.
func (e *Engine) Durable() bool {
	return e.kv != nil
}

// Recover loads users, tokens and attendances from the KV engine.
func (e *Engine) Recover(ctx context.Context) error {
	if e.kv == nil {
		e.logger.Info("storage running memory-only, nothing to recover")
		return nil
	}
	startTime := time.Now()

	var users, tokens, attendances, skipped int

	err := e.kv.Scan(ctx, []byte(prefixUser), func(key, value []byte) bool {
		var u domain.User
		if err := json.Unmarshal(value, &u); err != nil {
			e.logger.Warn("skip corrupt user record", "key", string(key), "error", err)
			skipped++
			return true
		}
		e.store.PutUser(&u)
		users++
		return true
	})
	if err != nil {
		return fmt.Errorf("recover users: %w", err)
	}

	err = e.kv.Scan(ctx, []byte(prefixToken), func(key, value []byte) bool {
		var t domain.AuthToken
		if err := json.Unmarshal(value, &t); err != nil {
			e.logger.Warn("skip corrupt token record", "key", string(key), "error", err)
			skipped++
			return true
		}
		if err := e.store.CreateToken(ctx, &t); err != nil {
			skipped++
			return true
		}
		tokens++
		return true
	})
	if err != nil {
		return fmt.Errorf("recover tokens: %w", err)
	}

	err = e.kv.Scan(ctx, []byte(prefixAttendance), func(key, value []byte) bool {
		var a domain.Attendance
		if err := json.Unmarshal(value, &a); err != nil {
			e.logger.Warn("skip corrupt attendance record", "key", string(key), "error", err)
			skipped++
			return true
		}
		e.store.PutAttendance(&a)
		attendances++
		return true
	})
	if err != nil {
		return fmt.Errorf("recover attendances: %w", err)
	}

	e.logger.Info("recovery completed",
		"users", users,
		"tokens", tokens,
		"attendances", attendances,
		"skipped", skipped,
		"elapsed", time.Since(startTime))
	return nil
}

// Close gracefully shuts down the storage engine.
func (e *Engine) Close() error {
	if e.kv == nil {
		return nil
	}
	e.logger.Info("shutting down storage engine")
	return e.kv.Close()
}

// Counts returns the number of stored attendances, users and tokens.
func (e *Engine) Counts() (attendances, users, tokens int) {
	return e.store.Counts()
}

// persist writes v under key. It is a no-op when memory-only.
func (e *Engine) persist(ctx context.Context, key string, v any) error {
	if e.kv == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := e.kv.Set(ctx, []byte(key), data); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

// unpersist removes key. Failures are logged; the record would reappear
// after a restart.
func (e *Engine) unpersist(ctx context.Context, key string) {
	if e.kv == nil {
		return
	}
	if err := e.kv.Delete(ctx, []byte(key)); err != nil {
		e.logger.Error("delete from kv failed", "key", key, "error", err)
	}
}

// unpersistMany removes keys in one batch, with the same failure policy as
// unpersist.
func (e *Engine) unpersistMany(ctx context.Context, prefix string, ids []string) {
	if e.kv == nil || len(ids) == 0 {
		return
	}
	keys := make([][]byte, len(ids))
	for i, id := range ids {
		keys[i] = []byte(prefix + id)
	}
	if err := e.kv.DeleteMany(ctx, keys); err != nil {
		e.logger.Error("batch delete from kv failed", "prefix", prefix, "keys", len(keys), "error", err)
	}
}

// ============================================================================
// Attendances
// ============================================================================

// GetAttendance retrieves an attendance by ID.
func (e *Engine) GetAttendance(ctx context.Context, id string) (*domain.Attendance, error) {
	return e.store.GetAttendance(ctx, id)
}

// CreateAttendance stores a new attendance.
func (e *Engine) CreateAttendance(ctx context.Context, a *domain.Attendance) error {
	e.wmu.Lock()
	defer e.wmu.Unlock()

	if err := e.store.CreateAttendance(ctx, a); err != nil {
		return err
	}
	if err := e.persist(ctx, prefixAttendance+a.ID, a); err != nil {
		_ = e.store.DeleteAttendance(ctx, a.ID)
		return err
	}
	return nil
}

// UpdateAttendance replaces an attendance with optimistic locking.
func (e *Engine) UpdateAttendance(ctx context.Context, a *domain.Attendance, expectedVersion uint64) error {
	e.wmu.Lock()
	defer e.wmu.Unlock()

	prev, err := e.store.GetAttendance(ctx, a.ID)
	if err != nil {
		return err
	}
	if err := e.store.UpdateAttendance(ctx, a, expectedVersion); err != nil {
		return err
	}
	if err := e.persist(ctx, prefixAttendance+a.ID, a); err != nil {
		e.store.PutAttendance(prev)
		a.Version = prev.Version
		return err
	}
	return nil
}

// ListAttendanceByUser returns a user's attendances ordered by start time.
func (e *Engine) ListAttendanceByUser(ctx context.Context, userID string) ([]*domain.Attendance, error) {
	return e.store.ListAttendanceByUser(ctx, userID)
}

// ListAttendanceStartedBetween returns attendances with from <= start < to.
func (e *Engine) ListAttendanceStartedBetween(ctx context.Context, from, to int64) ([]*domain.Attendance, error) {
	return e.store.ListAttendanceStartedBetween(ctx, from, to)
}

// DeleteAttendanceByUser deletes all attendances of a user.
func (e *Engine) DeleteAttendanceByUser(ctx context.Context, userID string) (int, error) {
	e.wmu.Lock()
	defer e.wmu.Unlock()

	list, err := e.store.ListAttendanceByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	ids := make([]string, len(list))
	for i, a := range list {
		ids[i] = a.ID
	}
	e.unpersistMany(ctx, prefixAttendance, ids)
	return e.store.DeleteAttendanceByUser(ctx, userID)
}

// ============================================================================
// Users
// ============================================================================

// GetUser retrieves a user by ID.
func (e *Engine) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return e.store.GetUser(ctx, id)
}

// GetUserByUsername retrieves a user by username, ignoring case.
func (e *Engine) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return e.store.GetUserByUsername(ctx, username)
}

// CreateUser stores a new user.
func (e *Engine) CreateUser(ctx context.Context, u *domain.User) error {
	e.wmu.Lock()
	defer e.wmu.Unlock()

	if err := e.store.CreateUser(ctx, u); err != nil {
		return err
	}
	if err := e.persist(ctx, prefixUser+u.ID, u); err != nil {
		_ = e.store.DeleteUser(ctx, u.ID)
		return err
	}
	return nil
}

// UpdateUser replaces a user with optimistic locking.
func (e *Engine) UpdateUser(ctx context.Context, u *domain.User, expectedVersion uint64) error {
	e.wmu.Lock()
	defer e.wmu.Unlock()

	prev, err := e.store.GetUser(ctx, u.ID)
	if err != nil {
		return err
	}
	if err := e.store.UpdateUser(ctx, u, expectedVersion); err != nil {
		return err
	}
	if err := e.persist(ctx, prefixUser+u.ID, u); err != nil {
		_ = e.store.DeleteUser(ctx, u.ID)
		e.store.PutUser(prev)
		u.Version = prev.Version
		return err
	}
	return nil
}

// DeleteUser removes a user.
func (e *Engine) DeleteUser(ctx context.Context, id string) error {
	e.wmu.Lock()
	defer e.wmu.Unlock()

	if _, err := e.store.GetUser(ctx, id); err != nil {
		return err
	}
	e.unpersist(ctx, prefixUser+id)
	return e.store.DeleteUser(ctx, id)
}

// ListUsers returns every user.
func (e *Engine) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return e.store.ListUsers(ctx)
}

// ============================================================================
// Tokens
// ============================================================================

// CreateToken stores an issued token.
func (e *Engine) CreateToken(ctx context.Context, t *domain.AuthToken) error {
	e.wmu.Lock()
	defer e.wmu.Unlock()

	if err := e.store.CreateToken(ctx, t); err != nil {
		return err
	}
	if err := e.persist(ctx, prefixToken+t.Hash, t); err != nil {
		_ = e.store.DeleteToken(ctx, t.Hash)
		return err
	}
	return nil
}

// GetToken retrieves a token by hash.
func (e *Engine) GetToken(ctx context.Context, hash string) (*domain.AuthToken, error) {
	return e.store.GetToken(ctx, hash)
}

// DeleteToken removes a token.
func (e *Engine) DeleteToken(ctx context.Context, hash string) error {
	e.wmu.Lock()
	defer e.wmu.Unlock()

	e.unpersist(ctx, prefixToken+hash)
	return e.store.DeleteToken(ctx, hash)
}

// DeleteTokensByUser removes every token of a user.
func (e *Engine) DeleteTokensByUser(ctx context.Context, userID string) ([]string, error) {
	e.wmu.Lock()
	defer e.wmu.Unlock()

	hashes, err := e.store.DeleteTokensByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	e.unpersistMany(ctx, prefixToken, hashes)
	return hashes, nil
}
