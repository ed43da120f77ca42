package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/attendmesh/internal/core/domain"
)

// failingKV is a KVEngine whose writes can be made to fail.
type failingKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	failSet bool
}

func newFailingKV() *failingKV {
	return &failingKV{data: make(map[string][]byte)}
}

func (f *failingKV) Get(_ context.Context, key []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

func (f *failingKV) Set(_ context.Context, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errors.New("disk full")
	}
	f.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (f *failingKV) Delete(_ context.Context, key []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, string(key))
	return nil
}

func (f *failingKV) Scan(_ context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range f.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
			if !fn([]byte(k), v) {
				break
			}
		}
	}
	return nil
}

func (f *failingKV) DeleteMany(_ context.Context, keys [][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, string(k))
	}
	return nil
}

func (f *failingKV) GC(context.Context) (int, error)         { return 0, nil }
func (f *failingKV) Stats(context.Context) (*KVStats, error) { return &KVStats{}, nil }
func (f *failingKV) Close() error                            { return nil }
func (f *failingKV) setFail(v bool)                          { f.mu.Lock(); f.failSet = v; f.mu.Unlock() }
func (f *failingKV) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func newTestUser(id, username string) *domain.User {
	return &domain.User{
		ID:           domain.UserIDPrefix + id,
		Username:     username,
		PasswordHash: "$argon2id$test",
		IsActive:     true,
		Version:      1,
	}
}

func TestEngine_MemoryOnly(t *testing.T) {
	engine, err := New(Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer engine.Close()

	if engine.Durable() {
		t.Error("engine without data dir should be memory-only")
	}
	if err := engine.Recover(context.Background()); err != nil {
		t.Errorf("Recover on memory-only engine: %v", err)
	}

	a, _ := domain.NewAttendance("u1", 1000)
	if err := engine.CreateAttendance(context.Background(), a); err != nil {
		t.Fatalf("CreateAttendance: %v", err)
	}
	if n, _, _ := engine.Counts(); n != 1 {
		t.Errorf("Counts attendances = %d, want 1", n)
	}
}

func TestEngine_Recovery(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultConfig(dir)
	cfg.KV.GCInterval = time.Hour
	cfg.KV.SyncWrites = false

	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	u := newTestUser("01", "alice")
	if err := engine.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := engine.CreateToken(ctx, &domain.AuthToken{Hash: "atth_1", UserID: u.ID}); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	a, _ := domain.NewAttendance(u.ID, 1000)
	if err := engine.CreateAttendance(ctx, a); err != nil {
		t.Fatalf("CreateAttendance: %v", err)
	}
	a.End(2000, 2000, domain.EndReasonClose)
	if err := engine.UpdateAttendance(ctx, a, a.Version); err != nil {
		t.Fatalf("UpdateAttendance: %v", err)
	}
	gone, _ := domain.NewAttendance("u-gone", 1000)
	_ = engine.CreateAttendance(ctx, gone)
	if _, err := engine.DeleteAttendanceByUser(ctx, "u-gone"); err != nil {
		t.Fatalf("DeleteAttendanceByUser: %v", err)
	}

	if err := engine.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen and recover
	engine2, err := New(cfg)
	if err != nil {
		t.Fatalf("New (reopen) failed: %v", err)
	}
	defer engine2.Close()

	if err := engine2.Recover(ctx); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	got, err := engine2.GetUserByUsername(ctx, "ALICE")
	if err != nil || got.ID != u.ID {
		t.Fatalf("recovered user = %+v, %v", got, err)
	}
	if _, err := engine2.GetToken(ctx, "atth_1"); err != nil {
		t.Errorf("recovered token: %v", err)
	}
	ra, err := engine2.GetAttendance(ctx, a.ID)
	if err != nil {
		t.Fatalf("recovered attendance: %v", err)
	}
	if ra.EndTime != 2000 || ra.Version != 2 {
		t.Errorf("recovered attendance = %+v", ra)
	}
	if list, _ := engine2.ListAttendanceByUser(ctx, "u-gone"); len(list) != 0 {
		t.Errorf("deleted attendances came back: %d", len(list))
	}
}

func TestEngine_UpdateRollsBackOnPersistFailure(t *testing.T) {
	kv := newFailingKV()
	engine := NewWithKV(kv, Config{Logger: slog.Default()})
	ctx := context.Background()

	a, _ := domain.NewAttendance("u1", 1000)
	if err := engine.CreateAttendance(ctx, a); err != nil {
		t.Fatalf("CreateAttendance: %v", err)
	}

	kv.setFail(true)
	a.End(2000, 2000, domain.EndReasonClose)
	err := engine.UpdateAttendance(ctx, a, 1)
	if !errors.Is(err, domain.ErrStorageError) {
		t.Fatalf("UpdateAttendance error = %v, want %v", err, domain.ErrStorageError)
	}
	if a.Version != 1 {
		t.Errorf("caller version = %d, want 1 after rollback", a.Version)
	}

	stored, _ := engine.GetAttendance(ctx, a.ID)
	if stored.EndTime != 0 || stored.Version != 1 {
		t.Errorf("memory should be rolled back, got %+v", stored)
	}

	b, _ := domain.NewAttendance("u1", 3000)
	if err := engine.CreateAttendance(ctx, b); err == nil {
		t.Fatal("CreateAttendance should fail while kv fails")
	}
	if _, err := engine.GetAttendance(ctx, b.ID); !errors.Is(err, domain.ErrAttendanceNotFound) {
		t.Errorf("failed create must not be visible, err = %v", err)
	}
}

func TestEngine_UserRenameRollback(t *testing.T) {
	kv := newFailingKV()
	engine := NewWithKV(kv, Config{})
	ctx := context.Background()

	u := newTestUser("01", "alice")
	if err := engine.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	kv.setFail(true)
	u.Username = "alicia"
	if err := engine.UpdateUser(ctx, u, u.Version); err == nil {
		t.Fatal("UpdateUser should fail while kv fails")
	}
	if _, err := engine.GetUserByUsername(ctx, "alice"); err != nil {
		t.Errorf("old username should still resolve: %v", err)
	}
	if _, err := engine.GetUserByUsername(ctx, "alicia"); err == nil {
		t.Error("new username should not resolve after rollback")
	}
}

func TestEngine_DeleteCascades(t *testing.T) {
	kv := newFailingKV()
	engine := NewWithKV(kv, Config{})
	ctx := context.Background()

	u := newTestUser("01", "alice")
	_ = engine.CreateUser(ctx, u)
	_ = engine.CreateToken(ctx, &domain.AuthToken{Hash: "atth_1", UserID: u.ID})
	_ = engine.CreateToken(ctx, &domain.AuthToken{Hash: "atth_2", UserID: u.ID})

	hashes, err := engine.DeleteTokensByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("DeleteTokensByUser: %v", err)
	}
	if len(hashes) != 2 {
		t.Errorf("hashes = %v, want 2", hashes)
	}
	if kv.has(prefixToken+"atth_1") || kv.has(prefixToken+"atth_2") {
		t.Error("tokens should be deleted from kv")
	}

	if err := engine.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if kv.has(prefixUser + u.ID) {
		t.Error("user should be deleted from kv")
	}
	if err := engine.DeleteUser(ctx, u.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("second DeleteUser error = %v, want %v", err, domain.ErrUserNotFound)
	}
}
