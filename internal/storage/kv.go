package storage

import (
	"context"
	"time"
)

// KVEngine is the durable key-value layer behind Engine. Implementations
// must be safe for concurrent use.
type KVEngine interface {
	// Get returns ErrKeyNotFound for a missing key.
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error

	// DeleteMany removes keys in one batch. Missing keys are not an error.
	DeleteMany(ctx context.Context, keys [][]byte) error

	// Scan visits keys under prefix in key order until fn returns false.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error

	// GC compacts the engine and returns the number of rewrite cycles run.
	GC(ctx context.Context) (int, error)

	Stats(ctx context.Context) (*KVStats, error)
	Close() error
}

// KVStats describes the on-disk footprint.
type KVStats struct {
	LSMSize      int64
	ValueLogSize int64

	// LastGC is zero until the first GC pass.
	LastGC   time.Time
	GCCycles uint64
}

// KVConfig configures the Badger engine.
type KVConfig struct {
	// Dir is ignored when InMemory is set.
	Dir      string
	InMemory bool

	// SyncWrites fsyncs every commit. An attendance end must survive a
	// crash, so this defaults to true.
	SyncWrites bool

	// GCInterval between value log GC passes (0 = DefaultGCInterval).
	GCInterval time.Duration

	// GCDiscardRatio is the stale fraction that makes a value log file
	// eligible for rewrite.
	GCDiscardRatio float64

	BlockCacheSize   int64
	ValueLogFileSize int64
	NumMemtables     int
}

// Defaults for KVConfig.
const (
	DefaultGCInterval     = 10 * time.Minute
	DefaultGCDiscardRatio = 0.5
)

// DefaultKVConfig returns the configuration used by the server. Attendance
// records are small, so the value log and caches are sized well below
// Badger's own defaults.
func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{
		Dir:              dir,
		SyncWrites:       true,
		GCInterval:       DefaultGCInterval,
		GCDiscardRatio:   DefaultGCDiscardRatio,
		BlockCacheSize:   16 << 20,
		ValueLogFileSize: 64 << 20,
		NumMemtables:     2,
	}
}
