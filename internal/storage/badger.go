package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrKeyNotFound = errors.New("storage: key not found")
	ErrClosed      = errors.New("storage: kv engine closed")
)

// BadgerEngine implements KVEngine on Badger. It doubles as a Prometheus
// collector reporting its size at scrape time.
type BadgerEngine struct {
	db     *badger.DB
	cfg    KVConfig
	logger *slog.Logger

	closed   atomic.Bool
	lastGC   atomic.Int64 // unix nanos
	gcCycles atomic.Uint64

	stop chan struct{}
	wg   sync.WaitGroup

	lsmDesc, vlogDesc, lastGCDesc, cyclesDesc *prometheus.Desc
}

var (
	_ KVEngine             = (*BadgerEngine)(nil)
	_ prometheus.Collector = (*BadgerEngine)(nil)
)

// NewBadgerEngine opens the database and starts the periodic GC.
func NewBadgerEngine(cfg KVConfig, logger *slog.Logger) (*BadgerEngine, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, errors.New("storage: kv dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = DefaultGCInterval
	}
	if cfg.GCDiscardRatio <= 0 || cfg.GCDiscardRatio >= 1 {
		cfg.GCDiscardRatio = DefaultGCDiscardRatio
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.
		WithLogger(badgerLogger{logger.With("component", "badger")}).
		WithSyncWrites(cfg.SyncWrites && !cfg.InMemory)
	if cfg.BlockCacheSize > 0 {
		opts = opts.WithBlockCacheSize(cfg.BlockCacheSize)
	}
	if cfg.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(cfg.ValueLogFileSize)
	}
	if cfg.NumMemtables > 0 {
		opts = opts.WithNumMemtables(cfg.NumMemtables)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open badger: %w", err)
	}

	e := &BadgerEngine{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stop:   make(chan struct{}),
		lsmDesc: prometheus.NewDesc("attendmesh_badger_lsm_size_bytes",
			"Badger LSM tree size.", nil, nil),
		vlogDesc: prometheus.NewDesc("attendmesh_badger_value_log_size_bytes",
			"Badger value log size.", nil, nil),
		lastGCDesc: prometheus.NewDesc("attendmesh_badger_last_gc_timestamp_seconds",
			"Time of the last value log GC pass.", nil, nil),
		cyclesDesc: prometheus.NewDesc("attendmesh_badger_gc_rewrites_total",
			"Value log files rewritten by GC.", nil, nil),
	}

	if !cfg.InMemory {
		e.wg.Add(1)
		go e.gcLoop()
	}

	logger.Info("badger engine started",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"sync_writes", opts.SyncWrites,
		"gc_interval", cfg.GCInterval)
	return e, nil
}

// Get returns the value stored under key.
func (e *BadgerEngine) Get(_ context.Context, key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

// Set stores value under key.
func (e *BadgerEngine) Set(_ context.Context, key, value []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete removes key.
func (e *BadgerEngine) Delete(ctx context.Context, key []byte) error {
	return e.DeleteMany(ctx, [][]byte{key})
}

// DeleteMany removes keys through a write batch, which splits large sets
// into several transactions.
func (e *BadgerEngine) DeleteMany(_ context.Context, keys [][]byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if len(keys) == 0 {
		return nil
	}
	wb := e.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Scan visits keys under prefix.
func (e *BadgerEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(item.KeyCopy(nil), value) {
				return nil
			}
		}
		return nil
	})
}

// GC rewrites value log files until Badger finds nothing worth rewriting.
// In-memory databases have no value log.
func (e *BadgerEngine) GC(ctx context.Context) (int, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	if e.cfg.InMemory {
		return 0, nil
	}

	cycles := 0
	var err error
	for ctx.Err() == nil {
		if err = e.db.RunValueLogGC(e.cfg.GCDiscardRatio); err != nil {
			break
		}
		cycles++
	}
	e.lastGC.Store(time.Now().UnixNano())
	e.gcCycles.Add(uint64(cycles))

	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return cycles, fmt.Errorf("storage: value log gc: %w", err)
	}
	return cycles, nil
}

// Stats reports sizes and GC progress.
func (e *BadgerEngine) Stats(context.Context) (*KVStats, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	lsm, vlog := e.db.Size()
	s := &KVStats{
		LSMSize:      lsm,
		ValueLogSize: vlog,
		GCCycles:     e.gcCycles.Load(),
	}
	if ns := e.lastGC.Load(); ns > 0 {
		s.LastGC = time.Unix(0, ns)
	}
	return s, nil
}

// Close stops the GC loop and closes the database. Later calls are no-ops.
func (e *BadgerEngine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(e.stop)
	e.wg.Wait()

	if err := e.db.Close(); err != nil {
		return fmt.Errorf("storage: close badger: %w", err)
	}
	e.logger.Info("badger engine closed")
	return nil
}

// RegisterMetrics adds the engine to registry as a collector.
func (e *BadgerEngine) RegisterMetrics(registry prometheus.Registerer) error {
	return registry.Register(e)
}

// Describe implements prometheus.Collector.
func (e *BadgerEngine) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.lsmDesc
	ch <- e.vlogDesc
	ch <- e.lastGCDesc
	ch <- e.cyclesDesc
}

// Collect implements prometheus.Collector. A closed engine reports nothing.
func (e *BadgerEngine) Collect(ch chan<- prometheus.Metric) {
	s, err := e.Stats(context.Background())
	if err != nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(e.lsmDesc, prometheus.GaugeValue, float64(s.LSMSize))
	ch <- prometheus.MustNewConstMetric(e.vlogDesc, prometheus.GaugeValue, float64(s.ValueLogSize))
	var last float64
	if !s.LastGC.IsZero() {
		last = float64(s.LastGC.UnixNano()) / 1e9
	}
	ch <- prometheus.MustNewConstMetric(e.lastGCDesc, prometheus.GaugeValue, last)
	ch <- prometheus.MustNewConstMetric(e.cyclesDesc, prometheus.CounterValue, float64(s.GCCycles))
}

func (e *BadgerEngine) gcLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), e.cfg.GCInterval/2)
			n, err := e.GC(ctx)
			cancel()
			if err != nil {
				e.logger.Error("value log gc failed", "error", err)
			} else if n > 0 {
				e.logger.Debug("value log gc", "rewrites", n)
			}
		case <-e.stop:
			return
		}
	}
}

// badgerLogger routes Badger's printf logging into slog. Badger's info
// chatter goes to debug.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...))
}
