package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yndnr/attendmesh/internal/core/domain"
	"github.com/yndnr/attendmesh/internal/core/service"
)

// Reporter is the part of AttendanceService the exporter needs.
type Reporter interface {
	DailyReport(ctx context.Context, day time.Time) ([]service.ReportEntry, error)
	Location() *time.Location
	Today() time.Time
}

// Saver writes daily CSV reports into a directory. As an Observer it
// re-saves the current day whenever an attendance is close-ended.
type Saver struct {
	dir      string
	reporter Reporter
	logger   *slog.Logger
	now      func() time.Time
	timeout  time.Duration

	sf     singleflight.Group
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

var _ service.Observer = (*Saver)(nil)

// NewSaver creates a Saver writing into dir.
func NewSaver(dir string, reporter Reporter, logger *slog.Logger) (*Saver, error) {
	if dir == "" {
		return nil, errors.New("export: dir is required")
	}
	if reporter == nil {
		return nil, errors.New("export: reporter is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Saver{
		dir:      dir,
		reporter: reporter,
		logger:   logger,
		now:      time.Now,
		timeout:  30 * time.Second,
	}, nil
}

// Dir returns the export directory.
func (s *Saver) Dir() string {
	return s.dir
}

// Render builds the rows for day.
func (s *Saver) Render(ctx context.Context, day time.Time) ([]Row, error) {
	entries, err := s.reporter.DailyReport(ctx, day)
	if err != nil {
		return nil, err
	}
	return BuildRows(entries, s.now(), s.reporter.Location()), nil
}

// Save regenerates the CSV for day and returns its path. Concurrent saves
// of the same day share one write.
func (s *Saver) Save(ctx context.Context, day time.Time) (string, error) {
	day = day.In(s.reporter.Location())
	name := FileName(day, "csv")

	v, err, _ := s.sf.Do(name, func() (interface{}, error) {
		return s.save(ctx, day, name)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Saver) save(ctx context.Context, day time.Time, name string) (string, error) {
	rows, err := s.Render(ctx, day)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", domain.ErrStorageError.WithCause(fmt.Errorf("create export dir: %w", err))
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o640); err != nil {
		return "", domain.ErrStorageError.WithCause(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", domain.ErrStorageError.WithCause(err)
	}

	s.logger.Debug("attendance csv saved", "path", path, "rows", len(rows))
	return path, nil
}

// OnAttendanceEvent implements service.Observer. A close-end schedules a
// background save of today's report.
func (s *Saver) OnAttendanceEvent(ev service.Event) {
	if ev.Type != service.EventEnded || ev.EndReason != string(domain.EndReasonClose) {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if _, err := s.Save(ctx, s.reporter.Today()); err != nil {
			s.logger.Warn("auto-save of attendance csv failed", "user_id", ev.UserID, "error", err)
		}
	}()
}

// Close stops scheduling saves and waits for running ones.
func (s *Saver) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
