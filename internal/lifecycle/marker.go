package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// MarkerKey names the Last-Unload Marker.
const MarkerKey = "att_last_unload"

// MarkerStore persists the Last-Unload Marker (Unix milliseconds) across
// instances.
type MarkerStore interface {
	// Load returns the marker; ok is false when none is stored.
	Load() (ms int64, ok bool, err error)

	// Store overwrites the marker.
	Store(ms int64) error

	// Clear removes the marker. Clearing an absent marker is not an error.
	Clear() error
}

// Taker is implemented by stores that can read and clear the marker as one
// atomic step.
type Taker interface {
	Take() (ms int64, ok bool, err error)
}

// ParseMarker decodes a stored marker value.
func ParseMarker(s string) (int64, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("marker %q: %w", s, err)
	}
	if ms <= 0 {
		return 0, fmt.Errorf("marker %q: not a positive timestamp", s)
	}
	return ms, nil
}

// FormatMarker encodes a marker value.
func FormatMarker(ms int64) string {
	return strconv.FormatInt(ms, 10)
}

// lockTimeout bounds how long a marker operation waits for another process.
const lockTimeout = 250 * time.Millisecond

// FileMarkerStore keeps the marker in <dir>/att_last_unload, guarded by
// an advisory lock on <dir>/att_last_unload.lock so that concurrent
// instances never consume the same marker twice.
type FileMarkerStore struct {
	path string
	lock *flock.Flock
}

var _ Taker = (*FileMarkerStore)(nil)

// NewFileMarkerStore creates dir if needed and returns a store inside it.
func NewFileMarkerStore(dir string) (*FileMarkerStore, error) {
	if dir == "" {
		return nil, errors.New("marker: dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("marker: create dir: %w", err)
	}
	path := filepath.Join(dir, MarkerKey)
	return &FileMarkerStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the marker file path.
func (s *FileMarkerStore) Path() string {
	return s.path
}

func (s *FileMarkerStore) withLock(fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := s.lock.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return fmt.Errorf("marker: lock: %w", err)
	}
	if !locked {
		return errors.New("marker: lock busy")
	}
	defer s.lock.Unlock()

	return fn()
}

func (s *FileMarkerStore) load() (int64, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("marker: read: %w", err)
	}
	ms, err := ParseMarker(string(data))
	if err != nil {
		return 0, false, err
	}
	return ms, true, nil
}

func (s *FileMarkerStore) remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("marker: remove: %w", err)
	}
	return nil
}

// Load implements MarkerStore.
func (s *FileMarkerStore) Load() (ms int64, ok bool, err error) {
	err = s.withLock(func() error {
		ms, ok, err = s.load()
		return err
	})
	return ms, ok, err
}

// Store implements MarkerStore. The value is written to a temp file and
// renamed into place.
func (s *FileMarkerStore) Store(ms int64) error {
	return s.withLock(func() error {
		tmp := s.path + ".tmp"
		if err := os.WriteFile(tmp, []byte(FormatMarker(ms)), 0o600); err != nil {
			return fmt.Errorf("marker: write: %w", err)
		}
		if err := os.Rename(tmp, s.path); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("marker: rename: %w", err)
		}
		return nil
	})
}

// Clear implements MarkerStore.
func (s *FileMarkerStore) Clear() error {
	return s.withLock(s.remove)
}

// Take implements Taker. The marker file is removed even when its content
// cannot be parsed.
func (s *FileMarkerStore) Take() (ms int64, ok bool, err error) {
	err = s.withLock(func() error {
		var loadErr error
		ms, ok, loadErr = s.load()
		if rmErr := s.remove(); rmErr != nil {
			return errors.Join(loadErr, rmErr)
		}
		return loadErr
	})
	return ms, ok, err
}
