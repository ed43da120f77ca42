package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/yndnr/attendmesh/internal/core/domain"
)

// Server paths used by the protocol.
const (
	DefaultEndPath    = "/api/attendance/end/"
	DefaultRevivePath = "/api/attendance/revive_if_recent/"
)

// ContentTypeJSON is sent on both end-notification paths.
const ContentTypeJSON = "application/json"

// TokenSource yields the current session token. ok is false when the
// client is not logged in.
type TokenSource interface {
	Token() (token string, ok bool)
}

// StaticToken is a fixed token; the empty string means "no token".
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() (string, bool) {
	return string(t), t != ""
}

// FileTokenSource reads the token from a file on every call, so a logout
// in another process is observed.
type FileTokenSource struct {
	Path string
}

// Token implements TokenSource. A missing or empty file means no token.
func (f FileTokenSource) Token() (string, bool) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", false
	}
	tok := strings.TrimSpace(string(data))
	return tok, tok != ""
}

// Context holds everything one instance shares between its notifier and
// its reconciler. It is built once per instance.
type Context struct {
	Tokens    TokenSource
	Markers   MarkerStore
	Transport Transport

	// Grace is the reload threshold (default: domain.DefaultGraceWindow).
	Grace time.Duration

	// EndPath and RevivePath default to the attendance API paths.
	EndPath    string
	RevivePath string

	// Now is the clock (default: time.Now).
	Now func() time.Time

	Logger *slog.Logger
}

// validate fills defaults and checks required fields.
func (c *Context) validate() error {
	var errs []error
	if c.Tokens == nil {
		errs = append(errs, errors.New("lifecycle: token source is required"))
	}
	if c.Markers == nil {
		errs = append(errs, errors.New("lifecycle: marker store is required"))
	}
	if c.Transport == nil {
		errs = append(errs, errors.New("lifecycle: transport is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if c.Grace <= 0 {
		c.Grace = domain.DefaultGraceWindow
	}
	if c.EndPath == "" {
		c.EndPath = DefaultEndPath
	}
	if c.RevivePath == "" {
		c.RevivePath = DefaultRevivePath
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Instance is one client run: it reconciles at load and notifies at teardown.
type Instance struct {
	ctx        *Context
	notifier   *UnloadNotifier
	reconciler *ReloadReconciler
}

// NewInstance validates c and builds an instance around it.
func NewInstance(c *Context) (*Instance, error) {
	if c == nil {
		return nil, errors.New("lifecycle: context is required")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &Instance{
		ctx:        c,
		notifier:   &UnloadNotifier{ctx: c},
		reconciler: &ReloadReconciler{ctx: c},
	}, nil
}

// Context returns the instance context.
func (i *Instance) Context() *Context {
	return i.ctx
}

// Load starts reconciliation in the background and returns its outcome channel.
func (i *Instance) Load(ctx context.Context) <-chan Outcome {
	return i.reconciler.Start(ctx)
}

// Reconcile runs reconciliation synchronously.
func (i *Instance) Reconcile(ctx context.Context) Outcome {
	return i.reconciler.Reconcile(ctx)
}

// Unload records the marker and dispatches the end notification once.
// It may be called any number of times.
func (i *Instance) Unload() Dispatch {
	return i.notifier.Notify()
}
