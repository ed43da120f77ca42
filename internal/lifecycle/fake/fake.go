// Package fake provides in-memory doubles for the lifecycle interfaces.
package fake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yndnr/attendmesh/internal/lifecycle"
)

var (
	_ lifecycle.Transport   = (*Transport)(nil)
	_ lifecycle.MarkerStore = (*MarkerStore)(nil)
	_ lifecycle.TokenSource = (*Tokens)(nil)
)

// ErrInjected is returned by doubles configured to fail.
var ErrInjected = errors.New("fake: injected failure")

// Request is one recorded transport call.
type Request struct {
	Kind        string // beacon, keepalive or call
	Path        string
	Token       string
	ContentType string
	Body        []byte
}

// Transport records every request instead of sending it.
type Transport struct {
	mu sync.Mutex

	// BeaconUnavailable makes Beacon return false.
	BeaconUnavailable bool

	// CallErr is returned by Call.
	CallErr error

	// PanicOnBeacon makes Beacon panic.
	PanicOnBeacon bool

	// CallDelay delays Call, to exercise concurrent reconciliation.
	CallDelay time.Duration

	requests []Request
}

// Beacon implements lifecycle.Transport.
func (t *Transport) Beacon(path, contentType string, body []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.PanicOnBeacon {
		panic("fake: beacon exploded")
	}
	if t.BeaconUnavailable {
		return false
	}
	t.requests = append(t.requests, Request{Kind: "beacon", Path: path, ContentType: contentType, Body: clone(body)})
	return true
}

// KeepAlive implements lifecycle.Transport.
func (t *Transport) KeepAlive(path, token, contentType string, body []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, Request{Kind: "keepalive", Path: path, Token: token, ContentType: contentType, Body: clone(body)})
}

// Call implements lifecycle.Transport.
func (t *Transport) Call(ctx context.Context, path, token, contentType string, body []byte) error {
	t.mu.Lock()
	delay, err := t.CallDelay, t.CallErr
	t.requests = append(t.requests, Request{Kind: "call", Path: path, Token: token, ContentType: contentType, Body: clone(body)})
	t.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Requests returns a copy of all recorded requests.
func (t *Transport) Requests() []Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Request(nil), t.requests...)
}

// Count returns how many requests of kind were recorded.
func (t *Transport) Count(kind string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, r := range t.requests {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

// MarkerStore is an in-memory marker store with call counters.
type MarkerStore struct {
	mu sync.Mutex

	value   int64
	present bool

	// LoadErr, StoreErr and ClearErr are returned by the matching method.
	LoadErr  error
	StoreErr error
	ClearErr error

	Loads, Stores, Clears int
}

// NewMarkerStore returns an empty store.
func NewMarkerStore() *MarkerStore {
	return &MarkerStore{}
}

// Set plants a marker.
func (m *MarkerStore) Set(ms int64) {
	m.mu.Lock()
	m.value, m.present = ms, true
	m.mu.Unlock()
}

// Peek returns the stored marker without counting a load.
func (m *MarkerStore) Peek() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.present
}

// Load implements lifecycle.MarkerStore.
func (m *MarkerStore) Load() (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Loads++
	if m.LoadErr != nil {
		return 0, false, m.LoadErr
	}
	return m.value, m.present, nil
}

// Store implements lifecycle.MarkerStore.
func (m *MarkerStore) Store(ms int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stores++
	if m.StoreErr != nil {
		return m.StoreErr
	}
	m.value, m.present = ms, true
	return nil
}

// Clear implements lifecycle.MarkerStore.
func (m *MarkerStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Clears++
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.value, m.present = 0, false
	return nil
}

// Tokens is a mutable token source.
type Tokens struct {
	mu    sync.Mutex
	token string
}

// NewTokens returns a source holding token ("" = logged out).
func NewTokens(token string) *Tokens {
	return &Tokens{token: token}
}

// Set replaces the token.
func (t *Tokens) Set(token string) {
	t.mu.Lock()
	t.token = token
	t.mu.Unlock()
}

// Token implements lifecycle.TokenSource.
func (t *Tokens) Token() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token, t.token != ""
}

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock set to t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
