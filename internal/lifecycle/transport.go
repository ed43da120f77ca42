package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Transport abstracts the network calls of the protocol.
type Transport interface {
	// Beacon queues a fire-and-forget POST without custom headers.
	// It returns false when the beacon could not be queued.
	Beacon(path, contentType string, body []byte) bool

	// KeepAlive starts a detached POST carrying the bearer token.
	// The caller never waits for it.
	KeepAlive(path, token, contentType string, body []byte)

	// Call performs a POST and waits for the response.
	Call(ctx context.Context, path, token, contentType string, body []byte) error
}

// MaxBeaconPayload caps beacon bodies, mirroring browser beacon quotas.
const MaxBeaconPayload = 64 << 10

// HTTPTransport is the Transport used against a real server.
// Background requests are tracked so the process can Drain them before exit.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	beaconEnabled bool
	detachTimeout time.Duration

	mu       sync.Mutex // guards closed and wg.Add
	wg       sync.WaitGroup
	closed   bool
	inflight atomic.Int64
}

// HTTPTransportOption configures an HTTPTransport.
type HTTPTransportOption func(*HTTPTransport)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) HTTPTransportOption {
	return func(t *HTTPTransport) { t.client = c }
}

// WithBeacon enables or disables the beacon path. A disabled beacon makes
// every end notification use the keep-alive fallback.
func WithBeacon(enabled bool) HTTPTransportOption {
	return func(t *HTTPTransport) { t.beaconEnabled = enabled }
}

// WithDetachTimeout bounds each background request (default 5s).
func WithDetachTimeout(d time.Duration) HTTPTransportOption {
	return func(t *HTTPTransport) { t.detachTimeout = d }
}

// WithTransportLogger sets the logger.
func WithTransportLogger(l *slog.Logger) HTTPTransportOption {
	return func(t *HTTPTransport) { t.logger = l }
}

// NewHTTPTransport creates a transport for the server at baseURL.
func NewHTTPTransport(baseURL string, opts ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{Timeout: 10 * time.Second},
		logger:        slog.Default(),
		beaconEnabled: true,
		detachTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Beacon implements Transport.
func (t *HTTPTransport) Beacon(path, contentType string, body []byte) bool {
	if !t.beaconEnabled || len(body) > MaxBeaconPayload {
		return false
	}
	return t.detach("beacon", path, "", contentType, body)
}

// KeepAlive implements Transport.
func (t *HTTPTransport) KeepAlive(path, token, contentType string, body []byte) {
	if !t.detach("keepalive", path, token, contentType, body) {
		t.logger.Warn("keepalive dropped, transport closed", "path", path)
	}
}

// Call implements Transport.
func (t *HTTPTransport) Call(ctx context.Context, path, token, contentType string, body []byte) error {
	return t.post(ctx, path, token, contentType, body)
}

// Inflight returns the number of background requests not yet finished.
func (t *HTTPTransport) Inflight() int {
	return int(t.inflight.Load())
}

// Drain stops accepting background requests and waits for the running
// ones until ctx is done.
func (t *HTTPTransport) Drain(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain: %d request(s) still in flight: %w", t.Inflight(), ctx.Err())
	}
}

// detach starts a tracked background POST. It returns false once the
// transport is draining.
func (t *HTTPTransport) detach(kind, path, token, contentType string, body []byte) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	t.wg.Add(1)
	t.mu.Unlock()

	payload := append([]byte(nil), body...)
	t.inflight.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.inflight.Add(-1)

		ctx, cancel := context.WithTimeout(context.Background(), t.detachTimeout)
		defer cancel()

		if err := t.post(ctx, path, token, contentType, payload); err != nil {
			t.logger.Warn("background request failed", "kind", kind, "path", path, "error", err)
			return
		}
		t.logger.Debug("background request delivered", "kind", kind, "path", path)
	}()
	return true
}

func (t *HTTPTransport) post(ctx context.Context, path, token, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// StatusError is returned by Call for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
