package lifecycle

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordedRequest struct {
	path, auth, contentType, requestID, body string
}

func newRecordingServer(t *testing.T, status int) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{
			path:        r.URL.Path,
			auth:        r.Header.Get("Authorization"),
			contentType: r.Header.Get("Content-Type"),
			requestID:   r.Header.Get("X-Request-ID"),
			body:        string(body),
		})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), reqs...)
	}
}

func drain(t *testing.T, tr *HTTPTransport) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tr.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
}

func TestHTTPTransport_BeaconHasNoAuthorization(t *testing.T) {
	srv, reqs := newRecordingServer(t, http.StatusOK)
	tr := NewHTTPTransport(srv.URL + "/")

	if !tr.Beacon(DefaultEndPath, ContentTypeJSON, []byte(`{"token":"x"}`)) {
		t.Fatal("Beacon() = false")
	}
	drain(t, tr)

	got := reqs()
	if len(got) != 1 {
		t.Fatalf("requests = %d, want 1", len(got))
	}
	if got[0].path != DefaultEndPath || got[0].auth != "" || got[0].contentType != ContentTypeJSON {
		t.Errorf("beacon request = %+v", got[0])
	}
	if got[0].body != `{"token":"x"}` {
		t.Errorf("body = %q", got[0].body)
	}
	if got[0].requestID == "" {
		t.Error("X-Request-ID should be set")
	}
}

func TestHTTPTransport_BeaconRefusals(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusOK)

	disabled := NewHTTPTransport(srv.URL, WithBeacon(false))
	if disabled.Beacon(DefaultEndPath, ContentTypeJSON, nil) {
		t.Error("disabled beacon should refuse")
	}

	tr := NewHTTPTransport(srv.URL)
	big := []byte(strings.Repeat("x", MaxBeaconPayload+1))
	if tr.Beacon(DefaultEndPath, ContentTypeJSON, big) {
		t.Error("oversized beacon should refuse")
	}

	drain(t, tr)
	if tr.Beacon(DefaultEndPath, ContentTypeJSON, nil) {
		t.Error("beacon after Drain should refuse")
	}
}

func TestHTTPTransport_KeepAliveCarriesBearer(t *testing.T) {
	srv, reqs := newRecordingServer(t, http.StatusOK)
	tr := NewHTTPTransport(srv.URL)

	tr.KeepAlive(DefaultEndPath, "attk_tok", ContentTypeJSON, []byte(`{}`))
	drain(t, tr)

	got := reqs()
	if len(got) != 1 || got[0].auth != "Bearer attk_tok" {
		t.Errorf("keepalive requests = %+v", got)
	}
	if tr.Inflight() != 0 {
		t.Errorf("Inflight() = %d, want 0", tr.Inflight())
	}
}

func TestHTTPTransport_CallStatusError(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusUnauthorized)
	tr := NewHTTPTransport(srv.URL)

	err := tr.Call(context.Background(), DefaultRevivePath, "attk_tok", "", nil)
	if err == nil {
		t.Fatal("Call() should fail on 401")
	}
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("IsStatus(err, 401) = false, err = %v", err)
	}
}

func TestHTTPTransport_CallSuccess(t *testing.T) {
	srv, reqs := newRecordingServer(t, http.StatusOK)
	tr := NewHTTPTransport(srv.URL)

	if err := tr.Call(context.Background(), DefaultRevivePath, "attk_tok", "", nil); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	got := reqs()
	if len(got) != 1 || got[0].path != DefaultRevivePath || got[0].contentType != "" {
		t.Errorf("requests = %+v", got)
	}
}

func TestHTTPTransport_DrainTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	tr := NewHTTPTransport(srv.URL)
	tr.KeepAlive(DefaultEndPath, "attk_tok", ContentTypeJSON, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := tr.Drain(ctx); err == nil {
		t.Error("Drain() should time out while a request is blocked")
	}
}
