package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// serve runs s on a loopback listener and returns its base URL. The
// server is shut down when the test ends.
func serve(t *testing.T, s *Server, scheme string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Serve() returned %v", err)
		}
	})
	return scheme + "://" + ln.Addr().String()
}

func hello(w http.ResponseWriter, _ *http.Request) {
	io.WriteString(w, "hello")
}

func get(t *testing.T, c *http.Client, url string) string {
	t.Helper()
	resp, err := c.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func TestServer_ServePlain(t *testing.T) {
	s := New("127.0.0.1:0", http.HandlerFunc(hello))
	if s.TLS() {
		t.Fatal("TLS() without a TLS config")
	}
	base := serve(t, s, "http")
	if got := get(t, http.DefaultClient, base+"/"); got != "hello" {
		t.Errorf("body = %q", got)
	}
}

func TestServer_ServeTLS(t *testing.T) {
	// Borrow httptest's loopback certificate and the client that trusts it.
	ref := httptest.NewTLSServer(http.NotFoundHandler())
	defer ref.Close()

	cfg := &tls.Config{Certificates: ref.TLS.Certificates, MinVersion: tls.VersionTLS12}
	s := New("127.0.0.1:0", http.HandlerFunc(hello), WithTLSConfig(cfg))
	if !s.TLS() {
		t.Fatal("TLS() = false")
	}
	base := serve(t, s, "https")
	if got := get(t, ref.Client(), base+"/"); got != "hello" {
		t.Errorf("body = %q", got)
	}
}

func TestNew_Options(t *testing.T) {
	s := New("127.0.0.1:0", http.NotFoundHandler())
	if s.httpServer.ReadHeaderTimeout != 10*time.Second {
		t.Errorf("default ReadHeaderTimeout = %v", s.httpServer.ReadHeaderTimeout)
	}

	s = New("127.0.0.1:9", http.NotFoundHandler(), WithTimeouts(3*time.Second, 7*time.Second))
	hs := s.httpServer
	if hs.ReadTimeout != 3*time.Second || hs.ReadHeaderTimeout != 3*time.Second || hs.WriteTimeout != 7*time.Second {
		t.Errorf("timeouts = %v/%v/%v", hs.ReadTimeout, hs.ReadHeaderTimeout, hs.WriteTimeout)
	}
	if s.Addr() != "127.0.0.1:9" {
		t.Errorf("Addr() = %q", s.Addr())
	}
}

func TestDefaultRouterConfig(t *testing.T) {
	cfg := DefaultRouterConfig()
	if cfg.GlobalRateLimit != 100 || !cfg.EnableAudit {
		t.Errorf("DefaultRouterConfig() = %+v", cfg)
	}
}
