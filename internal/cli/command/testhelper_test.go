package command

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/attendmesh/internal/cli/config"
	"github.com/yndnr/attendmesh/internal/core/domain"
	"github.com/yndnr/attendmesh/internal/core/service"
	"github.com/yndnr/attendmesh/internal/export"
	"github.com/yndnr/attendmesh/internal/server/httpserver"
	"github.com/yndnr/attendmesh/internal/server/httpserver/handler"
	"github.com/yndnr/attendmesh/internal/storage"
	"github.com/yndnr/attendmesh/internal/telemetry/logger"
)

const testPassword = "correct-horse-9"

// cliEnv runs the CLI against a real server backed by memory storage.
type cliEnv struct {
	server     *httptest.Server
	attendance *service.AttendanceService
	admin      *service.AdminService
	stateDir   string
	cfgPath    string
	exportDir  string

	// policyDelay holds grace policy responses back, in nanoseconds.
	policyDelay atomic.Int64
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	log := logger.Discard()
	repo := storage.NewWithKV(nil, storage.Config{Logger: log})

	att := service.NewAttendanceService(repo, repo, &service.AttendanceServiceConfig{
		GraceWindow: time.Second,
		Location:    time.UTC,
	}, log)
	auth := service.NewAuthService(repo, &service.AuthServiceConfig{LoginAttemptsPerMinute: 100}, log)
	admin := service.NewAdminService(repo, auth, att, log)

	exportDir := t.TempDir()
	saver, err := export.NewSaver(exportDir, att, log)
	if err != nil {
		t.Fatalf("NewSaver() error = %v", err)
	}

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler: handler.New(&handler.Config{
			Attendance: att,
			Auth:       auth,
			Admin:      admin,
			Saver:      saver,
			Logger:     log,
		}),
		AuthService: auth,
		Logger:      log,
	})
	env := &cliEnv{attendance: att, admin: admin, exportDir: exportDir}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/attendance/policy/" {
			time.Sleep(time.Duration(env.policyDelay.Load()))
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	stateDir := t.TempDir()
	cfg := config.Default()
	cfg.Server = srv.URL
	cfg.Output = "json"
	cfg.StateDir = stateDir
	cfgPath := filepath.Join(stateDir, "cli.yaml")
	if err := config.Save(cfg, cfgPath); err != nil {
		t.Fatalf("save config: %v", err)
	}

	env.server = srv
	env.stateDir = stateDir
	env.cfgPath = cfgPath
	return env
}

func (e *cliEnv) createUser(t *testing.T, username string, staff bool) *domain.User {
	t.Helper()
	u, err := e.admin.CreateUser(context.Background(), &service.CreateUserRequest{
		Username: username,
		Password: testPassword,
		IsStaff:  staff,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s) error = %v", username, err)
	}
	return u
}

// run executes one CLI invocation and returns stdout.
func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := App()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	argv := append([]string{app.Name, "--config", e.cfgPath}, args...)
	err := app.Run(argv)
	return stdout.String(), err
}

// mustRun is run that fails the test on error.
func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, "", args...)
	if err != nil {
		t.Fatalf("%v: %v\noutput: %s", args, err, out)
	}
	return out
}

func (e *cliEnv) login(t *testing.T, username string) {
	t.Helper()
	e.mustRun(t, "login", "--password", testPassword, username)
}

func (e *cliEnv) tokenPath() string {
	return filepath.Join(e.stateDir, "token")
}

// decodeAll decodes a stream of JSON documents.
func decodeAll[T any](t *testing.T, s string) []T {
	t.Helper()
	var out []T
	dec := json.NewDecoder(strings.NewReader(s))
	for {
		var v T
		err := dec.Decode(&v)
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("decode %q: %v", s, err)
		}
		out = append(out, v)
	}
}

func decodeOne[T any](t *testing.T, s string) T {
	t.Helper()
	all := decodeAll[T](t, s)
	if len(all) != 1 {
		t.Fatalf("want one document, got %d in %q", len(all), s)
	}
	return all[0]
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
