package command

import (
	"strings"
	"testing"

	"github.com/yndnr/attendmesh/internal/cli/config"
)

func TestConfigShowSetPath(t *testing.T) {
	env := newCLIEnv(t)

	cv := decodeOne[configView](t, env.mustRun(t, "config", "show"))
	if cv.Path != env.cfgPath || cv.Server != env.server.URL || cv.Grace != "default" || cv.LoggedIn {
		t.Errorf("show = %+v", cv)
	}

	env.mustRun(t, "config", "set", "grace", "1500ms")
	env.mustRun(t, "config", "set", "beacon", "false")
	cfg, err := config.Load(env.cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Grace.String() != "1.5s" || cfg.Beacon {
		t.Errorf("saved config = %+v", cfg)
	}
	if cfg.Server != env.server.URL {
		t.Errorf("set must keep other keys, server = %q", cfg.Server)
	}

	if _, err := env.run(t, "", "config", "set", "output", "xml"); err == nil {
		t.Error("invalid value should be rejected")
	}
	if _, err := env.run(t, "", "config", "set", "colour", "on"); err == nil {
		t.Error("unknown key should be rejected")
	}
	if _, err := env.run(t, "", "config", "set", "server"); err == nil {
		t.Error("missing value should be rejected")
	}

	if out := env.mustRun(t, "config", "path"); strings.TrimSpace(out) != env.cfgPath {
		t.Errorf("path = %q", out)
	}
}

func TestConfig_ServerFlagOverridesFile(t *testing.T) {
	env := newCLIEnv(t)
	cv := decodeOne[configView](t, env.mustRun(t, "--server", "http://other:5080", "config", "show"))
	if cv.Server != "http://other:5080" {
		t.Errorf("server = %q", cv.Server)
	}
}

func TestShell(t *testing.T) {
	env := newCLIEnv(t)
	env.createUser(t, "alice", false)
	env.login(t, "alice")

	out, err := env.run(t, "start\nstatus\nhelp adm\nexit\n", "shell")
	if err != nil {
		t.Fatalf("shell: %v", err)
	}
	if !strings.Contains(out, `"outcome": "started"`) {
		t.Errorf("shell output lacks start result:\n%s", out)
	}
	if !strings.Contains(out, `"active_attendance"`) {
		t.Errorf("shell output lacks status:\n%s", out)
	}
	if !strings.Contains(out, "admin create") {
		t.Errorf("help output lacks admin commands:\n%s", out)
	}
	if !fileExists(env.stateDir + "/history") {
		t.Error("shell history not saved")
	}
}
