package command

import (
	"errors"
	"reflect"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestApp(t *testing.T) {
	app := App()
	if app.Name != "attendmesh-cli" {
		t.Errorf("Name = %q", app.Name)
	}

	names := map[string]bool{}
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{
		"login", "logout", "whoami", "start", "break", "end", "status", "policy",
		"watch", "export", "employee", "admin", "config", "shell",
	} {
		if !names[want] {
			t.Errorf("missing command %q", want)
		}
	}

	flags := map[string]bool{}
	for _, f := range app.Flags {
		flags[f.Names()[0]] = true
	}
	for _, want := range []string{"config", "server", "token", "output", "wide", "verbose"} {
		if !flags[want] {
			t.Errorf("missing flag %q", want)
		}
	}
}

func TestCommandPaths(t *testing.T) {
	cmds := []*cli.Command{
		{Name: "status"},
		{Name: "admin", Subcommands: []*cli.Command{{Name: "create"}, {Name: "delete"}}},
		{Name: "shell"},
		{Name: "secret", Hidden: true},
	}
	got := commandPaths(cmds, "")
	want := []string{"status", "admin", "admin create", "admin delete"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("commandPaths() = %v, want %v", got, want)
	}
}

func TestRequiresLogin(t *testing.T) {
	env := newCLIEnv(t)

	for _, args := range [][]string{
		{"status"}, {"start"}, {"break"}, {"end"}, {"whoami"}, {"logout"},
		{"export"}, {"employee", "list"}, {"admin", "flush-all", "--force"},
	} {
		if _, err := env.run(t, "", args...); !errors.Is(err, ErrNotLoggedIn) {
			t.Errorf("%v: err = %v, want ErrNotLoggedIn", args, err)
		}
	}
}

func TestInvalidOutputFlag(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "", "--output", "xml", "policy"); err == nil {
		t.Error("expected an error for --output xml")
	}
}

func TestTableOutput(t *testing.T) {
	env := newCLIEnv(t)
	out := env.mustRun(t, "--output", "table", "policy")
	if out != "REVIVE_GRACE\n1s\n" {
		t.Errorf("output = %q", out)
	}
}
