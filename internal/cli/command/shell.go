package command

import (
	"context"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/attendmesh/internal/cli/repl"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:   "shell",
		Usage:  "Run commands interactively",
		Action: shell,
	}
}

func shell(c *cli.Context) error {
	cfg, err := LoadConfig(c)
	if err != nil {
		return err
	}

	history := repl.NewHistory(filepath.Join(cfg.StateDir, "history"), 0)
	if err := history.Load(); err != nil {
		commandLogger(c).Warn("load shell history failed", "error", err)
	}
	defer func() {
		if err := history.Save(); err != nil {
			commandLogger(c).Warn("save shell history failed", "error", err)
		}
	}()

	inherited := inheritedFlags(c)
	r := repl.New(repl.Config{
		Input:     c.App.Reader,
		Output:    c.App.Writer,
		Completer: repl.NewCompleter(commandPaths(c.App.Commands, "")),
		History:   history,
		Exec: func(ctx context.Context, args []string) error {
			app := App()
			app.Reader = c.App.Reader
			app.Writer = c.App.Writer
			app.ErrWriter = c.App.ErrWriter
			app.ExitErrHandler = func(*cli.Context, error) {}
			argv := append(append([]string{app.Name}, inherited...), args...)
			return app.RunContext(ctx, argv)
		},
	})
	return r.Run(c.Context)
}

// inheritedFlags forwards the global flags the shell was started with.
func inheritedFlags(c *cli.Context) []string {
	var out []string
	for _, name := range []string{"config", "server", "token", "output"} {
		if v := c.String(name); v != "" {
			out = append(out, "--"+name, v)
		}
	}
	for _, name := range []string{"wide", "verbose"} {
		if c.Bool(name) {
			out = append(out, "--"+name)
		}
	}
	return out
}

// commandPaths flattens the command tree into "group sub" strings.
func commandPaths(cmds []*cli.Command, prefix string) []string {
	var out []string
	for _, cmd := range cmds {
		if cmd.Hidden || cmd.Name == "shell" || cmd.Name == "help" {
			continue
		}
		path := cmd.Name
		if prefix != "" {
			path = prefix + " " + cmd.Name
		}
		out = append(out, path)
		out = append(out, commandPaths(cmd.Subcommands, path)...)
	}
	return out
}
