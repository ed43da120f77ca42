package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/attendmesh/internal/cli/config"
	"github.com/yndnr/attendmesh/internal/cli/connection"
	"github.com/yndnr/attendmesh/internal/cli/output"
	"github.com/yndnr/attendmesh/internal/infra/buildinfo"
	"github.com/yndnr/attendmesh/internal/infra/tlsroots"
	"github.com/yndnr/attendmesh/internal/telemetry/logger"
)

const metaConfig = "config"

// requestTimeout bounds one API call.
const requestTimeout = 30 * time.Second

// ErrNotLoggedIn is returned by commands that need a session token.
var ErrNotLoggedIn = errors.New("not logged in (run \"attendmesh-cli login\")")

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "attendmesh-cli",
		Usage:                "Attendance tracking from the command line",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			LoginCommand(),
			LogoutCommand(),
			WhoamiCommand(),
			StartCommand(),
			BreakCommand(),
			EndCommand(),
			StatusCommand(),
			PolicyCommand(),
			WatchCommand(),
			ExportCommand(),
			EmployeeCommand(),
			AdminCommand(),
			ConfigCommand(),
			ShellCommand(),
		},
		Metadata: map[string]any{},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI config file (default ~/.attendmesh/cli.yaml)",
			EnvVars: []string{"ATTENDMESH_CLI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "attendmesh server URL (e.g., http://localhost:5080)",
			EnvVars: []string{"ATTENDMESH_SERVER"},
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "Session token (overrides the stored login)",
			EnvVars: []string{"ATTENDMESH_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			EnvVars: []string{"ATTENDMESH_OUTPUT"},
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging",
		},
	}
}

// LoadConfig returns the CLI configuration with flag and environment
// overrides applied. The result is cached on the app.
func LoadConfig(c *cli.Context) (*config.CLIConfig, error) {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.CLIConfig); ok {
		return cfg, nil
	}

	base, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	cfg, err := config.Merge(base, map[string]string{
		config.KeyServer: c.String("server"),
		config.KeyOutput: c.String("output"),
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[metaConfig] = cfg
	return cfg, nil
}

// configPath returns the config file in use.
func configPath(c *cli.Context) string {
	if p := c.String("config"); p != "" {
		return p
	}
	return config.DefaultConfigPath()
}

// currentToken returns the --token flag or the stored login.
func currentToken(c *cli.Context, cfg *config.CLIConfig) (string, error) {
	if tok := c.String("token"); tok != "" {
		return tok, nil
	}
	return config.LoadToken(cfg.TokenPath())
}

// EnsureConnected returns a client carrying the current token (if any).
func EnsureConnected(c *cli.Context) (*connection.HTTPClient, error) {
	cfg, err := LoadConfig(c)
	if err != nil {
		return nil, err
	}
	tok, err := currentToken(c, cfg)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	return newClient(cfg, tok)
}

// newClient builds a client for the configured server, trusting ca_file
// when set.
func newClient(cfg *config.CLIConfig, token string) (*connection.HTTPClient, error) {
	tlsCfg, err := tlsroots.ClientConfigFromFile(cfg.CAFile)
	if err != nil {
		return nil, err
	}
	return connection.NewHTTPClient(cfg.Server, token, connection.WithTLSConfig(tlsCfg)), nil
}

// EnsureLoggedIn is EnsureConnected for commands that need a session.
func EnsureLoggedIn(c *cli.Context) (*connection.HTTPClient, error) {
	client, err := EnsureConnected(c)
	if err != nil {
		return nil, err
	}
	if client.Token() == "" {
		return nil, ErrNotLoggedIn
	}
	return client, nil
}

// call performs one request and decodes the envelope into target.
func call(c *cli.Context, client *connection.HTTPClient, method, path string, body, target any) error {
	ctx, cancel := context.WithTimeout(c.Context, requestTimeout)
	defer cancel()

	resp, err := client.Do(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	return connection.ParseResponse(resp, target)
}

// printResult renders data in the selected output format.
func printResult(c *cli.Context, data any) error {
	return render(c, data, output.NewFormatter)
}

// printEvent renders one event of a long-running command.
func printEvent(c *cli.Context, data any) error {
	return render(c, data, output.NewEventFormatter)
}

func render(c *cli.Context, data any, newFormatter func(output.Format, bool) output.Formatter) error {
	cfg, err := LoadConfig(c)
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}
	return newFormatter(format, c.Bool("wide")).Format(c.App.Writer, data)
}

// commandLogger returns a text logger on the app's error writer.
func commandLogger(c *cli.Context) *slog.Logger {
	level := "warn"
	if c.Bool("verbose") {
		level = "debug"
	}
	var w io.Writer = c.App.ErrWriter
	if w == nil {
		w = os.Stderr
	}
	log, err := logger.New(logger.Config{Level: level, Format: "text", Output: w})
	if err != nil {
		return logger.Discard()
	}
	return log
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
