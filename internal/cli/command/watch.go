package command

import (
	"context"
	"fmt"
	"net/http"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/attendmesh/internal/cli/config"
	"github.com/yndnr/attendmesh/internal/cli/connection"
	"github.com/yndnr/attendmesh/internal/cli/output"
	"github.com/yndnr/attendmesh/internal/infra/shutdown"
	"github.com/yndnr/attendmesh/internal/lifecycle"
)

const policyCheckTimeout = 2 * time.Second

// WatchCommand returns the watch command: it holds an attendance open for
// as long as it runs. A restart within the grace window revives the
// attendance the previous run closed.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Keep the attendance open while this process runs",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "start",
				Usage: "Start an attendance when none was revived",
			},
			&cli.DurationFlag{
				Name:  "grace",
				Usage: "Reload window (default: config, then 1s)",
			},
			&cli.BoolFlag{
				Name:  "no-beacon",
				Usage: "Always send the end notification as a keep-alive request",
			},
			&cli.DurationFlag{
				Name:  "for",
				Usage: "Exit after this long (default: until SIGINT, SIGTERM or SIGHUP)",
			},
			&cli.DurationFlag{
				Name:  "drain-timeout",
				Value: 5 * time.Second,
				Usage: "How long to wait for the end notification on exit",
			},
		},
		Action: watch,
	}
}

// watchEvent is printed once at load and once at unload.
type watchEvent struct {
	Phase     string `json:"phase"`
	Result    string `json:"result"`
	ElapsedMS int64  `json:"elapsed_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (e watchEvent) Table(bool) *output.Table {
	t := output.NewTable("PHASE", "RESULT", "ELAPSED", "ERROR")
	elapsed := ""
	if e.ElapsedMS != 0 {
		elapsed = (time.Duration(e.ElapsedMS) * time.Millisecond).String()
	}
	t.AddRow(e.Phase, e.Result, elapsed, e.Error)
	return t
}

func watch(c *cli.Context) error {
	cfg, err := LoadConfig(c)
	if err != nil {
		return err
	}
	log := commandLogger(c)

	var tokens lifecycle.TokenSource = lifecycle.FileTokenSource{Path: cfg.TokenPath()}
	if tok := c.String("token"); tok != "" {
		tokens = lifecycle.StaticToken(tok)
	}
	if _, ok := tokens.Token(); !ok {
		log.Warn("not logged in; nothing will be revived or ended")
	}

	markers, err := lifecycle.NewFileMarkerStore(cfg.StateDir)
	if err != nil {
		return err
	}
	client, err := newClient(cfg, "")
	if err != nil {
		return err
	}
	transport := lifecycle.NewHTTPTransport(cfg.Server,
		lifecycle.WithHTTPClient(client.HTTP()),
		lifecycle.WithBeacon(cfg.Beacon && !c.Bool("no-beacon")),
		lifecycle.WithTransportLogger(log),
	)
	inst, err := lifecycle.NewInstance(&lifecycle.Context{
		Tokens:    tokens,
		Markers:   markers,
		Transport: transport,
		Grace:     localGrace(c, cfg),
		Logger:    log,
	})
	if err != nil {
		return err
	}

	// The marker is consumed before anything touches the network, so a
	// slow server never eats into the reload window.
	loaded := inst.Load(c.Context)
	if localGrace(c, cfg) == 0 {
		policyCtx, cancel := context.WithTimeout(c.Context, policyCheckTimeout)
		defer cancel()
		go checkPolicy(policyCtx, c, client, inst.Context().Grace)
	}
	out := <-loaded
	ev := watchEvent{Phase: "load", Result: string(out.Result), ElapsedMS: out.Elapsed.Milliseconds()}
	if out.Err != nil {
		ev.Error = out.Err.Error()
	}
	if err := printEvent(c, ev); err != nil {
		return err
	}

	if c.Bool("start") && !out.Revived() {
		if err := startIfIdle(c); err != nil {
			return err
		}
	}

	drain := c.Duration("drain-timeout")
	h := shutdown.NewHandler(drain+time.Second, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	h.SetLogger(log)
	h.OnShutdown("drain", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, drain)
		defer cancel()
		return transport.Drain(ctx)
	})
	h.OnShutdown("unload", func(context.Context) error {
		return printEvent(c, watchEvent{Phase: "unload", Result: string(inst.Unload())})
	})

	waitCtx := c.Context
	if d := c.Duration("for"); d > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, d)
		defer cancel()
	}
	return h.WaitContext(waitCtx)
}

// localGrace picks the reload window from the flag, then the config. Zero
// lets the lifecycle package apply its default.
func localGrace(c *cli.Context, cfg *config.CLIConfig) time.Duration {
	if d := c.Duration("grace"); d > 0 {
		return d
	}
	return cfg.Grace
}

// checkPolicy warns when the server's grace window differs from the one in
// use. It never changes the reload decision.
func checkPolicy(ctx context.Context, c *cli.Context, client *connection.HTTPClient, grace time.Duration) {
	var p policyView
	resp, err := client.Get(ctx, "/api/attendance/policy/")
	if err == nil {
		err = connection.ParseResponse(resp, &p)
	}
	if err != nil {
		commandLogger(c).Debug("grace policy unavailable", "error", err)
		return
	}
	if g := p.Grace(); g > 0 && g != grace {
		commandLogger(c).Warn("server grace window differs; set grace in cli.yaml to match",
			"server_grace", g, "grace", grace)
	}
}

// startIfIdle starts an attendance when the reload check did not revive one.
func startIfIdle(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	if client.Token() == "" {
		return nil
	}
	var v startView
	if err := call(c, client, http.MethodPost, "/api/attendance/start/", nil, &v); err != nil {
		return fmt.Errorf("start attendance: %w", err)
	}
	return printResult(c, v)
}
