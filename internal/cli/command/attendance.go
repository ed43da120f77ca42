package command

import (
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
)

// StartCommand returns the start command.
func StartCommand() *cli.Command {
	return &cli.Command{
		Name:   "start",
		Usage:  "Start an attendance (no-op when one is running)",
		Action: start,
	}
}

// BreakCommand returns the break command.
func BreakCommand() *cli.Command {
	return &cli.Command{
		Name:   "break",
		Usage:  "Start or end a break",
		Action: toggleBreak,
	}
}

// EndCommand returns the end command.
func EndCommand() *cli.Command {
	return &cli.Command{
		Name:  "end",
		Usage: "End the running attendance",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "reason",
				Value: "manual",
				Usage: "End reason: manual (never revived) or close",
			},
			&cli.TimestampFlag{
				Name:   "at",
				Layout: time.RFC3339,
				Usage:  "Logout time (RFC 3339, default now)",
			},
		},
		Action: end,
	}
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show the running or most recent attendance",
		Action: status,
	}
}

// PolicyCommand returns the policy command.
func PolicyCommand() *cli.Command {
	return &cli.Command{
		Name:   "policy",
		Usage:  "Show the server's revive grace window",
		Action: policy,
	}
}

func start(c *cli.Context) error {
	client, err := EnsureLoggedIn(c)
	if err != nil {
		return err
	}
	var v startView
	if err := call(c, client, http.MethodPost, "/api/attendance/start/", nil, &v); err != nil {
		return err
	}
	return printResult(c, v)
}

func toggleBreak(c *cli.Context) error {
	client, err := EnsureLoggedIn(c)
	if err != nil {
		return err
	}
	var v breakView
	if err := call(c, client, http.MethodPost, "/api/attendance/break/toggle/", nil, &v); err != nil {
		return err
	}
	return printResult(c, v)
}

// endBody is what the CLI sends for an explicit end. The token travels in
// the Authorization header.
type endBody struct {
	LogoutTime string `json:"logout_time"`
	Reason     string `json:"reason"`
}

func end(c *cli.Context) error {
	client, err := EnsureLoggedIn(c)
	if err != nil {
		return err
	}

	at := time.Now()
	if ts := c.Timestamp("at"); ts != nil {
		at = *ts
	}
	body := endBody{
		LogoutTime: at.UTC().Format(time.RFC3339Nano),
		Reason:     c.String("reason"),
	}

	var v endView
	if err := call(c, client, http.MethodPost, "/api/attendance/end/", body, &v); err != nil {
		return err
	}
	return printResult(c, v)
}

func status(c *cli.Context) error {
	client, err := EnsureLoggedIn(c)
	if err != nil {
		return err
	}
	var v statusView
	if err := call(c, client, http.MethodGet, "/api/attendance/status/", nil, &v); err != nil {
		return err
	}
	return printResult(c, v)
}

func policy(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	var v policyView
	if err := call(c, client, http.MethodGet, "/api/attendance/policy/", nil, &v); err != nil {
		return err
	}
	return printResult(c, v)
}
