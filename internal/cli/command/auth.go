package command

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/attendmesh/internal/cli/config"
	"github.com/yndnr/attendmesh/internal/cli/connection"
)

// LoginCommand returns the login command.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Log in and store the session token",
		ArgsUsage: "USERNAME",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Password (prompted when omitted)",
				EnvVars: []string{"ATTENDMESH_PASSWORD"},
			},
			&cli.BoolFlag{
				Name:  "show-token",
				Usage: "Include the token in the output",
			},
		},
		Action: login,
	}
}

// LogoutCommand returns the logout command.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Revoke the session token and forget it",
		Action: logout,
	}
}

// WhoamiCommand returns the whoami command.
func WhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "Show the logged-in account",
		Action: whoami,
	}
}

func login(c *cli.Context) error {
	username := c.Args().First()
	if username == "" {
		return fmt.Errorf("username is required")
	}

	password := c.String("password")
	if password == "" {
		var err error
		fmt.Fprint(c.App.ErrWriter, "Password: ")
		if password, err = readLine(c.App.Reader); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	cfg, err := LoadConfig(c)
	if err != nil {
		return err
	}
	client, err := newClient(cfg, "")
	if err != nil {
		return err
	}

	var resp loginView
	err = call(c, client, http.MethodPost, "/api/auth/login/", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		return err
	}

	if err := config.SaveToken(cfg.TokenPath(), resp.Token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if !c.Bool("show-token") {
		resp.Token = ""
	}
	return printResult(c, resp)
}

func logout(c *cli.Context) error {
	cfg, err := LoadConfig(c)
	if err != nil {
		return err
	}
	client, err := EnsureLoggedIn(c)
	if err != nil {
		return err
	}

	err = call(c, client, http.MethodPost, "/api/auth/logout/", nil, nil)
	var apiErr *connection.APIError
	if err != nil && !(errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized) {
		return err
	}

	// A --token override is not the stored login; leave the file alone.
	if c.String("token") == "" {
		if err := config.RemoveToken(cfg.TokenPath()); err != nil {
			return fmt.Errorf("remove token: %w", err)
		}
	}
	return printResult(c, message("logged out"))
}

func whoami(c *cli.Context) error {
	client, err := EnsureLoggedIn(c)
	if err != nil {
		return err
	}
	var u userView
	if err := call(c, client, http.MethodGet, "/api/auth/me/", nil, &u); err != nil {
		return err
	}
	return printResult(c, u)
}

func readLine(r io.Reader) (string, error) {
	if r == nil {
		r = os.Stdin
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
