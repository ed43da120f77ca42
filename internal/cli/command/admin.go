package command

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/urfave/cli/v2"
)

// AdminCommand returns the admin command group.
func AdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Manage accounts (staff)",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create an account",
				ArgsUsage: "USERNAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Initial password (prompted when omitted)"},
					&cli.StringFlag{Name: "first-name"},
					&cli.StringFlag{Name: "last-name"},
					&cli.StringFlag{Name: "email"},
					&cli.BoolFlag{Name: "staff", Usage: "Grant staff rights"},
				},
				Action: adminCreate,
			},
			{
				Name:      "promote",
				Usage:     "Grant (or with --revoke, remove) staff rights",
				ArgsUsage: "USER_ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "revoke", Usage: "Remove staff rights"},
				},
				Action: adminPromote,
			},
			{
				Name:      "delete",
				Usage:     "Delete an account and its attendance",
				ArgsUsage: "USER_ID",
				Flags:     []cli.Flag{forceFlag()},
				Action:    adminDelete,
			},
			{
				Name:      "flush",
				Usage:     "Drop a user's attendance records",
				ArgsUsage: "USER_ID",
				Flags:     []cli.Flag{forceFlag()},
				Action:    adminFlush,
			},
			{
				Name:   "flush-all",
				Usage:  "Drop attendance records of every non-staff user",
				Flags:  []cli.Flag{forceFlag()},
				Action: adminFlushAll,
			},
		},
	}
}

type createUserBody struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	IsStaff   bool   `json:"is_staff,omitempty"`
}

func adminCreate(c *cli.Context) error {
	username := c.Args().First()
	if username == "" {
		return fmt.Errorf("USERNAME is required")
	}
	client, err := EnsureLoggedIn(c)
	if err != nil {
		return err
	}

	password := c.String("password")
	if password == "" {
		fmt.Fprintf(c.App.ErrWriter, "Password for %s: ", username)
		if password, err = readLine(c.App.Reader); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	body := createUserBody{
		Username:  username,
		Password:  password,
		FirstName: c.String("first-name"),
		LastName:  c.String("last-name"),
		Email:     c.String("email"),
		IsStaff:   c.Bool("staff"),
	}
	var u userView
	if err := call(c, client, http.MethodPost, "/api/auth/admin/create/", body, &u); err != nil {
		return err
	}
	return printResult(c, u)
}

func adminPromote(c *cli.Context) error {
	id, err := userIDArg(c)
	if err != nil {
		return err
	}
	client, err := EnsureLoggedIn(c)
	if err != nil {
		return err
	}
	body := map[string]bool{"is_staff": !c.Bool("revoke")}
	var u userView
	if err := call(c, client, http.MethodPost, "/api/auth/admin/promote/"+url.PathEscape(id)+"/", body, &u); err != nil {
		return err
	}
	return printResult(c, u)
}

func adminDelete(c *cli.Context) error {
	id, err := userIDArg(c)
	if err != nil {
		return err
	}
	if !confirm(c, "Delete account "+id+"?") {
		return printResult(c, message("aborted"))
	}
	client, err := EnsureLoggedIn(c)
	if err != nil {
		return err
	}
	if err := call(c, client, http.MethodDelete, "/api/auth/admin/delete/"+url.PathEscape(id)+"/", nil, nil); err != nil {
		return err
	}
	return printResult(c, message("deleted %s", id))
}

func adminFlush(c *cli.Context) error {
	id, err := userIDArg(c)
	if err != nil {
		return err
	}
	if !confirm(c, "Drop all attendance of "+id+"?") {
		return printResult(c, message("aborted"))
	}
	client, err := EnsureLoggedIn(c)
	if err != nil {
		return err
	}
	var v flushView
	if err := call(c, client, http.MethodPost, "/api/auth/admin/flush/"+url.PathEscape(id)+"/", nil, &v); err != nil {
		return err
	}
	return printResult(c, v)
}

type flushAllView struct {
	Flushed []string `json:"flushed"`
	Skipped []string `json:"skipped"`
}

func adminFlushAll(c *cli.Context) error {
	if !confirm(c, "Drop attendance of every non-staff user?") {
		return printResult(c, message("aborted"))
	}
	client, err := EnsureLoggedIn(c)
	if err != nil {
		return err
	}
	var v flushAllView
	if err := call(c, client, http.MethodPost, "/api/auth/admin/flush_all/", nil, &v); err != nil {
		return err
	}
	return printResult(c, message("flushed %d users, skipped %d staff", len(v.Flushed), len(v.Skipped)))
}

func forceFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "force",
		Aliases: []string{"f"},
		Usage:   "Skip confirmation",
	}
}

// confirm asks a yes/no question unless --force is set.
func confirm(c *cli.Context, question string) bool {
	if c.Bool("force") {
		return true
	}
	fmt.Fprintf(c.App.ErrWriter, "%s [y/N]: ", question)
	answer, err := readLine(c.App.Reader)
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
