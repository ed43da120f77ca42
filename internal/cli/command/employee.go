package command

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/urfave/cli/v2"
)

// EmployeeCommand returns the employee command group.
func EmployeeCommand() *cli.Command {
	return &cli.Command{
		Name:    "employee",
		Aliases: []string{"emp"},
		Usage:   "Inspect employees (staff)",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List accounts with their running attendance",
				Action: employeeList,
			},
			{
				Name:      "track",
				Usage:     "Show an employee's attendance history",
				ArgsUsage: "USER_ID",
				Action:    employeeTrack,
			},
		},
	}
}

func employeeList(c *cli.Context) error {
	client, err := EnsureLoggedIn(c)
	if err != nil {
		return err
	}
	var v employeesView
	if err := call(c, client, http.MethodGet, "/api/attendance/employees/", nil, &v); err != nil {
		return err
	}
	return printResult(c, v)
}

func employeeTrack(c *cli.Context) error {
	id, err := userIDArg(c)
	if err != nil {
		return err
	}
	client, err := EnsureLoggedIn(c)
	if err != nil {
		return err
	}
	var v trackingView
	if err := call(c, client, http.MethodGet, "/api/attendance/employees/"+url.PathEscape(id)+"/tracking/", nil, &v); err != nil {
		return err
	}
	return printResult(c, v)
}

func userIDArg(c *cli.Context) (string, error) {
	id := c.Args().First()
	if id == "" {
		return "", fmt.Errorf("USER_ID is required")
	}
	return id, nil
}
