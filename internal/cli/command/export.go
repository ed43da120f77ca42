package command

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/attendmesh/internal/cli/connection"
)

// ExportCommand returns the export command group.
func ExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Download the daily attendance report (staff)",
		Flags: []cli.Flag{
			dayFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "csv",
				Usage:   "Report format: csv, xlsx",
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "Output file, or - for stdout (default: server file name in --dir)",
			},
			&cli.StringFlag{
				Name:  "dir",
				Value: ".",
				Usage: "Directory for the default file name",
			},
		},
		Action: exportDownload,
		Subcommands: []*cli.Command{
			{
				Name:   "save",
				Usage:  "Regenerate the report file in the server's export directory",
				Flags:  []cli.Flag{dayFlag()},
				Action: exportSave,
			},
		},
	}
}

func dayFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "day",
		Aliases: []string{"d"},
		Usage:   "Report day as YYYY-MM-DD (default: today on the server)",
	}
}

// dayPath returns "today/" or "YYYY/MM/DD/".
func dayPath(day string) (string, error) {
	if day == "" || day == "today" {
		return "today/", nil
	}
	t, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return "", fmt.Errorf("invalid --day %q: want YYYY-MM-DD", day)
	}
	return t.Format("2006/01/02") + "/", nil
}

func exportDownload(c *cli.Context) error {
	client, err := EnsureLoggedIn(c)
	if err != nil {
		return err
	}
	dp, err := dayPath(c.String("day"))
	if err != nil {
		return err
	}
	format := c.String("format")
	if format != "csv" && format != "xlsx" {
		return fmt.Errorf("invalid --format %q: want csv or xlsx", format)
	}

	ctx, cancel := context.WithTimeout(c.Context, requestTimeout)
	defer cancel()
	resp, err := client.Get(ctx, "/api/attendance/export/"+dp+"?format="+format)
	if err != nil {
		return fmt.Errorf("request export: %w", err)
	}
	if resp.StatusCode >= 400 {
		return connection.ParseResponse(resp, nil)
	}

	target := c.String("out")
	if target == "-" {
		_, err := connection.Download(resp, c.App.Writer)
		return err
	}
	if target == "" {
		target = filepath.Join(c.String("dir"), attachmentName(resp, "attendance."+format))
	}

	n, err := saveDownload(resp, target)
	if err != nil {
		return err
	}
	return printResult(c, message("wrote %s (%d bytes)", target, n))
}

// attachmentName reads the file name from Content-Disposition. Only the
// base name is used so a server cannot direct writes elsewhere.
func attachmentName(resp *http.Response, fallback string) string {
	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
	if err != nil || params["filename"] == "" {
		return fallback
	}
	name := filepath.Base(params["filename"])
	if name == "." || name == string(filepath.Separator) {
		return fallback
	}
	return name
}

func saveDownload(resp *http.Response, target string) (int64, error) {
	tmp := target + ".part"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		resp.Body.Close()
		return 0, err
	}
	n, err := connection.Download(resp, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("download: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return n, nil
}

func exportSave(c *cli.Context) error {
	client, err := EnsureLoggedIn(c)
	if err != nil {
		return err
	}
	dp, err := dayPath(c.String("day"))
	if err != nil {
		return err
	}
	var v saveView
	if err := call(c, client, http.MethodPost, "/api/attendance/export/save/"+dp, nil, &v); err != nil {
		return err
	}
	return printResult(c, v)
}
