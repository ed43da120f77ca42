package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/attendmesh/internal/cli/config"
	"github.com/yndnr/attendmesh/internal/cli/output"
)

// ConfigCommand returns the config command group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Local CLI configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration",
				Action: configShow,
			},
			{
				Name:      "set",
				Usage:     "Set a key in the config file",
				ArgsUsage: "KEY VALUE",
				Description: "Keys: " + config.KeyServer + ", " + config.KeyOutput + ", " +
					config.KeyStateDir + ", " + config.KeyGrace + ", " + config.KeyBeacon + ", " + config.KeyCAFile,
				Action: configSet,
			},
			{
				Name:   "path",
				Usage:  "Print the config file path",
				Action: configPathCmd,
			},
		},
	}
}

type configView struct {
	Path     string `json:"path"`
	Server   string `json:"server"`
	Output   string `json:"output"`
	StateDir string `json:"state_dir"`
	Grace    string `json:"grace"`
	Beacon   bool   `json:"beacon"`
	CAFile   string `json:"ca_file,omitempty"`
	LoggedIn bool   `json:"logged_in"`
}

func (v configView) Table(bool) *output.Table {
	t := output.NewTable("KEY", "VALUE")
	t.AddRow("path", v.Path)
	t.AddRow(config.KeyServer, v.Server)
	t.AddRow(config.KeyOutput, v.Output)
	t.AddRow(config.KeyStateDir, v.StateDir)
	t.AddRow(config.KeyGrace, v.Grace)
	t.AddRow(config.KeyBeacon, output.Bool(v.Beacon))
	t.AddRow(config.KeyCAFile, v.CAFile)
	t.AddRow("logged_in", output.Bool(v.LoggedIn))
	return t
}

func configShow(c *cli.Context) error {
	cfg, err := LoadConfig(c)
	if err != nil {
		return err
	}
	tok, err := currentToken(c, cfg)
	if err != nil {
		return err
	}
	grace := "default"
	if cfg.Grace > 0 {
		grace = cfg.Grace.String()
	}
	return printResult(c, configView{
		Path:     configPath(c),
		Server:   cfg.Server,
		Output:   cfg.Output,
		StateDir: cfg.StateDir,
		Grace:    grace,
		Beacon:   cfg.Beacon,
		CAFile:   cfg.CAFile,
		LoggedIn: tok != "",
	})
}

func configSet(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: config set KEY VALUE")
	}
	path := configPath(c)

	// Edit the file as stored, without flag overrides.
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Set(c.Args().Get(0), c.Args().Get(1)); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	delete(c.App.Metadata, metaConfig)
	return printResult(c, message("%s = %s", c.Args().Get(0), c.Args().Get(1)))
}

func configPathCmd(c *cli.Context) error {
	fmt.Fprintln(c.App.Writer, configPath(c))
	return nil
}
