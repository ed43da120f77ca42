package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// CLIConfig is the configuration for attendmesh-cli.
type CLIConfig struct {
	// Server is the attendmesh server base URL.
	Server string `yaml:"server"`

	// CAFile is a PEM bundle trusted in addition to the system roots.
	CAFile string `yaml:"ca_file,omitempty"`

	// Output is the default output format: table, json, yaml.
	Output string `yaml:"output"`

	// StateDir holds the token file and the last-unload marker.
	StateDir string `yaml:"state_dir"`

	// Grace overrides the reload window used by "watch" (0 = ask the server).
	Grace time.Duration `yaml:"grace,omitempty"`

	// Beacon enables the fire-and-forget end notification. When false,
	// "watch" always uses the keep-alive request.
	Beacon bool `yaml:"beacon"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server:   "http://localhost:5080",
		Output:   "table",
		StateDir: DefaultStateDir(),
		Beacon:   true,
	}
}

// TokenPath returns the session token file.
func (c *CLIConfig) TokenPath() string {
	return filepath.Join(c.StateDir, "token")
}

// Validate checks the configuration.
func (c *CLIConfig) Validate() error {
	if strings.TrimSpace(c.Server) == "" {
		return fmt.Errorf("server is required")
	}
	if !strings.HasPrefix(c.Server, "http://") && !strings.HasPrefix(c.Server, "https://") {
		return fmt.Errorf("server %q: scheme must be http or https", c.Server)
	}
	switch c.Output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("output %q: must be table, json or yaml", c.Output)
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}
	if c.Grace < 0 {
		return fmt.Errorf("grace must not be negative")
	}
	return nil
}
