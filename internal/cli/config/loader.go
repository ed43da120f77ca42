package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultStateDir returns ~/.attendmesh.
func DefaultStateDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".attendmesh")
}

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultStateDir(), "cli.yaml")
}

// Load loads CLI configuration from file. A missing file yields Default().
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path with owner-only permissions.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return writeFileAtomic(path, data)
}

// Keys accepted by Set and Merge.
const (
	KeyServer   = "server"
	KeyOutput   = "output"
	KeyStateDir = "state_dir"
	KeyGrace    = "grace"
	KeyBeacon   = "beacon"
	KeyCAFile   = "ca_file"
)

// Set assigns one key from its string form.
func (c *CLIConfig) Set(key, value string) error {
	switch key {
	case KeyServer:
		c.Server = value
	case KeyCAFile:
		c.CAFile = value
	case KeyOutput:
		c.Output = value
	case KeyStateDir:
		c.StateDir = value
	case KeyGrace:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("grace: %w", err)
		}
		c.Grace = d
	case KeyBeacon:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("beacon: %w", err)
		}
		c.Beacon = b
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}

// Merge applies overrides (flags or ATTENDMESH_* values already resolved by
// the caller) on top of cfg. Empty values are ignored.
func Merge(cfg *CLIConfig, overrides map[string]string) (*CLIConfig, error) {
	out := *cfg
	for _, key := range []string{KeyServer, KeyOutput, KeyStateDir, KeyGrace, KeyBeacon, KeyCAFile} {
		v, ok := overrides[key]
		if !ok || v == "" {
			continue
		}
		if err := out.Set(key, v); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
