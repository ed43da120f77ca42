package confloader

import (
	"fmt"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "ATTENDMESH_"

// Environment names use "__" between nesting levels because keys
// themselves contain single underscores.
const envLevelSeparator = "__"

// Loader merges configuration in increasing priority: YAML file,
// environment, overrides. Every Load starts from scratch, so it doubles
// as a reload.
type Loader struct {
	envPrefix string
	filePath  string
	overrides map[string]any

	mu sync.RWMutex
	k  *koanf.Koanf // last successful merge
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the YAML file to read. Empty means none.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithOverrides sets values with the highest priority, keyed by dotted
// path ("log.level").
func WithOverrides(m map[string]any) Option {
	return func(l *Loader) { l.overrides = m }
}

// NewLoader returns a Loader reading ATTENDMESH_ variables unless told
// otherwise.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FilePath returns the configured file path.
func (l *Loader) FilePath() string {
	return l.filePath
}

// Load merges all sources into target. Fields no source mentions keep
// their current value, so target should arrive filled with defaults.
// On error the previous merge stays visible to GetString.
func (l *Loader) Load(target any) error {
	k := koanf.New(".")

	if l.filePath != "" {
		if err := k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}

	prefix := l.envPrefix
	envProvider := env.Provider(prefix, ".", func(name string) string {
		return EnvKey(prefix, name)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	if len(l.overrides) > 0 {
		if err := k.Load(mapProvider(l.overrides), nil); err != nil {
			return fmt.Errorf("load overrides: %w", err)
		}
	}

	if err := k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	l.mu.Lock()
	l.k = k
	l.mu.Unlock()
	return nil
}

// Reload is Load; it exists so call sites read naturally in watchers.
func (l *Loader) Reload(target any) error {
	return l.Load(target)
}

// GetString returns a merged value by dotted key, or "" before the first
// successful Load.
func (l *Loader) GetString(key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.k == nil {
		return ""
	}
	return l.k.String(key)
}

// EnvKey maps ATTENDMESH_ATTENDANCE__REVIVE_GRACE to attendance.revive_grace.
func EnvKey(prefix, name string) string {
	s := strings.ToLower(strings.TrimPrefix(name, prefix))
	return strings.ReplaceAll(s, envLevelSeparator, ".")
}
