package config

import "time"

// ServerConfig is the root configuration for attendmesh-server.
type ServerConfig struct {
	Server     ServerSection     `koanf:"server"`
	Storage    StorageSection    `koanf:"storage"`
	Attendance AttendanceSection `koanf:"attendance"`
	Security   SecuritySection   `koanf:"security"`
	Log        LogSection        `koanf:"log"`
	Metrics    MetricsSection    `koanf:"metrics"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// AllowedOrigins lists browser origins accepted by the live feed.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// MaxFeedClients caps concurrent live feed connections.
	MaxFeedClients int `koanf:"max_feed_clients"`

	// RateLimit is the per-IP request budget per second (0 = unlimited).
	RateLimit int `koanf:"rate_limit"`
}

// StorageSection configures storage behavior.
type StorageSection struct {
	// Mode is "badger" (durable) or "memory".
	Mode string `koanf:"mode"`

	// DataDir holds the Badger database.
	DataDir string `koanf:"data_dir"`

	// MaxAttendancesPerUser caps the history kept per user.
	MaxAttendancesPerUser int `koanf:"max_attendances_per_user"`

	GCInterval time.Duration `koanf:"gc_interval"`
	SyncWrites bool          `koanf:"sync_writes"`
}

// AttendanceSection configures the attendance protocol.
type AttendanceSection struct {
	// ReviveGrace is the shared reload threshold. Hot-reloadable.
	ReviveGrace time.Duration `koanf:"revive_grace"`

	// Timezone names the location used for day boundaries ("" = Local).
	Timezone string `koanf:"timezone"`

	// ExportDir receives saved CSV reports ("" disables saving).
	ExportDir string `koanf:"export_dir"`

	// AutoSave re-saves today's CSV after every close-end.
	AutoSave bool `koanf:"auto_save"`
}

// SecuritySection configures authentication.
type SecuritySection struct {
	// BootstrapAdmin and BootstrapPassword create the first staff user
	// when the user store is empty.
	BootstrapAdmin    string `koanf:"bootstrap_admin"`
	BootstrapPassword string `koanf:"bootstrap_password"`

	TokenCacheTTL          time.Duration `koanf:"token_cache_ttl"`
	LoginAttemptsPerMinute int           `koanf:"login_attempts_per_minute"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool `koanf:"enabled"`

	// AuthRequired restricts /metrics to staff tokens.
	AuthRequired bool `koanf:"auth_required"`
}
