package config

import (
	"time"

	"github.com/yndnr/attendmesh/internal/core/domain"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:5080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxFeedClients  = 64
	DefaultRateLimit       = 100

	DefaultStorageMode           = StorageModeBadger
	DefaultDataDir               = "/var/lib/attendmesh-server/data"
	DefaultMaxAttendancesPerUser = 10000
	DefaultGCInterval            = 10 * time.Minute

	DefaultExportDir = "/var/lib/attendmesh-server/exports"

	DefaultTokenCacheTTL          = time.Minute
	DefaultLoginAttemptsPerMinute = 10

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Storage modes.
const (
	StorageModeBadger = "badger"
	StorageModeMemory = "memory"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				ReadTimeout:     DefaultReadTimeout,
				WriteTimeout:    DefaultWriteTimeout,
				ShutdownTimeout: DefaultShutdownTimeout,
				MaxFeedClients:  DefaultMaxFeedClients,
				RateLimit:       DefaultRateLimit,
			},
		},
		Storage: StorageSection{
			Mode:                  DefaultStorageMode,
			DataDir:               DefaultDataDir,
			MaxAttendancesPerUser: DefaultMaxAttendancesPerUser,
			GCInterval:            DefaultGCInterval,
			SyncWrites:            true,
		},
		Attendance: AttendanceSection{
			ReviveGrace: domain.DefaultGraceWindow,
			ExportDir:   DefaultExportDir,
			AutoSave:    true,
		},
		Security: SecuritySection{
			TokenCacheTTL:          DefaultTokenCacheTTL,
			LoginAttemptsPerMinute: DefaultLoginAttemptsPerMinute,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsSection{
			Enabled: true,
		},
	}
}

// Location resolves the attendance time zone.
func (c *AttendanceSection) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
