package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/yndnr/attendmesh/internal/telemetry/logger"
)

// MaxReviveGrace bounds the configurable grace window.
const MaxReviveGrace = time.Minute

// Verify validates the configuration. All problems are reported together.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyServer(&cfg.Server),
		verifyStorage(&cfg.Storage),
		verifyAttendance(&cfg.Attendance),
		verifySecurity(&cfg.Security),
		verifyLog(&cfg.Log),
	)
}

func verifyServer(cfg *ServerSection) error {
	var errs []error
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		errs = append(errs, fmt.Errorf("server.http.addr: %w", err))
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.http: tls_cert_file and tls_key_file must be set together"))
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			errs = append(errs, fmt.Errorf("server.http: %w", err))
		}
	}
	if cfg.HTTP.RateLimit < 0 {
		errs = append(errs, errors.New("server.http.rate_limit must not be negative"))
	}
	return errors.Join(errs...)
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Mode {
	case StorageModeMemory:
		return nil
	case StorageModeBadger:
	default:
		return fmt.Errorf("storage.mode: unknown mode %q", cfg.Mode)
	}

	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("cannot create data directory: %w", err)
	}
	if cfg.MaxAttendancesPerUser < 0 {
		return errors.New("storage.max_attendances_per_user must not be negative")
	}
	return nil
}

func verifyAttendance(cfg *AttendanceSection) error {
	var errs []error
	if cfg.ReviveGrace <= 0 || cfg.ReviveGrace > MaxReviveGrace {
		errs = append(errs, fmt.Errorf("attendance.revive_grace must be in (0, %s]", MaxReviveGrace))
	}
	if _, err := cfg.Location(); err != nil {
		errs = append(errs, fmt.Errorf("attendance.timezone: %w", err))
	}
	if cfg.AutoSave && cfg.ExportDir == "" {
		errs = append(errs, errors.New("attendance.auto_save requires attendance.export_dir"))
	}
	return errors.Join(errs...)
}

func verifySecurity(cfg *SecuritySection) error {
	if (cfg.BootstrapAdmin == "") != (cfg.BootstrapPassword == "") {
		return errors.New("security: bootstrap_admin and bootstrap_password must be set together")
	}
	if cfg.LoginAttemptsPerMinute < 0 {
		return errors.New("security.login_attempts_per_minute must not be negative")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Format {
	case "", "json", "text", "console":
		return nil
	}
	return fmt.Errorf("log.format: unknown format %q", cfg.Format)
}
