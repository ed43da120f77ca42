package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/yndnr/attendmesh/internal/core/service"
	"github.com/yndnr/attendmesh/internal/export"
	"github.com/yndnr/attendmesh/internal/infra/buildinfo"
	"github.com/yndnr/attendmesh/internal/infra/confloader"
	"github.com/yndnr/attendmesh/internal/infra/shutdown"
	"github.com/yndnr/attendmesh/internal/infra/tlsroots"
	"github.com/yndnr/attendmesh/internal/server/config"
	"github.com/yndnr/attendmesh/internal/server/httpserver"
	"github.com/yndnr/attendmesh/internal/server/httpserver/handler"
	"github.com/yndnr/attendmesh/internal/server/livefeed"
	"github.com/yndnr/attendmesh/internal/storage"
	"github.com/yndnr/attendmesh/internal/telemetry/logger"
	"github.com/yndnr/attendmesh/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		checkConfig = flag.Bool("check-config", false, "Validate the configuration, print it and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("attendmesh-server %s\n", buildinfo.String())
		return nil
	}

	loader := newLoader(*configFile)
	cfg, err := loadConfig(loader)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *checkConfig {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(config.Sanitize(cfg))
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	info := buildinfo.Get()
	log.Info("starting attendmesh-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)

	metrics := metric.NewRegistry()

	engine, err := initStorage(cfg, log, metrics)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	ctx := context.Background()
	if err := engine.Recover(ctx); err != nil {
		engine.Close()
		return fmt.Errorf("storage recovery: %w", err)
	}

	svc, err := initServices(ctx, cfg, engine, log)
	if err != nil {
		engine.Close()
		return fmt.Errorf("init services: %w", err)
	}
	svc.Attendance.Subscribe(metrics)

	var saver *export.Saver
	if cfg.Attendance.ExportDir != "" {
		saver, err = export.NewSaver(cfg.Attendance.ExportDir, svc.Attendance, log)
		if err != nil {
			engine.Close()
			return fmt.Errorf("init export: %w", err)
		}
		if cfg.Attendance.AutoSave {
			svc.Attendance.Subscribe(saver)
		}
	}

	feed := livefeed.NewBroadcaster(livefeed.Config{
		MaxClients:     cfg.Server.HTTP.MaxFeedClients,
		AllowedOrigins: cfg.Server.HTTP.AllowedOrigins,
		Snapshot: func() any {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			entries, err := svc.Attendance.DailyReport(ctx, svc.Attendance.Today())
			if err != nil {
				log.Warn("feed snapshot failed", "error", err)
				return nil
			}
			return entries
		},
		Gauge:  metrics.FeedClients,
		Logger: log,
	})
	svc.Attendance.Subscribe(feed)

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = metrics.Handler()
	}
	h := handler.New(&handler.Config{
		Attendance: svc.Attendance,
		Auth:       svc.Auth,
		Admin:      svc.Admin,
		Saver:      saver,
		Feed:       feed,
		Metrics:    metricsHandler,
		Logins:     metrics,
		Ready:      readiness(engine),
		Logger:     log,
	})

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler:             h,
		AuthService:         svc.Auth,
		Logger:              log,
		Requests:            metrics,
		MetricsAuthRequired: cfg.Metrics.AuthRequired,
		GlobalRateLimit:     cfg.Server.HTTP.RateLimit,
		EnableAudit:         true,
	})

	opts := []httpserver.Option{httpserver.WithTimeouts(cfg.Server.HTTP.ReadTimeout, cfg.Server.HTTP.WriteTimeout)}
	var certs *tlsroots.Reloader
	if cfg.Server.HTTP.TLSCertFile != "" {
		certs, err = tlsroots.NewReloader(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile, tlsroots.WithLogger(log))
		if err != nil {
			engine.Close()
			return err
		}
		if err := certs.Start(); err != nil {
			log.Warn("certificate hot reload disabled", "error", err)
		}
		opts = append(opts, httpserver.WithTLSConfig(certs.ServerConfig()))
	}
	httpServer := httpserver.New(cfg.Server.HTTP.Addr, router, opts...)

	watcher := watchConfig(loader, svc.Attendance, log)

	// Hooks run in reverse: stop accepting requests, close feed clients,
	// wait for pending CSV saves, then close the store.
	sd := shutdown.NewHandler(cfg.Server.HTTP.ShutdownTimeout)
	sd.SetLogger(log)
	sd.OnShutdown("storage", func(context.Context) error {
		return engine.Close()
	})
	if saver != nil {
		sd.OnShutdown("export", saver.Close)
	}
	sd.OnShutdown("feed", func(context.Context) error {
		feed.Close()
		return nil
	})
	if watcher != nil {
		sd.OnShutdown("config-watcher", func(context.Context) error {
			return watcher.Stop()
		})
	}
	if certs != nil {
		sd.OnShutdown("cert-watcher", func(context.Context) error {
			return certs.Stop()
		})
	}
	sd.OnShutdown("http", httpServer.Shutdown)

	waitCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", cfg.Server.HTTP.Addr, "tls", httpServer.TLS())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	waitErr := sd.WaitContext(waitCtx)
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
	}
	if waitErr != nil {
		log.Error("shutdown error", "error", waitErr)
		return waitErr
	}

	log.Info("server stopped gracefully")
	return nil
}

func newLoader(configFile string) *confloader.Loader {
	var opts []confloader.Option
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	return confloader.NewLoader(opts...)
}

// loadConfig reads defaults, then the file and environment.
func loadConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initStorage(cfg *config.ServerConfig, log *slog.Logger, metrics *metric.Registry) (*storage.Engine, error) {
	var storageCfg storage.Config
	if cfg.Storage.Mode == config.StorageModeMemory {
		storageCfg = storage.Config{Logger: log}
		log.Warn("storage mode is memory; attendance does not survive a restart")
	} else {
		storageCfg = storage.DefaultConfig(cfg.Storage.DataDir)
		storageCfg.Logger = log
		storageCfg.KV.SyncWrites = cfg.Storage.SyncWrites
		storageCfg.KV.GCInterval = cfg.Storage.GCInterval
	}
	storageCfg.MaxAttendancesPerUser = cfg.Storage.MaxAttendancesPerUser

	engine, err := storage.New(storageCfg)
	if err != nil {
		return nil, err
	}
	if be, ok := engine.KV().(*storage.BadgerEngine); ok && cfg.Metrics.Enabled {
		if err := be.RegisterMetrics(metrics.Registerer()); err != nil {
			engine.Close()
			return nil, fmt.Errorf("register storage metrics: %w", err)
		}
	}
	metrics.Registerer().MustRegister(metric.NewCollector(engine))
	return engine, nil
}

// Services holds the domain services.
type Services struct {
	Attendance *service.AttendanceService
	Auth       *service.AuthService
	Admin      *service.AdminService
}

func initServices(ctx context.Context, cfg *config.ServerConfig, engine *storage.Engine, log *slog.Logger) (*Services, error) {
	loc, err := cfg.Attendance.Location()
	if err != nil {
		return nil, fmt.Errorf("attendance.timezone: %w", err)
	}

	att := service.NewAttendanceService(engine, engine, &service.AttendanceServiceConfig{
		GraceWindow: cfg.Attendance.ReviveGrace,
		Location:    loc,
	}, log)

	authCfg := service.DefaultAuthServiceConfig()
	authCfg.CacheTTL = cfg.Security.TokenCacheTTL
	authCfg.LoginAttemptsPerMinute = cfg.Security.LoginAttemptsPerMinute
	auth := service.NewAuthService(engine, authCfg, log)

	admin := service.NewAdminService(engine, auth, att, log)
	created, err := admin.EnsureBootstrapAdmin(ctx, cfg.Security.BootstrapAdmin, cfg.Security.BootstrapPassword)
	if err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		log.Info("bootstrap staff account created", "username", cfg.Security.BootstrapAdmin)
	}

	log.Info("services initialized",
		"revive_grace", att.GraceWindow(),
		"timezone", loc.String())

	return &Services{Attendance: att, Auth: auth, Admin: admin}, nil
}

// readiness pings the KV engine. A memory-only store is always ready.
func readiness(engine *storage.Engine) func(context.Context) error {
	return func(ctx context.Context) error {
		kv := engine.KV()
		if kv == nil {
			return nil
		}
		_, err := kv.Stats(ctx)
		return err
	}
}

// watchConfig reloads the hot settings when the config file changes. It
// returns nil when no file is in use.
func watchConfig(loader *confloader.Loader, att *service.AttendanceService, log *slog.Logger) *confloader.Watcher {
	path := loader.FilePath()
	if path == "" {
		return nil
	}
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		log.Warn("config hot reload disabled", "error", err)
		return nil
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		log.Warn("config hot reload disabled", "path", path, "error", err)
		return nil
	}
	w.OnChange(func(string) {
		cfg := config.Default()
		if err := loader.Reload(cfg); err != nil {
			log.Error("config reload failed, keeping current settings", "error", err)
			return
		}
		if err := config.Verify(cfg); err != nil {
			log.Error("reloaded config is invalid, keeping current settings", "error", err)
			return
		}
		logger.SetLevel(cfg.Log.Level)
		att.SetGraceWindow(cfg.Attendance.ReviveGrace)
		log.Info("configuration reloaded",
			"log_level", logger.GetLevel(),
			"revive_grace", att.GraceWindow())
	})
	w.Start()
	return w
}
