package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/careerbase/apigov/internal/api"
	"github.com/careerbase/apigov/internal/config"
	"github.com/careerbase/apigov/internal/governor"
	"github.com/careerbase/apigov/internal/logging"
	"github.com/careerbase/apigov/internal/service/alerting"
	"github.com/careerbase/apigov/internal/service/errlog"
	"github.com/careerbase/apigov/internal/service/latency"
	"github.com/careerbase/apigov/internal/service/monitor"
	"github.com/careerbase/apigov/internal/service/quota"
	"github.com/careerbase/apigov/internal/service/report"
	"github.com/careerbase/apigov/internal/storage"
	"github.com/careerbase/apigov/pkg/models"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logger.Info("starting apigov server",
		slog.String("version", "0.1.0"),
		slog.Int("port", cfg.Server.Port),
		slog.Int("services", len(cfg.Services)))

	db, err := storage.New(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to initialize database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize stores
	serviceStore := storage.NewServiceStore(db)
	quotaStore := storage.NewQuotaStore(db)
	callStore := storage.NewCallStore(db)
	errorStore := storage.NewErrorStore(db)
	alertStore := storage.NewAlertStore(db)
	reportStore := storage.NewReportStore(db)

	// Sync configured services into the registry
	for name, svcCfg := range cfg.Services {
		svc := models.Service{
			Name:         name,
			DisplayName:  svcCfg.DisplayName,
			Enabled:      svcCfg.Enabled,
			DailyLimit:   svcCfg.DailyLimit,
			WeeklyLimit:  svcCfg.WeeklyLimit,
			MonthlyLimit: svcCfg.MonthlyLimit,
			RatePerSec:   svcCfg.RatePerSec,
		}
		if err := serviceStore.Upsert(ctx, &svc); err != nil {
			logger.Error("failed to register service",
				slog.String("service", name),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Initialize services
	ledger := quota.NewLedger(serviceStore, quotaStore)
	recorder := latency.NewRecorder(callStore)
	errorLog := errlog.New(errorStore)

	overrides := make(map[string]alerting.Thresholds, len(cfg.Services))
	for name, svcCfg := range cfg.Services {
		overrides[name] = alerting.Thresholds{
			ErrorRateThreshold:  svcCfg.ErrorRateThreshold,
			LatencyP95CeilingMs: svcCfg.LatencyP95CeilingMs,
			QuotaFloorPct:       svcCfg.QuotaFloorPct,
		}
	}
	engine := alerting.New(alertStore, serviceStore, callStore, ledger, recorder,
		alerting.Thresholds{
			ErrorRateThreshold:  cfg.Alerting.ErrorRateThreshold,
			ErrorRateWindow:     cfg.Alerting.ErrorRateWindow,
			LatencyP95CeilingMs: cfg.Alerting.LatencyP95CeilingMs,
			LatencyWindow:       cfg.Alerting.LatencyWindow,
			QuotaFloorPct:       cfg.Alerting.QuotaFloorPct,
			ResolveCooldown:     cfg.Alerting.ResolveCooldown,
		},
		overrides,
		cfg.Alerting.SweepInterval)

	gov := governor.New(ledger, callStore, errorStore, engine, cfg.Governor.DefaultTimeout)
	for name, svcCfg := range cfg.Services {
		gov.Register(models.Service{
			Name:         name,
			DisplayName:  svcCfg.DisplayName,
			Enabled:      svcCfg.Enabled,
			DailyLimit:   svcCfg.DailyLimit,
			WeeklyLimit:  svcCfg.WeeklyLimit,
			MonthlyLimit: svcCfg.MonthlyLimit,
			RatePerSec:   svcCfg.RatePerSec,
		}, svcCfg.Timeout)
	}

	generator := report.NewGenerator(serviceStore, callStore, quotaStore, reportStore, recorder)
	scheduler := report.NewScheduler(generator, cfg.Reports.CheckInterval)
	facade := monitor.New(serviceStore, callStore, ledger, errorLog, engine, recorder, generator)

	server := api.New(facade,
		api.WithLogger(logger),
		api.WithHost(cfg.Server.Host),
		api.WithPort(cfg.Server.Port))

	// Start background loops
	engine.Start(ctx)
	if cfg.Reports.ScheduleEnabled {
		scheduler.Start(ctx)
	} else {
		logger.Info("report scheduler disabled")
	}

	server.SetReady(true)

	// Handle shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")
		server.SetReady(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		engine.Stop()
		scheduler.Stop()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", slog.String("error", err.Error()))
		}
	}()

	if err := server.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
