package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	corecfg "github.com/nsd23387/nsd-platform-shell-sub005/internal/core/config"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/storage/postgres"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/taxonomy"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/migrations"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/observability"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/report"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/server"
)

func main() {
	configPath := flag.String("config", "marketingd.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"request_timeout", cfg.Server.RequestTimeout,
		"query_timeout", cfg.Report.QueryTimeout,
		"max_listing_rows", cfg.Report.MaxListingRows,
		"taxonomy", cfg.Taxonomy.Path,
		"metrics", cfg.Metrics.Enabled)

	// 2. Load source taxonomy
	classifier, err := taxonomy.LoadFile(cfg.Taxonomy.Path)
	if err != nil {
		slog.Error("Failed to load source taxonomy", "path", cfg.Taxonomy.Path, "error", err)
		os.Exit(1)
	}

	// 3. Initialize Storage (PostgreSQL)
	db, err := postgres.OpenDB(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	// 3.1. Run Database Migrations
	if err := migrations.RunMigrations(db, cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		db.Close()
		os.Exit(1)
	}

	// 3.2. Prepare report queries
	dbAdapter, err := postgres.NewAdapter(db)
	if err != nil {
		slog.Error("Failed to initialize query executor", "error", err)
		db.Close()
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 4. Initialize Metrics
	provider := observability.NewNoopProvider()
	if cfg.Metrics.Enabled {
		provider, err = observability.NewPrometheusProvider()
		if err != nil {
			slog.Error("Failed to initialize metrics", "error", err)
			dbAdapter.Close()
			os.Exit(1)
		}
	}
	shutdownMetrics := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down metrics provider", "error", err)
		}
	}
	defer shutdownMetrics()

	reportMetrics, err := observability.NewReportMetrics(provider.Meter())
	if err != nil {
		slog.Error("Failed to register report metrics", "error", err)
		shutdownMetrics()
		dbAdapter.Close()
		os.Exit(1)
	}

	// 5. Initialize Report service
	reportSvc := report.NewService(dbAdapter, classifier, report.Options{
		QueryTimeout:   cfg.Report.QueryTimeoutDuration(),
		RequestTimeout: cfg.Server.RequestTimeoutDuration(),
		MaxListingRows: cfg.Report.MaxListingRows,
		Recorder:       reportMetrics,
	})

	// 6. Initialize Server
	serverOpts := server.Options{
		Mode:        cfg.Server.Mode,
		ReadTimeout: cfg.Server.ReadTimeoutDuration(),
	}
	if cfg.Metrics.Enabled {
		serverOpts.Metrics = provider.Handler
	}
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter, serverOpts)
	reportSvc.RegisterRoutes(srv.Engine)

	// 7. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
