package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/seasonboard/internal/adapters/catalog"
	"github.com/okian/seasonboard/internal/adapters/http/api"
	"github.com/okian/seasonboard/internal/adapters/http/swagger"
	"github.com/okian/seasonboard/internal/adapters/ledger"
	"github.com/okian/seasonboard/internal/adapters/repository"
	"github.com/okian/seasonboard/internal/adapters/tallycache"
	app "github.com/okian/seasonboard/internal/app"
	"github.com/okian/seasonboard/internal/config"
	"github.com/okian/seasonboard/internal/domain/scoring"
	"github.com/okian/seasonboard/pkg/logger"
	"github.com/okian/seasonboard/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Custom system gauges replace the default Go collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "seasonboard exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	svc, err := buildService(ctx, cfg, cat, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		svc.Stop()
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go watchCatalogReload(ctx, cat, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// buildService opens the configured backends and assembles the service.
// Backends opened before a failure are closed again.
func buildService(ctx context.Context, cfg *config.Config, cat catalog.Catalog, log logger.Logger) (*app.Service, error) {
	contract, err := buildContract(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	snapshots, err := buildSnapshotStore(ctx, cfg)
	if err != nil {
		closeQuietly(contract)
		return nil, err
	}

	tallies, err := buildTallyStore(ctx, cfg)
	if err != nil {
		closeQuietly(contract)
		closeQuietly(snapshots)
		return nil, err
	}

	scorer := scoring.NewScorer(
		scoring.WithVerifiedBonus(cfg.RankingVerifiedBonus),
		scoring.WithRecencyBonus(cfg.RankingRecencyBonus, cfg.RecencyWindow()),
	)

	return app.New(
		app.WithLogger(log),
		app.WithContract(contract),
		app.WithSnapshotStore(snapshots),
		app.WithTallyStore(tallies),
		app.WithCatalog(cat),
		app.WithLedgerTimeout(cfg.LedgerTimeout()),
		app.WithLedgerConcurrency(cfg.LedgerMaxConcurrency),
		app.WithCacheFreshness(cfg.CacheFreshness()),
		app.WithMaxEntries(cfg.RankingMaxEntries),
		app.WithPageSizes(cfg.DefaultPageSize, cfg.MaxPageSize),
		app.WithScorer(scorer),
		app.WithKeepSeasons(cfg.SnapshotKeepSeasons),
	), nil
}

// buildContract dials the voting contract. Without an RPC URL an empty
// in-process ledger is used so the API can be exercised locally.
func buildContract(ctx context.Context, cfg *config.Config, log logger.Logger) (ledger.Contract, error) {
	if cfg.LedgerRPCURL == "" {
		log.Warn(ctx, "ledger_rpc_url not set; serving from an empty in-process ledger")
		return ledger.NewMemoryContract(1), nil
	}
	c, err := ledger.Dial(ctx, cfg.LedgerRPCURL, cfg.LedgerContractAddress)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	log.Info(ctx, "connected to voting contract", logger.String("address", cfg.LedgerContractAddress))
	return c, nil
}

func buildSnapshotStore(ctx context.Context, cfg *config.Config) (*repository.SQLStore, error) {
	dialect, err := repository.ParseDialect(cfg.SnapshotDriver)
	if err != nil {
		return nil, err
	}
	store, err := repository.Open(ctx, dialect, cfg.SnapshotDSN, repository.WithBatchSize(cfg.SnapshotBatchSize))
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}
	return store, nil
}

func buildTallyStore(ctx context.Context, cfg *config.Config) (tallycache.Store, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendPostgres:
		store, err := tallycache.NewPostgresStore(ctx, cfg.CachePostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("tally cache: %w", err)
		}
		return store, nil
	default:
		store, err := tallycache.NewMemoryStore(cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("tally cache: %w", err)
		}
		return store, nil
	}
}

// newRouter mounts the API and the OpenAPI document.
func newRouter(ctx context.Context, svc *app.Service) *mux.Router {
	r := mux.NewRouter()
	swagger.Register(ctx, r)
	api.NewServer(svc, svc).Register(ctx, r)
	return r
}

func closeQuietly(v any) {
	switch c := v.(type) {
	case interface{ Close() error }:
		_ = c.Close()
	case interface{ Close() }:
		c.Close()
	}
}

// watchCatalogReload re-reads the catalog file on SIGHUP.
func watchCatalogReload(ctx context.Context, cat *catalog.FileCatalog, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := cat.Reload(ctx); err != nil {
				log.Error(ctx, "catalog reload failed; keeping previous items", logger.Error(err))
				continue
			}
			log.Info(ctx, "catalog reloaded", logger.Int("items", cat.Len()))
		}
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
