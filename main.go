package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/flaresync/flaresync/backup"
	"github.com/flaresync/flaresync/config"
	"github.com/flaresync/flaresync/discover"
	"github.com/flaresync/flaresync/logger"
	"github.com/flaresync/flaresync/metrics"
	"github.com/flaresync/flaresync/provider/cloudflare"
	"github.com/flaresync/flaresync/reconcile"
	"github.com/flaresync/flaresync/status"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Configure(cfg.Log.Level, cfg.Log.Env)

	metrics := metrics.New()

	statusManager, err := status.New(cfg.StatusPath, metrics)
	if err != nil {
		slog.Error("Failed to initialize status store", "error", err)
		os.Exit(1)
	}
	defer statusManager.Close()

	// HTTP server for metrics, health checks and run status
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/status", status.Handler(statusManager))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: mux,
	}

	go func() {
		slog.Info("Starting metrics server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cf, err := cloudflare.New(cfg.DNS.Token, cfg.DNS.ZoneID)
	if err != nil {
		slog.Error("Failed to initialize DNS provider", "error", err)
		os.Exit(1)
	}

	discoverer, err := discover.New(buildSources(cfg), metrics)
	if err != nil {
		slog.Error("Failed to initialize IP discovery", "error", err)
		os.Exit(1)
	}

	engine := reconcile.NewEngine(cf, backup.NewWriter(cfg.BackupDir), metrics)

	slog.Info("Starting flaresync service", "domains", cfg.DNS.Domains, "interval", cfg.Interval())

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go runSyncLoop(ctx, wg, discoverer, engine, statusManager, metrics, cfg.DNS.Domains, cfg.Interval())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("Shutdown signal received")
	cancel()

	serverShutdownCtx, cancelServer := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelServer()
	if err := server.Shutdown(serverShutdownCtx); err != nil {
		slog.Error("Metrics server shutdown error", "error", err)
	}

	wg.Wait()
	slog.Info("Service shutdown complete")
}

func buildSources(cfg *config.Config) []discover.Source {
	sources := make([]discover.Source, 0, len(cfg.Discover.Sources))
	for _, s := range cfg.Discover.Sources {
		switch s.Type {
		case config.SourceDNS:
			sources = append(sources, discover.NewDNSSource(s.Server, s.Name))
		default:
			sources = append(sources, discover.NewHTTPSource(s.URL))
		}
	}
	return sources
}

func runSyncLoop(ctx context.Context, wg *sync.WaitGroup, discoverer *discover.Discoverer, engine reconcile.Engine, statusManager status.Manager, metrics *metrics.Metrics, domains []string, interval time.Duration) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := performSync(ctx, discoverer, engine, statusManager, metrics, domains); err != nil {
			slog.Error("Sync operation failed", "error", err)
		}

		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			slog.Info("Stopping sync loop")
			return
		}
	}
}

func performSync(ctx context.Context, discoverer *discover.Discoverer, engine reconcile.Engine, statusManager status.Manager, metrics *metrics.Metrics, domains []string) error {
	slog.Info("Starting sync operation")
	start := time.Now()
	defer func() {
		metrics.SetSyncDuration(time.Since(start))
	}()

	addr, err := discoverer.Discover(ctx)
	if err != nil {
		metrics.IncSyncRun(false)
		recordRun(ctx, statusManager, status.Run{
			Time:    start.Unix(),
			Success: false,
			Message: err.Error(),
		})
		return err
	}

	slog.Info("Reconciling domains", "ip", addr, "count", len(domains))
	results := engine.ReconcileAll(ctx, addr, domains)

	slog.Info("Sync completed",
		"updated", len(results.Updated),
		"unchanged", len(results.Unchanged),
		"failed", len(results.Failures))

	run := status.Run{
		Time:    start.Unix(),
		Success: !results.Failed(),
		IP:      addr.String(),
		Updated: len(results.Updated),
	}
	if results.Failed() {
		run.Message = results.Failures[0].Error
	}
	recordRun(ctx, statusManager, run)
	metrics.IncSyncRun(!results.Failed())

	return nil
}

func recordRun(ctx context.Context, statusManager status.Manager, run status.Run) {
	if err := statusManager.RecordRun(ctx, run); err != nil {
		slog.Error("Failed to record run status", "error", err)
	}
}
