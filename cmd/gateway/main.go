package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gemini-gateway/internal/config"
	"gemini-gateway/internal/credential"
	"gemini-gateway/internal/gateway"
	"gemini-gateway/internal/logging"
	"gemini-gateway/internal/metrics"
	"gemini-gateway/internal/upstream"
	"gemini-gateway/internal/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	live := config.NewLive(cfg)

	m := metrics.New()
	registry := credential.NewRegistry()
	selector := credential.NewSelector()
	sweeper := credential.NewSweeper(registry, logger)

	upClient := upstream.New(upstream.Config{
		BaseURL:    cfg.UpstreamBaseURL,
		APIVersion: cfg.UpstreamAPIVersion,
		Timeout:    cfg.UpstreamTimeout(),
		RetryCount: cfg.RetryCount,
		RetryDelay: cfg.RetryDelay(),
	})

	orchestrator := gateway.NewOrchestrator(registry, selector, upClient, live, m, logger)
	v := validator.New(upClient)

	ctx, cancel := context.WithCancel(context.Background())
	if err := sweeper.Start(ctx); err != nil {
		log.Fatalf("sweeper: %v", err)
	}

	watcher := config.NewWatcher(cfg, live, logger)
	watchStop := make(chan struct{})
	go func() {
		if err := watcher.Watch(watchStop); err != nil {
			logger.Warn("config watcher exited", "error", err)
		}
	}()

	go reportHealthGauges(ctx, registry, m)

	router := gateway.NewRouter(gateway.Deps{
		Orchestrator: orchestrator,
		Validator:    v,
		Registry:     registry,
		Live:         live,
		Metrics:      m,
		BodyLimit:    cfg.BodySizeLimit,
		HealthPath:   cfg.HealthCheckPath,
		StatsPath:    cfg.StatsPath,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	close(watchStop)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// reportHealthGauges periodically copies the registry's health-state mix
// into the metrics gauges; it is pure observability, never read by the
// scheduler itself.
func reportHealthGauges(ctx context.Context, registry *credential.Registry, m *metrics.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eligible, tripped, probing := registry.HealthCounts()
			m.SetHealthCounts(eligible, tripped, probing)
		}
	}
}
