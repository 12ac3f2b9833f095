package credential

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically wakes cooled-down credentials and garbage-collects
// idle ones. It is an optimization layered on top of the selection-time
// lazy wake in Registry.Eligible — correctness never depends on the
// sweeper actually firing.
type Sweeper struct {
	registry *Registry
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewSweeper builds a Sweeper that will run every 60 seconds once started.
func NewSweeper(registry *Registry, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{registry: registry, logger: logger, cron: cron.New()}
}

// Start schedules the sweep and begins running it in the background. The
// sweep stops when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.cron.AddFunc("@every 60s", func() { s.sweepOnce(time.Now()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.running = true

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the scheduler and waits for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
		s.running = false
	}
}

func (s *Sweeper) sweepOnce(now time.Time) {
	woke := 0
	for _, rec := range s.registry.All() {
		if rec.MaybeWake(now) {
			woke++
		}
	}
	dropped := s.registry.GarbageCollect(now)
	s.logger.Debug("sweep complete", "woke", woke, "garbage_collected", dropped)
}
