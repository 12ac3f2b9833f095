package config

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Live holds the subset of Config that may change after startup and
// exposes it behind a mutex so the sweeper, selector, and CORS middleware
// can observe updates without restarting the process.
type Live struct {
	mu     sync.RWMutex
	policy SelectionPolicy
	health HealthKnobs
	cors   []string
}

// HealthKnobs is the mutable slice of the credential health state
// machine's configuration.
type HealthKnobs struct {
	FailureThreshold      int
	CooldownDuration      time.Duration
	ProbesRequiredToClose int
}

// NewLive snapshots the mutable knobs out of a loaded Config.
func NewLive(cfg Config) *Live {
	return &Live{
		policy: cfg.SelectionPolicy,
		health: HealthKnobs{
			FailureThreshold:      cfg.FailureThreshold,
			CooldownDuration:      cfg.CooldownDuration(),
			ProbesRequiredToClose: cfg.ProbesRequiredToClose,
		},
		cors: cfg.CORSOrigin,
	}
}

func (l *Live) Policy() SelectionPolicy {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.policy
}

func (l *Live) Health() HealthKnobs {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.health
}

func (l *Live) CORSOrigins() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.cors))
	copy(out, l.cors)
	return out
}

func (l *Live) update(cfg Config) {
	l.mu.Lock()
	l.policy = cfg.SelectionPolicy
	l.health = HealthKnobs{
		FailureThreshold:      cfg.FailureThreshold,
		CooldownDuration:      cfg.CooldownDuration(),
		ProbesRequiredToClose: cfg.ProbesRequiredToClose,
	}
	l.cors = cfg.CORSOrigin
	l.mu.Unlock()
}

// Watcher debounces fsnotify events on the config file and reloads the
// mutable knobs into a Live on every settled change.
type Watcher struct {
	path     string
	live     *Live
	logger   *slog.Logger
	debounce time.Duration
}

// NewWatcher builds a Watcher for cfg.ConfigFile. It is a no-op (Watch
// returns nil immediately) when no file was configured.
func NewWatcher(cfg Config, live *Live, logger *slog.Logger) *Watcher {
	return &Watcher{path: cfg.ConfigFile, live: live, logger: logger, debounce: 200 * time.Millisecond}
}

// Watch blocks, applying reloads to w.live until stop is closed.
func (w *Watcher) Watch(stop <-chan struct{}) error {
	if w.path == "" {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.path); err != nil {
		return err
	}

	var timer *time.Timer
	reload := func() {
		cfg := Default()
		if err := mergeYAMLFile(&cfg, w.path); err != nil {
			w.logger.Warn("config reload failed", "path", w.path, "error", err)
			return
		}
		mergeEnv(&cfg)
		if err := cfg.Validate(); err != nil {
			w.logger.Warn("config reload produced invalid config, keeping previous", "path", w.path, "error", err)
			return
		}
		w.live.update(cfg)
		w.logger.Info("config reloaded", "path", w.path)
	}

	for {
		select {
		case <-stop:
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, reload)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}
