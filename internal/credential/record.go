// Package credential implements the scheduler core: the registry, the
// per-credential health state machine, the selector, and the recovery
// sweeper.
package credential

import (
	"sync"
	"sync/atomic"
	"time"
)

// Health is one of a credential's three scheduling states.
type Health string

const (
	Eligible Health = "ELIGIBLE"
	Tripped  Health = "TRIPPED"
	Probing  Health = "PROBING"
)

// Record is the mutable per-credential health/statistics record. All field
// mutation goes through the methods in health.go, which serialize
// per-record via mu — the single mutation path for a credential's state.
type Record struct {
	mu sync.Mutex

	id  string
	seq uint64 // registration order, stable within a process run

	health               Health
	consecutiveFailures  int
	totalRequests        int64
	totalSuccesses       int64
	totalFailures        int64
	lastRequestAt        time.Time
	lastSuccessAt        time.Time
	lastFailureAt        time.Time
	cooldownUntil        time.Time
	probeSuccesses       int
	registeredAt         time.Time

	inFlight int64 // managed with atomic ops, independent of mu
}

// Snapshot is a value copy of a Record for reporting (e.g. /stats) and
// tests. Counter reads are intentionally inexact — a snapshot taken
// concurrently with an in-flight update may be off by one.
type Snapshot struct {
	ID                   string
	Health               Health
	ConsecutiveFailures  int
	TotalRequests        int64
	TotalSuccesses       int64
	TotalFailures        int64
	LastRequestAt        time.Time
	LastSuccessAt        time.Time
	LastFailureAt        time.Time
	CooldownUntil        time.Time
	ProbeSuccessesInWindow int
	InFlight             int64
	RegisteredAt         time.Time
}

func newRecord(id string, seq uint64, now time.Time) *Record {
	return &Record{
		id:           id,
		seq:          seq,
		health:       Eligible,
		registeredAt: now,
	}
}

// Snapshot copies out the record's current state under its own lock.
func (r *Record) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		ID:                     r.id,
		Health:                 r.health,
		ConsecutiveFailures:    r.consecutiveFailures,
		TotalRequests:          r.totalRequests,
		TotalSuccesses:         r.totalSuccesses,
		TotalFailures:          r.totalFailures,
		LastRequestAt:          r.lastRequestAt,
		LastSuccessAt:          r.lastSuccessAt,
		LastFailureAt:          r.lastFailureAt,
		CooldownUntil:          r.cooldownUntil,
		ProbeSuccessesInWindow: r.probeSuccesses,
		InFlight:               atomic.LoadInt64(&r.inFlight),
		RegisteredAt:           r.registeredAt,
	}
}

// ID returns the credential's full, unmasked identity. Callers must route
// anything user- or log-facing through the mask package before display.
func (r *Record) ID() string { return r.id }

func (r *Record) Seq() uint64 { return r.seq }

// HealthState reads the current health under lock — used by the selector
// to build the eligible set.
func (r *Record) HealthState() Health {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.health
}

// InFlight returns the current in-flight count.
func (r *Record) InFlight() int64 {
	return atomic.LoadInt64(&r.inFlight)
}

// IncInFlight is called by the selector on hand-out.
func (r *Record) IncInFlight() {
	atomic.AddInt64(&r.inFlight, 1)
}

// DecInFlight is called by the orchestrator on completion (success,
// failure, or cancellation).
func (r *Record) DecInFlight() {
	atomic.AddInt64(&r.inFlight, -1)
}
