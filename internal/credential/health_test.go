package credential

import (
	"testing"
	"time"
)

func TestSuccessesBelowThresholdStayEligible(t *testing.T) {
	cfg := HealthConfig{FailureThreshold: 3, CooldownDuration: time.Minute, ProbesRequiredToClose: 3}
	r := newRecord("k1", 1, time.Now())

	now := time.Now()
	for i := 0; i < 2; i++ {
		r.OnSuccess(cfg, now)
	}
	if got := r.HealthState(); got != Eligible {
		t.Fatalf("health = %v, want ELIGIBLE", got)
	}
}

func TestConsecutiveFailuresTrip(t *testing.T) {
	cfg := HealthConfig{FailureThreshold: 3, CooldownDuration: time.Minute, ProbesRequiredToClose: 3}
	r := newRecord("k1", 1, time.Now())

	now := time.Now()
	r.OnFailure(cfg, now)
	r.OnFailure(cfg, now)
	if got := r.HealthState(); got != Eligible {
		t.Fatalf("after 2 failures health = %v, want ELIGIBLE", got)
	}
	r.OnFailure(cfg, now)
	if got := r.HealthState(); got != Tripped {
		t.Fatalf("after 3 failures health = %v, want TRIPPED", got)
	}
	snap := r.Snapshot()
	if !snap.CooldownUntil.After(now) {
		t.Fatalf("cooldown_until %v is not after trip time %v", snap.CooldownUntil, now)
	}
}

func TestProbingClosesAfterTargetSuccesses(t *testing.T) {
	cfg := HealthConfig{FailureThreshold: 3, CooldownDuration: time.Millisecond, ProbesRequiredToClose: 3}
	r := newRecord("k1", 1, time.Now())

	now := time.Now()
	r.OnFailure(cfg, now)
	r.OnFailure(cfg, now)
	r.OnFailure(cfg, now) // -> TRIPPED

	later := now.Add(2 * time.Millisecond)
	if !r.MaybeWake(later) {
		t.Fatalf("expected wake after cooldown elapsed")
	}
	if got := r.HealthState(); got != Probing {
		t.Fatalf("health after wake = %v, want PROBING", got)
	}

	r.OnSuccess(cfg, later)
	if got := r.HealthState(); got != Probing {
		t.Fatalf("health after 1 probe success = %v, want still PROBING", got)
	}
	r.OnSuccess(cfg, later)
	r.OnSuccess(cfg, later)
	if got := r.HealthState(); got != Eligible {
		t.Fatalf("health after 3 probe successes = %v, want ELIGIBLE", got)
	}
	if got := r.Snapshot().ConsecutiveFailures; got != 0 {
		t.Fatalf("consecutive_failures after close = %d, want 0", got)
	}
}

func TestProbingFailureRetrips(t *testing.T) {
	cfg := HealthConfig{FailureThreshold: 3, CooldownDuration: time.Millisecond, ProbesRequiredToClose: 3}
	r := newRecord("k1", 1, time.Now())

	now := time.Now()
	r.OnFailure(cfg, now)
	r.OnFailure(cfg, now)
	r.OnFailure(cfg, now)
	r.MaybeWake(now.Add(2 * time.Millisecond))
	r.OnSuccess(cfg, now) // one probe success, still PROBING

	r.OnFailure(cfg, now)
	if got := r.HealthState(); got != Tripped {
		t.Fatalf("failure while PROBING -> %v, want TRIPPED", got)
	}
	if got := r.Snapshot().ProbeSuccessesInWindow; got != 0 {
		t.Fatalf("probe counter after re-trip = %d, want 0", got)
	}
}

func TestFirstEventFailureNeverSkipsToTripped(t *testing.T) {
	cfg := HealthConfig{FailureThreshold: 3, CooldownDuration: time.Minute, ProbesRequiredToClose: 3}
	r := newRecord("k1", 1, time.Now())

	r.OnFailure(cfg, time.Now())
	if got := r.HealthState(); got != Eligible {
		t.Fatalf("first failure on fresh record -> %v, want ELIGIBLE", got)
	}
	if got := r.Snapshot().ConsecutiveFailures; got != 1 {
		t.Fatalf("consecutive_failures = %d, want 1", got)
	}
}

func TestResetPreservesTotals(t *testing.T) {
	cfg := HealthConfig{FailureThreshold: 1, CooldownDuration: time.Minute, ProbesRequiredToClose: 3}
	r := newRecord("k1", 1, time.Now())
	r.OnFailure(cfg, time.Now()) // trips immediately, threshold 1

	r.Reset()
	snap := r.Snapshot()
	if snap.Health != Eligible {
		t.Fatalf("health after reset = %v, want ELIGIBLE", snap.Health)
	}
	if snap.ConsecutiveFailures != 0 {
		t.Fatalf("consecutive_failures after reset = %d, want 0", snap.ConsecutiveFailures)
	}
	if snap.TotalFailures != 1 {
		t.Fatalf("total_failures after reset = %d, want preserved at 1", snap.TotalFailures)
	}
}
