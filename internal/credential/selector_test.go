package credential

import (
	"testing"
	"time"
)

// TestRoundRobinVisitsEachMemberOnce covers S1: registering k1,k2,k3 and
// issuing 6 successful calls should visit k1,k2,k3,k1,k2,k3 in order.
func TestRoundRobinVisitsEachMemberOnce(t *testing.T) {
	reg := NewRegistry()
	now := time.Now()
	ids := []string{"k1", "k2", "k3"}
	for _, id := range ids {
		reg.Ensure(id, now)
	}

	sel := NewSelector()
	cfg := DefaultHealthConfig()

	var order []string
	for i := 0; i < 6; i++ {
		eligible := reg.Eligible(cfg, now)
		rec, err := sel.Pick(PolicyRoundRobin, eligible)
		if err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
		order = append(order, rec.ID())
		rec.OnSuccess(cfg, now)
		rec.DecInFlight()
	}

	want := []string{"k1", "k2", "k3", "k1", "k2", "k3"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("selection order = %v, want %v", order, want)
		}
	}

	for _, id := range ids {
		snap, _ := reg.Snapshot(id)
		if snap.TotalSuccesses != 2 {
			t.Fatalf("%s total_successes = %d, want 2", id, snap.TotalSuccesses)
		}
		if snap.Health != Eligible {
			t.Fatalf("%s health = %v, want ELIGIBLE", id, snap.Health)
		}
	}
}

func TestRoundRobinToleratesShrinkingEligibleSet(t *testing.T) {
	reg := NewRegistry()
	now := time.Now()
	reg.Ensure("k1", now)
	reg.Ensure("k2", now)
	reg.Ensure("k3", now)

	sel := NewSelector()
	cfg := DefaultHealthConfig()

	// Advance the cursor partway, then trip k2 out of the eligible set and
	// make sure selection still returns a valid record every time.
	for i := 0; i < 2; i++ {
		eligible := reg.Eligible(cfg, now)
		rec, _ := sel.Pick(PolicyRoundRobin, eligible)
		rec.DecInFlight()
	}

	k2, _ := reg.Lookup("k2")
	for i := 0; i < cfg.FailureThreshold; i++ {
		k2.OnFailure(cfg, now)
	}

	for i := 0; i < 10; i++ {
		eligible := reg.Eligible(cfg, now)
		rec, err := sel.Pick(PolicyRoundRobin, eligible)
		if err != nil {
			t.Fatalf("pick %d after shrink: %v", i, err)
		}
		if rec.ID() == "k2" {
			t.Fatalf("selector returned tripped credential k2")
		}
		rec.DecInFlight()
	}
}

func TestLeastInFlightBreaksTiesByRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	now := time.Now()
	reg.Ensure("k1", now)
	reg.Ensure("k2", now)

	sel := NewSelector()
	eligible := reg.Eligible(DefaultHealthConfig(), now)
	rec, err := sel.Pick(PolicyLeastInFlight, eligible)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if rec.ID() != "k1" {
		t.Fatalf("least-in-flight tie broke to %s, want k1 (earliest registered)", rec.ID())
	}
}

func TestNoCredentialAvailable(t *testing.T) {
	sel := NewSelector()
	if _, err := sel.Pick(PolicyRoundRobin, nil); err != ErrNoCredentialAvailable {
		t.Fatalf("err = %v, want ErrNoCredentialAvailable", err)
	}
}
