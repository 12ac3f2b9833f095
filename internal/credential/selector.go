package credential

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Policy names one of the selector's strategies.
type Policy string

const (
	PolicyRoundRobin    Policy = "round_robin"
	PolicyRandom         Policy = "random"
	PolicyLeastInFlight Policy = "least_in_flight"
)

// ErrNoCredentialAvailable is returned when the eligible set is empty.
var ErrNoCredentialAvailable = errors.New("no credential available")

// Selector hands out one credential per call. Selection is non-blocking:
// it never waits for capacity, it just picks from whatever is eligible
// right now.
type Selector struct {
	cursor uint64 // atomic, round-robin only

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewSelector() *Selector {
	return &Selector{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Pick chooses one record from eligible according to policy, incrementing
// its in-flight count on hand-out. eligible must already be the
// registration-order-sorted eligible set (Registry.Eligible returns it that
// way).
func (s *Selector) Pick(policy Policy, eligible []*Record) (*Record, error) {
	if len(eligible) == 0 {
		return nil, ErrNoCredentialAvailable
	}

	var chosen *Record
	switch policy {
	case PolicyRandom:
		s.rngMu.Lock()
		idx := s.rng.Intn(len(eligible))
		s.rngMu.Unlock()
		chosen = eligible[idx]
	case PolicyLeastInFlight:
		chosen = eligible[0]
		best := chosen.InFlight()
		for _, rec := range eligible[1:] {
			if n := rec.InFlight(); n < best {
				best = n
				chosen = rec
			}
		}
	default: // PolicyRoundRobin and any unrecognized value
		cursor := atomic.AddUint64(&s.cursor, 1) - 1
		idx := int(cursor % uint64(len(eligible)))
		chosen = eligible[idx]
	}

	chosen.IncInFlight()
	return chosen, nil
}
