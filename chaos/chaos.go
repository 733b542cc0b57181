// Package chaos decides when a request should fail on purpose.
//
// The authorization server consults a FaultInjector once per token and
// userinfo request and answers 500 server_error when it fires, so clients
// are forced to exercise their retry and error paths.
package chaos

import (
	"math/rand/v2"
	"sync"
)

// DefaultProbability is the share of requests failed by NewRandom when no
// probability is configured.
const DefaultProbability = 0.10

// FaultInjector reports whether the current request should fail.
// Implementations must be safe for concurrent use.
type FaultInjector interface {
	ShouldFail() bool
}

// Random fails each call independently with a fixed probability.
type Random struct {
	probability float64
	draw        func() float64
}

// NewRandom returns an injector failing with probability p, clamped to [0, 1].
// Draws come from the runtime-seeded global source, so outcomes are never
// reproducible across processes.
func NewRandom(p float64) *Random {
	switch {
	case p < 0:
		p = 0
	case p > 1:
		p = 1
	}
	return &Random{probability: p, draw: rand.Float64}
}

// Probability returns the configured failure probability.
func (r *Random) Probability() float64 {
	return r.probability
}

// ShouldFail draws a uniform number in [0, 1) and fails when it is below the
// configured probability.
func (r *Random) ShouldFail() bool {
	return r.draw() < r.probability
}

// FaultInjectorFunc adapts a function to FaultInjector.
type FaultInjectorFunc func() bool

// ShouldFail calls f.
func (f FaultInjectorFunc) ShouldFail() bool {
	return f()
}

var (
	// Never is an injector that never fires.
	Never FaultInjector = FaultInjectorFunc(func() bool { return false })

	// Always is an injector that fires on every call.
	Always FaultInjector = FaultInjectorFunc(func() bool { return true })
)

// Sequence replays a fixed list of outcomes, then keeps returning false.
// It lets tests script which requests fail.
type Sequence struct {
	mu       sync.Mutex
	outcomes []bool
	calls    int
}

// NewSequence returns an injector replaying outcomes in order.
func NewSequence(outcomes ...bool) *Sequence {
	return &Sequence{outcomes: outcomes}
}

// ShouldFail returns the next scripted outcome.
func (s *Sequence) ShouldFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	s.calls++
	if i < len(s.outcomes) {
		return s.outcomes[i]
	}
	return false
}

// Calls returns how many times ShouldFail has been called.
func (s *Sequence) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
