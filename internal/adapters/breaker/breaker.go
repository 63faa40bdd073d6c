// Package breaker wraps each external dependency class in a circuit breaker.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/sompack/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Breaker = (*Registry)(nil)

// Options tunes every breaker class.
type Options struct {
	// FailureThreshold is the number of consecutive failures that opens a breaker.
	FailureThreshold int

	// Cooldown is how long an open breaker rejects before half-opening.
	Cooldown time.Duration

	// HalfOpenProbes is how many probe requests a half-open breaker admits.
	HalfOpenProbes int
}

// Registry holds one circuit breaker per external dependency class.
// Transitions are recorded and queryable so operators can observe the
// Closed/Open/HalfOpen lifecycle.
type Registry struct {
	opts   Options
	logger ports.Logger

	mu          sync.RWMutex
	breakers    map[ports.BreakerClass]*gobreaker.CircuitBreaker[any]
	transitions []ports.BreakerTransition
}

// New creates a breaker registry with one breaker per known class.
func New(opts Options, logger ports.Logger) *Registry {
	r := &Registry{
		opts:     opts,
		logger:   logger,
		breakers: make(map[ports.BreakerClass]*gobreaker.CircuitBreaker[any]),
	}
	for _, class := range []ports.BreakerClass{ports.BreakerFilesystem, ports.BreakerCompiler} {
		r.breakers[class] = r.newBreaker(class)
	}
	return r
}

func (r *Registry) newBreaker(class ports.BreakerClass) *gobreaker.CircuitBreaker[any] {
	threshold := uint32(r.opts.FailureThreshold) //nolint:gosec // validated positive
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        string(class),
		MaxRequests: uint32(r.opts.HalfOpenProbes), //nolint:gosec // validated positive
		Timeout:     r.opts.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.recordTransition(name, from, to)
		},
	})
}

func (r *Registry) recordTransition(name string, from, to gobreaker.State) {
	r.mu.Lock()
	r.transitions = append(r.transitions, ports.BreakerTransition{
		Class: name,
		From:  from.String(),
		To:    to.String(),
	})
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Warn("circuit breaker state change",
			"class", name, "from", from.String(), "to", to.String())
	}
}

// Do runs fn under the breaker for the given class.
func (r *Registry) Do(class ports.BreakerClass, fn func() error) error {
	r.mu.RLock()
	cb, ok := r.breakers[class]
	r.mu.RUnlock()
	if !ok {
		return zerr.With(zerr.New("unknown breaker class"), "class", string(class))
	}

	_, err := cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zerr.With(domain.ErrBreakerOpen, "class", string(class))
	}
	return err
}

// States returns the current state name per class.
func (r *Registry) States() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.breakers))
	for class, cb := range r.breakers {
		out[string(class)] = cb.State().String()
	}
	return out
}

// Transitions returns the observed state transitions in order.
func (r *Registry) Transitions() []ports.BreakerTransition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ports.BreakerTransition, len(r.transitions))
	copy(out, r.transitions)
	return out
}

// Reset recreates every breaker in the closed state and clears the
// transition history. Used by the management surface.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for class := range r.breakers {
		r.breakers[class] = r.newBreaker(class)
	}
	r.transitions = nil
}
