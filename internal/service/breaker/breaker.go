package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Registry keeps one circuit breaker per upstream host. A tripped host
// fails fast for the cooldown window instead of burning the rate budget.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	failures uint32
	cooldown time.Duration
}

// New creates a registry. Breakers trip after the given number of
// consecutive failures and allow a probe after the cooldown.
func New(failures uint32, cooldown time.Duration) *Registry {
	if failures == 0 {
		failures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Registry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		failures: failures,
		cooldown: cooldown,
	}
}

// Do runs fn behind the host's breaker.
func (r *Registry) Do(host string, fn func() error) error {
	cb := r.breakerFor(host)

	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("host %s suspended by circuit breaker: %w", host, err)
	}
	return err
}

// State returns the breaker state for a host, defaulting to closed for
// hosts that have not been seen yet.
func (r *Registry) State(host string) gobreaker.State {
	return r.breakerFor(host).State()
}

func (r *Registry) breakerFor(host string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[host]
	if !ok {
		failures := r.failures
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        host,
			MaxRequests: 1,
			Timeout:     r.cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
		})
		r.breakers[host] = cb
	}
	return cb
}
