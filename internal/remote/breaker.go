package remote

import (
	"errors"
	"time"

	cb "github.com/sony/gobreaker"
)

// Breaker trips after repeated failures of the remote API.
type Breaker struct{ cb *cb.CircuitBreaker }

// NewBreaker opens after three consecutive failures, or a failure ratio over
// 5% once twenty requests have been seen in the interval.
func NewBreaker(name string, timeout time.Duration) *Breaker {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = timeout
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	// client mistakes are not outages
	st.IsSuccessful = func(err error) bool {
		if err == nil {
			return true
		}
		var apiErr *APIError
		return errors.As(err, &apiErr) && apiErr.Status < 500
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) { return b.cb.Execute(fn) }

// State reports the breaker state ("closed", "half-open", "open").
func (b *Breaker) State() string { return b.cb.State().String() }
