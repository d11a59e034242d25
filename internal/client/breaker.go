package client

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures the upstream circuit breaker.
type BreakerConfig struct {
	Name             string
	FailureThreshold int
	// OpenTimeout is how long the breaker stays open before letting trial requests through.
	OpenTimeout   time.Duration
	OnStateChange func(name string, from, to gobreaker.State)
}

// halfOpenRequests is how many requests a half-open breaker admits. A lookup issues its
// current and forecast calls together, so both must fit.
const halfOpenRequests = 2

// NewBreaker builds a gobreaker.CircuitBreaker that trips after FailureThreshold consecutive
// upstream failures. Lookups for unknown places do not count against the breaker.
func NewBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "weather_api"
	}
	threshold := uint32(cfg.FailureThreshold)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: halfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrLocationNotFound)
		},
		OnStateChange: cfg.OnStateChange,
	})
}
