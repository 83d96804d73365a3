package flags

import (
	"math"
	"time"
)

// BackoffStrategy calculates the delay before a retry attempt.
// Attempt starts at 1 for the first retry.
type BackoffStrategy interface {
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff doubles the delay on each attempt up to a cap.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// NextInterval returns min(InitialInterval * Multiplier^(attempt-1), MaxInterval).
func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := e.InitialInterval
	if initial == 0 {
		initial = 2 * time.Second
	}
	limit := e.MaxInterval
	if limit == 0 {
		limit = 10 * time.Second
	}
	multiplier := e.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	interval := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if interval > float64(limit) {
		interval = float64(limit)
	}
	return time.Duration(interval)
}

// FixedBackoff waits the same interval before every retry.
type FixedBackoff struct {
	Interval time.Duration
}

// NextInterval always returns the configured interval.
func (f FixedBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f.Interval
}

// DefaultBackoff matches the provider's propagation characteristics:
// 2s initial, doubling, capped at 10s.
func DefaultBackoff() BackoffStrategy {
	return ExponentialBackoff{
		InitialInterval: 2 * time.Second,
		MaxInterval:     10 * time.Second,
		Multiplier:      2,
	}
}
