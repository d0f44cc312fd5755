package connection

import (
	"time"
)

// Reconnection defaults.
const (
	DefaultRetryDelay       = time.Second
	DefaultMaxRetryAttempts = 5
)

// RetryPolicy is a fixed-delay, bounded reconnection policy.
type RetryPolicy struct {
	Delay       time.Duration
	MaxAttempts int

	attempts int
}

// NewRetryPolicy returns a policy, substituting defaults for negative values.
// Zero attempts disables automatic reconnection.
func NewRetryPolicy(delay time.Duration, maxAttempts int) *RetryPolicy {
	if delay < 0 {
		delay = DefaultRetryDelay
	}
	if maxAttempts < 0 {
		maxAttempts = DefaultMaxRetryAttempts
	}
	return &RetryPolicy{Delay: delay, MaxAttempts: maxAttempts}
}

// Attempt consumes one retry. It returns false once the budget is spent.
func (p *RetryPolicy) Attempt() bool {
	if p.Exhausted() {
		return false
	}
	p.attempts++
	return true
}

// Exhausted reports whether no retries remain.
func (p *RetryPolicy) Exhausted() bool {
	return p.attempts >= p.MaxAttempts
}

// Attempts returns retries consumed since the last reset.
func (p *RetryPolicy) Attempts() int {
	return p.attempts
}

// Reset restores the full budget.
func (p *RetryPolicy) Reset() {
	p.attempts = 0
}

// NextDelay is the wait before the next attempt.
func (p *RetryPolicy) NextDelay() time.Duration {
	return p.Delay
}
