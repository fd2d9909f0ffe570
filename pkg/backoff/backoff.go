// Package backoff computes retry delays for reconnection attempts.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy is an exponential backoff policy.
//
// Delay is a pure function of its inputs and the (immutable by convention)
// policy fields, so the connection state machine consuming it stays testable
// without timers. The only exception is JitterFactor, which is off by
// default and documented below.
type Policy struct {
	// InitialDelay is the base delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the computed delay.
	MaxDelay time.Duration

	// Multiplier is the exponential decay factor, greater than 1.
	Multiplier float64

	// FirstConnectFactor scales InitialDelay while the endpoint has never
	// completed a handshake, so a dead endpoint is probed less aggressively
	// than a known-good one that just dropped. Values <= 0 mean no scaling.
	FirstConnectFactor float64

	// MaxRetries is the maximum number of retry attempts (0 for infinite).
	MaxRetries int

	// JitterFactor, when in (0, 1], perturbs the delay by up to that fraction
	// in either direction to avoid thundering herds. Leaving it 0 keeps Delay
	// fully deterministic.
	//
	// Using math/rand is acceptable for jitter in retry delays
	// (non-cryptographic use).
	JitterFactor float64
}

// New returns a Policy with the documented defaults: 1s initial delay,
// 30s cap, 1.5 multiplier, tripled base until the first successful
// handshake, unbounded retries, no jitter.
func New() *Policy {
	return &Policy{
		InitialDelay:       1 * time.Second,
		MaxDelay:           30 * time.Second,
		Multiplier:         1.5,
		FirstConnectFactor: 3.0,
		MaxRetries:         0,
	}
}

// Delay returns the delay before the retry following the given number of
// failed attempts. everConnected reports whether the endpoint has ever
// completed a successful handshake; while it has not, the base delay is
// scaled by FirstConnectFactor.
func (p *Policy) Delay(attempt int, everConnected bool) time.Duration {
	base := float64(p.InitialDelay)
	if !everConnected && p.FirstConnectFactor > 0 {
		base *= p.FirstConnectFactor
	}

	delay := base * math.Pow(p.Multiplier, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.JitterFactor > 0 {
		//nolint:gosec // math/rand is fine for jitter, not security-critical
		delay += delay * p.JitterFactor * (2*rand.Float64() - 1)
		if delay < 0 {
			delay = base
		}
	}

	return time.Duration(delay)
}

// Exhausted reports whether the retry budget is spent after the given number
// of failed attempts. A zero MaxRetries never exhausts.
func (p *Policy) Exhausted(attempt int) bool {
	return p.MaxRetries > 0 && attempt >= p.MaxRetries
}
