// Package resilience protects the transcription pipeline from flapping
// providers. A three-state circuit breaker guards each provider, and a
// Transcriber chain fails over from the hosted provider to the local one.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by Breaker.Allow while the breaker is tripped and the
// cooldown has not elapsed.
var ErrOpen = errors.New("resilience: breaker open")

const (
	defaultTripAfter = 3
	defaultCooldown  = 30 * time.Second
)

// Breaker is a three-state circuit breaker. It trips open after a run of
// consecutive failures, rejects calls for a cooldown period, then lets a
// single probe through; the probe's outcome decides whether it closes again.
type Breaker struct {
	name      string
	tripAfter int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	tripped  bool
	probing  bool
}

// NewBreaker creates a Breaker named for log messages. tripAfter and cooldown
// fall back to defaults when zero.
func NewBreaker(name string, tripAfter int, cooldown time.Duration) *Breaker {
	if tripAfter <= 0 {
		tripAfter = defaultTripAfter
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Breaker{name: name, tripAfter: tripAfter, cooldown: cooldown}
}

// Allow reports whether a call may proceed. While open it returns ErrOpen
// until the cooldown elapses, after which exactly one probe call is admitted.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.tripped {
		return nil
	}
	if time.Since(b.openedAt) < b.cooldown {
		return ErrOpen
	}
	if b.probing {
		return ErrOpen
	}
	b.probing = true
	slog.Info("breaker admitting probe", "breaker", b.name)
	return nil
}

// Record reports the outcome of a call admitted by Allow.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.tripped {
			slog.Info("breaker closed", "breaker", b.name)
		}
		b.tripped = false
		b.probing = false
		b.failures = 0
		return
	}

	b.failures++
	if b.probing {
		// Failed probe: stay open for another cooldown.
		b.openedAt = time.Now()
		b.probing = false
		slog.Warn("breaker probe failed, staying open", "breaker", b.name)
		return
	}
	if !b.tripped && b.failures >= b.tripAfter {
		b.tripped = true
		b.openedAt = time.Now()
		slog.Warn("breaker opened", "breaker", b.name, "failures", b.failures)
	}
}

// Do runs fn under the breaker.
func (b *Breaker) Do(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	b.Record(err)
	return err
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped && time.Since(b.openedAt) < b.cooldown
}
