// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package resilience guards calls to remote dependencies.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/metrics"
)

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrCircuitOpen is returned without running the call while the breaker is
// open or its single probe is in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Settings configure a Breaker. Zero values take the defaults.
type Settings struct {
	Name string
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold int
	// Cooldown is how long the breaker stays open before a probe is allowed.
	Cooldown time.Duration
	// IsFailure decides which errors count. Others behave like successes.
	// Cancellation by the caller never counts.
	IsFailure func(error) bool
	Now       func() time.Time
}

// Breaker fails fast after repeated failures and lets one probe through per
// cooldown. Results are tagged with a generation so a call that started
// before a state change cannot move the new state.
type Breaker struct {
	s      Settings
	logger zerolog.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	failures   int
	openUntil  time.Time
}

func NewBreaker(s Settings) *Breaker {
	if s.Threshold <= 0 {
		s.Threshold = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.IsFailure == nil {
		s.IsFailure = func(error) bool { return true }
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	b := &Breaker{
		s:      s,
		state:  StateClosed,
		logger: xglog.WithComponent("resilience").With().Str("breaker", s.Name).Logger(),
	}
	metrics.SetBreakerState(s.Name, string(StateClosed))
	return b
}

// Do runs fn when the breaker admits the call and records the outcome.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	gen, err := b.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.settle(gen, b.outcome(ctx, err))
	return err
}

type outcome int

const (
	success outcome = iota
	failure
	abandoned
)

func (b *Breaker) outcome(ctx context.Context, err error) outcome {
	switch {
	case err == nil:
		return success
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		return abandoned
	case b.s.IsFailure(err):
		return failure
	default:
		return success
	}
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.s.Now().Before(b.openUntil) {
			return 0, ErrCircuitOpen
		}
		b.setState(StateHalfOpen, "cooldown_elapsed")
		return b.generation, nil
	case StateHalfOpen:
		// the probe for this generation is already out
		return 0, ErrCircuitOpen
	default:
		return b.generation, nil
	}
}

func (b *Breaker) settle(gen uint64, o outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.generation {
		return
	}

	switch o {
	case success:
		b.failures = 0
		if b.state == StateHalfOpen {
			b.setState(StateClosed, "probe_succeeded")
		}
	case failure:
		b.failures++
		switch {
		case b.state == StateHalfOpen:
			b.trip("probe_failed")
		case b.failures >= b.s.Threshold:
			b.trip("threshold_exceeded")
		}
	case abandoned:
		if b.state == StateHalfOpen {
			// let the next caller probe instead
			b.state = StateOpen
			b.generation++
		}
	}
}

func (b *Breaker) trip(reason string) {
	b.openUntil = b.s.Now().Add(b.s.Cooldown)
	metrics.RecordBreakerTrip(b.s.Name, reason)
	b.setState(StateOpen, reason)
}

// setState must be called with mu held.
func (b *Breaker) setState(next State, reason string) {
	prev := b.state
	b.state = next
	b.generation++
	if next == StateClosed {
		b.failures = 0
	}
	metrics.SetBreakerState(b.s.Name, string(next))
	b.logger.Info().
		Str(xglog.FieldEvent, "breaker.transition").
		Str(xglog.FieldOldState, string(prev)).
		Str(xglog.FieldNewState, string(next)).
		Str(xglog.FieldReason, reason).
		Int("failures", b.failures).
		Msg("circuit breaker state changed")
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
