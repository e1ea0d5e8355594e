package platform

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BreakerState represents the state of a marketplace circuit breaker.
type BreakerState int

const (
	// BreakerClosed allows calls to pass through.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects calls immediately.
	BreakerOpen

	// BreakerHalfOpen allows a few test calls to check recovery.
	BreakerHalfOpen
)

// String returns the string representation of the breaker state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds configuration for a marketplace circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before opening.
	MaxFailures int

	// ResetTimeout is how long to wait before probing recovery.
	ResetTimeout time.Duration

	// HalfOpenMaxCalls is the number of calls allowed while half-open.
	HalfOpenMaxCalls int
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxFailures:      5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// Breaker sheds calls to a marketplace that keeps failing, so one dead
// platform cannot burn every run's retry budget.
type Breaker struct {
	mu              sync.Mutex
	state           BreakerState
	failureCount    int
	successCount    int // used in half-open state
	lastFailureTime time.Time
	lastStateChange time.Time
	config          *BreakerConfig
	logger          *zerolog.Logger
	platform        string
}

// NewBreaker creates a circuit breaker for one marketplace.
func NewBreaker(platform string, config *BreakerConfig, logger *zerolog.Logger) *Breaker {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	if logger == nil {
		nopLogger := zerolog.Nop()
		logger = &nopLogger
	}

	return &Breaker{
		state:           BreakerClosed,
		config:          config,
		logger:          logger,
		platform:        platform,
		lastStateChange: time.Now(),
	}
}

// Allow returns true if a call should be let through.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	switch b.state {
	case BreakerClosed:
		return true

	case BreakerOpen:
		if now.Sub(b.lastFailureTime) >= b.config.ResetTimeout {
			b.transitionTo(BreakerHalfOpen, now)
			b.logger.Info().
				Str("platform", b.platform).
				Msg("Circuit breaker transitioning to half-open")
			return true
		}
		return false

	case BreakerHalfOpen:
		return b.successCount < b.config.HalfOpenMaxCalls

	default:
		return false
	}
}

// RecordSuccess records a successful adapter call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	switch b.state {
	case BreakerClosed:
		b.failureCount = 0

	case BreakerHalfOpen:
		b.successCount++
		if b.successCount >= b.config.HalfOpenMaxCalls {
			b.transitionTo(BreakerClosed, now)
			b.logger.Info().
				Str("platform", b.platform).
				Int("success_count", b.successCount).
				Msg("Circuit breaker closing after recovery")
			b.successCount = 0
			b.failureCount = 0
		}
	}
}

// RecordFailure records a failed adapter call.
func (b *Breaker) RecordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.failureCount++
	b.lastFailureTime = now

	switch b.state {
	case BreakerClosed:
		if b.failureCount >= b.config.MaxFailures {
			b.transitionTo(BreakerOpen, now)
			b.logger.Warn().
				Err(err).
				Str("platform", b.platform).
				Int("failure_count", b.failureCount).
				Dur("reset_timeout", b.config.ResetTimeout).
				Msg("Circuit breaker opening after max failures")
		}

	case BreakerHalfOpen:
		b.transitionTo(BreakerOpen, now)
		b.logger.Warn().
			Err(err).
			Str("platform", b.platform).
			Msg("Circuit breaker re-opening after failure in half-open state")
		b.successCount = 0
	}
}

func (b *Breaker) transitionTo(newState BreakerState, now time.Time) {
	b.state = newState
	b.lastStateChange = now
}

// State returns the current state of the breaker.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transitionTo(BreakerClosed, time.Now())
	b.failureCount = 0
	b.successCount = 0
}

// Guarded wraps an Adapter with a circuit breaker. While the breaker is
// open every call fails fast with a TransientError, which the engine's
// retry policy treats like any other transient outage.
type Guarded struct {
	inner   Adapter
	breaker *Breaker
}

// Guard wraps an adapter with a circuit breaker.
func Guard(inner Adapter, config *BreakerConfig, logger *zerolog.Logger) *Guarded {
	return &Guarded{
		inner:   inner,
		breaker: NewBreaker(inner.Slug(), config, logger),
	}
}

// Slug returns the wrapped adapter's slug.
func (g *Guarded) Slug() string { return g.inner.Slug() }

// Name returns the wrapped adapter's name.
func (g *Guarded) Name() string { return g.inner.Name() }

// Breaker exposes the underlying breaker for health reporting.
func (g *Guarded) Breaker() *Breaker { return g.breaker }

// ReadCompetitorPrice calls through the breaker.
func (g *Guarded) ReadCompetitorPrice(ctx context.Context, ref ProductRef) (int64, error) {
	if !g.breaker.Allow() {
		return 0, &TransientError{Platform: g.Slug(), Op: "readCompetitorPrice", Err: errOpenCircuit}
	}
	price, err := g.inner.ReadCompetitorPrice(ctx, ref)
	g.record(err)
	return price, err
}

// UpdatePrice calls through the breaker.
func (g *Guarded) UpdatePrice(ctx context.Context, ref ListingRef, price int64) error {
	if !g.breaker.Allow() {
		return &TransientError{Platform: g.Slug(), Op: "updatePrice", Err: errOpenCircuit}
	}
	err := g.inner.UpdatePrice(ctx, ref, price)
	g.record(err)
	return err
}

// UpdateQuantity calls through the breaker.
func (g *Guarded) UpdateQuantity(ctx context.Context, ref ListingRef, quantity int) error {
	if !g.breaker.Allow() {
		return &TransientError{Platform: g.Slug(), Op: "updateQuantity", Err: errOpenCircuit}
	}
	err := g.inner.UpdateQuantity(ctx, ref, quantity)
	g.record(err)
	return err
}

// record updates the breaker. ErrUnavailable and permanent rejections
// are valid marketplace answers, not outages.
func (g *Guarded) record(err error) {
	switch {
	case err == nil, IsPermanent(err), errors.Is(err, ErrUnavailable):
		g.breaker.RecordSuccess()
	default:
		g.breaker.RecordFailure(err)
	}
}

var errOpenCircuit = &openCircuitError{}

type openCircuitError struct{}

func (*openCircuitError) Error() string { return "circuit breaker open" }
