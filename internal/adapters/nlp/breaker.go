package nlp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"review_insights/internal/domain"
)

const (
	StateClosed   = 0
	StateOpen     = 1
	StateHalfOpen = 2
)

var ErrCircuitOpen = errors.New("nlp circuit breaker open")

// Breaker short-circuits an analyzer after maxFailures consecutive errors.
// After resetTimeout one trial call is let through; its outcome closes or
// re-opens the circuit.
type Breaker struct {
	inner        domain.SentimentAnalyzer
	maxFailures  int
	resetTimeout time.Duration

	failures atomic.Int64
	state    atomic.Int32

	mu       sync.RWMutex
	lastFail time.Time
	now      func() time.Time
}

func NewBreaker(inner domain.SentimentAnalyzer, maxFailures int, resetTimeout time.Duration) *Breaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	b := &Breaker{inner: inner, maxFailures: maxFailures, resetTimeout: resetTimeout, now: time.Now}
	b.state.Store(StateClosed)
	return b
}

func (b *Breaker) Analyze(ctx context.Context, text string) (domain.Analysis, error) {
	state := b.state.Load()
	switch state {
	case StateOpen:
		b.mu.RLock()
		elapsed := b.now().Sub(b.lastFail)
		b.mu.RUnlock()
		if elapsed <= b.resetTimeout || !b.state.CompareAndSwap(StateOpen, StateHalfOpen) {
			return domain.Analysis{}, ErrCircuitOpen
		}
		state = StateHalfOpen
	case StateHalfOpen:
		// a trial call is already in flight
		return domain.Analysis{}, ErrCircuitOpen
	}

	a, err := b.inner.Analyze(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			if state == StateHalfOpen {
				b.state.Store(StateOpen)
			}
			return a, err
		}
		n := b.failures.Add(1)
		b.mu.Lock()
		b.lastFail = b.now()
		b.mu.Unlock()
		if state == StateHalfOpen || n >= int64(b.maxFailures) {
			if b.state.Swap(StateOpen) != StateOpen {
				log.Warn().Err(err).Int64("failures", n).Msg("nlp circuit opened")
			}
		}
		return a, err
	}

	b.failures.Store(0)
	if state == StateHalfOpen {
		b.state.Store(StateClosed)
		log.Info().Msg("nlp circuit closed")
	}
	return a, nil
}

func (b *Breaker) State() int32 { return b.state.Load() }
