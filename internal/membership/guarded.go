// Package membership guards the conversation membership lookup used by fanout.
package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/vovakirdan/wirechat-fanout/internal/core"
	"github.com/vovakirdan/wirechat-fanout/internal/store"
)

// Settings tune the breaker and the per-call deadline.
type Settings struct {
	Timeout     time.Duration // per lookup
	MaxFailures uint32        // consecutive failures before opening
	OpenTimeout time.Duration // time spent open before probing again
}

// Guarded wraps a membership provider with a timeout and a circuit breaker.
// Every call still reaches the provider while the breaker is closed; nothing is cached.
type Guarded struct {
	next    core.MembershipProvider
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

var _ core.MembershipProvider = (*Guarded)(nil)

// NewGuarded wraps next.
func NewGuarded(next core.MembershipProvider, s Settings, logger *zerolog.Logger) *Guarded {
	g := &Guarded{
		next:    next,
		timeout: s.Timeout,
		log:     zerolog.Nop(),
	}
	if logger != nil {
		g.log = logger.With().Str("component", "membership").Logger()
	}

	maxFailures := s.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "membership",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// An unknown conversation is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, store.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("breaker state changed")
		},
	})
	return g
}

// ActiveParticipants resolves the conversation's active participants.
// Provider failures and an open breaker surface as core.ErrMembershipResolution;
// store.ErrNotFound is returned unchanged.
func (g *Guarded) ActiveParticipants(ctx context.Context, conversationID int64) ([]int64, error) {
	res, err := g.breaker.Execute(func() (interface{}, error) {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return g.next.ActiveParticipants(callCtx, conversationID)
	})
	switch {
	case err == nil:
		members, _ := res.([]int64)
		return members, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: breaker %s", core.ErrMembershipResolution, g.breaker.State())
	default:
		return nil, fmt.Errorf("%w: %w", core.ErrMembershipResolution, err)
	}
}

// State reports the breaker state, for health reporting.
func (g *Guarded) State() string {
	return g.breaker.State().String()
}
