package events

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned while a breaker is open.
var ErrUnavailable = errors.New("downstream unavailable")

// Breaker stops calling a failing dependency for a while after repeated
// errors, then lets a few trial calls through.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// BreakerSettings tunes a Breaker. Zero values take the defaults.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker when exceeded.
	ConsecutiveFailures uint32
	// OpenFor is how long the breaker stays open before half-open trials.
	OpenFor time.Duration
}

func NewBreaker(name string, s BreakerSettings, logger *slog.Logger) *Breaker {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenFor == 0 {
		s.OpenFor = 30 * time.Second
	}
	limit := s.ConsecutiveFailures
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     s.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > limit ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Do runs fn unless the breaker is open.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", b.cb.Name(), ErrUnavailable)
	}
	return err
}

// State is closed, half-open or open.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Guarded wraps a Publisher with a Breaker.
type Guarded struct {
	next    Publisher
	breaker *Breaker
}

func Guard(name string, next Publisher, logger *slog.Logger) *Guarded {
	return &Guarded{next: next, breaker: NewBreaker(name, BreakerSettings{}, logger)}
}

func (g *Guarded) Publish(subject string, data any) error {
	return g.breaker.Do(func() error {
		return g.next.Publish(subject, data)
	})
}

func (g *Guarded) State() string {
	return g.breaker.State()
}
