package httpclient

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/rs/zerolog"
)

// ErrCircuitOpen is returned when an upstream is failing and calls are
// short-circuited.
var ErrCircuitOpen = errors.New("upstream circuit open")

// Breaker guards calls to one upstream.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

// NewBreaker creates a breaker that opens when at least 60% of 10 or more
// requests within a minute fail, and probes again after timeout.
func NewBreaker(name string, timeout time.Duration, logger zerolog.Logger) *Breaker {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	log := logger.With().Str("breaker", name).Logger()

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})

	return &Breaker{cb: cb}
}

// Do runs fn through the breaker. A nil Breaker calls fn directly.
func (b *Breaker) Do(fn func() error) error {
	if b == nil {
		return fn()
	}
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrCircuitOpen, err)
	}
	return err
}

// State returns the breaker state name.
func (b *Breaker) State() string {
	if b == nil {
		return gobreaker.StateClosed.String()
	}
	return b.cb.State().String()
}
