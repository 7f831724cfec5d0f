package sources

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"

	"github.com/daybook-ai/daybook/pkg/types"
)

// ErrCircuitOpen is returned when an adapter's circuit breaker is open and
// the fetch is rejected without hitting the provider. The builder treats it
// like any other fetch failure: degrade that source and flag it.
var ErrCircuitOpen = errors.New("source circuit breaker is open")

// BreakerConfig holds circuit breaker settings for a wrapped adapter.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures required to trip
	// the circuit. Default: 3.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before allowing a probe.
	// Default: 30 seconds.
	Timeout time.Duration
}

// BreakerAdapter wraps a source adapter with a circuit breaker so a
// persistently failing provider stops consuming the per-fetch timeout on
// every session start.
type BreakerAdapter struct {
	inner   Adapter
	breaker *gobreaker.CircuitBreaker
}

// WithBreaker wraps the adapter with circuit breaker protection.
func WithBreaker(inner Adapter, cfg BreakerConfig) *BreakerAdapter {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    string(inner.Source()),
		Timeout: cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("sources: %s breaker %s -> %s", name, from, to)
		},
	}

	return &BreakerAdapter{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Source identifies the wrapped adapter's source.
func (b *BreakerAdapter) Source() types.BlockSource { return b.inner.Source() }

// Fetch runs the wrapped fetch through the circuit breaker.
func (b *BreakerAdapter) Fetch(ctx context.Context, owner string, date time.Time) ([]Record, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Fetch(ctx, owner, date)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return result.([]Record), nil
}
