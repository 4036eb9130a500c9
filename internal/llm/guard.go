package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("llm circuit breaker open")

// GuardConfig tunes NewGuard.
type GuardConfig struct {
	Logger *slog.Logger
	Name   string
	// RateLimit is the number of requests allowed per minute.
	RateLimit int
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// Guard wraps a Client with a token bucket and a circuit breaker.
// It never retries.
type Guard struct {
	next    Client
	limiter *rateLimiter
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewGuard wraps next.
func NewGuard(next Client, cfg GuardConfig) *Guard {
	if cfg.Name == "" {
		cfg.Name = "llm"
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Guard{
		next:    next,
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  logger,
	}

	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("LLM circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return g
}

// Generate implements Client.
func (g *Guard) Generate(ctx context.Context, req Request) (string, error) {
	if err := g.limiter.wait(ctx); err != nil {
		return "", err
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Generate(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
		return "", err
	}

	text, _ := out.(string)
	return text, nil
}

// State returns the breaker state name.
func (g *Guard) State() string {
	return g.breaker.State().String()
}
