package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	errs  []error
	calls int
	mu    sync.Mutex
}

func (c *scriptedClient) Generate(_ context.Context, _ Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	return "ok", nil
}

func TestGuardPassesThrough(t *testing.T) {
	inner := &scriptedClient{}
	guard := NewGuard(inner, GuardConfig{RateLimit: 600})

	out, err := guard.Generate(context.Background(), Request{UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "closed", guard.State())
}

func TestGuardOpensAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("503")
	inner := &scriptedClient{errs: []error{boom, boom}}
	guard := NewGuard(inner, GuardConfig{RateLimit: 600, MaxFailures: 2, OpenTimeout: time.Hour})

	for i := 0; i < 2; i++ {
		_, err := guard.Generate(context.Background(), Request{})
		require.ErrorIs(t, err, boom)
	}

	_, err := guard.Generate(context.Background(), Request{})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, "open", guard.State())
	assert.Equal(t, 2, inner.calls, "open breaker must not reach the provider")
}

func TestGuardIgnoresCancellation(t *testing.T) {
	inner := &scriptedClient{errs: []error{context.Canceled, context.Canceled, context.Canceled}}
	guard := NewGuard(inner, GuardConfig{RateLimit: 600, MaxFailures: 2})

	for i := 0; i < 3; i++ {
		_, err := guard.Generate(context.Background(), Request{})
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, "closed", guard.State())
}
