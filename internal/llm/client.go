package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

//go:generate go run go.uber.org/mock/mockgen -source=client.go -destination=mocks/mock_client.go -package=mocks

// Client generates text from a system and user prompt.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is a single prompt exchange.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
	// JSONMode asks the provider to return a single JSON object.
	JSONMode bool
}

// Config holds provider settings.
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// ErrEmptyResponse is returned when a provider answers without content.
var ErrEmptyResponse = errors.New("empty completion")

// APIError is returned for any non-2xx provider response.
type APIError struct {
	Provider   string
	Body       string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func maxTokensOr(req, cfg, fallback int) int {
	if req > 0 {
		return req
	}
	if cfg > 0 {
		return cfg
	}
	return fallback
}

// Message returns the provider's raw error text when err is an APIError,
// and err's own text otherwise.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return err.Error()
}
