// Package llm provides a provider-neutral text generation client.
// It supports OpenAI-compatible endpoints (OpenAI, Groq), Anthropic and Gemini,
// and can be wrapped with a rate limiter and circuit breaker via NewGuard.
package llm
