package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Veraticus/the-observer/internal/llm"
)

// Call kinds recorded by MockLLM.
const (
	CallStructure = "structure"
	CallTheme     = "theme"
	CallReport    = "report"
	CallAlignment = "alignment"
)

// MockLLM is a test implementation of llm.Client. It recognises which prompt
// it was sent and answers with the configured reply for that call.
type MockLLM struct {
	goalScores   map[string]float64
	goalFailures map[string]error
	Structured   string
	Theme        string
	Report       string
	calls        []MockLLMCall
	mu           sync.Mutex
}

// MockLLMCall records one request.
type MockLLMCall struct {
	Kind    string
	Request llm.Request
}

// NewMockLLM returns a mock with a usable reply for every call.
func NewMockLLM() *MockLLM {
	return &MockLLM{
		goalScores:   make(map[string]float64),
		goalFailures: make(map[string]error),
		Structured: `{"studentName":"Maria","studentId":"17","className":"KG-B","date":"15/03/2024",` +
			`"observations":"Maria built a tall tower and explained how she balanced it.",` +
			`"strengths":["focus","creativity"],"areasOfDevelopment":["sharing"],"recommendations":["block play"]}`,
		Theme:  `{"themeOfDay":"Balance","curiositySeed":"Why do towers fall?"}`,
		Report: "Daily Growth Report\n\nA calm and curious day.",
	}
}

// ScoreGoal makes alignment calls whose goal text contains goalText return score.
func (m *MockLLM) ScoreGoal(goalText string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goalScores[goalText] = score
}

// FailGoal makes alignment calls whose goal text contains goalText fail.
func (m *MockLLM) FailGoal(goalText string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goalFailures[goalText] = err
}

// Generate implements llm.Client.
func (m *MockLLM) Generate(ctx context.Context, req llm.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kind := classify(req)
	m.calls = append(m.calls, MockLLMCall{Kind: kind, Request: req})

	switch kind {
	case CallStructure:
		return m.Structured, nil
	case CallTheme:
		return m.Theme, nil
	case CallAlignment:
		goal := goalLine(req.UserPrompt)
		for text, err := range m.goalFailures {
			if strings.Contains(goal, text) {
				return "", err
			}
		}
		score := 5.0
		for text, s := range m.goalScores {
			if strings.Contains(goal, text) {
				score = s
			}
		}
		return fmt.Sprintf(`{"alignmentScore": %g, "analysisText": "Progress on %s."}`, score, goal), nil
	default:
		return m.Report, nil
	}
}

// Calls returns the recorded calls of kind, or all calls when kind is empty.
func (m *MockLLM) Calls(kind string) []MockLLMCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []MockLLMCall
	for _, c := range m.calls {
		if kind == "" || c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func classify(req llm.Request) string {
	switch {
	case strings.Contains(req.SystemPrompt, "educational assessment"):
		return CallAlignment
	case strings.Contains(req.SystemPrompt, "observation sheet"):
		return CallStructure
	case req.JSONMode:
		return CallTheme
	default:
		return CallReport
	}
}

func goalLine(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if rest, ok := strings.CutPrefix(line, "GOAL: "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// ErrMockTransport is a convenient failure for FailGoal.
var ErrMockTransport = errors.New("mock transport failure")
