// Package structuring turns OCR text from observation sheets into typed records.
package structuring

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/contract"
	"github.com/Veraticus/the-observer/internal/llm"
	"github.com/Veraticus/the-observer/internal/model"
	"github.com/Veraticus/the-observer/internal/prompts"
)

// Temperature keeps structuring output stable between runs.
const Temperature = 0.2

var observationContract = contract.MustCompile("structured_observation.json", `{
  "type": "object",
  "required": ["observations"],
  "properties": {
    "studentName": {"type": "string"},
    "studentId": {"type": ["string", "number"]},
    "className": {"type": "string"},
    "date": {"type": "string"},
    "observations": {"type": "string"},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "areasOfDevelopment": {"type": "array", "items": {"type": "string"}},
    "recommendations": {"type": "array", "items": {"type": "string"}},
    "themeOfDay": {"type": "string"},
    "curiositySeed": {"type": "string"}
  }
}`)

var themeContract = contract.MustCompile("theme.json", `{
  "type": "object",
  "properties": {
    "themeOfDay": {"type": "string"},
    "curiositySeed": {"type": "string"}
  }
}`)

// Structurer calls the language model with the fixed extraction contract.
type Structurer struct {
	client  llm.Client
	prompts *prompts.Builder
	logger  *slog.Logger
}

// New creates a Structurer.
func New(client llm.Client, logger *slog.Logger) (*Structurer, error) {
	builder, err := prompts.New()
	if err != nil {
		return nil, err
	}
	return &Structurer{client: client, prompts: builder, logger: common.LoggerOrDefault(logger)}, nil
}

// wireObservation tolerates numeric student ids, which models emit for roll numbers.
type wireObservation struct {
	model.StructuredObservation
	StudentID any `json:"studentId"`
}

// Structure turns raw sheet text into a StructuredObservation.
// An empty observations field is returned as-is; deciding what that means is
// left to the caller.
func (s *Structurer) Structure(ctx context.Context, raw model.RawText) (model.StructuredObservation, error) {
	system, err := s.prompts.Render(prompts.StructuringSystem, nil)
	if err != nil {
		return model.StructuredObservation{}, err
	}
	user, err := s.prompts.Render(prompts.StructuringUser, prompts.TextData{Text: raw.Text})
	if err != nil {
		return model.StructuredObservation{}, err
	}

	reply, err := s.client.Generate(ctx, llm.Request{
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  Temperature,
		JSONMode:     true,
	})
	if err != nil {
		return model.StructuredObservation{}, common.NewStructuringError(common.KindTransportFailure, llm.Message(err), err)
	}

	var wire wireObservation
	if err := observationContract.Decode(reply, &wire); err != nil {
		return model.StructuredObservation{}, common.NewStructuringError(common.KindMalformedJSON, reply, err)
	}

	out := wire.StructuredObservation
	switch id := wire.StudentID.(type) {
	case string:
		out.StudentID = id
	case float64:
		out.StudentID = strconv.FormatFloat(id, 'f', -1, 64)
	}
	out.ObservationsText = strings.TrimSpace(out.ObservationsText)
	out.Strengths = nonNil(out.Strengths)
	out.AreasOfDevelopment = nonNil(out.AreasOfDevelopment)
	out.Recommendations = nonNil(out.Recommendations)

	s.logger.Debug("Structured observation",
		"strengths", len(out.Strengths),
		"areas_of_development", len(out.AreasOfDevelopment),
		"recommendations", len(out.Recommendations))

	return out, nil
}

// ExtractTheme pulls the theme of the day and curiosity seed out of a transcript.
// It is best-effort: any failure yields empty strings.
func (s *Structurer) ExtractTheme(ctx context.Context, text string) (theme, seed string) {
	user, err := s.prompts.Render(prompts.ThemeUser, prompts.TextData{Text: text})
	if err != nil {
		s.logger.Warn("Theme prompt failed", "error", err)
		return "", ""
	}

	reply, err := s.client.Generate(ctx, llm.Request{
		UserPrompt:  user,
		Temperature: Temperature,
		JSONMode:    true,
	})
	if err != nil {
		s.logger.Warn("Theme extraction failed", "error", err)
		return "", ""
	}

	var out struct {
		ThemeOfDay    string `json:"themeOfDay"`
		CuriositySeed string `json:"curiositySeed"`
	}
	if err := themeContract.Decode(reply, &out); err != nil {
		s.logger.Warn("Theme extraction returned unusable JSON", "error", err)
		return "", ""
	}
	return strings.TrimSpace(out.ThemeOfDay), strings.TrimSpace(out.CuriositySeed)
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
