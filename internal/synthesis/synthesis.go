// Package synthesis writes the parent-facing Daily Growth Report.
package synthesis

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/llm"
	"github.com/Veraticus/the-observer/internal/model"
	"github.com/Veraticus/the-observer/internal/prompts"
)

// Temperature leaves some room for natural phrasing in the parent note.
const Temperature = 0.4

// Synthesizer turns observation text into a formatted report.
type Synthesizer struct {
	client  llm.Client
	prompts *prompts.Builder
	logger  *slog.Logger
}

// New creates a Synthesizer.
func New(client llm.Client, logger *slog.Logger) (*Synthesizer, error) {
	builder, err := prompts.New()
	if err != nil {
		return nil, err
	}
	return &Synthesizer{client: client, prompts: builder, logger: common.LoggerOrDefault(logger)}, nil
}

// Synthesize generates a report for text. The reply is free text and is
// returned as given, except that the identity header is prepended when the
// model dropped the child's name or the session date.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, session model.SessionInfo) (string, error) {
	prompt, err := s.prompts.Render(prompts.Report, prompts.NewReportData(text, session))
	if err != nil {
		return "", err
	}

	reply, err := s.client.Generate(ctx, llm.Request{
		UserPrompt:  prompt,
		Temperature: Temperature,
	})
	if err != nil {
		return "", common.NewSynthesisError(common.KindTransportFailure, llm.Message(err), err)
	}

	report := strings.TrimSpace(reply)
	if !strings.Contains(report, session.StudentName) || !strings.Contains(report, session.SessionDate) {
		s.logger.Debug("Report missing identity header, prepending it", "student", session.StudentName)
		report = prompts.Header(session) + "\n\n" + report
	}
	return report, nil
}

// Regenerate produces a fresh report from edited text. The result replaces
// any earlier report; nothing from the previous one is carried over.
func (s *Synthesizer) Regenerate(ctx context.Context, editedText string, session model.SessionInfo) (string, error) {
	return s.Synthesize(ctx, editedText, session)
}
