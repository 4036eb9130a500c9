// Package alignment scores observations against a child's learning goals.
package alignment

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/contract"
	"github.com/Veraticus/the-observer/internal/llm"
	"github.com/Veraticus/the-observer/internal/model"
	"github.com/Veraticus/the-observer/internal/prompts"
)

// Temperature matches the structuring call; scores should be repeatable.
const Temperature = 0.2

var alignmentContract = contract.MustCompile("goal_alignment.json", `{
  "type": "object",
  "required": ["alignmentScore", "analysisText"],
  "properties": {
    "alignmentScore": {"type": "number", "minimum": 0, "maximum": 10},
    "analysisText": {"type": "string"},
    "suggestedNextSteps": {}
  }
}`)

// Scorer compares observations with goals.
type Scorer struct {
	client      llm.Client
	prompts     *prompts.Builder
	logger      *slog.Logger
	concurrency int
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithConcurrency lets ScoreAll run up to n scoring calls at once.
func WithConcurrency(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scorer) { s.logger = l }
}

// New creates a Scorer. Scoring is sequential unless WithConcurrency is given.
func New(client llm.Client, opts ...Option) (*Scorer, error) {
	builder, err := prompts.New()
	if err != nil {
		return nil, err
	}
	s := &Scorer{client: client, prompts: builder, concurrency: 1}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = common.LoggerOrDefault(s.logger)
	return s, nil
}

// Score asks the model how well text supports goal. The returned alignment
// has GoalID, AlignmentScore and AnalysisText set; the caller fills in the
// observation id before persisting it.
func (s *Scorer) Score(ctx context.Context, goal model.Goal, text string) (model.GoalAlignment, error) {
	system, err := s.prompts.Render(prompts.AlignmentSystem, nil)
	if err != nil {
		return model.GoalAlignment{}, err
	}
	user, err := s.prompts.Render(prompts.AlignmentUser, prompts.AlignmentData{GoalText: goal.GoalText, Text: text})
	if err != nil {
		return model.GoalAlignment{}, err
	}

	reply, err := s.client.Generate(ctx, llm.Request{
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  Temperature,
		JSONMode:     true,
	})
	if err != nil {
		return model.GoalAlignment{}, common.NewScoringError(common.KindTransportFailure, llm.Message(err), err)
	}

	var out struct {
		AnalysisText   string  `json:"analysisText"`
		AlignmentScore float64 `json:"alignmentScore"`
	}
	if err := alignmentContract.Decode(reply, &out); err != nil {
		return model.GoalAlignment{}, common.NewScoringError(common.KindMalformedJSON, reply, err)
	}

	return model.GoalAlignment{
		GoalID:         goal.ID,
		AlignmentScore: out.AlignmentScore,
		AnalysisText:   strings.TrimSpace(out.AnalysisText),
	}, nil
}

// Outcome is the result of scoring one goal.
type Outcome struct {
	Err       error
	Goal      model.Goal
	Alignment model.GoalAlignment
	// Skipped is set when the context ended before this goal was scored.
	Skipped bool
}

// ScoreAll scores every goal and returns one outcome per goal, in goal order.
// One goal's failure never stops the others.
func (s *Scorer) ScoreAll(ctx context.Context, goals []model.Goal, text string) []Outcome {
	outcomes := make([]Outcome, len(goals))

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, goal := range goals {
		i, goal := i, goal
		outcomes[i].Goal = goal
		if ctx.Err() != nil {
			outcomes[i].Skipped = true
			continue
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				outcomes[i].Skipped = true
				return nil
			}
			alignment, err := s.Score(ctx, goal, text)
			if err != nil {
				s.logger.Warn("Goal scoring failed", "goal_id", goal.ID, "error", err)
				outcomes[i].Err = err
				return nil
			}
			outcomes[i].Alignment = alignment
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}
