// Package pipeline runs one observation intake from capture to scored record.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/Veraticus/the-observer/internal/alignment"
	"github.com/Veraticus/the-observer/internal/archive"
	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/metrics"
	"github.com/Veraticus/the-observer/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Extractor turns a capture into raw text.
type Extractor interface {
	Extract(ctx context.Context, capture model.Capture) (model.RawText, error)
}

// Structurer turns raw sheet text into a structured observation.
type Structurer interface {
	Structure(ctx context.Context, raw model.RawText) (model.StructuredObservation, error)
	ExtractTheme(ctx context.Context, text string) (theme, seed string)
}

// Synthesizer writes the daily report.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, session model.SessionInfo) (string, error)
}

// Scorer scores text against goals.
type Scorer interface {
	ScoreAll(ctx context.Context, goals []model.Goal, text string) []alignment.Outcome
}

// Store is the persistence the pipeline needs.
type Store interface {
	CreateObservation(ctx context.Context, record *model.ObservationRecord) error
	ListActiveGoalsByChild(ctx context.Context, childID string) ([]model.Goal, error)
	SaveAlignment(ctx context.Context, alignment *model.GoalAlignment) error
}

// Deps are the collaborators an Orchestrator needs. Archive, Metrics and
// Logger are optional.
type Deps struct {
	Extractor   Extractor
	Structurer  Structurer
	Synthesizer Synthesizer
	Scorer      Scorer
	Store       Store
	Archive     archive.Archive
	Metrics     *metrics.Collector
	Logger      *slog.Logger
}

// Orchestrator sequences extraction, structuring, synthesis, persistence and scoring.
type Orchestrator struct {
	deps     Deps
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

// New creates an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Extractor == nil || deps.Structurer == nil || deps.Synthesizer == nil || deps.Scorer == nil || deps.Store == nil {
		return nil, common.NewUserError("pipeline is missing a required collaborator", common.ErrMissingConfig)
	}
	if deps.Archive == nil {
		deps.Archive = archive.Nop{}
	}
	deps.Logger = common.LoggerOrDefault(deps.Logger)

	return &Orchestrator{
		deps:     deps,
		validate: validator.New(),
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// IntakeRequest is one capture plus who and when it is about.
type IntakeRequest struct {
	Session    model.SessionInfo
	ChildID    string `validate:"required"`
	ObserverID string `validate:"required"`
	Capture    model.Capture
}

// IntakeResult is what a successful intake produced.
type IntakeResult struct {
	Record            *model.ObservationRecord
	Report            string
	State             State
	Alignments        []model.GoalAlignment
	AlignmentFailures []AlignmentFailure
}

// timeStage records how long stage took once the returned func is called.
func (o *Orchestrator) timeStage(stage common.Stage) func() {
	start := o.now()
	return func() {
		o.deps.Metrics.ObserveStage(string(stage), o.now().Sub(start))
	}
}
