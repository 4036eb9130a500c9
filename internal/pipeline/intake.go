package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/metrics"
	"github.com/Veraticus/the-observer/internal/model"
	"github.com/go-playground/validator/v10"
)

// RunIntake takes one capture through every stage. Any error before the
// record is persisted aborts the intake and nothing is stored. Failures while
// scoring goals are collected in the result instead.
func (o *Orchestrator) RunIntake(ctx context.Context, req IntakeRequest) (*IntakeResult, error) {
	logger := o.deps.Logger.With("child_id", req.ChildID, "kind", string(req.Capture.Kind), "file", req.Capture.Filename)
	result := &IntakeResult{State: StateCaptured}

	observedOn, err := o.validateRequest(req)
	if err != nil {
		return nil, o.abort(logger, req, common.StageInput, err)
	}

	// Extraction
	if err := ctx.Err(); err != nil {
		return nil, o.abort(logger, req, common.StageExtraction, err)
	}
	done := o.timeStage(common.StageExtraction)
	raw, err := o.deps.Extractor.Extract(ctx, req.Capture)
	done()
	if err != nil {
		return nil, o.abort(logger, req, common.StageExtraction, err)
	}
	result.State = StateExtracted
	logger.Info("Text extracted", "state", result.State, "chars", len(raw.Text))

	// ObservedOn always comes from the session date so monthly windows stay
	// reliable; DateText may later be replaced by the sheet's own date.
	record := &model.ObservationRecord{
		ChildID:      req.ChildID,
		ObserverID:   req.ObserverID,
		StudentName:  req.Session.StudentName,
		ObserverName: req.Session.ObserverName,
		DateText:     req.Session.SessionDate,
		ObservedOn:   observedOn,
		Source:       req.Capture.Kind,
		Filename:     req.Capture.Filename,
		RawText:      raw.Text,
	}

	// Structuring only applies to sheets. Audio goes straight to synthesis.
	var reportInput string
	switch req.Capture.Kind {
	case model.MediaImage:
		if err := ctx.Err(); err != nil {
			return nil, o.abort(logger, req, common.StageStructuring, err)
		}
		done = o.timeStage(common.StageStructuring)
		structured, err := o.deps.Structurer.Structure(ctx, raw)
		done()
		if err != nil {
			return nil, o.abort(logger, req, common.StageStructuring, err)
		}
		if strings.TrimSpace(structured.ObservationsText) == "" {
			err := common.NewStructuringError(common.KindNoObservations, "the structured sheet has no observations", nil)
			return nil, o.abort(logger, req, common.StageStructuring, err)
		}

		record.ClassName = structured.ClassName
		record.SheetStudentID = structured.StudentID
		record.SheetStudentName = structured.StudentName
		if date := strings.TrimSpace(structured.Date); date != "" {
			record.DateText = date
		}
		record.Observations = structured.ObservationsText
		record.ThemeOfDay = structured.ThemeOfDay
		record.CuriositySeed = structured.CuriositySeed
		record.Strengths = structured.Strengths
		record.AreasOfDevelopment = structured.AreasOfDevelopment
		record.Recommendations = structured.Recommendations
		reportInput = structured.ObservationsText

		result.State = StateStructured
		logger.Info("Observation structured", "state", result.State,
			"strengths", len(record.Strengths),
			"areas_of_development", len(record.AreasOfDevelopment))
	default:
		record.Observations = raw.Text
		record.Strengths = []string{}
		record.AreasOfDevelopment = []string{}
		record.Recommendations = []string{}
		reportInput = raw.Text
	}

	// Synthesis
	if err := ctx.Err(); err != nil {
		return nil, o.abort(logger, req, common.StageSynthesis, err)
	}
	done = o.timeStage(common.StageSynthesis)
	report, err := o.deps.Synthesizer.Synthesize(ctx, reportInput, req.Session)
	if err == nil && req.Capture.Kind == model.MediaAudio {
		record.ThemeOfDay, record.CuriositySeed = o.deps.Structurer.ExtractTheme(ctx, raw.Text)
	}
	done()
	if err != nil {
		return nil, o.abort(logger, req, common.StageSynthesis, err)
	}
	record.Report = report
	result.Report = report
	result.State = StateReportSynthesized
	logger.Info("Report synthesized", "state", result.State, "chars", len(report))

	// Persist. Nothing before this point has been written.
	if err := ctx.Err(); err != nil {
		return nil, o.abort(logger, req, common.StagePersistence, err)
	}
	done = o.timeStage(common.StagePersistence)
	if err := o.persist(ctx, logger, req.Capture, record); err != nil {
		done()
		return nil, o.abort(logger, req, common.StagePersistence, err)
	}
	done()
	result.Record = record
	result.State = StatePersisted
	logger.Info("Observation persisted", "state", result.State, "observation_id", record.ID)

	// Scoring never fails the intake.
	done = o.timeStage(common.StageScoring)
	o.score(ctx, logger, record, result)
	done()

	outcome := metrics.OutcomeComplete
	if result.State != StateComplete {
		outcome = metrics.OutcomePersisted
	}
	o.deps.Metrics.ObserveIntake(string(req.Capture.Kind), outcome)
	logger.Info("Intake finished",
		"state", result.State,
		"alignments", len(result.Alignments),
		"alignment_failures", len(result.AlignmentFailures))

	return result, nil
}

// RegenerateReport writes a fresh report from edited text. Nothing is stored.
func (o *Orchestrator) RegenerateReport(ctx context.Context, text string, session model.SessionInfo) (string, error) {
	if err := o.validate.Struct(session); err != nil {
		return "", fail(common.StageInput, inputError(err))
	}
	if strings.TrimSpace(text) == "" {
		return "", fail(common.StageSynthesis,
			common.NewSynthesisError(common.KindNoObservations, "there is no text to build a report from", nil))
	}
	if err := ctx.Err(); err != nil {
		return "", fail(common.StageSynthesis, err)
	}

	done := o.timeStage(common.StageSynthesis)
	report, err := o.deps.Synthesizer.Synthesize(ctx, text, session)
	done()
	if err != nil {
		return "", fail(common.StageSynthesis, err)
	}
	return report, nil
}

func (o *Orchestrator) validateRequest(req IntakeRequest) (time.Time, error) {
	if err := o.validate.Struct(req); err != nil {
		return time.Time{}, inputError(err)
	}
	day, err := model.ParseSessionDate(req.Session.SessionDate)
	if err != nil {
		return time.Time{}, &common.StageError{
			Stage:   common.StageInput,
			Kind:    common.KindInvalidInput,
			Message: err.Error(),
			Err:     err,
		}
	}
	return day, nil
}

func inputError(err error) error {
	message := err.Error()
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fmt.Sprintf("%s is %s", fe.Namespace(), fe.Tag()))
		}
		message = strings.Join(parts, ", ")
	}
	return &common.StageError{Stage: common.StageInput, Kind: common.KindInvalidInput, Message: message, Err: err}
}

// persist archives the capture and writes the record. A failed write removes
// the archived copy again.
func (o *Orchestrator) persist(ctx context.Context, logger *slog.Logger, capture model.Capture, record *model.ObservationRecord) error {
	ref, err := o.deps.Archive.Store(ctx, capture)
	if err != nil {
		logger.Warn("Capture archive failed, continuing without it", "error", err)
		ref = ""
	}
	record.CaptureRef = ref
	record.ID = o.newID()
	record.CreatedAt = o.now().UTC()

	if err := o.deps.Store.CreateObservation(ctx, record); err != nil {
		record.ID = ""
		if ref != "" {
			if discardErr := o.deps.Archive.Discard(context.WithoutCancel(ctx), ref); discardErr != nil {
				logger.Warn("Failed to discard archived capture", "ref", ref, "error", discardErr)
			}
		}
		return &common.StageError{
			Stage:   common.StagePersistence,
			Kind:    common.KindStorage,
			Message: err.Error(),
			Err:     err,
		}
	}
	return nil
}

// score runs every active goal against the observation text and stores each
// alignment. For audio the observation text is the transcript.
func (o *Orchestrator) score(ctx context.Context, logger *slog.Logger, record *model.ObservationRecord, result *IntakeResult) {
	goals, err := o.deps.Store.ListActiveGoalsByChild(ctx, record.ChildID)
	if err != nil {
		logger.Warn("Could not list goals", "error", err)
		result.AlignmentFailures = append(result.AlignmentFailures, AlignmentFailure{Err: err})
		o.deps.Metrics.AlignmentFailed()
		o.settle(ctx, result)
		return
	}

	for _, outcome := range o.deps.Scorer.ScoreAll(ctx, goals, record.Observations) {
		if outcome.Skipped {
			continue
		}
		if outcome.Err != nil {
			o.alignmentFailed(result, outcome.Goal, outcome.Err)
			continue
		}

		alignment := outcome.Alignment
		alignment.GoalID = outcome.Goal.ID
		alignment.ObservationID = record.ID
		if err := o.deps.Store.SaveAlignment(ctx, &alignment); err != nil {
			logger.Warn("Could not store alignment", "goal_id", outcome.Goal.ID, "error", err)
			o.alignmentFailed(result, outcome.Goal, &common.StageError{
				Stage:   common.StagePersistence,
				Kind:    common.KindStorage,
				Message: err.Error(),
				Err:     err,
			})
			continue
		}
		result.Alignments = append(result.Alignments, alignment)
	}

	result.State = StateScored
	logger.Info("Goals scored", "state", result.State, "goals", len(goals))
	o.settle(ctx, result)
}

func (o *Orchestrator) alignmentFailed(result *IntakeResult, goal model.Goal, err error) {
	result.AlignmentFailures = append(result.AlignmentFailures, AlignmentFailure{
		Err:      err,
		GoalID:   goal.ID,
		GoalText: goal.GoalText,
	})
	o.deps.Metrics.AlignmentFailed()
}

// settle marks the intake complete unless the context ended while scoring.
func (o *Orchestrator) settle(ctx context.Context, result *IntakeResult) {
	if ctx.Err() != nil {
		result.State = StatePersisted
		return
	}
	result.State = StateComplete
}

func (o *Orchestrator) abort(logger *slog.Logger, req IntakeRequest, stage common.Stage, err error) error {
	logger.Error("Intake failed", "state", StateFailed, "stage", stage, "kind", common.KindOf(err), "error", err)
	o.deps.Metrics.ObserveIntake(string(req.Capture.Kind), metrics.OutcomeFailed)
	return fail(stage, err)
}
