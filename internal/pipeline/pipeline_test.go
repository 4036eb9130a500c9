package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-observer/internal/alignment"
	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/metrics"
	"github.com/Veraticus/the-observer/internal/model"
	"github.com/Veraticus/the-observer/internal/structuring"
	"github.com/Veraticus/the-observer/internal/synthesis"
	"github.com/Veraticus/the-observer/internal/testutil"
)

type fakeExtractor struct {
	err   error
	text  string
	calls int
	mu    sync.Mutex
}

func (f *fakeExtractor) Extract(_ context.Context, capture model.Capture) (model.RawText, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return model.RawText{}, f.err
	}
	return model.RawText{Text: f.text, Source: capture.Kind}, nil
}

type fakeArchive struct {
	storeErr  error
	stored    []string
	discarded []string
}

func (f *fakeArchive) Store(_ context.Context, capture model.Capture) (string, error) {
	if f.storeErr != nil {
		return "", f.storeErr
	}
	ref := "image-files/id_" + capture.Filename
	f.stored = append(f.stored, ref)
	return ref, nil
}

func (f *fakeArchive) Discard(_ context.Context, ref string) error {
	f.discarded = append(f.discarded, ref)
	return nil
}

type failingStore struct {
	Store
	err error
}

func (f failingStore) CreateObservation(context.Context, *model.ObservationRecord) error {
	return f.err
}

type harness struct {
	orch      *Orchestrator
	llm       *MockLLM
	extractor *fakeExtractor
	archive   *fakeArchive
	db        *testutil.TestDB
	metrics   *metrics.Collector
}

func newHarness(t *testing.T, concurrency int) *harness {
	t.Helper()

	h := &harness{
		llm:       NewMockLLM(),
		extractor: &fakeExtractor{text: "Name: Maria\nObservations: built a tower"},
		archive:   &fakeArchive{},
		db:        testutil.SetupTestDB(t),
		metrics:   metrics.NewCollector("observer"),
	}
	h.build(t, h.db.Storage, concurrency)
	return h
}

func (h *harness) build(t *testing.T, store Store, concurrency int) {
	t.Helper()

	structurer, err := structuring.New(h.llm, nil)
	require.NoError(t, err)
	synthesizer, err := synthesis.New(h.llm, nil)
	require.NoError(t, err)
	scorer, err := alignment.New(h.llm, alignment.WithConcurrency(concurrency))
	require.NoError(t, err)

	h.orch, err = New(Deps{
		Extractor:   h.extractor,
		Structurer:  structurer,
		Synthesizer: synthesizer,
		Scorer:      scorer,
		Store:       store,
		Archive:     h.archive,
		Metrics:     h.metrics,
	})
	require.NoError(t, err)
}

func (h *harness) observations(t *testing.T, childID string) []model.ObservationRecord {
	t.Helper()
	records, err := h.db.Storage.ListObservationsByChild(context.Background(), childID, model.DateRange{
		Start: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return records
}

func imageRequest() IntakeRequest {
	return IntakeRequest{
		ChildID:    "child-1",
		ObserverID: "observer-1",
		Session:    model.SessionInfo{StudentName: "Maria", ObserverName: "Ms. Lee", SessionDate: "15/03/2024"},
		Capture:    model.Capture{Kind: model.MediaImage, Filename: "sheet.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}},
	}
}

func audioRequest() IntakeRequest {
	req := imageRequest()
	req.Capture = model.Capture{Kind: model.MediaAudio, Filename: "notes.m4a", ContentType: "audio/mp4", Data: []byte("audio")}
	return req
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestRunIntakeImage(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	share := h.db.SeedGoal("child-1", "Share toys with peers")
	count := h.db.SeedGoal("child-1", "Count to twenty")
	h.llm.ScoreGoal("Share toys", 3)
	h.llm.ScoreGoal("Count", 8)

	result, err := h.orch.RunIntake(ctx, imageRequest())
	require.NoError(t, err)

	assert.Equal(t, StateComplete, result.State)
	assert.Equal(t, "Maria built a tall tower and explained how she balanced it.", result.Record.Observations)
	assert.Equal(t, []string{"focus", "creativity"}, result.Record.Strengths)
	assert.Equal(t, []string{"sharing"}, result.Record.AreasOfDevelopment)
	assert.Equal(t, "KG-B", result.Record.ClassName)
	assert.Equal(t, "2024-03-15", result.Record.ObservedOn.Format(model.DayLayout))
	assert.Equal(t, "image-files/id_sheet.jpg", result.Record.CaptureRef)
	assert.Contains(t, result.Report, "Maria")
	assert.Contains(t, result.Report, "15/03/2024")
	assert.Empty(t, result.AlignmentFailures)

	require.Len(t, result.Alignments, 2)
	assert.Equal(t, share.ID, result.Alignments[0].GoalID)
	assert.InDelta(t, 3, result.Alignments[0].AlignmentScore, 0.001)
	assert.Equal(t, count.ID, result.Alignments[1].GoalID)
	assert.InDelta(t, 8, result.Alignments[1].AlignmentScore, 0.001)

	records := h.observations(t, "child-1")
	require.Len(t, records, 1)
	assert.Equal(t, result.Record.ID, records[0].ID)

	stored, err := h.db.Storage.ListAlignmentsByObservation(ctx, result.Record.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	// Goals are scored against the structured observations, not the report.
	for _, call := range h.llm.Calls(CallAlignment) {
		assert.Contains(t, call.Request.UserPrompt, "Maria built a tall tower and explained how she balanced it.")
		assert.NotContains(t, call.Request.UserPrompt, "A calm and curious day.")
	}
	assert.Empty(t, h.llm.Calls(CallTheme))
	assert.InDelta(t, 1, h.metricsIntake("image", metrics.OutcomeComplete), 0)
}

func (h *harness) metricsIntake(kind, outcome string) float64 {
	snap, err := h.metrics.Snapshot()
	if err != nil {
		return -1
	}
	return snap["observer_intakes_total,kind="+kind+",outcome="+outcome]
}

func TestRunIntakeAudio(t *testing.T) {
	h := newHarness(t, 1)
	h.extractor.text = "Maria counted the blocks out loud and shared them with Sam."

	result, err := h.orch.RunIntake(context.Background(), audioRequest())
	require.NoError(t, err)

	assert.Equal(t, StateComplete, result.State)
	assert.Equal(t, model.MediaAudio, result.Record.Source)
	assert.Equal(t, h.extractor.text, result.Record.Observations)
	assert.Equal(t, h.extractor.text, result.Record.RawText)
	assert.Empty(t, result.Record.Strengths)
	assert.NotNil(t, result.Record.Strengths)
	assert.Empty(t, result.Record.AreasOfDevelopment)
	assert.Equal(t, "Balance", result.Record.ThemeOfDay)
	assert.Equal(t, "Why do towers fall?", result.Record.CuriositySeed)

	assert.Empty(t, h.llm.Calls(CallStructure))
	reports := h.llm.Calls(CallReport)
	require.Len(t, reports, 1)
	assert.Contains(t, reports[0].Request.UserPrompt, h.extractor.text)

	records := h.observations(t, "child-1")
	require.Len(t, records, 1)
	assert.Equal(t, []string{}, records[0].Strengths)
}

func TestRunIntakeKeepsSheetFields(t *testing.T) {
	h := newHarness(t, 1)
	h.llm.Structured = `{"studentName":"Maria G.","studentId":"17","className":"KG-B","date":"10/03/2024",` +
		`"observations":"Maria sorted shells by size.","strengths":["patience"],"areasOfDevelopment":[],"recommendations":[]}`

	result, err := h.orch.RunIntake(context.Background(), imageRequest())
	require.NoError(t, err)

	assert.Equal(t, "10/03/2024", result.Record.DateText)
	assert.Equal(t, "2024-03-15", result.Record.ObservedOn.Format(model.DayLayout))
	assert.Equal(t, "17", result.Record.SheetStudentID)
	assert.Equal(t, "Maria G.", result.Record.SheetStudentName)
	assert.Equal(t, "Maria", result.Record.StudentName)

	records := h.observations(t, "child-1")
	require.Len(t, records, 1)
	assert.Equal(t, "10/03/2024", records[0].DateText)
	assert.Equal(t, "17", records[0].SheetStudentID)
}

func TestRunIntakeSheetWithoutDate(t *testing.T) {
	h := newHarness(t, 1)
	h.llm.Structured = `{"studentName":"Maria","observations":"Maria painted.","strengths":[],"areasOfDevelopment":[],"recommendations":[]}`

	result, err := h.orch.RunIntake(context.Background(), imageRequest())
	require.NoError(t, err)
	assert.Equal(t, "15/03/2024", result.Record.DateText)
}

func TestRunIntakeAudioScoresTranscript(t *testing.T) {
	h := newHarness(t, 1)
	h.extractor.text = "Maria handed Sam the red block before he asked."
	h.db.SeedGoal("child-1", "Share toys with peers")
	h.llm.ScoreGoal("Share toys", 9)

	result, err := h.orch.RunIntake(context.Background(), audioRequest())
	require.NoError(t, err)
	require.Len(t, result.Alignments, 1)

	calls := h.llm.Calls(CallAlignment)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Request.UserPrompt, h.extractor.text)
	assert.NotContains(t, calls[0].Request.UserPrompt, "A calm and curious day.")
}

func TestRunIntakeMariaVoiceNote(t *testing.T) {
	h := newHarness(t, 1)
	h.extractor.text = "Maria built a tower using 10 blocks and counted them aloud."
	req := audioRequest()
	req.Session = model.SessionInfo{StudentName: "Maria", ObserverName: "J. Lee", SessionDate: "01/03/2024"}

	result, err := h.orch.RunIntake(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StateComplete, result.State)
	assert.Equal(t, "Maria built a tower using 10 blocks and counted them aloud.", result.Record.Observations)
	assert.Contains(t, result.Report, "Maria")
	assert.Contains(t, result.Report, "01/03/2024")
	assert.Empty(t, result.Alignments)
	assert.Empty(t, result.AlignmentFailures)
	assert.Empty(t, h.llm.Calls(CallAlignment))

	records := h.observations(t, "child-1")
	require.Len(t, records, 1)
	assert.Equal(t, "2024-03-01", records[0].ObservedOn.Format(model.DayLayout))
}

func TestRunIntakeAbortsBeforePersisting(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(h *harness)
		req       func() IntakeRequest
		wantStage common.Stage
		wantErr   error
	}{
		{
			name: "whitespace OCR",
			setup: func(h *harness) {
				h.extractor.err = common.NewExtractionError(common.KindEmptyText, "", "no text was detected in the image", nil)
			},
			req:       imageRequest,
			wantStage: common.StageExtraction,
			wantErr:   common.ErrEmptyText,
		},
		{
			name: "empty observations",
			setup: func(h *harness) {
				h.llm.Structured = `{"studentName":"Maria","observations":"   ","strengths":["focus"]}`
			},
			req:       imageRequest,
			wantStage: common.StageStructuring,
			wantErr:   common.ErrNoObservations,
		},
		{
			name: "malformed structuring reply",
			setup: func(h *harness) {
				h.llm.Structured = "I could not read the sheet"
			},
			req:       imageRequest,
			wantStage: common.StageStructuring,
			wantErr:   common.ErrMalformedJSON,
		},
		{
			name:  "missing child",
			setup: func(*harness) {},
			req: func() IntakeRequest {
				r := imageRequest()
				r.ChildID = ""
				return r
			},
			wantStage: common.StageInput,
			wantErr:   common.ErrInvalidInput,
		},
		{
			name:  "empty capture",
			setup: func(*harness) {},
			req: func() IntakeRequest {
				r := audioRequest()
				r.Capture.Data = nil
				return r
			},
			wantStage: common.StageInput,
			wantErr:   common.ErrInvalidInput,
		},
		{
			name:  "bad session date",
			setup: func(*harness) {},
			req: func() IntakeRequest {
				r := imageRequest()
				r.Session.SessionDate = "the ides of March"
				return r
			},
			wantStage: common.StageInput,
			wantErr:   common.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 1)
			h.db.SeedGoal("child-1", "Share toys")
			tt.setup(h)

			result, err := h.orch.RunIntake(context.Background(), tt.req())
			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantStage, StageOf(err))

			assert.Empty(t, h.observations(t, "child-1"))
			assert.Empty(t, h.archive.stored)
			assert.Empty(t, h.llm.Calls(CallAlignment))
		})
	}
}

func TestRunIntakeInvalidInputSkipsExtraction(t *testing.T) {
	h := newHarness(t, 1)
	req := imageRequest()
	req.Session.StudentName = ""

	_, err := h.orch.RunIntake(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 0, h.extractor.calls)
	assert.Equal(t, common.KindInvalidInput, common.KindOf(err))
}

func TestRunIntakeCanceled(t *testing.T) {
	h := newHarness(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.orch.RunIntake(ctx, imageRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, common.StageExtraction, StageOf(err))
	assert.Equal(t, 0, h.extractor.calls)
	assert.Empty(t, h.observations(t, "child-1"))
}

func TestRunIntakeGoalFailuresAreCollected(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			h := newHarness(t, concurrency)
			goals := []model.Goal{
				h.db.SeedGoal("child-1", "Goal alpha"),
				h.db.SeedGoal("child-1", "Goal bravo"),
				h.db.SeedGoal("child-1", "Goal charlie"),
				h.db.SeedGoal("child-1", "Goal delta"),
			}
			h.llm.FailGoal("bravo", ErrMockTransport)
			h.llm.FailGoal("delta", ErrMockTransport)

			result, err := h.orch.RunIntake(context.Background(), imageRequest())
			require.NoError(t, err)
			assert.Equal(t, StateComplete, result.State)

			require.Len(t, result.Alignments, 2)
			assert.Equal(t, goals[0].ID, result.Alignments[0].GoalID)
			assert.Equal(t, goals[2].ID, result.Alignments[1].GoalID)

			require.Len(t, result.AlignmentFailures, 2)
			assert.Equal(t, goals[1].ID, result.AlignmentFailures[0].GoalID)
			assert.Equal(t, "Goal bravo", result.AlignmentFailures[0].GoalText)
			assert.Equal(t, goals[3].ID, result.AlignmentFailures[1].GoalID)
			assert.ErrorIs(t, result.AlignmentFailures[0].Err, common.ErrTransportFailure)

			stored, err := h.db.Storage.ListAlignmentsByObservation(context.Background(), result.Record.ID)
			require.NoError(t, err)
			assert.Len(t, stored, 2)
		})
	}
}

func TestRunIntakeAchievedGoalsAreNotScored(t *testing.T) {
	h := newHarness(t, 1)
	done := h.db.SeedGoal("child-1", "Tie shoelaces")
	require.NoError(t, h.db.Storage.UpdateGoalStatus(context.Background(), done.ID, model.GoalAchieved))

	result, err := h.orch.RunIntake(context.Background(), imageRequest())
	require.NoError(t, err)
	assert.Empty(t, result.Alignments)
	assert.Empty(t, h.llm.Calls(CallAlignment))
}

func TestRunIntakeArchiveFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, 1)
	h.archive.storeErr = errors.New("bucket missing")

	result, err := h.orch.RunIntake(context.Background(), imageRequest())
	require.NoError(t, err)
	assert.Empty(t, result.Record.CaptureRef)
	assert.Len(t, h.observations(t, "child-1"), 1)
}

func TestRunIntakePersistenceFailureDiscardsArchive(t *testing.T) {
	h := newHarness(t, 1)
	h.build(t, failingStore{Store: h.db.Storage, err: errors.New("disk full")}, 1)

	_, err := h.orch.RunIntake(context.Background(), imageRequest())
	require.Error(t, err)
	assert.Equal(t, common.StagePersistence, StageOf(err))
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, h.archive.stored, h.archive.discarded)
	assert.Empty(t, h.llm.Calls(CallAlignment))
}

func TestRegenerateReport(t *testing.T) {
	h := newHarness(t, 1)
	session := model.SessionInfo{StudentName: "Maria", ObserverName: "Ms. Lee", SessionDate: "15/03/2024"}

	report, err := h.orch.RegenerateReport(context.Background(), "Edited: Maria helped tidy up.", session)
	require.NoError(t, err)
	assert.Contains(t, report, "Maria")
	assert.Contains(t, report, "A calm and curious day.")

	calls := h.llm.Calls(CallReport)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Request.UserPrompt, "Edited: Maria helped tidy up.")

	_, err = h.orch.RegenerateReport(context.Background(), "  \n", session)
	assert.ErrorIs(t, err, common.ErrNoObservations)

	_, err = h.orch.RegenerateReport(context.Background(), "text", model.SessionInfo{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Empty(t, h.observations(t, "child-1"))
}
