// Package aggregation derives monthly progress from stored observations and goal alignments.
package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/model"
)

// EmptyMonthSummary is the summary for a month with no observations.
const EmptyMonthSummary = "No observations recorded this month."

const goalTextLimit = 50

// Store is the read access aggregation needs.
type Store interface {
	ListObservationsByChild(ctx context.Context, childID string, window model.DateRange) ([]model.ObservationRecord, error)
	ListGoalsByChild(ctx context.Context, childID string) ([]model.Goal, error)
	ListAlignmentsByGoal(ctx context.Context, goalID string) ([]model.GoalAlignment, error)
	GetObservationDate(ctx context.Context, id string) (time.Time, error)
}

// Engine computes monthly aggregations.
type Engine struct {
	store  Store
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: common.LoggerOrDefault(logger)}
}

// MonthWindow returns [year-month-01, first day of the next month) in UTC.
func MonthWindow(year, month int) (model.DateRange, error) {
	if month < 1 || month > 12 {
		return model.DateRange{}, &common.StageError{
			Stage:   common.StageInput,
			Kind:    common.KindInvalidInput,
			Message: fmt.Sprintf("month %d is outside 1-12", month),
		}
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return model.DateRange{Start: start, End: start.AddDate(0, 1, 0)}, nil
}

// Aggregate summarises one child's month. A month without observations is
// not an error; it yields zero counts and EmptyMonthSummary.
func (e *Engine) Aggregate(ctx context.Context, childID string, year, month int) (*model.MonthlyAggregation, error) {
	if strings.TrimSpace(childID) == "" {
		return nil, &common.StageError{Stage: common.StageInput, Kind: common.KindInvalidInput, Message: "child id is required"}
	}
	window, err := MonthWindow(year, month)
	if err != nil {
		return nil, err
	}

	observations, err := e.store.ListObservationsByChild(ctx, childID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}

	agg := &model.MonthlyAggregation{
		Window:               window,
		ChildID:              childID,
		Year:                 year,
		Month:                month,
		ObservationCount:     len(observations),
		StrengthFrequency:    make(map[string]int),
		DevelopmentFrequency: make(map[string]int),
		GoalProgress:         []model.GoalProgress{},
	}
	if len(observations) == 0 {
		agg.SummaryText = EmptyMonthSummary
		e.logger.Info("No observations for month", "child_id", childID, "year", year, "month", month)
		return agg, nil
	}

	for _, obs := range observations {
		for _, tag := range obs.Strengths {
			agg.StrengthFrequency[tag]++
		}
		for _, tag := range obs.AreasOfDevelopment {
			agg.DevelopmentFrequency[tag]++
		}
	}

	progress, err := e.goalProgress(ctx, childID, window)
	if err != nil {
		return nil, err
	}
	agg.GoalProgress = progress
	agg.SummaryText = Summary(agg)

	e.logger.Info("Aggregated month",
		"child_id", childID,
		"year", year,
		"month", month,
		"observations", agg.ObservationCount,
		"goals_tracked", len(progress))
	return agg, nil
}

// goalProgress averages each goal's in-window alignment scores. Observation
// dates are looked up once per request; alignments whose observation is gone
// are skipped.
func (e *Engine) goalProgress(ctx context.Context, childID string, window model.DateRange) ([]model.GoalProgress, error) {
	goals, err := e.store.ListGoalsByChild(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}

	dates := make(map[string]time.Time)
	dateOf := func(observationID string) (time.Time, error) {
		if d, ok := dates[observationID]; ok {
			return d, nil
		}
		d, err := e.store.GetObservationDate(ctx, observationID)
		if err != nil {
			return time.Time{}, err
		}
		dates[observationID] = d
		return d, nil
	}

	progress := []model.GoalProgress{}
	for _, goal := range goals {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		alignments, err := e.store.ListAlignmentsByGoal(ctx, goal.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list alignments for goal %s: %w", goal.ID, err)
		}

		var series []float64
		for _, a := range alignments {
			day, err := dateOf(a.ObservationID)
			if errors.Is(err, common.ErrNotFound) {
				e.logger.Warn("Skipping alignment for missing observation",
					"goal_id", goal.ID,
					"observation_id", a.ObservationID)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to look up observation %s: %w", a.ObservationID, err)
			}
			if window.Contains(day) {
				series = append(series, a.AlignmentScore)
			}
		}
		if len(series) == 0 {
			continue
		}

		progress = append(progress, model.GoalProgress{
			GoalID:           goal.ID,
			GoalText:         goal.GoalText,
			ScoreSeries:      series,
			AvgScore:         mean(series),
			ObservationCount: len(series),
		})
	}
	return progress, nil
}

// Summary renders the markdown summary for agg.
func Summary(agg *model.MonthlyAggregation) string {
	if agg.ObservationCount == 0 {
		return EmptyMonthSummary
	}

	var b strings.Builder
	b.WriteString("### Monthly Progress Summary\n\n")
	fmt.Fprintf(&b, "**Total Observations:** %d\n\n", agg.ObservationCount)
	fmt.Fprintf(&b, "**Goals Tracked:** %d\n\n", len(agg.GoalProgress))

	averages := make([]float64, 0, len(agg.GoalProgress))
	for _, gp := range agg.GoalProgress {
		averages = append(averages, gp.AvgScore)
	}
	fmt.Fprintf(&b, "**Average Goal Progress:** %.1f/10", mean(averages))

	if len(agg.GoalProgress) > 0 {
		best, worst := agg.GoalProgress[0], agg.GoalProgress[0]
		for _, gp := range agg.GoalProgress[1:] {
			if gp.AvgScore > best.AvgScore {
				best = gp
			}
			if gp.AvgScore < worst.AvgScore {
				worst = gp
			}
		}
		fmt.Fprintf(&b, "\n\n**Strongest Goal Area:** %s... (Score: %.1f/10)", truncate(best.GoalText, goalTextLimit), best.AvgScore)
		fmt.Fprintf(&b, "\n\n**Goal Needing Most Support:** %s... (Score: %.1f/10)", truncate(worst.GoalText, goalTextLimit), worst.AvgScore)
	}
	return b.String()
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
