package sheets

import (
	"fmt"
	"strings"

	"github.com/Veraticus/the-observer/internal/model"
)

// MonthlyRows lays out an aggregation as spreadsheet rows.
func MonthlyRows(agg *model.MonthlyAggregation) [][]any {
	values := [][]any{
		{"Monthly Report", agg.ChildID, fmt.Sprintf("%04d-%02d", agg.Year, agg.Month)},
		{},
		{"Total Observations", agg.ObservationCount},
		{"Goals Tracked", len(agg.GoalProgress)},
	}

	values = appendTags(values, "Strengths", agg.StrengthFrequency)
	values = appendTags(values, "Areas of Development", agg.DevelopmentFrequency)

	values = append(values, []any{}, []any{"Goal", "Observations", "Average Score", "Scores"})
	for _, gp := range agg.GoalProgress {
		scores := make([]string, len(gp.ScoreSeries))
		for i, s := range gp.ScoreSeries {
			scores[i] = fmt.Sprintf("%.1f", s)
		}
		values = append(values, []any{gp.GoalText, gp.ObservationCount, roundTenth(gp.AvgScore), strings.Join(scores, ", ")})
	}

	values = append(values, []any{}, []any{"Summary"}, []any{agg.SummaryText})
	return values
}

func appendTags(values [][]any, title string, freq map[string]int) [][]any {
	values = append(values, []any{}, []any{title, "Count"})
	for _, tc := range model.RankedTags(freq) {
		values = append(values, []any{tc.Tag, tc.Count})
	}
	return values
}

func roundTenth(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
