package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-observer/internal/model"
)

func sampleAggregation() *model.MonthlyAggregation {
	return &model.MonthlyAggregation{
		ChildID:              "child-1",
		Year:                 2024,
		Month:                12,
		ObservationCount:     2,
		SummaryText:          "### Monthly Progress Summary\n\n**Total Observations:** 2",
		StrengthFrequency:    map[string]int{"focus": 3, "kindness": 1},
		DevelopmentFrequency: map[string]int{"sharing": 2},
		GoalProgress: []model.GoalProgress{
			{GoalID: "g1", GoalText: "Share | take turns", ScoreSeries: []float64{4, 6}, AvgScore: 5, ObservationCount: 2},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleAggregation())

	assert.Contains(t, md, "# Monthly Report: child-1, 2024-12")
	assert.Contains(t, md, "**Total Observations:** 2")
	assert.Contains(t, md, "| focus | 3 |\n| kindness | 1 |")
	assert.Contains(t, md, "## Areas of Development")
	assert.Contains(t, md, `| Share \| take turns | 2 | 5.0 | 4.0, 6.0 |`)
}

func TestMarkdownEmptyMonth(t *testing.T) {
	md := Markdown(&model.MonthlyAggregation{
		ChildID:     "child-1",
		Year:        2024,
		Month:       2,
		SummaryText: "No observations recorded this month.",
	})
	assert.Contains(t, md, "No observations recorded this month.")
	assert.NotContains(t, md, "## Strengths")
	assert.NotContains(t, md, "## Goal Progress")
}

func TestHTML(t *testing.T) {
	page, err := HTML(sampleAggregation())
	require.NoError(t, err)

	html := string(page)
	assert.Contains(t, html, "<!DOCTYPE html>")
	assert.Contains(t, html, "<h3>Monthly Progress Summary</h3>")
	assert.Contains(t, html, "<strong>Total Observations:</strong> 2")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>focus</td>")
}
