package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/the-observer/internal/model"
	"github.com/Veraticus/the-observer/internal/pipeline"
)

const rowLabelWidth = 22

func row(label, value string) string {
	return TableCellStyle.Render(SubtleStyle.Width(rowLabelWidth).Render(label)) + value
}

// FormatIntake summarises a finished intake for the terminal.
func FormatIntake(result *pipeline.IntakeResult) string {
	if result == nil || result.Record == nil {
		return FormatWarning("Nothing was recorded.")
	}
	rec := result.Record

	var lines []string
	lines = append(lines,
		row("Observation", rec.ID),
		row("Student", rec.StudentName),
		row("Observer", rec.ObserverName),
		row("Session date", rec.DateText),
		row("Source", string(rec.Source)),
		row("State", string(result.State)),
	)
	if rec.CaptureRef != "" {
		lines = append(lines, row("Archived as", rec.CaptureRef))
	}

	out := []string{RenderBox(NoteIcon+" Observation recorded", strings.Join(lines, "\n"))}

	if len(result.Alignments) > 0 || len(result.AlignmentFailures) > 0 {
		out = append(out, "", BoldStyle.Render(GoalIcon+" Goal alignment"))
		for _, a := range result.Alignments {
			out = append(out, fmt.Sprintf("  %s %s", ProgressStyle.Render(fmt.Sprintf("%4.1f/10", a.AlignmentScore)), a.GoalID))
		}
		for _, f := range result.AlignmentFailures {
			out = append(out, "  "+FormatError(fmt.Sprintf("%s: %v", f.GoalText, f.Err)))
		}
	}

	switch result.State {
	case pipeline.StateComplete:
		out = append(out, "", FormatSuccess("Intake complete"))
	case pipeline.StatePersisted:
		out = append(out, "", FormatWarning("Saved, but goal scoring did not finish"))
	}

	return strings.Join(out, "\n")
}

// FormatGoals renders goals as a small table.
func FormatGoals(goals []model.Goal) string {
	if len(goals) == 0 {
		return FormatInfo("No goals yet.")
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		TableCellStyle.Width(38).Render("ID"),
		TableCellStyle.Width(10).Render("Status"),
		TableCellStyle.Render("Goal"),
	)
	lines := []string{TableHeaderStyle.Render(header)}
	for _, g := range goals {
		status := SuccessStyle.Render(string(g.Status))
		if g.Status == model.GoalAchieved {
			status = SubtleStyle.Render(string(g.Status))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			TableCellStyle.Width(38).Render(g.ID),
			TableCellStyle.Width(10).Render(status),
			TableCellStyle.Render(g.GoalText),
		))
	}
	return strings.Join(lines, "\n")
}

// FormatAggregation renders a monthly aggregation for the terminal.
func FormatAggregation(agg *model.MonthlyAggregation) string {
	if agg == nil {
		return FormatWarning("No aggregation.")
	}

	title := fmt.Sprintf("%s %s %04d-%02d", ChartIcon, agg.ChildID, agg.Year, agg.Month)
	out := []string{RenderBox(title, agg.SummaryText)}

	out = append(out, tagSection("Strengths", agg.StrengthFrequency)...)
	out = append(out, tagSection("Areas of development", agg.DevelopmentFrequency)...)

	if len(agg.GoalProgress) > 0 {
		out = append(out, "", SubtitleStyle.Render("Goal progress"))
		for _, gp := range agg.GoalProgress {
			out = append(out, fmt.Sprintf("  %s %s %s",
				ProgressStyle.Render(fmt.Sprintf("%4.1f/10", gp.AvgScore)),
				gp.GoalText,
				SubtleStyle.Render(fmt.Sprintf("(%d observations)", gp.ObservationCount)),
			))
		}
	}

	return strings.Join(out, "\n")
}

func tagSection(title string, freq map[string]int) []string {
	ranked := model.RankedTags(freq)
	if len(ranked) == 0 {
		return nil
	}
	out := []string{"", SubtitleStyle.Render(title)}
	for _, tc := range ranked {
		out = append(out, fmt.Sprintf("  %s %s", BoldStyle.Render(fmt.Sprintf("%3d", tc.Count)), tc.Tag))
	}
	return out
}
