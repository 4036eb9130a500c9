// Package render turns monthly aggregations and daily reports into markdown,
// HTML and Word documents.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/Veraticus/the-observer/internal/model"
)

// Markdown renders agg as a full markdown document.
func Markdown(agg *model.MonthlyAggregation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Monthly Report: %s, %04d-%02d\n\n", agg.ChildID, agg.Year, agg.Month)
	b.WriteString(agg.SummaryText)
	b.WriteString("\n")

	writeTags(&b, "Strengths", agg.StrengthFrequency)
	writeTags(&b, "Areas of Development", agg.DevelopmentFrequency)

	if len(agg.GoalProgress) > 0 {
		b.WriteString("\n## Goal Progress\n\n")
		b.WriteString("| Goal | Observations | Average | Scores |\n")
		b.WriteString("|---|---:|---:|---|\n")
		for _, gp := range agg.GoalProgress {
			scores := make([]string, len(gp.ScoreSeries))
			for i, s := range gp.ScoreSeries {
				scores[i] = fmt.Sprintf("%.1f", s)
			}
			fmt.Fprintf(&b, "| %s | %d | %.1f | %s |\n",
				escapeCell(gp.GoalText), gp.ObservationCount, gp.AvgScore, strings.Join(scores, ", "))
		}
	}
	return b.String()
}

func writeTags(b *strings.Builder, title string, freq map[string]int) {
	if len(freq) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n| Tag | Count |\n|---|---:|\n", title)
	for _, tc := range model.RankedTags(freq) {
		fmt.Fprintf(b, "| %s | %d |\n", escapeCell(tc.Tag), tc.Count)
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

// HTML renders agg as a standalone HTML page.
func HTML(agg *model.MonthlyAggregation) ([]byte, error) {
	return page(fmt.Sprintf("Monthly Report %04d-%02d", agg.Year, agg.Month), Markdown(agg))
}

// ReportHTML renders a daily report as a standalone HTML page, the body used
// when the report is emailed.
func ReportHTML(title, report string) ([]byte, error) {
	return page(title, report)
}

func page(title, markdown string) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n",
		html.EscapeString(title))
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}
