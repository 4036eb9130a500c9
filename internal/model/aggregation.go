package model

import (
	"sort"
	"time"
)

// DateRange is a half-open [Start, End) interval of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// GoalProgress summarises one goal's alignments inside a month.
type GoalProgress struct {
	GoalID           string
	GoalText         string
	ScoreSeries      []float64
	AvgScore         float64
	ObservationCount int
}

// MonthlyAggregation is derived from a month of observations and alignments.
type MonthlyAggregation struct {
	Window               DateRange
	StrengthFrequency    map[string]int
	DevelopmentFrequency map[string]int
	ChildID              string
	SummaryText          string
	GoalProgress         []GoalProgress
	Year                 int
	Month                int
	ObservationCount     int
}

// MonthlySnapshot is a frozen aggregation kept for later review.
type MonthlySnapshot struct {
	CreatedAt   time.Time
	Aggregation *MonthlyAggregation
	ID          string
	ChildID     string `validate:"required"`
	ObserverID  string
	Feedback    string
	Year        int `validate:"gte=1970"`
	Month       int `validate:"gte=1,lte=12"`
}

// TagCount pairs a tag with its frequency.
type TagCount struct {
	Tag   string
	Count int
}

// RankedTags orders a frequency map by count descending, then tag.
func RankedTags(freq map[string]int) []TagCount {
	ranked := make([]TagCount, 0, len(freq))
	for tag, count := range freq {
		ranked = append(ranked, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Tag < ranked[j].Tag
	})
	return ranked
}
