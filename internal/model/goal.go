package model

import (
	"fmt"
	"time"
)

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

// Goal statuses.
const (
	GoalActive   GoalStatus = "active"
	GoalAchieved GoalStatus = "achieved"
)

// CanTransition reports whether a goal may move from s to next.
// Re-applying the current status is allowed and changes nothing.
func (s GoalStatus) CanTransition(next GoalStatus) bool {
	if s == next {
		return true
	}
	return s == GoalActive && next == GoalAchieved
}

// ParseGoalStatus validates a status string.
func ParseGoalStatus(s string) (GoalStatus, error) {
	switch GoalStatus(s) {
	case GoalActive, GoalAchieved:
		return GoalStatus(s), nil
	default:
		return "", fmt.Errorf("unknown goal status %q", s)
	}
}

// Goal is a learning target an observer sets for a child.
type Goal struct {
	CreatedAt  time.Time
	TargetDate *time.Time
	ID         string
	ChildID    string     `validate:"required"`
	ObserverID string     `validate:"required"`
	GoalText   string     `validate:"required"`
	Status     GoalStatus `validate:"required,oneof=active achieved"`
}

// GoalAlignment scores how well one observation supports one goal.
type GoalAlignment struct {
	CreatedAt      time.Time
	ID             string
	GoalID         string  `validate:"required"`
	ObservationID  string  `validate:"required"`
	AnalysisText   string
	AlignmentScore float64 `validate:"gte=0,lte=10"`
}

// AlignmentFeedback is a parent's rating of an alignment analysis.
type AlignmentFeedback struct {
	CreatedAt   time.Time
	ID          string
	AlignmentID string `validate:"required"`
	ParentID    string `validate:"required"`
	Text        string
	Rating      int `validate:"gte=1,lte=5"`
}
