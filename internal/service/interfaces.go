// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/the-observer/internal/model"
)

// ObservationStore persists intake results.
type ObservationStore interface {
	CreateObservation(ctx context.Context, record *model.ObservationRecord) error
	GetObservation(ctx context.Context, id string) (*model.ObservationRecord, error)
	GetObservationDate(ctx context.Context, id string) (time.Time, error)
	ListObservationsByChild(ctx context.Context, childID string, window model.DateRange) ([]model.ObservationRecord, error)
	ListObservationsByObserver(ctx context.Context, observerID string, window model.DateRange) ([]model.ObservationRecord, error)
}

// GoalStore manages goals and their status transitions.
type GoalStore interface {
	CreateGoal(ctx context.Context, goal *model.Goal) error
	GetGoal(ctx context.Context, id string) (*model.Goal, error)
	ListGoalsByChild(ctx context.Context, childID string) ([]model.Goal, error)
	ListActiveGoalsByChild(ctx context.Context, childID string) ([]model.Goal, error)
	UpdateGoalStatus(ctx context.Context, id string, status model.GoalStatus) error
}

// AlignmentStore persists goal alignment scores.
type AlignmentStore interface {
	SaveAlignment(ctx context.Context, alignment *model.GoalAlignment) error
	ListAlignmentsByGoal(ctx context.Context, goalID string) ([]model.GoalAlignment, error)
	ListAlignmentsByObservation(ctx context.Context, observationID string) ([]model.GoalAlignment, error)
}

// SnapshotStore keeps frozen monthly aggregations.
type SnapshotStore interface {
	SaveMonthlySnapshot(ctx context.Context, snapshot *model.MonthlySnapshot) error
	GetMonthlySnapshot(ctx context.Context, childID string, year, month int) (*model.MonthlySnapshot, error)
}

// FeedbackStore keeps parent feedback on alignments.
type FeedbackStore interface {
	AddAlignmentFeedback(ctx context.Context, feedback *model.AlignmentFeedback) error
	ListAlignmentFeedback(ctx context.Context, alignmentID string) ([]model.AlignmentFeedback, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	ObservationStore
	GoalStore
	AlignmentStore
	SnapshotStore
	FeedbackStore

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
