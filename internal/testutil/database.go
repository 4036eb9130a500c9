// Package testutil provides a migrated SQLite database and seed helpers for tests.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/the-observer/internal/model"
	"github.com/Veraticus/the-observer/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	goal := db.SeedGoal("child-1", "Share toys")
//	obs := db.Observation("child-1", "2024-12-05").WithStrengths("focus").Seed()
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// SeedGoal creates an active goal for childID or fails the test.
func (db *TestDB) SeedGoal(childID, text string) model.Goal {
	db.t.Helper()

	goal := &model.Goal{ChildID: childID, ObserverID: "observer-1", GoalText: text}
	if err := db.Storage.CreateGoal(context.Background(), goal); err != nil {
		db.t.Fatalf("failed to seed goal %q: %v", text, err)
	}
	return *goal
}

// SeedAlignment stores a score for goal against observation or fails the test.
func (db *TestDB) SeedAlignment(goalID, observationID string, score float64) model.GoalAlignment {
	db.t.Helper()

	alignment := &model.GoalAlignment{
		GoalID:         goalID,
		ObservationID:  observationID,
		AlignmentScore: score,
		AnalysisText:   "seeded",
	}
	if err := db.Storage.SaveAlignment(context.Background(), alignment); err != nil {
		db.t.Fatalf("failed to seed alignment: %v", err)
	}
	return *alignment
}

// Observation starts building an observation for childID on day (yyyy-mm-dd).
func (db *TestDB) Observation(childID, day string) *ObservationBuilder {
	return &ObservationBuilder{
		db: db,
		record: model.ObservationRecord{
			ChildID:            childID,
			ObserverID:         "observer-1",
			StudentName:        "Test Child",
			ObserverName:       "Test Observer",
			DateText:           day,
			Source:             model.MediaImage,
			Observations:       "Observed during free play.",
			Report:             "Daily Growth Report",
			Strengths:          []string{},
			AreasOfDevelopment: []string{},
		},
	}
}

// ObservationBuilder is a fluent builder for seeded observations.
type ObservationBuilder struct {
	db     *TestDB
	record model.ObservationRecord
}

// WithStrengths sets the strength tags.
func (b *ObservationBuilder) WithStrengths(tags ...string) *ObservationBuilder {
	b.record.Strengths = tags
	return b
}

// WithDevelopment sets the areas-of-development tags.
func (b *ObservationBuilder) WithDevelopment(tags ...string) *ObservationBuilder {
	b.record.AreasOfDevelopment = tags
	return b
}

// WithSource overrides the capture kind.
func (b *ObservationBuilder) WithSource(kind model.MediaKind) *ObservationBuilder {
	b.record.Source = kind
	return b
}

// Seed stores the observation or fails the test.
func (b *ObservationBuilder) Seed() model.ObservationRecord {
	b.db.t.Helper()

	record := b.record
	if err := b.db.Storage.CreateObservation(context.Background(), &record); err != nil {
		b.db.t.Fatalf("failed to seed observation on %s: %v", record.DateText, err)
	}
	return record
}
