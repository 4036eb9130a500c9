package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS observations (
					id TEXT PRIMARY KEY,
					child_id TEXT NOT NULL,
					observer_id TEXT NOT NULL,
					student_name TEXT NOT NULL,
					observer_name TEXT NOT NULL,
					class_name TEXT NOT NULL DEFAULT '',
					date_text TEXT NOT NULL,
					observed_on TEXT NOT NULL,
					source TEXT NOT NULL CHECK (source IN ('image', 'audio')),
					filename TEXT NOT NULL DEFAULT '',
					raw_text TEXT NOT NULL DEFAULT '',
					observations TEXT NOT NULL DEFAULT '',
					strengths TEXT NOT NULL DEFAULT '[]',
					areas_of_development TEXT NOT NULL DEFAULT '[]',
					recommendations TEXT NOT NULL DEFAULT '[]',
					theme_of_day TEXT NOT NULL DEFAULT '',
					curiosity_seed TEXT NOT NULL DEFAULT '',
					report TEXT NOT NULL,
					capture_ref TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_observations_child_day ON observations(child_id, observed_on)`,
				`CREATE INDEX idx_observations_observer_day ON observations(observer_id, observed_on)`,

				`CREATE TABLE IF NOT EXISTS goals (
					id TEXT PRIMARY KEY,
					child_id TEXT NOT NULL,
					observer_id TEXT NOT NULL,
					goal_text TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'achieved')),
					target_date TEXT,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_goals_child_status ON goals(child_id, status)`,

				`CREATE TABLE IF NOT EXISTS goal_alignments (
					id TEXT PRIMARY KEY,
					goal_id TEXT NOT NULL,
					observation_id TEXT NOT NULL,
					alignment_score REAL NOT NULL CHECK (alignment_score BETWEEN 0 AND 10),
					analysis_text TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL,
					UNIQUE (goal_id, observation_id),
					FOREIGN KEY (goal_id) REFERENCES goals(id),
					FOREIGN KEY (observation_id) REFERENCES observations(id)
				)`,
				`CREATE INDEX idx_goal_alignments_observation ON goal_alignments(observation_id)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add monthly report snapshots",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS monthly_reports (
					id TEXT PRIMARY KEY,
					child_id TEXT NOT NULL,
					observer_id TEXT NOT NULL DEFAULT '',
					year INTEGER NOT NULL,
					month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
					aggregation TEXT NOT NULL,
					feedback TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL,
					UNIQUE (child_id, year, month)
				)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Add parent feedback on goal alignments",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS alignment_feedback (
					id TEXT PRIMARY KEY,
					alignment_id TEXT NOT NULL,
					parent_id TEXT NOT NULL,
					feedback_text TEXT NOT NULL DEFAULT '',
					rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
					created_at DATETIME NOT NULL,
					UNIQUE (alignment_id, parent_id),
					FOREIGN KEY (alignment_id) REFERENCES goal_alignments(id)
				)`,
			})
		},
	},
	{
		Version:     4,
		Description: "Keep the student fields read from the sheet",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`ALTER TABLE observations ADD COLUMN sheet_student_id TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE observations ADD COLUMN sheet_student_name TEXT NOT NULL DEFAULT ''`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
