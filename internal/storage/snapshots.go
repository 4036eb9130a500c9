package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/model"
	"github.com/google/uuid"
)

// SaveMonthlySnapshot stores a month's aggregation. Saving the same child and
// month again replaces the aggregation and feedback but keeps the original id.
func (s *SQLiteStorage) SaveMonthlySnapshot(ctx context.Context, snapshot *model.MonthlySnapshot) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if snapshot == nil || snapshot.Aggregation == nil {
		return fmt.Errorf("%w: snapshot", ErrNilParameter)
	}
	if err := s.validateStruct("snapshot", snapshot); err != nil {
		return err
	}

	payload, err := json.Marshal(snapshot.Aggregation)
	if err != nil {
		return fmt.Errorf("failed to encode aggregation: %w", err)
	}
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	snapshot.CreatedAt = s.timestamp()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO monthly_reports (id, child_id, observer_id, year, month, aggregation, feedback, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (child_id, year, month) DO UPDATE SET
				observer_id = excluded.observer_id,
				aggregation = excluded.aggregation,
				feedback = excluded.feedback,
				created_at = excluded.created_at
		`, snapshot.ID, snapshot.ChildID, snapshot.ObserverID, snapshot.Year, snapshot.Month,
			string(payload), snapshot.Feedback, snapshot.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save monthly snapshot: %w", err)
		}

		return tx.QueryRowContext(ctx, `
			SELECT id FROM monthly_reports WHERE child_id = ? AND year = ? AND month = ?
		`, snapshot.ChildID, snapshot.Year, snapshot.Month).Scan(&snapshot.ID)
	})
}

// GetMonthlySnapshot loads the saved aggregation for a child and month.
func (s *SQLiteStorage) GetMonthlySnapshot(ctx context.Context, childID string, year, month int) (*model.MonthlySnapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(childID, "childID"); err != nil {
		return nil, err
	}

	var (
		snapshot model.MonthlySnapshot
		payload  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, child_id, observer_id, year, month, aggregation, feedback, created_at
		FROM monthly_reports
		WHERE child_id = ? AND year = ? AND month = ?
	`, childID, year, month).Scan(
		&snapshot.ID, &snapshot.ChildID, &snapshot.ObserverID, &snapshot.Year, &snapshot.Month,
		&payload, &snapshot.Feedback, &snapshot.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("monthly snapshot %s %04d-%02d: %w", childID, year, month, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get monthly snapshot: %w", err)
	}

	var agg model.MonthlyAggregation
	if err := json.Unmarshal([]byte(payload), &agg); err != nil {
		return nil, fmt.Errorf("failed to decode aggregation: %w", err)
	}
	snapshot.Aggregation = &agg
	return &snapshot, nil
}
