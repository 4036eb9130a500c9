package storage

import (
	"context"
	"fmt"

	"github.com/Veraticus/the-observer/internal/model"
	"github.com/google/uuid"
)

const alignmentColumns = `id, goal_id, observation_id, alignment_score, analysis_text, created_at`

// SaveAlignment stores one goal alignment. Each (goal, observation) pair is stored at most once.
func (s *SQLiteStorage) SaveAlignment(ctx context.Context, alignment *model.GoalAlignment) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if alignment == nil {
		return fmt.Errorf("%w: alignment", ErrNilParameter)
	}
	if err := s.validateStruct("alignment", alignment); err != nil {
		return err
	}
	if alignment.ID == "" {
		alignment.ID = uuid.NewString()
	}
	if alignment.CreatedAt.IsZero() {
		alignment.CreatedAt = s.timestamp()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goal_alignments (`+alignmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, alignment.ID, alignment.GoalID, alignment.ObservationID, alignment.AlignmentScore, alignment.AnalysisText, alignment.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return duplicate("alignment", alignment.GoalID+"/"+alignment.ObservationID)
		}
		return fmt.Errorf("failed to insert alignment: %w", err)
	}
	return nil
}

// ListAlignmentsByGoal returns a goal's alignments in insertion order.
func (s *SQLiteStorage) ListAlignmentsByGoal(ctx context.Context, goalID string) ([]model.GoalAlignment, error) {
	return s.listAlignments(ctx, "goal_id", goalID)
}

// ListAlignmentsByObservation returns the alignments produced by one intake.
func (s *SQLiteStorage) ListAlignmentsByObservation(ctx context.Context, observationID string) ([]model.GoalAlignment, error) {
	return s.listAlignments(ctx, "observation_id", observationID)
}

func (s *SQLiteStorage) listAlignments(ctx context.Context, column, id string) ([]model.GoalAlignment, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, column); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+alignmentColumns+`
		FROM goal_alignments
		WHERE `+column+` = ?
		ORDER BY rowid
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query alignments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var alignments []model.GoalAlignment
	for rows.Next() {
		var a model.GoalAlignment
		if err := rows.Scan(&a.ID, &a.GoalID, &a.ObservationID, &a.AlignmentScore, &a.AnalysisText, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alignment: %w", err)
		}
		alignments = append(alignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alignments: %w", err)
	}
	return alignments, nil
}
