package storage

import (
	"context"
	"fmt"

	"github.com/Veraticus/the-observer/internal/model"
	"github.com/google/uuid"
)

// AddAlignmentFeedback records a parent's rating. A parent rates each alignment once.
func (s *SQLiteStorage) AddAlignmentFeedback(ctx context.Context, feedback *model.AlignmentFeedback) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if feedback == nil {
		return fmt.Errorf("%w: feedback", ErrNilParameter)
	}
	if err := s.validateStruct("feedback", feedback); err != nil {
		return err
	}
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = s.timestamp()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alignment_feedback (id, alignment_id, parent_id, feedback_text, rating, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, feedback.ID, feedback.AlignmentID, feedback.ParentID, feedback.Text, feedback.Rating, feedback.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return duplicate("feedback", feedback.AlignmentID+"/"+feedback.ParentID)
		}
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// ListAlignmentFeedback returns all feedback left on an alignment.
func (s *SQLiteStorage) ListAlignmentFeedback(ctx context.Context, alignmentID string) ([]model.AlignmentFeedback, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(alignmentID, "alignmentID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, alignment_id, parent_id, feedback_text, rating, created_at
		FROM alignment_feedback
		WHERE alignment_id = ?
		ORDER BY created_at, rowid
	`, alignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.AlignmentFeedback
	for rows.Next() {
		var f model.AlignmentFeedback
		if err := rows.Scan(&f.ID, &f.AlignmentID, &f.ParentID, &f.Text, &f.Rating, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback: %w", err)
	}
	return out, nil
}
