package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/the-observer/internal/model"
	"github.com/google/uuid"
)

const goalColumns = `id, child_id, observer_id, goal_text, status, target_date, created_at`

// CreateGoal stores a new goal. Status defaults to active.
func (s *SQLiteStorage) CreateGoal(ctx context.Context, goal *model.Goal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if goal == nil {
		return fmt.Errorf("%w: goal", ErrNilParameter)
	}
	if goal.Status == "" {
		goal.Status = model.GoalActive
	}
	if err := s.validateStruct("goal", goal); err != nil {
		return err
	}
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = s.timestamp()
	}

	var target sql.NullString
	if goal.TargetDate != nil {
		target = sql.NullString{String: goal.TargetDate.Format(model.DayLayout), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, goal.ID, goal.ChildID, goal.ObserverID, goal.GoalText, string(goal.Status), target, goal.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return duplicate("goal", goal.ID)
		}
		return fmt.Errorf("failed to insert goal: %w", err)
	}
	return nil
}

// GetGoal loads one goal by id.
func (s *SQLiteStorage) GetGoal(ctx context.Context, id string) (*model.Goal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getGoalTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getGoalTx(ctx context.Context, q queryable, id string) (*model.Goal, error) {
	goal, err := scanGoal(q.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("goal", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return goal, nil
}

// ListGoalsByChild returns every goal for a child, oldest first.
func (s *SQLiteStorage) ListGoalsByChild(ctx context.Context, childID string) ([]model.Goal, error) {
	return s.listGoals(ctx, childID, "")
}

// ListActiveGoalsByChild returns the goals an intake should be scored against.
func (s *SQLiteStorage) ListActiveGoalsByChild(ctx context.Context, childID string) ([]model.Goal, error) {
	return s.listGoals(ctx, childID, model.GoalActive)
}

func (s *SQLiteStorage) listGoals(ctx context.Context, childID string, status model.GoalStatus) ([]model.Goal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(childID, "childID"); err != nil {
		return nil, err
	}

	query := `SELECT ` + goalColumns + ` FROM goals WHERE child_id = ?`
	args := []any{childID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var goals []model.Goal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, *goal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating goals: %w", err)
	}
	return goals, nil
}

// UpdateGoalStatus moves a goal to status. Achieved goals cannot be reopened.
func (s *SQLiteStorage) UpdateGoalStatus(ctx context.Context, id string, status model.GoalStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if _, err := model.ParseGoalStatus(string(status)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStatus, err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		goal, err := s.getGoalTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !goal.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidStatus, goal.Status, status)
		}
		if goal.Status == status {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE goals SET status = ? WHERE id = ?`, string(status), id); err != nil {
			return fmt.Errorf("failed to update goal status: %w", err)
		}
		return nil
	})
}

func scanGoal(row scanner) (*model.Goal, error) {
	var (
		goal   model.Goal
		status string
		target sql.NullString
	)
	if err := row.Scan(&goal.ID, &goal.ChildID, &goal.ObserverID, &goal.GoalText, &status, &target, &goal.CreatedAt); err != nil {
		return nil, err
	}
	goal.Status = model.GoalStatus(status)
	if target.Valid && target.String != "" {
		day, err := time.Parse(model.DayLayout, target.String)
		if err != nil {
			return nil, fmt.Errorf("bad target_date %q: %w", target.String, err)
		}
		goal.TargetDate = &day
	}
	return &goal, nil
}
