package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/the-observer/internal/model"
	"github.com/google/uuid"
)

const observationColumns = `id, child_id, observer_id, student_name, observer_name, class_name,
	date_text, observed_on, source, filename, raw_text, observations,
	strengths, areas_of_development, recommendations,
	theme_of_day, curiosity_seed, report, capture_ref, created_at,
	sheet_student_id, sheet_student_name`

// CreateObservation persists a record produced by a successful intake.
// ID, CreatedAt and ObservedOn are filled in when empty. ObservedOn is parsed
// from DateText only when the caller has not set it.
func (s *SQLiteStorage) CreateObservation(ctx context.Context, record *model.ObservationRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: observation", ErrNilParameter)
	}
	if err := s.validateStruct("observation", record); err != nil {
		return err
	}

	if record.ObservedOn.IsZero() {
		day, err := model.ParseSessionDate(record.DateText)
		if err != nil {
			return fmt.Errorf("%w: observation: %w", ErrInvalidRecord, err)
		}
		record.ObservedOn = day
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.timestamp()
	}

	strengths, err := encodeList(record.Strengths)
	if err != nil {
		return err
	}
	areas, err := encodeList(record.AreasOfDevelopment)
	if err != nil {
		return err
	}
	recommendations, err := encodeList(record.Recommendations)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO observations (`+observationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID, record.ChildID, record.ObserverID, record.StudentName, record.ObserverName, record.ClassName,
		record.DateText, record.ObservedOn.Format(model.DayLayout), string(record.Source), record.Filename,
		record.RawText, record.Observations,
		strengths, areas, recommendations,
		record.ThemeOfDay, record.CuriositySeed, record.Report, record.CaptureRef, record.CreatedAt,
		record.SheetStudentID, record.SheetStudentName,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return duplicate("observation", record.ID)
		}
		return fmt.Errorf("failed to insert observation: %w", err)
	}
	return nil
}

// GetObservation loads one observation by id.
func (s *SQLiteStorage) GetObservation(ctx context.Context, id string) (*model.ObservationRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+observationColumns+` FROM observations WHERE id = ?`, id)
	record, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("observation", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get observation: %w", err)
	}
	return record, nil
}

// GetObservationDate returns the calendar day an observation was made.
func (s *SQLiteStorage) GetObservationDate(ctx context.Context, id string) (time.Time, error) {
	if err := validateContext(ctx); err != nil {
		return time.Time{}, err
	}
	if err := validateString(id, "id"); err != nil {
		return time.Time{}, err
	}

	var day string
	err := s.db.QueryRowContext(ctx, `SELECT observed_on FROM observations WHERE id = ?`, id).Scan(&day)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, notFound("observation", id)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get observation date: %w", err)
	}
	return time.Parse(model.DayLayout, day)
}

// ListObservationsByChild returns a child's observations inside window, oldest first.
func (s *SQLiteStorage) ListObservationsByChild(ctx context.Context, childID string, window model.DateRange) ([]model.ObservationRecord, error) {
	return s.listObservations(ctx, "child_id", childID, window)
}

// ListObservationsByObserver returns an observer's observations inside window, oldest first.
func (s *SQLiteStorage) ListObservationsByObserver(ctx context.Context, observerID string, window model.DateRange) ([]model.ObservationRecord, error) {
	return s.listObservations(ctx, "observer_id", observerID, window)
}

func (s *SQLiteStorage) listObservations(ctx context.Context, column, id string, window model.DateRange) ([]model.ObservationRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, column); err != nil {
		return nil, err
	}
	if !window.Start.Before(window.End) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidDateRange,
			window.Start.Format(model.DayLayout), window.End.Format(model.DayLayout))
	}

	// column is one of two fixed names, never user input.
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+observationColumns+`
		FROM observations
		WHERE `+column+` = ? AND observed_on >= ? AND observed_on < ?
		ORDER BY observed_on, created_at, rowid
	`, id, window.Start.Format(model.DayLayout), window.End.Format(model.DayLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.ObservationRecord
	for rows.Next() {
		record, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observations: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObservation(row scanner) (*model.ObservationRecord, error) {
	var (
		record                            model.ObservationRecord
		observedOn, source                string
		strengths, areas, recommendations string
	)

	err := row.Scan(
		&record.ID, &record.ChildID, &record.ObserverID, &record.StudentName, &record.ObserverName, &record.ClassName,
		&record.DateText, &observedOn, &source, &record.Filename, &record.RawText, &record.Observations,
		&strengths, &areas, &recommendations,
		&record.ThemeOfDay, &record.CuriositySeed, &record.Report, &record.CaptureRef, &record.CreatedAt,
		&record.SheetStudentID, &record.SheetStudentName,
	)
	if err != nil {
		return nil, err
	}

	record.Source = model.MediaKind(source)
	if record.ObservedOn, err = time.Parse(model.DayLayout, observedOn); err != nil {
		return nil, fmt.Errorf("bad observed_on %q: %w", observedOn, err)
	}
	if record.Strengths, err = decodeList(strengths); err != nil {
		return nil, err
	}
	if record.AreasOfDevelopment, err = decodeList(areas); err != nil {
		return nil, err
	}
	if record.Recommendations, err = decodeList(recommendations); err != nil {
		return nil, err
	}
	return &record, nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

func decodeList(raw string) ([]string, error) {
	items := []string{}
	if raw == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return items, nil
}
