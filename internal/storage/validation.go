// Package storage provides the SQLite persistence layer for observations, goals and alignments.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-observer/internal/common"
	"github.com/go-playground/validator/v10"
	"github.com/mattn/go-sqlite3"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidRecord    = errors.New("invalid record")
	ErrInvalidStatus    = errors.New("invalid goal status transition")
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateStruct runs struct tag validation and reports the failing fields.
func (s *SQLiteStorage) validateStruct(name string, v any) error {
	if v == nil {
		return fmt.Errorf("%w: %s", ErrNilParameter, name)
	}
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s: %s", ErrInvalidRecord, name, strings.Join(parts, ", "))
	}
	return fmt.Errorf("%w: %s: %w", ErrInvalidRecord, name, err)
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// notFound wraps common.ErrNotFound with the entity that was missing.
func notFound(entity, id string) error {
	return fmt.Errorf("%s %q: %w", entity, id, common.ErrNotFound)
}

func duplicate(entity, id string) error {
	return fmt.Errorf("%s %q: %w", entity, id, common.ErrDuplicateEntry)
}
