package model

import (
	"fmt"
	"strings"
	"time"
)

// SessionDateLayout is the layout observers use for session dates.
const SessionDateLayout = "02/01/2006"

// DayLayout is the storage layout for calendar days.
const DayLayout = "2006-01-02"

// SessionInfo is supplied by the observer and printed verbatim in the report header.
type SessionInfo struct {
	StudentName  string `validate:"required"`
	ObserverName string `validate:"required"`
	SessionDate  string `validate:"required"`
}

// ParseSessionDate parses a session date in dd/mm/yyyy or yyyy-mm-dd form.
func ParseSessionDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{SessionDateLayout, DayLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("session date %q must be dd/mm/yyyy or yyyy-mm-dd", s)
}

// StructuredObservation is the typed form of an observation sheet.
type StructuredObservation struct {
	StudentName        string   `json:"studentName"`
	StudentID          string   `json:"studentId"`
	ClassName          string   `json:"className"`
	Date               string   `json:"date"`
	ObservationsText   string   `json:"observations"`
	ThemeOfDay         string   `json:"themeOfDay"`
	CuriositySeed      string   `json:"curiositySeed"`
	Strengths          []string `json:"strengths"`
	AreasOfDevelopment []string `json:"areasOfDevelopment"`
	Recommendations    []string `json:"recommendations"`
}

// ObservationRecord is the persisted result of one successful intake.
type ObservationRecord struct {
	CreatedAt          time.Time
	ObservedOn         time.Time
	ID                 string
	ChildID            string    `validate:"required"`
	ObserverID         string    `validate:"required"`
	StudentName        string    `validate:"required"`
	ObserverName       string    `validate:"required"`
	// SheetStudentID and SheetStudentName are what the sheet itself says,
	// which may differ from the session's student name.
	SheetStudentID     string
	SheetStudentName   string
	ClassName          string
	DateText           string    `validate:"required"`
	Source             MediaKind `validate:"required,oneof=image audio"`
	Filename           string
	RawText            string
	Observations       string
	ThemeOfDay         string
	CuriositySeed      string
	Report             string    `validate:"required"`
	CaptureRef         string
	Strengths          []string
	AreasOfDevelopment []string
	Recommendations    []string
}
