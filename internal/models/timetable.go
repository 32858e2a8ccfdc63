package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimeSlot describes one period of the school day.
type TimeSlot struct {
	Period    int    `json:"period"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsBreak   bool   `json:"is_break"`
}

// TimetableStructure defines the weekly grid for a school: teaching days,
// periods per day and the time-slot table including breaks.
type TimetableStructure struct {
	ID            string         `db:"id" json:"id"`
	SchoolID      string         `db:"school_id" json:"school_id"`
	DaysPerWeek   int            `db:"days_per_week" json:"days_per_week"`
	PeriodsPerDay int            `db:"periods_per_day" json:"periods_per_day"`
	TimeSlots     types.JSONText `db:"time_slots" json:"time_slots"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// BaselineEntry is one cell of the long-lived global timetable. Entries are
// superseded (is_active = false) rather than mutated when a class is
// regenerated.
type BaselineEntry struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Day       int       `db:"day" json:"day"`
	Period    int       `db:"period" json:"period"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Room      *string   `db:"room" json:"room,omitempty"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Conflict dimensions reported by timetable validation.
const (
	ConflictTeacherDoubleBooked = "TEACHER_DOUBLE_BOOKED"
	ConflictClassUnderScheduled = "CLASS_UNDER_SCHEDULED"
	ConflictTeacherOverloaded   = "TEACHER_OVERLOADED"
	ConflictReplacementClash    = "REPLACEMENT_CLASH"
)

// TimetableConflict is a structured conflict a UI can render directly.
type TimetableConflict struct {
	Type      string   `json:"type"`
	Day       int      `json:"day,omitempty"`
	Period    int      `json:"period,omitempty"`
	TeacherID string   `json:"teacher_id,omitempty"`
	ClassIDs  []string `json:"class_ids,omitempty"`
	Detail    string   `json:"detail"`
}

// TimetableValidation is the result of scanning the active baseline.
type TimetableValidation struct {
	IsValid   bool                `json:"is_valid"`
	Conflicts []TimetableConflict `json:"conflicts"`
}

// TimetableConflictError carries a structured conflict list across the
// service boundary so multi-step operations can abort without partial writes.
type TimetableConflictError struct {
	Message   string              `json:"message"`
	Conflicts []TimetableConflict `json:"conflicts"`
}

// Error implements the error interface.
func (e *TimetableConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
