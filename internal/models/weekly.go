package models

import "time"

// OverrideKind tags a weekly entry. Inherited entries mirror the baseline,
// assigned entries replace teacher/subject for the week, cancelled entries
// free the slot for the week only.
type OverrideKind string

const (
	OverrideInherited OverrideKind = "INHERITED"
	OverrideAssigned  OverrideKind = "ASSIGNED"
	OverrideCancelled OverrideKind = "CANCELLED"
)

// WeeklyTimetable is the per-class, per-week override layer on top of the
// baseline. Version is bumped on every write and checked by writers so a
// stale read-modify-write is rejected instead of silently clobbering.
type WeeklyTimetable struct {
	ID                string    `db:"id" json:"id"`
	ClassID           string    `db:"class_id" json:"class_id"`
	SchoolID          string    `db:"school_id" json:"school_id"`
	WeekStart         time.Time `db:"week_start" json:"week_start"`
	WeekEnd           time.Time `db:"week_end" json:"week_end"`
	Version           int       `db:"version" json:"version"`
	ModifiedBy        *string   `db:"modified_by" json:"modified_by,omitempty"`
	ModificationCount int       `db:"modification_count" json:"modification_count"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`

	Entries []WeeklyEntry `db:"-" json:"entries,omitempty"`
}

// WeeklyEntry is one cell of a weekly override layer. INHERITED entries
// carry the baseline teacher/subject copied at materialization, ASSIGNED
// entries carry the override pair, CANCELLED entries carry neither.
type WeeklyEntry struct {
	ID                 string       `db:"id" json:"id"`
	WeeklyTimetableID  string       `db:"weekly_timetable_id" json:"weekly_timetable_id"`
	Day                int          `db:"day" json:"day"`
	Period             int          `db:"period" json:"period"`
	Kind               OverrideKind `db:"kind" json:"kind"`
	TeacherID          *string      `db:"teacher_id" json:"teacher_id,omitempty"`
	SubjectID          *string      `db:"subject_id" json:"subject_id,omitempty"`
	StartTime          string       `db:"start_time" json:"start_time"`
	EndTime            string       `db:"end_time" json:"end_time"`
	Room               *string      `db:"room" json:"room,omitempty"`
	ModificationReason *string      `db:"modification_reason" json:"modification_reason,omitempty"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updated_at"`
}

// IsModified reports whether the entry overrides the baseline.
func (e *WeeklyEntry) IsModified() bool {
	return e.Kind != OverrideInherited
}

// EffectiveEntry is one resolved cell of the merged schedule served to
// clients: baseline values unless the weekly layer (or an approved change)
// overrides them.
type EffectiveEntry struct {
	ClassID    string  `json:"class_id"`
	TeacherID  string  `json:"teacher_id"`
	SubjectID  string  `json:"subject_id"`
	Day        int     `json:"day"`
	Period     int     `json:"period"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	Room       *string `json:"room,omitempty"`
	IsModified bool    `json:"is_modified"`
	Reason     *string `json:"modification_reason,omitempty"`
}
