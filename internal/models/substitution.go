package models

import "time"

// SubstitutionStatus is the substitution state machine. pending and
// auto_assigned may transition to confirmed or rejected; confirmed and
// rejected are terminal.
type SubstitutionStatus string

const (
	SubstitutionStatusPending      SubstitutionStatus = "PENDING"
	SubstitutionStatusAutoAssigned SubstitutionStatus = "AUTO_ASSIGNED"
	SubstitutionStatusConfirmed    SubstitutionStatus = "CONFIRMED"
	SubstitutionStatusRejected     SubstitutionStatus = "REJECTED"
)

// Terminal reports whether the status accepts no further transitions.
func (s SubstitutionStatus) Terminal() bool {
	return s == SubstitutionStatusConfirmed || s == SubstitutionStatusRejected
}

// Substitution is a proposed or decided temporary teacher swap for one
// baseline entry on one calendar date.
type Substitution struct {
	ID                  string             `db:"id" json:"id"`
	TimetableEntryID    string             `db:"timetable_entry_id" json:"timetable_entry_id"`
	OriginalTeacherID   string             `db:"original_teacher_id" json:"original_teacher_id"`
	SubstituteTeacherID *string            `db:"substitute_teacher_id" json:"substitute_teacher_id,omitempty"`
	SchoolID            string             `db:"school_id" json:"school_id"`
	Date                time.Time          `db:"date" json:"date"`
	Reason              string             `db:"reason" json:"reason"`
	Status              SubstitutionStatus `db:"status" json:"status"`
	IsAutoGenerated     bool               `db:"is_auto_generated" json:"is_auto_generated"`
	CreatedAt           time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `db:"updated_at" json:"updated_at"`
}

// SubstitutionFilter narrows substitution listings.
type SubstitutionFilter struct {
	SchoolID string
	Status   SubstitutionStatus
	Date     *time.Time
}

// ChangeType discriminates timetable change records.
type ChangeType string

const (
	ChangeTypeSubstitution ChangeType = "SUBSTITUTION"
	ChangeTypeCancellation ChangeType = "CANCELLATION"
)

// TimetableChange is an append-only record driving notification and daily
// views; substitution-type changes correlate with a Substitution row.
type TimetableChange struct {
	ID                string     `db:"id" json:"id"`
	TimetableEntryID  string     `db:"timetable_entry_id" json:"timetable_entry_id"`
	ClassID           string     `db:"class_id" json:"class_id"`
	SchoolID          string     `db:"school_id" json:"school_id"`
	ChangeType        ChangeType `db:"change_type" json:"change_type"`
	ChangeDate        time.Time  `db:"change_date" json:"change_date"`
	OriginalTeacherID string     `db:"original_teacher_id" json:"original_teacher_id"`
	NewTeacherID      *string    `db:"new_teacher_id" json:"new_teacher_id,omitempty"`
	Reason            string     `db:"reason" json:"reason"`
	ApprovedBy        *string    `db:"approved_by" json:"approved_by,omitempty"`
	IsActive          bool       `db:"is_active" json:"is_active"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// ReplacementStatus tracks permanent replacement records.
type ReplacementStatus string

const (
	ReplacementStatusCompleted ReplacementStatus = "COMPLETED"
)

// TeacherReplacement is the audit record of a permanent teacher swap applied
// across the baseline and upcoming weekly layers.
type TeacherReplacement struct {
	ID                   string            `db:"id" json:"id"`
	OriginalTeacherID    string            `db:"original_teacher_id" json:"original_teacher_id"`
	ReplacementTeacherID string            `db:"replacement_teacher_id" json:"replacement_teacher_id"`
	SchoolID             string            `db:"school_id" json:"school_id"`
	Reason               string            `db:"reason" json:"reason"`
	AffectedEntries      int               `db:"affected_entries" json:"affected_entries"`
	Status               ReplacementStatus `db:"status" json:"status"`
	CreatedAt            time.Time         `db:"created_at" json:"created_at"`
}
