package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionBaselineGenerate    = "BASELINE_GENERATE"
	AuditActionBaselineRefresh     = "BASELINE_REFRESH"
	AuditActionWeeklyEdit          = "WEEKLY_EDIT"
	AuditActionWeeklyPromote       = "WEEKLY_PROMOTE"
	AuditActionWeeklyReset         = "WEEKLY_RESET"
	AuditActionSubstitutionCreate  = "SUBSTITUTION_CREATE"
	AuditActionSubstitutionApprove = "SUBSTITUTION_APPROVE"
	AuditActionSubstitutionReject  = "SUBSTITUTION_REJECT"
	AuditActionTeacherReplace      = "TEACHER_REPLACE"
	AuditActionAbsenceRecord       = "ABSENCE_RECORD"
	AuditActionTimetableExport     = "TIMETABLE_EXPORT"
)

// AuditLog represents an append-only audit trail record.
type AuditLog struct {
	ID          string    `db:"id" json:"id"`
	UserID      *string   `db:"user_id" json:"user_id,omitempty"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	Action      string    `db:"action" json:"action"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	EntityID    *string   `db:"entity_id" json:"entity_id,omitempty"`
	Description string    `db:"description" json:"description"`
	IPAddress   string    `db:"ip_address" json:"ip_address"`
	UserAgent   string    `db:"user_agent" json:"user_agent"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
