package dto

import "github.com/aabhi25/chronalive/internal/models"

// GenerateTimetableRequest instructs the baseline generator to build the
// global timetable for a class.
type GenerateTimetableRequest struct {
	ClassID string `json:"classId" validate:"required"`
}

// GenerateTimetableResult summarises a generation run.
type GenerateTimetableResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	EntriesCreated int    `json:"entriesCreated"`
}

// EffectiveScheduleQuery selects a class and either a week (weekStart) or a
// single calendar date, both in YYYY-MM-DD.
type EffectiveScheduleQuery struct {
	ClassID   string `form:"classId" json:"classId" validate:"required"`
	WeekStart string `form:"weekStart" json:"weekStart"`
	Date      string `form:"date" json:"date"`
}

// EffectiveWeekResponse is the merged week served to clients. Version echoes
// the override layer's version so clients can submit optimistic edits.
type EffectiveWeekResponse struct {
	ClassID   string                  `json:"classId"`
	WeekStart string                  `json:"weekStart"`
	WeekEnd   string                  `json:"weekEnd"`
	Version   int                     `json:"version"`
	Entries   []models.EffectiveEntry `json:"entries"`
}

// EffectiveDayResponse is the merged single-date view, with approved change
// records layered on top of the weekly merge.
type EffectiveDayResponse struct {
	ClassID string                  `json:"classId"`
	Date    string                  `json:"date"`
	Day     int                     `json:"day"`
	Entries []models.EffectiveEntry `json:"entries"`
}

// WeeklyEntryAction selects the override shape for a manual edit.
type WeeklyEntryAction string

const (
	WeeklyEntryActionAssign WeeklyEntryAction = "assign"
	WeeklyEntryActionCancel WeeklyEntryAction = "cancel"
)

// UpdateWeeklyEntryRequest edits one cell of a weekly override layer.
// Version must match the layer's current version or the edit is rejected
// as a stale write.
type UpdateWeeklyEntryRequest struct {
	ClassID   string            `json:"classId" validate:"required"`
	WeekStart string            `json:"weekStart" validate:"required"`
	Day       int               `json:"day" validate:"required,min=1,max=7"`
	Period    int               `json:"period" validate:"required,min=1"`
	Action    WeeklyEntryAction `json:"action" validate:"required,oneof=assign cancel"`
	TeacherID string            `json:"teacherId" validate:"required_if=Action assign"`
	SubjectID string            `json:"subjectId" validate:"required_if=Action assign"`
	Room      *string           `json:"room,omitempty"`
	Reason    string            `json:"reason" validate:"required"`
	Version   int               `json:"version" validate:"min=0"`
}

// WeekRequest identifies a (class, week) tuple for promote/reset operations.
type WeekRequest struct {
	ClassID   string `json:"classId" validate:"required"`
	WeekStart string `json:"weekStart" validate:"required"`
}
