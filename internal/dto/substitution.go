package dto

import "github.com/aabhi25/chronalive/internal/models"

// FindSubstitutesRequest asks for qualified, available replacement teachers
// for one baseline entry on one date (YYYY-MM-DD).
type FindSubstitutesRequest struct {
	TeacherID string `json:"teacherId" validate:"required"`
	EntryID   string `json:"entryId" validate:"required"`
	Date      string `json:"date" validate:"required"`
}

// SubstituteCandidate is one ranked replacement option.
type SubstituteCandidate struct {
	TeacherID     string `json:"teacherId"`
	FullName      string `json:"fullName"`
	TeachesClass  bool   `json:"teachesClass"`
	QualifiedFor  string `json:"qualifiedFor"`
	AlreadyLoaded int    `json:"alreadyLoaded"`
}

// AutoAssignRequest triggers automatic substitute selection for an entry/date.
type AutoAssignRequest struct {
	EntryID string `json:"entryId" validate:"required"`
	Date    string `json:"date" validate:"required"`
	Reason  string `json:"reason" validate:"required"`
}

// PermanentReplaceRequest swaps a teacher across the baseline and upcoming
// weekly layers.
type PermanentReplaceRequest struct {
	OriginalTeacherID    string `json:"originalTeacherId" validate:"required"`
	ReplacementTeacherID string `json:"replacementTeacherId" validate:"required,nefield=OriginalTeacherID"`
	Reason               string `json:"reason" validate:"required"`
}

// PermanentReplaceResult reports the scope of an applied replacement.
type PermanentReplaceResult struct {
	ReplacementID   string `json:"replacementId"`
	AffectedEntries int    `json:"affectedEntries"`
	WeeksUpdated    int    `json:"weeksUpdated"`
}

// MarkAbsentRequest records a teacher absence for one date.
type MarkAbsentRequest struct {
	TeacherID string `json:"teacherId" validate:"required"`
	Date      string `json:"date" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

// AbsenceImpact lists the baseline entries hit by an absence.
type AbsenceImpact struct {
	Absence         models.TeacherAbsence  `json:"absence"`
	AffectedEntries []models.BaselineEntry `json:"affectedEntries"`
}

// SubstitutionQuery filters substitution listings.
type SubstitutionQuery struct {
	Status string `form:"status" json:"status"`
	Date   string `form:"date" json:"date"`
}
