package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TeacherStatus tracks whether a teacher is still part of the school.
type TeacherStatus string

const (
	TeacherStatusActive     TeacherStatus = "ACTIVE"
	TeacherStatusLeftSchool TeacherStatus = "LEFT_SCHOOL"
)

// Teacher represents an instructor record.
type Teacher struct {
	ID              string         `db:"id" json:"id"`
	SchoolID        string         `db:"school_id" json:"school_id"`
	Email           string         `db:"email" json:"email"`
	FullName        string         `db:"full_name" json:"full_name"`
	Phone           *string        `db:"phone" json:"phone,omitempty"`
	Status          TeacherStatus  `db:"status" json:"status"`
	MaxDailyPeriods int            `db:"max_daily_periods" json:"max_daily_periods"`
	Availability    types.JSONText `db:"availability" json:"availability"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// WeeklyAvailability is the decoded shape of Teacher.Availability: periods a
// teacher has declared free, keyed by ISO weekday index (1 = Monday).
type WeeklyAvailability map[int][]int

// Allows reports whether the declared availability includes the given slot.
// An empty declaration means the teacher is available for every period.
func (a WeeklyAvailability) Allows(day, period int) bool {
	if len(a) == 0 {
		return true
	}
	periods, ok := a[day]
	if !ok {
		return false
	}
	for _, p := range periods {
		if p == period {
			return true
		}
	}
	return false
}

// TeacherAbsence records a teacher being unavailable on a calendar date.
type TeacherAbsence struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Date      time.Time `db:"date" json:"date"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
