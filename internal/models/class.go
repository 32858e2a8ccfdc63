package models

import "time"

// Class represents a student group that owns a timetable.
type Class struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Name      string    `db:"name" json:"name"`
	Grade     string    `db:"grade" json:"grade"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Subject represents a taught discipline.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassSubjectAssignment links a subject to a class with its weekly frequency
// and, optionally, the teacher responsible for it.
type ClassSubjectAssignment struct {
	ID                string    `db:"id" json:"id"`
	ClassID           string    `db:"class_id" json:"class_id"`
	SubjectID         string    `db:"subject_id" json:"subject_id"`
	SchoolID          string    `db:"school_id" json:"school_id"`
	WeeklyFrequency   int       `db:"weekly_frequency" json:"weekly_frequency"`
	AssignedTeacherID *string   `db:"assigned_teacher_id" json:"assigned_teacher_id,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}
