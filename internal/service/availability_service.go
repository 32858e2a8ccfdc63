package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/aabhi25/chronalive/internal/models"
)

type availabilityTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type availabilityBaselineReader interface {
	ListActiveByTeacher(ctx context.Context, teacherID string) ([]models.BaselineEntry, error)
}

type availabilityWeeklyReader interface {
	ListTeacherEntriesForWeek(ctx context.Context, teacherID string, weekStart time.Time) ([]models.WeeklyEntry, error)
}

type absenceReader interface {
	ExistsOn(ctx context.Context, teacherID string, date time.Time) (bool, error)
}

// AvailabilityService answers whether a teacher can take a slot on a given
// calendar date. It is a pure read path; any lookup failure is reported as
// unavailable rather than optimistically free.
type AvailabilityService struct {
	teachers availabilityTeacherReader
	baseline availabilityBaselineReader
	weekly   availabilityWeeklyReader
	absences absenceReader
	logger   *zap.Logger
}

// NewAvailabilityService wires the availability read path.
func NewAvailabilityService(
	teachers availabilityTeacherReader,
	baseline availabilityBaselineReader,
	weekly availabilityWeeklyReader,
	absences absenceReader,
	logger *zap.Logger,
) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		teachers: teachers,
		baseline: baseline,
		weekly:   weekly,
		absences: absences,
		logger:   logger,
	}
}

// IsAvailable reports whether the teacher is free at (day, period) during the
// week containing date. excludeClassID ignores conflicts within that class,
// so a teacher can cover a different period of their own class.
func (s *AvailabilityService) IsAvailable(ctx context.Context, teacherID string, day, period int, date time.Time, excludeClassID string) bool {
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		s.logger.Warn("availability teacher lookup failed", zap.String("teacher_id", teacherID), zap.Error(err))
		return false
	}

	if !s.declaredFree(teacher, day, period) {
		return false
	}

	absent, err := s.absences.ExistsOn(ctx, teacherID, date)
	if err != nil {
		s.logger.Warn("availability absence lookup failed", zap.String("teacher_id", teacherID), zap.Error(err))
		return false
	}
	if absent {
		return false
	}

	baselineEntries, err := s.baseline.ListActiveByTeacher(ctx, teacherID)
	if err != nil {
		s.logger.Warn("availability baseline lookup failed", zap.String("teacher_id", teacherID), zap.Error(err))
		return false
	}
	for _, entry := range baselineEntries {
		if entry.Day == day && entry.Period == period && entry.ClassID != excludeClassID {
			return false
		}
	}

	weeklyEntries, err := s.weekly.ListTeacherEntriesForWeek(ctx, teacherID, WeekStartOf(date))
	if err != nil {
		s.logger.Warn("availability weekly lookup failed", zap.String("teacher_id", teacherID), zap.Error(err))
		return false
	}
	for _, entry := range weeklyEntries {
		if entry.Day == day && entry.Period == period {
			return false
		}
	}

	return true
}

// declaredFree decodes the teacher's declared weekly availability. A missing
// or malformed declaration is treated as always available, matching admin
// expectations for teachers who never filled the form in.
func (s *AvailabilityService) declaredFree(teacher *models.Teacher, day, period int) bool {
	if len(teacher.Availability) == 0 {
		return true
	}
	var declared models.WeeklyAvailability
	if err := json.Unmarshal(teacher.Availability, &declared); err != nil {
		s.logger.Warn("malformed teacher availability, treating as open",
			zap.String("teacher_id", teacher.ID), zap.Error(err))
		return true
	}
	return declared.Allows(day, period)
}
