package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/aabhi25/chronalive/internal/dto"
	"github.com/aabhi25/chronalive/internal/models"
	"github.com/aabhi25/chronalive/internal/repository"
	appErrors "github.com/aabhi25/chronalive/pkg/errors"
)

type mergeBaselineReader interface {
	ListActiveByClass(ctx context.Context, classID string) ([]models.BaselineEntry, error)
}

type weeklyLayerStore interface {
	FindByClassWeek(ctx context.Context, classID string, weekStart time.Time) (*models.WeeklyTimetable, error)
	Create(ctx context.Context, exec sqlx.ExtContext, layer *models.WeeklyTimetable) error
}

type mergeChangeReader interface {
	ListApprovedByClassDate(ctx context.Context, classID string, date time.Time) ([]models.TimetableChange, error)
}

type scheduleCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidateClass(ctx context.Context, classID string) error
}

type slotKey struct {
	Day    int
	Period int
}

// keyedMutex serializes writers per (class, week) so an auto-materialization
// racing a concurrent read creates exactly one layer per key in-process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// MergeServiceConfig governs merge behaviour.
type MergeServiceConfig struct {
	CacheTTL  time.Duration
	RetryWait time.Duration
}

// MergeService computes the effective schedule for a class and week by
// layering the weekly overrides on top of the baseline. The first read of a
// week materializes its override layer, so later edits act on a concrete row
// rather than a virtual view.
type MergeService struct {
	baseline mergeBaselineReader
	weekly   weeklyLayerStore
	changes  mergeChangeReader
	cache    scheduleCache
	guard    *keyedMutex
	cfg      MergeServiceConfig
	logger   *zap.Logger
}

// NewMergeService wires the merge engine.
func NewMergeService(
	baseline mergeBaselineReader,
	weekly weeklyLayerStore,
	changes mergeChangeReader,
	cache scheduleCache,
	cfg MergeServiceConfig,
	logger *zap.Logger,
) *MergeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 50 * time.Millisecond
	}
	return &MergeService{
		baseline: baseline,
		weekly:   weekly,
		changes:  changes,
		cache:    cache,
		guard:    newKeyedMutex(),
		cfg:      cfg,
		logger:   logger,
	}
}

// GetOrCreateLayer returns the week's override layer, materializing it from
// the baseline when absent. Callers that intend to write hold a concrete row
// afterwards.
func (s *MergeService) GetOrCreateLayer(ctx context.Context, classID string, weekStart time.Time) (*models.WeeklyTimetable, error) {
	weekStart = WeekStartOf(weekStart)

	layer, err := s.weekly.FindByClassWeek(ctx, classID, weekStart)
	if err == nil {
		return layer, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly layer")
	}

	unlock := s.guard.lock(classID + "|" + weekStart.Format("2006-01-02"))
	defer unlock()

	// Another request may have materialized the layer while we waited.
	layer, err = s.weekly.FindByClassWeek(ctx, classID, weekStart)
	if err == nil {
		return layer, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly layer")
	}

	baselineEntries, err := s.baseline.ListActiveByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load baseline for materialization")
	}
	if len(baselineEntries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class has no active baseline")
	}

	layer = materializeLayer(classID, baselineEntries[0].SchoolID, weekStart, baselineEntries)
	if err := s.weekly.Create(ctx, nil, layer); err != nil {
		// A concurrent process may have won the insert; re-read before failing.
		time.Sleep(s.cfg.RetryWait)
		if existing, findErr := s.weekly.FindByClassWeek(ctx, classID, weekStart); findErr == nil {
			return existing, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to materialize weekly layer")
	}
	return layer, nil
}

func materializeLayer(classID, schoolID string, weekStart time.Time, baselineEntries []models.BaselineEntry) *models.WeeklyTimetable {
	layer := &models.WeeklyTimetable{
		ClassID:   classID,
		SchoolID:  schoolID,
		WeekStart: weekStart,
		WeekEnd:   weekStart.AddDate(0, 0, 6),
	}
	for _, base := range baselineEntries {
		teacherID := base.TeacherID
		subjectID := base.SubjectID
		layer.Entries = append(layer.Entries, models.WeeklyEntry{
			Day:       base.Day,
			Period:    base.Period,
			Kind:      models.OverrideInherited,
			TeacherID: &teacherID,
			SubjectID: &subjectID,
			StartTime: base.StartTime,
			EndTime:   base.EndTime,
			Room:      base.Room,
		})
	}
	return layer
}

// EffectiveWeek merges the baseline with the week's override layer.
func (s *MergeService) EffectiveWeek(ctx context.Context, classID string, weekStart time.Time) (*dto.EffectiveWeekResponse, error) {
	weekStart = WeekStartOf(weekStart)

	if s.cache != nil {
		var cached dto.EffectiveWeekResponse
		if err := s.cache.Get(ctx, repository.EffectiveScheduleKey(classID, weekStart), &cached); err == nil {
			return &cached, nil
		}
	}

	merged, layer, err := s.mergeWeek(ctx, classID, weekStart)
	if err != nil {
		return nil, err
	}

	resp := &dto.EffectiveWeekResponse{
		ClassID:   classID,
		WeekStart: weekStart.Format("2006-01-02"),
		WeekEnd:   weekStart.AddDate(0, 0, 6).Format("2006-01-02"),
		Version:   layer.Version,
		Entries:   sortedEntries(merged),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, repository.EffectiveScheduleKey(classID, weekStart), resp, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache effective week", zap.String("class_id", classID), zap.Error(err))
		}
	}
	return resp, nil
}

// EffectiveDay returns the merged schedule for one calendar date, with
// approved change records layered on top. After an approval both the weekly
// layer and the change record agree, so the layering is idempotent.
func (s *MergeService) EffectiveDay(ctx context.Context, classID string, date time.Time) (*dto.EffectiveDayResponse, error) {
	weekStart := WeekStartOf(date)
	day := ISOWeekday(date)

	merged, _, err := s.mergeWeek(ctx, classID, weekStart)
	if err != nil {
		return nil, err
	}

	baselineEntries, err := s.baseline.ListActiveByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load baseline entries")
	}
	slotByEntryID := make(map[string]slotKey, len(baselineEntries))
	for _, base := range baselineEntries {
		slotByEntryID[base.ID] = slotKey{Day: base.Day, Period: base.Period}
	}

	changes, err := s.changes.ListApprovedByClassDate(ctx, classID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable changes")
	}
	for _, change := range changes {
		key, ok := slotByEntryID[change.TimetableEntryID]
		if !ok {
			continue
		}
		switch change.ChangeType {
		case models.ChangeTypeCancellation:
			delete(merged, key)
		case models.ChangeTypeSubstitution:
			if change.NewTeacherID == nil {
				continue
			}
			entry, ok := merged[key]
			if !ok {
				continue
			}
			entry.TeacherID = *change.NewTeacherID
			entry.IsModified = true
			reason := change.Reason
			entry.Reason = &reason
			merged[key] = entry
		}
	}

	var result []models.EffectiveEntry
	for _, entry := range sortedEntries(merged) {
		if entry.Day == day {
			result = append(result, entry)
		}
	}

	return &dto.EffectiveDayResponse{
		ClassID: classID,
		Date:    date.Format("2006-01-02"),
		Day:     day,
		Entries: result,
	}, nil
}

// mergeWeek builds the (day, period) keyed map of effective entries.
func (s *MergeService) mergeWeek(ctx context.Context, classID string, weekStart time.Time) (map[slotKey]models.EffectiveEntry, *models.WeeklyTimetable, error) {
	baselineEntries, err := s.baseline.ListActiveByClass(ctx, classID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load baseline entries")
	}
	if len(baselineEntries) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "class has no active baseline")
	}

	merged := make(map[slotKey]models.EffectiveEntry, len(baselineEntries))
	for _, base := range baselineEntries {
		merged[slotKey{base.Day, base.Period}] = models.EffectiveEntry{
			ClassID:   base.ClassID,
			TeacherID: base.TeacherID,
			SubjectID: base.SubjectID,
			Day:       base.Day,
			Period:    base.Period,
			StartTime: base.StartTime,
			EndTime:   base.EndTime,
			Room:      base.Room,
		}
	}

	layer, err := s.GetOrCreateLayer(ctx, classID, weekStart)
	if err != nil {
		return nil, nil, err
	}

	for _, entry := range layer.Entries {
		key := slotKey{entry.Day, entry.Period}
		switch entry.Kind {
		case models.OverrideInherited:
			// Baseline already holds the truth for inherited cells.
		case models.OverrideCancelled:
			delete(merged, key)
		case models.OverrideAssigned:
			if entry.TeacherID == nil || entry.SubjectID == nil {
				s.logger.Warn("assigned override missing teacher or subject",
					zap.String("class_id", classID), zap.Int("day", entry.Day), zap.Int("period", entry.Period))
				continue
			}
			merged[key] = models.EffectiveEntry{
				ClassID:    classID,
				TeacherID:  *entry.TeacherID,
				SubjectID:  *entry.SubjectID,
				Day:        entry.Day,
				Period:     entry.Period,
				StartTime:  entry.StartTime,
				EndTime:    entry.EndTime,
				Room:       entry.Room,
				IsModified: true,
				Reason:     entry.ModificationReason,
			}
		}
	}

	return merged, layer, nil
}

func sortedEntries(merged map[slotKey]models.EffectiveEntry) []models.EffectiveEntry {
	entries := make([]models.EffectiveEntry, 0, len(merged))
	for _, entry := range merged {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Day != entries[j].Day {
			return entries[i].Day < entries[j].Day
		}
		return entries[i].Period < entries[j].Period
	})
	return entries
}

// Invalidate drops the class's cached weeks after a write.
func (s *MergeService) Invalidate(ctx context.Context, classID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateClass(ctx, classID); err != nil {
		s.logger.Warn("failed to invalidate schedule cache", zap.String("class_id", classID), zap.Error(err))
	}
}
