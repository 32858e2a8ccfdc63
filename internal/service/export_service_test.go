package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aabhi25/chronalive/internal/dto"
	"github.com/aabhi25/chronalive/internal/models"
	"github.com/aabhi25/chronalive/internal/repository"
	"github.com/aabhi25/chronalive/pkg/export"
	"github.com/aabhi25/chronalive/pkg/jobs"
	"github.com/aabhi25/chronalive/pkg/storage"
)

type exportScheduleStub struct {
	week *dto.EffectiveWeekResponse
}

func (s exportScheduleStub) EffectiveWeek(ctx context.Context, classID string, weekStart time.Time) (*dto.EffectiveWeekResponse, error) {
	return s.week, nil
}

type exportClassStub struct{}

func (exportClassStub) FindByID(ctx context.Context, id string) (*models.Class, error) {
	return &models.Class{ID: id, SchoolID: "school-1", Name: "7A"}, nil
}

func (exportClassStub) FindSubjectByID(ctx context.Context, id string) (*models.Subject, error) {
	return &models.Subject{ID: id, Name: strings.ToUpper(id)}, nil
}

type rendererStub struct {
	grids []export.TimetableGrid
}

func (s *rendererStub) Render(grid export.TimetableGrid) ([]byte, error) {
	s.grids = append(s.grids, grid)
	return []byte("%PDF-1.4 stub"), nil
}

func newExportFixture(t *testing.T) (*ExportService, *repository.ExportJobStore, *rendererStub) {
	registry := repository.NewExportJobStore()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	renderer := &rendererStub{}

	week := &dto.EffectiveWeekResponse{
		ClassID:   "class-1",
		WeekStart: "2026-03-02",
		Version:   1,
		Entries: []models.EffectiveEntry{
			{ClassID: "class-1", TeacherID: "t1", SubjectID: "math", Day: 1, Period: 1, StartTime: "08:00", EndTime: "08:45"},
			{ClassID: "class-1", TeacherID: "t2", SubjectID: "art", Day: 2, Period: 2, StartTime: "08:45", EndTime: "09:30", IsModified: true},
		},
	}

	svc := NewExportService(
		registry,
		exportScheduleStub{week: week},
		exportClassStub{},
		teacherReaderStub{teachers: map[string]*models.Teacher{
			"t1": activeTeacher("t1", ""),
			"t2": activeTeacher("t2", ""),
		}},
		structureReaderStub{structure: standardStructure()},
		files,
		storage.NewSignedURLSigner("test-secret", time.Hour),
		renderer,
		&auditRecorder{},
		nil,
		ExportServiceConfig{JobTTL: time.Hour, CleanupInterval: time.Hour},
		nil,
	)
	return svc, registry, renderer
}

func TestExportProcessCompletesJob(t *testing.T) {
	svc, registry, renderer := newExportFixture(t)

	job := &models.ExportJob{ClassID: "class-1", SchoolID: "school-1", WeekStart: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, registry.Create(context.Background(), job))

	require.NoError(t, svc.process(context.Background(), jobs.Job{ID: job.ID, Type: "timetable_pdf", Payload: job.ID}))

	stored, err := registry.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.ExportJobStatusCompleted, stored.Status)
	require.NotEmpty(t, stored.FilePath)

	require.Len(t, renderer.grids, 1)
	grid := renderer.grids[0]
	require.Equal(t, 5, len(grid.Days))
	require.NotNil(t, grid.Cells[0][0])
	require.Equal(t, "MATH", grid.Cells[0][0].Subject)
	require.True(t, grid.Cells[1][1].Modified)
}

func TestExportGetSignsDownloadURL(t *testing.T) {
	svc, registry, _ := newExportFixture(t)

	job := &models.ExportJob{ClassID: "class-1", SchoolID: "school-1", WeekStart: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, registry.Create(context.Background(), job))
	require.NoError(t, svc.process(context.Background(), jobs.Job{ID: job.ID, Payload: job.ID}))

	fetched, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Contains(t, fetched.DownloadURL, "token=")

	token := fetched.DownloadURL[strings.Index(fetched.DownloadURL, "token=")+len("token="):]
	file, err := svc.OpenDownload(context.Background(), token)
	require.NoError(t, err)
	require.NoError(t, file.Close())
}

func TestExportCreateRejectsBadWeek(t *testing.T) {
	svc, _, _ := newExportFixture(t)
	_, err := svc.Create(context.Background(), dto.CreateExportRequest{ClassID: "class-1", WeekStart: "not-a-date"}, "school-1", "admin-1")
	require.Error(t, err)
}

func TestExportCreateAndWorkerRoundTrip(t *testing.T) {
	svc, registry, _ := newExportFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	job, err := svc.Create(ctx, dto.CreateExportRequest{ClassID: "class-1", WeekStart: "2026-03-02"}, "school-1", "admin-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, err := registry.FindByID(ctx, job.ID)
		return err == nil && stored.Status == models.ExportJobStatusCompleted
	}, 2*time.Second, 20*time.Millisecond)
}
