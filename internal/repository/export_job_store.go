package repository

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aabhi25/chronalive/internal/models"
)

// ExportJobStore keeps export job state in memory. Jobs are short-lived
// artefacts; losing them on restart only means the client re-requests the
// export, so a database table is not warranted.
type ExportJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.ExportJob
}

// NewExportJobStore constructs an empty job store.
func NewExportJobStore() *ExportJobStore {
	return &ExportJobStore{jobs: make(map[string]*models.ExportJob)}
}

// Create registers a new pending job and returns it.
func (s *ExportJobStore) Create(ctx context.Context, job *models.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.Status = models.ExportJobStatusPending
	job.CreatedAt = now
	job.UpdatedAt = now

	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

// FindByID returns a snapshot of the job, or sql.ErrNoRows when unknown.
func (s *ExportJobStore) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

// UpdateStatus moves a job to the given status, recording the result path
// or failure message where relevant.
func (s *ExportJobStore) UpdateStatus(ctx context.Context, id string, status models.ExportJobStatus, filePath, failure string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	if filePath != "" {
		job.FilePath = filePath
	}
	if failure != "" {
		job.Error = failure
	}
	return nil
}

// DeleteExpired drops jobs whose last update is older than the TTL and
// returns their file paths so the caller can remove the artefacts.
func (s *ExportJobStore) DeleteExpired(ctx context.Context, ttl time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-ttl)
	var paths []string
	for id, job := range s.jobs {
		if job.UpdatedAt.Before(cutoff) {
			if job.FilePath != "" {
				paths = append(paths, job.FilePath)
			}
			delete(s.jobs, id)
		}
	}
	return paths
}
