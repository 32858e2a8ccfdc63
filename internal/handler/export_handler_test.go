package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aabhi25/chronalive/internal/dto"
	"github.com/aabhi25/chronalive/internal/models"
	appErrors "github.com/aabhi25/chronalive/pkg/errors"
)

type fakeExportOperator struct {
	job      *models.ExportJob
	file     *os.File
	err      error
	lastID   string
	lastTkn  string
	creation dto.CreateExportRequest
}

func (f *fakeExportOperator) Create(_ context.Context, req dto.CreateExportRequest, _, _ string) (*models.ExportJob, error) {
	f.creation = req
	return f.job, f.err
}

func (f *fakeExportOperator) Get(_ context.Context, jobID string) (*models.ExportJob, error) {
	f.lastID = jobID
	return f.job, f.err
}

func (f *fakeExportOperator) OpenDownload(_ context.Context, token string) (*os.File, error) {
	f.lastTkn = token
	return f.file, f.err
}

func TestExportHandlerCreateAccepted(t *testing.T) {
	svc := &fakeExportOperator{job: &models.ExportJob{ID: "job-1", Status: models.ExportJobStatusPending}}
	h := NewExportHandler(svc)

	c, rec := testContext(t, http.MethodPost, "/timetable/exports", dto.CreateExportRequest{
		ClassID:   "class-1",
		WeekStart: "2025-03-10",
	})
	h.Create(c)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "class-1", svc.creation.ClassID)

	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "job-1", envelope.Data["jobId"])
}

func TestExportHandlerGetUnknownJob(t *testing.T) {
	svc := &fakeExportOperator{err: appErrors.Clone(appErrors.ErrNotFound, "export job not found")}
	h := NewExportHandler(svc)

	c, rec := testContext(t, http.MethodGet, "/timetable/exports/job-x", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-x"}}
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "job-x", svc.lastID)
}

func TestExportHandlerDownloadRequiresToken(t *testing.T) {
	h := NewExportHandler(&fakeExportOperator{})

	c, rec := testContext(t, http.MethodGet, "/timetable/exports/download", nil)
	h.Download(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportHandlerDownloadStreamsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timetable.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o644))
	file, err := os.Open(path)
	require.NoError(t, err)

	svc := &fakeExportOperator{file: file}
	h := NewExportHandler(svc)

	c, rec := testContext(t, http.MethodGet, "/timetable/exports/download?token=signed-token", nil)
	h.Download(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "signed-token", svc.lastTkn)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "timetable.pdf")
	assert.Contains(t, rec.Body.String(), "%PDF-1.4")
}
