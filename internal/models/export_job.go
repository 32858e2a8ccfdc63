package models

import "time"

// ExportJobStatus is the export job lifecycle.
type ExportJobStatus string

const (
	ExportJobStatusPending    ExportJobStatus = "PENDING"
	ExportJobStatusProcessing ExportJobStatus = "PROCESSING"
	ExportJobStatusCompleted  ExportJobStatus = "COMPLETED"
	ExportJobStatusFailed     ExportJobStatus = "FAILED"
)

// ExportJob tracks one asynchronous timetable export.
type ExportJob struct {
	ID          string          `json:"id"`
	ClassID     string          `json:"class_id"`
	SchoolID    string          `json:"school_id"`
	WeekStart   time.Time       `json:"week_start"`
	Status      ExportJobStatus `json:"status"`
	FilePath    string          `json:"-"`
	DownloadURL string          `json:"download_url,omitempty"`
	Error       string          `json:"error,omitempty"`
	RequestedBy string          `json:"requested_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
