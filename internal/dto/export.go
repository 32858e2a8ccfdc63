package dto

// CreateExportRequest queues an effective-schedule export for a class week.
type CreateExportRequest struct {
	ClassID   string `json:"classId" validate:"required"`
	WeekStart string `json:"weekStart" validate:"required"`
}

// CreateExportResponse returns the queued job id.
type CreateExportResponse struct {
	JobID string `json:"jobId"`
}
