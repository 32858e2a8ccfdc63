package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/aabhi25/chronalive/internal/dto"
	"github.com/aabhi25/chronalive/internal/middleware"
	"github.com/aabhi25/chronalive/internal/models"
	appErrors "github.com/aabhi25/chronalive/pkg/errors"
)

type responseEnvelope struct {
	Data      map[string]interface{}   `json:"data"`
	Error     map[string]interface{}   `json:"error"`
	Conflicts []map[string]interface{} `json:"conflicts"`
	Meta      map[string]interface{}   `json:"meta"`
}

type fakeBaselineOperator struct {
	result     *dto.GenerateTimetableResult
	validation *models.TimetableValidation
	err        error
	lastReq    dto.GenerateTimetableRequest
	lastSchool string
}

func (f *fakeBaselineOperator) Generate(_ context.Context, req dto.GenerateTimetableRequest, schoolID, _ string) (*dto.GenerateTimetableResult, error) {
	f.lastReq = req
	f.lastSchool = schoolID
	return f.result, f.err
}

func (f *fakeBaselineOperator) Refresh(_ context.Context, req dto.GenerateTimetableRequest, schoolID, _ string) (*dto.GenerateTimetableResult, error) {
	f.lastReq = req
	f.lastSchool = schoolID
	return f.result, f.err
}

func (f *fakeBaselineOperator) Validate(context.Context, string) (*models.TimetableValidation, error) {
	return f.validation, f.err
}

type fakeScheduleReader struct {
	week     *dto.EffectiveWeekResponse
	day      *dto.EffectiveDayResponse
	err      error
	lastWeek time.Time
	lastDate time.Time
	weekHit  bool
	dayHit   bool
}

func (f *fakeScheduleReader) EffectiveWeek(_ context.Context, _ string, weekStart time.Time) (*dto.EffectiveWeekResponse, error) {
	f.weekHit = true
	f.lastWeek = weekStart
	return f.week, f.err
}

func (f *fakeScheduleReader) EffectiveDay(_ context.Context, _ string, date time.Time) (*dto.EffectiveDayResponse, error) {
	f.dayHit = true
	f.lastDate = date
	return f.day, f.err
}

type fakeWeeklyEditor struct {
	version int
	result  *dto.GenerateTimetableResult
	err     error
	lastReq dto.UpdateWeeklyEntryRequest
}

func (f *fakeWeeklyEditor) UpdateWeeklyEntry(_ context.Context, req dto.UpdateWeeklyEntryRequest, _ string) (int, error) {
	f.lastReq = req
	return f.version, f.err
}

func (f *fakeWeeklyEditor) PromoteWeekToGlobal(context.Context, dto.WeekRequest, string) (*dto.GenerateTimetableResult, error) {
	return f.result, f.err
}

func (f *fakeWeeklyEditor) ResetWeekFromGlobal(context.Context, dto.WeekRequest, string) (*dto.GenerateTimetableResult, error) {
	return f.result, f.err
}

func testContext(t *testing.T, method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin, SchoolID: "school-1"})
	return c, rec
}

func TestTimetableHandlerGenerateSuccess(t *testing.T) {
	baseline := &fakeBaselineOperator{result: &dto.GenerateTimetableResult{Success: true, EntriesCreated: 12}}
	h := NewTimetableHandler(baseline, &fakeScheduleReader{}, &fakeWeeklyEditor{})

	c, rec := testContext(t, http.MethodPost, "/timetable/generate", dto.GenerateTimetableRequest{ClassID: "class-1"})
	h.Generate(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "class-1", baseline.lastReq.ClassID)
	assert.Equal(t, "school-1", baseline.lastSchool)

	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, float64(12), envelope.Data["entriesCreated"])
}

func TestTimetableHandlerGenerateInvalidPayload(t *testing.T) {
	h := NewTimetableHandler(&fakeBaselineOperator{}, &fakeScheduleReader{}, &fakeWeeklyEditor{})

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/timetable/generate", bytes.NewReader([]byte("{")))

	h.Generate(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimetableHandlerEffectiveRequiresClass(t *testing.T) {
	h := NewTimetableHandler(&fakeBaselineOperator{}, &fakeScheduleReader{}, &fakeWeeklyEditor{})

	c, rec := testContext(t, http.MethodGet, "/timetable/effective", nil)
	h.Effective(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimetableHandlerEffectiveWeekNormalizesToMonday(t *testing.T) {
	reader := &fakeScheduleReader{week: &dto.EffectiveWeekResponse{ClassID: "class-1"}}
	h := NewTimetableHandler(&fakeBaselineOperator{}, reader, &fakeWeeklyEditor{})

	// 2025-03-12 is a Wednesday; the handler must pass the Monday.
	c, rec := testContext(t, http.MethodGet, "/timetable/effective?classId=class-1&weekStart=2025-03-12", nil)
	h.Effective(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, reader.weekHit)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), reader.lastWeek)
}

func TestTimetableHandlerEffectiveDate(t *testing.T) {
	reader := &fakeScheduleReader{day: &dto.EffectiveDayResponse{ClassID: "class-1", Day: 3}}
	h := NewTimetableHandler(&fakeBaselineOperator{}, reader, &fakeWeeklyEditor{})

	c, rec := testContext(t, http.MethodGet, "/timetable/effective?classId=class-1&date=2025-03-12", nil)
	h.Effective(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, reader.dayHit)
	assert.False(t, reader.weekHit)
	assert.Equal(t, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), reader.lastDate)
}

func TestTimetableHandlerUpdateWeeklyEntryStaleWrite(t *testing.T) {
	editor := &fakeWeeklyEditor{err: appErrors.Clone(appErrors.ErrStaleWrite, "weekly layer version changed")}
	h := NewTimetableHandler(&fakeBaselineOperator{}, &fakeScheduleReader{}, editor)

	c, rec := testContext(t, http.MethodPut, "/timetable/weekly/entry", dto.UpdateWeeklyEntryRequest{
		ClassID:   "class-1",
		WeekStart: "2025-03-10",
		Day:       2,
		Period:    3,
		Action:    dto.WeeklyEntryActionCancel,
		Reason:    "assembly",
		Version:   4,
	})
	h.UpdateWeeklyEntry(c)

	assert.Equal(t, http.StatusConflict, rec.Code)

	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "STALE_WRITE", envelope.Error["code"])
}

func TestTimetableHandlerUpdateWeeklyEntryReturnsVersion(t *testing.T) {
	editor := &fakeWeeklyEditor{version: 5}
	h := NewTimetableHandler(&fakeBaselineOperator{}, &fakeScheduleReader{}, editor)

	c, rec := testContext(t, http.MethodPut, "/timetable/weekly/entry", dto.UpdateWeeklyEntryRequest{
		ClassID:   "class-1",
		WeekStart: "2025-03-10",
		Day:       2,
		Period:    3,
		Action:    dto.WeeklyEntryActionAssign,
		TeacherID: "teacher-2",
		SubjectID: "subject-1",
		Reason:    "cover",
		Version:   4,
	})
	h.UpdateWeeklyEntry(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.WeeklyEntryActionAssign, editor.lastReq.Action)

	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, float64(5), envelope.Data["version"])
}

func TestTimetableHandlerPromote(t *testing.T) {
	editor := &fakeWeeklyEditor{result: &dto.GenerateTimetableResult{Success: true, EntriesCreated: 20}}
	h := NewTimetableHandler(&fakeBaselineOperator{}, &fakeScheduleReader{}, editor)

	c, rec := testContext(t, http.MethodPost, "/timetable/promote", dto.WeekRequest{ClassID: "class-1", WeekStart: "2025-03-10"})
	h.Promote(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}
