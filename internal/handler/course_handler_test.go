package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/zyu-enrollment-api/internal/middleware"
	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
)

type fakeCourseSrv struct {
	catalog     []models.CourseWithSubjects
	hit         bool
	lastFilter  models.CourseFilter
	lastLimit   int
	addErr      error
	addedCourse string
	addedReq    models.CourseSubjectRequest
	created     models.UpsertCourseRequest
}

func (f *fakeCourseSrv) Catalog(_ context.Context, filter models.CourseFilter) ([]models.CourseWithSubjects, bool, error) {
	f.lastFilter = filter
	return f.catalog, f.hit, nil
}

func (f *fakeCourseSrv) Get(context.Context, string) (*models.CourseSummary, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "Course not found")
}

func (f *fakeCourseSrv) Subjects(context.Context, string) (*models.CourseSubjectList, error) {
	return &models.CourseSubjectList{}, nil
}

func (f *fakeCourseSrv) ListAll(context.Context) ([]models.CourseWithSubjects, error) {
	return f.catalog, nil
}

func (f *fakeCourseSrv) Create(_ context.Context, req models.UpsertCourseRequest) (*models.Course, error) {
	f.created = req
	return &models.Course{ID: "c-1", Name: req.Name}, nil
}

func (f *fakeCourseSrv) Update(context.Context, string, models.UpsertCourseRequest) (*models.Course, error) {
	return &models.Course{}, nil
}

func (f *fakeCourseSrv) SetStatus(context.Context, string, models.SetStatusRequest) error {
	return nil
}

func (f *fakeCourseSrv) AddSubject(_ context.Context, courseID string, req models.CourseSubjectRequest) error {
	f.addedCourse = courseID
	f.addedReq = req
	return f.addErr
}

func (f *fakeCourseSrv) RemoveSubject(context.Context, string, string) error {
	return nil
}

func (f *fakeCourseSrv) Popular(_ context.Context, limit int) ([]models.PopularCourse, bool, error) {
	f.lastLimit = limit
	return []models.PopularCourse{}, false, nil
}

func (f *fakeCourseSrv) Stats(context.Context) (*models.CourseStats, error) {
	return &models.CourseStats{}, nil
}

func courseRouter(h *CourseHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.WithResponseMeta())
	r.GET("/courses", h.Catalog)
	r.GET("/courses/popular", h.Popular)
	r.GET("/courses/:id", h.Get)
	r.POST("/staff/courses", h.Create)
	r.POST("/staff/courses/:id/subjects", h.AddSubject)
	return r
}

func TestCourseHandlerCatalogBindsFilter(t *testing.T) {
	srv := &fakeCourseSrv{catalog: []models.CourseWithSubjects{{Course: models.Course{ID: "c-1", Name: "Data Science"}}}, hit: true}
	r := courseRouter(NewCourseHandler(srv))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/courses?name=data&category=DEGREE&min_price=100&price_sort=asc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "data", srv.lastFilter.Name)
	assert.Equal(t, models.CourseCategory("DEGREE"), srv.lastFilter.Category)
	assert.Equal(t, "asc", srv.lastFilter.PriceSort)

	var envelope listEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 1)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestCourseHandlerCatalogRejectsBadNumbers(t *testing.T) {
	r := courseRouter(NewCourseHandler(&fakeCourseSrv{}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/courses?min_duration=lots", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCourseHandlerPopularLimit(t *testing.T) {
	srv := &fakeCourseSrv{}
	r := courseRouter(NewCourseHandler(srv))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/courses/popular?limit=3", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, srv.lastLimit)
}

func TestCourseHandlerGetNotFound(t *testing.T) {
	r := courseRouter(NewCourseHandler(&fakeCourseSrv{}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/courses/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	assert.Equal(t, "Course not found", envelope.Message)
}

func TestCourseHandlerCreate(t *testing.T) {
	srv := &fakeCourseSrv{}
	r := courseRouter(NewCourseHandler(srv))

	body := `{"name":"Data Science","category":"DEGREE","duration":120,"price":4500}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/staff/courses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Data Science", srv.created.Name)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "Course created successfully", envelope.Message)
}

func TestCourseHandlerAddSubjectCapacityDetails(t *testing.T) {
	srv := &fakeCourseSrv{addErr: appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrDurationExceeded, "Cannot add subject. Only 10 hours remaining in course duration."),
		map[string]interface{}{"remaining_hours": 10},
	)}
	r := courseRouter(NewCourseHandler(srv))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/staff/courses/c-1/subjects", strings.NewReader(`{"subject_id":"s-1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "c-1", srv.addedCourse)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, float64(10), envelope.Meta["remaining_hours"])
}
