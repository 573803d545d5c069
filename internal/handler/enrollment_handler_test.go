package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/middleware"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type enrollmentServiceMock struct {
	listResp       []models.EnrollmentDetail
	listPagination *models.Pagination
	resp           *models.Enrollment
	err            error
	lastActor      models.Actor
	lastList       service.ListEnrollmentsRequest
	lastRequest    service.RequestEnrollmentRequest
	lastApprove    service.ApproveEnrollmentRequest
	lastWithdrawID string
	called         bool
}

func (m *enrollmentServiceMock) List(ctx context.Context, actor models.Actor, req service.ListEnrollmentsRequest) ([]models.EnrollmentDetail, *models.Pagination, error) {
	m.called = true
	m.lastActor = actor
	m.lastList = req
	return m.listResp, m.listPagination, m.err
}

func (m *enrollmentServiceMock) Request(ctx context.Context, actor models.Actor, req service.RequestEnrollmentRequest) (*models.Enrollment, error) {
	m.called = true
	m.lastActor = actor
	m.lastRequest = req
	return m.resp, m.err
}

func (m *enrollmentServiceMock) Approve(ctx context.Context, actor models.Actor, req service.ApproveEnrollmentRequest) (*models.Enrollment, error) {
	m.called = true
	m.lastActor = actor
	m.lastApprove = req
	return m.resp, m.err
}

func (m *enrollmentServiceMock) DirectEnroll(ctx context.Context, actor models.Actor, req service.DirectEnrollRequest) (*models.Enrollment, error) {
	m.called = true
	m.lastActor = actor
	return m.resp, m.err
}

func (m *enrollmentServiceMock) Withdraw(ctx context.Context, actor models.Actor, enrollmentID string) (*models.Enrollment, error) {
	m.called = true
	m.lastActor = actor
	m.lastWithdrawID = enrollmentID
	return m.resp, m.err
}

func newJSONContext(method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestEnrollmentHandlerRequestCreated(t *testing.T) {
	mockSvc := &enrollmentServiceMock{resp: &models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusPendingFaculty}}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newJSONContext(http.MethodPost, "/enrollments", `{"offering_id":"off-1"}`,
		&models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	handler.Request(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "off-1", mockSvc.lastRequest.OfferingID)
	assert.Equal(t, models.Actor{ID: "stu-1", Role: models.RoleStudent}, mockSvc.lastActor)
	assert.Contains(t, w.Body.String(), `"status":"pending_faculty"`)
}

func TestEnrollmentHandlerRequestInvalidBody(t *testing.T) {
	mockSvc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newJSONContext(http.MethodPost, "/enrollments", `{"offering_id":`,
		&models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	handler.Request(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.called)
}

func TestEnrollmentHandlerRequestEligibilityDenied(t *testing.T) {
	mockSvc := &enrollmentServiceMock{err: appErrors.WithDetails(appErrors.ErrEligibility, "credit limit exceeded: 22 current + 3 requested > 24",
		map[string]interface{}{"reason": "credit_limit"})}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newJSONContext(http.MethodPost, "/enrollments", `{"offering_id":"off-1"}`,
		&models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	handler.Request(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ELIGIBILITY_ERROR", body["error"]["code"])
}

func TestEnrollmentHandlerRequiresIdentity(t *testing.T) {
	mockSvc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newJSONContext(http.MethodPost, "/enrollments", `{"offering_id":"off-1"}`, nil)
	handler.Request(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, mockSvc.called)
}

func TestEnrollmentHandlerListBindsQuery(t *testing.T) {
	mockSvc := &enrollmentServiceMock{
		listResp:       []models.EnrollmentDetail{{Enrollment: models.Enrollment{ID: "enr-1"}}},
		listPagination: &models.Pagination{Page: 2, PageSize: 10, TotalCount: 11},
	}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newJSONContext(http.MethodGet, "/enrollments?scope=advisees&status=pending_advisor&page=2&page_size=10", "",
		&models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty})
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "advisees", mockSvc.lastList.Scope)
	assert.Equal(t, models.EnrollmentStatusPendingAdvisor, mockSvc.lastList.Status)
	assert.Equal(t, 2, mockSvc.lastList.Page)
	assert.Contains(t, w.Body.String(), `"total_count":11`)
}

func TestEnrollmentHandlerApproveConflict(t *testing.T) {
	mockSvc := &enrollmentServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "enrollment was modified concurrently")}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newJSONContext(http.MethodPost, "/enrollments/approve", `{"student_id":"stu-1","offering_id":"off-1","decision":"approve"}`,
		&models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty})
	handler.Approve(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "approve", mockSvc.lastApprove.Decision)
}

func TestEnrollmentHandlerWithdrawUsesPathID(t *testing.T) {
	mockSvc := &enrollmentServiceMock{resp: &models.Enrollment{ID: "enr-9", Status: models.EnrollmentStatusWithdrawn}}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newJSONContext(http.MethodPost, "/enrollments/enr-9/withdraw", "",
		&models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	c.Params = gin.Params{{Key: "id", Value: "enr-9"}}
	handler.Withdraw(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "enr-9", mockSvc.lastWithdrawID)
}
