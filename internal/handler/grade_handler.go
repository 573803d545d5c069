package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type gradeService interface {
	Submit(ctx context.Context, actor models.Actor, req service.SubmitGradeRequest) (*models.Grade, error)
	Approve(ctx context.Context, actor models.Actor, req service.ApproveGradesRequest) (*dto.ApproveGradesResult, error)
	List(ctx context.Context, actor models.Actor, req service.ListGradesRequest) ([]models.Grade, error)
	Transcript(ctx context.Context, actor models.Actor, studentID string) (*dto.Transcript, error)
	CGPA(ctx context.Context, actor models.Actor, studentID string) (*dto.CGPASummary, error)
	ExportTranscript(ctx context.Context, actor models.Actor, studentID, format string) (*service.TranscriptExport, error)
}

// GradeHandler exposes grade submission and academic record endpoints.
type GradeHandler struct {
	service gradeService
}

// NewGradeHandler constructs the handler.
func NewGradeHandler(service gradeService) *GradeHandler {
	return &GradeHandler{service: service}
}

// Submit godoc
// @Summary Submit or update a grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.SubmitGradeRequest true "Grade"
// @Success 200 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.SubmitGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid grade payload"))
		return
	}
	grade, err := h.service.Submit(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// List godoc
// @Summary List grades
// @Tags Grades
// @Produce json
// @Param student_id query string false "Student filter"
// @Param offering_id query string false "Offering filter"
// @Param status query string false "pending or approved"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.ListGradesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	grades, err := h.service.List(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// Approve godoc
// @Summary Approve pending grades
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.ApproveGradesRequest true "Grade IDs"
// @Success 200 {object} response.Envelope
// @Router /grades/approve [post]
func (h *GradeHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.ApproveGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid approval payload"))
		return
	}
	result, err := h.service.Approve(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Transcript godoc
// @Summary Get a student's transcript
// @Tags Records
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/transcript [get]
func (h *GradeHandler) Transcript(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	transcript, err := h.service.Transcript(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transcript, nil)
}

// ExportTranscript godoc
// @Summary Download a student's transcript
// @Tags Records
// @Produce application/pdf
// @Produce text/csv
// @Param id path string true "Student ID"
// @Param format query string false "pdf (default) or csv"
// @Success 200 {file} file
// @Router /students/{id}/transcript/export [get]
func (h *GradeHandler) ExportTranscript(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	export, err := h.service.ExportTranscript(c.Request.Context(), actor, c.Param("id"), c.DefaultQuery("format", "pdf"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, export.Filename, export.ContentType, export.Content)
}

// CGPA godoc
// @Summary Get a student's cumulative GPA
// @Tags Records
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/cgpa [get]
func (h *GradeHandler) CGPA(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, err := h.service.CGPA(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
