package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type availabilityService interface {
	Add(ctx context.Context, actor models.Actor, req service.AddAvailabilityRequest) (*models.FacultyAvailability, error)
	List(ctx context.Context, facultyID string) ([]models.FacultyAvailability, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
	AvailableSlots(ctx context.Context, facultyID, rawDate string) ([]dto.AvailableSlot, error)
}

type meetingService interface {
	CheckConflict(ctx context.Context, facultyID, rawDate, clock string, duration int) (*dto.ConflictCheckResult, error)
	Request(ctx context.Context, actor models.Actor, req service.RequestMeetingRequest) (*models.MeetingRequest, error)
	Decide(ctx context.Context, actor models.Actor, id string, req service.MeetingDecisionRequest) (*models.MeetingRequest, error)
	Cancel(ctx context.Context, actor models.Actor, id string) (*models.MeetingRequest, error)
	List(ctx context.Context, actor models.Actor, req service.ListMeetingsRequest) ([]models.MeetingRequest, error)
}

// SchedulingHandler exposes faculty availability and meeting endpoints.
type SchedulingHandler struct {
	availability availabilityService
	meetings     meetingService
}

// NewSchedulingHandler constructs the handler.
func NewSchedulingHandler(availability availabilityService, meetings meetingService) *SchedulingHandler {
	return &SchedulingHandler{availability: availability, meetings: meetings}
}

// AddAvailability godoc
// @Summary Define a weekly availability window
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param payload body service.AddAvailabilityRequest true "Availability window"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /availability [post]
func (h *SchedulingHandler) AddAvailability(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.AddAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid availability payload"))
		return
	}
	slot, err := h.availability.Add(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// ListAvailability godoc
// @Summary List a faculty member's availability windows
// @Tags Scheduling
// @Produce json
// @Param id path string true "Faculty ID"
// @Success 200 {object} response.Envelope
// @Router /faculty/{id}/availability [get]
func (h *SchedulingHandler) ListAvailability(c *gin.Context) {
	slots, err := h.availability.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// DeleteAvailability godoc
// @Summary Remove an availability window
// @Tags Scheduling
// @Param id path string true "Availability ID"
// @Success 204
// @Router /availability/{id} [delete]
func (h *SchedulingHandler) DeleteAvailability(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.availability.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Slots godoc
// @Summary List free meeting slots for a date
// @Tags Scheduling
// @Produce json
// @Param id path string true "Faculty ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /faculty/{id}/slots [get]
func (h *SchedulingHandler) Slots(c *gin.Context) {
	slots, err := h.availability.AvailableSlots(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Conflicts godoc
// @Summary Check whether a proposed meeting overlaps existing bookings
// @Tags Scheduling
// @Produce json
// @Param id path string true "Faculty ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param time query string true "Start time (HH:MM)"
// @Param duration query int true "Duration in minutes"
// @Success 200 {object} response.Envelope
// @Router /faculty/{id}/conflicts [get]
func (h *SchedulingHandler) Conflicts(c *gin.Context) {
	duration, err := strconv.Atoi(c.Query("duration"))
	if err != nil || duration <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "duration must be a positive number of minutes"))
		return
	}
	result, err := h.meetings.CheckConflict(c.Request.Context(), c.Param("id"), c.Query("date"), c.Query("time"), duration)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RequestMeeting godoc
// @Summary Request a meeting with a faculty member
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param payload body service.RequestMeetingRequest true "Meeting request"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meetings [post]
func (h *SchedulingHandler) RequestMeeting(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.RequestMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid meeting payload"))
		return
	}
	meeting, err := h.meetings.Request(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, meeting)
}

// ListMeetings godoc
// @Summary List the caller's meetings
// @Tags Scheduling
// @Produce json
// @Param status query string false "Status filter"
// @Param date query string false "Date filter (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /meetings [get]
func (h *SchedulingHandler) ListMeetings(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.ListMeetingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	meetings, err := h.meetings.List(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meetings, nil)
}

// DecideMeeting godoc
// @Summary Approve or reject a meeting request
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param id path string true "Meeting ID"
// @Param payload body service.MeetingDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /meetings/{id}/decision [post]
func (h *SchedulingHandler) DecideMeeting(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.MeetingDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid decision payload"))
		return
	}
	meeting, err := h.meetings.Decide(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meeting, nil)
}

// CancelMeeting godoc
// @Summary Cancel a meeting
// @Tags Scheduling
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Router /meetings/{id}/cancel [post]
func (h *SchedulingHandler) CancelMeeting(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	meeting, err := h.meetings.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meeting, nil)
}
