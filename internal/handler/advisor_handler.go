package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type advisorService interface {
	Assign(ctx context.Context, actor models.Actor, req service.AssignAdvisorRequest) (*models.FacultyAdvisor, error)
}

// AdvisorHandler manages advisor assignments.
type AdvisorHandler struct {
	service advisorService
}

// NewAdvisorHandler constructs the handler.
func NewAdvisorHandler(service advisorService) *AdvisorHandler {
	return &AdvisorHandler{service: service}
}

// Assign godoc
// @Summary Assign or replace a student's faculty advisor
// @Tags Advisors
// @Accept json
// @Produce json
// @Param payload body service.AssignAdvisorRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Router /advisors [put]
func (h *AdvisorHandler) Assign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.AssignAdvisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid advisor payload"))
		return
	}
	advisor, err := h.service.Assign(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, advisor, nil)
}
