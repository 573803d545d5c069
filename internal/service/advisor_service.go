package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type advisorWriter interface {
	Upsert(ctx context.Context, advisor *models.FacultyAdvisor) error
}

// AssignAdvisorRequest sets the advisor of a student.
type AssignAdvisorRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	FacultyID string `json:"faculty_id" validate:"required"`
}

// AdvisorService maintains faculty advisor assignments.
type AdvisorService struct {
	repo      advisorWriter
	students  studentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAdvisorService constructs AdvisorService.
func NewAdvisorService(repo advisorWriter, students studentReader, validate *validator.Validate, logger *zap.Logger) *AdvisorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdvisorService{repo: repo, students: students, validator: validate, logger: logger}
}

// Assign records the advisor for a student, replacing the previous one.
func (s *AdvisorService) Assign(ctx context.Context, actor models.Actor, req AssignAdvisorRequest) (*models.FacultyAdvisor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid advisor payload")
	}
	if !actor.Is(models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may assign advisors")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Dependency(err, "failed to load student")
	}
	advisor := &models.FacultyAdvisor{StudentID: req.StudentID, FacultyID: req.FacultyID}
	if err := s.repo.Upsert(ctx, advisor); err != nil {
		return nil, appErrors.Dependency(err, "failed to assign advisor")
	}
	s.logger.Info("advisor assigned", zap.String("student_id", req.StudentID), zap.String("faculty_id", req.FacultyID))
	return advisor, nil
}
