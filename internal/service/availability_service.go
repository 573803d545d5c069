package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type availabilityStore interface {
	Exists(ctx context.Context, facultyID string, dayOfWeek int, startTime string) (bool, error)
	Create(ctx context.Context, slot *models.FacultyAvailability) error
	FindByID(ctx context.Context, id string) (*models.FacultyAvailability, error)
	ListByFaculty(ctx context.Context, facultyID string) ([]models.FacultyAvailability, error)
	ListByFacultyAndDay(ctx context.Context, facultyID string, dayOfWeek int) ([]models.FacultyAvailability, error)
	Delete(ctx context.Context, id string) error
}

// AddAvailabilityRequest defines a weekly availability window.
type AddAvailabilityRequest struct {
	DayOfWeek    *int   `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime    string `json:"start_time" validate:"required,hhmm"`
	EndTime      string `json:"end_time" validate:"required,hhmm"`
	SlotDuration int    `json:"slot_duration" validate:"required,min=5,max=240"`
}

// AvailabilityService manages faculty availability windows and derives
// bookable slots from them.
type AvailabilityService struct {
	repo      availabilityStore
	meetings  activeMeetingReader
	holds     calendarHoldReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs AvailabilityService.
func NewAvailabilityService(repo availabilityStore, meetings activeMeetingReader, holds calendarHoldReader, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, meetings: meetings, holds: holds, validator: schedulingValidator(validate), logger: logger}
}

// Add records a new weekly window for the calling faculty member.
func (s *AvailabilityService) Add(ctx context.Context, actor models.Actor, req AddAvailabilityRequest) (*models.FacultyAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if !actor.Is(models.RoleFaculty) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only faculty may define availability")
	}
	window, err := rangeBetween(req.StartTime, req.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability times")
	}
	if window.start >= window.end {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "end_time must be after start_time",
			map[string]interface{}{"start_time": req.StartTime, "end_time": req.EndTime})
	}
	if req.SlotDuration > window.end-window.start {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "slot_duration exceeds the availability window",
			map[string]interface{}{"slot_duration": req.SlotDuration, "window_minutes": window.end - window.start})
	}

	slot := &models.FacultyAvailability{
		FacultyID:    actor.ID,
		DayOfWeek:    *req.DayOfWeek,
		StartTime:    formatClock(window.start),
		EndTime:      formatClock(window.end),
		SlotDuration: req.SlotDuration,
	}
	exists, err := s.repo.Exists(ctx, slot.FacultyID, slot.DayOfWeek, slot.StartTime)
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to check availability")
	}
	if exists {
		return nil, duplicateSlotError(slot)
	}
	if err := s.repo.Create(ctx, slot); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, duplicateSlotError(slot)
		}
		return nil, appErrors.Dependency(err, "failed to create availability")
	}
	return slot, nil
}

// List returns a faculty member's weekly windows.
func (s *AvailabilityService) List(ctx context.Context, facultyID string) ([]models.FacultyAvailability, error) {
	slots, err := s.repo.ListByFaculty(ctx, facultyID)
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to list availability")
	}
	return slots, nil
}

// Delete removes one of the caller's windows.
func (s *AvailabilityService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if !actor.Is(models.RoleFaculty) {
		return appErrors.Clone(appErrors.ErrForbidden, "only faculty may remove availability")
	}
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "availability not found")
		}
		return appErrors.Dependency(err, "failed to load availability")
	}
	if slot.FacultyID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "availability belongs to another faculty member")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Dependency(err, "failed to delete availability")
	}
	return nil
}

// AvailableSlots splits the windows of the date's weekday into slots and
// returns those not taken by meetings or calendar holds.
func (s *AvailabilityService) AvailableSlots(ctx context.Context, facultyID, rawDate string) ([]dto.AvailableSlot, error) {
	date, err := parseDate(rawDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	windows, err := s.repo.ListByFacultyAndDay(ctx, facultyID, int(date.Weekday()))
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to load availability")
	}
	if len(windows) == 0 {
		return []dto.AvailableSlot{}, nil
	}
	busy, err := busyRanges(ctx, s.meetings, s.holds, facultyID, date)
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to load bookings")
	}

	slots := make([]dto.AvailableSlot, 0)
	for _, window := range windows {
		bounds, err := rangeBetween(window.StartTime, window.EndTime)
		if err != nil {
			s.logger.Warn("skipping malformed availability window", zap.String("availability_id", window.ID), zap.Error(err))
			continue
		}
		for _, candidate := range splitWindow(bounds, window.SlotDuration) {
			if overlapsAny(candidate, busy) {
				continue
			}
			slots = append(slots, dto.AvailableSlot{
				Date:      date.Format(dateLayout),
				StartTime: formatClock(candidate.start),
				EndTime:   formatClock(candidate.end),
				Duration:  window.SlotDuration,
				Available: true,
			})
		}
	}
	return slots, nil
}

func duplicateSlotError(slot *models.FacultyAvailability) error {
	return appErrors.WithDetails(appErrors.ErrConflict,
		fmt.Sprintf("availability already defined for day %d at %s", slot.DayOfWeek, slot.StartTime),
		map[string]interface{}{"day_of_week": slot.DayOfWeek, "start_time": slot.StartTime})
}

// schedulingValidator returns a validator that understands "hhmm" clock times.
func schedulingValidator(validate *validator.Validate) *validator.Validate {
	if validate == nil {
		validate = validator.New()
	}
	_ = validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("15:04", fl.Field().String())
		return err == nil
	})
	return validate
}
