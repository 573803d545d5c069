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
	"github.com/noah-isme/academic-records-api/internal/notifier"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type meetingStore interface {
	activeMeetingReader
	Create(ctx context.Context, meeting *models.MeetingRequest) error
	FindByID(ctx context.Context, id string) (*models.MeetingRequest, error)
	List(ctx context.Context, filter models.MeetingFilter) ([]models.MeetingRequest, error)
	UpdateStatus(ctx context.Context, id string, from, to models.MeetingStatus) error
	Cancel(ctx context.Context, id string, from models.MeetingStatus, cancelledBy string, cancelledAt time.Time) error
}

type calendarNotifier interface {
	Notify(ctx context.Context, event notifier.Event)
}

// RequestMeetingRequest is a student's request for a meeting slot.
type RequestMeetingRequest struct {
	FacultyID string `json:"faculty_id" validate:"required"`
	Date      string `json:"date" validate:"required"`
	Time      string `json:"time" validate:"required,hhmm"`
	Duration  int    `json:"duration" validate:"required,min=5,max=240"`
	Purpose   string `json:"purpose" validate:"max=500"`
}

// MeetingDecisionRequest is the faculty's answer to a pending meeting.
type MeetingDecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
}

// ListMeetingsRequest narrows a meeting listing.
type ListMeetingsRequest struct {
	Status models.MeetingStatus `form:"status" validate:"omitempty,oneof=pending approved rejected cancelled"`
	Date   string               `form:"date"`
}

// MeetingService books faculty meetings after checking for overlaps.
type MeetingService struct {
	repo            meetingStore
	holds           calendarHoldReader
	notifier        calendarNotifier
	conflictTimeout time.Duration
	metrics         *MetricsService
	validator       *validator.Validate
	logger          *zap.Logger
	now             func() time.Time
}

// NewMeetingService constructs MeetingService. A nil notifier disables
// calendar notifications.
func NewMeetingService(repo meetingStore, holds calendarHoldReader, notify calendarNotifier, conflictTimeout time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *MeetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if conflictTimeout <= 0 {
		conflictTimeout = 2 * time.Second
	}
	return &MeetingService{
		repo:            repo,
		holds:           holds,
		notifier:        notify,
		conflictTimeout: conflictTimeout,
		metrics:         metrics,
		validator:       schedulingValidator(validate),
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// CheckConflict reports whether [clock, clock+duration) on date overlaps a
// pending or approved meeting or a calendar hold of the faculty member.
func (s *MeetingService) CheckConflict(ctx context.Context, facultyID, rawDate, clock string, duration int) (*dto.ConflictCheckResult, error) {
	date, err := parseDate(rawDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	if duration <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "duration must be positive")
	}
	candidate, err := rangeFrom(clock, duration)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "time must be HH:MM")
	}
	conflict, err := s.conflicts(ctx, facultyID, date, candidate)
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to check meeting conflicts")
	}
	return &dto.ConflictCheckResult{
		FacultyID: facultyID,
		Date:      date.Format(dateLayout),
		Time:      formatClock(candidate.start),
		Duration:  duration,
		Conflict:  conflict,
	}, nil
}

func (s *MeetingService) conflicts(ctx context.Context, facultyID string, date time.Time, candidate clockRange) (bool, error) {
	busy, err := busyRanges(ctx, s.repo, s.holds, facultyID, date)
	if err != nil {
		return false, err
	}
	return overlapsAny(candidate, busy), nil
}

// Request creates a pending meeting. An overlap is a conflict; a failing
// overlap check is logged and does not block the request.
func (s *MeetingService) Request(ctx context.Context, actor models.Actor, req RequestMeetingRequest) (*models.MeetingRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting payload")
	}
	if !actor.Is(models.RoleStudent) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may request meetings")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	today := s.now().Truncate(24 * time.Hour)
	if date.Before(today) {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "meetings cannot be requested in the past",
			map[string]interface{}{"date": req.Date})
	}
	candidate, err := rangeFrom(req.Time, req.Duration)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "time must be HH:MM")
	}

	checkCtx, cancel := context.WithTimeout(ctx, s.conflictTimeout)
	conflict, err := s.conflicts(checkCtx, req.FacultyID, date, candidate)
	cancel()
	switch {
	case err != nil:
		s.logger.Warn("meeting conflict check failed, accepting request",
			zap.String("faculty_id", req.FacultyID),
			zap.String("date", req.Date),
			zap.Error(err))
	case conflict:
		s.metrics.RecordMeetingConflict()
		return nil, appErrors.WithDetails(appErrors.ErrConflict,
			fmt.Sprintf("faculty already has a booking overlapping %s-%s", formatClock(candidate.start), formatClock(candidate.end)),
			map[string]interface{}{"date": req.Date, "time": req.Time, "duration": req.Duration})
	}

	meeting := &models.MeetingRequest{
		FacultyID:     req.FacultyID,
		StudentID:     actor.ID,
		RequestedDate: date,
		RequestedTime: formatClock(candidate.start),
		Duration:      req.Duration,
		Purpose:       req.Purpose,
		Status:        models.MeetingStatusPending,
		CreatedAt:     s.now(),
	}
	if err := s.repo.Create(ctx, meeting); err != nil {
		return nil, appErrors.Dependency(err, "failed to create meeting request")
	}
	s.notify(ctx, notifier.ActionBook, meeting)
	return meeting, nil
}

// Decide lets the faculty member approve or reject a pending meeting.
func (s *MeetingService) Decide(ctx context.Context, actor models.Actor, id string, req MeetingDecisionRequest) (*models.MeetingRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	if !actor.Is(models.RoleFaculty) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only faculty may decide on meetings")
	}
	meeting, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if meeting.FacultyID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "meeting belongs to another faculty member")
	}
	if meeting.Status != models.MeetingStatusPending {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, fmt.Sprintf("cannot decide on a meeting that is %s", meeting.Status),
			map[string]interface{}{"status": string(meeting.Status)})
	}
	next := models.MeetingStatusRejected
	if req.Decision == DecisionApprove {
		next = models.MeetingStatusApproved
	}
	if err := s.repo.UpdateStatus(ctx, meeting.ID, meeting.Status, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "meeting was modified concurrently")
		}
		return nil, appErrors.Dependency(err, "failed to update meeting")
	}
	meeting.Status = next
	meeting.UpdatedAt = s.now()
	action := notifier.ActionConfirm
	if next == models.MeetingStatusRejected {
		action = notifier.ActionRemove
	}
	s.notify(ctx, action, meeting)
	return meeting, nil
}

// Cancel lets the requesting student cancel a pending or approved meeting.
func (s *MeetingService) Cancel(ctx context.Context, actor models.Actor, id string) (*models.MeetingRequest, error) {
	if !actor.Is(models.RoleStudent) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may cancel meetings")
	}
	meeting, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if meeting.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requesting student may cancel this meeting")
	}
	if meeting.Status != models.MeetingStatusPending && meeting.Status != models.MeetingStatusApproved {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, fmt.Sprintf("cannot cancel a meeting that is %s", meeting.Status),
			map[string]interface{}{"status": string(meeting.Status)})
	}
	now := s.now()
	if err := s.repo.Cancel(ctx, meeting.ID, meeting.Status, actor.ID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "meeting was modified concurrently")
		}
		return nil, appErrors.Dependency(err, "failed to cancel meeting")
	}
	cancelledBy := actor.ID
	meeting.Status = models.MeetingStatusCancelled
	meeting.CancelledAt = &now
	meeting.CancelledBy = &cancelledBy
	meeting.UpdatedAt = now
	s.notify(ctx, notifier.ActionRemove, meeting)
	return meeting, nil
}

// List returns the caller's meetings.
func (s *MeetingService) List(ctx context.Context, actor models.Actor, req ListMeetingsRequest) ([]models.MeetingRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting filter")
	}
	filter := models.MeetingFilter{Status: req.Status}
	if req.Date != "" {
		date, err := parseDate(req.Date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
		}
		filter.Date = &date
	}
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.ID
	case models.RoleFaculty:
		filter.FacultyID = actor.ID
	case models.RoleAdmin:
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role not permitted to list meetings")
	}
	meetings, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to list meetings")
	}
	return meetings, nil
}

func (s *MeetingService) load(ctx context.Context, id string) (*models.MeetingRequest, error) {
	meeting, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, appErrors.Dependency(err, "failed to load meeting")
	}
	return meeting, nil
}

func (s *MeetingService) notify(ctx context.Context, action notifier.Action, meeting *models.MeetingRequest) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, notifier.Event{
		Action:    action,
		MeetingID: meeting.ID,
		FacultyID: meeting.FacultyID,
		StudentID: meeting.StudentID,
		Date:      meeting.RequestedDate.Format(dateLayout),
		StartTime: meeting.RequestedTime,
		Duration:  meeting.Duration,
		Purpose:   meeting.Purpose,
	})
}
