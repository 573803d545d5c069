package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/lock"
)

// Approval decisions.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Enrollment listing scopes for faculty callers.
const (
	EnrollmentScopeTeaching = "teaching"
	EnrollmentScopeAdvisees = "advisees"
)

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByStudentAndOffering(ctx context.Context, studentID, offeringID string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, update repository.EnrollmentStatusUpdate) error
}

type offeringReader interface {
	FindByID(ctx context.Context, id string) (*models.CourseOffering, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type semesterReader interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

type advisorReader interface {
	FindByStudent(ctx context.Context, studentID string) (*models.FacultyAdvisor, error)
	ListStudentIDsByFaculty(ctx context.Context, facultyID string) ([]string, error)
}

type eligibilityChecker interface {
	Validate(ctx context.Context, student *models.Student, offering *models.CourseOffering) error
}

// RequestEnrollmentRequest is a student's enrollment request.
type RequestEnrollmentRequest struct {
	OfferingID     string                `json:"offering_id" validate:"required"`
	EnrollmentType models.EnrollmentType `json:"enrollment_type" validate:"omitempty,oneof=credit minor concentration"`
}

// ApproveEnrollmentRequest is a faculty or advisor decision on a pending enrollment.
type ApproveEnrollmentRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	OfferingID string `json:"offering_id" validate:"required"`
	Decision   string `json:"decision" validate:"required,oneof=approve reject"`
}

// DirectEnrollRequest lets the offering's faculty enroll a student outright.
type DirectEnrollRequest struct {
	StudentID      string                `json:"student_id" validate:"required"`
	OfferingID     string                `json:"offering_id" validate:"required"`
	EnrollmentType models.EnrollmentType `json:"enrollment_type" validate:"omitempty,oneof=credit minor concentration"`
}

// ListEnrollmentsRequest narrows an enrollment listing.
type ListEnrollmentsRequest struct {
	Scope      string                  `form:"scope" validate:"omitempty,oneof=teaching advisees"`
	Status     models.EnrollmentStatus `form:"status" validate:"omitempty,oneof=pending_faculty pending_advisor enrolled rejected withdrawn"`
	SemesterID string                  `form:"semester_id"`
	OfferingID string                  `form:"offering_id"`
	StudentID  string                  `form:"student_id"`
	Page       int                     `form:"page"`
	PageSize   int                     `form:"page_size"`
}

// EnrollmentOptions tunes the workflow.
type EnrollmentOptions struct {
	WithdrawalWindowDays int
	LockTTL              time.Duration
}

// EnrollmentService drives enrollments through the approval state machine.
type EnrollmentService struct {
	repo        enrollmentStore
	offerings   offeringReader
	students    studentReader
	semesters   semesterReader
	advisors    advisorReader
	eligibility eligibilityChecker
	locker      lock.Locker
	cache       *CacheService
	opts        EnrollmentOptions
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewEnrollmentService constructs EnrollmentService. A nil locker falls back to
// an in-process keyed mutex. cache may be nil.
func NewEnrollmentService(
	repo enrollmentStore,
	offerings offeringReader,
	students studentReader,
	semesters semesterReader,
	advisors advisorReader,
	eligibility eligibilityChecker,
	locker lock.Locker,
	cache *CacheService,
	opts EnrollmentOptions,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if opts.WithdrawalWindowDays <= 0 {
		opts.WithdrawalWindowDays = 14
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Second
	}
	return &EnrollmentService{
		repo:        repo,
		offerings:   offerings,
		students:    students,
		semesters:   semesters,
		advisors:    advisors,
		eligibility: eligibility,
		locker:      locker,
		cache:       cache,
		opts:        opts,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns enrollments visible to the actor with pagination metadata.
// Students see their own rows, faculty see their offerings or advisees, and
// admins see everything.
func (s *EnrollmentService) List(ctx context.Context, actor models.Actor, req ListEnrollmentsRequest) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment filter")
	}
	filter := models.EnrollmentFilter{
		Status:     req.Status,
		SemesterID: req.SemesterID,
		OfferingID: req.OfferingID,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size}

	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.ID
	case models.RoleFaculty:
		if req.Scope == EnrollmentScopeAdvisees {
			advisees, err := s.advisors.ListStudentIDsByFaculty(ctx, actor.ID)
			if err != nil {
				return nil, nil, appErrors.Dependency(err, "failed to list advisees")
			}
			if len(advisees) == 0 {
				return []models.EnrollmentDetail{}, pagination, nil
			}
			filter.StudentIDs = advisees
		} else {
			filter.FacultyID = actor.ID
		}
		filter.StudentID = req.StudentID
	case models.RoleAdmin:
		filter.StudentID = req.StudentID
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "role not permitted to list enrollments")
	}

	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Dependency(err, "failed to list enrollments")
	}
	pagination.TotalCount = total
	return enrollments, pagination, nil
}

// Request creates a pending_faculty enrollment for the calling student once the
// offering is open and the eligibility checks pass.
func (s *EnrollmentService) Request(ctx context.Context, actor models.Actor, req RequestEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if !actor.Is(models.RoleStudent) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may request enrollment")
	}
	status, err := TransitionEnrollment(enrollmentStatusNew, EnrollmentActionRequest, EnrollmentActorStudent)
	if err != nil {
		return nil, err
	}

	offering, err := s.openOffering(ctx, req.OfferingID)
	if err != nil {
		return nil, err
	}
	student, err := s.loadStudent(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, student.ID, offering.SemesterID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.ensureNotEnrolled(ctx, student.ID, offering.ID); err != nil {
		return nil, err
	}
	if err := s.eligibility.Validate(ctx, student, offering); err != nil {
		s.metrics.RecordEnrollmentDecision(EnrollmentActionRequest, err)
		return nil, err
	}

	enrollment := &models.Enrollment{
		StudentID:      student.ID,
		OfferingID:     offering.ID,
		Status:         status,
		EnrollmentType: enrollmentTypeOrDefault(req.EnrollmentType),
		CreatedAt:      s.now(),
	}
	if err := s.create(ctx, enrollment); err != nil {
		return nil, err
	}
	s.metrics.RecordEnrollmentDecision(EnrollmentActionRequest, nil)
	s.logger.Info("enrollment requested",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", student.ID),
		zap.String("offering_id", offering.ID))
	return enrollment, nil
}

// Approve applies a faculty or advisor decision. The stage is taken from the
// enrollment's current status and the caller must hold that stage's role for
// this enrollment.
func (s *EnrollmentService) Approve(ctx context.Context, actor models.Actor, req ApproveEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	if !actor.Is(models.RoleFaculty) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only faculty may decide on enrollments")
	}

	enrollment, err := s.repo.FindByStudentAndOffering(ctx, req.StudentID, req.OfferingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Dependency(err, "failed to load enrollment")
	}
	offering, err := s.loadOffering(ctx, enrollment.OfferingID)
	if err != nil {
		return nil, err
	}

	stage := EnrollmentActorCourseFaculty
	switch enrollment.Status {
	case models.EnrollmentStatusPendingFaculty:
		if offering.FacultyID != actor.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the offering's faculty may decide at this stage")
		}
	case models.EnrollmentStatusPendingAdvisor:
		stage = EnrollmentActorAdvisor
		if err := s.ensureAdvisor(ctx, enrollment.StudentID, actor.ID); err != nil {
			return nil, err
		}
	default:
		if err := s.ensureParticipant(ctx, offering, enrollment.StudentID, actor.ID); err != nil {
			return nil, err
		}
	}

	action := decisionAction(stage, req.Decision)
	next, err := TransitionEnrollment(enrollment.Status, action, stage)
	s.metrics.RecordEnrollmentDecision(action, err)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, enrollment, next); err != nil {
		return nil, err
	}
	s.logger.Info("enrollment decided",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("action", string(action)),
		zap.String("actor_id", actor.ID))
	return enrollment, nil
}

// DirectEnroll lets the offering's faculty create an enrolled row or fast-track
// a pending one.
func (s *EnrollmentService) DirectEnroll(ctx context.Context, actor models.Actor, req DirectEnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid direct enrollment payload")
	}
	if !actor.Is(models.RoleFaculty) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only faculty may enroll students directly")
	}
	offering, err := s.openOffering(ctx, req.OfferingID)
	if err != nil {
		return nil, err
	}
	if offering.FacultyID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the offering's faculty may enroll students directly")
	}
	student, err := s.loadStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, student.ID, offering.SemesterID)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := s.repo.FindByStudentAndOffering(ctx, student.ID, offering.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Dependency(err, "failed to load enrollment")
	}

	if existing != nil {
		next, err := TransitionEnrollment(existing.Status, EnrollmentActionDirectEnroll, EnrollmentActorCourseFaculty)
		s.metrics.RecordEnrollmentDecision(EnrollmentActionDirectEnroll, err)
		if err != nil {
			return nil, err
		}
		if err := s.transition(ctx, existing, next); err != nil {
			return nil, err
		}
		return existing, nil
	}

	next, err := TransitionEnrollment(enrollmentStatusNew, EnrollmentActionDirectEnroll, EnrollmentActorCourseFaculty)
	if err != nil {
		return nil, err
	}
	if err := s.eligibility.Validate(ctx, student, offering); err != nil {
		s.metrics.RecordEnrollmentDecision(EnrollmentActionDirectEnroll, err)
		return nil, err
	}
	now := s.now()
	enrollment := &models.Enrollment{
		StudentID:      student.ID,
		OfferingID:     offering.ID,
		Status:         next,
		EnrollmentType: enrollmentTypeOrDefault(req.EnrollmentType),
		EnrolledAt:     &now,
		CreatedAt:      now,
	}
	if err := s.create(ctx, enrollment); err != nil {
		return nil, err
	}
	s.metrics.RecordEnrollmentDecision(EnrollmentActionDirectEnroll, nil)
	return enrollment, nil
}

// Withdraw drops an enrolled course while the semester's withdrawal window is open.
func (s *EnrollmentService) Withdraw(ctx context.Context, actor models.Actor, enrollmentID string) (*models.Enrollment, error) {
	if !actor.Is(models.RoleStudent) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may withdraw")
	}
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Dependency(err, "failed to load enrollment")
	}
	if enrollment.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}

	offering, err := s.loadOffering(ctx, enrollment.OfferingID)
	if err != nil {
		return nil, err
	}
	semester, err := s.semesters.FindByID(ctx, offering.SemesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Dependency(err, "failed to load semester")
	}
	now := s.now()

	next, err := TransitionEnrollment(enrollment.Status, EnrollmentActionWithdraw, EnrollmentActorStudent)
	if err != nil {
		err = withElapsedDays(err, elapsedDays(semester.StartDate, now))
		s.metrics.RecordEnrollmentDecision(EnrollmentActionWithdraw, err)
		return nil, err
	}
	if err := checkWithdrawalWindow(semester.StartDate, now, s.opts.WithdrawalWindowDays); err != nil {
		s.metrics.RecordEnrollmentDecision(EnrollmentActionWithdraw, err)
		return nil, err
	}
	if err := s.transition(ctx, enrollment, next); err != nil {
		return nil, err
	}
	s.metrics.RecordEnrollmentDecision(EnrollmentActionWithdraw, nil)
	return enrollment, nil
}

func (s *EnrollmentService) transition(ctx context.Context, enrollment *models.Enrollment, next models.EnrollmentStatus) error {
	now := s.now()
	update := repository.EnrollmentStatusUpdate{ID: enrollment.ID, From: enrollment.Status, To: next}
	switch next {
	case models.EnrollmentStatusEnrolled:
		update.EnrolledAt = &now
	case models.EnrollmentStatusWithdrawn:
		update.DroppedAt = &now
	}
	if err := s.repo.UpdateStatus(ctx, update); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "enrollment was modified concurrently")
		}
		return appErrors.Dependency(err, "failed to update enrollment")
	}
	enrollment.Status = next
	enrollment.UpdatedAt = now
	if update.EnrolledAt != nil {
		enrollment.EnrolledAt = update.EnrolledAt
	}
	if update.DroppedAt != nil {
		enrollment.DroppedAt = update.DroppedAt
	}
	s.invalidateTranscript(ctx, enrollment.StudentID)
	return nil
}

func (s *EnrollmentService) create(ctx context.Context, enrollment *models.Enrollment) error {
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return appErrors.Clone(appErrors.ErrConflict, "student already has an enrollment for this offering")
		}
		return appErrors.Dependency(err, "failed to create enrollment")
	}
	s.invalidateTranscript(ctx, enrollment.StudentID)
	return nil
}

// invalidateTranscript drops the student's cached transcript after a status
// change. A failed delete is logged by the cache service and otherwise ignored.
func (s *EnrollmentService) invalidateTranscript(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.InvalidateTranscript(ctx, studentID)
}

func (s *EnrollmentService) ensureNotEnrolled(ctx context.Context, studentID, offeringID string) error {
	_, err := s.repo.FindByStudentAndOffering(ctx, studentID, offeringID)
	switch {
	case err == nil:
		return appErrors.Clone(appErrors.ErrConflict, "student already has an enrollment for this offering")
	case errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		return appErrors.Dependency(err, "failed to check existing enrollment")
	}
}

func (s *EnrollmentService) ensureAdvisor(ctx context.Context, studentID, facultyID string) error {
	advisor, err := s.advisors.FindByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "student has no recorded advisor")
		}
		return appErrors.Dependency(err, "failed to load advisor")
	}
	if advisor.FacultyID != facultyID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the student's advisor may decide at this stage")
	}
	return nil
}

// ensureParticipant admits the offering's faculty or the student's advisor.
func (s *EnrollmentService) ensureParticipant(ctx context.Context, offering *models.CourseOffering, studentID, facultyID string) error {
	if offering.FacultyID == facultyID {
		return nil
	}
	advisor, err := s.advisors.FindByStudent(ctx, studentID)
	switch {
	case err == nil && advisor.FacultyID == facultyID:
		return nil
	case err == nil || errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrForbidden, "only the offering's faculty or the student's advisor may decide on this enrollment")
	default:
		return appErrors.Dependency(err, "failed to load advisor")
	}
}

func (s *EnrollmentService) loadOffering(ctx context.Context, id string) (*models.CourseOffering, error) {
	offering, err := s.offerings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Dependency(err, "failed to load offering")
	}
	return offering, nil
}

func (s *EnrollmentService) openOffering(ctx context.Context, id string) (*models.CourseOffering, error) {
	offering, err := s.loadOffering(ctx, id)
	if err != nil {
		return nil, err
	}
	if offering.Status != models.OfferingStatusApproved {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "offering is not open for enrollment",
			map[string]interface{}{"offering_status": string(offering.Status)})
	}
	return offering, nil
}

func (s *EnrollmentService) loadStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Dependency(err, "failed to load student")
	}
	return student, nil
}

// acquire serialises enrollment acceptance per (student, semester).
func (s *EnrollmentService) acquire(ctx context.Context, studentID, semesterID string) (lock.Release, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.opts.LockTTL)
	defer cancel()
	release, err := s.locker.Acquire(lockCtx, enrollmentLockKey(studentID, semesterID), s.opts.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "another enrollment change for this semester is in progress")
		}
		return nil, appErrors.Dependency(err, "failed to acquire enrollment lock")
	}
	return release, nil
}

func enrollmentLockKey(studentID, semesterID string) string {
	return fmt.Sprintf("enrollment:%s:%s", studentID, semesterID)
}

func enrollmentTypeOrDefault(t models.EnrollmentType) models.EnrollmentType {
	if t == "" {
		return models.EnrollmentTypeCredit
	}
	return t
}
