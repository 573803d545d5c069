package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/export"
)

type gradeStore interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error)
	FindByStudentAndOffering(ctx context.Context, studentID, offeringID string) (*models.Grade, error)
	Upsert(ctx context.Context, grade *models.Grade) error
	Create(ctx context.Context, grade *models.Grade) error
	UpdateLetter(ctx context.Context, id string, letter *string, submittedBy string, submittedAt time.Time) error
	Approve(ctx context.Context, ids []string, approvedAt time.Time) (int64, error)
	Scale(ctx context.Context) ([]models.GradeScaleEntry, error)
	TranscriptRows(ctx context.Context, studentID string) ([]models.TranscriptRow, error)
}

type enrollmentLookup interface {
	FindByStudentAndOffering(ctx context.Context, studentID, offeringID string) (*models.Enrollment, error)
}

type documentRenderer interface {
	Render(doc export.Document) ([]byte, error)
	ContentType() string
	Extension() string
}

// SubmitGradeRequest records a letter grade for a student in an offering.
type SubmitGradeRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	OfferingID string `json:"offering_id" validate:"required"`
	Grade      string `json:"grade" validate:"required,max=4"`
}

// ApproveGradesRequest finalises a batch of pending grades.
type ApproveGradesRequest struct {
	GradeIDs []string `json:"grade_ids" validate:"required,min=1,dive,required"`
}

// ListGradesRequest narrows a grade listing.
type ListGradesRequest struct {
	StudentID  string             `form:"student_id"`
	OfferingID string             `form:"offering_id"`
	Status     models.GradeStatus `form:"status" validate:"omitempty,oneof=pending approved"`
}

// TranscriptExport is a rendered transcript file.
type TranscriptExport struct {
	Filename    string
	ContentType string
	Content     []byte
}

// GradeService stores grades and computes transcripts and GPAs.
type GradeService struct {
	repo        gradeStore
	enrollments enrollmentLookup
	offerings   offeringReader
	semesters   semesterReader
	students    studentReader
	cache       *CacheService
	cacheTTL    time.Duration
	renderers   map[string]documentRenderer
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewGradeService constructs GradeService. The cache may be nil.
func NewGradeService(
	repo gradeStore,
	enrollments enrollmentLookup,
	offerings offeringReader,
	semesters semesterReader,
	students studentReader,
	cache *CacheService,
	cacheTTL time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		repo:        repo,
		enrollments: enrollments,
		offerings:   offerings,
		semesters:   semesters,
		students:    students,
		cache:       cache,
		cacheTTL:    cacheTTL,
		renderers: map[string]documentRenderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit writes a letter grade. Faculty of the offering upsert and return the
// row to pending; admins update an existing row in place or insert a new one.
func (s *GradeService) Submit(ctx context.Context, actor models.Actor, req SubmitGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if !actor.Is(models.RoleFaculty) && !actor.Is(models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only faculty or admins may submit grades")
	}

	offering, err := s.offerings.FindByID(ctx, req.OfferingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Dependency(err, "failed to load offering")
	}
	if actor.Is(models.RoleFaculty) && offering.FacultyID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the offering's faculty may grade it")
	}

	enrollment, err := s.enrollments.FindByStudentAndOffering(ctx, req.StudentID, req.OfferingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in this offering")
		}
		return nil, appErrors.Dependency(err, "failed to load enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot grade a rejected enrollment")
	}

	if actor.Is(models.RoleFaculty) {
		semester, err := s.semesters.FindByID(ctx, offering.SemesterID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
			}
			return nil, appErrors.Dependency(err, "failed to load semester")
		}
		if semester.GradeLocked {
			return nil, appErrors.WithDetails(appErrors.ErrValidation, "grades for this semester are locked",
				map[string]interface{}{"semester_id": semester.ID})
		}
	}

	scale, err := s.scale(ctx)
	if err != nil {
		return nil, err
	}
	letter := normalizeLetter(req.Grade)
	if !scale.Has(letter) {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, fmt.Sprintf("grade %q is not in the grade scale", letter),
			map[string]interface{}{"allowed": scale.letters()})
	}

	grade := &models.Grade{
		StudentID:   req.StudentID,
		OfferingID:  req.OfferingID,
		Grade:       &letter,
		Status:      models.GradeStatusPending,
		SubmittedBy: actor.ID,
		SubmittedAt: s.now(),
	}
	if actor.Is(models.RoleFaculty) {
		if err := s.repo.Upsert(ctx, grade); err != nil {
			return nil, appErrors.Dependency(err, "failed to save grade")
		}
	} else if grade, err = s.adminWrite(ctx, grade); err != nil {
		return nil, err
	}

	s.invalidate(ctx, req.StudentID)
	s.logger.Info("grade submitted",
		zap.String("student_id", req.StudentID),
		zap.String("offering_id", req.OfferingID),
		zap.String("submitted_by", actor.ID))
	return grade, nil
}

func (s *GradeService) adminWrite(ctx context.Context, grade *models.Grade) (*models.Grade, error) {
	existing, err := s.repo.FindByStudentAndOffering(ctx, grade.StudentID, grade.OfferingID)
	switch {
	case err == nil:
		if err := s.repo.UpdateLetter(ctx, existing.ID, grade.Grade, grade.SubmittedBy, grade.SubmittedAt); err != nil {
			return nil, appErrors.Dependency(err, "failed to update grade")
		}
		existing.Grade = grade.Grade
		existing.SubmittedBy = grade.SubmittedBy
		existing.SubmittedAt = grade.SubmittedAt
		return existing, nil
	case errors.Is(err, sql.ErrNoRows):
		grade.Attempt = 1
		if err := s.repo.Create(ctx, grade); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "grade was created concurrently")
			}
			return nil, appErrors.Dependency(err, "failed to create grade")
		}
		return grade, nil
	default:
		return nil, appErrors.Dependency(err, "failed to load grade")
	}
}

// Approve finalises pending grades and returns how many rows changed.
func (s *GradeService) Approve(ctx context.Context, actor models.Actor, req ApproveGradesRequest) (*dto.ApproveGradesResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	if !actor.Is(models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may approve grades")
	}
	count, err := s.repo.Approve(ctx, req.GradeIDs, s.now())
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to approve grades")
	}
	if count > 0 {
		s.invalidate(ctx, "")
	}
	s.logger.Info("grades approved", zap.Int("requested", len(req.GradeIDs)), zap.Int64("approved", count))
	return &dto.ApproveGradesResult{Approved: count}, nil
}

// List returns grades for administrative review.
func (s *GradeService) List(ctx context.Context, actor models.Actor, req ListGradesRequest) ([]models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade filter")
	}
	if !actor.Is(models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may list grades")
	}
	grades, err := s.repo.List(ctx, models.GradeFilter{StudentID: req.StudentID, OfferingID: req.OfferingID, Status: req.Status})
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to list grades")
	}
	return grades, nil
}

// Transcript returns the student's semesters newest first with SGPA and the
// running CGPA.
func (s *GradeService) Transcript(ctx context.Context, actor models.Actor, studentID string) (*dto.Transcript, error) {
	if err := authorizeRecordAccess(actor, studentID); err != nil {
		return nil, err
	}
	var cached dto.Transcript
	if hit, _ := s.cache.Get(ctx, TranscriptCacheKey(studentID), &cached); hit {
		return &cached, nil
	}

	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Dependency(err, "failed to load student")
	}
	scale, err := s.scale(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.TranscriptRows(ctx, studentID)
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to load transcript")
	}
	transcript := ComputeTranscript(studentID, rows, scale)
	_ = s.cache.Set(ctx, TranscriptCacheKey(studentID), transcript, s.cacheTTL)
	return transcript, nil
}

// CGPA returns the cumulative summary of the student's transcript.
func (s *GradeService) CGPA(ctx context.Context, actor models.Actor, studentID string) (*dto.CGPASummary, error) {
	transcript, err := s.Transcript(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}
	return &dto.CGPASummary{
		StudentID:         studentID,
		CGPA:              transcript.CGPA,
		TotalCredits:      transcript.TotalCredits,
		RegisteredCredits: transcript.RegisteredCredits,
	}, nil
}

// ExportTranscript renders the transcript as csv or pdf.
func (s *GradeService) ExportTranscript(ctx context.Context, actor models.Actor, studentID, format string) (*TranscriptExport, error) {
	renderer, ok := s.renderers[strings.ToLower(format)]
	if !ok {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format),
			map[string]interface{}{"allowed": []string{"csv", "pdf"}})
	}
	transcript, err := s.Transcript(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}
	content, err := renderer.Render(transcriptDocument(transcript))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
	}
	return &TranscriptExport{
		Filename:    fmt.Sprintf("transcript-%s.%s", studentID, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Content:     content,
	}, nil
}

func (s *GradeService) scale(ctx context.Context) (GradeScale, error) {
	entries, err := s.repo.Scale(ctx)
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to load grade scale")
	}
	return NewGradeScale(entries), nil
}

func (s *GradeService) invalidate(ctx context.Context, studentID string) {
	_ = s.cache.InvalidateTranscript(ctx, studentID)
}

// authorizeRecordAccess lets students read only their own records.
func authorizeRecordAccess(actor models.Actor, studentID string) error {
	switch actor.Role {
	case models.RoleFaculty, models.RoleAdmin:
		return nil
	case models.RoleStudent:
		if actor.ID == studentID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not allowed to read this student's records")
}

func (s GradeScale) letters() []string {
	letters := make([]string, 0, len(s))
	for letter := range s {
		letters = append(letters, letter)
	}
	sort.Strings(letters)
	return letters
}

func transcriptDocument(transcript *dto.Transcript) export.Document {
	doc := export.Document{
		Title:    "Academic Transcript",
		Subtitle: "Student " + transcript.StudentID,
		Headers:  []string{"Code", "Title", "Credits", "Type", "Status", "Grade"},
		Summary: []string{
			fmt.Sprintf("CGPA: %.2f", transcript.CGPA),
			fmt.Sprintf("GPA credits: %d", transcript.TotalCredits),
			fmt.Sprintf("Registered credits: %d", transcript.RegisteredCredits),
		},
	}
	for _, semester := range transcript.Semesters {
		section := export.Section{
			Heading: semester.SemesterName,
			Footer: []string{
				fmt.Sprintf("SGPA %.2f | CGPA %.2f | registered credits %d", semester.SGPA, semester.CGPA, semester.RegisteredCredits),
			},
		}
		for _, course := range semester.Courses {
			grade := "-"
			if course.Grade != nil {
				grade = *course.Grade
			}
			section.Rows = append(section.Rows, []string{
				course.CourseCode,
				course.CourseTitle,
				fmt.Sprintf("%d", course.Credits),
				string(course.EnrollmentType),
				string(course.Status),
				grade,
			})
		}
		doc.Sections = append(doc.Sections, section)
	}
	return doc
}
