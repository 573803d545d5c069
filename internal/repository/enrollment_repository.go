package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// EnrollmentStatusUpdate moves an enrollment from one status to another. The
// update only applies while the row still holds From.
type EnrollmentStatusUpdate struct {
	ID         string
	From       models.EnrollmentStatus
	To         models.EnrollmentStatus
	EnrolledAt *time.Time
	DroppedAt  *time.Time
}

const enrollmentColumns = `e.id, e.student_id, e.offering_id, e.status, e.enrollment_type, e.enrolled_at, e.dropped_at, e.created_at, e.updated_at`

// List returns enrollments joined with course and semester data.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN course_offerings o ON o.id = e.offering_id
JOIN courses c ON c.id = o.course_id
JOIN semesters s ON s.id = o.semester_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if len(filter.StudentIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("e.student_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.StudentIDs))
	}
	if filter.OfferingID != "" {
		conditions = append(conditions, fmt.Sprintf("e.offering_id = $%d", len(args)+1))
		args = append(args, filter.OfferingID)
	}
	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("o.faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}
	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("o.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s,
        c.code AS course_code, c.title AS course_title, c.credits, o.semester_id, s.name AS semester_name, o.faculty_id
        %s ORDER BY e.created_at DESC LIMIT %d OFFSET %d`, enrollmentColumns, base+clause, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByStudentAndOffering returns the enrollment for the unique pair.
func (r *EnrollmentRepository) FindByStudentAndOffering(ctx context.Context, studentID, offeringID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.student_id = $1 AND e.offering_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, offeringID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// SumCreditsBySemester totals the credits of the student's non-rejected
// enrollments in a semester.
func (r *EnrollmentRepository) SumCreditsBySemester(ctx context.Context, studentID, semesterID string) (int, error) {
	const query = `SELECT COALESCE(SUM(c.credits), 0)
        FROM enrollments e
        JOIN course_offerings o ON o.id = e.offering_id
        JOIN courses c ON c.id = o.course_id
        WHERE e.student_id = $1 AND o.semester_id = $2 AND e.status <> $3`
	var total int
	if err := r.db.GetContext(ctx, &total, query, studentID, semesterID, models.EnrollmentStatusRejected); err != nil {
		return 0, fmt.Errorf("sum semester credits: %w", err)
	}
	return total, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = enrollment.CreatedAt
	if enrollment.EnrollmentType == "" {
		enrollment.EnrollmentType = models.EnrollmentTypeCredit
	}
	const query = `INSERT INTO enrollments (id, student_id, offering_id, status, enrollment_type, enrolled_at, dropped_at, created_at, updated_at)
        VALUES (:id, :student_id, :offering_id, :status, :enrollment_type, :enrolled_at, :dropped_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("create enrollment: %w", ErrDuplicate)
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus applies a status transition. It returns sql.ErrNoRows when the
// row no longer holds the expected status.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, update EnrollmentStatusUpdate) error {
	const query = `UPDATE enrollments SET status = $3,
        enrolled_at = COALESCE($4, enrolled_at),
        dropped_at = COALESCE($5, dropped_at),
        updated_at = NOW()
        WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, update.ID, update.From, update.To, update.EnrolledAt, update.DroppedAt)
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("enrollment status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
