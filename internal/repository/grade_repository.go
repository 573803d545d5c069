package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// GradeRepository handles grade persistence, the grade scale and transcript reads.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

const gradeColumns = `id, student_id, offering_id, grade, attempt, status, submitted_by, submitted_at, approved_at`

// List returns grades matching the filter, newest submission first.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	query := `SELECT ` + gradeColumns + ` FROM grades WHERE 1=1`
	var args []interface{}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.OfferingID != "" {
		query += fmt.Sprintf(" AND offering_id = $%d", len(args)+1)
		args = append(args, filter.OfferingID)
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	query += " ORDER BY submitted_at DESC"
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// FindByStudentAndOffering returns the grade row for the unique pair.
func (r *GradeRepository) FindByStudentAndOffering(ctx context.Context, studentID, offeringID string) (*models.Grade, error) {
	query := `SELECT ` + gradeColumns + ` FROM grades WHERE student_id = $1 AND offering_id = $2`
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, studentID, offeringID); err != nil {
		return nil, err
	}
	return &grade, nil
}

// Upsert writes a faculty submission. A resubmitted letter returns the row to
// pending and clears any earlier approval.
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.Grade) error {
	prepareGrade(grade)
	const query = `INSERT INTO grades (id, student_id, offering_id, grade, attempt, status, submitted_by, submitted_at, approved_at)
        VALUES (:id, :student_id, :offering_id, :grade, :attempt, :status, :submitted_by, :submitted_at, NULL)
        ON CONFLICT (student_id, offering_id)
        DO UPDATE SET grade = EXCLUDED.grade, status = EXCLUDED.status, submitted_by = EXCLUDED.submitted_by,
            submitted_at = EXCLUDED.submitted_at, approved_at = NULL
        RETURNING id, attempt`
	rows, err := r.db.NamedQueryContext(ctx, query, grade)
	if err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&grade.ID, &grade.Attempt); err != nil {
			return fmt.Errorf("scan upserted grade: %w", err)
		}
	}
	return rows.Err()
}

// Create inserts a grade row.
func (r *GradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	prepareGrade(grade)
	const query = `INSERT INTO grades (id, student_id, offering_id, grade, attempt, status, submitted_by, submitted_at, approved_at)
        VALUES (:id, :student_id, :offering_id, :grade, :attempt, :status, :submitted_by, :submitted_at, :approved_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("create grade: %w", ErrDuplicate)
		}
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

// UpdateLetter replaces the letter of an existing row without touching its
// approval status.
func (r *GradeRepository) UpdateLetter(ctx context.Context, id string, letter *string, submittedBy string, submittedAt time.Time) error {
	const query = `UPDATE grades SET grade = $2, submitted_by = $3, submitted_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, letter, submittedBy, submittedAt); err != nil {
		return fmt.Errorf("update grade letter: %w", err)
	}
	return nil
}

// Approve moves pending grades to approved and returns how many rows changed.
func (r *GradeRepository) Approve(ctx context.Context, ids []string, approvedAt time.Time) (int64, error) {
	const query = `UPDATE grades SET status = $1, approved_at = $2 WHERE id = ANY($3) AND status = $4`
	res, err := r.db.ExecContext(ctx, query, models.GradeStatusApproved, approvedAt, pq.Array(ids), models.GradeStatusPending)
	if err != nil {
		return 0, fmt.Errorf("approve grades: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("approved grades rows affected: %w", err)
	}
	return affected, nil
}

// Scale returns the letter-to-grade-point reference table.
func (r *GradeRepository) Scale(ctx context.Context) ([]models.GradeScaleEntry, error) {
	const query = `SELECT letter, grade_point FROM grade_scale ORDER BY grade_point DESC`
	var entries []models.GradeScaleEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("load grade scale: %w", err)
	}
	return entries, nil
}

// TranscriptRows returns one row per enrollment of the student joined with
// course, semester and grade data.
func (r *GradeRepository) TranscriptRows(ctx context.Context, studentID string) ([]models.TranscriptRow, error) {
	const query = `SELECT e.id AS enrollment_id, e.offering_id, o.semester_id, s.name AS semester_name,
        s.start_date AS semester_start_date, c.code AS course_code, c.title AS course_title, c.credits,
        e.status, e.enrollment_type, g.grade, g.status AS grade_status
        FROM enrollments e
        JOIN course_offerings o ON o.id = e.offering_id
        JOIN courses c ON c.id = o.course_id
        JOIN semesters s ON s.id = o.semester_id
        LEFT JOIN grades g ON g.student_id = e.student_id AND g.offering_id = e.offering_id
        WHERE e.student_id = $1
        ORDER BY s.start_date ASC, c.code ASC`
	var rows []models.TranscriptRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("load transcript rows: %w", err)
	}
	return rows, nil
}

func prepareGrade(grade *models.Grade) {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	if grade.Attempt <= 0 {
		grade.Attempt = 1
	}
	if grade.Status == "" {
		grade.Status = models.GradeStatusPending
	}
	if grade.SubmittedAt.IsZero() {
		grade.SubmittedAt = time.Now().UTC()
	}
}
