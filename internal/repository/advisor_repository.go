package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// AdvisorRepository persists faculty advisor assignments.
type AdvisorRepository struct {
	db *sqlx.DB
}

// NewAdvisorRepository constructs the repository.
func NewAdvisorRepository(db *sqlx.DB) *AdvisorRepository {
	return &AdvisorRepository{db: db}
}

// FindByStudent returns the current advisor of a student.
func (r *AdvisorRepository) FindByStudent(ctx context.Context, studentID string) (*models.FacultyAdvisor, error) {
	const query = `SELECT student_id, faculty_id, assigned_at FROM faculty_advisors WHERE student_id = $1`
	var advisor models.FacultyAdvisor
	if err := r.db.GetContext(ctx, &advisor, query, studentID); err != nil {
		return nil, err
	}
	return &advisor, nil
}

// ListStudentIDsByFaculty returns the advisees of a faculty member.
func (r *AdvisorRepository) ListStudentIDsByFaculty(ctx context.Context, facultyID string) ([]string, error) {
	const query = `SELECT student_id FROM faculty_advisors WHERE faculty_id = $1 ORDER BY student_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, facultyID); err != nil {
		return nil, fmt.Errorf("list advisees: %w", err)
	}
	return ids, nil
}

// Upsert records the advisor for a student, replacing any previous one.
func (r *AdvisorRepository) Upsert(ctx context.Context, advisor *models.FacultyAdvisor) error {
	if advisor.AssignedAt.IsZero() {
		advisor.AssignedAt = time.Now().UTC()
	}
	const query = `INSERT INTO faculty_advisors (student_id, faculty_id, assigned_at)
        VALUES (:student_id, :faculty_id, :assigned_at)
        ON CONFLICT (student_id) DO UPDATE SET faculty_id = EXCLUDED.faculty_id, assigned_at = EXCLUDED.assigned_at`
	if _, err := r.db.NamedExecContext(ctx, query, advisor); err != nil {
		return fmt.Errorf("upsert advisor: %w", err)
	}
	return nil
}
