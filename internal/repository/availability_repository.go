package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// AvailabilityRepository persists weekly faculty availability windows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

const availabilityColumns = `id, faculty_id, day_of_week, to_char(start_time, 'HH24:MI') AS start_time, to_char(end_time, 'HH24:MI') AS end_time, slot_duration, created_at`

// Exists reports whether the faculty already has a window starting at the
// given day and time.
func (r *AvailabilityRepository) Exists(ctx context.Context, facultyID string, dayOfWeek int, startTime string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM faculty_availability WHERE faculty_id = $1 AND day_of_week = $2 AND start_time = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, facultyID, dayOfWeek, startTime); err != nil {
		return false, fmt.Errorf("check availability: %w", err)
	}
	return exists, nil
}

// Create inserts a window. Duplicate (faculty, day, start) triples yield ErrDuplicate.
func (r *AvailabilityRepository) Create(ctx context.Context, slot *models.FacultyAvailability) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO faculty_availability (id, faculty_id, day_of_week, start_time, end_time, slot_duration, created_at)
        VALUES (:id, :faculty_id, :day_of_week, :start_time, :end_time, :slot_duration, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("create availability: %w", ErrDuplicate)
		}
		return fmt.Errorf("create availability: %w", err)
	}
	return nil
}

// FindByID returns a window.
func (r *AvailabilityRepository) FindByID(ctx context.Context, id string) (*models.FacultyAvailability, error) {
	query := `SELECT ` + availabilityColumns + ` FROM faculty_availability WHERE id = $1`
	var slot models.FacultyAvailability
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ListByFaculty returns all windows of a faculty member ordered by day and time.
func (r *AvailabilityRepository) ListByFaculty(ctx context.Context, facultyID string) ([]models.FacultyAvailability, error) {
	query := `SELECT ` + availabilityColumns + ` FROM faculty_availability WHERE faculty_id = $1 ORDER BY day_of_week, start_time`
	var slots []models.FacultyAvailability
	if err := r.db.SelectContext(ctx, &slots, query, facultyID); err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return slots, nil
}

// ListByFacultyAndDay returns the windows on one weekday.
func (r *AvailabilityRepository) ListByFacultyAndDay(ctx context.Context, facultyID string, dayOfWeek int) ([]models.FacultyAvailability, error) {
	query := `SELECT ` + availabilityColumns + ` FROM faculty_availability WHERE faculty_id = $1 AND day_of_week = $2 ORDER BY start_time`
	var slots []models.FacultyAvailability
	if err := r.db.SelectContext(ctx, &slots, query, facultyID, dayOfWeek); err != nil {
		return nil, fmt.Errorf("list availability by day: %w", err)
	}
	return slots, nil
}

// Delete removes a window.
func (r *AvailabilityRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM faculty_availability WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	return nil
}
