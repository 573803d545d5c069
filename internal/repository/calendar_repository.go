package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// CalendarHoldRepository reads blocks placed on a faculty calendar outside the
// meeting flow, such as direct bookings.
type CalendarHoldRepository struct {
	db *sqlx.DB
}

// NewCalendarHoldRepository constructs a calendar hold repository.
func NewCalendarHoldRepository(db *sqlx.DB) *CalendarHoldRepository {
	return &CalendarHoldRepository{db: db}
}

// ListByFacultyAndDate returns holds on the given calendar date.
func (r *CalendarHoldRepository) ListByFacultyAndDate(ctx context.Context, facultyID string, date time.Time) ([]models.CalendarHold, error) {
	const query = `SELECT id, faculty_id, hold_date, start_time, end_time, reason
        FROM calendar_holds WHERE faculty_id = $1 AND hold_date = $2 ORDER BY start_time`
	var holds []models.CalendarHold
	if err := r.db.SelectContext(ctx, &holds, query, facultyID, date.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("list calendar holds: %w", err)
	}
	return holds, nil
}
