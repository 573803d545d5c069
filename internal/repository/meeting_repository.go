package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// MeetingRepository persists meeting requests.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository constructs the repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

const meetingColumns = `id, faculty_id, student_id, requested_date, to_char(requested_time, 'HH24:MI') AS requested_time, duration, purpose, status, cancelled_at, cancelled_by, created_at, updated_at`

// Create inserts a meeting request.
func (r *MeetingRepository) Create(ctx context.Context, meeting *models.MeetingRequest) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = now
	}
	meeting.UpdatedAt = meeting.CreatedAt
	if meeting.Status == "" {
		meeting.Status = models.MeetingStatusPending
	}
	const query = `INSERT INTO meeting_requests (id, faculty_id, student_id, requested_date, requested_time, duration, purpose, status, created_at, updated_at)
        VALUES (:id, :faculty_id, :student_id, :requested_date, :requested_time, :duration, :purpose, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, meeting); err != nil {
		return fmt.Errorf("create meeting request: %w", err)
	}
	return nil
}

// FindByID returns a meeting request.
func (r *MeetingRepository) FindByID(ctx context.Context, id string) (*models.MeetingRequest, error) {
	query := `SELECT ` + meetingColumns + ` FROM meeting_requests WHERE id = $1`
	var meeting models.MeetingRequest
	if err := r.db.GetContext(ctx, &meeting, query, id); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// List returns meetings matching the filter ordered by date and time.
func (r *MeetingRepository) List(ctx context.Context, filter models.MeetingFilter) ([]models.MeetingRequest, error) {
	query := `SELECT ` + meetingColumns + ` FROM meeting_requests WHERE 1=1`
	var args []interface{}
	if filter.FacultyID != "" {
		query += fmt.Sprintf(" AND faculty_id = $%d", len(args)+1)
		args = append(args, filter.FacultyID)
	}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.Date != nil {
		query += fmt.Sprintf(" AND requested_date = $%d", len(args)+1)
		args = append(args, filter.Date.Format("2006-01-02"))
	}
	query += " ORDER BY requested_date DESC, requested_time DESC"
	var meetings []models.MeetingRequest
	if err := r.db.SelectContext(ctx, &meetings, query, args...); err != nil {
		return nil, fmt.Errorf("list meeting requests: %w", err)
	}
	return meetings, nil
}

// ListActiveByFacultyAndDate returns pending and approved meetings occupying
// the faculty's calendar on a date.
func (r *MeetingRepository) ListActiveByFacultyAndDate(ctx context.Context, facultyID string, date time.Time) ([]models.MeetingRequest, error) {
	query := `SELECT ` + meetingColumns + ` FROM meeting_requests
        WHERE faculty_id = $1 AND requested_date = $2 AND status = ANY($3) ORDER BY requested_time`
	statuses := pq.Array([]string{string(models.MeetingStatusPending), string(models.MeetingStatusApproved)})
	var meetings []models.MeetingRequest
	if err := r.db.SelectContext(ctx, &meetings, query, facultyID, date.Format("2006-01-02"), statuses); err != nil {
		return nil, fmt.Errorf("list active meetings: %w", err)
	}
	return meetings, nil
}

// UpdateStatus moves a meeting from one status to another. It returns
// sql.ErrNoRows when the row no longer holds the expected status.
func (r *MeetingRepository) UpdateStatus(ctx context.Context, id string, from, to models.MeetingStatus) error {
	const query = `UPDATE meeting_requests SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
	return r.execSingle(ctx, "update meeting status", query, id, from, to)
}

// Cancel marks a meeting cancelled while it is still in the expected status.
func (r *MeetingRepository) Cancel(ctx context.Context, id string, from models.MeetingStatus, cancelledBy string, cancelledAt time.Time) error {
	const query = `UPDATE meeting_requests SET status = $3, cancelled_at = $4, cancelled_by = $5, updated_at = NOW()
        WHERE id = $1 AND status = $2`
	return r.execSingle(ctx, "cancel meeting", query, id, from, models.MeetingStatusCancelled, cancelledAt, cancelledBy)
}

func (r *MeetingRepository) execSingle(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
