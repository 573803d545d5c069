package models

import "time"

// FacultyAvailability is a recurring weekly window in which a faculty member
// accepts meetings. Times are "HH:MM" clock strings; SlotDuration is minutes.
type FacultyAvailability struct {
	ID           string    `db:"id" json:"id"`
	FacultyID    string    `db:"faculty_id" json:"faculty_id"`
	DayOfWeek    int       `db:"day_of_week" json:"day_of_week"`
	StartTime    string    `db:"start_time" json:"start_time"`
	EndTime      string    `db:"end_time" json:"end_time"`
	SlotDuration int       `db:"slot_duration" json:"slot_duration"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CalendarHold blocks part of a faculty member's day outside the meeting flow.
type CalendarHold struct {
	ID        string    `db:"id" json:"id"`
	FacultyID string    `db:"faculty_id" json:"faculty_id"`
	HoldDate  time.Time `db:"hold_date" json:"hold_date"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Reason    string    `db:"reason" json:"reason"`
}

// MeetingStatus is the lifecycle of a meeting request.
type MeetingStatus string

const (
	MeetingStatusPending   MeetingStatus = "pending"
	MeetingStatusApproved  MeetingStatus = "approved"
	MeetingStatusRejected  MeetingStatus = "rejected"
	MeetingStatusCancelled MeetingStatus = "cancelled"
)

// MeetingRequest is a student's request to meet a faculty member.
type MeetingRequest struct {
	ID            string        `db:"id" json:"id"`
	FacultyID     string        `db:"faculty_id" json:"faculty_id"`
	StudentID     string        `db:"student_id" json:"student_id"`
	RequestedDate time.Time     `db:"requested_date" json:"requested_date"`
	RequestedTime string        `db:"requested_time" json:"requested_time"`
	Duration      int           `db:"duration" json:"duration"`
	Purpose       string        `db:"purpose" json:"purpose"`
	Status        MeetingStatus `db:"status" json:"status"`
	CancelledAt   *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy   *string       `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// MeetingFilter narrows meeting listings.
type MeetingFilter struct {
	FacultyID string
	StudentID string
	Status    MeetingStatus
	Date      *time.Time
}
