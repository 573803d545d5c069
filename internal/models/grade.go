package models

import "time"

// GradeStatus tracks administrative approval of a grade.
type GradeStatus string

const (
	GradeStatusPending  GradeStatus = "pending"
	GradeStatusApproved GradeStatus = "approved"
)

// Grade is the letter grade a student earned in an offering.
type Grade struct {
	ID          string      `db:"id" json:"id"`
	StudentID   string      `db:"student_id" json:"student_id"`
	OfferingID  string      `db:"offering_id" json:"offering_id"`
	Grade       *string     `db:"grade" json:"grade"`
	Attempt     int         `db:"attempt" json:"attempt"`
	Status      GradeStatus `db:"status" json:"status"`
	SubmittedBy string      `db:"submitted_by" json:"submitted_by"`
	SubmittedAt time.Time   `db:"submitted_at" json:"submitted_at"`
	ApprovedAt  *time.Time  `db:"approved_at" json:"approved_at,omitempty"`
}

// GradeFilter narrows grade listings.
type GradeFilter struct {
	StudentID  string
	OfferingID string
	Status     GradeStatus
}

// GradeScaleEntry maps a letter grade to its grade point.
type GradeScaleEntry struct {
	Letter     string  `db:"letter" json:"letter"`
	GradePoint float64 `db:"grade_point" json:"grade_point"`
}

// TranscriptRow is one enrollment joined with its course, semester and grade.
type TranscriptRow struct {
	EnrollmentID      string           `db:"enrollment_id" json:"enrollment_id"`
	OfferingID        string           `db:"offering_id" json:"offering_id"`
	SemesterID        string           `db:"semester_id" json:"semester_id"`
	SemesterName      string           `db:"semester_name" json:"semester_name"`
	SemesterStartDate time.Time        `db:"semester_start_date" json:"semester_start_date"`
	CourseCode        string           `db:"course_code" json:"course_code"`
	CourseTitle       string           `db:"course_title" json:"course_title"`
	Credits           int              `db:"credits" json:"credits"`
	Status            EnrollmentStatus `db:"status" json:"status"`
	EnrollmentType    EnrollmentType   `db:"enrollment_type" json:"enrollment_type"`
	Grade             *string          `db:"grade" json:"grade"`
	GradeStatus       *GradeStatus     `db:"grade_status" json:"grade_status,omitempty"`
}
