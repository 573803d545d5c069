package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPendingFaculty EnrollmentStatus = "pending_faculty"
	EnrollmentStatusPendingAdvisor EnrollmentStatus = "pending_advisor"
	EnrollmentStatusEnrolled       EnrollmentStatus = "enrolled"
	EnrollmentStatusRejected       EnrollmentStatus = "rejected"
	EnrollmentStatusWithdrawn      EnrollmentStatus = "withdrawn"
)

// EnrollmentType classifies how the course counts toward the student's program.
type EnrollmentType string

const (
	EnrollmentTypeCredit        EnrollmentType = "credit"
	EnrollmentTypeMinor         EnrollmentType = "minor"
	EnrollmentTypeConcentration EnrollmentType = "concentration"
)

// Enrollment captures a student's registration to a course offering.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	OfferingID     string           `db:"offering_id" json:"offering_id"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	EnrollmentType EnrollmentType   `db:"enrollment_type" json:"enrollment_type"`
	EnrolledAt     *time.Time       `db:"enrolled_at" json:"enrolled_at,omitempty"`
	DroppedAt      *time.Time       `db:"dropped_at" json:"dropped_at,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with course and semester info.
type EnrollmentDetail struct {
	Enrollment
	CourseCode   string `db:"course_code" json:"course_code"`
	CourseTitle  string `db:"course_title" json:"course_title"`
	Credits      int    `db:"credits" json:"credits"`
	SemesterID   string `db:"semester_id" json:"semester_id"`
	SemesterName string `db:"semester_name" json:"semester_name"`
	FacultyID    string `db:"faculty_id" json:"faculty_id"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID  string
	StudentIDs []string
	OfferingID string
	FacultyID  string
	SemesterID string
	Status     EnrollmentStatus
	Page       int
	PageSize   int
}
