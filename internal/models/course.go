package models

import (
	"time"

	"github.com/lib/pq"
)

// OfferingStatus is the approval state of a course offering.
type OfferingStatus string

const (
	OfferingStatusPending  OfferingStatus = "pending"
	OfferingStatusApproved OfferingStatus = "approved"
	OfferingStatusRejected OfferingStatus = "rejected"
)

// CourseOffering is a course scheduled for a semester by one faculty member.
// Credits and course fields are joined from the course catalog.
type CourseOffering struct {
	ID             string         `db:"id" json:"id"`
	CourseID       string         `db:"course_id" json:"course_id"`
	SemesterID     string         `db:"semester_id" json:"semester_id"`
	FacultyID      string         `db:"faculty_id" json:"faculty_id"`
	Status         OfferingStatus `db:"status" json:"status"`
	AllowedDeptIDs pq.Int64Array  `db:"allowed_dept_ids" json:"allowed_dept_ids,omitempty"`
	CourseCode     string         `db:"course_code" json:"course_code"`
	CourseTitle    string         `db:"course_title" json:"course_title"`
	Credits        int            `db:"credits" json:"credits"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// Department is reference data used by offering allow-lists.
type Department struct {
	ID   int64  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// Student is the academic profile attached to a student user.
type Student struct {
	ID             string `db:"id" json:"id"`
	FullName       string `db:"full_name" json:"full_name"`
	DepartmentCode string `db:"department_code" json:"department_code"`
}

// FacultyAdvisor links a student to the faculty member approving their enrollments.
type FacultyAdvisor struct {
	StudentID  string    `db:"student_id" json:"student_id"`
	FacultyID  string    `db:"faculty_id" json:"faculty_id"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`
}
