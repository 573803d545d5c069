package dto

import (
	"time"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// SemesterRecord is one semester of a transcript with its grade-point totals.
type SemesterRecord struct {
	SemesterID        string                 `json:"semester_id"`
	SemesterName      string                 `json:"semester_name"`
	StartDate         time.Time              `json:"start_date"`
	Courses           []models.TranscriptRow `json:"courses"`
	RegisteredCredits int                    `json:"registered_credits"`
	GPACredits        int                    `json:"gpa_credits"`
	GradePoints       float64                `json:"grade_points"`
	SGPA              float64                `json:"sgpa"`
	CGPA              float64                `json:"cgpa"`
}

// Transcript lists semesters newest first.
type Transcript struct {
	StudentID         string           `json:"student_id"`
	Semesters         []SemesterRecord `json:"semesters"`
	CGPA              float64          `json:"cgpa"`
	TotalCredits      int              `json:"total_credits"`
	RegisteredCredits int              `json:"registered_credits"`
}

// CGPASummary is the cumulative view of a transcript.
type CGPASummary struct {
	StudentID         string  `json:"student_id"`
	CGPA              float64 `json:"cgpa"`
	TotalCredits      int     `json:"total_credits"`
	RegisteredCredits int     `json:"registered_credits"`
}

// ApproveGradesResult reports how many grades changed status.
type ApproveGradesResult struct {
	Approved int64 `json:"approved"`
}
