package models

import "time"

// Semester models an academic semester.
type Semester struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	GradeLocked bool      `db:"grade_locked" json:"grade_locked"`
	Status      string    `db:"status" json:"status"`
}
