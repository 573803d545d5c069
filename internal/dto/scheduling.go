package dto

// AvailableSlot is a bookable meeting slot on a specific date.
type AvailableSlot struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Duration  int    `json:"duration"`
	Available bool   `json:"available"`
}

// ConflictCheckResult answers whether a requested interval collides with the faculty's day.
type ConflictCheckResult struct {
	FacultyID string `json:"faculty_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Duration  int    `json:"duration"`
	Conflict  bool   `json:"conflict"`
}
