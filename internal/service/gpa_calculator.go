package service

import (
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
)

// Letters that never count toward a GPA even when the scale lists them.
var nonGPALetters = map[string]struct{}{"W": {}, "E": {}, "F": {}}

// GradeScale maps normalised letter grades to grade points.
type GradeScale map[string]float64

// NewGradeScale builds a GradeScale from reference rows.
func NewGradeScale(entries []models.GradeScaleEntry) GradeScale {
	scale := make(GradeScale, len(entries))
	for _, entry := range entries {
		scale[normalizeLetter(entry.Letter)] = entry.GradePoint
	}
	return scale
}

// Has reports whether the letter exists in the scale.
func (s GradeScale) Has(letter string) bool {
	_, ok := s[normalizeLetter(letter)]
	return ok
}

// gpaPoint returns the grade point for a row that contributes to GPA.
func (s GradeScale) gpaPoint(grade *string) (float64, bool) {
	if grade == nil {
		return 0, false
	}
	letter := normalizeLetter(*grade)
	if _, excluded := nonGPALetters[letter]; excluded {
		return 0, false
	}
	point, ok := s[letter]
	return point, ok
}

func normalizeLetter(letter string) string {
	return strings.ToUpper(strings.TrimSpace(letter))
}

func roundGPA(value float64) float64 {
	return math.Round(value*100) / 100
}

func countsAsRegistered(status models.EnrollmentStatus) bool {
	return status != models.EnrollmentStatusWithdrawn && status != models.EnrollmentStatusRejected
}

// ComputeTranscript groups transcript rows by semester and computes SGPA per
// semester and the running CGPA, oldest semester first. The result lists
// semesters newest first.
func ComputeTranscript(studentID string, rows []models.TranscriptRow, scale GradeScale) *dto.Transcript {
	index := make(map[string]int)
	var semesters []dto.SemesterRecord
	for _, row := range rows {
		i, ok := index[row.SemesterID]
		if !ok {
			i = len(semesters)
			index[row.SemesterID] = i
			semesters = append(semesters, dto.SemesterRecord{
				SemesterID:   row.SemesterID,
				SemesterName: row.SemesterName,
				StartDate:    row.SemesterStartDate,
			})
		}
		record := &semesters[i]
		record.Courses = append(record.Courses, row)
		if countsAsRegistered(row.Status) {
			record.RegisteredCredits += row.Credits
		}
		if point, ok := scale.gpaPoint(row.Grade); ok {
			record.GradePoints += point * float64(row.Credits)
			record.GPACredits += row.Credits
		}
	}

	sort.SliceStable(semesters, func(i, j int) bool {
		if semesters[i].StartDate.Equal(semesters[j].StartDate) {
			return semesters[i].SemesterID < semesters[j].SemesterID
		}
		return semesters[i].StartDate.Before(semesters[j].StartDate)
	})

	transcript := &dto.Transcript{StudentID: studentID, Semesters: make([]dto.SemesterRecord, 0, len(semesters))}
	var cumulativePoints float64
	var cumulativeCredits int
	for i := range semesters {
		record := &semesters[i]
		if record.GPACredits > 0 {
			record.SGPA = roundGPA(record.GradePoints / float64(record.GPACredits))
		}
		cumulativePoints += record.GradePoints
		cumulativeCredits += record.GPACredits
		if cumulativeCredits > 0 {
			record.CGPA = roundGPA(cumulativePoints / float64(cumulativeCredits))
		}
		transcript.RegisteredCredits += record.RegisteredCredits
	}
	transcript.TotalCredits = cumulativeCredits
	if len(semesters) > 0 {
		transcript.CGPA = semesters[len(semesters)-1].CGPA
	}

	for i := len(semesters) - 1; i >= 0; i-- {
		transcript.Semesters = append(transcript.Semesters, semesters[i])
	}
	return transcript
}
