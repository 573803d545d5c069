package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type memoryGrades struct {
	mu           sync.Mutex
	seq          int
	grades       map[string]*models.Grade
	rows         []models.TranscriptRow
	rowReads     int
	updateCalls  int
	upsertCalls  int
	approvedIDs  []string
	scaleFailure error
}

func newMemoryGrades() *memoryGrades {
	return &memoryGrades{grades: make(map[string]*models.Grade)}
}

func (g *memoryGrades) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []models.Grade
	for _, grade := range g.grades {
		if filter.StudentID != "" && grade.StudentID != filter.StudentID {
			continue
		}
		out = append(out, *grade)
	}
	return out, nil
}

func (g *memoryGrades) FindByStudentAndOffering(ctx context.Context, studentID, offeringID string) (*models.Grade, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, grade := range g.grades {
		if grade.StudentID == studentID && grade.OfferingID == offeringID {
			copied := *grade
			return &copied, nil
		}
	}
	return nil, sqlNoRows()
}

func (g *memoryGrades) Upsert(ctx context.Context, grade *models.Grade) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.upsertCalls++
	for id, existing := range g.grades {
		if existing.StudentID == grade.StudentID && existing.OfferingID == grade.OfferingID {
			grade.ID = id
			grade.Attempt = existing.Attempt
			copied := *grade
			g.grades[id] = &copied
			return nil
		}
	}
	g.seq++
	grade.ID = fmt.Sprintf("grd-%d", g.seq)
	grade.Attempt = 1
	copied := *grade
	g.grades[grade.ID] = &copied
	return nil
}

func (g *memoryGrades) Create(ctx context.Context, grade *models.Grade) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	grade.ID = fmt.Sprintf("grd-%d", g.seq)
	copied := *grade
	g.grades[grade.ID] = &copied
	return nil
}

func (g *memoryGrades) UpdateLetter(ctx context.Context, id string, letter *string, submittedBy string, submittedAt time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updateCalls++
	grade, ok := g.grades[id]
	if !ok {
		return sqlNoRows()
	}
	grade.Grade = letter
	grade.SubmittedBy = submittedBy
	grade.SubmittedAt = submittedAt
	return nil
}

func (g *memoryGrades) Approve(ctx context.Context, ids []string, approvedAt time.Time) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var count int64
	for _, id := range ids {
		grade, ok := g.grades[id]
		if !ok || grade.Status != models.GradeStatusPending {
			continue
		}
		grade.Status = models.GradeStatusApproved
		at := approvedAt
		grade.ApprovedAt = &at
		g.approvedIDs = append(g.approvedIDs, id)
		count++
	}
	return count, nil
}

func (g *memoryGrades) Scale(ctx context.Context) ([]models.GradeScaleEntry, error) {
	if g.scaleFailure != nil {
		return nil, g.scaleFailure
	}
	return []models.GradeScaleEntry{
		{Letter: "O", GradePoint: 10},
		{Letter: "A+", GradePoint: 9},
		{Letter: "A", GradePoint: 8},
		{Letter: "B", GradePoint: 6},
		{Letter: "P", GradePoint: 4},
	}, nil
}

func (g *memoryGrades) TranscriptRows(ctx context.Context, studentID string) ([]models.TranscriptRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rowReads++
	return g.rows, nil
}

// memoryCache stores JSON payloads the way the redis repository does.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = payload
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if key == pattern || (strings.HasSuffix(pattern, "*") && strings.HasPrefix(key, prefix)) {
			delete(c.entries, key)
		}
	}
	return nil
}

func sqlNoRows() error {
	return fmt.Errorf("grade lookup: %w", sql.ErrNoRows)
}

func newGradeFixture(t *testing.T) (*GradeService, *memoryGrades, *memoryRecords, *memoryCache) {
	t.Helper()
	records := newMemoryRecords()
	seedCatalog(records, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	records.addEnrollment(models.Enrollment{StudentID: "stu-1", OfferingID: "off-1", Status: models.EnrollmentStatusEnrolled})
	grades := newMemoryGrades()
	cacheRepo := newMemoryCache()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewGradeService(grades, records, offeringTable{records}, semesterTable{records}, studentTable{records}, cache, time.Minute, nil, zap.NewNop())
	return svc, grades, records, cacheRepo
}

func TestGradeServiceSubmitByFaculty(t *testing.T) {
	svc, grades, _, cacheRepo := newGradeFixture(t)
	ctx := context.Background()

	grade, err := svc.Submit(ctx, courseFaculty, SubmitGradeRequest{StudentID: "stu-1", OfferingID: "off-1", Grade: " a+ "})
	require.NoError(t, err)
	require.NotNil(t, grade.Grade)
	assert.Equal(t, "A+", *grade.Grade)
	assert.Equal(t, models.GradeStatusPending, grade.Status)
	assert.Equal(t, "fac-1", grade.SubmittedBy)
	assert.Equal(t, 1, grades.upsertCalls)
	assert.Contains(t, cacheRepo.deleted, TranscriptCacheKey("stu-1"))

	_, err = svc.Submit(ctx, advisorActor, SubmitGradeRequest{StudentID: "stu-1", OfferingID: "off-1", Grade: "A"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Submit(ctx, studentActor, SubmitGradeRequest{StudentID: "stu-1", OfferingID: "off-1", Grade: "A"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestGradeServiceSubmitValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("letter outside scale", func(t *testing.T) {
		svc, _, _, _ := newGradeFixture(t)
		_, err := svc.Submit(ctx, courseFaculty, SubmitGradeRequest{StudentID: "stu-1", OfferingID: "off-1", Grade: "Z"})
		require.Error(t, err)
		assert.ErrorIs(t, err, appErrors.ErrValidation)
		assert.Contains(t, err.Error(), `"Z"`)
	})

	t.Run("locked semester blocks faculty", func(t *testing.T) {
		svc, _, records, _ := newGradeFixture(t)
		records.semesters["sem-1"].GradeLocked = true
		_, err := svc.Submit(ctx, courseFaculty, SubmitGradeRequest{StudentID: "stu-1", OfferingID: "off-1", Grade: "A"})
		assert.ErrorIs(t, err, appErrors.ErrValidation)
	})

	t.Run("locked semester allows admin", func(t *testing.T) {
		svc, _, records, _ := newGradeFixture(t)
		records.semesters["sem-1"].GradeLocked = true
		_, err := svc.Submit(ctx, adminActor, SubmitGradeRequest{StudentID: "stu-1", OfferingID: "off-1", Grade: "A"})
		assert.NoError(t, err)
	})

	t.Run("student not enrolled", func(t *testing.T) {
		svc, _, _, _ := newGradeFixture(t)
		_, err := svc.Submit(ctx, courseFaculty, SubmitGradeRequest{StudentID: "stu-9", OfferingID: "off-1", Grade: "A"})
		assert.ErrorIs(t, err, appErrors.ErrNotFound)
	})

	t.Run("rejected enrollment", func(t *testing.T) {
		svc, _, records, _ := newGradeFixture(t)
		records.addEnrollment(models.Enrollment{StudentID: "stu-2", OfferingID: "off-1", Status: models.EnrollmentStatusRejected})
		_, err := svc.Submit(ctx, courseFaculty, SubmitGradeRequest{StudentID: "stu-2", OfferingID: "off-1", Grade: "A"})
		assert.ErrorIs(t, err, appErrors.ErrValidation)
	})

	t.Run("scale unavailable", func(t *testing.T) {
		svc, grades, _, _ := newGradeFixture(t)
		grades.scaleFailure = errors.New("timeout")
		_, err := svc.Submit(ctx, courseFaculty, SubmitGradeRequest{StudentID: "stu-1", OfferingID: "off-1", Grade: "A"})
		assert.ErrorIs(t, err, appErrors.ErrDependency)
	})
}

func TestGradeServiceAdminSubmitUpdatesInPlace(t *testing.T) {
	svc, grades, _, _ := newGradeFixture(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, adminActor, SubmitGradeRequest{StudentID: "stu-1", OfferingID: "off-1", Grade: "B"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Attempt)

	second, err := svc.Submit(ctx, adminActor, SubmitGradeRequest{StudentID: "stu-1", OfferingID: "off-1", Grade: "O"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "O", *second.Grade)
	assert.Equal(t, 1, grades.updateCalls)
	assert.Len(t, grades.grades, 1)
}

func TestGradeServiceApprove(t *testing.T) {
	svc, grades, _, cacheRepo := newGradeFixture(t)
	ctx := context.Background()

	grade, err := svc.Submit(ctx, courseFaculty, SubmitGradeRequest{StudentID: "stu-1", OfferingID: "off-1", Grade: "A"})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, courseFaculty, ApproveGradesRequest{GradeIDs: []string{grade.ID}})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Approve(ctx, adminActor, ApproveGradesRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	result, err := svc.Approve(ctx, adminActor, ApproveGradesRequest{GradeIDs: []string{grade.ID, "grd-unknown"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Approved)
	assert.Equal(t, []string{grade.ID}, grades.approvedIDs)
	assert.Contains(t, cacheRepo.deleted, transcriptKeyPrefix+"*")

	result, err = svc.Approve(ctx, adminActor, ApproveGradesRequest{GradeIDs: []string{grade.ID}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Approved)
}

func TestGradeServiceListRequiresAdmin(t *testing.T) {
	svc, _, _, _ := newGradeFixture(t)
	ctx := context.Background()

	_, err := svc.List(ctx, courseFaculty, ListGradesRequest{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.List(ctx, adminActor, ListGradesRequest{Status: "final"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.List(ctx, adminActor, ListGradesRequest{StudentID: "stu-1"})
	assert.NoError(t, err)
}

func TestGradeServiceTranscriptUsesCache(t *testing.T) {
	svc, grades, _, cacheRepo := newGradeFixture(t)
	ctx := context.Background()
	grades.rows = []models.TranscriptRow{
		transcriptRow("S1", fall, "CS101", 4, letter("O")),
		transcriptRow("S2", spring, "CS102", 3, letter("A")),
	}

	transcript, err := svc.Transcript(ctx, studentActor, "stu-1")
	require.NoError(t, err)
	require.Len(t, transcript.Semesters, 2)
	assert.Equal(t, 9.14, transcript.CGPA)
	assert.Equal(t, 7, transcript.TotalCredits)
	assert.Contains(t, cacheRepo.entries, TranscriptCacheKey("stu-1"))

	cached, err := svc.Transcript(ctx, courseFaculty, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, transcript.CGPA, cached.CGPA)
	assert.Equal(t, 1, grades.rowReads)

	summary, err := svc.CGPA(ctx, adminActor, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 9.14, summary.CGPA)
	assert.Equal(t, 7, summary.RegisteredCredits)
}

func TestGradeServiceTranscriptAccess(t *testing.T) {
	svc, _, _, _ := newGradeFixture(t)
	ctx := context.Background()

	_, err := svc.Transcript(ctx, models.Actor{ID: "stu-2", Role: models.RoleStudent}, "stu-1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Transcript(ctx, adminActor, "stu-404")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestGradeServiceExportTranscript(t *testing.T) {
	svc, grades, _, _ := newGradeFixture(t)
	ctx := context.Background()
	grades.rows = []models.TranscriptRow{transcriptRow("S1", fall, "CS101", 4, letter("O"))}

	file, err := svc.ExportTranscript(ctx, studentActor, "stu-1", "CSV")
	require.NoError(t, err)
	assert.Equal(t, "transcript-stu-1.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Contains(t, string(file.Content), "CS101")

	pdf, err := svc.ExportTranscript(ctx, studentActor, "stu-1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.True(t, strings.HasPrefix(string(pdf.Content), "%PDF"))

	_, err = svc.ExportTranscript(ctx, studentActor, "stu-1", "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
