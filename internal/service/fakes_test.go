package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
)

// memoryRecords is an in-memory stand-in for the record store shared by the
// workflow service tests.
type memoryRecords struct {
	mu          sync.Mutex
	seq         int
	enrollments map[string]*models.Enrollment
	offerings   map[string]*models.CourseOffering
	students    map[string]*models.Student
	semesters   map[string]*models.Semester
	departments map[string]*models.Department
	advisors    map[string]string
	lastFilter  models.EnrollmentFilter
	failWith    error
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{
		enrollments: make(map[string]*models.Enrollment),
		offerings:   make(map[string]*models.CourseOffering),
		students:    make(map[string]*models.Student),
		semesters:   make(map[string]*models.Semester),
		departments: make(map[string]*models.Department),
		advisors:    make(map[string]string),
	}
}

func (m *memoryRecords) addEnrollment(e models.Enrollment) *models.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		m.seq++
		e.ID = fmt.Sprintf("enr-%d", m.seq)
	}
	m.enrollments[e.ID] = &e
	return &e
}

func (m *memoryRecords) status(id string) models.EnrollmentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrollments[id].Status
}

func (m *memoryRecords) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.enrollments)
}

// enrollmentStore

func (m *memoryRecords) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	if m.failWith != nil {
		return nil, 0, m.failWith
	}
	var out []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: *e})
	}
	return out, len(out), nil
}

func (m *memoryRecords) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.enrollments[id]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryRecords) FindByStudentAndOffering(ctx context.Context, studentID, offeringID string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.OfferingID == offeringID {
			copied := *e
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryRecords) SumCreditsBySemester(ctx context.Context, studentID, semesterID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, e := range m.enrollments {
		offering := m.offerings[e.OfferingID]
		if e.StudentID != studentID || offering == nil || offering.SemesterID != semesterID {
			continue
		}
		if e.Status == models.EnrollmentStatusRejected {
			continue
		}
		total += offering.Credits
	}
	return total, nil
}

func (m *memoryRecords) Create(ctx context.Context, enrollment *models.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.StudentID == enrollment.StudentID && e.OfferingID == enrollment.OfferingID {
			return fmt.Errorf("create enrollment: %w", repository.ErrDuplicate)
		}
	}
	m.seq++
	enrollment.ID = fmt.Sprintf("enr-%d", m.seq)
	copied := *enrollment
	m.enrollments[enrollment.ID] = &copied
	return nil
}

func (m *memoryRecords) UpdateStatus(ctx context.Context, update repository.EnrollmentStatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[update.ID]
	if !ok || e.Status != update.From {
		return sql.ErrNoRows
	}
	e.Status = update.To
	if update.EnrolledAt != nil {
		e.EnrolledAt = update.EnrolledAt
	}
	if update.DroppedAt != nil {
		e.DroppedAt = update.DroppedAt
	}
	return nil
}

type offeringTable struct{ *memoryRecords }

func (t offeringTable) FindByID(ctx context.Context, id string) (*models.CourseOffering, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if o, ok := t.offerings[id]; ok {
		copied := *o
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type studentTable struct{ *memoryRecords }

func (t studentTable) FindByID(ctx context.Context, id string) (*models.Student, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.students[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type semesterTable struct{ *memoryRecords }

func (t semesterTable) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.semesters[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type departmentTable struct{ *memoryRecords }

func (t departmentTable) FindByCode(ctx context.Context, code string) (*models.Department, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d, ok := t.departments[code]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type advisorTable struct{ *memoryRecords }

func (t advisorTable) FindByStudent(ctx context.Context, studentID string) (*models.FacultyAdvisor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if facultyID, ok := t.advisors[studentID]; ok {
		return &models.FacultyAdvisor{StudentID: studentID, FacultyID: facultyID}, nil
	}
	return nil, sql.ErrNoRows
}

func (t advisorTable) ListStudentIDsByFaculty(ctx context.Context, facultyID string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ids []string
	for studentID, advisor := range t.advisors {
		if advisor == facultyID {
			ids = append(ids, studentID)
		}
	}
	return ids, nil
}

func (t advisorTable) Upsert(ctx context.Context, advisor *models.FacultyAdvisor) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advisors[advisor.StudentID] = advisor.FacultyID
	return nil
}

// seedCatalog loads a CS department, an approved 3-credit offering taught by
// fac-1 in sem-1 and student stu-1 advised by fac-2.
func seedCatalog(m *memoryRecords, semesterStart time.Time) {
	m.departments["CS"] = &models.Department{ID: 1, Code: "CS", Name: "Computer Science"}
	m.departments["EE"] = &models.Department{ID: 2, Code: "EE", Name: "Electrical"}
	m.semesters["sem-1"] = &models.Semester{ID: "sem-1", Name: "Fall", StartDate: semesterStart}
	m.offerings["off-1"] = &models.CourseOffering{
		ID: "off-1", CourseID: "c-1", SemesterID: "sem-1", FacultyID: "fac-1",
		Status: models.OfferingStatusApproved, CourseCode: "CS101", Credits: 3,
	}
	m.students["stu-1"] = &models.Student{ID: "stu-1", FullName: "Ada", DepartmentCode: "CS"}
	m.advisors["stu-1"] = "fac-2"
}
