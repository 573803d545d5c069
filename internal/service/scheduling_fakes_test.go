package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/notifier"
)

type memoryMeetings struct {
	mu         sync.Mutex
	seq        int
	meetings   map[string]*models.MeetingRequest
	activeErr  error
	lastFilter models.MeetingFilter
}

func newMemoryMeetings() *memoryMeetings {
	return &memoryMeetings{meetings: make(map[string]*models.MeetingRequest)}
}

func (m *memoryMeetings) add(meeting models.MeetingRequest) *models.MeetingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	meeting.ID = fmt.Sprintf("mtg-%d", m.seq)
	m.meetings[meeting.ID] = &meeting
	return &meeting
}

func (m *memoryMeetings) ListActiveByFacultyAndDate(ctx context.Context, facultyID string, date time.Time) ([]models.MeetingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeErr != nil {
		return nil, m.activeErr
	}
	var out []models.MeetingRequest
	for _, meeting := range m.meetings {
		if meeting.FacultyID != facultyID || !meeting.RequestedDate.Equal(date) {
			continue
		}
		if meeting.Status == models.MeetingStatusPending || meeting.Status == models.MeetingStatusApproved {
			out = append(out, *meeting)
		}
	}
	return out, nil
}

func (m *memoryMeetings) Create(ctx context.Context, meeting *models.MeetingRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	meeting.ID = fmt.Sprintf("mtg-%d", m.seq)
	copied := *meeting
	m.meetings[meeting.ID] = &copied
	return nil
}

func (m *memoryMeetings) FindByID(ctx context.Context, id string) (*models.MeetingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if meeting, ok := m.meetings[id]; ok {
		copied := *meeting
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryMeetings) List(ctx context.Context, filter models.MeetingFilter) ([]models.MeetingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	var out []models.MeetingRequest
	for _, meeting := range m.meetings {
		out = append(out, *meeting)
	}
	return out, nil
}

func (m *memoryMeetings) UpdateStatus(ctx context.Context, id string, from, to models.MeetingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	meeting, ok := m.meetings[id]
	if !ok || meeting.Status != from {
		return sql.ErrNoRows
	}
	meeting.Status = to
	return nil
}

func (m *memoryMeetings) Cancel(ctx context.Context, id string, from models.MeetingStatus, cancelledBy string, cancelledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	meeting, ok := m.meetings[id]
	if !ok || meeting.Status != from {
		return sql.ErrNoRows
	}
	meeting.Status = models.MeetingStatusCancelled
	meeting.CancelledBy = &cancelledBy
	meeting.CancelledAt = &cancelledAt
	return nil
}

func (m *memoryMeetings) status(id string) models.MeetingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meetings[id].Status
}

type memoryHolds []models.CalendarHold

func (h memoryHolds) ListByFacultyAndDate(ctx context.Context, facultyID string, date time.Time) ([]models.CalendarHold, error) {
	var out []models.CalendarHold
	for _, hold := range h {
		if hold.FacultyID == facultyID && hold.HoldDate.Equal(date) {
			out = append(out, hold)
		}
	}
	return out, nil
}

type memoryAvailability struct {
	mu    sync.Mutex
	seq   int
	slots map[string]*models.FacultyAvailability
}

func newMemoryAvailability() *memoryAvailability {
	return &memoryAvailability{slots: make(map[string]*models.FacultyAvailability)}
}

func (a *memoryAvailability) Exists(ctx context.Context, facultyID string, dayOfWeek int, startTime string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, slot := range a.slots {
		if slot.FacultyID == facultyID && slot.DayOfWeek == dayOfWeek && slot.StartTime == startTime {
			return true, nil
		}
	}
	return false, nil
}

func (a *memoryAvailability) Create(ctx context.Context, slot *models.FacultyAvailability) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	slot.ID = fmt.Sprintf("av-%d", a.seq)
	copied := *slot
	a.slots[slot.ID] = &copied
	return nil
}

func (a *memoryAvailability) FindByID(ctx context.Context, id string) (*models.FacultyAvailability, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if slot, ok := a.slots[id]; ok {
		copied := *slot
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (a *memoryAvailability) ListByFaculty(ctx context.Context, facultyID string) ([]models.FacultyAvailability, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.FacultyAvailability
	for _, slot := range a.slots {
		if slot.FacultyID == facultyID {
			out = append(out, *slot)
		}
	}
	return out, nil
}

func (a *memoryAvailability) ListByFacultyAndDay(ctx context.Context, facultyID string, dayOfWeek int) ([]models.FacultyAvailability, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.FacultyAvailability
	for _, slot := range a.slots {
		if slot.FacultyID == facultyID && slot.DayOfWeek == dayOfWeek {
			out = append(out, *slot)
		}
	}
	return out, nil
}

func (a *memoryAvailability) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.slots, id)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (r *recordingNotifier) Notify(ctx context.Context, event notifier.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) actions() []notifier.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notifier.Action, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Action)
	}
	return out
}
