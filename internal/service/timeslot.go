package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/academic-records-api/internal/models"
)

const dateLayout = "2006-01-02"

// clockRange is a half-open interval [start, end) in minutes since midnight.
type clockRange struct {
	start int
	end   int
}

func (r clockRange) overlaps(other clockRange) bool {
	return r.start < other.end && other.start < r.end
}

// parseClock accepts "HH:MM" and the "HH:MM:SS" form returned for TIME columns.
func parseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock time %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	if len(parts) == 3 {
		if seconds, err := strconv.Atoi(parts[2]); err != nil || seconds != 0 {
			return 0, fmt.Errorf("seconds not supported in %q", raw)
		}
	}
	return hours*60 + minutes, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func rangeFrom(start string, durationMinutes int) (clockRange, error) {
	begin, err := parseClock(start)
	if err != nil {
		return clockRange{}, err
	}
	return clockRange{start: begin, end: begin + durationMinutes}, nil
}

func rangeBetween(start, end string) (clockRange, error) {
	begin, err := parseClock(start)
	if err != nil {
		return clockRange{}, err
	}
	finish, err := parseClock(end)
	if err != nil {
		return clockRange{}, err
	}
	return clockRange{start: begin, end: finish}, nil
}

// splitWindow cuts an availability window into consecutive slots; a trailing
// remainder shorter than the slot duration is dropped.
func splitWindow(window clockRange, slotMinutes int) []clockRange {
	if slotMinutes <= 0 {
		return nil
	}
	var slots []clockRange
	for start := window.start; start+slotMinutes <= window.end; start += slotMinutes {
		slots = append(slots, clockRange{start: start, end: start + slotMinutes})
	}
	return slots
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(raw))
}

type activeMeetingReader interface {
	ListActiveByFacultyAndDate(ctx context.Context, facultyID string, date time.Time) ([]models.MeetingRequest, error)
}

type calendarHoldReader interface {
	ListByFacultyAndDate(ctx context.Context, facultyID string, date time.Time) ([]models.CalendarHold, error)
}

// busyRanges collects the pending/approved meetings and calendar holds that
// occupy a faculty member's day.
func busyRanges(ctx context.Context, meetings activeMeetingReader, holds calendarHoldReader, facultyID string, date time.Time) ([]clockRange, error) {
	booked, err := meetings.ListActiveByFacultyAndDate(ctx, facultyID, date)
	if err != nil {
		return nil, fmt.Errorf("load meetings: %w", err)
	}
	ranges := make([]clockRange, 0, len(booked))
	for _, meeting := range booked {
		r, err := rangeFrom(meeting.RequestedTime, meeting.Duration)
		if err != nil {
			return nil, fmt.Errorf("meeting %s: %w", meeting.ID, err)
		}
		ranges = append(ranges, r)
	}
	if holds == nil {
		return ranges, nil
	}
	blocked, err := holds.ListByFacultyAndDate(ctx, facultyID, date)
	if err != nil {
		return nil, fmt.Errorf("load calendar holds: %w", err)
	}
	for _, hold := range blocked {
		r, err := rangeBetween(hold.StartTime, hold.EndTime)
		if err != nil {
			return nil, fmt.Errorf("calendar hold %s: %w", hold.ID, err)
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

func overlapsAny(candidate clockRange, busy []clockRange) bool {
	for _, r := range busy {
		if candidate.overlaps(r) {
			return true
		}
	}
	return false
}
