package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/notifier"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

func newMeetingFixture(t *testing.T) (*MeetingService, *memoryMeetings, *recordingNotifier) {
	t.Helper()
	meetings := newMemoryMeetings()
	notify := &recordingNotifier{}
	svc := NewMeetingService(meetings, memoryHolds{}, notify, time.Second, nil, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 9, 4, 10, 0, 0, 0, time.UTC) }
	return svc, meetings, notify
}

func TestMeetingServiceRequestAndConflict(t *testing.T) {
	svc, meetings, notify := newMeetingFixture(t)
	ctx := context.Background()

	meeting, err := svc.Request(ctx, studentActor, RequestMeetingRequest{FacultyID: "fac-1", Date: "2026-09-07", Time: "10:00", Duration: 30, Purpose: "thesis"})
	require.NoError(t, err)
	assert.Equal(t, models.MeetingStatusPending, meeting.Status)
	assert.Equal(t, "stu-1", meeting.StudentID)
	assert.Equal(t, []notifier.Action{notifier.ActionBook}, notify.actions())

	_, err = svc.Request(ctx, studentActor, RequestMeetingRequest{FacultyID: "fac-1", Date: "2026-09-07", Time: "10:15", Duration: 30})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	adjacent, err := svc.Request(ctx, studentActor, RequestMeetingRequest{FacultyID: "fac-1", Date: "2026-09-07", Time: "10:30", Duration: 30})
	require.NoError(t, err)
	assert.Equal(t, "10:30", adjacent.RequestedTime)
	assert.Len(t, meetings.meetings, 2)

	result, err := svc.CheckConflict(ctx, "fac-1", "2026-09-07", "10:45", 10)
	require.NoError(t, err)
	assert.True(t, result.Conflict)

	result, err = svc.CheckConflict(ctx, "fac-1", "2026-09-07", "11:00", 30)
	require.NoError(t, err)
	assert.False(t, result.Conflict)
}

func TestMeetingServiceRequestValidation(t *testing.T) {
	svc, _, _ := newMeetingFixture(t)
	ctx := context.Background()

	_, err := svc.Request(ctx, studentActor, RequestMeetingRequest{FacultyID: "fac-1", Date: "2026-09-03", Time: "10:00", Duration: 30})
	assert.ErrorIs(t, err, appErrors.ErrValidation, "past date")

	_, err = svc.Request(ctx, studentActor, RequestMeetingRequest{FacultyID: "fac-1", Date: "2026-09-04", Time: "16:00", Duration: 30})
	assert.NoError(t, err, "today is allowed")

	_, err = svc.Request(ctx, studentActor, RequestMeetingRequest{FacultyID: "fac-1", Date: "2026-09-07", Time: "10:00", Duration: 0})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Request(ctx, courseFaculty, RequestMeetingRequest{FacultyID: "fac-1", Date: "2026-09-07", Time: "10:00", Duration: 30})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.CheckConflict(ctx, "fac-1", "tomorrow", "10:00", 30)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestMeetingServiceConflictCheckFailureDoesNotBlock(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	meetings := newMemoryMeetings()
	meetings.activeErr = errors.New("replica lag")
	svc := NewMeetingService(meetings, nil, nil, time.Second, nil, nil, zap.New(core))
	svc.now = func() time.Time { return time.Date(2026, 9, 4, 10, 0, 0, 0, time.UTC) }

	meeting, err := svc.Request(context.Background(), studentActor, RequestMeetingRequest{FacultyID: "fac-1", Date: "2026-09-07", Time: "10:00", Duration: 30})
	require.NoError(t, err)
	assert.Equal(t, models.MeetingStatusPending, meeting.Status)
	assert.Equal(t, 1, logs.FilterMessage("meeting conflict check failed, accepting request").Len())

	_, err = svc.CheckConflict(context.Background(), "fac-1", "2026-09-07", "10:00", 30)
	assert.ErrorIs(t, err, appErrors.ErrDependency)
}

func TestMeetingServiceDecide(t *testing.T) {
	ctx := context.Background()

	t.Run("approve confirms the booking", func(t *testing.T) {
		svc, meetings, notify := newMeetingFixture(t)
		pending := meetings.add(models.MeetingRequest{FacultyID: "fac-1", StudentID: "stu-1", RequestedTime: "10:00", Duration: 30, Status: models.MeetingStatusPending})

		_, err := svc.Decide(ctx, advisorActor, pending.ID, MeetingDecisionRequest{Decision: DecisionApprove})
		assert.ErrorIs(t, err, appErrors.ErrForbidden)

		meeting, err := svc.Decide(ctx, courseFaculty, pending.ID, MeetingDecisionRequest{Decision: DecisionApprove})
		require.NoError(t, err)
		assert.Equal(t, models.MeetingStatusApproved, meeting.Status)
		assert.Equal(t, models.MeetingStatusApproved, meetings.status(pending.ID))
		assert.Equal(t, []notifier.Action{notifier.ActionConfirm}, notify.actions())

		_, err = svc.Decide(ctx, courseFaculty, pending.ID, MeetingDecisionRequest{Decision: DecisionReject})
		assert.ErrorIs(t, err, appErrors.ErrValidation)
	})

	t.Run("reject removes the booking", func(t *testing.T) {
		svc, meetings, notify := newMeetingFixture(t)
		pending := meetings.add(models.MeetingRequest{FacultyID: "fac-1", StudentID: "stu-1", RequestedTime: "10:00", Duration: 30, Status: models.MeetingStatusPending})

		meeting, err := svc.Decide(ctx, courseFaculty, pending.ID, MeetingDecisionRequest{Decision: DecisionReject})
		require.NoError(t, err)
		assert.Equal(t, models.MeetingStatusRejected, meeting.Status)
		assert.Equal(t, []notifier.Action{notifier.ActionRemove}, notify.actions())
	})

	t.Run("unknown decision", func(t *testing.T) {
		svc, meetings, _ := newMeetingFixture(t)
		pending := meetings.add(models.MeetingRequest{FacultyID: "fac-1", Status: models.MeetingStatusPending})
		_, err := svc.Decide(ctx, courseFaculty, pending.ID, MeetingDecisionRequest{Decision: "maybe"})
		assert.ErrorIs(t, err, appErrors.ErrValidation)
	})

	t.Run("missing meeting", func(t *testing.T) {
		svc, _, _ := newMeetingFixture(t)
		_, err := svc.Decide(ctx, courseFaculty, "mtg-404", MeetingDecisionRequest{Decision: DecisionApprove})
		assert.ErrorIs(t, err, appErrors.ErrNotFound)
	})
}

func TestMeetingServiceCancel(t *testing.T) {
	ctx := context.Background()
	svc, meetings, notify := newMeetingFixture(t)
	approved := meetings.add(models.MeetingRequest{FacultyID: "fac-1", StudentID: "stu-1", RequestedTime: "10:00", Duration: 30, Status: models.MeetingStatusApproved})
	rejected := meetings.add(models.MeetingRequest{FacultyID: "fac-1", StudentID: "stu-1", Status: models.MeetingStatusRejected})

	_, err := svc.Cancel(ctx, models.Actor{ID: "stu-2", Role: models.RoleStudent}, approved.ID)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Cancel(ctx, courseFaculty, approved.ID)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	meeting, err := svc.Cancel(ctx, studentActor, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MeetingStatusCancelled, meeting.Status)
	require.NotNil(t, meeting.CancelledBy)
	assert.Equal(t, "stu-1", *meeting.CancelledBy)
	assert.Equal(t, []notifier.Action{notifier.ActionRemove}, notify.actions())

	_, err = svc.Cancel(ctx, studentActor, rejected.ID)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestMeetingServiceListScopes(t *testing.T) {
	ctx := context.Background()
	svc, meetings, _ := newMeetingFixture(t)

	_, err := svc.List(ctx, studentActor, ListMeetingsRequest{Date: "2026-09-07"})
	require.NoError(t, err)
	assert.Equal(t, "stu-1", meetings.lastFilter.StudentID)
	require.NotNil(t, meetings.lastFilter.Date)

	_, err = svc.List(ctx, courseFaculty, ListMeetingsRequest{Status: models.MeetingStatusPending})
	require.NoError(t, err)
	assert.Equal(t, "fac-1", meetings.lastFilter.FacultyID)
	assert.Empty(t, meetings.lastFilter.StudentID)

	_, err = svc.List(ctx, adminActor, ListMeetingsRequest{Status: "archived"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
