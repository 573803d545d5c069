// Package notifier delivers best-effort calendar notifications for meeting
// requests. Delivery is asynchronous and never affects the meeting state.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/pkg/config"
	"github.com/noah-isme/academic-records-api/pkg/jobs"
)

// Action tells the calendar what to do with the event.
type Action string

const (
	ActionBook    Action = "book"
	ActionConfirm Action = "confirm"
	ActionRemove  Action = "remove"
)

// Notification outcomes reported to the recorder.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

const jobType = "calendar.notify"

// Event describes a meeting that should be booked on or removed from a
// faculty calendar.
type Event struct {
	Action    Action `json:"action"`
	MeetingID string `json:"meeting_id"`
	FacultyID string `json:"faculty_id"`
	StudentID string `json:"student_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
	Purpose   string `json:"purpose,omitempty"`
}

// Recorder counts notification outcomes.
type Recorder interface {
	RecordCalendarNotification(outcome string)
}

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Notifier posts events to a calendar webhook from a background queue.
type Notifier struct {
	url      string
	client   doer
	queue    *jobs.Queue
	recorder Recorder
	logger   *zap.Logger
}

// New constructs a Notifier. When calendar sync is disabled the notifier
// accepts events and discards them.
func New(cfg config.CalendarConfig, recorder Recorder, logger *zap.Logger) *Notifier {
	return newNotifier(cfg, &http.Client{Timeout: cfg.Timeout}, recorder, logger)
}

func newNotifier(cfg config.CalendarConfig, client doer, recorder Recorder, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{url: cfg.WebhookURL, client: client, recorder: recorder, logger: logger}
	if !cfg.Enabled || cfg.WebhookURL == "" {
		return n
	}
	n.queue = jobs.NewQueue("calendar", n.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		JobTimeout: cfg.Timeout,
		OnDone:     n.done,
		Logger:     logger,
	})
	return n
}

// Enabled reports whether events are delivered.
func (n *Notifier) Enabled() bool {
	return n != nil && n.queue != nil
}

// Start launches the delivery workers.
func (n *Notifier) Start(ctx context.Context) {
	if n.Enabled() {
		n.queue.Start(ctx)
	}
}

// Stop waits for the delivery workers to exit.
func (n *Notifier) Stop() {
	if n.Enabled() {
		n.queue.Stop()
	}
}

// Notify schedules delivery of event. Failures are logged and counted, never
// returned.
func (n *Notifier) Notify(_ context.Context, event Event) {
	if !n.Enabled() {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: event}
	if err := n.queue.Enqueue(job); err != nil {
		n.logger.Warn("calendar notification dropped",
			zap.String("meeting_id", event.MeetingID),
			zap.String("action", string(event.Action)),
			zap.Error(err))
		n.record(OutcomeDropped)
	}
}

func (n *Notifier) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(Event)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode calendar event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build calendar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", event.MeetingID+":"+string(event.Action))
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post calendar event: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("calendar webhook responded %d", resp.StatusCode)
	}
	return nil
}

func (n *Notifier) done(job jobs.Job, err error) {
	event, _ := job.Payload.(Event)
	if err != nil {
		n.logger.Warn("calendar notification failed",
			zap.String("meeting_id", event.MeetingID),
			zap.String("action", string(event.Action)),
			zap.Int("attempts", job.Attempt),
			zap.Error(err))
		n.record(OutcomeFailed)
		return
	}
	n.logger.Debug("calendar notification delivered", zap.String("meeting_id", event.MeetingID), zap.Duration("latency", time.Since(job.Enqueued)))
	n.record(OutcomeDelivered)
}

func (n *Notifier) record(outcome string) {
	if n.recorder != nil {
		n.recorder.RecordCalendarNotification(outcome)
	}
}
