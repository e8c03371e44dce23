// Package events defines the JSON payloads carried on the event bus.
// Timestamps serialize as RFC 3339 UTC.
package events

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Topic names. Reminders and task lifecycle events stay on separate topics
// so backpressure on one never delays the other.
const (
	TopicReminders  = "reminders"
	TopicTaskEvents = "task-events"
)

// Task lifecycle event types. The core only produces "completed"; the rest
// exist for external producers and consumers sharing the topic.
const (
	TaskCreated   = "created"
	TaskUpdated   = "updated"
	TaskCompleted = "completed"
	TaskDeleted   = "deleted"
)

// NewEventID returns a lexicographically sortable unique event id.
func NewEventID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
}

type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

type PushSubscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

// ReminderEvent is published once per (task, subscription) pair when a
// reminder falls due. The worker consumes it from TopicReminders.
type ReminderEvent struct {
	EventID          string           `json:"event_id"`
	TaskID           int64            `json:"task_id"`
	UserID           string           `json:"user_id"`
	Title            string           `json:"title"`
	ReminderAt       time.Time        `json:"reminder_at"`
	DueAt            *time.Time       `json:"due_at,omitempty"`
	PushSubscription PushSubscription `json:"push_subscription"`
	Timestamp        time.Time        `json:"timestamp"`
}

// TaskEvent is published on TopicTaskEvents after a lifecycle transition
// commits. Best-effort; not transactional with the database.
type TaskEvent struct {
	EventID        string         `json:"event_id"`
	EventType      string         `json:"event_type"`
	TaskID         int64          `json:"task_id"`
	UserID         string         `json:"user_id"`
	TaskData       map[string]any `json:"task_data"`
	Timestamp      time.Time      `json:"timestamp"`
	IsRecurring    bool           `json:"is_recurring"`
	RecurrenceRule *string        `json:"recurrence_rule,omitempty"`
}
