package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"TaskPulse/internal/events"
	"TaskPulse/internal/push"
)

type fakeProber struct {
	sent bool
	err  error
}

func (f *fakeProber) ReminderSent(ctx context.Context, taskID int64) (bool, error) {
	return f.sent, f.err
}

type fakeAPI struct {
	markedSent []int64
	markErr    error
	deletedEps []string
	deleteErr  error
}

func (f *fakeAPI) MarkReminderSent(ctx context.Context, taskID int64) error {
	f.markedSent = append(f.markedSent, taskID)
	return f.markErr
}

func (f *fakeAPI) DeleteSubscriptionEndpoint(ctx context.Context, endpoint string) error {
	f.deletedEps = append(f.deletedEps, endpoint)
	return f.deleteErr
}

type fakePusher struct {
	outcome push.Outcome
	err     error
	sends   int
	lastSub events.PushSubscription
	lastPl  push.Payload
}

func (f *fakePusher) Send(ctx context.Context, sub events.PushSubscription, p push.Payload) (push.Outcome, error) {
	f.sends++
	f.lastSub = sub
	f.lastPl = p
	return f.outcome, f.err
}

func reminderEventPayload(t *testing.T, taskID int64) []byte {
	t.Helper()
	ev := events.ReminderEvent{
		EventID:    events.NewEventID(),
		TaskID:     taskID,
		UserID:     "user-a",
		Title:      "Water plants",
		ReminderAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		PushSubscription: events.PushSubscription{
			Endpoint: "https://push.example.com/sub/1",
			Keys:     events.SubscriptionKeys{P256dh: "p", Auth: "a"},
		},
		Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return b
}

func TestHandleReminder_Delivered(t *testing.T) {
	prober := &fakeProber{}
	api := &fakeAPI{}
	pusher := &fakePusher{outcome: push.Delivered}
	w := New(prober, api, pusher, zerolog.Nop())

	err := w.HandleReminder(context.Background(), reminderEventPayload(t, 42))
	if err != nil {
		t.Fatalf("expected ack, got %v", err)
	}
	if pusher.sends != 1 {
		t.Fatalf("expected 1 send, got %d", pusher.sends)
	}
	if len(api.markedSent) != 1 || api.markedSent[0] != 42 {
		t.Fatalf("expected task 42 marked sent, got %v", api.markedSent)
	}
	if pusher.lastPl.Title != "Task Reminder" {
		t.Errorf("unexpected notification title %q", pusher.lastPl.Title)
	}
	if pusher.lastSub.Endpoint != "https://push.example.com/sub/1" {
		t.Errorf("unexpected endpoint %q", pusher.lastSub.Endpoint)
	}
}

func TestHandleReminder_AlreadySent(t *testing.T) {
	prober := &fakeProber{sent: true}
	api := &fakeAPI{}
	pusher := &fakePusher{outcome: push.Delivered}
	w := New(prober, api, pusher, zerolog.Nop())

	err := w.HandleReminder(context.Background(), reminderEventPayload(t, 42))
	if err != nil {
		t.Fatalf("expected ack, got %v", err)
	}
	if pusher.sends != 0 {
		t.Fatalf("expected no push attempts, got %d", pusher.sends)
	}
	if len(api.markedSent) != 0 {
		t.Fatalf("expected no mark-sent calls, got %v", api.markedSent)
	}
}

func TestHandleReminder_ProbeFailureDeliversAnyway(t *testing.T) {
	prober := &fakeProber{err: errors.New("db down")}
	api := &fakeAPI{}
	pusher := &fakePusher{outcome: push.Delivered}
	w := New(prober, api, pusher, zerolog.Nop())

	err := w.HandleReminder(context.Background(), reminderEventPayload(t, 42))
	if err != nil {
		t.Fatalf("expected ack, got %v", err)
	}
	if pusher.sends != 1 {
		t.Fatalf("expected delivery despite probe failure, got %d sends", pusher.sends)
	}
}

func TestHandleReminder_Terminal(t *testing.T) {
	prober := &fakeProber{}
	api := &fakeAPI{}
	pusher := &fakePusher{outcome: push.Terminal, err: errors.New("gateway returned 410")}
	w := New(prober, api, pusher, zerolog.Nop())

	err := w.HandleReminder(context.Background(), reminderEventPayload(t, 42))
	if err != nil {
		t.Fatalf("expected ack after pruning, got %v", err)
	}
	if len(api.deletedEps) != 1 || api.deletedEps[0] != "https://push.example.com/sub/1" {
		t.Fatalf("expected subscription pruned, got %v", api.deletedEps)
	}
	if len(api.markedSent) != 0 {
		t.Fatalf("terminal outcome must not mark sent, got %v", api.markedSent)
	}
}

func TestHandleReminder_TerminalPruneFailureStillAcks(t *testing.T) {
	prober := &fakeProber{}
	api := &fakeAPI{deleteErr: errors.New("api down")}
	pusher := &fakePusher{outcome: push.Terminal, err: errors.New("gateway returned 410")}
	w := New(prober, api, pusher, zerolog.Nop())

	if err := w.HandleReminder(context.Background(), reminderEventPayload(t, 42)); err != nil {
		t.Fatalf("expected ack, got %v", err)
	}
}

func TestHandleReminder_TransientRetries(t *testing.T) {
	prober := &fakeProber{}
	api := &fakeAPI{}
	pusher := &fakePusher{outcome: push.Transient, err: errors.New("gateway returned 503")}
	w := New(prober, api, pusher, zerolog.Nop())

	err := w.HandleReminder(context.Background(), reminderEventPayload(t, 42))
	if err == nil {
		t.Fatal("expected nack for transient failure")
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Fatal("transient failure must be retried, not dropped")
	}
	if len(api.markedSent) != 0 {
		t.Fatalf("failed delivery must not mark sent, got %v", api.markedSent)
	}
}

func TestHandleReminder_DeliveredButMarkSentFails(t *testing.T) {
	prober := &fakeProber{}
	api := &fakeAPI{markErr: errors.New("api down")}
	pusher := &fakePusher{outcome: push.Delivered}
	w := New(prober, api, pusher, zerolog.Nop())

	// A delivered push is acked even if the flag write fails; redelivery
	// would duplicate the notification.
	if err := w.HandleReminder(context.Background(), reminderEventPayload(t, 42)); err != nil {
		t.Fatalf("expected ack, got %v", err)
	}
}

func TestHandleReminder_MalformedPayloadDropped(t *testing.T) {
	w := New(&fakeProber{}, &fakeAPI{}, &fakePusher{}, zerolog.Nop())

	err := w.HandleReminder(context.Background(), []byte("{not json"))
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload must be dropped, got %v", err)
	}
}

func TestHandleTaskEvent(t *testing.T) {
	w := New(&fakeProber{}, &fakeAPI{}, &fakePusher{}, zerolog.Nop())

	ev := events.TaskEvent{
		EventID:   events.NewEventID(),
		EventType: events.TaskCompleted,
		TaskID:    7,
		UserID:    "user-a",
		Timestamp: time.Now().UTC(),
	}
	b, _ := json.Marshal(ev)
	if err := w.HandleTaskEvent(context.Background(), b); err != nil {
		t.Fatalf("expected ack, got %v", err)
	}

	err := w.HandleTaskEvent(context.Background(), []byte("nope"))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload must be dropped, got %v", err)
	}
}
