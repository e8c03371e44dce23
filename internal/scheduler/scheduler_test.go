package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"TaskPulse/internal/app"
	"TaskPulse/internal/events"
)

type fakeStore struct {
	tasks   []app.Task
	subs    map[string][]app.Subscription
	dueErr  error
	subsErr map[string]error
}

func (f *fakeStore) DueReminders(ctx context.Context, now time.Time) ([]app.Task, error) {
	if f.dueErr != nil {
		return nil, f.dueErr
	}
	return f.tasks, nil
}

func (f *fakeStore) SubscriptionsForUser(ctx context.Context, userID string) ([]app.Subscription, error) {
	if err := f.subsErr[userID]; err != nil {
		return nil, err
	}
	return f.subs[userID], nil
}

type fakeBus struct {
	published []publishCall
	failAfter int
	calls     int
}

type publishCall struct {
	topic   string
	payload []byte
}

func (f *fakeBus) Publish(ctx context.Context, topic string, payload []byte) error {
	f.calls++
	if f.failAfter > 0 && f.calls > f.failAfter {
		return errors.New("bus unavailable")
	}
	f.published = append(f.published, publishCall{topic: topic, payload: payload})
	return nil
}

func reminderTask(id int64, userID, title string, reminderAt time.Time) app.Task {
	return app.Task{ID: id, UserID: userID, Title: title, ReminderAt: &reminderAt}
}

func sub(endpoint string) app.Subscription {
	return app.Subscription{Endpoint: endpoint, P256dhKey: "p256dh-key", AuthKey: "auth-key"}
}

func TestRunTick_FanOut(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{
		tasks: []app.Task{
			reminderTask(1, "user-a", "Water plants", at),
			reminderTask(2, "user-b", "Pay rent", at),
		},
		subs: map[string][]app.Subscription{
			"user-a": {sub("https://push/a1"), sub("https://push/a2")},
			"user-b": {sub("https://push/b1")},
		},
	}
	bus := &fakeBus{}
	s := New(store, bus, time.Minute, zerolog.Nop())

	published, err := s.RunTick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if published != 3 {
		t.Fatalf("expected 3 published events, got %d", published)
	}

	for _, call := range bus.published {
		if call.topic != events.TopicReminders {
			t.Errorf("expected topic %s, got %s", events.TopicReminders, call.topic)
		}
		var ev events.ReminderEvent
		if err := json.Unmarshal(call.payload, &ev); err != nil {
			t.Fatalf("payload does not decode: %v", err)
		}
		if ev.EventID == "" {
			t.Error("event id is empty")
		}
		if ev.PushSubscription.Endpoint == "" {
			t.Error("event has no subscription endpoint")
		}
	}
}

func TestRunTick_NoSubscriptions(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{
		tasks: []app.Task{reminderTask(1, "user-a", "Water plants", at)},
		subs:  map[string][]app.Subscription{},
	}
	bus := &fakeBus{}
	s := New(store, bus, time.Minute, zerolog.Nop())

	published, err := s.RunTick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if published != 0 {
		t.Fatalf("expected 0 published events, got %d", published)
	}
}

func TestRunTick_PublishFailureDoesNotStopOthers(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{
		tasks: []app.Task{
			reminderTask(1, "user-a", "First", at),
			reminderTask(2, "user-a", "Second", at),
			reminderTask(3, "user-a", "Third", at),
		},
		subs: map[string][]app.Subscription{
			"user-a": {sub("https://push/a1")},
		},
	}
	bus := &fakeBus{failAfter: 1}
	s := New(store, bus, time.Minute, zerolog.Nop())

	published, err := s.RunTick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if published != 1 {
		t.Fatalf("expected 1 published event, got %d", published)
	}
	if bus.calls != 3 {
		t.Fatalf("expected all 3 publish attempts, got %d", bus.calls)
	}
}

func TestRunTick_SubscriptionLookupFailureSkipsUser(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{
		tasks: []app.Task{
			reminderTask(1, "user-a", "Broken", at),
			reminderTask(2, "user-b", "Fine", at),
		},
		subs: map[string][]app.Subscription{
			"user-b": {sub("https://push/b1")},
		},
		subsErr: map[string]error{"user-a": errors.New("db down")},
	}
	bus := &fakeBus{}
	s := New(store, bus, time.Minute, zerolog.Nop())

	published, err := s.RunTick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if published != 1 {
		t.Fatalf("expected 1 published event, got %d", published)
	}
}

func TestRunTick_ScanError(t *testing.T) {
	store := &fakeStore{dueErr: errors.New("db down")}
	bus := &fakeBus{}
	s := New(store, bus, time.Minute, zerolog.Nop())

	if _, err := s.RunTick(context.Background()); err == nil {
		t.Fatal("expected error when the due scan fails")
	}
	if bus.calls != 0 {
		t.Fatalf("expected no publish attempts, got %d", bus.calls)
	}
}
