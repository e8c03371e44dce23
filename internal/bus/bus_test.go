package bus

import (
	"errors"
	"testing"

	"github.com/hibiken/asynq"
)

func TestQueueFor(t *testing.T) {
	if q := queueFor("reminders"); q != "reminders" {
		t.Errorf("unexpected queue %q", q)
	}
	if q := queueFor("task-events"); q != "task-events" {
		t.Errorf("unexpected queue %q", q)
	}
	if q := queueFor("something-else"); q != defaultQueue {
		t.Errorf("unexpected queue %q", q)
	}
}

func TestDrop(t *testing.T) {
	base := errors.New("bad payload")
	err := Drop(base)

	if !errors.Is(err, asynq.SkipRetry) {
		t.Error("dropped error must match SkipRetry")
	}
}
