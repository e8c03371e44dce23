// Package push dispatches VAPID-signed Web Push notifications.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"TaskPulse/internal/events"
)

// gatewayTimeout bounds one push dispatch.
const gatewayTimeout = 30 * time.Second

// Outcome classifies a dispatch attempt for the worker's state machine.
type Outcome int

const (
	// Delivered: the gateway accepted the push (2xx).
	Delivered Outcome = iota
	// Terminal: the subscription is gone for good (400/404/410). Retrying
	// will never help; the subscription should be pruned.
	Terminal
	// Transient: network error, 5xx or 429. Worth retrying.
	Transient
)

type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// VAPIDSubject is the contact URI presented to the gateway,
	// e.g. "mailto:ops@taskpulse.dev".
	VAPIDSubject string
}

type Sender struct {
	cfg    Config
	client *http.Client
}

func NewSender(cfg Config) *Sender {
	return &Sender{
		cfg:    cfg,
		client: &http.Client{Timeout: gatewayTimeout},
	}
}

// Payload is the notification JSON the Service Worker consumes. Field
// names are part of the wire contract.
type Payload struct {
	Title              string      `json:"title"`
	Body               string      `json:"body"`
	Icon               string      `json:"icon"`
	Badge              string      `json:"badge"`
	Tag                string      `json:"tag"`
	RequireInteraction bool        `json:"requireInteraction"`
	Data               PayloadData `json:"data"`
}

type PayloadData struct {
	URL string `json:"url"`
}

// ReminderPayload composes the notification for a due task reminder.
func ReminderPayload(taskID int64, title string, dueAt *time.Time) Payload {
	body := "Reminder: " + title
	if dueAt != nil {
		body += "\nDue: " + dueAt.UTC().Format(time.RFC3339)
	}
	return Payload{
		Title:              "Task Reminder",
		Body:               body,
		Icon:               "/icon-192x192.png",
		Badge:              "/badge-72x72.png",
		Tag:                fmt.Sprintf("reminder-%d", taskID),
		RequireInteraction: true,
		Data:               PayloadData{URL: fmt.Sprintf("/tasks?highlight=%d", taskID)},
	}
}

// Send signs and dispatches the payload to one subscription endpoint and
// classifies the gateway's answer. The error carries detail for logging;
// it is non-nil for Terminal and Transient outcomes.
func (s *Sender) Send(ctx context.Context, sub events.PushSubscription, p Payload) (Outcome, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Transient, fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.cfg.VAPIDSubject,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             3600,
	})
	if err != nil {
		return Transient, fmt.Errorf("push dispatch: %w", err)
	}
	defer resp.Body.Close()

	return Classify(resp.StatusCode)
}

// Classify maps a push gateway status code to an outcome.
func Classify(status int) (Outcome, error) {
	switch {
	case status >= 200 && status < 300:
		return Delivered, nil
	case status == http.StatusBadRequest,
		status == http.StatusNotFound,
		status == http.StatusGone:
		return Terminal, fmt.Errorf("subscription gone: gateway returned %d", status)
	default:
		return Transient, fmt.Errorf("push gateway returned %d", status)
	}
}
