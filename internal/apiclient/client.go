// Package apiclient is the worker's client for the server's internal
// service endpoints. All writes the worker needs go through here so the
// API stays the single owner of task and subscription mutations.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 10 * time.Second

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, serviceToken string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   serviceToken,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// MarkReminderSent flips the task's reminder_sent flag. A 404 is not an
// error: the task may have been permanently deleted since the event was
// published, and there is nothing left to mark.
func (c *Client) MarkReminderSent(ctx context.Context, taskID int64) error {
	url := fmt.Sprintf("%s/api/v1/tasks/%d/reminder-sent", c.baseURL, taskID)
	return c.do(ctx, http.MethodPatch, url, nil)
}

// DeleteSubscriptionEndpoint prunes a push subscription the gateway has
// rejected as gone.
func (c *Client) DeleteSubscriptionEndpoint(ctx context.Context, endpoint string) error {
	url := c.baseURL + "/api/v1/push-subscriptions/by-endpoint"
	body := map[string]string{"endpoint": endpoint}
	return c.do(ctx, http.MethodDelete, url, body)
}

func (c *Client) do(ctx context.Context, method, url string, body any) error {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, strings.TrimSpace(string(msg)))
}
