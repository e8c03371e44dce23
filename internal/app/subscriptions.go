package app

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"
)

const maxUserAgentLen = 500

type Subscription struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh_key"`
	AuthKey   string    `json:"auth_key"`
	UserAgent *string   `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const subscriptionColumns = `id, user_id, endpoint, p256dh_key, auth_key, user_agent, created_at, updated_at`

// UpsertSubscription registers a browser push endpoint. Endpoints are
// globally unique: re-registering refreshes the keys, and a re-register
// from a different account claims the endpoint for that account (the
// browser profile changed owners).
func UpsertSubscription(ctx context.Context, db DBTX, userID, endpoint, p256dh, auth string, userAgent *string) (Subscription, bool, error) {
	if endpoint == "" || p256dh == "" || auth == "" {
		return Subscription{}, false, validationf("endpoint, p256dh_key and auth_key are required")
	}
	if userAgent != nil && utf8.RuneCountInString(*userAgent) > maxUserAgentLen {
		trimmed := string([]rune(*userAgent)[:maxUserAgentLen])
		userAgent = &trimmed
	}

	var s Subscription
	var created bool
	err := db.QueryRow(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh_key, auth_key, user_agent)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (endpoint) DO UPDATE
		 SET user_id=EXCLUDED.user_id,
		     p256dh_key=EXCLUDED.p256dh_key,
		     auth_key=EXCLUDED.auth_key,
		     user_agent=EXCLUDED.user_agent,
		     updated_at=now() AT TIME ZONE 'utc'
		 RETURNING `+subscriptionColumns+`, (xmax = 0) AS inserted`,
		userID, endpoint, p256dh, auth, userAgent,
	).Scan(
		&s.ID, &s.UserID, &s.Endpoint, &s.P256dhKey, &s.AuthKey, &s.UserAgent,
		&s.CreatedAt, &s.UpdatedAt, &created,
	)
	if err != nil {
		return Subscription{}, false, fmt.Errorf("upsert subscription: %w", err)
	}
	return s, created, nil
}

func ListSubscriptions(ctx context.Context, db DBTX, userID string) ([]Subscription, error) {
	rows, err := db.Query(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM push_subscriptions
		 WHERE user_id=$1
		 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	out := make([]Subscription, 0, 8)
	for rows.Next() {
		var s Subscription
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Endpoint, &s.P256dhKey, &s.AuthKey, &s.UserAgent,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSubscriptionByEndpoint removes one of the user's own endpoints.
// Deleting an endpoint that is already gone is not an error.
func DeleteSubscriptionByEndpoint(ctx context.Context, db DBTX, userID, endpoint string) error {
	_, err := db.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE user_id=$1 AND endpoint=$2`,
		userID, endpoint,
	)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// DeleteSubscriptionEndpoint removes an endpoint regardless of owner. Used
// by the notification worker when the push gateway reports the
// subscription gone.
func DeleteSubscriptionEndpoint(ctx context.Context, db DBTX, endpoint string) error {
	_, err := db.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE endpoint=$1`, endpoint)
	if err != nil {
		return fmt.Errorf("delete subscription endpoint: %w", err)
	}
	return nil
}

func DeleteAllSubscriptions(ctx context.Context, db DBTX, userID string) error {
	_, err := db.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE user_id=$1`, userID)
	if err != nil {
		return fmt.Errorf("delete subscriptions: %w", err)
	}
	return nil
}
