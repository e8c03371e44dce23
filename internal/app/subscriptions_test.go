package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
)

func TestUpsertSubscription_Validation(t *testing.T) {
	db := &MockDB{}
	ctx := context.Background()

	cases := []struct {
		name                    string
		endpoint, p256dh, auth1 string
	}{
		{"Missing endpoint", "", "p", "a"},
		{"Missing p256dh", "https://push/1", "", "a"},
		{"Missing auth", "https://push/1", "p", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := UpsertSubscription(ctx, db, "user-a", tc.endpoint, tc.p256dh, tc.auth1, nil)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUpsertSubscription_TruncatesUserAgent(t *testing.T) {
	var gotArgs []any
	db := &MockDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			gotArgs = args
			return &MockRow{ScanFunc: func(dest ...any) error {
				*(dest[0].(*int64)) = 1
				*(dest[1].(*string)) = "user-a"
				*(dest[2].(*string)) = "https://push/1"
				*(dest[3].(*string)) = "p"
				*(dest[4].(*string)) = "a"
				// dest[5] user_agent, dest[6] created_at, dest[7] updated_at
				*(dest[8].(*bool)) = true
				return nil
			}}
		},
	}

	long := strings.Repeat("y", 600)
	_, created, err := UpsertSubscription(context.Background(), db, "user-a",
		"https://push/1", "p", "a", &long)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true")
	}

	ua := gotArgs[4].(*string)
	if got := utf8.RuneCountInString(*ua); got != 500 {
		t.Errorf("expected user agent truncated to 500 runes, got %d", got)
	}
}
