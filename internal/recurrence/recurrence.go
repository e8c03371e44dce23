// Package recurrence computes the next occurrence of a recurring task.
//
// Rules are plain strings: "daily", "weekly", "monthly", "weekdays", or
// "cron:<m> <h> <dom> <mon> <dow>". All arithmetic is on naive UTC
// timestamps.
package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidRule is returned for unknown or malformed recurrence rules.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// cronMaxIterations bounds the minute-by-minute cron search to one year.
const cronMaxIterations = 525600

type ruleKind int

const (
	kindDaily ruleKind = iota
	kindWeekly
	kindMonthly
	kindWeekdays
	kindCron
)

func parseRule(rule string) (ruleKind, string, error) {
	r := strings.ToLower(strings.TrimSpace(rule))
	if r == "" {
		return 0, "", fmt.Errorf("%w: empty rule", ErrInvalidRule)
	}

	switch r {
	case "daily":
		return kindDaily, "", nil
	case "weekly":
		return kindWeekly, "", nil
	case "monthly":
		return kindMonthly, "", nil
	case "weekdays":
		return kindWeekdays, "", nil
	}

	if expr, ok := strings.CutPrefix(r, "cron:"); ok {
		expr = strings.TrimSpace(expr)
		fields := strings.Fields(expr)
		if len(fields) != 5 {
			return 0, "", fmt.Errorf("%w: expected 5 cron fields, got %d", ErrInvalidRule, len(fields))
		}
		return kindCron, expr, nil
	}

	return 0, "", fmt.Errorf("%w: unknown rule %q", ErrInvalidRule, rule)
}

// Valid reports whether rule is a parseable recurrence rule.
func Valid(rule string) bool {
	_, _, err := parseRule(rule)
	return err == nil
}

// Next computes the next occurrence after current, or nil when the series
// has ended (next would exceed end, or the cron search found no match
// within a year).
func Next(current time.Time, rule string, end *time.Time) (*time.Time, error) {
	kind, expr, err := parseRule(rule)
	if err != nil {
		return nil, err
	}

	current = current.UTC()

	var next *time.Time
	switch kind {
	case kindDaily:
		n := current.AddDate(0, 0, 1)
		next = &n
	case kindWeekly:
		n := current.AddDate(0, 0, 7)
		next = &n
	case kindMonthly:
		n := addMonths(current, 1)
		next = &n
	case kindWeekdays:
		n := nextWeekday(current)
		next = &n
	case kindCron:
		next = nextCron(current, expr)
	}

	if next != nil && end != nil && next.After(end.UTC()) {
		return nil, nil
	}
	return next, nil
}

// addMonths adds months with day clamping: Jan 31 + 1 month = Feb 28/29.
// time.AddDate would normalize into March instead.
func addMonths(t time.Time, months int) time.Time {
	year, month := t.Year(), int(t.Month())-1+months
	year += month / 12
	month = month % 12

	maxDay := daysInMonth(year, time.Month(month+1))
	day := t.Day()
	if day > maxDay {
		day = maxDay
	}

	return time.Date(year, time.Month(month+1), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func nextWeekday(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextCron advances minute by minute from the next whole minute until all
// five fields match, or gives up after a year.
func nextCron(t time.Time, expr string) *time.Time {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil
	}
	minute, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4]

	candidate := t.Truncate(time.Minute).Add(time.Minute)
	for i := 0; i < cronMaxIterations; i++ {
		if matchesCron(candidate, minute, hour, dom, month, dow) {
			c := candidate
			return &c
		}
		candidate = candidate.Add(time.Minute)
	}
	return nil
}

func matchesCron(t time.Time, minute, hour, dom, month, dow string) bool {
	// time.Weekday already uses 0 = Sunday, matching cron.
	return matchesField(t.Minute(), minute) &&
		matchesField(t.Hour(), hour) &&
		matchesField(t.Day(), dom) &&
		matchesField(int(t.Month()), month) &&
		matchesField(int(t.Weekday()), dow)
}

// matchesField checks a value against one cron field: "*", "5", "1,3,5",
// "1-5", or "*/n".
func matchesField(value int, pattern string) bool {
	if pattern == "*" {
		return true
	}

	if step, ok := strings.CutPrefix(pattern, "*/"); ok {
		n, err := strconv.Atoi(step)
		if err != nil || n <= 0 {
			return false
		}
		return value%n == 0
	}

	if strings.Contains(pattern, ",") {
		for _, part := range strings.Split(pattern, ",") {
			n, err := strconv.Atoi(part)
			if err != nil {
				return false
			}
			if value == n {
				return true
			}
		}
		return false
	}

	if lo, hi, ok := strings.Cut(pattern, "-"); ok {
		start, err1 := strconv.Atoi(lo)
		end, err2 := strconv.Atoi(hi)
		if err1 != nil || err2 != nil {
			return false
		}
		return start <= value && value <= end
	}

	n, err := strconv.Atoi(pattern)
	return err == nil && value == n
}
