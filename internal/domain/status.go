package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for stored dates.
const DateLayout = "2006-01-02"

// Status is the freshness classification of an item
type Status int

const (
	StatusOK Status = iota
	StatusSoon
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSoon:
		return "soon"
	case StatusExpired:
		return "expired"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus accepts the names produced by String, case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ok":
		return StatusOK, nil
	case "soon":
		return StatusSoon, nil
	case "expired":
		return StatusExpired, nil
	default:
		return StatusOK, fmt.Errorf("unknown status %q", s)
	}
}

// DaysRemaining is either a finite whole-day count or unbounded (no expiry date).
// The zero value is unbounded.
type DaysRemaining struct {
	days    int
	bounded bool
}

// Finite returns a bounded day count.
func Finite(days int) DaysRemaining {
	return DaysRemaining{days: days, bounded: true}
}

// Unbounded returns the day count of an item without an expiry date.
func Unbounded() DaysRemaining {
	return DaysRemaining{}
}

// Days returns the day count and whether it is finite.
func (d DaysRemaining) Days() (int, bool) {
	return d.days, d.bounded
}

// IsFinite reports whether the item has a usable expiry date.
func (d DaysRemaining) IsFinite() bool {
	return d.bounded
}

func (d DaysRemaining) String() string {
	if !d.bounded {
		return "∞"
	}
	return strconv.Itoa(d.days)
}

// AnnotatedItem is an item together with its derived freshness. It is never persisted.
type AnnotatedItem struct {
	Item
	DaysRemaining DaysRemaining
	Status        Status
}

// ParseDate parses a stored calendar date. Full RFC 3339 timestamps are accepted and
// reduced to their calendar date. The returned time is midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return midnight(t), true
	}
	return time.Time{}, false
}

// FormatDate renders t's calendar date in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// midnight returns t's calendar date as midnight UTC, so subtraction never sees DST shifts.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const secondsPerDay = 24 * 60 * 60

// WholeCalendarDays returns the number of calendar days from today to target,
// ignoring time of day. Any pair of representable dates works; time.Duration would
// saturate beyond about 292 years.
func WholeCalendarDays(today, target time.Time) int {
	return int(dayNumber(target) - dayNumber(today))
}

// dayNumber counts days since 1970-01-01. Midnight UTC is an exact multiple of a day.
func dayNumber(t time.Time) int64 {
	return midnight(t).Unix() / secondsPerDay
}

// Classify derives the remaining days and status of item on the given day.
// A missing or malformed expiry date yields Unbounded and StatusOK.
func Classify(item Item, today time.Time, soonThresholdDays int) (DaysRemaining, Status) {
	expiry, ok := ParseDate(item.ExpiryDate)
	if !ok {
		return Unbounded(), StatusOK
	}

	days := WholeCalendarDays(today, expiry)
	switch {
	case days < 0:
		return Finite(days), StatusExpired
	case days <= soonThresholdDays:
		return Finite(days), StatusSoon
	default:
		return Finite(days), StatusOK
	}
}

// Annotate classifies every item against today and the threshold.
func Annotate(items []Item, today time.Time, soonThresholdDays int) []AnnotatedItem {
	annotated := make([]AnnotatedItem, 0, len(items))
	for _, item := range items {
		days, status := Classify(item, today, soonThresholdDays)
		annotated = append(annotated, AnnotatedItem{Item: item, DaysRemaining: days, Status: status})
	}
	return annotated
}
