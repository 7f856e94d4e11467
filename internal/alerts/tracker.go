// Package alerts decides which expiry alerts to emit and remembers that they were emitted.
package alerts

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/mhd-core/internal/domain"
)

// Kind distinguishes the two alert transitions an item can signal
type Kind int

const (
	KindSoon Kind = iota
	KindExpired
)

func (k Kind) String() string {
	switch k {
	case KindSoon:
		return "soon"
	case KindExpired:
		return "expired"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Alert is a single user-facing notification about an item
type Alert struct {
	ItemID   string
	ItemName string
	Kind     Kind
	Days     int
	Title    string
	Body     string
}

// Emitter delivers alert text to the user. notify.Gate satisfies it.
type Emitter interface {
	Emit(ctx context.Context, title, body string) error
}

// Tracker emits each alert kind at most once per item between upserts.
type Tracker struct {
	emitter Emitter
	logger  *logrus.Logger
}

// NewTracker creates a tracker that delivers through emitter
func NewTracker(emitter Emitter, logger *logrus.Logger) *Tracker {
	return &Tracker{emitter: emitter, logger: logger}
}

// Evaluate computes the alerts due for items and the notification state after firing them.
// The input state is not modified. Items without an entry are treated as armed.
func Evaluate(items []domain.AnnotatedItem, settings domain.Settings, state domain.NotificationState) ([]Alert, domain.NotificationState) {
	next := state.Clone()
	var due []Alert

	for _, item := range items {
		days, finite := item.DaysRemaining.Days()
		if !finite {
			continue
		}

		flags := next[item.ID]
		switch {
		case item.Status == domain.StatusExpired && settings.NotifyExpiredEnabled && !flags.ExpiredAlerted:
			flags.ExpiredAlerted = true
			next[item.ID] = flags
			due = append(due, newAlert(item, KindExpired, days))

		case item.Status == domain.StatusSoon && settings.NotifySoonEnabled && !flags.SoonAlerted:
			flags.SoonAlerted = true
			next[item.ID] = flags
			due = append(due, newAlert(item, KindSoon, days))
		}
	}

	return due, next
}

// Check runs Evaluate and emits every due alert. Delivery failures are logged and do not
// re-arm the flag, so a broken channel never causes duplicates later.
func (t *Tracker) Check(ctx context.Context, items []domain.AnnotatedItem, settings domain.Settings, state domain.NotificationState) ([]Alert, domain.NotificationState) {
	due, next := Evaluate(items, settings, state)

	for _, alert := range due {
		entry := t.logger.WithFields(logrus.Fields{
			"item_id":   alert.ItemID,
			"item_name": alert.ItemName,
			"kind":      alert.Kind.String(),
			"days":      alert.Days,
		})
		if err := t.emitter.Emit(ctx, alert.Title, alert.Body); err != nil {
			entry.WithError(err).Warn("failed to deliver alert")
			continue
		}
		entry.Info("alert emitted")
	}

	return due, next
}

// Changed reports whether two notification states differ.
func Changed(before, after domain.NotificationState) bool {
	if len(before) != len(after) {
		return true
	}
	for id, flags := range after {
		if prev, ok := before[id]; !ok || prev != flags {
			return true
		}
	}
	return false
}
