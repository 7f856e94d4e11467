package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaDevFox/task-systems/mhd-core/internal/domain"
)

type recordingEmitter struct {
	titles []string
	err    error
}

func (r *recordingEmitter) Emit(ctx context.Context, title, body string) error {
	if r.err != nil {
		return r.err
	}
	r.titles = append(r.titles, title)
	return nil
}

var today = time.Date(2026, time.October, 15, 9, 0, 0, 0, time.Local)

func offset(days int) string {
	return domain.FormatDate(today.AddDate(0, 0, days))
}

func scenarioItems() []domain.Item {
	return []domain.Item{
		{ID: "a", Name: "Item A", ExpiryDate: offset(-1), Quantity: 1},
		{ID: "b", Name: "Item B", ExpiryDate: offset(3), Quantity: 1},
		{ID: "c", Name: "Item C", Quantity: 1},
	}
}

func newTestTracker(emitter Emitter) *Tracker {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewTracker(emitter, logger)
}

func TestEvaluateScenario(t *testing.T) {
	settings := domain.DefaultSettings()
	annotated := domain.Annotate(scenarioItems(), today, 7)

	first, state := Evaluate(annotated, settings, domain.NotificationState{})
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].ItemID)
	assert.Equal(t, KindExpired, first[0].Kind)
	assert.Equal(t, "b", first[1].ItemID)
	assert.Equal(t, KindSoon, first[1].Kind)
	assert.NotContains(t, state, "c")

	second, after := Evaluate(annotated, settings, state)
	assert.Empty(t, second)
	assert.False(t, Changed(state, after))
}

func TestEvaluateDoesNotMutateInput(t *testing.T) {
	state := domain.NotificationState{"a": {}}
	annotated := domain.Annotate(scenarioItems(), today, 7)

	_, next := Evaluate(annotated, domain.DefaultSettings(), state)

	assert.False(t, state["a"].ExpiredAlerted)
	assert.True(t, next["a"].ExpiredAlerted)
}

func TestEvaluateRespectsSettings(t *testing.T) {
	annotated := domain.Annotate(scenarioItems(), today, 7)

	tests := []struct {
		name     string
		settings domain.Settings
		expected []Kind
	}{
		{
			name:     "soon disabled",
			settings: domain.Settings{SoonThresholdDays: 7, NotifyExpiredEnabled: true},
			expected: []Kind{KindExpired},
		},
		{
			name:     "expired disabled",
			settings: domain.Settings{SoonThresholdDays: 7, NotifySoonEnabled: true},
			expected: []Kind{KindSoon},
		},
		{
			name:     "both disabled",
			settings: domain.Settings{SoonThresholdDays: 7},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due, next := Evaluate(annotated, tt.settings, domain.NotificationState{})
			var kinds []Kind
			for _, a := range due {
				kinds = append(kinds, a.Kind)
			}
			assert.Equal(t, tt.expected, kinds)
			if len(tt.expected) == 0 {
				assert.Empty(t, next)
			}
		})
	}
}

func TestEvaluateExpiredItemDoesNotAlsoSendSoon(t *testing.T) {
	annotated := domain.Annotate([]domain.Item{{ID: "a", Name: "A", ExpiryDate: offset(-2)}}, today, 7)

	_, state := Evaluate(annotated, domain.DefaultSettings(), domain.NotificationState{})

	assert.Equal(t, domain.AlertFlags{ExpiredAlerted: true}, state["a"])
}

func TestEvaluateSoonThenExpiredFiresBoth(t *testing.T) {
	item := domain.Item{ID: "a", Name: "A", ExpiryDate: offset(1)}
	settings := domain.DefaultSettings()

	soon, state := Evaluate(domain.Annotate([]domain.Item{item}, today, 7), settings, domain.NotificationState{})
	require.Len(t, soon, 1)
	assert.Equal(t, KindSoon, soon[0].Kind)

	later := today.AddDate(0, 0, 3)
	expired, state := Evaluate(domain.Annotate([]domain.Item{item}, later, 7), settings, state)
	require.Len(t, expired, 1)
	assert.Equal(t, KindExpired, expired[0].Kind)
	assert.Equal(t, domain.AlertFlags{SoonAlerted: true, ExpiredAlerted: true}, state["a"])
}

func TestEvaluateFlagSurvivesStatusFlipWithoutUpsert(t *testing.T) {
	item := domain.Item{ID: "b", Name: "B", ExpiryDate: offset(3)}

	_, state := Evaluate(domain.Annotate([]domain.Item{item}, today, 7), domain.DefaultSettings(), domain.NotificationState{})

	// threshold lowered: item becomes OK, nothing fires
	none, state := Evaluate(domain.Annotate([]domain.Item{item}, today, 1), domain.Settings{SoonThresholdDays: 1, NotifySoonEnabled: true}, state)
	assert.Empty(t, none)

	// threshold raised again: SOON again, still no second alert
	again, _ := Evaluate(domain.Annotate([]domain.Item{item}, today, 7), domain.DefaultSettings(), state)
	assert.Empty(t, again)
}

func TestEvaluateRearmAfterUpsert(t *testing.T) {
	item := domain.Item{ID: "a", Name: "A", ExpiryDate: offset(-1)}
	settings := domain.DefaultSettings()

	_, state := Evaluate(domain.Annotate([]domain.Item{item}, today, 7), settings, domain.NotificationState{})
	require.True(t, state["a"].ExpiredAlerted)

	// edit to the future: arming reset, status OK, nothing fires
	item.ExpiryDate = offset(30)
	state.Arm(item.ID)
	none, state := Evaluate(domain.Annotate([]domain.Item{item}, today, 7), settings, state)
	assert.Empty(t, none)

	// edit back to the past: re-armed, fires again
	item.ExpiryDate = offset(-5)
	state.Arm(item.ID)
	due, _ := Evaluate(domain.Annotate([]domain.Item{item}, today, 7), settings, state)
	require.Len(t, due, 1)
	assert.Equal(t, KindExpired, due[0].Kind)
}

func TestTrackerCheckEmitsAndRecords(t *testing.T) {
	emitter := &recordingEmitter{}
	tracker := newTestTracker(emitter)
	annotated := domain.Annotate(scenarioItems(), today, 7)

	due, state := tracker.Check(context.Background(), annotated, domain.DefaultSettings(), domain.NotificationState{})
	require.Len(t, due, 2)
	assert.Equal(t, []string{"Expired: Item A", "Expiring soon: Item B"}, emitter.titles)

	again, _ := tracker.Check(context.Background(), annotated, domain.DefaultSettings(), state)
	assert.Empty(t, again)
	assert.Len(t, emitter.titles, 2)
}

func TestTrackerCheckDeliveryFailureStillDisarms(t *testing.T) {
	tracker := newTestTracker(&recordingEmitter{err: errors.New("offline")})
	annotated := domain.Annotate(scenarioItems(), today, 7)

	due, state := tracker.Check(context.Background(), annotated, domain.DefaultSettings(), domain.NotificationState{})

	assert.Len(t, due, 2)
	assert.True(t, state["a"].ExpiredAlerted)
	assert.True(t, state["b"].SoonAlerted)
}

func TestAlertBodies(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		days     int
		item     domain.Item
		expected string
	}{
		{
			name:     "expired yesterday",
			kind:     KindExpired,
			days:     -1,
			item:     domain.Item{Name: "Milk", ExpiryDate: "2026-10-14"},
			expected: "Milk expired yesterday (2026-10-14)",
		},
		{
			name:     "expired days ago with lot",
			kind:     KindExpired,
			days:     -4,
			item:     domain.Item{Name: "Milk", ExpiryDate: "2026-10-11", Lot: "X1"},
			expected: "Milk expired 4 days ago (2026-10-11), lot X1",
		},
		{
			name:     "expires today",
			kind:     KindSoon,
			days:     0,
			item:     domain.Item{Name: "Ham", ExpiryDate: "2026-10-15", Quantity: 3},
			expected: "Ham expires today (2026-10-15), 3 units",
		},
		{
			name:     "expires tomorrow",
			kind:     KindSoon,
			days:     1,
			item:     domain.Item{Name: "Ham", ExpiryDate: "2026-10-16"},
			expected: "Ham expires tomorrow (2026-10-16)",
		},
		{
			name:     "expires in days",
			kind:     KindSoon,
			days:     5,
			item:     domain.Item{Name: "Ham", ExpiryDate: "2026-10-20"},
			expected: "Ham expires in 5 days (2026-10-20)",
		},
		{
			name:     "timestamp expiry shown as date",
			kind:     KindSoon,
			days:     2,
			item:     domain.Item{Name: "Ham", ExpiryDate: "2026-10-17T18:00:00+02:00"},
			expected: "Ham expires in 2 days (2026-10-17)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, body(tt.item, tt.kind, tt.days))
		})
	}
}
