package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaDevFox/task-systems/mhd-core/internal/events"
	"github.com/DaDevFox/task-systems/mhd-core/internal/metrics"
)

type runRecorder struct {
	mu       sync.Mutex
	triggers []Trigger
	inFlight atomic.Int32
	overlap  atomic.Bool
	delay    time.Duration
	err      error
}

func (r *runRecorder) run(ctx context.Context, trigger Trigger) error {
	if r.inFlight.Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.inFlight.Add(-1)

	time.Sleep(r.delay)

	r.mu.Lock()
	r.triggers = append(r.triggers, trigger)
	r.mu.Unlock()
	return r.err
}

func (r *runRecorder) count(trigger Trigger) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, t := range r.triggers {
		if t == trigger {
			n++
		}
	}
	return n
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestStartRunsLoadTriggerFirst(t *testing.T) {
	rec := &runRecorder{}
	s := New(time.Hour, rec.run, quietLogger(), metrics.Nop())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, 1, rec.count(TriggerLoad))
	assert.Equal(t, 0, rec.count(TriggerTick))
}

func TestStartReturnsLoadErrorButKeepsTicking(t *testing.T) {
	rec := &runRecorder{err: errors.New("disk unavailable")}
	s := New(5*time.Millisecond, rec.run, quietLogger(), metrics.Nop())

	err := s.Start(context.Background())
	defer s.Stop()

	assert.Error(t, err)
	assert.Eventually(t, func() bool { return rec.count(TriggerTick) > 0 }, time.Second, 5*time.Millisecond)
}

func TestStartTwiceFails(t *testing.T) {
	rec := &runRecorder{}
	s := New(time.Hour, rec.run, quietLogger(), metrics.Nop())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestTicksStopAfterStop(t *testing.T) {
	rec := &runRecorder{}
	s := New(5*time.Millisecond, rec.run, quietLogger(), metrics.Nop())

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return rec.count(TriggerTick) >= 2 }, time.Second, 5*time.Millisecond)

	s.Stop()
	after := rec.count(TriggerTick)
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, after, rec.count(TriggerTick))
	assert.NotPanics(t, s.Stop)
}

func TestStopOnNeverStartedScheduler(t *testing.T) {
	s := New(time.Second, (&runRecorder{}).run, quietLogger(), metrics.Nop())
	assert.NotPanics(t, s.Stop)
}

func TestRunsNeverOverlap(t *testing.T) {
	rec := &runRecorder{delay: 2 * time.Millisecond}
	s := New(time.Millisecond, rec.run, quietLogger(), metrics.Nop())

	require.NoError(t, s.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Trigger(context.Background(), TriggerManual)
		}()
	}
	wg.Wait()
	s.Stop()

	assert.False(t, rec.overlap.Load(), "evaluation runs overlapped")
	assert.Equal(t, 10, rec.count(TriggerManual))
}

func TestTickSkippedWhileRunInProgress(t *testing.T) {
	m := metrics.Nop()
	rec := &runRecorder{}
	s := New(time.Hour, rec.run, quietLogger(), m)

	s.runMu.Lock()
	s.tick(context.Background())
	s.runMu.Unlock()

	assert.Equal(t, 0, rec.count(TriggerTick))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksSkippedTotal))

	s.tick(context.Background())
	assert.Equal(t, 1, rec.count(TriggerTick))
}

func TestOnMutationTriggersRun(t *testing.T) {
	rec := &runRecorder{}
	s := New(time.Hour, rec.run, quietLogger(), metrics.Nop())

	bus := events.NewBus("test", quietLogger())
	bus.Subscribe(s.OnMutation, events.ItemUpserted, events.SettingsChanged)

	require.NoError(t, bus.Publish(context.Background(), events.ItemUpserted, "a", nil))
	require.NoError(t, bus.Publish(context.Background(), events.SettingsChanged, "", nil))
	require.NoError(t, bus.Publish(context.Background(), events.AlertEmitted, "a", nil))

	assert.Equal(t, 2, rec.count(TriggerMutation))
}
