// Package scheduler drives expiry re-evaluation on startup, after mutations and on a fixed tick.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/mhd-core/internal/events"
	"github.com/DaDevFox/task-systems/mhd-core/internal/metrics"
)

// DefaultInterval is the periodic re-evaluation interval.
const DefaultInterval = 30 * time.Second

// Trigger names the reason a run happened
type Trigger string

const (
	TriggerLoad     Trigger = "load"
	TriggerMutation Trigger = "mutation"
	TriggerTick     Trigger = "tick"
	TriggerManual   Trigger = "manual"
)

// RunFunc performs one complete evaluation, persistence included
type RunFunc func(ctx context.Context, trigger Trigger) error

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Scheduler serializes evaluation runs. At most one run executes at a time: explicit
// triggers wait for the current run, periodic ticks are dropped while one is in flight.
type Scheduler struct {
	interval time.Duration
	run      RunFunc
	logger   *logrus.Logger
	metrics  *metrics.Metrics

	runMu sync.Mutex

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped scheduler
func New(interval time.Duration, run RunFunc, logger *logrus.Logger, m *metrics.Metrics) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval: interval,
		run:      run,
		logger:   logger,
		metrics:  m,
	}
}

// Start runs the load trigger and then begins ticking until Stop is called or ctx ends.
// The load run's error is returned but does not prevent ticking.
func (s *Scheduler) Start(ctx context.Context) error {
	s.lifeMu.Lock()
	if s.cancel != nil {
		s.lifeMu.Unlock()
		return ErrAlreadyStarted
	}
	tickCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.lifeMu.Unlock()

	loadErr := s.Trigger(ctx, TriggerLoad)

	go s.loop(tickCtx, done)

	s.logger.WithField("interval", s.interval.String()).Info("scheduler started")
	return loadErr
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.runMu.TryLock() {
		s.metrics.TicksSkippedTotal.Inc()
		s.logger.Debug("tick skipped, evaluation in progress")
		return
	}
	defer s.runMu.Unlock()

	// Stop may have been called while waiting on the ticker channel
	if ctx.Err() != nil {
		return
	}
	s.logger.Debug("periodic evaluation")
	if err := s.run(ctx, TriggerTick); err != nil {
		s.logger.WithError(err).Warn("periodic evaluation failed")
	}
}

// Trigger runs an evaluation now, waiting for any run in progress to finish first
func (s *Scheduler) Trigger(ctx context.Context, trigger Trigger) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	return s.run(ctx, trigger)
}

// OnMutation is an events.Handler that re-evaluates after a state change
func (s *Scheduler) OnMutation(ctx context.Context, event events.Event) error {
	s.logger.WithFields(logrus.Fields{
		"event_type": event.Type.String(),
		"item_id":    event.ItemID,
	}).Debug("mutation triggered evaluation")
	return s.Trigger(ctx, TriggerMutation)
}

// Stop cancels the tick and waits for the loop to exit. A run in progress completes first.
// Stop is idempotent.
func (s *Scheduler) Stop() {
	s.lifeMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.lifeMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}
