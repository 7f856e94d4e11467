package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/mhd-core/internal/alerts"
	"github.com/DaDevFox/task-systems/mhd-core/internal/domain"
	"github.com/DaDevFox/task-systems/mhd-core/internal/events"
	"github.com/DaDevFox/task-systems/mhd-core/internal/interchange"
	"github.com/DaDevFox/task-systems/mhd-core/internal/metrics"
	"github.com/DaDevFox/task-systems/mhd-core/internal/query"
	"github.com/DaDevFox/task-systems/mhd-core/internal/repository"
	"github.com/DaDevFox/task-systems/mhd-core/internal/scheduler"
)

// ItemInput carries the user-editable fields of an item. An empty ID creates a new item.
type ItemInput struct {
	ID           string
	Name         string
	SKU          string
	Category     string
	Supplier     string
	Lot          string
	Quantity     int
	ReceivedDate string
	ExpiryDate   string
}

// ListOptions selects and orders the item view
type ListOptions struct {
	Search string
	Filter query.Filter
	Sort   query.SortKey
}

// Summary counts items per status
type Summary struct {
	Total   int
	OK      int
	Soon    int
	Expired int
}

// ExpiryService is the application entry point for item tracking and alerting.
// Every read-modify-write of the documents happens under one mutex; events are
// published after it is released so handlers may call back into the service.
type ExpiryService struct {
	store   *repository.DocumentStore
	tracker *alerts.Tracker
	engine  *query.Engine
	bus     *events.Bus
	metrics *metrics.Metrics
	logger  *logrus.Logger
	now     func() time.Time

	mu sync.Mutex
}

// NewExpiryService creates a new expiry service instance
func NewExpiryService(
	store *repository.DocumentStore,
	tracker *alerts.Tracker,
	engine *query.Engine,
	bus *events.Bus,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *ExpiryService {
	return &ExpiryService{
		store:   store,
		tracker: tracker,
		engine:  engine,
		bus:     bus,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock replaces the time source used to decide what "today" is
func (s *ExpiryService) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// UpsertItem validates and stores an item and re-arms its alerts. On a persistence
// failure the item is still returned and kept in memory, together with the error.
func (s *ExpiryService) UpsertItem(ctx context.Context, in ItemInput) (domain.Item, error) {
	candidate := domain.Item{
		ID:           strings.TrimSpace(in.ID),
		Name:         strings.TrimSpace(in.Name),
		SKU:          strings.TrimSpace(in.SKU),
		Category:     strings.TrimSpace(in.Category),
		Supplier:     strings.TrimSpace(in.Supplier),
		Lot:          strings.TrimSpace(in.Lot),
		Quantity:     domain.NormalizeQuantity(in.Quantity),
		ReceivedDate: strings.TrimSpace(in.ReceivedDate),
		ExpiryDate:   strings.TrimSpace(in.ExpiryDate),
	}
	if err := domain.ValidateItem(candidate); err != nil {
		s.logger.WithError(err).WithField("item_id", candidate.ID).Debug("item rejected")
		return domain.Item{}, err
	}

	s.mu.Lock()
	now := s.now()
	items := s.store.Items()

	created := candidate.ID == ""
	if created {
		candidate.ID = uuid.New().String()
	}

	idx := indexOf(items, candidate.ID)
	if idx >= 0 {
		candidate.CreatedAt = items[idx].CreatedAt
		candidate.UpdatedAt = now
		items[idx] = candidate
	} else {
		candidate.CreatedAt = now
		candidate.UpdatedAt = now
		items = append(items, candidate)
	}

	state := s.store.NotificationState()
	state.Arm(candidate.ID)

	persistErr := s.store.SaveItemsAndState(ctx, items, state)
	s.mu.Unlock()

	s.recordPersistFailure(persistErr)
	s.logger.WithFields(logrus.Fields{
		"item_id":     candidate.ID,
		"item_name":   candidate.Name,
		"expiry_date": candidate.ExpiryDate,
		"created":     idx < 0,
	}).Info("item saved")

	s.publish(ctx, events.ItemUpserted, candidate.ID, nil)

	if persistErr != nil {
		return candidate, errors.Wrap(persistErr, "item kept in memory")
	}
	return candidate, nil
}

// DeleteItem removes an item and its alert flags. No alert is emitted.
func (s *ExpiryService) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	items := s.store.Items()
	idx := indexOf(items, id)
	if idx < 0 {
		s.mu.Unlock()
		return &domain.ItemNotFoundError{ID: id}
	}
	name := items[idx].Name
	items = append(items[:idx], items[idx+1:]...)

	state := s.store.NotificationState()
	delete(state, id)

	persistErr := s.store.SaveItemsAndState(ctx, items, state)
	s.mu.Unlock()

	s.recordPersistFailure(persistErr)
	s.logger.WithFields(logrus.Fields{
		"item_id":   id,
		"item_name": name,
	}).Info("item deleted")

	s.publish(ctx, events.ItemDeleted, id, nil)

	if persistErr != nil {
		return errors.Wrap(persistErr, "deletion kept in memory")
	}
	return nil
}

// GetItem returns a single item by ID
func (s *ExpiryService) GetItem(id string) (domain.Item, error) {
	item, ok := s.store.Item(id)
	if !ok {
		return domain.Item{}, &domain.ItemNotFoundError{ID: id}
	}
	return item, nil
}

// Items returns every stored item in insertion order
func (s *ExpiryService) Items() []domain.Item {
	return s.store.Items()
}

// Settings returns the current settings
func (s *ExpiryService) Settings() domain.Settings {
	return s.store.Settings()
}

// UpdateSettings validates and stores new settings
func (s *ExpiryService) UpdateSettings(ctx context.Context, settings domain.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	persistErr := s.store.SaveSettings(ctx, settings)
	s.mu.Unlock()

	s.recordPersistFailure(persistErr)
	s.logger.WithFields(logrus.Fields{
		"soon_threshold_days":    settings.SoonThresholdDays,
		"notify_soon_enabled":    settings.NotifySoonEnabled,
		"notify_expired_enabled": settings.NotifyExpiredEnabled,
	}).Info("settings updated")

	s.publish(ctx, events.SettingsChanged, "", nil)

	if persistErr != nil {
		return errors.Wrap(persistErr, "settings kept in memory")
	}
	return nil
}

// Annotated classifies every item against today
func (s *ExpiryService) Annotated() []domain.AnnotatedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.annotateLocked()
}

func (s *ExpiryService) annotateLocked() []domain.AnnotatedItem {
	settings := s.store.Settings()
	return domain.Annotate(s.store.Items(), s.now(), settings.SoonThresholdDays)
}

// List returns the filtered and sorted item view
func (s *ExpiryService) List(opts ListOptions) []domain.AnnotatedItem {
	return s.engine.Query(s.Annotated(), opts.Search, opts.Filter, opts.Sort)
}

// Summary counts the current items by status
func (s *ExpiryService) Summary() Summary {
	return summarize(s.Annotated())
}

func summarize(items []domain.AnnotatedItem) Summary {
	summary := Summary{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case domain.StatusOK:
			summary.OK++
		case domain.StatusSoon:
			summary.Soon++
		case domain.StatusExpired:
			summary.Expired++
		}
	}
	return summary
}

// Evaluate classifies all items, emits due alerts and persists the updated flags.
// The alerts are returned even if persisting the flags fails.
func (s *ExpiryService) Evaluate(ctx context.Context, trigger scheduler.Trigger) ([]alerts.Alert, error) {
	s.mu.Lock()
	annotated := s.annotateLocked()
	before := s.store.NotificationState()
	due, after := s.tracker.Check(ctx, annotated, s.store.Settings(), before)

	var persistErr error
	if alerts.Changed(before, after) {
		persistErr = s.store.SaveNotificationState(ctx, after)
	}
	s.mu.Unlock()

	s.recordPersistFailure(persistErr)
	s.metrics.EvaluationsTotal.WithLabelValues(string(trigger)).Inc()
	summary := summarize(annotated)
	s.metrics.Items.WithLabelValues(domain.StatusOK.String()).Set(float64(summary.OK))
	s.metrics.Items.WithLabelValues(domain.StatusSoon.String()).Set(float64(summary.Soon))
	s.metrics.Items.WithLabelValues(domain.StatusExpired.String()).Set(float64(summary.Expired))

	for _, alert := range due {
		s.metrics.AlertsEmittedTotal.WithLabelValues(alert.Kind.String()).Inc()
		s.publish(ctx, events.AlertEmitted, alert.ItemID, map[string]string{
			"kind":  alert.Kind.String(),
			"title": alert.Title,
			"body":  alert.Body,
		})
	}

	s.logger.WithFields(logrus.Fields{
		"trigger": string(trigger),
		"items":   summary.Total,
		"alerts":  len(due),
	}).Debug("evaluation complete")

	if persistErr != nil {
		return due, errors.Wrap(persistErr, "alert flags kept in memory")
	}
	return due, nil
}

// Run adapts Evaluate to scheduler.RunFunc
func (s *ExpiryService) Run(ctx context.Context, trigger scheduler.Trigger) error {
	_, err := s.Evaluate(ctx, trigger)
	return err
}

// Export returns the current items and settings as an interchange record
func (s *ExpiryService) Export() interchange.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	return interchange.Record{
		Version:    interchange.CurrentVersion,
		ExportedAt: s.now().UTC(),
		Items:      s.store.Items(),
		Settings:   s.store.Settings(),
	}
}

// Import replaces all items and settings with the decoded payload. A malformed payload
// changes nothing. Every imported item starts with armed alerts.
func (s *ExpiryService) Import(ctx context.Context, data []byte) error {
	record, err := interchange.Decode(data)
	if err != nil {
		s.logger.WithError(err).Warn("import rejected")
		return err
	}

	state := make(domain.NotificationState, len(record.Items))
	for _, item := range record.Items {
		state.Arm(item.ID)
	}

	s.mu.Lock()
	persistErr := s.store.ReplaceAll(ctx, record.Items, record.Settings, state)
	s.mu.Unlock()

	s.recordPersistFailure(persistErr)
	s.logger.WithField("items", len(record.Items)).Info("data imported")

	s.publish(ctx, events.DataImported, "", map[string]string{"version": strconv.Itoa(record.Version)})

	if persistErr != nil {
		return errors.Wrap(persistErr, "import kept in memory")
	}
	return nil
}

func (s *ExpiryService) publish(ctx context.Context, eventType events.Type, itemID string, payload map[string]string) {
	if err := s.bus.Publish(ctx, eventType, itemID, payload); err != nil {
		s.logger.WithError(err).WithField("event_type", eventType.String()).Warn("event handler failed")
	}
}

func (s *ExpiryService) recordPersistFailure(err error) {
	var persistErr *repository.PersistenceError
	if errors.As(err, &persistErr) {
		s.metrics.PersistenceFailuresTotal.WithLabelValues(persistErr.Document).Inc()
	}
}

func indexOf(items []domain.Item, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
