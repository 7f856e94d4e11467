package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/mhd-core/internal/domain"
)

// Document names, also used as metric labels.
const (
	DocumentItems       = "items"
	DocumentSettings    = "settings"
	DocumentNotifyState = "notify_state"
)

var documentKeys = map[string]string{
	DocumentItems:       "mhd.items",
	DocumentSettings:    "mhd.settings",
	DocumentNotifyState: "mhd.notify_state",
}

// PersistenceError reports a failed write. The in-memory value was still updated.
type PersistenceError struct {
	Document string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.Document, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// LoadError lists the documents that could not be read and fell back to defaults.
type LoadError struct {
	Failures map[string]error
}

func (e *LoadError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Failures[name]))
	}
	return "load fell back to defaults (" + strings.Join(parts, "; ") + ")"
}

// DocumentStore owns the items, settings and notification-state documents.
// Readers get copies; writers replace a whole document and persist it immediately.
// A failed write keeps the in-memory value so the session stays usable.
type DocumentStore struct {
	kv     KeyValueStore
	logger *logrus.Logger

	mu          sync.RWMutex
	items       []domain.Item
	settings    domain.Settings
	notifyState domain.NotificationState
}

// NewDocumentStore creates a store holding default documents until Load is called
func NewDocumentStore(kv KeyValueStore, logger *logrus.Logger) *DocumentStore {
	return &DocumentStore{
		kv:          kv,
		logger:      logger,
		items:       []domain.Item{},
		settings:    domain.DefaultSettings(),
		notifyState: domain.NotificationState{},
	}
}

// Load reads all documents. Every document that is missing, unreadable or malformed
// falls back to its default; unreadable or malformed ones are reported in a *LoadError.
func (s *DocumentStore) Load(ctx context.Context) error {
	failures := make(map[string]error)

	items := []domain.Item{}
	if err := s.readDocument(ctx, DocumentItems, &items); err != nil {
		failures[DocumentItems] = err
		items = []domain.Item{}
	}

	settings := domain.DefaultSettings()
	if err := s.readDocument(ctx, DocumentSettings, &settings); err != nil {
		failures[DocumentSettings] = err
		settings = domain.DefaultSettings()
	}

	notifyState := domain.NotificationState{}
	if err := s.readDocument(ctx, DocumentNotifyState, &notifyState); err != nil {
		failures[DocumentNotifyState] = err
		notifyState = domain.NotificationState{}
	}
	if notifyState == nil {
		notifyState = domain.NotificationState{}
	}

	s.mu.Lock()
	s.items = dedupeByID(items)
	s.settings = settings.Normalized()
	s.notifyState = notifyState
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"items":    len(items),
		"failures": len(failures),
	}).Debug("documents loaded")

	if len(failures) > 0 {
		for name, err := range failures {
			s.logger.WithError(err).WithField("document", name).Warn("document unreadable, using default")
		}
		return &LoadError{Failures: failures}
	}
	return nil
}

func (s *DocumentStore) readDocument(ctx context.Context, name string, target any) error {
	data, ok, err := s.kv.Get(ctx, documentKeys[name])
	if err != nil {
		return errors.Wrap(err, "read")
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}

func (s *DocumentStore) writeDocument(ctx context.Context, name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &PersistenceError{Document: name, Err: errors.Wrap(err, "encode")}
	}
	if err := s.kv.Set(ctx, documentKeys[name], data); err != nil {
		s.logger.WithError(err).WithField("document", name).Warn("failed to persist document")
		return &PersistenceError{Document: name, Err: err}
	}
	return nil
}

// Items returns a copy of all items in stored order
func (s *DocumentStore) Items() []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Item, len(s.items))
	copy(out, s.items)
	return out
}

// Item returns the item with the given ID
func (s *DocumentStore) Item(id string) (domain.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return domain.Item{}, false
}

// Settings returns the current settings
func (s *DocumentStore) Settings() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// NotificationState returns a copy of the alert flags
func (s *DocumentStore) NotificationState() domain.NotificationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifyState.Clone()
}

// SaveItems replaces the items document
func (s *DocumentStore) SaveItems(ctx context.Context, items []domain.Item) error {
	next := make([]domain.Item, len(items))
	copy(next, items)

	s.mu.Lock()
	s.items = next
	s.mu.Unlock()

	return s.writeDocument(ctx, DocumentItems, next)
}

// SaveSettings replaces the settings document
func (s *DocumentStore) SaveSettings(ctx context.Context, settings domain.Settings) error {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	return s.writeDocument(ctx, DocumentSettings, settings)
}

// SaveNotificationState replaces the notification-state document
func (s *DocumentStore) SaveNotificationState(ctx context.Context, state domain.NotificationState) error {
	next := state.Clone()

	s.mu.Lock()
	s.notifyState = next
	s.mu.Unlock()

	return s.writeDocument(ctx, DocumentNotifyState, next)
}

// SaveItemsAndState replaces items and notification state together, persisting both
// even if the first write fails. The first failure is returned.
func (s *DocumentStore) SaveItemsAndState(ctx context.Context, items []domain.Item, state domain.NotificationState) error {
	itemsErr := s.SaveItems(ctx, items)
	stateErr := s.SaveNotificationState(ctx, state)
	if itemsErr != nil {
		return itemsErr
	}
	return stateErr
}

// ReplaceAll swaps every document at once
func (s *DocumentStore) ReplaceAll(ctx context.Context, items []domain.Item, settings domain.Settings, state domain.NotificationState) error {
	nextItems := make([]domain.Item, len(items))
	copy(nextItems, items)
	nextState := state.Clone()

	s.mu.Lock()
	s.items = nextItems
	s.settings = settings
	s.notifyState = nextState
	s.mu.Unlock()

	var first error
	for _, doc := range []struct {
		name  string
		value any
	}{
		{DocumentItems, nextItems},
		{DocumentSettings, settings},
		{DocumentNotifyState, nextState},
	} {
		if err := s.writeDocument(ctx, doc.name, doc.value); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// dedupeByID keeps the last occurrence of each ID at the position of its first occurrence.
func dedupeByID(items []domain.Item) []domain.Item {
	index := make(map[string]int, len(items))
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if pos, ok := index[item.ID]; ok {
			out[pos] = item
			continue
		}
		index[item.ID] = len(out)
		out = append(out, item)
	}
	return out
}
