package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Type identifies what happened
type Type int

const (
	ItemUpserted Type = iota + 1
	ItemDeleted
	SettingsChanged
	DataImported
	AlertEmitted
)

func (t Type) String() string {
	switch t {
	case ItemUpserted:
		return "item_upserted"
	case ItemDeleted:
		return "item_deleted"
	case SettingsChanged:
		return "settings_changed"
	case DataImported:
		return "data_imported"
	case AlertEmitted:
		return "alert_emitted"
	default:
		return "unknown"
	}
}

// Event is a published notification about a state change
type Event struct {
	ID        string
	Type      Type
	Source    string
	Timestamp time.Time
	ItemID    string
	Payload   map[string]string
}

// Handler reacts to an event
type Handler func(ctx context.Context, event Event) error

// Bus provides in-process pub/sub. Handlers run synchronously on the publishing
// goroutine in subscription order, so a publish returns only after every handler finished.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]Handler
	source      string
	logger      *logrus.Logger
}

// NewBus creates a new event bus for a component
func NewBus(source string, logger *logrus.Logger) *Bus {
	return &Bus{
		subscribers: make(map[Type][]Handler),
		source:      source,
		logger:      logger,
	}
}

// Subscribe registers a handler for one or more event types
func (b *Bus) Subscribe(handler Handler, types ...Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range types {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish stamps and delivers an event. Handler errors are logged and the first is returned.
func (b *Bus) Publish(ctx context.Context, eventType Type, itemID string, payload map[string]string) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[eventType]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    b.source,
		Timestamp: time.Now(),
		ItemID:    itemID,
		Payload:   payload,
	}

	var first error
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			b.logger.WithError(err).WithFields(logrus.Fields{
				"event_id":   event.ID,
				"event_type": eventType.String(),
			}).Error("Event handler error")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
