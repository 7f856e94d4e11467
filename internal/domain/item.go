package domain

import (
	"strings"
	"time"
)

const (
	// DefaultSoonThresholdDays is used when no settings have been stored yet.
	DefaultSoonThresholdDays = 7

	// DefaultQuantity replaces any quantity below one.
	DefaultQuantity = 1
)

// Item represents a tracked batch of a perishable product
type Item struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SKU          string    `json:"sku,omitempty"`
	Category     string    `json:"category,omitempty"`
	Supplier     string    `json:"supplier,omitempty"`
	Lot          string    `json:"lot,omitempty"`
	Quantity     int       `json:"quantity"`
	ReceivedDate string    `json:"receivedDate,omitempty"`
	ExpiryDate   string    `json:"expiryDate,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SearchableFields returns the free-text fields matched by a search, skipping empty ones.
func (i Item) SearchableFields() []string {
	fields := make([]string, 0, 5)
	for _, f := range []string{i.Name, i.SKU, i.Category, i.Supplier, i.Lot} {
		if f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// Settings holds process-wide alerting configuration
type Settings struct {
	SoonThresholdDays    int  `json:"soonThresholdDays"`
	NotifySoonEnabled    bool `json:"notifySoonEnabled"`
	NotifyExpiredEnabled bool `json:"notifyExpiredEnabled"`
}

// DefaultSettings returns the settings used before the user changes anything.
func DefaultSettings() Settings {
	return Settings{
		SoonThresholdDays:    DefaultSoonThresholdDays,
		NotifySoonEnabled:    true,
		NotifyExpiredEnabled: true,
	}
}

// Validate checks the settings invariants.
func (s Settings) Validate() error {
	if s.SoonThresholdDays < 1 {
		return &ValidationError{Field: "soonThresholdDays", Reason: "must be at least 1"}
	}
	return nil
}

// Normalized replaces an out-of-range threshold with the default.
func (s Settings) Normalized() Settings {
	if s.SoonThresholdDays < 1 {
		s.SoonThresholdDays = DefaultSoonThresholdDays
	}
	return s
}

// AlertFlags records which alert kinds already fired for an item since its last upsert.
type AlertFlags struct {
	SoonAlerted    bool `json:"soonAlerted"`
	ExpiredAlerted bool `json:"expiredAlerted"`
}

// NotificationState maps item IDs to their alert flags.
type NotificationState map[string]AlertFlags

// Clone returns an independent copy of the state.
func (s NotificationState) Clone() NotificationState {
	out := make(NotificationState, len(s))
	for id, flags := range s {
		out[id] = flags
	}
	return out
}

// Arm resets both flags for the item so future alerts can fire again.
func (s NotificationState) Arm(id string) {
	s[id] = AlertFlags{}
}

// NormalizeQuantity returns q, or DefaultQuantity when q is below one.
func NormalizeQuantity(q int) int {
	if q < 1 {
		return DefaultQuantity
	}
	return q
}

// ValidateItem checks the fields an upsert requires.
func ValidateItem(item Item) error {
	if strings.TrimSpace(item.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if strings.TrimSpace(item.ExpiryDate) == "" {
		return &ValidationError{Field: "expiryDate", Reason: "is required"}
	}
	return nil
}
