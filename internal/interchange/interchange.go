// Package interchange encodes and validates the export/import record of items and settings.
package interchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/DaDevFox/task-systems/mhd-core/internal/domain"
)

// CurrentVersion is written into every exported record.
const CurrentVersion = 1

// Record is the serializable form of the user's data
type Record struct {
	Version    int             `json:"version"`
	ExportedAt time.Time       `json:"exportedAt"`
	Items      []domain.Item   `json:"items"`
	Settings   domain.Settings `json:"settings"`
}

// Encode renders the record as indented JSON
func Encode(r Record) ([]byte, error) {
	if r.Version == 0 {
		r.Version = CurrentVersion
	}
	if r.Items == nil {
		r.Items = []domain.Item{}
	}
	return json.MarshalIndent(r, "", "  ")
}

// Decode parses and validates data. Any shape problem yields a *domain.ImportError and
// no partial record.
func Decode(data []byte) (Record, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, &domain.ImportError{Reason: "payload is not a JSON object"}
	}

	itemsRaw, ok := raw["items"]
	if !ok || !startsWith(itemsRaw, '[') {
		return Record{}, &domain.ImportError{Reason: "items must be an array"}
	}
	settingsRaw, ok := raw["settings"]
	if !ok || !startsWith(settingsRaw, '{') {
		return Record{}, &domain.ImportError{Reason: "settings must be an object"}
	}

	var record Record
	if err := json.Unmarshal(itemsRaw, &record.Items); err != nil {
		return Record{}, &domain.ImportError{Reason: fmt.Sprintf("items malformed: %v", err)}
	}
	if err := json.Unmarshal(settingsRaw, &record.Settings); err != nil {
		return Record{}, &domain.ImportError{Reason: fmt.Sprintf("settings malformed: %v", err)}
	}
	if v, ok := raw["version"]; ok {
		if err := json.Unmarshal(v, &record.Version); err != nil {
			return Record{}, &domain.ImportError{Reason: "version must be a number"}
		}
	}
	if v, ok := raw["exportedAt"]; ok {
		// informational only
		_ = json.Unmarshal(v, &record.ExportedAt)
	}

	if record.Version > CurrentVersion {
		return Record{}, &domain.ImportError{Reason: fmt.Sprintf("unsupported version %d", record.Version)}
	}
	if err := record.Settings.Validate(); err != nil {
		return Record{}, &domain.ImportError{Reason: err.Error()}
	}

	seen := make(map[string]struct{}, len(record.Items))
	for i := range record.Items {
		item := &record.Items[i]
		if strings.TrimSpace(item.ID) == "" {
			return Record{}, &domain.ImportError{Reason: fmt.Sprintf("item %d has no id", i)}
		}
		if strings.TrimSpace(item.Name) == "" {
			return Record{}, &domain.ImportError{Reason: fmt.Sprintf("item %s has no name", item.ID)}
		}
		if _, dup := seen[item.ID]; dup {
			return Record{}, &domain.ImportError{Reason: fmt.Sprintf("duplicate item id %s", item.ID)}
		}
		seen[item.ID] = struct{}{}
		item.Quantity = domain.NormalizeQuantity(item.Quantity)
	}

	return record, nil
}

func startsWith(raw json.RawMessage, c byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == c
}
