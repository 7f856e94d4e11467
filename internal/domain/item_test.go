package domain

import (
	"errors"
	"testing"
)

func TestValidateItem(t *testing.T) {
	tests := []struct {
		name          string
		item          Item
		expectedField string
	}{
		{
			name: "valid item",
			item: Item{Name: "Yoghurt", ExpiryDate: "2026-10-20"},
		},
		{
			name:          "blank name is rejected",
			item:          Item{Name: "   ", ExpiryDate: "2026-10-20"},
			expectedField: "name",
		},
		{
			name:          "missing expiry is rejected",
			item:          Item{Name: "Yoghurt"},
			expectedField: "expiryDate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateItem(tt.item)
			if tt.expectedField == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if validationErr.Field != tt.expectedField {
				t.Errorf("Field = %s, expected %s", validationErr.Field, tt.expectedField)
			}
		})
	}
}

func TestNormalizeQuantity(t *testing.T) {
	tests := []struct {
		in       int
		expected int
	}{
		{in: -3, expected: 1},
		{in: 0, expected: 1},
		{in: 1, expected: 1},
		{in: 12, expected: 12},
	}

	for _, tt := range tests {
		if got := NormalizeQuantity(tt.in); got != tt.expected {
			t.Errorf("NormalizeQuantity(%d) = %d, expected %d", tt.in, got, tt.expected)
		}
	}
}

func TestSettingsValidateAndNormalize(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("Expected default settings to be valid, got %v", err)
	}

	bad := Settings{SoonThresholdDays: 0}
	if err := bad.Validate(); err == nil {
		t.Error("Expected zero threshold to be rejected")
	}
	if got := bad.Normalized().SoonThresholdDays; got != DefaultSoonThresholdDays {
		t.Errorf("Normalized threshold = %d, expected %d", got, DefaultSoonThresholdDays)
	}
}

func TestNotificationStateCloneAndArm(t *testing.T) {
	state := NotificationState{"a": {SoonAlerted: true, ExpiredAlerted: true}}
	clone := state.Clone()
	clone.Arm("a")

	if !state["a"].SoonAlerted || !state["a"].ExpiredAlerted {
		t.Error("Expected original state to be untouched by clone mutation")
	}
	if clone["a"] != (AlertFlags{}) {
		t.Errorf("Expected armed flags to be cleared, got %+v", clone["a"])
	}
}
