package domain

import "fmt"

// ValidationError is returned when an input is rejected before any mutation
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ItemNotFoundError represents an error when an item is not found
type ItemNotFoundError struct {
	ID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item with ID '%s' not found", e.ID)
}

// ImportError is returned when an interchange payload does not have the expected shape
type ImportError struct {
	Reason string
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import rejected: %s", e.Reason)
}
