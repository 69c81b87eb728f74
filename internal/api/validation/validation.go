package validation

import (
	"strconv"
	"strings"
)

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ParseID parses a positive integer identifier taken from a path or body field.
func ParseID(field, raw string) (int64, []FieldError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, []FieldError{{Field: field, Message: field + " is required"}}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, []FieldError{{Field: field, Message: field + " must be a positive integer"}}
	}
	return id, nil
}
