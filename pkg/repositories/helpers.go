// Package repositories provides data access for the evaluation engine.
// Repositories pull their connection from the company scope carried in the
// context; acquiring and releasing that scope is the caller's concern.
package repositories

import (
	"encoding/json"
)

// nullString converts an empty string to nil for nullable columns.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullInt converts a nil pointer to SQL NULL.
func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// nullInt64 converts a nil pointer to SQL NULL.
func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// jsonText marshals a value for a text column holding JSON. Nil maps and
// slices are stored as SQL NULL rather than the string "null".
func jsonText(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	text := string(data)
	if text == "null" {
		return nil
	}
	return text
}
