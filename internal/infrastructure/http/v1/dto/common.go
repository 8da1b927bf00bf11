// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
)

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// NewListResponse builds a list response; a nil slice is rendered as [].
func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

// ErrorResponse is the body rendered for every failed request.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ParseID parses a required identifier field.
func ParseID(field, value string) (id.ID, error) {
	if value == "" {
		return id.Nil(), apperror.NewValidation(field + " is required").WithDetail("field", field)
	}
	parsed, err := id.Parse(value)
	if err != nil {
		return id.Nil(), apperror.NewValidation("invalid " + field + " format").WithDetail("field", field)
	}
	return parsed, nil
}

// ParseOptionalID parses an identifier that may be empty.
func ParseOptionalID(field, value string) (*id.ID, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := ParseID(field, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// ParseOptionalTime parses an RFC3339 timestamp that may be empty.
func ParseOptionalTime(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, apperror.NewValidation("invalid " + field + " format, expected RFC3339").WithDetail("field", field)
	}
	return &parsed, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
