package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrVectorUnavailable indicates that similarity search was requested
	// on a store without vector support.
	ErrVectorUnavailable = errors.New("vector search unavailable")
)

// EventRecord is a durably persisted, user-confirmed activity. Records feed
// the store-confirmed source of the timeline builder and are written when a
// session finalizes an event.
type EventRecord struct {
	ID    string    `json:"id"`
	Owner string    `json:"owner"`
	Date  time.Time `json:"date"` // midnight of the day the event belongs to

	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`

	Type  string `json:"type"`
	Title string `json:"title,omitempty"`

	// Provider and ExternalID link a record back to the provider-native
	// activity it confirms, when one exists. The pair drives the builder's
	// merge with device-confirmed blocks.
	Provider   string `json:"provider,omitempty"`
	ExternalID string `json:"external_id,omitempty"`

	Details map[string]any `json:"details,omitempty"`

	// Embedding is an optional vector over the record's title and details,
	// used for similarity lookups on stores that support it.
	Embedding []float32 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
