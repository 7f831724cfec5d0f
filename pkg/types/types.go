// Package types defines the core data structures for the Daybook timeline
// system: time blocks, gaps, anchor events, the per-date timeline skeleton,
// and the per-date conversational session state.
package types

import "time"

// BlockSource identifies where a time block's data came from.
type BlockSource string

// Block source constants. The source determines how much trust the
// conversational layer places in a block's timing and existence.
const (
	// SourceDevice marks blocks translated from wearable-device activity
	// data. Device timestamps are considered the most precise timing source.
	SourceDevice BlockSource = "device-confirmed"

	// SourceStore marks blocks loaded from the structured-event store,
	// i.e. activities the user has previously confirmed and persisted.
	SourceStore BlockSource = "store-confirmed"

	// SourceInferred marks blocks created from narrative input during a
	// logging session, before any external confirmation exists.
	SourceInferred BlockSource = "inferred"

	// SourceReceipt marks anchor events from the receipt/communication
	// provider (purchases, bookings). Receipts never become blocks directly.
	SourceReceipt BlockSource = "receipt"
)

// Confidence expresses how reliable a block or anchor is.
type Confidence string

// Confidence levels.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Block type constants - the closed set of activity categories.
const (
	BlockTypeWorkout       = "workout"
	BlockTypeMeal          = "meal"
	BlockTypeWork          = "work"
	BlockTypeSleep         = "sleep"
	BlockTypeCommute       = "commute"
	BlockTypeEntertainment = "entertainment"
	BlockTypeErrand        = "errand"
	BlockTypeSocial        = "social"
	BlockTypeGeneric       = "generic"
)

// ValidBlockTypes is a slice of all valid block types for validation.
var ValidBlockTypes = []string{
	BlockTypeWorkout,
	BlockTypeMeal,
	BlockTypeWork,
	BlockTypeSleep,
	BlockTypeCommute,
	BlockTypeEntertainment,
	BlockTypeErrand,
	BlockTypeSocial,
	BlockTypeGeneric,
}

// IsValidBlockType checks if the given block type is in the closed set.
func IsValidBlockType(blockType string) bool {
	for _, valid := range ValidBlockTypes {
		if valid == blockType {
			return true
		}
	}
	return false
}

// Entity type constants for pending entity mentions.
const (
	EntityTypePerson   = "person"
	EntityTypeLocation = "location"
	EntityTypeActivity = "activity"
)

// ValidEntityTypes is a slice of all valid entity types for validation.
var ValidEntityTypes = []string{
	EntityTypePerson,
	EntityTypeLocation,
	EntityTypeActivity,
}

// IsValidEntityType checks if the given entity type is valid.
func IsValidEntityType(entityType string) bool {
	for _, valid := range ValidEntityTypes {
		if valid == entityType {
			return true
		}
	}
	return false
}

// DayStart returns midnight at the start of the calendar day containing t,
// in t's location.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayEnd returns midnight at the end of the calendar day containing t
// (i.e. 00:00 of the following day), in t's location.
func DayEnd(t time.Time) time.Time {
	return DayStart(t).AddDate(0, 0, 1)
}

// SameDay reports whether a and b fall on the same calendar day in a's location.
func SameDay(a, b time.Time) bool {
	return DayStart(a).Equal(DayStart(b.In(a.Location())))
}
