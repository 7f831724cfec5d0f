// Package sources defines the Source Adapter boundary of the timeline
// builder: three independent providers (wearable device, structured-event
// store, receipt/communication) normalized to a single minimal record shape
// at the adapter boundary, so the builder never deals with provider-native
// payloads.
package sources

import (
	"context"
	"time"

	"github.com/daybook-ai/daybook/pkg/types"
)

// Record is the normalized shape every adapter produces. It carries the
// minimal surface the builder requires: a start timestamp (which may be
// absent — such records are surfaced as skipped, never dropped), an
// optional end, a type tag, and an opaque external identifier.
type Record struct {
	Provider   string
	ExternalID string

	// Kind is the provider's type/category tag, mapped to the closed block
	// type set by the adapter where possible ("run" -> workout).
	Kind string

	Title string

	Start *time.Time
	End   *time.Time

	// Description carries free text for receipt/communication records.
	Description string

	// RecordID is the persisted event record id for store-confirmed records.
	RecordID string

	Details map[string]any
}

// Adapter fetches provider-native records for one (owner, calendar date)
// and returns them normalized. Adapters are queried concurrently and are
// allowed to fail independently; a failed adapter degrades that source's
// contribution to empty rather than aborting the build.
type Adapter interface {
	// Source identifies which timeline source this adapter feeds.
	Source() types.BlockSource

	// Fetch returns the owner's records for the given date. date is
	// midnight at the start of the target day.
	Fetch(ctx context.Context, owner string, date time.Time) ([]Record, error)
}

// kindMap translates common provider activity tags to the closed block
// type set. Unknown tags fall through to generic.
var kindMap = map[string]string{
	"run":        types.BlockTypeWorkout,
	"ride":       types.BlockTypeWorkout,
	"swim":       types.BlockTypeWorkout,
	"walk":       types.BlockTypeWorkout,
	"strength":   types.BlockTypeWorkout,
	"gym":        types.BlockTypeWorkout,
	"sleep":      types.BlockTypeSleep,
	"meal":       types.BlockTypeMeal,
	"restaurant": types.BlockTypeMeal,
	"grocery":    types.BlockTypeErrand,
	"transit":    types.BlockTypeCommute,
	"rideshare":  types.BlockTypeCommute,
	"work":       types.BlockTypeWork,
	"meeting":    types.BlockTypeWork,
	"movie":      types.BlockTypeEntertainment,
	"streaming":  types.BlockTypeEntertainment,
}

// NormalizeKind maps a provider tag to the closed block type set.
func NormalizeKind(kind string) string {
	if mapped, ok := kindMap[kind]; ok {
		return mapped
	}
	if types.IsValidBlockType(kind) {
		return kind
	}
	return types.BlockTypeGeneric
}
