package types

import (
	"errors"
	"fmt"
	"time"
)

// TimeBlock represents one concrete interval of activity on the timeline.
type TimeBlock struct {
	// ID is a ULID assigned when the block is created. Blocks translated
	// from provider records are re-identified by (Provider, ExternalID),
	// so the ID is stable only within one built skeleton.
	ID string `json:"id"`

	// Start is required; a record without a start time never becomes a block.
	Start time.Time `json:"start"`

	// End is optional. Open-ended blocks (e.g. sleep not yet woken from)
	// carry a nil End.
	End *time.Time `json:"end,omitempty"`

	// Type is one of the closed block-type set (ValidBlockTypes).
	Type string `json:"type"`

	// Title is a short human-readable label ("Morning run", "Lunch").
	Title string `json:"title,omitempty"`

	Source     BlockSource `json:"source"`
	Confidence Confidence  `json:"confidence"`

	// RecordID references a previously persisted event record, when one
	// exists. Store-confirmed blocks always carry it; device blocks gain it
	// when merged with a matching store record.
	RecordID string `json:"record_id,omitempty"`

	// Provider and ExternalID identify the provider-native record a block
	// was translated from. (Provider, ExternalID) is the merge identity:
	// no two blocks in a skeleton share a non-empty pair.
	Provider   string `json:"provider,omitempty"`
	ExternalID string `json:"external_id,omitempty"`

	// Details holds free-form per-block data (exercises, meal items,
	// commute endpoints, ...).
	Details map[string]any `json:"details,omitempty"`
}

// Covers reports whether ts falls within the block's [Start, End) interval.
// Open-ended blocks cover nothing: without an end time the block cannot
// subsume an anchor.
func (b *TimeBlock) Covers(ts time.Time) bool {
	if b.End == nil {
		return false
	}
	return !ts.Before(b.Start) && ts.Before(*b.End)
}

// Duration returns the block length, or zero for open-ended blocks.
func (b *TimeBlock) Duration() time.Duration {
	if b.End == nil {
		return 0
	}
	return b.End.Sub(b.Start)
}

// Validate checks the block invariants:
//
//	store-confirmed blocks are always high confidence
//	a set external id implies the block is not inferred
//	end, when set, is not before start
func (b *TimeBlock) Validate() error {
	if b.Start.IsZero() {
		return errors.New("block start time is required")
	}
	if b.End != nil && b.End.Before(b.Start) {
		return fmt.Errorf("block end %s precedes start %s", b.End.Format(time.RFC3339), b.Start.Format(time.RFC3339))
	}
	if b.Source == SourceStore && b.Confidence != ConfidenceHigh {
		return fmt.Errorf("store-confirmed block must be high confidence, got %q", b.Confidence)
	}
	if b.ExternalID != "" && b.Source == SourceInferred {
		return errors.New("inferred block cannot carry an external id")
	}
	return nil
}
