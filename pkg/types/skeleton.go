package types

import (
	"sort"
	"time"
)

// TimeGap is a derived interval of unaccounted time between or around
// blocks. Gaps are recomputed every time the skeleton is read and are never
// persisted.
type TimeGap struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Minutes int       `json:"minutes"`

	// Label is an optional best-guess label for the gap ("commute?").
	Label string `json:"label,omitempty"`
}

// AnchorEvent is a timestamped candidate event not yet attached to any
// block, e.g. a card transaction with no matching narrative.
type AnchorEvent struct {
	Timestamp   time.Time   `json:"timestamp"`
	Kind        string      `json:"kind"`
	Source      BlockSource `json:"source"`
	Confidence  Confidence  `json:"confidence"`
	Description string      `json:"description,omitempty"`
	Provider    string      `json:"provider,omitempty"`
	ExternalID  string      `json:"external_id,omitempty"`
}

// SourceStatus records the outcome of one adapter fetch during a build.
type SourceStatus struct {
	Failed bool   `json:"failed"`
	Error  string `json:"error,omitempty"`
}

// SkippedRecord surfaces a provider record that could not be placed on the
// timeline (e.g. it lacked a start timestamp). Skipped records are reported
// for caller attention rather than silently dropped.
type SkippedRecord struct {
	Source      BlockSource `json:"source"`
	Provider    string      `json:"provider,omitempty"`
	ExternalID  string      `json:"external_id,omitempty"`
	Reason      string      `json:"reason"`
	Description string      `json:"description,omitempty"`
}

// TimelineSkeleton is the full merged, gap-annotated timeline for one
// (owner, calendar date). It is created fresh on first reference to a date
// in a session and rebuilt wholesale on explicit refresh; all mutation flows
// through the session manager recording confirmed placements into Blocks.
type TimelineSkeleton struct {
	Owner string `json:"owner"`

	// Date is midnight at the start of the target calendar day.
	Date time.Time `json:"date"`

	// Blocks is sorted ascending by start time and contains no two blocks
	// with the same non-empty (provider, external id) pair.
	Blocks []TimeBlock `json:"blocks"`

	// Gaps holds unaccounted intervals above the configured threshold.
	Gaps []TimeGap `json:"gaps"`

	// Unplaced holds anchor events whose timestamps fall inside no block.
	Unplaced []AnchorEvent `json:"unplaced"`

	// Skipped holds records excluded from the merge, with reasons.
	Skipped []SkippedRecord `json:"skipped,omitempty"`

	// Sources maps each queried source to its fetch outcome.
	Sources map[BlockSource]SourceStatus `json:"sources"`

	BuiltAt time.Time `json:"built_at"`
}

// SourceFailed reports whether the given source's fetch failed during the
// build that produced this skeleton.
func (s *TimelineSkeleton) SourceFailed(src BlockSource) bool {
	return s.Sources[src].Failed
}

// FindBlock returns the index of the block with the given non-empty
// (provider, externalID) pair, or -1.
func (s *TimelineSkeleton) FindBlock(provider, externalID string) int {
	if externalID == "" {
		return -1
	}
	for i := range s.Blocks {
		if s.Blocks[i].Provider == provider && s.Blocks[i].ExternalID == externalID {
			return i
		}
	}
	return -1
}

// InsertBlock adds a block preserving ascending start-time order. When the
// block carries a (provider, external id) pair already present, the existing
// block is updated in place instead of duplicated: its record id is taken
// from the new block when set, keeping the merge idempotent. After insertion
// any unplaced anchor the block now subsumes is removed.
func (s *TimelineSkeleton) InsertBlock(b TimeBlock) {
	if i := s.FindBlock(b.Provider, b.ExternalID); i >= 0 {
		if b.RecordID != "" {
			s.Blocks[i].RecordID = b.RecordID
		}
		s.RefilterUnplaced()
		return
	}
	at := sort.Search(len(s.Blocks), func(i int) bool {
		return s.Blocks[i].Start.After(b.Start)
	})
	s.Blocks = append(s.Blocks, TimeBlock{})
	copy(s.Blocks[at+1:], s.Blocks[at:])
	s.Blocks[at] = b
	s.RefilterUnplaced()
}

// RefilterUnplaced drops every anchor whose timestamp is now covered by some
// block's [start, end) interval. Anchors inside overlapping blocks are
// attributed to the first covering block in sorted order. Anchors are only
// ever removed by coverage, never silently dropped.
func (s *TimelineSkeleton) RefilterUnplaced() {
	kept := s.Unplaced[:0]
	for _, a := range s.Unplaced {
		covered := false
		for i := range s.Blocks {
			if s.Blocks[i].Covers(a.Timestamp) {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, a)
		}
	}
	s.Unplaced = kept
}
