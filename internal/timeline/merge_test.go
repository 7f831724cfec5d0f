package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/daybook-ai/daybook/internal/sources"
	"github.com/daybook-ai/daybook/pkg/types"
)

func at(h, m int) *time.Time {
	t := time.Date(2026, 3, 14, h, m, 0, 0, time.UTC)
	return &t
}

func TestMergeBlocksDedupesSharedExternalID(t *testing.T) {
	device := []sources.Record{
		{Provider: "fitbit", ExternalID: "run-1", Kind: types.BlockTypeWorkout, Title: "Morning run", Start: at(7, 0), End: at(7, 45)},
	}
	store := []sources.Record{
		{Provider: "fitbit", ExternalID: "run-1", Kind: types.BlockTypeWorkout, Start: at(7, 5), End: at(7, 40), RecordID: "evt:abc"},
	}

	blocks, skipped := mergeBlocks(device, store)

	require.Len(t, blocks, 1)
	assert.Empty(t, skipped)
	b := blocks[0]
	assert.Equal(t, types.SourceDevice, b.Source, "device record was seen first")
	assert.Equal(t, *at(7, 0), b.Start, "device timing wins")
	assert.Equal(t, "evt:abc", b.RecordID, "store record id wins")
}

func TestMergeBlocksKeepsOverlapsFromDifferentRecords(t *testing.T) {
	device := []sources.Record{
		{Provider: "fitbit", ExternalID: "walk-1", Kind: types.BlockTypeWorkout, Start: at(12, 0), End: at(12, 30)},
	}
	store := []sources.Record{
		{Provider: "daybook", ExternalID: "lunch-1", Kind: types.BlockTypeMeal, Start: at(12, 10), End: at(12, 50), RecordID: "evt:lunch"},
	}

	blocks, _ := mergeBlocks(device, store)
	assert.Len(t, blocks, 2, "overlapping blocks from distinct records are both kept")
}

func TestMergeBlocksSkipsRecordsWithoutStart(t *testing.T) {
	store := []sources.Record{
		{Provider: "daybook", ExternalID: "x", Kind: types.BlockTypeMeal, Title: "undated meal"},
		{Provider: "daybook", ExternalID: "y", Kind: types.BlockTypeMeal, Start: at(19, 0)},
	}

	blocks, skipped := mergeBlocks(nil, store)

	assert.Len(t, blocks, 1)
	require.Len(t, skipped, 1)
	assert.Equal(t, "missing start timestamp", skipped[0].Reason)
	assert.Equal(t, "undated meal", skipped[0].Description)
}

func TestMergeBlocksSorted(t *testing.T) {
	device := []sources.Record{
		{Provider: "p", ExternalID: "c", Kind: types.BlockTypeWork, Start: at(14, 0), End: at(17, 0)},
		{Provider: "p", ExternalID: "a", Kind: types.BlockTypeWorkout, Start: at(7, 0), End: at(8, 0)},
		{Provider: "p", ExternalID: "b", Kind: types.BlockTypeMeal, Start: at(12, 0), End: at(12, 30)},
	}

	blocks, _ := mergeBlocks(device, nil)
	require.Len(t, blocks, 3)
	for i := 1; i < len(blocks); i++ {
		assert.False(t, blocks[i].Start.Before(blocks[i-1].Start), "blocks must be sorted by start")
	}
}

func TestBlockIDDeterministic(t *testing.T) {
	rec := sources.Record{Provider: "fitbit", ExternalID: "run-1", Kind: types.BlockTypeWorkout, Start: at(7, 0)}
	assert.Equal(t, "blk:fitbit:run-1", blockID(rec))

	rec2 := sources.Record{RecordID: "evt:abc", Kind: types.BlockTypeMeal, Start: at(12, 0)}
	assert.Equal(t, "blk:rec:evt:abc", blockID(rec2))
}

// genRecords draws a slice of records with colliding external ids and
// occasional missing start times.
func genRecords(t *rapid.T, label string) []sources.Record {
	n := rapid.IntRange(0, 12).Draw(t, label+"_n")
	recs := make([]sources.Record, 0, n)
	for i := 0; i < n; i++ {
		var start, end *time.Time
		if rapid.Float64Range(0, 1).Draw(t, label+"_hasStart") > 0.1 {
			s := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC).
				Add(time.Duration(rapid.IntRange(0, 1430).Draw(t, label+"_startMin")) * time.Minute)
			start = &s
			e := s.Add(time.Duration(rapid.IntRange(1, 180).Draw(t, label+"_durMin")) * time.Minute)
			end = &e
		}
		recs = append(recs, sources.Record{
			Provider:   "p",
			ExternalID: rapid.SampledFrom([]string{"", "e1", "e2", "e3", "e4"}).Draw(t, label+"_ext"),
			Kind:       rapid.SampledFrom(types.ValidBlockTypes).Draw(t, label+"_kind"),
			Start:      start,
			End:        end,
			RecordID:   rapid.SampledFrom([]string{"", "r1", "r2"}).Draw(t, label+"_rec"),
		})
	}
	return recs
}

func TestMergeBlocksProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		device := genRecords(t, "device")
		store := genRecords(t, "store")

		blocks, skipped := mergeBlocks(device, store)

		// Every input record lands in exactly one bucket or merges.
		if len(blocks)+len(skipped) > len(device)+len(store) {
			t.Fatalf("merge fabricated records: %d blocks + %d skipped from %d inputs",
				len(blocks), len(skipped), len(device)+len(store))
		}

		// Sorted ascending by start.
		for i := 1; i < len(blocks); i++ {
			if blocks[i].Start.Before(blocks[i-1].Start) {
				t.Fatalf("blocks out of order at %d", i)
			}
		}

		// No two blocks share a non-empty (provider, external id).
		seen := map[mergeKey]bool{}
		for _, b := range blocks {
			if b.ExternalID == "" {
				continue
			}
			key := mergeKey{b.Provider, b.ExternalID}
			if seen[key] {
				t.Fatalf("duplicate merge identity %v", key)
			}
			seen[key] = true
		}

		// Idempotent: merging the same inputs again yields the same blocks.
		again, _ := mergeBlocks(device, store)
		if len(again) != len(blocks) {
			t.Fatalf("merge not idempotent: %d vs %d blocks", len(again), len(blocks))
		}
		for i := range blocks {
			if blocks[i].ID != again[i].ID || !blocks[i].Start.Equal(again[i].Start) {
				t.Fatalf("merge not deterministic at %d", i)
			}
		}
	})
}
