package timeline

import (
	"fmt"
	"sort"

	"github.com/daybook-ai/daybook/internal/sources"
	"github.com/daybook-ai/daybook/pkg/types"
)

// mergeKey identifies a provider-native record for deduplication.
type mergeKey struct {
	provider   string
	externalID string
}

// mergeBlocks translates device and store records into blocks and merges
// them by shared (provider, external id):
//
//   - device records become device-confirmed, high-confidence blocks;
//   - store records become store-confirmed, high-confidence blocks carrying
//     their persisted record id;
//   - a store record matching an existing device block does not duplicate
//     it. The persisted record id is attached to the device block instead:
//     the store wins as canonical id holder, the device wins as timing
//     source, since device timestamps are more precise.
//
// Records lacking a start time are excluded from blocks and surfaced as
// skipped. Overlapping blocks from different sources are kept and surfaced,
// not de-duplicated. The result is sorted ascending by start time; the sort
// is stable, so the merge is idempotent and ordering cannot drift across
// rebuilds from identical inputs.
func mergeBlocks(deviceRecs, storeRecs []sources.Record) ([]types.TimeBlock, []types.SkippedRecord) {
	var blocks []types.TimeBlock
	var skipped []types.SkippedRecord
	seen := map[mergeKey]int{} // (provider, external id) -> index into blocks

	add := func(rec sources.Record, source types.BlockSource) {
		if rec.Start == nil {
			skipped = append(skipped, types.SkippedRecord{
				Source:      source,
				Provider:    rec.Provider,
				ExternalID:  rec.ExternalID,
				Reason:      "missing start timestamp",
				Description: rec.Title,
			})
			return
		}

		key := mergeKey{rec.Provider, rec.ExternalID}
		if rec.ExternalID != "" {
			if i, dup := seen[key]; dup {
				// Same provider record seen again: merge instead of
				// duplicating. Store contributes the persisted id; timing
				// stays with the block already present (device first).
				if rec.RecordID != "" {
					blocks[i].RecordID = rec.RecordID
				}
				return
			}
		}

		block := types.TimeBlock{
			ID:         blockID(rec),
			Start:      *rec.Start,
			End:        rec.End,
			Type:       rec.Kind,
			Title:      rec.Title,
			Source:     source,
			Confidence: types.ConfidenceHigh,
			RecordID:   rec.RecordID,
			Provider:   rec.Provider,
			ExternalID: rec.ExternalID,
			Details:    rec.Details,
		}
		blocks = append(blocks, block)
		if rec.ExternalID != "" {
			seen[key] = len(blocks) - 1
		}
	}

	// Device first so that shared external ids keep device timing.
	for _, rec := range deviceRecs {
		add(rec, types.SourceDevice)
	}
	for _, rec := range storeRecs {
		add(rec, types.SourceStore)
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Start.Before(blocks[j].Start)
	})
	return blocks, skipped
}

// blockID derives a deterministic block id from the record identity, so
// rebuilding from identical adapter responses yields identical skeletons.
func blockID(rec sources.Record) string {
	if rec.ExternalID != "" {
		return fmt.Sprintf("blk:%s:%s", rec.Provider, rec.ExternalID)
	}
	if rec.RecordID != "" {
		return "blk:rec:" + rec.RecordID
	}
	return fmt.Sprintf("blk:%s:%d", rec.Kind, rec.Start.UnixNano())
}
