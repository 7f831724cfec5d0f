// Package timeline implements the Timeline Skeleton Builder: it merges the
// outputs of the three source adapters (wearable device, structured-event
// store, receipt/communication) into one ordered, annotated timeline for a
// calendar date, computes unaccounted gaps, and collects unplaced anchor
// events.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/daybook-ai/daybook/internal/sources"
	"github.com/daybook-ai/daybook/internal/storage"
	"github.com/daybook-ai/daybook/pkg/types"
)

// ErrUnknownOwner indicates the requested owner identifier does not resolve
// to a valid account. It is the only fatal error a build can produce:
// adapter failures degrade, they never abort.
var ErrUnknownOwner = errors.New("unknown owner")

// Options holds builder tunables.
type Options struct {
	// GapThreshold is the minimum unaccounted interval reported as a gap.
	// Zero means 60 minutes.
	GapThreshold time.Duration

	// FetchTimeout bounds each adapter fetch independently. Zero means 5s.
	FetchTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.GapThreshold <= 0 {
		o.GapThreshold = 60 * time.Minute
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 5 * time.Second
	}
	return o
}

// Builder produces timeline skeletons. It holds no per-build state and is
// safe for concurrent use across sessions.
type Builder struct {
	owners   storage.OwnerResolver
	device   sources.Adapter
	store    sources.Adapter
	receipts sources.Adapter
	opts     Options
}

// NewBuilder creates a skeleton builder. Any adapter may be nil; a nil
// adapter contributes nothing and is not flagged as failed.
func NewBuilder(owners storage.OwnerResolver, device, store, receipts sources.Adapter, opts Options) *Builder {
	return &Builder{
		owners:   owners,
		device:   device,
		store:    store,
		receipts: receipts,
		opts:     opts.withDefaults(),
	}
}

type fetchResult struct {
	source  types.BlockSource
	records []sources.Record
	err     error
}

// Build produces the skeleton for (owner, date). The three adapter fetches
// run concurrently, each bounded by its own timeout, and are allowed to
// fail independently: a failed source contributes nothing and is flagged in
// the skeleton's source metadata. Merging only starts once every fetch has
// settled, keeping the build deterministic for identical adapter responses.
func (b *Builder) Build(ctx context.Context, owner string, date time.Time) (*types.TimelineSkeleton, error) {
	ok, err := b.owners.OwnerExists(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("timeline: owner lookup failed: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("timeline: %w: %s", ErrUnknownOwner, owner)
	}

	day := types.DayStart(date)

	adapters := []sources.Adapter{b.device, b.store, b.receipts}
	results := make(chan fetchResult, len(adapters))
	var wg sync.WaitGroup
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		wg.Add(1)
		go func(a sources.Adapter) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, b.opts.FetchTimeout)
			defer cancel()
			records, err := a.Fetch(fetchCtx, owner, day)
			results <- fetchResult{source: a.Source(), records: records, err: err}
		}(adapter)
	}
	wg.Wait()
	close(results)

	skeleton := &types.TimelineSkeleton{
		Owner:   owner,
		Date:    day,
		Sources: map[types.BlockSource]types.SourceStatus{},
		BuiltAt: time.Now().UTC(),
	}

	var deviceRecs, storeRecs, receiptRecs []sources.Record
	for r := range results {
		if r.err != nil {
			skeleton.Sources[r.source] = types.SourceStatus{Failed: true, Error: r.err.Error()}
			continue
		}
		skeleton.Sources[r.source] = types.SourceStatus{}
		switch r.source {
		case types.SourceDevice:
			deviceRecs = r.records
		case types.SourceStore:
			storeRecs = r.records
		case types.SourceReceipt:
			receiptRecs = r.records
		}
	}

	blocks, skipped := mergeBlocks(deviceRecs, storeRecs)
	skeleton.Blocks = blocks
	skeleton.Skipped = skipped

	unplaced, skippedReceipts := collectAnchors(receiptRecs, blocks)
	skeleton.Unplaced = unplaced
	skeleton.Skipped = append(skeleton.Skipped, skippedReceipts...)

	skeleton.Gaps = computeGaps(blocks, day, b.opts.GapThreshold)

	return skeleton, nil
}

// collectAnchors turns receipt records into anchor events, excluding those
// whose timestamp falls within some block's [start, end) interval. When
// overlapping blocks both cover a timestamp, the first covering block in
// sorted order wins; either way the anchor is considered placed. Records
// without a timestamp are surfaced as skipped.
func collectAnchors(receipts []sources.Record, blocks []types.TimeBlock) ([]types.AnchorEvent, []types.SkippedRecord) {
	var anchors []types.AnchorEvent
	var skipped []types.SkippedRecord

	for _, rec := range receipts {
		if rec.Start == nil {
			skipped = append(skipped, types.SkippedRecord{
				Source:      types.SourceReceipt,
				Provider:    rec.Provider,
				ExternalID:  rec.ExternalID,
				Reason:      "missing timestamp",
				Description: rec.Description,
			})
			continue
		}

		covered := false
		for i := range blocks {
			if blocks[i].Covers(*rec.Start) {
				covered = true
				break
			}
		}
		if covered {
			continue
		}

		anchors = append(anchors, types.AnchorEvent{
			Timestamp:   *rec.Start,
			Kind:        rec.Kind,
			Source:      types.SourceReceipt,
			Confidence:  types.ConfidenceMedium,
			Description: rec.Description,
			Provider:    rec.Provider,
			ExternalID:  rec.ExternalID,
		})
	}
	return anchors, skipped
}
