package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/daybook-ai/daybook/internal/storage"
	"github.com/daybook-ai/daybook/pkg/types"
)

// StoreAdapter feeds the store-confirmed source from the structured-event
// store: activities the user has previously logged and confirmed.
type StoreAdapter struct {
	store storage.EventStore
}

// NewStoreAdapter wraps an event store as a source adapter.
func NewStoreAdapter(store storage.EventStore) *StoreAdapter {
	return &StoreAdapter{store: store}
}

// Source identifies the store-confirmed timeline source.
func (a *StoreAdapter) Source() types.BlockSource { return types.SourceStore }

// Fetch returns the owner's persisted event records for the date.
func (a *StoreAdapter) Fetch(ctx context.Context, owner string, date time.Time) ([]Record, error) {
	recs, err := a.store.ListByDate(ctx, owner, date)
	if err != nil {
		return nil, fmt.Errorf("store adapter: %w", err)
	}

	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		start := r.Start
		rec := Record{
			Provider:   r.Provider,
			ExternalID: r.ExternalID,
			Kind:       r.Type,
			Title:      r.Title,
			Start:      &start,
			End:        r.End,
			RecordID:   r.ID,
			Details:    r.Details,
		}
		out = append(out, rec)
	}
	return out, nil
}
