package sources_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook-ai/daybook/internal/sources"
	"github.com/daybook-ai/daybook/pkg/types"
)

func TestReceiptsFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/ada/events", r.URL.Path)
		assert.Equal(t, "2026-03-14", r.URL.Query().Get("date"))
		fmt.Fprint(w, `{
			"events": [
				{"id": "tx-1", "kind": "purchase", "timestamp": "2026-03-14T08:15:00Z",
				 "description": "oat latte", "amount_cents": 575},
				{"id": "tx-2", "kind": "restaurant", "timestamp": "2026-03-14T12:40:00Z",
				 "merchant": "Ramen Koya"},
				{"id": "msg-1", "kind": "notification", "description": "flight check-in open"}
			]
		}`)
	}))
	defer srv.Close()

	client := sources.NewReceiptsClient(sources.ReceiptsConfig{BaseURL: srv.URL})
	assert.Equal(t, types.SourceReceipt, client.Source())

	records, err := client.Fetch(context.Background(), "ada",
		time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, records, 3)

	latte := records[0]
	assert.Equal(t, "oat latte", latte.Description)
	assert.Equal(t, 575, latte.Details["amount_cents"])
	assert.Nil(t, latte.End, "receipts are point events")

	lunch := records[1]
	assert.Equal(t, "Ramen Koya", lunch.Description, "merchant fills an empty description")
	assert.Equal(t, types.BlockTypeMeal, lunch.Kind)

	assert.Nil(t, records[2].Start, "a missing timestamp is preserved for the builder to flag")
}

func TestReceiptsFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := sources.NewReceiptsClient(sources.ReceiptsConfig{BaseURL: srv.URL})
	_, err := client.Fetch(context.Background(), "ada", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
