package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/daybook-ai/daybook/pkg/types"
)

// ReceiptsConfig holds configuration for the receipt/communication client.
type ReceiptsConfig struct {
	BaseURL string
	APIKey  string

	// HTTPClient overrides the default client (used in tests).
	HTTPClient *http.Client
}

// ReceiptsClient fetches timestamped candidate events (purchases, bookings,
// notifications) from the receipt/communication provider. Receipt records
// are point events: they carry a timestamp and free text but no duration,
// and surface as anchors rather than blocks.
type ReceiptsClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type receiptEvent struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Timestamp   *time.Time `json:"timestamp"`
	Description string     `json:"description"`
	Merchant    string     `json:"merchant,omitempty"`
	AmountCents int        `json:"amount_cents,omitempty"`
}

// NewReceiptsClient creates a receipt/communication adapter.
func NewReceiptsClient(cfg ReceiptsConfig) *ReceiptsClient {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ReceiptsClient{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, client: client}
}

// Source identifies the receipt timeline source.
func (c *ReceiptsClient) Source() types.BlockSource { return types.SourceReceipt }

// Fetch returns the owner's receipt events for the date.
func (c *ReceiptsClient) Fetch(ctx context.Context, owner string, date time.Time) ([]Record, error) {
	u := fmt.Sprintf("%s/v1/users/%s/events?date=%s", c.baseURL,
		url.PathEscape(owner), date.Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("receipts: failed to build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("receipts: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("receipts: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Events []receiptEvent `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("receipts: failed to decode response: %w", err)
	}

	records := make([]Record, 0, len(payload.Events))
	for _, e := range payload.Events {
		desc := e.Description
		if desc == "" && e.Merchant != "" {
			desc = e.Merchant
		}
		rec := Record{
			Provider:    "receipts",
			ExternalID:  e.ID,
			Kind:        NormalizeKind(e.Kind),
			Start:       e.Timestamp,
			Description: desc,
		}
		if e.AmountCents > 0 {
			rec.Details = map[string]any{"amount_cents": e.AmountCents}
		}
		records = append(records, rec)
	}
	return records, nil
}
