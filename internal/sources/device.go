package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/daybook-ai/daybook/pkg/types"
)

// DeviceConfig holds configuration for the wearable-device client.
type DeviceConfig struct {
	BaseURL string
	APIKey  string

	// RequestsPerSecond caps the call rate against the provider API.
	// Zero means 4 req/s.
	RequestsPerSecond float64

	// HTTPClient overrides the default client (used in tests).
	HTTPClient *http.Client
}

// DeviceClient fetches activity and sleep data from the wearable provider's
// HTTP API. Calls are rate limited; the per-fetch timeout comes from the
// caller's context.
type DeviceClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// deviceDay is the provider's wire format for one day of data.
type deviceDay struct {
	Activities []deviceActivity `json:"activities"`
	Sleep      *deviceSleep     `json:"sleep"`
}

type deviceActivity struct {
	ID    string     `json:"id"`
	Type  string     `json:"type"`
	Name  string     `json:"name"`
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`

	Calories int     `json:"calories,omitempty"`
	Distance float64 `json:"distance_km,omitempty"`
}

type deviceSleep struct {
	ID    string     `json:"id"`
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"` // absent while still asleep
}

// NewDeviceClient creates a wearable-device adapter.
func NewDeviceClient(cfg DeviceConfig) *DeviceClient {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &DeviceClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Source identifies the device-confirmed timeline source.
func (c *DeviceClient) Source() types.BlockSource { return types.SourceDevice }

// Fetch returns the owner's device activities and sleep window for the date.
func (c *DeviceClient) Fetch(ctx context.Context, owner string, date time.Time) ([]Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v1/users/%s/days/%s", c.baseURL,
		url.PathEscape(owner), date.Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("device: failed to build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("device: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var day deviceDay
	if err := json.NewDecoder(resp.Body).Decode(&day); err != nil {
		return nil, fmt.Errorf("device: failed to decode response: %w", err)
	}

	records := make([]Record, 0, len(day.Activities)+1)
	for _, a := range day.Activities {
		rec := Record{
			Provider:   "device",
			ExternalID: a.ID,
			Kind:       NormalizeKind(a.Type),
			Title:      a.Name,
			Start:      a.Start,
			End:        a.End,
		}
		if a.Calories > 0 || a.Distance > 0 {
			rec.Details = map[string]any{}
			if a.Calories > 0 {
				rec.Details["calories"] = a.Calories
			}
			if a.Distance > 0 {
				rec.Details["distance_km"] = a.Distance
			}
		}
		records = append(records, rec)
	}

	// The sleep window is one record even when it spans midnight; the
	// builder must never split or truncate it.
	if day.Sleep != nil {
		records = append(records, Record{
			Provider:   "device",
			ExternalID: day.Sleep.ID,
			Kind:       types.BlockTypeSleep,
			Title:      "Sleep",
			Start:      day.Sleep.Start,
			End:        day.Sleep.End,
		})
	}
	return records, nil
}
