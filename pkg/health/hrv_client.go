package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"neuroheart-chat-be/internal/pkg/logger"
)

// Max daily rows to include in prompt (14 days)
const maxDailyRows = 14

var validRanges = map[string]struct{}{
	"1d": {}, "7d": {}, "30d": {}, "6m": {},
}

// NormalizeRange validates an HRV range string, falling back to the
// given default for anything outside 1d/7d/30d/6m.
func NormalizeRange(r, fallback string) string {
	if _, ok := validRanges[r]; ok {
		return r
	}
	return fallback
}

// HrvContext is the compact payload injected into the prompt.
type HrvContext struct {
	SummaryMetrics map[string]interface{}   `json:"summary_metrics,omitempty"`
	TimeSeries     []map[string]interface{} `json:"time_series,omitempty"`
	Patterns       interface{}              `json:"patterns,omitempty"`
}

func (h *HrvContext) IsEmpty() bool {
	return h == nil || (h.SummaryMetrics == nil && len(h.TimeSeries) == 0 && h.Patterns == nil)
}

// HrvClient fetches HRV analysis for a user from the HRV API. A slow or
// broken HRV API must never block a chat turn, so the timeout is tight
// and every failure degrades to an empty context.
type HrvClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  logger.ILogger
}

func NewHrvClient(baseURL, apiKey string, log logger.ILogger) *HrvClient {
	return &HrvClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 2 * time.Second},
		logger:  log,
	}
}

func (c *HrvClient) FetchContext(ctx context.Context, userId string, hrvRange string) *HrvContext {
	endpoint := fmt.Sprintf("%s/v1/hrv/analysis?%s", c.baseURL, url.Values{
		"user_id": {userId},
		"range":   {hrvRange},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return &HrvContext{}
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("hrv", "HRV fetch failed", map[string]interface{}{"error": err.Error()})
		return &HrvContext{}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &HrvContext{}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("hrv", "HRV fetch bad status", map[string]interface{}{"status": resp.StatusCode})
		return &HrvContext{}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &HrvContext{}
	}

	var data HrvContext
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Warn("hrv", "HRV response unmarshal failed", map[string]interface{}{"error": err.Error()})
		return &HrvContext{}
	}

	if len(data.TimeSeries) > maxDailyRows {
		data.TimeSeries = data.TimeSeries[len(data.TimeSeries)-maxDailyRows:]
	}

	return &data
}
