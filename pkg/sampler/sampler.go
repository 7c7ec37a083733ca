// Package sampler queries the external counter API for one time window.
package sampler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/countwatch/countwatch/pkg/window"
)

// ErrInvalidResponse marks a structurally invalid counter API response:
// missing timestamps or a missing/negative/malformed count. It is distinct
// from transport failures so callers can tell a broken peer from a broken
// network.
var ErrInvalidResponse = errors.New("invalid counter API response")

// Sample is one observed counter value for a window. From/To echo the
// queried window as reported by the API.
type Sample struct {
	From  time.Time
	To    time.Time
	Count int64
}

// Client fetches samples from the counter API.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a counter API client with the given request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// BuildURL constructs the response_count request URL with percent-encoded
// ISO-8601 window bounds.
func BuildURL(baseURL string, w window.Window) string {
	base := strings.TrimSuffix(baseURL, "/")
	params := url.Values{}
	params.Set("from", window.FormatTime(w.From))
	params.Set("to", window.FormatTime(w.To))
	return base + "/response_count?" + params.Encode()
}

// Fetch queries the counter for w. Any non-2xx status, transport error or
// invalid body surfaces as an error; the caller owns retry policy.
func (c *Client) Fetch(ctx context.Context, w window.Window) (Sample, error) {
	reqURL := BuildURL(c.baseURL, w)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Sample{}, fmt.Errorf("counter API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Sample{}, fmt.Errorf("counter API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Sample{}, fmt.Errorf("failed to read counter API response: %w", err)
	}

	return parseResponse(body)
}

// responseBody is the counter API's wire shape. Count is a pointer so a
// missing field is distinguishable from zero.
type responseBody struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count *int64 `json:"count"`
}

func parseResponse(body []byte) (Sample, error) {
	var raw responseBody
	if err := json.Unmarshal(body, &raw); err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if raw.From == "" || raw.To == "" {
		return Sample{}, fmt.Errorf("%w: missing from/to fields", ErrInvalidResponse)
	}
	if raw.Count == nil {
		return Sample{}, fmt.Errorf("%w: missing count field", ErrInvalidResponse)
	}
	if *raw.Count < 0 {
		return Sample{}, fmt.Errorf("%w: negative count %d", ErrInvalidResponse, *raw.Count)
	}

	from, err := window.ParseTime(raw.From)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	to, err := window.ParseTime(raw.To)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return Sample{From: from, To: to, Count: *raw.Count}, nil
}
