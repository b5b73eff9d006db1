// Package demand talks to the ride-request counter service: a small HTTP
// server that counts passenger requests per route.
package demand

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Route is one route counter as served by /data.
type Route struct {
	Index *int   `json:"index,omitempty"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type dataResponse struct {
	Routes []Route `json:"routes"`
}

// Client polls the counter service.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

// NewClient creates a client for baseURL. A bare host such as "192.168.4.1"
// is reached over plain HTTP.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Second}
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		HTTPClient: httpClient,
		BaseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Host returns the host part of the service address, for display.
func (c *Client) Host() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" {
		return c.BaseURL
	}
	return u.Host
}

// Fetch returns the current route counters.
func (c *Client) Fetch(ctx context.Context) ([]Route, error) {
	body, err := c.get(ctx, "/data")
	if err != nil {
		return nil, err
	}

	var data dataResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode /data: %w", err)
	}
	// A missing or null list means nobody is waiting.
	if data.Routes == nil {
		return []Route{}, nil
	}
	return data.Routes, nil
}

// Reset clears the counter of one route.
func (c *Client) Reset(ctx context.Context, index int) error {
	_, err := c.get(ctx, "/reset?route="+strconv.Itoa(index))
	return err
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, path, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// Leader returns the position of the route with the most requests; the first
// one wins a tie. It returns -1 for an empty list.
func Leader(routes []Route) int {
	best := -1
	for i, r := range routes {
		if best < 0 || r.Count > routes[best].Count {
			best = i
		}
	}
	return best
}

// ThresholdReached reports whether any route has at least threshold requests.
func ThresholdReached(routes []Route, threshold int) bool {
	for _, r := range routes {
		if r.Count >= threshold {
			return true
		}
	}
	return false
}

// DisplayName returns the route name cut to maxLen runes, or "Unknown".
func DisplayName(r Route, maxLen int) string {
	name := r.Name
	if name == "" {
		name = "Unknown"
	}
	if runes := []rune(name); maxLen > 0 && len(runes) > maxLen {
		name = string(runes[:maxLen])
	}
	return name
}

// ResetIndex returns the counter index to pass to Reset. Routes served
// without an index cannot be reset.
func (r Route) ResetIndex() (int, bool) {
	if r.Index == nil {
		return 0, false
	}
	return *r.Index, true
}
