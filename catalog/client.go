// Package catalog is the read-only HTTP client for the external lyrics
// catalog (an LRCLIB-compatible API).
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"lyricsync-go/circuitbreaker"
	"lyricsync-go/logcolors"
)

const (
	getPath    = "/api/get"
	searchPath = "/api/search"

	defaultTimeout = 10 * time.Second
)

// Client talks to one catalog instance. All methods are safe for
// concurrent use; a politeness limiter spaces out requests and a circuit
// breaker fails fast when the backend is down.
type Client struct {
	baseURL      string
	clientHeader string
	httpClient   *http.Client
	limiter      *rate.Limiter
	breaker      *circuitbreaker.CircuitBreaker
}

// Config holds catalog client configuration.
type Config struct {
	BaseURL      string
	ClientHeader string
	Timeout      time.Duration
	RatePerSec   float64
	RateBurst    int
	Breaker      *circuitbreaker.CircuitBreaker
}

// NewClient creates a catalog client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 4
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 8
	}

	return &Client{
		baseURL:      cfg.BaseURL,
		clientHeader: cfg.ClientHeader,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		limiter:      rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RateBurst),
		breaker:      cfg.Breaker,
	}
}

// Get performs an exact-match lookup against /api/get. Absence of a record
// (HTTP 404) is not an error: it returns (nil, nil). Album and duration are
// optional; zero values are omitted from the query.
func (c *Client) Get(ctx context.Context, title, artist, album string, durationSecs int) (*Record, error) {
	params := url.Values{}
	params.Set("track_name", title)
	params.Set("artist_name", artist)
	if album != "" {
		params.Set("album_name", album)
	}
	if durationSecs > 0 {
		params.Set("duration", strconv.Itoa(durationSecs))
	}

	log.Debugf("%s Get: %s - %s", logcolors.LogCatalog, artist, title)

	body, notFound, err := c.do(ctx, getPath, params)
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, nil
	}

	var record Record
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("failed to parse catalog record: %w", err)
	}
	return &record, nil
}

// Search performs a free-text search against /api/search and returns the
// candidate records. An empty result set is a valid outcome, not an error.
func (c *Client) Search(ctx context.Context, query string) ([]Record, error) {
	params := url.Values{}
	params.Set("q", query)

	log.Debugf("%s Search: %q", logcolors.LogSearch, query)

	body, notFound, err := c.do(ctx, searchPath, params)
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, nil
	}

	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}
	return records, nil
}

// do issues one GET request under the limiter and circuit breaker.
// The notFound return distinguishes a 404 from a real failure.
func (c *Client) do(ctx context.Context, path string, params url.Values) (body []byte, notFound bool, err error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return nil, false, circuitbreaker.ErrCircuitOpen
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	requestURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	if c.clientHeader != "" {
		req.Header.Set("User-Agent", c.clientHeader)
		req.Header.Set("Lrclib-Client", c.clientHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure()
		return nil, false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// A missing record is a valid "no match" outcome, the backend is healthy.
		c.recordSuccess()
		return nil, true, nil
	}

	if resp.StatusCode != http.StatusOK {
		c.recordFailure()
		return nil, false, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure()
		return nil, false, fmt.Errorf("failed to read response: %w", err)
	}

	c.recordSuccess()
	return body, false, nil
}

func (c *Client) recordSuccess() {
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
}

func (c *Client) recordFailure() {
	if c.breaker != nil {
		c.breaker.RecordFailure()
	}
}
