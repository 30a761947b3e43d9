package bptf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"listing-cache/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL   = "https://backpack.tf/api"
	DefaultStreamURL = "wss://ws.backpack.tf/events"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 1.0 // requests per second
	DefaultRateBurst = 1

	snapshotPath = "/classifieds/listings/snapshot"
)

// APIError represents a non-success response from the marketplace API.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bptf api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsServerError returns true for 5xx responses.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode <= 599
}

// SnapshotClient fetches listing snapshots over HTTP.
type SnapshotClient struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// ClientOption configures SnapshotClient.
type ClientOption func(*SnapshotClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *SnapshotClient) {
		c.client.Timeout = d
	}
}

// WithRateLimit sets the request rate limit. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *SnapshotClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewSnapshotClient creates a new snapshot client.
func NewSnapshotClient(baseURL, token string, opts ...ClientOption) *SnapshotClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &SnapshotClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetSnapshot requests the current listings of one item.
// Returns *APIError for non-200 responses and an ErrDecode-wrapped error
// for bodies that fail to parse.
func (c *SnapshotClient) GetSnapshot(ctx context.Context, sku string) (*SnapshotResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	query := url.Values{}
	query.Set("token", c.token)
	query.Set("appid", strconv.FormatUint(uint64(domain.AppID), 10))
	query.Set("sku", sku)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+snapshotPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: body}
	}

	var snapshot SnapshotResponse
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: snapshot: %v", ErrDecode, err)
	}

	return &snapshot, nil
}
