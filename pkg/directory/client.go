// Package directory provides a client for a business directory API used
// to backfill firmographics: industry, headcount, and revenue estimates.
package directory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospect-pipeline/internal/resilience"
)

const defaultBaseURL = "https://api.datadirectory.example.com/v1"

// ErrNotFound is returned when the directory has no record for
// the business.
var ErrNotFound = eris.New("directory: business not found")

// Client performs directory lookups.
type Client interface {
	// Lookup finds the directory record best matching the business name
	// within the region. Returns ErrNotFound when nothing matches.
	Lookup(ctx context.Context, name, region string) (*Record, error)
}

// Record is one directory entry.
type Record struct {
	Name            string  `json:"name"`
	Industry        string  `json:"industry"`
	EmployeeCount   int     `json:"employee_count"`
	RevenueEstimate float64 `json:"revenue_estimate"`
}

type lookupResponse struct {
	Records []Record `json:"records"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetryPolicy overrides the transient-failure retry policy.
func WithRetryPolicy(cfg resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Policy
}

// NewClient creates a directory API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		retry:   resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Lookup(ctx context.Context, name, region string) (*Record, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("region", region)
	q.Set("limit", "1")

	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, "/businesses?"+q.Encode())
	})
	if err != nil {
		return nil, err
	}

	var result lookupResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "directory: unmarshal response")
	}
	if len(result.Records) == 0 {
		return nil, ErrNotFound
	}
	return &result.Records[0], nil
}

func (c *httpClient) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "directory: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "directory: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "directory: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "directory: read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resilience.RetryableStatus(resp.StatusCode):
		apiErr := eris.Errorf("directory: status %d: %s", resp.StatusCode, string(body))
		return nil, resilience.MarkRetryable(apiErr, resp.StatusCode)
	default:
		return nil, eris.Errorf("directory: unexpected status %d: %s", resp.StatusCode, string(body))
	}
}
