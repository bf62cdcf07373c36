// Package reviews provides a client for review aggregation: per-place
// rating data plus a competitor benchmark for the same trade and region.
package reviews

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospect-pipeline/internal/resilience"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// ErrPlaceNotFound is returned when the place ID no longer resolves.
var ErrPlaceNotFound = eris.New("reviews: place not found")

// Client performs review aggregation operations.
type Client interface {
	// PlaceReviews returns the rating summary for one place.
	PlaceReviews(ctx context.Context, placeID string) (*Summary, error)
	// CompetitorBenchmark samples rated businesses of the same trade in
	// the region and returns their average rating.
	CompetitorBenchmark(ctx context.Context, trade, region string) (*Benchmark, error)
}

// Summary is the review data for a single place.
type Summary struct {
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"userRatingCount"`
}

// Benchmark is an aggregate over sampled competitors.
type Benchmark struct {
	AvgRating float64
	Sampled   int
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

// NewClient creates a review aggregation client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(10), 10),
		retry:   resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) PlaceReviews(ctx context.Context, placeID string) (*Summary, error) {
	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, http.MethodGet, "/places/"+placeID, nil, "rating,userRatingCount")
	})
	if err != nil {
		return nil, err
	}

	var result Summary
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "reviews: unmarshal place")
	}
	return &result, nil
}

type searchRequest struct {
	TextQuery string `json:"textQuery"`
	PageSize  int    `json:"pageSize,omitempty"`
}

type searchResponse struct {
	Places []Summary `json:"places"`
}

func (c *httpClient) CompetitorBenchmark(ctx context.Context, trade, region string) (*Benchmark, error) {
	reqBody, err := json.Marshal(searchRequest{
		TextQuery: trade + " in " + region,
		PageSize:  20,
	})
	if err != nil {
		return nil, eris.Wrap(err, "reviews: marshal benchmark request")
	}

	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, http.MethodPost, "/places:searchText", reqBody,
			"places.rating,places.userRatingCount")
	})
	if err != nil {
		return nil, err
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "reviews: unmarshal benchmark")
	}

	// Unrated places carry a zero rating and would drag the average down.
	var sum float64
	var n int
	for _, p := range result.Places {
		if p.ReviewCount > 0 {
			sum += p.Rating
			n++
		}
	}
	b := &Benchmark{Sampled: n}
	if n > 0 {
		b.AvgRating = sum / float64(n)
	}
	return b, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body []byte, fieldMask string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "reviews: rate limit wait")
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, eris.Wrap(err, "reviews: create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "reviews: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "reviews: read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return respBody, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrPlaceNotFound
	case resilience.RetryableStatus(resp.StatusCode):
		apiErr := eris.Errorf("reviews: status %d: %s", resp.StatusCode, string(respBody))
		return nil, resilience.MarkRetryable(apiErr, resp.StatusCode)
	default:
		return nil, eris.Errorf("reviews: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
}
