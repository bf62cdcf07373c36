// Package places provides a client for the Google Places API used to
// resolve business locations.
package places

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

// ErrNoMatch is returned when the search yields no place for the query.
var ErrNoMatch = eris.New("places: no matching place")

// Client performs Google Places API operations.
type Client interface {
	// FindBusiness resolves a business name and location to the best
	// matching place. Returns ErrNoMatch when nothing matches.
	FindBusiness(ctx context.Context, name, location string) (*Place, error)
}

// Place represents a place returned by the API.
type Place struct {
	ID                string             `json:"id"`
	DisplayName       DisplayName        `json:"displayName"`
	FormattedAddress  string             `json:"formattedAddress"`
	AddressComponents []AddressComponent `json:"addressComponents"`
	Rating            float64            `json:"rating"`
	UserRatingCount   int                `json:"userRatingCount"`
	BusinessStatus    string             `json:"businessStatus"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// AddressComponent is one structured part of the place address.
type AddressComponent struct {
	LongText  string   `json:"longText"`
	ShortText string   `json:"shortText"`
	Types     []string `json:"types"`
}

// Region returns the short state or province code from the address
// components, or "" when the API omitted it.
func (p *Place) Region() string {
	for _, c := range p.AddressComponents {
		for _, t := range c.Types {
			if t == "administrative_area_level_1" {
				return c.ShortText
			}
		}
	}
	return ""
}

// Listed reports whether the place carries an operational business profile.
func (p *Place) Listed() bool {
	return p.BusinessStatus == "" || p.BusinessStatus == "OPERATIONAL"
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

// NewClient creates a Google Places API client.
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

type textSearchRequest struct {
	TextQuery string `json:"textQuery"`
	PageSize  int    `json:"pageSize,omitempty"`
}

type textSearchResponse struct {
	Places []Place `json:"places"`
}

const searchFieldMask = "places.id,places.displayName,places.formattedAddress," +
	"places.addressComponents,places.rating,places.userRatingCount,places.businessStatus"

func (c *httpClient) FindBusiness(ctx context.Context, name, location string) (*Place, error) {
	query := name
	if location != "" {
		query += " " + location
	}

	body, err := json.Marshal(textSearchRequest{TextQuery: query, PageSize: 1})
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	respBody, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.post(ctx, "/places:searchText", body)
	})
	if err != nil {
		return nil, err
	}

	var result textSearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}
	if len(result.Places) == 0 {
		return nil, ErrNoMatch
	}
	return &result.Places[0], nil
}

func (c *httpClient) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "places: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", searchFieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.MarkRetryable(apiErr, resp.StatusCode)
		}
		return nil, apiErr
	}
	return respBody, nil
}
