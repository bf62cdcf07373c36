// Package webresearch provides a client for a reader API that fetches a
// business website as markdown for digital-presence analysis.
package webresearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospect-pipeline/internal/resilience"
)

const defaultBaseURL = "https://r.jina.ai"

// ErrUnreachable is returned when the target site cannot be fetched.
var ErrUnreachable = eris.New("webresearch: site unreachable")

// Client fetches website content through the reader API.
type Client interface {
	// Read fetches the target URL and returns its content as markdown.
	// Returns ErrUnreachable when the site itself is down or missing.
	Read(ctx context.Context, targetURL string) (*Page, error)
}

// Page is the fetched page content.
type Page struct {
	Title   string
	URL     string
	Content string
}

// socialLinkPattern matches profile URLs on the major social platforms.
var socialLinkPattern = regexp.MustCompile(
	`https?://(?:www\.)?(?:facebook\.com|instagram\.com|linkedin\.com|x\.com|twitter\.com|youtube\.com|tiktok\.com)/[\w.@/-]+`,
)

// SocialLinks extracts deduplicated social-profile URLs from the page
// content, in order of first appearance.
func (p *Page) SocialLinks() []string {
	matches := socialLinkPattern.FindAllString(p.Content, -1)
	seen := make(map[string]bool, len(matches))
	var links []string
	for _, m := range matches {
		m = strings.TrimRight(m, "./")
		if !seen[m] {
			seen[m] = true
			links = append(links, m)
		}
	}
	return links
}

// Summary returns the leading portion of the content for strategy prompts.
func (p *Page) Summary(maxLen int) string {
	content := strings.TrimSpace(p.Content)
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen]
}

// readResponse is the reader API envelope.
type readResponse struct {
	Code int      `json:"code"`
	Data readData `json:"data"`
}

type readData struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
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

// NewClient creates a reader API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		retry:   resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Read(ctx context.Context, targetURL string) (*Page, error) {
	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, targetURL)
	})
	if err != nil {
		return nil, err
	}

	var result readResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "webresearch: unmarshal response")
	}

	return &Page{
		Title:   result.Data.Title,
		URL:     result.Data.URL,
		Content: result.Data.Content,
	}, nil
}

func (c *httpClient) fetch(ctx context.Context, targetURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "webresearch: rate limit wait")
	}

	reqURL := fmt.Sprintf("%s/%s", c.baseURL, targetURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "webresearch: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Return-Format", "markdown")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "webresearch: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "webresearch: read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	// The reader relays the target site's failure as 404/502 with a
	// descriptive body; the site being down is not a provider fault.
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrUnreachable
	case resilience.RetryableStatus(resp.StatusCode):
		apiErr := eris.Errorf("webresearch: status %d: %s", resp.StatusCode, string(body))
		return nil, resilience.MarkRetryable(apiErr, resp.StatusCode)
	default:
		return nil, eris.Errorf("webresearch: unexpected status %d: %s", resp.StatusCode, string(body))
	}
}
