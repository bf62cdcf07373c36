// Package strategy generates outreach strategy text from merged research
// data using the Anthropic API.
package strategy

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 1024
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = eris.New("strategy: empty model response")

// Client generates outreach strategies.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Request carries the research data the strategy is grounded on. Zero
// values mean the corresponding pass produced no data.
type Request struct {
	BusinessName        string
	Industry            string
	Region              string
	Rating              float64
	ReviewCount         int
	CompetitorAvgRating float64
	HasWebsite          bool
	PageSummary         string
}

const systemPrompt = `You are a sales strategist for a digital marketing agency
serving small trade businesses. Given research data about a prospect, write a
concise outreach strategy: the opening angle, the two strongest pain points
backed by the data, and a concrete first offer. Plain text, no headings.`

// buildPrompt renders the research data as the user message. Only fields
// with data appear, so the model never anchors on zero values.
func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s\n", req.BusinessName)
	if req.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", req.Industry)
	}
	if req.Region != "" {
		fmt.Fprintf(&b, "Region: %s\n", req.Region)
	}
	if req.ReviewCount > 0 {
		fmt.Fprintf(&b, "Reviews: %d at %.1f average\n", req.ReviewCount, req.Rating)
	}
	if req.CompetitorAvgRating > 0 {
		fmt.Fprintf(&b, "Competitor average rating: %.1f\n", req.CompetitorAvgRating)
	}
	if req.HasWebsite {
		b.WriteString("Has a website.\n")
	} else {
		b.WriteString("No website found.\n")
	}
	if req.PageSummary != "" {
		fmt.Fprintf(&b, "Website summary:\n%s\n", req.PageSummary)
	}
	b.WriteString("\nWrite the outreach strategy.")
	return b.String()
}

// firstText returns the first text block of a message, or "".
func firstText(msg *sdk.Message) string {
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text
		}
	}
	return ""
}

// Option configures the client.
type Option func(*sdkClient)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *sdkClient) {
		c.model = model
	}
}

// WithMaxTokens overrides the response token budget.
func WithMaxTokens(n int64) Option {
	return func(c *sdkClient) {
		c.maxTokens = n
	}
}

// WithSDKOptions passes extra request options to the underlying SDK
// client (base URL overrides for testing, custom HTTP clients).
func WithSDKOptions(opts ...option.RequestOption) Option {
	return func(c *sdkClient) {
		c.sdkOpts = append(c.sdkOpts, opts...)
	}
}

type sdkClient struct {
	client    sdk.Client
	model     string
	maxTokens int64
	sdkOpts   []option.RequestOption
}

// NewClient creates a strategy client backed by the Anthropic SDK.
func NewClient(apiKey string, opts ...Option) Client {
	c := &sdkClient{
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, o := range opts {
		o(c)
	}
	c.client = sdk.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, c.sdkOpts...)...)
	return c
}

func (c *sdkClient) Generate(ctx context.Context, req Request) (string, error) {
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(buildPrompt(req))),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "strategy: create message")
	}

	text := firstText(msg)
	if text == "" {
		return "", ErrEmptyResponse
	}

	zap.L().Debug("strategy generated",
		zap.String("business", req.BusinessName),
		zap.String("model", string(msg.Model)),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)
	return text, nil
}
