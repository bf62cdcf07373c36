package adapters

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-pipeline/internal/model"
	"github.com/sells-group/prospect-pipeline/pkg/webresearch"
)

// pageSummaryLen bounds the stored page summary.
const pageSummaryLen = 2000

// Web analyzes the prospect's website for digital-presence signals.
type Web struct {
	client webresearch.Client
}

// NewWeb creates the web-research adapter.
func NewWeb(client webresearch.Client) *Web {
	return &Web{client: client}
}

func (a *Web) Pass() model.PassID { return model.PassWebResearch }

func (a *Web) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	page, err := a.client.Read(ctx, stringInput(inputs, model.KeyWebsiteURL))
	if err != nil {
		// A dead site is a research finding, not a provider failure.
		if eris.Is(err, webresearch.ErrUnreachable) {
			return map[string]any{
				model.KeyHasWebsite:     false,
				model.KeyHasSocialMedia: false,
				model.KeySocialLinks:    []string{},
				model.KeyPageSummary:    "",
			}, nil
		}
		return nil, err
	}

	links := page.SocialLinks()
	return map[string]any{
		model.KeyHasWebsite:     true,
		model.KeyHasSocialMedia: len(links) > 0,
		model.KeySocialLinks:    links,
		model.KeyPageSummary:    page.Summary(pageSummaryLen),
	}, nil
}
