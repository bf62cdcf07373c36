package adapters

import (
	"context"

	"github.com/sells-group/prospect-pipeline/internal/model"
	"github.com/sells-group/prospect-pipeline/pkg/strategy"
)

// Strategy generates the outreach strategy from merged research data.
type Strategy struct {
	client strategy.Client
}

// NewStrategy creates the strategy-generation adapter.
func NewStrategy(client strategy.Client) *Strategy {
	return &Strategy{client: client}
}

func (a *Strategy) Pass() model.PassID { return model.PassStrategy }

func (a *Strategy) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	// Industry, region, and website findings are optional inputs: zero
	// values simply drop out of the prompt.
	text, err := a.client.Generate(ctx, strategy.Request{
		BusinessName:        stringInput(inputs, model.KeyBusinessName),
		Industry:            stringInput(inputs, model.KeyIndustry),
		Region:              stringInput(inputs, model.KeyRegion),
		Rating:              floatInput(inputs, model.KeyRating),
		ReviewCount:         intInput(inputs, model.KeyReviewCount),
		CompetitorAvgRating: floatInput(inputs, model.KeyCompetitorAvgRating),
		HasWebsite:          boolInput(inputs, model.KeyHasWebsite),
		PageSummary:         stringInput(inputs, model.KeyPageSummary),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		model.KeyStrategyText: text,
	}, nil
}
