package adapters

import (
	"context"

	"github.com/sells-group/prospect-pipeline/internal/model"
	"github.com/sells-group/prospect-pipeline/pkg/reviews"
)

// defaultTrade is the benchmark search category when no narrower trade
// is configured.
const defaultTrade = "home services"

// Reviews gathers the prospect's review data and a competitor benchmark
// for the same trade in the same region.
type Reviews struct {
	client reviews.Client
	trade  string
}

// NewReviews creates the reviews-analysis adapter. trade narrows the
// competitor benchmark query; empty means the generic category.
func NewReviews(client reviews.Client, trade string) *Reviews {
	if trade == "" {
		trade = defaultTrade
	}
	return &Reviews{client: client, trade: trade}
}

func (a *Reviews) Pass() model.PassID { return model.PassReviewsAnalysis }

func (a *Reviews) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	summary, err := a.client.PlaceReviews(ctx, stringInput(inputs, model.KeyPlaceID))
	if err != nil {
		return nil, err
	}

	bench, err := a.client.CompetitorBenchmark(ctx, a.trade, stringInput(inputs, model.KeyRegion))
	if err != nil {
		return nil, err
	}

	return map[string]any{
		model.KeyReviewCount:         summary.ReviewCount,
		model.KeyRating:              summary.Rating,
		model.KeyCompetitorAvgRating: bench.AvgRating,
		model.KeyHasOnlineReviews:    summary.ReviewCount > 0,
	}, nil
}
