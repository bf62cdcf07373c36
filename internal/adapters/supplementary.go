package adapters

import (
	"context"

	"github.com/sells-group/prospect-pipeline/internal/model"
	"github.com/sells-group/prospect-pipeline/pkg/directory"
)

// Supplementary backfills firmographics from the business directory.
type Supplementary struct {
	client directory.Client
}

// NewSupplementary creates the supplementary-sources adapter.
func NewSupplementary(client directory.Client) *Supplementary {
	return &Supplementary{client: client}
}

func (a *Supplementary) Pass() model.PassID { return model.PassSupplementary }

func (a *Supplementary) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	rec, err := a.client.Lookup(ctx,
		stringInput(inputs, model.KeyBusinessName),
		stringInput(inputs, model.KeyRegion),
	)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		model.KeyIndustry:        rec.Industry,
		model.KeyEmployeeCount:   rec.EmployeeCount,
		model.KeyRevenueEstimate: rec.RevenueEstimate,
	}, nil
}
