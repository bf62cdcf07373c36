package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-pipeline/internal/model"
)

func fullOutputs() map[string]any {
	return map[string]any{
		model.KeyEmployeeCount:       float64(45), // JSON round-trip shape
		model.KeyHasWebsite:          true,
		model.KeyHasGoogleBusiness:   true,
		model.KeyHasSocialMedia:      true,
		model.KeyHasOnlineReviews:    true,
		model.KeyReviewCount:         12,
		model.KeyRating:              3.6,
		model.KeyCompetitorAvgRating: 4.3,
		model.KeyRegion:              "Tennessee",
		model.KeyIndustry:            "Plumbing",
		model.KeyRevenueEstimate:     2_500_000.0,
	}
}

func TestCompute_FullData(t *testing.T) {
	e := NewEngine(DefaultConfig())
	p := &model.Prospect{BusinessName: "Miller Plumbing"}

	b, gaps := e.Compute(p, fullOutputs())

	assert.Equal(t, 20, b.BusinessSize)     // 45 employees, mid-market band
	assert.Equal(t, 25, b.DigitalPresence)  // all four flags
	assert.Equal(t, 15, b.CompetitorGaps)   // under-reviewed + rating gap
	assert.Equal(t, 15, b.Location)         // service area
	assert.Equal(t, 10, b.IndustryFit)      // plumbing, case-insensitive
	assert.Equal(t, 10, b.RevenueIndicator) // 1M-10M band
	assert.Equal(t, 95, b.Total())
	assert.Empty(t, gaps)
}

func TestCompute_EmptyOutputs_ScoresZeroWithGaps(t *testing.T) {
	e := NewEngine(DefaultConfig())
	p := &model.Prospect{BusinessName: "Unknown LLC"}

	b, gaps := e.Compute(p, map[string]any{})

	assert.Equal(t, 0, b.Total())
	require.Len(t, gaps, 6)

	byCategory := make(map[model.ScoreCategory]Gap, len(gaps))
	for _, g := range gaps {
		byCategory[g.Category] = g
	}
	assert.Equal(t, model.PassLocationData, byCategory[model.CategoryLocation].Pass)
	assert.Equal(t, model.MaxLocation, byCategory[model.CategoryLocation].MaxGain)
	assert.Equal(t, model.PassReviewsAnalysis, byCategory[model.CategoryCompetitorGaps].Pass)
	assert.Equal(t, model.PassSupplementary, byCategory[model.CategoryBusinessSize].Pass)
}

func TestCompute_SumEqualsTotal_AndBounds(t *testing.T) {
	e := NewEngine(DefaultConfig())
	cases := []map[string]any{
		{},
		fullOutputs(),
		{model.KeyRegion: "Kentucky"},
		{model.KeyReviewCount: 500, model.KeyRating: 4.9, model.KeyCompetitorAvgRating: 4.0},
		{model.KeyEmployeeCount: 3, model.KeyRevenueEstimate: 50_000.0},
	}
	for _, outputs := range cases {
		b, _ := e.Compute(&model.Prospect{}, outputs)

		sum := b.BusinessSize + b.DigitalPresence + b.CompetitorGaps +
			b.Location + b.IndustryFit + b.RevenueIndicator
		assert.Equal(t, sum, b.Total())

		assert.GreaterOrEqual(t, b.BusinessSize, 0)
		assert.LessOrEqual(t, b.BusinessSize, model.MaxBusinessSize)
		assert.LessOrEqual(t, b.DigitalPresence, model.MaxDigitalPresence)
		assert.LessOrEqual(t, b.CompetitorGaps, model.MaxCompetitorGaps)
		assert.LessOrEqual(t, b.Location, model.MaxLocation)
		assert.LessOrEqual(t, b.IndustryFit, model.MaxIndustryFit)
		assert.LessOrEqual(t, b.RevenueIndicator, model.MaxRevenueIndicator)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	p := &model.Prospect{Industry: "HVAC"}
	outputs := fullOutputs()

	first, _ := e.Compute(p, outputs)
	for i := 0; i < 10; i++ {
		again, _ := e.Compute(p, outputs)
		assert.Equal(t, first, again)
	}
}

func TestBusinessSize_Bands(t *testing.T) {
	e := NewEngine(DefaultConfig())
	tests := []struct {
		employees int
		want      int
	}{
		{0, 0},
		{3, 5},
		{10, 12},
		{50, 20},
		{250, 14},
		{1000, 8},
	}
	for _, tc := range tests {
		b, _ := e.Compute(&model.Prospect{}, map[string]any{model.KeyEmployeeCount: tc.employees})
		assert.Equal(t, tc.want, b.BusinessSize, "employees=%d", tc.employees)
	}
}

func TestLocation_AdjacentAndOutside(t *testing.T) {
	e := NewEngine(DefaultConfig())

	b, _ := e.Compute(&model.Prospect{}, map[string]any{model.KeyRegion: "kentucky"})
	assert.Equal(t, 8, b.Location)

	b, _ = e.Compute(&model.Prospect{}, map[string]any{model.KeyRegion: "Oregon"})
	assert.Equal(t, 0, b.Location)
}

func TestCompetitorGaps_CapAndNoWebsite(t *testing.T) {
	e := NewEngine(DefaultConfig())

	// All three gap signals: 8 + 7 + 5 capped at 20.
	b, _ := e.Compute(&model.Prospect{}, map[string]any{
		model.KeyReviewCount:         4,
		model.KeyRating:              3.2,
		model.KeyCompetitorAvgRating: 4.5,
		model.KeyHasWebsite:          false,
	})
	assert.Equal(t, model.MaxCompetitorGaps, b.CompetitorGaps)

	// Healthy competitor position: no gap points.
	b, _ = e.Compute(&model.Prospect{}, map[string]any{
		model.KeyReviewCount:         300,
		model.KeyRating:              4.8,
		model.KeyCompetitorAvgRating: 4.2,
	})
	assert.Equal(t, 0, b.CompetitorGaps)
}

func TestIndustryFit_FallsBackToProspect(t *testing.T) {
	e := NewEngine(DefaultConfig())

	b, _ := e.Compute(&model.Prospect{Industry: "Roofing"}, map[string]any{})
	assert.Equal(t, 8, b.IndustryFit)

	b, _ = e.Compute(&model.Prospect{Industry: "Basket Weaving"}, map[string]any{})
	assert.Equal(t, 0, b.IndustryFit)
}
