package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-pipeline/internal/model"
	"github.com/sells-group/prospect-pipeline/internal/passes"
)

func TestEligibleSetNoHistory(t *testing.T) {
	g := testGraph(t)

	eligible := EligibleSet(g, nil)
	assert.Len(t, eligible, 5)
	for _, p := range g.InDependencyOrder() {
		assert.True(t, eligible[p.ID], "pass %s", p.ID)
	}
}

func TestEligibleSetExcludesSucceeded(t *testing.T) {
	g := testGraph(t)
	history := []model.Attempt{{
		ProspectID: "p-1",
		Number:     1,
		StartedAt:  time.Now().UTC(),
		Results: []model.PassResult{
			{Pass: model.PassLocationData, Outcome: model.OutcomeSucceeded},
			{Pass: model.PassWebResearch, Outcome: model.OutcomeFailed, Error: "status 503"},
			{Pass: model.PassReviewsAnalysis, Outcome: model.OutcomeSucceeded},
			{Pass: model.PassSupplementary, Outcome: model.OutcomeSkipped, Error: "missing dependency: region"},
			// strategy-generation absent from the record entirely.
		},
	}}

	eligible := EligibleSet(g, history)
	assert.False(t, eligible[model.PassLocationData])
	assert.False(t, eligible[model.PassReviewsAnalysis])
	assert.True(t, eligible[model.PassWebResearch], "failed passes retry")
	assert.True(t, eligible[model.PassSupplementary], "skipped passes retry")
	assert.True(t, eligible[model.PassStrategy], "never-recorded passes retry")
	assert.Len(t, eligible, 3)
}

func TestEligibleSetResolvesOutcomesAcrossAttempts(t *testing.T) {
	g := testGraph(t)

	// Attempt records hold only the passes that ran in that attempt, so a
	// pass succeeding early is absent from every later record. Its last
	// outcome is still succeeded and it must stay excluded.
	history := []model.Attempt{
		{
			Number: 1,
			Results: []model.PassResult{
				{Pass: model.PassLocationData, Outcome: model.OutcomeSucceeded},
				{Pass: model.PassWebResearch, Outcome: model.OutcomeSucceeded},
				{Pass: model.PassReviewsAnalysis, Outcome: model.OutcomeFailed, Error: "status 500"},
				{Pass: model.PassSupplementary, Outcome: model.OutcomeSucceeded},
				{Pass: model.PassStrategy, Outcome: model.OutcomeSkipped, Error: "missing dependency: rating"},
			},
		},
		{
			Number: 2,
			Results: []model.PassResult{
				{Pass: model.PassReviewsAnalysis, Outcome: model.OutcomeSucceeded},
				{Pass: model.PassStrategy, Outcome: model.OutcomeFailed, Error: "rate limited"},
			},
		},
	}

	eligible := EligibleSet(g, history)
	assert.Equal(t, map[model.PassID]bool{model.PassStrategy: true}, eligible)
}

func TestEligibleSetLaterOutcomeWins(t *testing.T) {
	g := testGraph(t)

	// A pass cannot regress from succeeded, but a failed-then-succeeded
	// sequence must read as succeeded, not failed.
	history := []model.Attempt{
		{Number: 1, Results: []model.PassResult{
			{Pass: model.PassWebResearch, Outcome: model.OutcomeFailed, Error: "status 503"},
		}},
		{Number: 2, Results: []model.PassResult{
			{Pass: model.PassWebResearch, Outcome: model.OutcomeSucceeded},
		}},
	}

	eligible := EligibleSet(g, history)
	assert.False(t, eligible[model.PassWebResearch])
}

func TestExecutionWavesFullGraph(t *testing.T) {
	g := testGraph(t)
	eligible := EligibleSet(g, nil)

	waves := executionWaves(g, eligible)
	require.Len(t, waves, 3)

	assert.ElementsMatch(t,
		[]model.PassID{model.PassLocationData, model.PassWebResearch},
		waveIDs(waves[0]))
	assert.ElementsMatch(t,
		[]model.PassID{model.PassReviewsAnalysis, model.PassSupplementary},
		waveIDs(waves[1]))
	assert.ElementsMatch(t,
		[]model.PassID{model.PassStrategy},
		waveIDs(waves[2]))
}

func TestExecutionWavesCompactsCarriedProducers(t *testing.T) {
	g := testGraph(t)
	eligible := map[model.PassID]bool{
		model.PassReviewsAnalysis: true,
		model.PassStrategy:        true,
	}

	// Producers that already succeeded leave holes in the depth levels;
	// the holes must not surface as empty waves.
	waves := executionWaves(g, eligible)
	require.Len(t, waves, 2)
	assert.Equal(t, []model.PassID{model.PassReviewsAnalysis}, waveIDs(waves[0]))
	assert.Equal(t, []model.PassID{model.PassStrategy}, waveIDs(waves[1]))
}

func TestExecutionWavesSinglePass(t *testing.T) {
	g := testGraph(t)
	eligible := map[model.PassID]bool{model.PassWebResearch: true}

	waves := executionWaves(g, eligible)
	require.Len(t, waves, 1)
	assert.Equal(t, []model.PassID{model.PassWebResearch}, waveIDs(waves[0]))
}

func waveIDs(wave []passes.Pass) []model.PassID {
	ids := make([]model.PassID, len(wave))
	for i, p := range wave {
		ids[i] = p.ID
	}
	return ids
}
