package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-pipeline/internal/ledger"
	"github.com/sells-group/prospect-pipeline/internal/model"
	"github.com/sells-group/prospect-pipeline/internal/orchestrator"
	"github.com/sells-group/prospect-pipeline/internal/passes"
	"github.com/sells-group/prospect-pipeline/internal/pipeline"
	"github.com/sells-group/prospect-pipeline/internal/scoring"
	"github.com/sells-group/prospect-pipeline/internal/stage"
)

// cannedAdapter returns fixed outputs for one pass.
type cannedAdapter struct {
	id      model.PassID
	outputs map[string]any
}

func (a *cannedAdapter) Pass() model.PassID { return a.id }

func (a *cannedAdapter) Invoke(context.Context, map[string]any) (map[string]any, error) {
	return a.outputs, nil
}

func newTestEnv(t *testing.T) *pipelineEnv {
	t.Helper()

	led, err := ledger.NewSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	require.NoError(t, led.Migrate(context.Background()))
	t.Cleanup(func() { _ = led.Close() })

	graph, err := passes.NewGraph(passes.DefaultPasses(), passes.SeedKeys())
	require.NoError(t, err)

	registry := passes.NewRegistry()
	registry.Register(&cannedAdapter{id: model.PassLocationData, outputs: map[string]any{
		model.KeyPlaceID:           "ChIJserve",
		model.KeyFormattedAddress:  "100 Main St, Knoxville, TN 37902",
		model.KeyRegion:            "TN",
		model.KeyHasGoogleBusiness: true,
	}})
	registry.Register(&cannedAdapter{id: model.PassWebResearch, outputs: map[string]any{
		model.KeyHasWebsite:     true,
		model.KeyHasSocialMedia: false,
		model.KeySocialLinks:    []string{},
		model.KeyPageSummary:    "Plumbing services.",
	}})
	registry.Register(&cannedAdapter{id: model.PassReviewsAnalysis, outputs: map[string]any{
		model.KeyReviewCount:         12,
		model.KeyRating:              4.0,
		model.KeyCompetitorAvgRating: 4.6,
		model.KeyHasOnlineReviews:    true,
	}})
	registry.Register(&cannedAdapter{id: model.PassSupplementary, outputs: map[string]any{
		model.KeyIndustry:        "plumbing",
		model.KeyEmployeeCount:   9,
		model.KeyRevenueEstimate: 900_000.0,
	}})
	registry.Register(&cannedAdapter{id: model.PassStrategy, outputs: map[string]any{
		model.KeyStrategyText: "Lead with review recovery.",
	}})

	orch := orchestrator.New(graph, registry, led, orchestrator.DefaultConfig())
	scorer := scoring.NewEngine(scoring.DefaultConfig())
	stager := stage.NewEngine(scorer.Threshold())

	return &pipelineEnv{
		Ledger:   led,
		Pipeline: pipeline.New(orch, led, scorer, stager, nil),
	}
}

func seedServeProspect(t *testing.T, env *pipelineEnv) *model.Prospect {
	t.Helper()
	p := &model.Prospect{
		ID:            "p-serve-1",
		BusinessName:  "Smoky Mountain Plumbing",
		Location:      "Knoxville, TN",
		WebsiteURL:    "https://smokymountainplumbing.example.com",
		PipelineStage: model.StageCold,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	require.NoError(t, env.Ledger.SaveProspect(context.Background(), p))
	return p
}

func TestServeHealth(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(context.Background(), env)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeGetProspect(t *testing.T) {
	env := newTestEnv(t)
	seeded := seedServeProspect(t, env)
	router := newRouter(context.Background(), env)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/prospects/"+seeded.ID, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Prospect
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, seeded.BusinessName, got.BusinessName)
	assert.Equal(t, model.StageCold, got.PipelineStage)
}

func TestServeGetProspectNotFound(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(context.Background(), env)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/prospects/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeWebhookBadBody(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(context.Background(), env)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/research", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeWebhookMissingID(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(context.Background(), env)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/research", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "prospect_id is required")
}

func TestServeWebhookUnknownProspect(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(context.Background(), env)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/research", strings.NewReader(`{"prospect_id":"ghost"}`)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeWebhookAcceptsAndResearches(t *testing.T) {
	env := newTestEnv(t)
	seeded := seedServeProspect(t, env)
	router := newRouter(context.Background(), env)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/research",
		strings.NewReader(`{"prospect_id":"`+seeded.ID+`"}`)))

	require.Equal(t, http.StatusAccepted, rec.Code)

	// Research runs async off the background context.
	require.Eventually(t, func() bool {
		attempts, err := env.Ledger.ListAttempts(context.Background(), seeded.ID)
		return err == nil && len(attempts) == 1
	}, 5*time.Second, 20*time.Millisecond)

	p, err := env.Ledger.GetProspect(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Positive(t, p.QualificationScore)
}
