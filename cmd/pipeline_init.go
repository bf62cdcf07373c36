package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-pipeline/internal/adapters"
	"github.com/sells-group/prospect-pipeline/internal/crm"
	"github.com/sells-group/prospect-pipeline/internal/ledger"
	"github.com/sells-group/prospect-pipeline/internal/orchestrator"
	"github.com/sells-group/prospect-pipeline/internal/passes"
	"github.com/sells-group/prospect-pipeline/internal/pipeline"
	"github.com/sells-group/prospect-pipeline/internal/resilience"
	"github.com/sells-group/prospect-pipeline/internal/scoring"
	"github.com/sells-group/prospect-pipeline/internal/stage"
	"github.com/sells-group/prospect-pipeline/pkg/directory"
	"github.com/sells-group/prospect-pipeline/pkg/intake"
	"github.com/sells-group/prospect-pipeline/pkg/places"
	"github.com/sells-group/prospect-pipeline/pkg/reviews"
	"github.com/sells-group/prospect-pipeline/pkg/strategy"
	"github.com/sells-group/prospect-pipeline/pkg/webresearch"
)

// pipelineEnv holds the initialized ledger, clients, and pipeline needed
// by the research/batch/serve commands.
type pipelineEnv struct {
	Ledger   ledger.Ledger
	Pipeline *pipeline.Pipeline
	Intake   intake.Client // nil when Notion is not configured
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Ledger != nil {
		_ = pe.Ledger.Close()
	}
}

// initPipeline validates config for the given mode, sets up the ledger
// and provider clients, and builds the Pipeline. Callers should defer
// env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	led, err := initLedger(ctx)
	if err != nil {
		return nil, err
	}

	if err := led.Migrate(ctx); err != nil {
		_ = led.Close()
		return nil, eris.Wrap(err, "migrate ledger")
	}

	// A crashed process leaves its in-flight claim behind, blocking every
	// later attempt for that prospect with ErrAttemptInFlight.
	maxAge := time.Duration(cfg.Orchestrator.StaleClaimMaxAgeSecs) * time.Second
	if err := reapStaleClaims(ctx, led, maxAge); err != nil {
		_ = led.Close()
		return nil, err
	}

	retryCfg := resilience.FromConfig(
		cfg.Retry.MaxAttempts,
		cfg.Retry.InitialBackoffMs,
		cfg.Retry.MaxBackoffMs,
		cfg.Retry.Multiplier,
		cfg.Retry.JitterFraction,
	)
	retryFor := func(provider string) resilience.Policy {
		p := retryCfg
		p.OnRetry = resilience.LogRetries(provider)
		return p
	}

	clients := adapters.Clients{
		Places: places.NewClient(cfg.Places.Key,
			places.WithBaseURL(cfg.Places.BaseURL),
			places.WithRateLimit(cfg.Places.RateLimit),
			places.WithRetryPolicy(retryFor("places")),
		),
		Web: webresearch.NewClient(cfg.WebResearch.Key,
			webresearch.WithBaseURL(cfg.WebResearch.BaseURL),
			webresearch.WithRateLimit(cfg.WebResearch.RateLimit),
			webresearch.WithRetryPolicy(retryFor("webresearch")),
		),
		Reviews: reviews.NewClient(cfg.Reviews.Key,
			reviews.WithBaseURL(cfg.Reviews.BaseURL),
			reviews.WithRateLimit(cfg.Reviews.RateLimit),
			reviews.WithRetryPolicy(retryFor("reviews")),
		),
		Strategy: strategy.NewClient(cfg.Anthropic.Key,
			strategy.WithModel(cfg.Anthropic.Model),
			strategy.WithMaxTokens(cfg.Anthropic.MaxTokens),
		),
	}

	dirOpts := []directory.Option{
		directory.WithRateLimit(cfg.Directory.RateLimit),
		directory.WithRetryPolicy(retryFor("directory")),
	}
	if cfg.Directory.BaseURL != "" {
		dirOpts = append(dirOpts, directory.WithBaseURL(cfg.Directory.BaseURL))
	}
	clients.Directory = directory.NewClient(cfg.Directory.Key, dirOpts...)

	graph, err := passes.NewGraph(passes.DefaultPasses(), passes.SeedKeys())
	if err != nil {
		_ = led.Close()
		return nil, eris.Wrap(err, "build pass graph")
	}

	registry := adapters.NewRegistry(clients, cfg.Reviews.Trade)

	orch := orchestrator.New(graph, registry, led, orchestrator.Config{
		MaxInFlight: cfg.Orchestrator.MaxInFlight,
		PassTimeout: time.Duration(cfg.Orchestrator.PassTimeoutSecs) * time.Second,
	})

	scoreCfg := scoring.DefaultConfig()
	if cfg.Scoring.File != "" {
		scoreCfg, err = scoring.LoadConfig(cfg.Scoring.File)
		if err != nil {
			_ = led.Close()
			return nil, eris.Wrap(err, "load scoring config")
		}
	}
	scorer := scoring.NewEngine(scoreCfg)
	stager := stage.NewEngine(scorer.Threshold())

	sfClient, err := initSalesforce()
	if err != nil {
		_ = led.Close()
		return nil, err
	}
	var crmSync pipeline.CRM
	if sfClient != nil {
		crmSync = crm.New(sfClient)
		zap.L().Info("salesforce sync enabled")
	}

	var intakeClient intake.Client
	if cfg.Notion.Token != "" {
		intakeClient = intake.NewClient(cfg.Notion.Token)
	}

	p := pipeline.New(orch, led, scorer, stager, crmSync)

	return &pipelineEnv{
		Ledger:   led,
		Pipeline: p,
		Intake:   intakeClient,
	}, nil
}
