// Package orchestrator runs research attempts: it computes the eligible
// pass set from the attempt history, invokes provider adapters in
// dependency order, and appends the outcome to the ledger.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/prospect-pipeline/internal/ledger"
	"github.com/sells-group/prospect-pipeline/internal/model"
	"github.com/sells-group/prospect-pipeline/internal/passes"
)

// Config bounds adapter execution within one attempt.
type Config struct {
	// MaxInFlight caps concurrent adapter invocations, shared-provider
	// rate limits being the constraint. Minimum 1.
	MaxInFlight int
	// PassTimeout is the deadline for a single adapter invocation.
	PassTimeout time.Duration
}

// DefaultConfig returns production execution bounds.
func DefaultConfig() Config {
	return Config{
		MaxInFlight: 3,
		PassTimeout: 30 * time.Second,
	}
}

// Orchestrator executes attempts for prospects. Safe for concurrent use
// across distinct prospects; attempts for the same prospect are
// serialized by the ledger's in-flight claim.
type Orchestrator struct {
	graph    *passes.Graph
	registry *passes.Registry
	ledger   ledger.Ledger
	cfg      Config
}

// New creates an orchestrator.
func New(graph *passes.Graph, registry *passes.Registry, led ledger.Ledger, cfg Config) *Orchestrator {
	if cfg.MaxInFlight < 1 {
		cfg.MaxInFlight = 1
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = DefaultConfig().PassTimeout
	}
	return &Orchestrator{graph: graph, registry: registry, ledger: led, cfg: cfg}
}

// RunAttempt executes one research attempt for the prospect.
//
// Adapter errors and unmet dependencies are absorbed into PassResults and
// never fail the attempt. The returned error is reserved for
// ledger.ErrAttemptInFlight, ledger I/O failures, and cancellation before
// any pass succeeded. When every pass already succeeded the eligible set
// is empty: no adapter runs, nothing is appended, and the latest attempt
// is returned unchanged.
func (o *Orchestrator) RunAttempt(ctx context.Context, prospect *model.Prospect) (*model.Attempt, error) {
	log := zap.L().With(
		zap.String("prospect_id", prospect.ID),
		zap.String("business", prospect.BusinessName),
	)

	number, err := o.ledger.BeginAttempt(ctx, prospect.ID)
	if err != nil {
		if errors.Is(err, ledger.ErrAttemptInFlight) {
			return nil, err
		}
		return nil, eris.Wrap(err, "orchestrator: begin attempt")
	}

	history, err := o.ledger.ListAttempts(ctx, prospect.ID)
	if err != nil {
		o.release(ctx, prospect.ID)
		return nil, eris.Wrap(err, "orchestrator: read attempt history")
	}
	carried, err := o.ledger.AllSucceededOutputs(ctx, prospect.ID)
	if err != nil {
		o.release(ctx, prospect.ID)
		return nil, eris.Wrap(err, "orchestrator: read carried outputs")
	}

	eligible := EligibleSet(o.graph, history)
	if len(eligible) == 0 {
		log.Info("orchestrator: nothing to retry, all passes succeeded")
		o.release(ctx, prospect.ID)
		latest := history[len(history)-1]
		return &latest, nil
	}

	log.Info("orchestrator: starting attempt",
		zap.Int("attempt", number),
		zap.Int("eligible", len(eligible)),
	)

	// available starts from the prospect's seed inputs plus every output
	// carried forward from historically succeeded passes; succeeding
	// passes in this run extend it under the mutex.
	available := prospect.SeedInputs()
	for k, v := range carried {
		available[k] = v
	}

	attempt := &model.Attempt{
		ProspectID: prospect.ID,
		Number:     number,
		StartedAt:  time.Now().UTC(),
	}

	var mu sync.Mutex
	results := make(map[model.PassID]model.PassResult, len(eligible))
	sem := semaphore.NewWeighted(int64(o.cfg.MaxInFlight))

	waves := executionWaves(o.graph, eligible)
	for _, wave := range waves {
		if ctx.Err() != nil {
			break
		}
		g, gctx := errgroup.WithContext(ctx)
		for _, p := range wave {
			g.Go(func() error {
				res := o.runPass(gctx, p, sem, &mu, available, log)
				mu.Lock()
				results[p.ID] = res
				mu.Unlock()
				return nil
			})
		}
		// Pass failures are absorbed into results; Wait only observes
		// context cancellation.
		_ = g.Wait()
	}

	attempt.CompletedAt = time.Now().UTC()
	attempt.Results = orderedResults(o.graph, results)

	if ctx.Err() != nil && !anySucceeded(attempt.Results) {
		// Nothing prospect-visible happened; drop the attempt entirely.
		o.release(context.WithoutCancel(ctx), prospect.ID)
		return nil, eris.Wrap(ctx.Err(), "orchestrator: attempt canceled")
	}

	// Append even when canceled mid-run: completed passes mutated
	// prospect-visible data and must not be silently dropped. The append
	// uses a detached context so cancellation cannot corrupt the ledger.
	appendCtx := context.WithoutCancel(ctx)
	if err := o.ledger.Append(appendCtx, prospect.ID, attempt); err != nil {
		o.release(appendCtx, prospect.ID)
		return nil, eris.Wrap(err, "orchestrator: append attempt")
	}

	log.Info("orchestrator: attempt complete",
		zap.Int("attempt", number),
		zap.Int("succeeded", countOutcome(attempt.Results, model.OutcomeSucceeded)),
		zap.Int("failed", countOutcome(attempt.Results, model.OutcomeFailed)),
		zap.Int("skipped", countOutcome(attempt.Results, model.OutcomeSkipped)),
	)
	return attempt, nil
}

// runPass executes one pass behind the shared concurrency semaphore,
// converting every failure mode into a PassResult. It never panics the
// attempt: one broken provider must not block independent sources.
func (o *Orchestrator) runPass(
	ctx context.Context,
	p passes.Pass,
	sem *semaphore.Weighted,
	mu *sync.Mutex,
	available map[string]any,
	log *zap.Logger,
) model.PassResult {
	mu.Lock()
	missing := o.graph.MissingInputs(p, available)
	inputs := make(map[string]any, len(p.Requires)+len(p.Optional))
	for _, key := range p.InputKeys() {
		if v, ok := available[key]; ok {
			inputs[key] = v
		}
	}
	mu.Unlock()

	if len(missing) > 0 {
		log.Debug("orchestrator: pass skipped",
			zap.String("pass", string(p.ID)),
			zap.Strings("missing", missing),
		)
		return model.PassResult{
			Pass:    p.ID,
			Outcome: model.OutcomeSkipped,
			Error:   "missing dependency: " + strings.Join(missing, ", "),
		}
	}

	adapter := o.registry.Get(p.ID)
	if adapter == nil {
		return model.PassResult{
			Pass:    p.ID,
			Outcome: model.OutcomeFailed,
			Error:   "no adapter registered",
		}
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return model.PassResult{
			Pass:    p.ID,
			Outcome: model.OutcomeFailed,
			Error:   "attempt canceled before invocation: " + err.Error(),
		}
	}
	defer sem.Release(1)

	ictx, cancel := context.WithTimeout(ctx, o.cfg.PassTimeout)
	defer cancel()

	start := time.Now()
	outputs, err := adapter.Invoke(ictx, inputs)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		detail := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			detail = "provider timeout after " + o.cfg.PassTimeout.String()
		}
		log.Warn("orchestrator: pass failed",
			zap.String("pass", string(p.ID)),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
		return model.PassResult{
			Pass:       p.ID,
			Outcome:    model.OutcomeFailed,
			Error:      detail,
			DurationMs: duration,
		}
	}

	mu.Lock()
	for k, v := range outputs {
		available[k] = v
	}
	mu.Unlock()

	log.Info("orchestrator: pass succeeded",
		zap.String("pass", string(p.ID)),
		zap.Int64("duration_ms", duration),
	)
	return model.PassResult{
		Pass:       p.ID,
		Outcome:    model.OutcomeSucceeded,
		Outputs:    outputs,
		DurationMs: duration,
	}
}

func (o *Orchestrator) release(ctx context.Context, prospectID string) {
	if err := o.ledger.ReleaseAttempt(ctx, prospectID); err != nil {
		zap.L().Warn("orchestrator: release claim failed",
			zap.String("prospect_id", prospectID),
			zap.Error(err),
		)
	}
}

// orderedResults lays results out in dependency order so attempt records
// are stable regardless of completion order.
func orderedResults(graph *passes.Graph, results map[model.PassID]model.PassResult) []model.PassResult {
	out := make([]model.PassResult, 0, len(results))
	for _, p := range graph.InDependencyOrder() {
		if r, ok := results[p.ID]; ok {
			out = append(out, r)
		}
	}
	return out
}

func anySucceeded(results []model.PassResult) bool {
	for _, r := range results {
		if r.Outcome == model.OutcomeSucceeded {
			return true
		}
	}
	return false
}

func countOutcome(results []model.PassResult, outcome model.PassOutcome) int {
	n := 0
	for _, r := range results {
		if r.Outcome == outcome {
			n++
		}
	}
	return n
}
