// Package pipeline ties research, scoring, and stage progression into the
// end-to-end flow run per prospect.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-pipeline/internal/ledger"
	"github.com/sells-group/prospect-pipeline/internal/model"
	"github.com/sells-group/prospect-pipeline/internal/orchestrator"
	"github.com/sells-group/prospect-pipeline/internal/scoring"
	"github.com/sells-group/prospect-pipeline/internal/stage"
)

// CRM receives stage updates for qualified prospects. Optional; a nil CRM
// disables syncing.
type CRM interface {
	SyncStage(ctx context.Context, p *model.Prospect) error
}

// Pipeline runs the full research-score-stage flow for one prospect.
type Pipeline struct {
	orch   *orchestrator.Orchestrator
	ledger ledger.Ledger
	scorer *scoring.Engine
	stager *stage.Engine
	crm    CRM
}

// New creates a pipeline. crm may be nil.
func New(orch *orchestrator.Orchestrator, led ledger.Ledger, scorer *scoring.Engine, stager *stage.Engine, crm CRM) *Pipeline {
	return &Pipeline{
		orch:   orch,
		ledger: led,
		scorer: scorer,
		stager: stager,
		crm:    crm,
	}
}

// Result is everything a research run produced for one prospect.
type Result struct {
	Prospect   *model.Prospect
	Attempt    *model.Attempt
	Gaps       []scoring.Gap
	Transition stage.Transition
}

// Research runs one research attempt for the prospect, folds the merged
// outputs into the prospect record, recomputes the qualification score,
// applies score-driven stage progression, and persists the result.
// ledger.ErrAttemptInFlight passes through untouched so callers can treat
// a concurrent run as a non-fatal conflict.
func (p *Pipeline) Research(ctx context.Context, prospectID string) (*Result, error) {
	prospect, err := p.ledger.GetProspect(ctx, prospectID)
	if err != nil {
		return nil, err
	}

	attempt, err := p.orch.RunAttempt(ctx, prospect)
	if err != nil {
		return nil, err
	}

	outputs, err := p.ledger.AllSucceededOutputs(ctx, prospect.ID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read merged outputs")
	}

	applyOutputs(prospect, outputs)

	breakdown, gaps := p.scorer.Compute(prospect, outputs)
	prospect.QualificationScore = breakdown.Total()
	prospect.ScoreBreakdown = &breakdown

	transition := p.stager.ApplyScore(prospect.PipelineStage, prospect.QualificationScore)
	prospect.PipelineStage = transition.To

	prospect.UpdatedAt = time.Now().UTC()
	if err := p.ledger.SaveProspect(ctx, prospect); err != nil {
		return nil, eris.Wrap(err, "pipeline: save prospect")
	}

	if p.crm != nil && transition.Changed {
		// CRM propagation is best-effort; research results are already
		// durable and the sync can be replayed from the ledger.
		p.syncCRM(ctx, prospect)
	}

	zap.L().Info("pipeline: research complete",
		zap.String("prospect_id", prospect.ID),
		zap.String("business", prospect.BusinessName),
		zap.Int("score", prospect.QualificationScore),
		zap.String("stage", string(prospect.PipelineStage)),
		zap.Int("score_gaps", len(gaps)),
	)

	return &Result{
		Prospect:   prospect,
		Attempt:    attempt,
		Gaps:       gaps,
		Transition: transition,
	}, nil
}

// Rescore recomputes the qualification score from the outputs already in
// the ledger without running any research pass, then persists the result.
// Useful after a scoring config change. The returned Result carries the
// latest historical attempt for display; no new attempt is appended.
func (p *Pipeline) Rescore(ctx context.Context, prospectID string) (*Result, error) {
	prospect, err := p.ledger.GetProspect(ctx, prospectID)
	if err != nil {
		return nil, err
	}

	latest, err := p.ledger.LatestAttempt(ctx, prospect.ID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read latest attempt")
	}

	outputs, err := p.ledger.AllSucceededOutputs(ctx, prospect.ID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read merged outputs")
	}

	applyOutputs(prospect, outputs)

	breakdown, gaps := p.scorer.Compute(prospect, outputs)
	prospect.QualificationScore = breakdown.Total()
	prospect.ScoreBreakdown = &breakdown

	transition := p.stager.ApplyScore(prospect.PipelineStage, prospect.QualificationScore)
	prospect.PipelineStage = transition.To

	prospect.UpdatedAt = time.Now().UTC()
	if err := p.ledger.SaveProspect(ctx, prospect); err != nil {
		return nil, eris.Wrap(err, "pipeline: save prospect")
	}

	if p.crm != nil && transition.Changed {
		p.syncCRM(ctx, prospect)
	}

	return &Result{
		Prospect:   prospect,
		Attempt:    latest,
		Gaps:       gaps,
		Transition: transition,
	}, nil
}

// Act applies a manual stage action to the prospect and persists it.
func (p *Pipeline) Act(ctx context.Context, prospectID string, kind model.ActionKind) (*Result, error) {
	prospect, err := p.ledger.GetProspect(ctx, prospectID)
	if err != nil {
		return nil, err
	}

	transition := p.stager.ApplyAction(prospect.PipelineStage, model.StageEvent{
		ProspectID: prospect.ID,
		Kind:       kind,
		Timestamp:  time.Now().UTC(),
	})
	prospect.PipelineStage = transition.To

	if transition.Changed {
		prospect.UpdatedAt = time.Now().UTC()
		if err := p.ledger.SaveProspect(ctx, prospect); err != nil {
			return nil, eris.Wrap(err, "pipeline: save prospect")
		}
		if p.crm != nil {
			p.syncCRM(ctx, prospect)
		}
	}

	return &Result{Prospect: prospect, Transition: transition}, nil
}

// syncCRM pushes the stage change and persists a freshly assigned
// Salesforce account ID.
func (p *Pipeline) syncCRM(ctx context.Context, prospect *model.Prospect) {
	hadID := prospect.SalesforceID != ""
	if err := p.crm.SyncStage(ctx, prospect); err != nil {
		zap.L().Warn("pipeline: crm sync failed",
			zap.String("prospect_id", prospect.ID),
			zap.Error(err),
		)
		return
	}
	if !hadID && prospect.SalesforceID != "" {
		if err := p.ledger.SaveProspect(ctx, prospect); err != nil {
			zap.L().Warn("pipeline: persist salesforce id failed",
				zap.String("prospect_id", prospect.ID),
				zap.Error(err),
			)
		}
	}
}

// applyOutputs folds merged research outputs into the prospect record.
// Research data wins over stale prospect attributes, except that empty
// research values never erase an existing attribute.
func applyOutputs(p *model.Prospect, outputs map[string]any) {
	if v, ok := outputs[model.KeyHasWebsite]; ok {
		p.Presence.HasWebsite = asBool(v)
	}
	if v, ok := outputs[model.KeyHasGoogleBusiness]; ok {
		p.Presence.HasGoogleBusiness = asBool(v)
	}
	if v, ok := outputs[model.KeyHasSocialMedia]; ok {
		p.Presence.HasSocialMedia = asBool(v)
	}
	if v, ok := outputs[model.KeyHasOnlineReviews]; ok {
		p.Presence.HasOnlineReviews = asBool(v)
	}

	if industry := asString(outputs[model.KeyIndustry]); industry != "" {
		p.Industry = industry
	}
	if count := asInt(outputs[model.KeyEmployeeCount]); count > 0 {
		p.EmployeeCount = count
	}
	if revenue := asFloat(outputs[model.KeyRevenueEstimate]); revenue > 0 {
		p.RevenueEstimate = revenue
	}
	if addr := asString(outputs[model.KeyFormattedAddress]); addr != "" && p.Location == "" {
		p.Location = addr
	}
}

// Ledger values round-trip through JSON, so numbers may arrive as float64.

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
