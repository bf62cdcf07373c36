// Package stage advances a prospect's pipeline stage under explicit
// transition rules. Stages only move forward; the single demotion path is
// an explicit lost action.
package stage

import (
	"go.uber.org/zap"

	"github.com/sells-group/prospect-pipeline/internal/model"
)

// forwardChain is the ordered progression used by the advance action.
var forwardChain = []model.PipelineStage{
	model.StageCold,
	model.StageContacted,
	model.StageInterested,
	model.StageQualified,
	model.StageMeetingScheduled,
	model.StageWon,
}

// Transition describes the outcome of applying a score or action event.
type Transition struct {
	From    model.PipelineStage `json:"from"`
	To      model.PipelineStage `json:"to"`
	Changed bool                `json:"changed"`
	Reason  string              `json:"reason"`
}

// Engine applies stage transitions. Stateless; safe for concurrent use.
type Engine struct {
	threshold int
}

// NewEngine creates a stage engine with the auto-qualify score threshold.
func NewEngine(autoQualifyThreshold int) *Engine {
	return &Engine{threshold: autoQualifyThreshold}
}

// ApplyScore evaluates a freshly computed qualification score. A score at
// or above the threshold is necessary but not sufficient to qualify: the
// prospect must already have reached interested, so a cold prospect can
// never jump straight to qualified on score alone. Score decreases never
// demote.
func (e *Engine) ApplyScore(current model.PipelineStage, score int) Transition {
	tr := Transition{From: current, To: current}
	switch {
	case current.Terminal():
		tr.Reason = "terminal stage"
	case score < e.threshold:
		tr.Reason = "score below threshold"
	case current != model.StageInterested:
		tr.Reason = "score-qualify requires interested stage"
	default:
		tr.To = model.StageQualified
		tr.Changed = true
		tr.Reason = "score at or above threshold"
	}
	return tr
}

// ApplyAction applies an explicit manual action event. Advance moves one
// step along the chain; meeting_scheduled and won are forward-only jumps;
// lost is reachable from any non-terminal stage; hold never changes stage.
func (e *Engine) ApplyAction(current model.PipelineStage, event model.StageEvent) Transition {
	tr := Transition{From: current, To: current}

	if current.Terminal() {
		tr.Reason = "terminal stage"
		e.logTransition(event, tr)
		return tr
	}

	switch event.Kind {
	case model.ActionHold:
		tr.Reason = "held"

	case model.ActionLost:
		tr.To = model.StageLost
		tr.Changed = true
		tr.Reason = "explicit lost action"

	case model.ActionAdvance:
		next := nextStage(current)
		if next == current {
			tr.Reason = "already at final stage"
			break
		}
		tr.To = next
		tr.Changed = true
		tr.Reason = "explicit advance"

	case model.ActionMeetingScheduled:
		tr = e.forwardJump(current, model.StageMeetingScheduled, "explicit meeting scheduled")

	case model.ActionWon:
		tr = e.forwardJump(current, model.StageWon, "explicit won")

	default:
		tr.Reason = "unknown action"
	}

	e.logTransition(event, tr)
	return tr
}

// forwardJump moves to target only when target is strictly ahead of the
// current stage; explicit actions never move a prospect backward.
func (e *Engine) forwardJump(current, target model.PipelineStage, reason string) Transition {
	tr := Transition{From: current, To: current}
	if target.Rank() <= current.Rank() {
		tr.Reason = "would not move stage forward"
		return tr
	}
	tr.To = target
	tr.Changed = true
	tr.Reason = reason
	return tr
}

func nextStage(current model.PipelineStage) model.PipelineStage {
	for i, s := range forwardChain {
		if s == current && i+1 < len(forwardChain) {
			return forwardChain[i+1]
		}
	}
	return current
}

func (e *Engine) logTransition(event model.StageEvent, tr Transition) {
	if !tr.Changed {
		return
	}
	zap.L().Info("stage: transition",
		zap.String("prospect_id", event.ProspectID),
		zap.String("action", string(event.Kind)),
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
	)
}
