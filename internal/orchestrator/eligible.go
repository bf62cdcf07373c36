package orchestrator

import (
	"github.com/sells-group/prospect-pipeline/internal/model"
	"github.com/sells-group/prospect-pipeline/internal/passes"
)

// EligibleSet determines which passes the next attempt must run: passes
// never attempted, and passes whose last outcome was failed or
// skipped-missing-dependency. Passes that already succeeded are excluded;
// their outputs are carried forward instead of being re-gathered.
//
// The last outcome is resolved across the whole attempt history: each
// attempt records only the passes it ran, so a pass that succeeded in an
// early attempt is absent from every later record and would otherwise
// read as never attempted.
func EligibleSet(graph *passes.Graph, history []model.Attempt) map[model.PassID]bool {
	lastOutcome := make(map[model.PassID]model.PassOutcome)
	for _, a := range history {
		for _, r := range a.Results {
			lastOutcome[r.Pass] = r.Outcome
		}
	}

	eligible := make(map[model.PassID]bool)
	for _, p := range graph.InDependencyOrder() {
		if outcome, ok := lastOutcome[p.ID]; !ok || outcome != model.OutcomeSucceeded {
			eligible[p.ID] = true
		}
	}
	return eligible
}

// executionWaves groups the eligible passes into dependency levels: a
// pass lands one wave after the deepest pass producing any of its input
// keys, optional ones included. Passes in the same wave have no
// dependency relationship and may run concurrently.
func executionWaves(graph *passes.Graph, eligible map[model.PassID]bool) [][]passes.Pass {
	depth := make(map[model.PassID]int)
	var depthOf func(p passes.Pass) int
	depthOf = func(p passes.Pass) int {
		if d, ok := depth[p.ID]; ok {
			return d
		}
		d := 0
		for _, key := range p.InputKeys() {
			producerID, ok := graph.Producer(key)
			if !ok {
				continue
			}
			producer, _ := graph.Pass(producerID)
			if pd := depthOf(producer) + 1; pd > d {
				d = pd
			}
		}
		depth[p.ID] = d
		return d
	}

	var waves [][]passes.Pass
	for _, p := range graph.InDependencyOrder() {
		if !eligible[p.ID] {
			continue
		}
		d := depthOf(p)
		for len(waves) <= d {
			waves = append(waves, nil)
		}
		waves[d] = append(waves[d], p)
	}

	// Drop empty waves left by carried-forward producers.
	compact := waves[:0]
	for _, w := range waves {
		if len(w) > 0 {
			compact = append(compact, w)
		}
	}
	return compact
}
