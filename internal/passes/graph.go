// Package passes declares the fixed set of research passes, their data
// dependencies, and the adapter contract each pass invokes.
package passes

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-pipeline/internal/model"
)

// Pass declares one research pass: the input keys it requires and the
// output keys it produces. Required keys must be seed keys or produced by
// another pass. Optional keys enrich the pass when their producers have
// succeeded but never gate it: a pass with missing optional inputs still
// runs. Immutable after graph construction.
type Pass struct {
	ID       model.PassID
	Requires []string
	Optional []string
	Produces []string
}

// InputKeys returns required then optional keys.
func (p Pass) InputKeys() []string {
	if len(p.Optional) == 0 {
		return p.Requires
	}
	keys := make([]string, 0, len(p.Requires)+len(p.Optional))
	keys = append(keys, p.Requires...)
	keys = append(keys, p.Optional...)
	return keys
}

// SeedKeys are input keys available from the prospect record before any
// pass has run.
func SeedKeys() []string {
	return []string{model.KeyBusinessName, model.KeyLocation, model.KeyWebsiteURL}
}

// DefaultPasses returns the five-pass declaration used in production.
func DefaultPasses() []Pass {
	return []Pass{
		{
			ID:       model.PassLocationData,
			Requires: []string{model.KeyBusinessName, model.KeyLocation},
			Produces: []string{model.KeyPlaceID, model.KeyFormattedAddress, model.KeyRegion, model.KeyHasGoogleBusiness},
		},
		{
			ID:       model.PassWebResearch,
			Requires: []string{model.KeyWebsiteURL},
			Produces: []string{model.KeyHasWebsite, model.KeyHasSocialMedia, model.KeySocialLinks, model.KeyPageSummary},
		},
		{
			ID:       model.PassReviewsAnalysis,
			Requires: []string{model.KeyPlaceID, model.KeyRegion},
			Produces: []string{model.KeyReviewCount, model.KeyRating, model.KeyCompetitorAvgRating, model.KeyHasOnlineReviews},
		},
		{
			ID:       model.PassSupplementary,
			Requires: []string{model.KeyBusinessName, model.KeyRegion},
			Produces: []string{model.KeyIndustry, model.KeyEmployeeCount, model.KeyRevenueEstimate},
		},
		{
			ID:       model.PassStrategy,
			Requires: []string{model.KeyBusinessName, model.KeyRating, model.KeyReviewCount, model.KeyCompetitorAvgRating},
			Optional: []string{model.KeyIndustry, model.KeyRegion, model.KeyHasWebsite, model.KeyPageSummary},
			Produces: []string{model.KeyStrategyText},
		},
	}
}

// Graph is the validated, topologically sorted pass declaration. Built
// once at process start; construction failure is a configuration error
// and fatal to the caller.
type Graph struct {
	ordered   []Pass
	byID      map[model.PassID]Pass
	producers map[string]model.PassID
	seed      map[string]bool
}

// NewGraph validates the declarations and resolves dependency order.
// It returns an error when a pass requires a key that is neither a seed
// key nor produced by any pass, when two passes produce the same key, or
// when the dependency relation is cyclic.
func NewGraph(decls []Pass, seedKeys []string) (*Graph, error) {
	g := &Graph{
		byID:      make(map[model.PassID]Pass, len(decls)),
		producers: make(map[string]model.PassID),
		seed:      make(map[string]bool, len(seedKeys)),
	}
	for _, k := range seedKeys {
		g.seed[k] = true
	}

	for _, p := range decls {
		if _, dup := g.byID[p.ID]; dup {
			return nil, eris.Errorf("passes: duplicate pass %q", p.ID)
		}
		g.byID[p.ID] = p
		for _, key := range p.Produces {
			if prev, dup := g.producers[key]; dup {
				return nil, eris.Errorf("passes: key %q produced by both %q and %q", key, prev, p.ID)
			}
			if g.seed[key] {
				return nil, eris.Errorf("passes: pass %q produces seed key %q", p.ID, key)
			}
			g.producers[key] = p.ID
		}
	}

	// Build dependency edges and check for undefined keys. Optional keys
	// create ordering edges too, so their producers run first when both
	// are eligible in the same attempt.
	deps := make(map[model.PassID][]model.PassID, len(decls))
	indegree := make(map[model.PassID]int, len(decls))
	for _, p := range decls {
		indegree[p.ID] = 0
	}
	for _, p := range decls {
		seen := make(map[model.PassID]bool)
		for _, key := range p.InputKeys() {
			if g.seed[key] {
				continue
			}
			producer, ok := g.producers[key]
			if !ok {
				return nil, eris.Errorf("passes: pass %q requires undefined key %q", p.ID, key)
			}
			if producer == p.ID {
				return nil, eris.Errorf("passes: pass %q requires its own output %q", p.ID, key)
			}
			if !seen[producer] {
				seen[producer] = true
				deps[producer] = append(deps[producer], p.ID)
				indegree[p.ID]++
			}
		}
	}

	// Kahn's algorithm, preserving declaration order among ready passes
	// so the resolved order is deterministic.
	ordered := make([]Pass, 0, len(decls))
	remaining := append([]Pass(nil), decls...)
	for len(remaining) > 0 {
		progressed := false
		next := remaining[:0]
		for _, p := range remaining {
			if indegree[p.ID] > 0 {
				next = append(next, p)
				continue
			}
			ordered = append(ordered, p)
			for _, dependent := range deps[p.ID] {
				indegree[dependent]--
			}
			progressed = true
		}
		remaining = next
		if !progressed {
			names := make([]string, 0, len(remaining))
			for _, p := range remaining {
				names = append(names, string(p.ID))
			}
			return nil, eris.Errorf("passes: dependency cycle among %s", strings.Join(names, ", "))
		}
	}

	g.ordered = ordered
	return g, nil
}

// InDependencyOrder returns all passes sorted so every pass appears after
// the passes producing its required keys.
func (g *Graph) InDependencyOrder() []Pass {
	return g.ordered
}

// Pass looks up a declaration by ID.
func (g *Graph) Pass(id model.PassID) (Pass, bool) {
	p, ok := g.byID[id]
	return p, ok
}

// Producer returns the pass producing an output key, or false for seed
// and unknown keys.
func (g *Graph) Producer(key string) (model.PassID, bool) {
	id, ok := g.producers[key]
	return id, ok
}

// MissingInputs reports which of a pass's required keys are absent from
// the available key set, in declaration order.
func (g *Graph) MissingInputs(p Pass, available map[string]any) []string {
	var missing []string
	for _, key := range p.Requires {
		if _, ok := available[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}
