// Package scoring computes the six-category qualification score from the
// merged outputs of all historically succeeded passes. The computation is
// a pure function of its inputs: no clock, no randomness, no I/O.
package scoring

import (
	"golang.org/x/text/cases"

	"github.com/sells-group/prospect-pipeline/internal/model"
)

// Gap reports a pass that has not yet succeeded and the category score it
// could unlock, informing retry prioritization.
type Gap struct {
	Category model.ScoreCategory `json:"category"`
	Pass     model.PassID        `json:"pass"`
	MaxGain  int                 `json:"max_gain"`
}

// Engine computes ScoreBreakdowns under a fixed configuration.
type Engine struct {
	cfg  *Config
	fold cases.Caser

	serviceAreas  map[string]bool
	adjacentAreas map[string]bool
	industries    map[string]int
}

// NewEngine creates a scoring engine. The config is normalized once up
// front so Compute stays allocation-light and deterministic.
func NewEngine(cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	e := &Engine{
		cfg:           cfg,
		fold:          cases.Fold(),
		serviceAreas:  make(map[string]bool, len(cfg.ServiceAreas)),
		adjacentAreas: make(map[string]bool, len(cfg.AdjacentAreas)),
		industries:    make(map[string]int, len(cfg.IndustryWeights)),
	}
	for _, a := range cfg.ServiceAreas {
		e.serviceAreas[e.fold.String(a)] = true
	}
	for _, a := range cfg.AdjacentAreas {
		e.adjacentAreas[e.fold.String(a)] = true
	}
	for k, w := range cfg.IndustryWeights {
		e.industries[e.fold.String(k)] = clamp(w, 0, model.MaxIndustryFit)
	}
	return e
}

// Threshold returns the configured auto-qualify threshold.
func (e *Engine) Threshold() int {
	return e.cfg.AutoQualifyThreshold
}

// Compute derives the breakdown from the prospect and the merged outputs
// of every succeeded pass. A category whose inputs were never gathered
// scores 0 and is reported as a Gap naming the pass that would supply it.
func (e *Engine) Compute(p *model.Prospect, outputs map[string]any) (model.ScoreBreakdown, []Gap) {
	b := model.ScoreBreakdown{
		BusinessSize:     e.businessSize(p, outputs),
		DigitalPresence:  e.digitalPresence(p, outputs),
		CompetitorGaps:   e.competitorGaps(outputs),
		Location:         e.location(outputs),
		IndustryFit:      e.industryFit(p, outputs),
		RevenueIndicator: e.revenueIndicator(p, outputs),
	}

	var gaps []Gap
	addGap := func(c model.ScoreCategory, pass model.PassID, inputPresent bool) {
		if inputPresent {
			return
		}
		if gain := model.CategoryMax(c) - b.Get(c); gain > 0 {
			gaps = append(gaps, Gap{Category: c, Pass: pass, MaxGain: gain})
		}
	}
	addGap(model.CategoryBusinessSize, model.PassSupplementary, has(outputs, model.KeyEmployeeCount))
	addGap(model.CategoryDigitalPresence, model.PassWebResearch, has(outputs, model.KeyHasWebsite))
	addGap(model.CategoryCompetitorGaps, model.PassReviewsAnalysis, has(outputs, model.KeyReviewCount))
	addGap(model.CategoryLocation, model.PassLocationData, has(outputs, model.KeyRegion))
	addGap(model.CategoryIndustryFit, model.PassSupplementary, has(outputs, model.KeyIndustry))
	addGap(model.CategoryRevenueIndicator, model.PassSupplementary, has(outputs, model.KeyRevenueEstimate))

	return b, gaps
}

// businessSize is a step function over employee-count bands. Mid-market
// headcount (20-99) is the sweet spot; unknown scores 0.
func (e *Engine) businessSize(p *model.Prospect, outputs map[string]any) int {
	count := asInt(outputs[model.KeyEmployeeCount])
	if count == 0 {
		count = p.EmployeeCount
	}
	switch {
	case count <= 0:
		return 0
	case count < 5:
		return 5
	case count < 20:
		return 12
	case count < 100:
		return model.MaxBusinessSize
	case count < 500:
		return 14
	default:
		return 8
	}
}

// digitalPresence is a weighted sum of the four presence flags:
// website 8, google business 7, social media 5, online reviews 5.
func (e *Engine) digitalPresence(p *model.Prospect, outputs map[string]any) int {
	score := 0
	if asBool(outputs[model.KeyHasWebsite]) || p.Presence.HasWebsite {
		score += 8
	}
	if asBool(outputs[model.KeyHasGoogleBusiness]) || p.Presence.HasGoogleBusiness {
		score += 7
	}
	if asBool(outputs[model.KeyHasSocialMedia]) || p.Presence.HasSocialMedia {
		score += 5
	}
	if asBool(outputs[model.KeyHasOnlineReviews]) || p.Presence.HasOnlineReviews {
		score += 5
	}
	return score
}

// competitorGaps rewards prospects lagging their local competition, since
// the gap is the sales opportunity: under-reviewed +8, rated at least 0.3
// below the competitor average +7, no website despite being listed +5.
func (e *Engine) competitorGaps(outputs map[string]any) int {
	if !has(outputs, model.KeyReviewCount) {
		return 0
	}
	score := 0
	if asInt(outputs[model.KeyReviewCount]) < 25 {
		score += 8
	}
	rating := asFloat(outputs[model.KeyRating])
	competitorAvg := asFloat(outputs[model.KeyCompetitorAvgRating])
	if competitorAvg > 0 && rating > 0 && competitorAvg-rating >= 0.3 {
		score += 7
	}
	if has(outputs, model.KeyHasWebsite) && !asBool(outputs[model.KeyHasWebsite]) {
		score += 5
	}
	return clamp(score, 0, model.MaxCompetitorGaps)
}

// location scores 15 inside the service area, 8 in adjacent regions.
func (e *Engine) location(outputs map[string]any) int {
	region := asString(outputs[model.KeyRegion])
	if region == "" {
		return 0
	}
	folded := e.fold.String(region)
	switch {
	case e.serviceAreas[folded]:
		return model.MaxLocation
	case e.adjacentAreas[folded]:
		return 8
	default:
		return 0
	}
}

// industryFit looks up the configured weight for the gathered industry,
// falling back to the industry recorded on the prospect.
func (e *Engine) industryFit(p *model.Prospect, outputs map[string]any) int {
	industry := asString(outputs[model.KeyIndustry])
	if industry == "" {
		industry = p.Industry
	}
	if industry == "" {
		return 0
	}
	return e.industries[e.fold.String(industry)]
}

// revenueIndicator bands the revenue estimate in USD: the 1M-10M band is
// the target segment.
func (e *Engine) revenueIndicator(p *model.Prospect, outputs map[string]any) int {
	revenue := asFloat(outputs[model.KeyRevenueEstimate])
	if revenue == 0 {
		revenue = p.RevenueEstimate
	}
	switch {
	case revenue <= 0:
		return 0
	case revenue < 100_000:
		return 2
	case revenue < 1_000_000:
		return 6
	case revenue < 10_000_000:
		return model.MaxRevenueIndicator
	default:
		return 5
	}
}

func has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// asBool, asInt, asFloat, asString coerce pass outputs that may have been
// round-tripped through JSON (where numbers decode as float64).
func asBool(v any) bool {
	b, _ := v.(bool)
	return b
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

func asString(v any) string {
	s, _ := v.(string)
	return s
}
