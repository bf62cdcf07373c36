package model

import "time"

// PassID identifies one of the five fixed research passes.
type PassID string

const (
	PassLocationData    PassID = "location-data"
	PassWebResearch     PassID = "web-research"
	PassReviewsAnalysis PassID = "reviews-analysis"
	PassSupplementary   PassID = "supplementary-sources"
	PassStrategy        PassID = "strategy-generation"
)

// Output keys produced by passes or seeded from the prospect record.
const (
	// Seed keys available before any pass runs.
	KeyBusinessName = "business_name"
	KeyLocation     = "location"
	KeyWebsiteURL   = "website_url"

	// location-data
	KeyPlaceID           = "place_id"
	KeyFormattedAddress  = "formatted_address"
	KeyRegion            = "region"
	KeyHasGoogleBusiness = "has_google_business"

	// web-research
	KeyHasWebsite     = "has_website"
	KeyHasSocialMedia = "has_social_media"
	KeySocialLinks    = "social_links"
	KeyPageSummary    = "page_summary"

	// reviews-analysis
	KeyReviewCount         = "review_count"
	KeyRating              = "rating"
	KeyCompetitorAvgRating = "competitor_avg_rating"
	KeyHasOnlineReviews    = "has_online_reviews"

	// supplementary-sources
	KeyIndustry        = "industry"
	KeyEmployeeCount   = "employee_count"
	KeyRevenueEstimate = "revenue_estimate"

	// strategy-generation
	KeyStrategyText = "strategy_text"
)

// PassOutcome tags the result of one pass within one attempt.
type PassOutcome string

const (
	OutcomeSucceeded PassOutcome = "succeeded"
	OutcomeFailed    PassOutcome = "failed"
	OutcomeSkipped   PassOutcome = "skipped_missing_dependency"
)

// PassResult records the outcome of a single pass execution (or skip).
// Outputs is present only when the outcome is succeeded; Error is required
// for failed and skipped outcomes.
type PassResult struct {
	Pass    PassID         `json:"pass"`
	Outcome PassOutcome    `json:"outcome"`
	Error   string         `json:"error,omitempty"`
	Outputs map[string]any `json:"outputs,omitempty"`
	// DurationMs covers the adapter invocation; zero for skipped passes
	// and for carried-forward results.
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// Attempt is one orchestrator execution for one prospect. Immutable once
// appended to the ledger; Number is 1-based and monotonic per prospect.
type Attempt struct {
	ID          string       `json:"id"`
	ProspectID  string       `json:"prospect_id"`
	Number      int          `json:"number"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	Results     []PassResult `json:"results"`
}

// Result returns the PassResult for a pass, or nil if the pass was not
// part of this attempt.
func (a *Attempt) Result(id PassID) *PassResult {
	for i := range a.Results {
		if a.Results[i].Pass == id {
			return &a.Results[i]
		}
	}
	return nil
}

// SucceededOutputs merges the outputs of every succeeded pass in this
// attempt into a single map.
func (a *Attempt) SucceededOutputs() map[string]any {
	merged := make(map[string]any)
	for _, r := range a.Results {
		if r.Outcome != OutcomeSucceeded {
			continue
		}
		for k, v := range r.Outputs {
			merged[k] = v
		}
	}
	return merged
}
