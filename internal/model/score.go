package model

// ScoreCategory names one of the six qualification scoring categories.
type ScoreCategory string

const (
	CategoryBusinessSize     ScoreCategory = "business_size"
	CategoryDigitalPresence  ScoreCategory = "digital_presence"
	CategoryCompetitorGaps   ScoreCategory = "competitor_gaps"
	CategoryLocation         ScoreCategory = "location"
	CategoryIndustryFit      ScoreCategory = "industry_fit"
	CategoryRevenueIndicator ScoreCategory = "revenue_indicator"
)

// Category maxima. The six sum to 100.
const (
	MaxBusinessSize     = 20
	MaxDigitalPresence  = 25
	MaxCompetitorGaps   = 20
	MaxLocation         = 15
	MaxIndustryFit      = 10
	MaxRevenueIndicator = 10
)

// CategoryMax returns the maximum sub-score for a category.
func CategoryMax(c ScoreCategory) int {
	switch c {
	case CategoryBusinessSize:
		return MaxBusinessSize
	case CategoryDigitalPresence:
		return MaxDigitalPresence
	case CategoryCompetitorGaps:
		return MaxCompetitorGaps
	case CategoryLocation:
		return MaxLocation
	case CategoryIndustryFit:
		return MaxIndustryFit
	case CategoryRevenueIndicator:
		return MaxRevenueIndicator
	default:
		return 0
	}
}

// ScoreBreakdown holds the six category sub-scores. Each sub-score is
// within [0, max] for its category; the total is the prospect's
// qualification score.
type ScoreBreakdown struct {
	BusinessSize     int `json:"business_size"`
	DigitalPresence  int `json:"digital_presence"`
	CompetitorGaps   int `json:"competitor_gaps"`
	Location         int `json:"location"`
	IndustryFit      int `json:"industry_fit"`
	RevenueIndicator int `json:"revenue_indicator"`
}

// Total sums the six sub-scores into the 0-100 qualification score.
func (b ScoreBreakdown) Total() int {
	return b.BusinessSize + b.DigitalPresence + b.CompetitorGaps +
		b.Location + b.IndustryFit + b.RevenueIndicator
}

// Get returns the sub-score for a category.
func (b ScoreBreakdown) Get(c ScoreCategory) int {
	switch c {
	case CategoryBusinessSize:
		return b.BusinessSize
	case CategoryDigitalPresence:
		return b.DigitalPresence
	case CategoryCompetitorGaps:
		return b.CompetitorGaps
	case CategoryLocation:
		return b.Location
	case CategoryIndustryFit:
		return b.IndustryFit
	case CategoryRevenueIndicator:
		return b.RevenueIndicator
	default:
		return 0
	}
}
