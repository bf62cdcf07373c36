package model

import "time"

// PipelineStage is the coarse lifecycle state of a prospect.
type PipelineStage string

const (
	StageCold             PipelineStage = "cold"
	StageContacted        PipelineStage = "contacted"
	StageInterested       PipelineStage = "interested"
	StageQualified        PipelineStage = "qualified"
	StageMeetingScheduled PipelineStage = "meeting_scheduled"
	StageWon              PipelineStage = "won"
	StageLost             PipelineStage = "lost"
)

// stageRank orders the forward progression. Lost is terminal and outside
// the chain; Terminal stages never advance.
var stageRank = map[PipelineStage]int{
	StageCold:             0,
	StageContacted:        1,
	StageInterested:       2,
	StageQualified:        3,
	StageMeetingScheduled: 4,
	StageWon:              5,
}

// Rank returns the forward-progression rank of a stage, or -1 for lost
// and unknown stages.
func (s PipelineStage) Rank() int {
	r, ok := stageRank[s]
	if !ok {
		return -1
	}
	return r
}

// Terminal reports whether no further transitions are possible.
func (s PipelineStage) Terminal() bool {
	return s == StageWon || s == StageLost
}

// ActionKind is an explicit manual signal applied to a prospect's stage.
type ActionKind string

const (
	ActionAdvance          ActionKind = "advance"
	ActionHold             ActionKind = "hold"
	ActionLost             ActionKind = "lost"
	ActionMeetingScheduled ActionKind = "meeting_scheduled"
	ActionWon              ActionKind = "won"
)

// StageEvent is a manual action event consumed by the stage engine.
type StageEvent struct {
	ProspectID string     `json:"prospect_id"`
	Kind       ActionKind `json:"action_kind"`
	Timestamp  time.Time  `json:"timestamp"`
}

// DigitalPresence holds the four boolean presence flags gathered by the
// research passes.
type DigitalPresence struct {
	HasWebsite        bool `json:"has_website"`
	HasGoogleBusiness bool `json:"has_google_business"`
	HasSocialMedia    bool `json:"has_social_media"`
	HasOnlineReviews  bool `json:"has_online_reviews"`
}

// Prospect is a business being researched and qualified.
type Prospect struct {
	ID                 string          `json:"id"`
	BusinessName       string          `json:"business_name"`
	Industry           string          `json:"industry,omitempty"`
	Location           string          `json:"location,omitempty"`
	WebsiteURL         string          `json:"website_url,omitempty"`
	ContactName        string          `json:"contact_name,omitempty"`
	ContactEmail       string          `json:"contact_email,omitempty"`
	ContactPhone       string          `json:"contact_phone,omitempty"`
	EmployeeCount      int             `json:"employee_count,omitempty"`
	RevenueEstimate    float64         `json:"revenue_estimate,omitempty"`
	Presence           DigitalPresence `json:"digital_presence"`
	PipelineStage      PipelineStage   `json:"pipeline_stage"`
	QualificationScore int             `json:"qualification_score"`
	ScoreBreakdown     *ScoreBreakdown `json:"score_breakdown,omitempty"`
	SalesforceID       string          `json:"salesforce_id,omitempty"`
	NotionPageID       string          `json:"notion_page_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// SeedInputs returns the pass-graph input keys a prospect provides before
// any pass has run. Empty attributes are omitted so dependency checks
// treat them as genuinely missing.
func (p *Prospect) SeedInputs() map[string]any {
	seed := make(map[string]any, 3)
	if p.BusinessName != "" {
		seed[KeyBusinessName] = p.BusinessName
	}
	if p.Location != "" {
		seed[KeyLocation] = p.Location
	}
	if p.WebsiteURL != "" {
		seed[KeyWebsiteURL] = p.WebsiteURL
	}
	return seed
}
