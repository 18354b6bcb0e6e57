package models

import (
	"time"

	candidatemodels "verihire/internal/candidate/models"
	"verihire/pkg/domain"
)

// Source tags which strategy produced a score.
type Source string

const (
	SourcePrimary       Source = "primary"
	SourceNoRequests    Source = "fallback-no-requests"
	SourceUnconfigured  Source = "fallback-unconfigured"
	SourceUpstreamError Source = "fallback-upstream-error"
	SourceTimeout       Source = "fallback-timeout"
	SourceUnparsable    Source = "fallback-unparsable"
	SourceCircuitOpen   Source = "fallback-circuit-open"
)

// NoRequestsBaseline is the whole score of a candidate with no verification
// requests at all.
const NoRequestsBaseline = 30

const MaxScore = 100

// IsFallback reports whether the deterministic formula produced the score.
func (s Source) IsFallback() bool {
	return s != SourcePrimary
}

// Breakdown holds the five weighted factors, each in [0,100].
type Breakdown struct {
	VerificationRate    int `json:"verification_rate"`
	CareerProgression   int `json:"career_progression"`
	SkillConsistency    int `json:"skill_consistency"`
	TimelineConsistency int `json:"timeline_consistency"`
	VerificationCount   int `json:"verification_count"`
}

// Extras carries the narrative fields of a score.
type Extras struct {
	Recommendations []string `json:"recommendations,omitempty"`
	RiskFactors     []string `json:"risk_factors,omitempty"`
	Strengths       []string `json:"strengths,omitempty"`
}

// Result is what the engine returns for one calculation.
type Result struct {
	Score     int       `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
	Source    Source    `json:"source"`
	Analysis  string    `json:"analysis,omitempty"`
	Extras    Extras    `json:"extras"`
}

// TrustScore is one persisted calculation. History is append-only; the
// newest entry is the current score.
type TrustScore struct {
	ID          domain.ScoreID     `json:"id"`
	CandidateID domain.CandidateID `json:"candidate_id"`
	Result
	ComputedAt time.Time `json:"computed_at"`
}

// CandidateData is the engine input aggregated from candidate and
// verification state.
type CandidateData struct {
	CandidateID        domain.CandidateID
	Name               string
	TotalRequests      int
	TotalOutcomes      int
	SuccessfulOutcomes int
	WorkHistory        []candidatemodels.WorkHistoryEntry
	Skills             []string
	Profiles           candidatemodels.SocialProfiles
	Presence           *candidatemodels.PresenceSignals
}

// VerificationRate is successful over total outcomes as a percentage.
func (d CandidateData) VerificationRate() float64 {
	if d.TotalOutcomes == 0 {
		return 0
	}
	return float64(d.SuccessfulOutcomes) / float64(d.TotalOutcomes) * 100
}
