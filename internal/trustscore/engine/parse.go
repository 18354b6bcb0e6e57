package engine

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"verihire/internal/trustscore/models"
)

// Shape is how a reasoning response was recognized. Shapes are tried in
// declaration order; no other repair is attempted.
type Shape int

const (
	DirectJSON Shape = iota
	FencedJSON
	Unparsable
)

func (s Shape) String() string {
	switch s {
	case DirectJSON:
		return "direct_json"
	case FencedJSON:
		return "fenced_json"
	default:
		return "unparsable"
	}
}

var fencePattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

type responseBody struct {
	Score     *float64 `json:"score"`
	Analysis  string   `json:"analysis"`
	Breakdown struct {
		VerificationRate    float64 `json:"verification_rate"`
		CareerProgression   float64 `json:"career_progression"`
		SkillConsistency    float64 `json:"skill_consistency"`
		TimelineConsistency float64 `json:"timeline_consistency"`
		VerificationCount   float64 `json:"verification_count"`
	} `json:"breakdown"`
	Recommendations []string `json:"recommendations"`
	RiskFactors     []string `json:"risk_factors"`
	Strengths       []string `json:"strengths"`
}

// ParseResponse recognizes a reasoning response and converts it into a
// primary result. The result is only meaningful when the shape is not
// Unparsable.
func ParseResponse(content string) (models.Result, Shape) {
	content = strings.TrimSpace(content)
	if body, ok := decode(content); ok {
		return body.result(), DirectJSON
	}
	if m := fencePattern.FindStringSubmatch(content); m != nil {
		if body, ok := decode(m[1]); ok {
			return body.result(), FencedJSON
		}
	}
	return models.Result{}, Unparsable
}

func decode(raw string) (responseBody, bool) {
	var body responseBody
	if err := json.Unmarshal([]byte(raw), &body); err != nil || body.Score == nil {
		return responseBody{}, false
	}
	return body, true
}

func (b responseBody) result() models.Result {
	return models.Result{
		Score:  bound(*b.Score),
		Source: models.SourcePrimary,
		Breakdown: models.Breakdown{
			VerificationRate:    bound(b.Breakdown.VerificationRate),
			CareerProgression:   bound(b.Breakdown.CareerProgression),
			SkillConsistency:    bound(b.Breakdown.SkillConsistency),
			TimelineConsistency: bound(b.Breakdown.TimelineConsistency),
			VerificationCount:   bound(b.Breakdown.VerificationCount),
		},
		Analysis: strings.TrimSpace(b.Analysis),
		Extras: models.Extras{
			Recommendations: b.Recommendations,
			RiskFactors:     b.RiskFactors,
			Strengths:       b.Strengths,
		},
	}
}

func bound(v float64) int {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= float64(models.MaxScore):
		return models.MaxScore
	}
	return int(math.Round(v))
}
