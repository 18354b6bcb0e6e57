package engine

import (
	"fmt"
	"math"
	"strings"

	candidatemodels "verihire/internal/candidate/models"
	"verihire/internal/resume"
	"verihire/internal/trustscore/models"
)

const (
	weightVerificationRate    = 0.40
	weightCareerProgression   = 0.20
	weightSkillConsistency    = 0.15
	weightTimelineConsistency = 0.15
	weightVerificationCount   = 0.10

	careerBase      = 50
	careerStep      = 15
	skillBase       = 60
	skillNoSkills   = 50
	skillMatchBonus = 30
	timelineBase    = 80
	timelineSingle  = 90
	timelineStep    = 5
	countStep       = 20
)

// Seniority ladder, lowest first.
var seniorityLadder = []string{"intern", "junior", "associate", "senior", "lead", "principal", "manager", "director", "vp"}

var techKeywords = []string{"javascript", "python", "react", "node", "sql", "aws", "docker", "kubernetes"}

var technicalRoles = []string{"engineer", "developer", "architect", "technical"}

// Fallback computes the deterministic weighted formula. It never fails.
func Fallback(data models.CandidateData, source models.Source) models.Result {
	breakdown := models.Breakdown{
		VerificationRate:    int(math.Round(data.VerificationRate())),
		CareerProgression:   CareerProgression(data.WorkHistory),
		SkillConsistency:    SkillConsistency(data.WorkHistory, data.Skills),
		TimelineConsistency: TimelineConsistency(data.WorkHistory),
		VerificationCount:   min(data.SuccessfulOutcomes*countStep, models.MaxScore),
	}

	score := models.NoRequestsBaseline
	if data.TotalRequests > 0 {
		score = Composite(breakdown)
	}

	result := models.Result{
		Score:     score,
		Breakdown: breakdown,
		Source:    source,
		Analysis:  fallbackAnalysis(data, score),
		Extras:    fallbackExtras(data),
	}
	return result
}

// Composite applies the factor weights, rounds and clamps to [0,100].
func Composite(b models.Breakdown) int {
	total := float64(b.VerificationRate)*weightVerificationRate +
		float64(b.CareerProgression)*weightCareerProgression +
		float64(b.SkillConsistency)*weightSkillConsistency +
		float64(b.TimelineConsistency)*weightTimelineConsistency +
		float64(b.VerificationCount)*weightVerificationCount
	return clamp(int(math.Round(total)))
}

// CareerProgression scans consecutive entries, newest first, adding a step
// for every move up the seniority ladder.
func CareerProgression(history []candidatemodels.WorkHistoryEntry) int {
	score := careerBase
	for i := 1; i < len(history); i++ {
		older := seniority(history[i].Position)
		newer := seniority(history[i-1].Position)
		if newer > older {
			score += careerStep
		}
	}
	return min(score, models.MaxScore)
}

func seniority(title string) int {
	title = strings.ToLower(title)
	for i, level := range seniorityLadder {
		if strings.Contains(title, level) {
			return i
		}
	}
	return -1
}

func SkillConsistency(history []candidatemodels.WorkHistoryEntry, skills []string) int {
	if len(skills) == 0 {
		return skillNoSkills
	}
	score := skillBase
	if anyContains(skills, techKeywords) && hasTechnicalRole(history) {
		score += skillMatchBonus
	}
	return min(score, models.MaxScore)
}

func hasTechnicalRole(history []candidatemodels.WorkHistoryEntry) bool {
	for _, e := range history {
		if anyContains([]string{e.Position}, technicalRoles) {
			return true
		}
	}
	return false
}

func anyContains(values, keywords []string) bool {
	for _, v := range values {
		v = strings.ToLower(v)
		for _, k := range keywords {
			if strings.Contains(v, k) {
				return true
			}
		}
	}
	return false
}

// TimelineConsistency rewards adjacent pairs whose older entry ended no later
// than the year the newer one started. An older job still "present", or a
// date without a readable year, earns nothing.
func TimelineConsistency(history []candidatemodels.WorkHistoryEntry) int {
	switch len(history) {
	case 0:
		return timelineBase
	case 1:
		return timelineSingle
	}
	score := timelineBase
	for i := 1; i < len(history); i++ {
		if saneTransition(history[i], history[i-1]) {
			score += timelineStep
		}
	}
	return min(score, models.MaxScore)
}

func saneTransition(older, newer candidatemodels.WorkHistoryEntry) bool {
	if strings.EqualFold(strings.TrimSpace(older.EndDate), resume.Present) {
		return false
	}
	olderEnd, ok := resume.Year(older.EndDate)
	if !ok {
		return false
	}
	newerStart, ok := resume.Year(newer.StartDate)
	if !ok {
		return false
	}
	return olderEnd <= newerStart
}

func fallbackAnalysis(data models.CandidateData, score int) string {
	if data.TotalRequests == 0 {
		return fmt.Sprintf("No verification requests have been sent yet; baseline score of %d applied.", score)
	}
	return fmt.Sprintf("Score of %d computed from %d of %d verified outcomes across %d work history entries.",
		score, data.SuccessfulOutcomes, data.TotalOutcomes, len(data.WorkHistory))
}

func fallbackExtras(data models.CandidateData) models.Extras {
	var extras models.Extras
	rate := data.VerificationRate()
	switch {
	case data.TotalRequests == 0:
		extras.Recommendations = append(extras.Recommendations, "Send verification requests to previous employers")
	case data.TotalOutcomes < data.TotalRequests:
		extras.Recommendations = append(extras.Recommendations, "Follow up on outstanding verification requests")
	}
	if data.Profiles.GitHubURL == "" && data.Profiles.LinkedInURL == "" {
		extras.Recommendations = append(extras.Recommendations, "Add professional profile links")
	}
	if data.TotalOutcomes > 0 && rate < 50 {
		extras.RiskFactors = append(extras.RiskFactors, "Low employment verification rate")
	}
	if rate > 80 {
		extras.Strengths = append(extras.Strengths, "High employment verification rate")
	}
	return extras
}

func clamp(score int) int {
	return max(0, min(score, models.MaxScore))
}
