package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	candidatemodels "verihire/internal/candidate/models"
	"verihire/internal/providers"
	"verihire/internal/trustscore/engine/mocks"
	"verihire/internal/trustscore/models"
	"verihire/pkg/platform/circuit"
)

const primaryJSON = `{"score": 77, "analysis": "solid", "breakdown": {"verification_rate": 100,
"career_progression": 60, "skill_consistency": 70, "timeline_consistency": 80, "verification_count": 40},
"strengths": ["verified employers"]}`

type EngineSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	reasoner *mocks.MockReasoner
	now      time.Time
	engine   *Engine
	data     models.CandidateData
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.reasoner = mocks.NewMockReasoner(s.ctrl)
	s.reasoner.EXPECT().Configured().Return(true).AnyTimes()
	s.now = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	breaker := circuit.New("reasoning",
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return s.now }),
	)
	s.engine = New(s.reasoner, WithBreaker(breaker))
	s.data = models.CandidateData{
		CandidateID:        "cand-1",
		TotalRequests:      2,
		TotalOutcomes:      2,
		SuccessfulOutcomes: 2,
		WorkHistory: []candidatemodels.WorkHistoryEntry{
			{Company: "Google", Position: "Software Engineer", StartDate: "2020", EndDate: "2023"},
		},
		Skills: []string{"python"},
	}
}

func (s *EngineSuite) TestPrimaryResultWins() {
	s.reasoner.EXPECT().Complete(gomock.Any(), systemPrompt, gomock.Any()).Return(primaryJSON, nil)

	result := s.engine.Calculate(context.Background(), s.data)
	s.Equal(models.SourcePrimary, result.Source)
	s.Equal(77, result.Score)
	s.Equal(60, result.Breakdown.CareerProgression)
	s.Equal("solid", result.Analysis)
	s.Equal([]string{"verified employers"}, result.Extras.Strengths)
}

func (s *EngineSuite) TestNoRequestsSkipsPrimary() {
	result := s.engine.Calculate(context.Background(), models.CandidateData{CandidateID: "cand-1"})
	s.Equal(models.SourceNoRequests, result.Source)
	s.Equal(models.NoRequestsBaseline, result.Score)
}

func (s *EngineSuite) TestFailuresDegradeWithTaggedSource() {
	tests := []struct {
		name    string
		content string
		err     error
		want    models.Source
	}{
		{"timeout", "", providers.NewError(providers.CategoryTimeout, "reasoning", "slow", nil), models.SourceTimeout},
		{"outage", "", providers.NewError(providers.CategoryOutage, "reasoning", "down", nil), models.SourceUpstreamError},
		{"unparsable", "I think the score is 80", nil, models.SourceUnparsable},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.engine.breaker.Reset()
			s.reasoner.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return(tt.content, tt.err)

			result := s.engine.Calculate(context.Background(), s.data)
			s.Equal(tt.want, result.Source)
			s.Equal(Fallback(s.data, tt.want).Score, result.Score)
		})
	}
}

func (s *EngineSuite) TestBreakerOpensAndProbesAfterCooldown() {
	down := providers.NewError(providers.CategoryOutage, "reasoning", "down", nil)
	s.reasoner.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return("", down).Times(2)
	s.engine.Calculate(context.Background(), s.data)
	s.engine.Calculate(context.Background(), s.data)

	result := s.engine.Calculate(context.Background(), s.data)
	s.Equal(models.SourceCircuitOpen, result.Source, "no call while open")

	s.now = s.now.Add(2 * time.Minute)
	s.reasoner.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return(primaryJSON, nil)
	result = s.engine.Calculate(context.Background(), s.data)
	s.Equal(models.SourcePrimary, result.Source)
	s.Equal(circuit.StateClosed, s.engine.breaker.State())
}

func TestUnconfiguredReasoner(t *testing.T) {
	ctrl := gomock.NewController(t)
	reasoner := mocks.NewMockReasoner(ctrl)
	reasoner.EXPECT().Configured().Return(false)

	data := models.CandidateData{TotalRequests: 1}
	assert.Equal(t, models.SourceUnconfigured, New(reasoner).Calculate(context.Background(), data).Source)
	assert.Equal(t, models.SourceUnconfigured, New(nil).Calculate(context.Background(), data).Source)
}

func TestParseResponseShapes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		shape   Shape
		score   int
	}{
		{"direct", primaryJSON, DirectJSON, 77},
		{"fenced", "Here you go:\n```json\n" + primaryJSON + "\n```\nThanks", FencedJSON, 77},
		{"fenced without language", "```\n{\"score\": 12}\n```", FencedJSON, 12},
		{"clamped", `{"score": 140, "breakdown": {"verification_rate": -5}}`, DirectJSON, 100},
		{"missing score", `{"analysis": "n/a"}`, Unparsable, 0},
		{"prose", "score: 80", Unparsable, 0},
		{"broken fence", "```json\n{\"score\": \n```", Unparsable, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, shape := ParseResponse(tt.content)
			assert.Equal(t, tt.shape, shape)
			assert.Equal(t, tt.score, result.Score)
			if shape != Unparsable {
				assert.Equal(t, models.SourcePrimary, result.Source)
				assert.GreaterOrEqual(t, result.Breakdown.VerificationRate, 0)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(models.CandidateData{
		TotalRequests:      3,
		TotalOutcomes:      2,
		SuccessfulOutcomes: 1,
		WorkHistory: []candidatemodels.WorkHistoryEntry{
			{Company: "Stripe", Position: "Senior Engineer", StartDate: "2021", EndDate: "present"},
		},
		Skills:   []string{"go", "sql"},
		Presence: &candidatemodels.PresenceSignals{Combined: 70, Summary: "active"},
		Profiles: candidatemodels.SocialProfiles{GitHubURL: "https://github.com/jdoe"},
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "Verification rate: 50.0%")
	assert.Contains(t, prompt, "Senior Engineer at Stripe (2021 - present)")
	assert.Contains(t, prompt, "Skills: go, sql")
	assert.Contains(t, prompt, "Combined: 70/100")
	assert.Contains(t, prompt, "GitHub: https://github.com/jdoe")
	assert.Contains(t, prompt, "LinkedIn: not provided")
	assert.Contains(t, prompt, `"timeline_consistency"`)
}
