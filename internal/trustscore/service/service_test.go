package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	candidatemodels "verihire/internal/candidate/models"
	"verihire/internal/trustscore/engine"
	"verihire/internal/trustscore/models"
	"verihire/internal/trustscore/store"
	verificationmodels "verihire/internal/verification/models"
	"verihire/pkg/domain"
	dErrors "verihire/pkg/domain-errors"
	audit "verihire/pkg/platform/audit"
	"verihire/pkg/platform/audit/publisher"
	auditmemory "verihire/pkg/platform/audit/store/memory"
	"verihire/pkg/requestcontext"
)

type stubProfiles struct {
	profile *candidatemodels.Profile
}

func (s *stubProfiles) Get(_ context.Context, id domain.CandidateID) (*candidatemodels.Candidate, error) {
	if s.profile == nil || s.profile.Candidate.ID != id {
		return nil, dErrors.New(dErrors.CodeNotFound, "candidate not found")
	}
	return s.profile.Candidate, nil
}

func (s *stubProfiles) Profile(ctx context.Context, id domain.CandidateID) (*candidatemodels.Profile, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.profile, nil
}

type stubVerifications struct {
	views []verificationmodels.RequestView
}

func (s *stubVerifications) List(context.Context, domain.CandidateID) ([]verificationmodels.RequestView, error) {
	return s.views, nil
}

type ServiceSuite struct {
	suite.Suite
	ctx           context.Context
	profiles      *stubProfiles
	verifications *stubVerifications
	auditStore    *auditmemory.InMemoryStore
	service       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))
	s.profiles = &stubProfiles{profile: &candidatemodels.Profile{
		Candidate: &candidatemodels.Candidate{ID: "cand-1", Name: "John Doe", Skills: []string{"python"}},
		WorkHistory: []candidatemodels.WorkHistoryEntry{
			{Company: "Google", Position: "Software Engineer", StartDate: "2020", EndDate: "2023"},
		},
	}}
	s.verifications = &stubVerifications{}
	s.auditStore = auditmemory.NewInMemoryStore()
	s.service = New(store.NewInMemory(), s.profiles, s.verifications, engine.New(nil),
		WithAuditPublisher(publisher.NewPublisher(s.auditStore)),
	)
}

func view(verified *bool) verificationmodels.RequestView {
	v := verificationmodels.RequestView{State: string(verificationmodels.StatusSent)}
	if verified != nil {
		v.State = string(verificationmodels.StatusCompleted)
		v.Outcome = &verificationmodels.VerificationOutcome{Verified: *verified}
	}
	return v
}

func (s *ServiceSuite) TestComputeWithoutRequestsIsBaseline() {
	score, err := s.service.Compute(s.ctx, "cand-1")
	s.Require().NoError(err)
	s.Equal(models.NoRequestsBaseline, score.Score)
	s.Equal(models.SourceNoRequests, score.Source)
	s.Equal(requestcontext.Now(s.ctx), score.ComputedAt)
	s.Equal(1, s.auditStore.CountAction(audit.EventTrustScoreComputed))
}

func (s *ServiceSuite) TestComputeAggregatesOutcomes() {
	yes := true
	s.verifications.views = []verificationmodels.RequestView{view(&yes), view(&yes)}

	score, err := s.service.Compute(s.ctx, "cand-1")
	s.Require().NoError(err)
	s.Equal(81, score.Score)
	s.Equal(models.SourceUnconfigured, score.Source)
	s.Equal(100, score.Breakdown.VerificationRate)
}

func (s *ServiceSuite) TestGatherCountsPendingRequests() {
	yes, no := true, false
	s.verifications.views = []verificationmodels.RequestView{view(&yes), view(&no), view(nil)}

	data, err := s.service.Gather(s.ctx, "cand-1")
	s.Require().NoError(err)
	s.Equal(3, data.TotalRequests)
	s.Equal(2, data.TotalOutcomes)
	s.Equal(1, data.SuccessfulOutcomes)
	s.InDelta(50.0, data.VerificationRate(), 0.001)
}

func (s *ServiceSuite) TestHistoryNewestFirstAndLatest() {
	_, err := s.service.Latest(s.ctx, "cand-1")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	first, err := s.service.Compute(s.ctx, "cand-1")
	s.Require().NoError(err)
	yes := true
	s.verifications.views = []verificationmodels.RequestView{view(&yes)}
	later := requestcontext.WithTime(s.ctx, requestcontext.Now(s.ctx).Add(time.Hour))
	second, err := s.service.Compute(later, "cand-1")
	s.Require().NoError(err)

	history, err := s.service.History(s.ctx, "cand-1")
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(second.ID, history[0].ID)
	s.Equal(first.ID, history[1].ID)

	latest, err := s.service.Latest(s.ctx, "cand-1")
	s.Require().NoError(err)
	s.Equal(second.ID, latest.ID)
}

func (s *ServiceSuite) TestUnknownCandidate() {
	_, err := s.service.Compute(s.ctx, "ghost")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.service.History(s.ctx, "ghost")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
