package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	candidatehandler "verihire/internal/candidate/handler"
	candidateservice "verihire/internal/candidate/service"
	candidatestore "verihire/internal/candidate/store"
	"verihire/internal/platform/metrics"
	verificationstore "verihire/internal/verification/store"
	"verihire/pkg/platform/audit/publisher"
	auditmemory "verihire/pkg/platform/audit/store/memory"
	txcontext "verihire/pkg/platform/tx"
	"verihire/pkg/testutil"
)

type RouterSuite struct {
	suite.Suite
	healthErr error
	router    http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s.healthErr = nil

	auditor := publisher.NewPublisher(auditmemory.NewInMemoryStore())
	cstore := candidatestore.NewInMemory()
	candidates := candidateservice.New(cstore, txcontext.NewSharded[candidateservice.Store](cstore),
		verificationstore.NewInMemory(), candidateservice.WithAuditPublisher(auditor))

	s.router = NewRouter(Deps{
		Logger:   logger,
		Metrics:  m,
		Gatherer: reg,
		Handlers: []Registrar{
			candidatehandler.New(candidates, logger),
			NewAuditHandler(auditor, logger),
		},
		Health: []HealthCheck{{Name: "db", Check: func(context.Context) error { return s.healthErr }}},
	})
}

func (s *RouterSuite) TestHealthz() {
	rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodGet, "/healthz", ""))
	s.Equal(http.StatusOK, rr.Code)
	s.JSONEq(`{"status":"ok","checks":{"db":"ok"}}`, rr.Body.String())

	s.healthErr = errors.New("connection refused")
	rr = testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodGet, "/healthz", ""))
	s.Equal(http.StatusServiceUnavailable, rr.Code)
	s.JSONEq(`{"status":"degraded","checks":{"db":"connection refused"}}`, rr.Body.String())
}

func (s *RouterSuite) TestRequestIDAndMetrics() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/candidates/cand-1/resume",
		map[string]any{"text": "Jane Roe\nEXPERIENCE\nAcme - Engineer\n2019 - 2022"})
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	s.NotEmpty(rr.Header().Get("X-Request-ID"))

	rr = testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodGet, "/metrics", ""))
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), `route="/candidates/{candidateId}/resume"`)
}

func (s *RouterSuite) TestAuditTrail() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/candidates/cand-1/resume",
		map[string]any{"text": "Jane Roe\nEXPERIENCE\nAcme - Engineer\n2019 - 2022"})
	s.Require().Equal(http.StatusOK, testutil.DoRequest(s.router, req).Code)

	rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodGet, "/candidates/cand-1/audit-events", ""))
	s.Require().Equal(http.StatusOK, rr.Code)
	body := testutil.UnmarshalResponse[struct {
		Events []eventView `json:"events"`
	}](s.T(), rr)
	s.Require().NotEmpty(body.Events)
	s.Equal("resume_ingested", body.Events[0].Action)
	s.NotEmpty(body.Events[0].RequestID)
}

func (s *RouterSuite) TestUnknownRoute() {
	rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodGet, "/nope", ""))
	s.Equal(http.StatusNotFound, rr.Code)
}
