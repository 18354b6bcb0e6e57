package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the verification pipeline.
// All methods are safe on a nil receiver so services can run without metrics.
type Metrics struct {
	ResumesParsed        prometheus.Counter
	PlaceholderEntries   prometheus.Counter
	RequestsIssued       *prometheus.CounterVec
	OutcomesRecorded     *prometheus.CounterVec
	ProofsRejected       *prometheus.CounterVec
	TrustScores          *prometheus.CounterVec
	TrustScoreValue      prometheus.Histogram
	CredentialsIssued    *prometheus.CounterVec
	ExpiredRequestsSwept prometheus.Counter
	CollaboratorDuration *prometheus.HistogramVec
	HTTPRequestDuration  *prometheus.HistogramVec
	CircuitStateChanges  *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ResumesParsed: f.NewCounter(prometheus.CounterOpts{
			Name: "verihire_resumes_parsed_total",
			Help: "Total number of résumés parsed",
		}),
		PlaceholderEntries: f.NewCounter(prometheus.CounterOpts{
			Name: "verihire_resume_placeholder_entries_total",
			Help: "Work-history entries emitted as placeholders because nothing was recognised",
		}),
		RequestsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verihire_verification_requests_issued_total",
			Help: "Verification requests issued, by dispatch result",
		}, []string{"dispatch"}),
		OutcomesRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verihire_verification_outcomes_recorded_total",
			Help: "Verification outcomes recorded, by verdict",
		}, []string{"verified"}),
		ProofsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verihire_proofs_rejected_total",
			Help: "Proof submissions rejected, by reason",
		}, []string{"reason"}),
		TrustScores: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verihire_trust_scores_computed_total",
			Help: "Trust scores computed, by strategy source tag",
		}, []string{"source"}),
		TrustScoreValue: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "verihire_trust_score_value",
			Help:    "Distribution of computed trust scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		CredentialsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verihire_credentials_issued_total",
			Help: "Credential issue calls, by result (minted or existing)",
		}, []string{"result"}),
		ExpiredRequestsSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "verihire_expired_requests_swept_total",
			Help: "Requests whose validity window elapsed and were flagged by the sweep",
		}),
		CollaboratorDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verihire_collaborator_call_duration_seconds",
			Help:    "Latency of outbound collaborator calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"collaborator", "outcome"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verihire_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		CircuitStateChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verihire_circuit_state_changes_total",
			Help: "Circuit breaker transitions",
		}, []string{"breaker", "state"}),
	}
}

func (m *Metrics) IncResumesParsed(placeholders int) {
	if m == nil {
		return
	}
	m.ResumesParsed.Inc()
	m.PlaceholderEntries.Add(float64(placeholders))
}

func (m *Metrics) IncRequestsIssued(dispatched bool) {
	if m == nil {
		return
	}
	label := "failed"
	if dispatched {
		label = "sent"
	}
	m.RequestsIssued.WithLabelValues(label).Inc()
}

func (m *Metrics) IncOutcomesRecorded(verified bool) {
	if m == nil {
		return
	}
	m.OutcomesRecorded.WithLabelValues(strconv.FormatBool(verified)).Inc()
}

func (m *Metrics) IncProofsRejected(reason string) {
	if m == nil {
		return
	}
	m.ProofsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveTrustScore(source string, score int) {
	if m == nil {
		return
	}
	m.TrustScores.WithLabelValues(source).Inc()
	m.TrustScoreValue.Observe(float64(score))
}

func (m *Metrics) IncCredentialsIssued(result string) {
	if m == nil {
		return
	}
	m.CredentialsIssued.WithLabelValues(result).Inc()
}

func (m *Metrics) AddExpiredSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ExpiredRequestsSwept.Add(float64(n))
}

func (m *Metrics) ObserveCollaborator(collaborator string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.CollaboratorDuration.WithLabelValues(collaborator, outcome).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) IncCircuitChange(breaker, state string) {
	if m == nil {
		return
	}
	m.CircuitStateChanges.WithLabelValues(breaker, state).Inc()
}
