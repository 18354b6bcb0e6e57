// Package status assembles the candidate polling view. Every read is side
// effect free.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	candidatemodels "verihire/internal/candidate/models"
	credentialmodels "verihire/internal/credential/models"
	trustmodels "verihire/internal/trustscore/models"
	verificationmodels "verihire/internal/verification/models"
	"verihire/pkg/domain"
	dErrors "verihire/pkg/domain-errors"
	"verihire/pkg/platform/httputil"
	"verihire/pkg/requestcontext"
)

type ProfileReader interface {
	Profile(ctx context.Context, id domain.CandidateID) (*candidatemodels.Profile, error)
}

type VerificationReader interface {
	List(ctx context.Context, candidateID domain.CandidateID) ([]verificationmodels.RequestView, error)
}

type ScoreReader interface {
	Latest(ctx context.Context, candidateID domain.CandidateID) (*trustmodels.TrustScore, error)
}

type CredentialReader interface {
	Get(ctx context.Context, candidateID domain.CandidateID) (*credentialmodels.Credential, error)
}

// View is the whole pipeline state of one candidate.
type View struct {
	Candidate   *candidatemodels.Candidate         `json:"candidate"`
	WorkHistory []candidatemodels.WorkHistoryEntry `json:"work_history"`
	Education   []candidatemodels.Education        `json:"education"`
	Requests    []verificationmodels.RequestView   `json:"verification_requests"`
	Stats       verificationmodels.Stats           `json:"stats"`
	TrustScore  *trustmodels.TrustScore            `json:"trust_score,omitempty"`
	Credential  *credentialmodels.Credential       `json:"credential,omitempty"`
}

type Service struct {
	profiles      ProfileReader
	verifications VerificationReader
	scores        ScoreReader
	credentials   CredentialReader
}

func NewService(profiles ProfileReader, verifications VerificationReader, scores ScoreReader, credentials CredentialReader) *Service {
	return &Service{
		profiles:      profiles,
		verifications: verifications,
		scores:        scores,
		credentials:   credentials,
	}
}

// Get reads the candidate's status. A missing score or credential is not an
// error.
func (s *Service) Get(ctx context.Context, candidateID domain.CandidateID) (*View, error) {
	profile, err := s.profiles.Profile(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	requests, err := s.verifications.List(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	view := &View{
		Candidate:   profile.Candidate,
		WorkHistory: profile.WorkHistory,
		Education:   profile.Education,
		Requests:    requests,
		Stats:       verificationmodels.Tally(requests),
	}
	if view.TrustScore, err = optional(s.scores.Latest(ctx, candidateID)); err != nil {
		return nil, err
	}
	if view.Credential, err = optional(s.credentials.Get(ctx, candidateID)); err != nil {
		return nil, err
	}
	return view, nil
}

func optional[T any](v *T, err error) (*T, error) {
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, nil
	}
	return v, err
}

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/candidates/{candidateId}/status", h.handleGet)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, err := domain.ParseCandidateID(chi.URLParam(r, "candidateId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.service.Get(ctx, candidateID)
	if err != nil {
		level := slog.LevelWarn
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, "failed to load status",
			"request_id", requestcontext.RequestID(ctx),
			"candidate_id", candidateID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}
