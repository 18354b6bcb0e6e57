package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verihire/internal/trustscore/models"
	"verihire/pkg/domain"
	dErrors "verihire/pkg/domain-errors"
	"verihire/pkg/platform/httputil"
	"verihire/pkg/requestcontext"
)

type Service interface {
	Compute(ctx context.Context, candidateID domain.CandidateID) (*models.TrustScore, error)
	History(ctx context.Context, candidateID domain.CandidateID) ([]models.TrustScore, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/candidates/{candidateId}/trust-score", h.handleCompute)
	r.Get("/candidates/{candidateId}/trust-scores", h.handleHistory)
}

func (h *Handler) handleCompute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, err := domain.ParseCandidateID(chi.URLParam(r, "candidateId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	score, err := h.service.Compute(ctx, candidateID)
	if err != nil {
		h.logError(ctx, "failed to compute trust score", err, "candidate_id", candidateID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, score)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, err := domain.ParseCandidateID(chi.URLParam(r, "candidateId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	scores, err := h.service.History(ctx, candidateID)
	if err != nil {
		h.logError(ctx, "failed to list trust scores", err, "candidate_id", candidateID.String())
		httputil.WriteError(w, err)
		return
	}
	if scores == nil {
		scores = []models.TrustScore{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"scores": scores})
}

func (h *Handler) logError(ctx context.Context, msg string, err error, attrs ...any) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	args := append([]any{"request_id", requestcontext.RequestID(ctx), "error", err}, attrs...)
	h.logger.Log(ctx, level, msg, args...)
}
