package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verihire/internal/credential/models"
	"verihire/pkg/domain"
	dErrors "verihire/pkg/domain-errors"
	"verihire/pkg/platform/httputil"
	"verihire/pkg/requestcontext"
)

type Service interface {
	Issue(ctx context.Context, candidateID domain.CandidateID, req models.IssueRequest) (*models.Credential, error)
	Get(ctx context.Context, candidateID domain.CandidateID) (*models.Credential, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/candidates/{candidateId}/credential", h.handleIssue)
	r.Get("/candidates/{candidateId}/credential", h.handleGet)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, err := domain.ParseCandidateID(chi.URLParam(r, "candidateId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req := &models.IssueRequest{}
	if r.ContentLength != 0 {
		var ok bool
		req, ok = httputil.DecodeAndPrepare[models.IssueRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
	}
	credential, err := h.service.Issue(ctx, candidateID, *req)
	if err != nil {
		h.logError(ctx, "failed to issue credential", err, "candidate_id", candidateID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, credential)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, err := domain.ParseCandidateID(chi.URLParam(r, "candidateId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	credential, err := h.service.Get(ctx, candidateID)
	if err != nil {
		h.logError(ctx, "failed to load credential", err, "candidate_id", candidateID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, credential)
}

func (h *Handler) logError(ctx context.Context, msg string, err error, attrs ...any) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	args := append([]any{"request_id", requestcontext.RequestID(ctx), "error", err}, attrs...)
	h.logger.Log(ctx, level, msg, args...)
}
