package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verihire/internal/verification/models"
	"verihire/pkg/domain"
	dErrors "verihire/pkg/domain-errors"
	"verihire/pkg/platform/httputil"
	"verihire/pkg/requestcontext"
)

// Service is the verification surface the HTTP layer needs.
type Service interface {
	IssueBatch(ctx context.Context, candidateID domain.CandidateID, batch models.BatchIssueRequest) (*models.BatchIssueResult, error)
	List(ctx context.Context, candidateID domain.CandidateID) ([]models.RequestView, error)
	Resend(ctx context.Context, id domain.VerificationID) (*models.IssueResult, error)
	Resolve(ctx context.Context, raw string) (*models.Resolution, error)
	Submit(ctx context.Context, req models.SubmitRequest) (*models.SubmitResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/candidates/{candidateId}/verification-requests", h.handleIssue)
	r.Get("/candidates/{candidateId}/verification-requests", h.handleList)
	r.Post("/verification-requests/{verificationId}/resend", h.handleResend)
	r.Get("/verifications/resolve", h.handleResolve)
	r.Post("/verifications/submit", h.handleSubmit)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, err := domain.ParseCandidateID(chi.URLParam(r, "candidateId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.BatchIssueRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.service.IssueBatch(ctx, candidateID, *req)
	if err != nil {
		h.logError(ctx, "failed to issue verification requests", err, "candidate_id", candidateID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, err := domain.ParseCandidateID(chi.URLParam(r, "candidateId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	views, err := h.service.List(ctx, candidateID)
	if err != nil {
		h.logError(ctx, "failed to list verification requests", err, "candidate_id", candidateID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": views})
}

func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseVerificationID(chi.URLParam(r, "verificationId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.Resend(ctx, id)
	if err != nil {
		h.logError(ctx, "failed to resend verification request", err, "verification_id", id.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := r.URL.Query().Get("token")
	if raw == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "token is required"))
		return
	}
	resolution, err := h.service.Resolve(ctx, raw)
	if err != nil {
		h.logError(ctx, "failed to resolve verification token", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resolution)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.SubmitRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.service.Submit(ctx, *req)
	if err != nil {
		h.logError(ctx, "failed to submit verification", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) logError(ctx context.Context, msg string, err error, attrs ...any) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	args := append([]any{"request_id", requestcontext.RequestID(ctx), "error", err}, attrs...)
	h.logger.Log(ctx, level, msg, args...)
}
