package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"verihire/internal/candidate/models"
	"verihire/internal/resume"
	"verihire/pkg/domain"
	dErrors "verihire/pkg/domain-errors"
	"verihire/pkg/platform/httputil"
	"verihire/pkg/requestcontext"
)

const maxUploadBytes = resume.MaxUploadBytes + 1<<20

// Service is the candidate surface the HTTP layer needs.
type Service interface {
	Ingest(ctx context.Context, id domain.CandidateID, text string, extraSkills []string) (*models.IngestResult, error)
	Profile(ctx context.Context, id domain.CandidateID) (*models.Profile, error)
	EditEntry(ctx context.Context, id domain.CandidateID, entryID domain.EntryID, update models.WorkHistoryUpdate) (*models.EditResult, error)
	UpdateProfiles(ctx context.Context, id domain.CandidateID, update models.ProfilesUpdate) (*models.Candidate, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/candidates/{candidateId}/resume", h.handleIngest)
	r.Get("/candidates/{candidateId}", h.handleProfile)
	r.Put("/candidates/{candidateId}/profiles", h.handleUpdateProfiles)
	r.Put("/candidates/{candidateId}/work-history/{entryId}", h.handleEditEntry)
}

// handleIngest accepts either a JSON body with extracted text or a multipart
// upload in the "resume" field.
func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	candidateID, ok := h.candidateID(w, r)
	if !ok {
		return
	}

	var (
		text   string
		skills []string
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		extracted, err := h.readUpload(w, r)
		if err != nil {
			h.logger.WarnContext(ctx, "résumé upload rejected",
				"request_id", requestID,
				"candidate_id", candidateID.String(),
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		text = extracted
	} else {
		req, ok := httputil.DecodeAndPrepare[models.IngestRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		text, skills = req.Text, req.Skills
	}

	result, err := h.service.Ingest(ctx, candidateID, text, skills)
	if err != nil {
		h.logError(ctx, "failed to ingest résumé", candidateID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid multipart upload")
	}
	file, header, err := r.FormFile("resume")
	if err != nil {
		return "", dErrors.New(dErrors.CodeValidation, "resume file is required")
	}
	defer file.Close()

	text, err := resume.ExtractText(file, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, resume.ErrUnsupportedType) {
			return "", dErrors.New(dErrors.CodeValidation, "unsupported résumé file type")
		}
		return "", dErrors.Wrap(err, dErrors.CodeValidation, "could not read résumé file")
	}
	if strings.TrimSpace(text) == "" {
		return "", dErrors.New(dErrors.CodeValidation, "résumé file contains no text")
	}
	return text, nil
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	candidateID, ok := h.candidateID(w, r)
	if !ok {
		return
	}
	profile, err := h.service.Profile(r.Context(), candidateID)
	if err != nil {
		h.logError(r.Context(), "failed to load profile", candidateID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleUpdateProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, ok := h.candidateID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ProfilesUpdate](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	candidate, err := h.service.UpdateProfiles(ctx, candidateID, *req)
	if err != nil {
		h.logError(ctx, "failed to update profiles", candidateID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, candidate)
}

func (h *Handler) handleEditEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, ok := h.candidateID(w, r)
	if !ok {
		return
	}
	entryID, err := domain.ParseEntryID(chi.URLParam(r, "entryId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.WorkHistoryUpdate](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.service.EditEntry(ctx, candidateID, entryID, *req)
	if err != nil {
		h.logError(ctx, "failed to edit work history entry", candidateID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) candidateID(w http.ResponseWriter, r *http.Request) (domain.CandidateID, bool) {
	id, err := domain.ParseCandidateID(chi.URLParam(r, "candidateId"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return id, true
}

func (h *Handler) logError(ctx context.Context, msg string, candidateID domain.CandidateID, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"candidate_id", candidateID.String(),
		"error", err,
	)
}
