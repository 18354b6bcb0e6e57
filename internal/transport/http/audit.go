package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"verihire/pkg/domain"
	audit "verihire/pkg/platform/audit"
	"verihire/pkg/platform/httputil"
	"verihire/pkg/requestcontext"
)

// AuditLister reads a candidate's audit trail, oldest first.
type AuditLister interface {
	List(ctx context.Context, candidateID string) ([]audit.Event, error)
}

type eventView struct {
	Action         string    `json:"action"`
	Category       string    `json:"category"`
	Decision       string    `json:"decision,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Subject        string    `json:"subject,omitempty"`
	VerificationID string    `json:"verification_id,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// AuditHandler serves the per-candidate audit trail.
type AuditHandler struct {
	lister AuditLister
	logger *slog.Logger
}

func NewAuditHandler(lister AuditLister, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{lister: lister, logger: logger}
}

func (h *AuditHandler) Register(r chi.Router) {
	r.Get("/candidates/{candidateId}/audit-events", h.handleList)
}

func (h *AuditHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, err := domain.ParseCandidateID(chi.URLParam(r, "candidateId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.lister.List(ctx, candidateID.String())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit events",
			"request_id", requestcontext.RequestID(ctx),
			"candidate_id", candidateID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, eventView{
			Action:         e.Action,
			Category:       string(e.Category),
			Decision:       e.Decision,
			Reason:         e.Reason,
			Subject:        e.Subject,
			VerificationID: e.VerificationID,
			RequestID:      e.RequestID,
			Timestamp:      e.Timestamp,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": views})
}
