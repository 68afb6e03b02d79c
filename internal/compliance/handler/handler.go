package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tessera/internal/compliance/models"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/httputil"
	"tessera/pkg/requestcontext"
)

type Service interface {
	Status(ctx context.Context, party domain.PartyID) (*models.Approval, error)
	Approve(ctx context.Context, caller, party domain.PartyID, reason string) (*models.Approval, error)
	Revoke(ctx context.Context, caller, party domain.PartyID, reason string) (*models.Approval, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/compliance/{party}", h.handleStatus)
	r.Post("/admin/compliance/{party}/approve", h.handleApprove)
	r.Post("/admin/compliance/{party}/revoke", h.handleRevoke)
}

// ChangeRequest is the optional body of approve and revoke.
type ChangeRequest struct {
	Reason string `json:"reason"`
}

func (r *ChangeRequest) Validate() error {
	r.Reason = strings.TrimSpace(r.Reason)
	if len(r.Reason) > 500 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 500 characters")
	}
	return nil
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	party, err := domain.ParsePartyID(chi.URLParam(r, "party"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	approval, err := h.service.Status(r.Context(), party)
	if err != nil {
		h.fail(w, r, "failed to load compliance status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, approval)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.service.Approve)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.service.Revoke)
}

func (h *Handler) change(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, caller, party domain.PartyID, reason string) (*models.Approval, error)) {
	ctx := r.Context()
	party, err := domain.ParsePartyID(chi.URLParam(r, "party"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	reason := ""
	if r.ContentLength != 0 {
		req, ok := httputil.DecodeAndPrepare[ChangeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		reason = req.Reason
	}

	approval, err := apply(ctx, requestcontext.PartyID(ctx), party, reason)
	if err != nil {
		h.fail(w, r, "failed to change compliance status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, approval)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if h.logger != nil {
		h.logger.WarnContext(r.Context(), msg,
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
