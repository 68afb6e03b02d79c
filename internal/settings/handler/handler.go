package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tessera/internal/settings/models"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/httputil"
	"tessera/pkg/requestcontext"
)

type Service interface {
	Current(ctx context.Context) (*models.Settings, error)
	SetFees(ctx context.Context, caller domain.PartyID, platformBP, managerBP int64) (*models.Settings, error)
	Pause(ctx context.Context, caller domain.PartyID) (*models.Settings, error)
	Unpause(ctx context.Context, caller domain.PartyID) (*models.Settings, error)
}

// Handler serves the operator settings endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterAdmin mounts the routes on a router already guarded by the admin token check.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/settings", h.handleGet)
	r.Put("/admin/settings/fees", h.handleSetFees)
	r.Post("/admin/pause", h.handlePause)
	r.Post("/admin/unpause", h.handleUnpause)
}

type SetFeesRequest struct {
	PlatformFeeBP *int64 `json:"platform_fee_bp"`
	ManagerFeeBP  *int64 `json:"manager_fee_bp"`
}

func (r *SetFeesRequest) Validate() error {
	if r.PlatformFeeBP == nil || r.ManagerFeeBP == nil {
		return dErrors.New(dErrors.CodeValidation, "platform_fee_bp and manager_fee_bp are required")
	}
	return nil
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	current, err := h.service.Current(r.Context())
	if err != nil {
		h.fail(w, r, "failed to load settings", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, current)
}

func (h *Handler) handleSetFees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[SetFeesRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	updated, err := h.service.SetFees(ctx, requestcontext.PartyID(ctx), *req.PlatformFeeBP, *req.ManagerFeeBP)
	if err != nil {
		h.fail(w, r, "failed to update fees", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	updated, err := h.service.Pause(ctx, requestcontext.PartyID(ctx))
	if err != nil {
		h.fail(w, r, "failed to pause platform", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleUnpause(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	updated, err := h.service.Unpause(ctx, requestcontext.PartyID(ctx))
	if err != nil {
		h.fail(w, r, "failed to unpause platform", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if h.logger != nil {
		level := slog.LevelWarn
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, msg,
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
