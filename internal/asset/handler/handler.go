package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tessera/internal/asset/models"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/httputil"
	"tessera/pkg/requestcontext"
)

type Service interface {
	Get(ctx context.Context, id domain.AssetID) (*models.Asset, error)
	List(ctx context.Context) ([]*models.Asset, error)
	SetStatus(ctx context.Context, caller domain.PartyID, id domain.AssetID, status models.Status) (*models.Asset, error)
	UpdatePrice(ctx context.Context, caller domain.PartyID, id domain.AssetID, price int64) (*models.Asset, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the authenticated read routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/assets", h.handleList)
	r.Get("/assets/{id}", h.handleGet)
}

// RegisterAdmin mounts the operator routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/assets/{id}/status", h.handleSetStatus)
	r.Post("/admin/assets/{id}/price", h.handleUpdatePrice)
}

// RegisterManager mounts the manager-facing price route.
func (h *Handler) RegisterManager(r chi.Router) {
	r.Post("/assets/{id}/price", h.handleUpdatePrice)
}

type StatusRequest struct {
	Status models.Status `json:"status"`
}

func (r *StatusRequest) Validate() error {
	if !r.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "status must be active or paused")
	}
	return nil
}

type PriceRequest struct {
	PricePerShare int64 `json:"price_per_share"`
}

func (r *PriceRequest) Validate() error {
	if r.PricePerShare <= 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "price_per_share must be positive")
	}
	return nil
}

type listResponse struct {
	Assets []*models.Asset `json:"assets"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	assets, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list assets", err)
		return
	}
	if assets == nil {
		assets = []*models.Asset{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Assets: assets})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseAssetID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	asset, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "failed to load asset", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, asset)
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseAssetID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[StatusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	asset, err := h.service.SetStatus(ctx, requestcontext.PartyID(ctx), id, req.Status)
	if err != nil {
		h.fail(w, r, "failed to change asset status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, asset)
}

func (h *Handler) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseAssetID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[PriceRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	asset, err := h.service.UpdatePrice(ctx, requestcontext.PartyID(ctx), id, req.PricePerShare)
	if err != nil {
		h.fail(w, r, "failed to update asset price", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, asset)
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
