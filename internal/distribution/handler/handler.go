package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tessera/internal/distribution/models"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/httputil"
	"tessera/pkg/requestcontext"
)

type Service interface {
	DepositRevenue(ctx context.Context, asset domain.AssetID, depositor domain.PartyID, amount int64) (*models.Custody, error)
	CreateDistribution(ctx context.Context, asset domain.AssetID, caller domain.PartyID, amount int64) (*models.Distribution, error)
	ClaimDistribution(ctx context.Context, id domain.DistributionID, caller domain.PartyID) (*models.Allocation, error)
	BatchDistribute(ctx context.Context, id domain.DistributionID, caller domain.PartyID, offset, limit int) (*models.BatchResult, error)
	Get(ctx context.Context, id domain.DistributionID) (*models.Distribution, error)
	ListByAsset(ctx context.Context, asset domain.AssetID) ([]*models.Distribution, error)
	ListByHolder(ctx context.Context, party domain.PartyID) ([]models.HolderDistribution, error)
	AllocationOf(ctx context.Context, id domain.DistributionID, party domain.PartyID) (*models.Allocation, error)
	Custody(ctx context.Context, asset domain.AssetID) (*models.Custody, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the manager and holder routes. Authorization by role
// happens in the service against the calling party.
func (h *Handler) Register(r chi.Router) {
	r.Post("/assets/{id}/revenue", h.handleDeposit)
	r.Post("/assets/{id}/distributions", h.handleCreate)
	r.Get("/assets/{id}/distributions", h.handleListByAsset)
	r.Get("/assets/{id}/custody", h.handleCustody)
	r.Get("/distributions/{id}", h.handleGet)
	r.Post("/distributions/{id}/claim", h.handleClaim)
	r.Get("/distributions/{id}/allocations/{party}", h.handleAllocation)
	r.Get("/parties/{party}/distributions", h.handleListByHolder)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/distributions/{id}/batch", h.handleBatch)
}

type AmountRequest struct {
	Amount int64 `json:"amount"`
}

func (r *AmountRequest) Validate() error {
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
	}
	return nil
}

type BatchRequest struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

func (r *BatchRequest) Validate() error {
	if r.Offset < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "offset must not be negative")
	}
	if r.Limit <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "limit must be positive")
	}
	return nil
}

type distributionsResponse struct {
	Distributions []*models.Distribution `json:"distributions"`
}

type holderDistributionsResponse struct {
	PartyID       domain.PartyID              `json:"party_id"`
	Distributions []models.HolderDistribution `json:"distributions"`
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, err := domain.ParseAssetID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	custody, err := h.service.DepositRevenue(ctx, assetID, requestcontext.PartyID(ctx), req.Amount)
	if err != nil {
		h.fail(w, r, "deposit rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, custody)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, err := domain.ParseAssetID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	d, err := h.service.CreateDistribution(ctx, assetID, requestcontext.PartyID(ctx), req.Amount)
	if err != nil {
		h.fail(w, r, "distribution rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, d)
}

func (h *Handler) handleListByAsset(w http.ResponseWriter, r *http.Request) {
	assetID, err := domain.ParseAssetID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.service.ListByAsset(r.Context(), assetID)
	if err != nil {
		h.fail(w, r, "failed to list distributions", err)
		return
	}
	if list == nil {
		list = []*models.Distribution{}
	}
	httputil.WriteJSON(w, http.StatusOK, distributionsResponse{Distributions: list})
}

func (h *Handler) handleCustody(w http.ResponseWriter, r *http.Request) {
	assetID, err := domain.ParseAssetID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	custody, err := h.service.Custody(r.Context(), assetID)
	if err != nil {
		h.fail(w, r, "failed to load custody", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, custody)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseDistributionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "failed to load distribution", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseDistributionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	alloc, err := h.service.ClaimDistribution(ctx, id, requestcontext.PartyID(ctx))
	if err != nil {
		h.fail(w, r, "claim rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alloc)
}

func (h *Handler) handleAllocation(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseDistributionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	party, err := domain.ParsePartyID(chi.URLParam(r, "party"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	alloc, err := h.service.AllocationOf(r.Context(), id, party)
	if err != nil {
		h.fail(w, r, "failed to load allocation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alloc)
}

func (h *Handler) handleListByHolder(w http.ResponseWriter, r *http.Request) {
	party, err := domain.ParsePartyID(chi.URLParam(r, "party"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.service.ListByHolder(r.Context(), party)
	if err != nil {
		h.fail(w, r, "failed to list holder distributions", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, holderDistributionsResponse{PartyID: party, Distributions: list})
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseDistributionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.service.BatchDistribute(ctx, id, requestcontext.PartyID(ctx), req.Offset, req.Limit)
	if err != nil {
		h.fail(w, r, "batch distribution rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if h.logger != nil {
		h.logger.WarnContext(r.Context(), msg,
			"request_id", requestcontext.RequestID(r.Context()),
			"code", dErrors.CodeOf(err),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
