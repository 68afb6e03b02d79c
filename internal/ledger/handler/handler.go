package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	assetmodels "tessera/internal/asset/models"
	"tessera/internal/ledger/models"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/httputil"
	"tessera/pkg/requestcontext"
)

const defaultInvestorPage = 100

type Service interface {
	Issue(ctx context.Context, caller domain.PartyID, req models.IssueRequest) (*assetmodels.Asset, error)
	Purchase(ctx context.Context, asset domain.AssetID, buyer domain.PartyID, shares, payment int64) (*models.PurchaseResult, error)
	Sell(ctx context.Context, asset domain.AssetID, holder domain.PartyID, shares int64) (*models.SaleResult, error)
	Transfer(ctx context.Context, asset domain.AssetID, from, to domain.PartyID, shares int64) (*models.TransferResult, error)
	GetBook(ctx context.Context, asset domain.AssetID) (*models.Book, error)
	BalanceOf(ctx context.Context, asset domain.AssetID, holder domain.PartyID) (int64, error)
	OwnershipPercentage(ctx context.Context, asset domain.AssetID, holder domain.PartyID) (int64, error)
	Investors(ctx context.Context, asset domain.AssetID, offset, limit int) ([]*models.Holding, error)
	InvestorCount(ctx context.Context, asset domain.AssetID) (int, error)
	Investments(ctx context.Context, asset domain.AssetID, holder domain.PartyID) ([]*models.Investment, error)
	PortfolioOf(ctx context.Context, party domain.PartyID) ([]models.Position, error)
	VerifyConservation(ctx context.Context, asset domain.AssetID) (*models.Conservation, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the investor routes. The caller is the buyer, seller or sender.
func (h *Handler) Register(r chi.Router) {
	r.Post("/assets/{id}/purchase", h.handlePurchase)
	r.Post("/assets/{id}/sell", h.handleSell)
	r.Post("/assets/{id}/transfer", h.handleTransfer)
	r.Get("/assets/{id}/book", h.handleBook)
	r.Get("/assets/{id}/holders/{party}", h.handleHolding)
	r.Get("/assets/{id}/investors", h.handleInvestors)
	r.Get("/assets/{id}/investments/{party}", h.handleInvestments)
	r.Get("/parties/{party}/portfolio", h.handlePortfolio)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/assets", h.handleIssue)
	r.Get("/admin/assets/{id}/conservation", h.handleConservation)
}

type PurchaseRequest struct {
	Shares  int64 `json:"shares"`
	Payment int64 `json:"payment"`
}

func (r *PurchaseRequest) Validate() error {
	if r.Shares <= 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "shares must be positive")
	}
	if r.Payment < 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "payment must not be negative")
	}
	return nil
}

type SellRequest struct {
	Shares int64 `json:"shares"`
}

func (r *SellRequest) Validate() error {
	if r.Shares <= 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "shares must be positive")
	}
	return nil
}

type TransferRequest struct {
	To     domain.PartyID `json:"to"`
	Shares int64          `json:"shares"`
}

func (r *TransferRequest) Validate() error {
	if r.To.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "to is required")
	}
	if r.Shares <= 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "shares must be positive")
	}
	return nil
}

type holdingResponse struct {
	AssetID     domain.AssetID `json:"asset_id"`
	PartyID     domain.PartyID `json:"party_id"`
	Shares      int64          `json:"shares"`
	OwnershipBP int64          `json:"ownership_bp"`
}

type investorsResponse struct {
	Investors []*models.Holding `json:"investors"`
	Total     int               `json:"total"`
	Offset    int               `json:"offset"`
	Limit     int               `json:"limit"`
}

type investmentsResponse struct {
	Investments []*models.Investment `json:"investments"`
}

type portfolioResponse struct {
	PartyID   domain.PartyID    `json:"party_id"`
	Positions []models.Position `json:"positions"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.IssueRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	asset, err := h.service.Issue(ctx, requestcontext.PartyID(ctx), *req)
	if err != nil {
		h.fail(w, r, "failed to issue asset", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, asset)
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[PurchaseRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.service.Purchase(ctx, id, requestcontext.PartyID(ctx), req.Shares, req.Payment)
	if err != nil {
		h.fail(w, r, "purchase rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSell(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SellRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.service.Sell(ctx, id, requestcontext.PartyID(ctx), req.Shares)
	if err != nil {
		h.fail(w, r, "sale rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.service.Transfer(ctx, id, requestcontext.PartyID(ctx), req.To, req.Shares)
	if err != nil {
		h.fail(w, r, "transfer rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		h.fail(w, r, "failed to load ledger book", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) handleHolding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	party, ok := h.partyID(w, r)
	if !ok {
		return
	}
	shares, err := h.service.BalanceOf(ctx, id, party)
	if err != nil {
		h.fail(w, r, "failed to load balance", err)
		return
	}
	bp, err := h.service.OwnershipPercentage(ctx, id, party)
	if err != nil {
		h.fail(w, r, "failed to compute ownership", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, holdingResponse{AssetID: id, PartyID: party, Shares: shares, OwnershipBP: bp})
}

func (h *Handler) handleInvestors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultInvestorPage)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	investors, err := h.service.Investors(ctx, id, offset, limit)
	if err != nil {
		h.fail(w, r, "failed to list investors", err)
		return
	}
	total, err := h.service.InvestorCount(ctx, id)
	if err != nil {
		h.fail(w, r, "failed to count investors", err)
		return
	}
	if investors == nil {
		investors = []*models.Holding{}
	}
	httputil.WriteJSON(w, http.StatusOK, investorsResponse{Investors: investors, Total: total, Offset: offset, Limit: limit})
}

func (h *Handler) handleInvestments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	party, ok := h.partyID(w, r)
	if !ok {
		return
	}
	investments, err := h.service.Investments(r.Context(), id, party)
	if err != nil {
		h.fail(w, r, "failed to list investments", err)
		return
	}
	if investments == nil {
		investments = []*models.Investment{}
	}
	httputil.WriteJSON(w, http.StatusOK, investmentsResponse{Investments: investments})
}

func (h *Handler) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	party, ok := h.partyID(w, r)
	if !ok {
		return
	}
	positions, err := h.service.PortfolioOf(r.Context(), party)
	if err != nil {
		h.fail(w, r, "failed to load portfolio", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, portfolioResponse{PartyID: party, Positions: positions})
}

func (h *Handler) handleConservation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	result, err := h.service.VerifyConservation(r.Context(), id)
	if err != nil {
		h.fail(w, r, "conservation check failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) assetID(w http.ResponseWriter, r *http.Request) (domain.AssetID, bool) {
	id, err := domain.ParseAssetID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.AssetID{}, false
	}
	return id, true
}

func (h *Handler) partyID(w http.ResponseWriter, r *http.Request) (domain.PartyID, bool) {
	party, err := domain.ParsePartyID(chi.URLParam(r, "party"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.PartyID{}, false
	}
	return party, true
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, key+" must be an integer")
	}
	return n, nil
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
