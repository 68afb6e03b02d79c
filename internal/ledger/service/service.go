package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	assetmodels "tessera/internal/asset/models"
	"tessera/internal/ledger/metrics"
	"tessera/internal/ledger/models"
	"tessera/internal/payout"
	"tessera/pkg/attrs"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/audit"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
	"tessera/pkg/requestcontext"
)

// MaxInvestorPage bounds a single investor registry page.
const MaxInvestorPage = 1000

type Store interface {
	CreateBook(ctx context.Context, book *models.Book) error
	GetBook(ctx context.Context, asset domain.AssetID) (*models.Book, error)
	UpdateBook(ctx context.Context, book *models.Book) error
	GetHolding(ctx context.Context, asset domain.AssetID, party domain.PartyID) (*models.Holding, error)
	RegisterHolder(ctx context.Context, asset domain.AssetID, party domain.PartyID, at time.Time) (*models.Holding, error)
	SetShares(ctx context.Context, asset domain.AssetID, party domain.PartyID, shares int64) error
	AppendInvestment(ctx context.Context, inv *models.Investment) error
	ListInvestments(ctx context.Context, asset domain.AssetID, party domain.PartyID) ([]*models.Investment, error)
	ListHolders(ctx context.Context, asset domain.AssetID, offset, limit int) ([]*models.Holding, error)
	ListPositiveHolders(ctx context.Context, asset domain.AssetID) ([]*models.Holding, error)
	CountHolders(ctx context.Context, asset domain.AssetID) (int, error)
	SumShares(ctx context.Context, asset domain.AssetID) (int64, error)
	HoldingsByParty(ctx context.Context, party domain.PartyID) ([]*models.Holding, error)
}

// ComplianceGate decides whether a party may hold or move shares.
type ComplianceGate interface {
	IsApproved(ctx context.Context, party domain.PartyID) (bool, error)
}

// AssetRegistry owns asset identity, price and status.
type AssetRegistry interface {
	Register(ctx context.Context, asset *assetmodels.Asset) error
	Get(ctx context.Context, id domain.AssetID) (*assetmodels.Asset, error)
	NotifyAvailableSharesChanged(ctx context.Context, id domain.AssetID, available int64) error
}

type PauseGuard interface {
	EnsureNotPaused(ctx context.Context) error
}

// Payouts transfers funds out. Instructions join the caller's transaction.
type Payouts interface {
	Send(ctx context.Context, kind payout.Kind, asset domain.AssetID, party domain.PartyID, amount int64, reference string) (*payout.Instruction, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the ownership ledger. Every mutation runs under the asset lock
// in one transaction and either applies completely or not at all.
type Service struct {
	store          Store
	compliance     ComplianceGate
	registry       AssetRegistry
	payouts        Payouts
	operator       domain.PartyID
	tx             tx.Runner
	pause          PauseGuard
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithPauseGuard(guard PauseGuard) Option {
	return func(s *Service) {
		s.pause = guard
	}
}

func New(store Store, compliance ComplianceGate, registry AssetRegistry, payouts Payouts, operator domain.PartyID, opts ...Option) *Service {
	s := &Service{
		store:      store,
		compliance: compliance,
		registry:   registry,
		payouts:    payouts,
		operator:   operator,
		tracer:     otel.Tracer("tessera/ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewSharded()
	}
	return s
}

// Issue registers a new asset and opens its book with the whole supply available.
func (s *Service) Issue(ctx context.Context, caller domain.PartyID, req models.IssueRequest) (*assetmodels.Asset, error) {
	id := domain.NewAssetID()
	var issued *assetmodels.Asset
	err := s.mutate(ctx, "issue", id, func(ctx context.Context) error {
		if caller != s.operator {
			return dErrors.New(dErrors.CodeNotAuthorized, "only the platform operator may issue assets")
		}
		if err := req.Validate(); err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		asset, err := assetmodels.NewAsset(id, req.Name, req.Manager, req.TotalShares, req.PricePerShare, now)
		if err != nil {
			return err
		}
		if err := s.registry.Register(ctx, asset); err != nil {
			return err
		}
		book := &models.Book{
			AssetID:         id,
			TotalShares:     req.TotalShares,
			AvailableShares: req.TotalShares,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.store.CreateBook(ctx, book); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "ledger book already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to open ledger book")
		}
		if err := s.logAudit(ctx, audit.EventAssetIssued, req.Manager, id,
			"shares", req.TotalShares,
			"reference", asset.Name,
			"actor_id", caller,
		); err != nil {
			return err
		}
		issued = asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// Purchase moves shares from available supply to buyer against payment.
// Any payment above the cost is refunded through a payout instruction.
func (s *Service) Purchase(ctx context.Context, assetID domain.AssetID, buyer domain.PartyID, shares, payment int64) (*models.PurchaseResult, error) {
	var result *models.PurchaseResult
	err := s.mutate(ctx, "purchase", assetID, func(ctx context.Context) error {
		if shares <= 0 {
			return dErrors.New(dErrors.CodeInvalidAmount, "share amount must be positive")
		}
		if payment < 0 {
			return dErrors.New(dErrors.CodeInvalidAmount, "payment must not be negative")
		}
		asset, book, err := s.loadTradable(ctx, assetID)
		if err != nil {
			return err
		}
		if err := s.requireApproved(ctx, buyer); err != nil {
			return err
		}
		if shares > book.AvailableShares {
			return dErrors.New(dErrors.CodeInsufficientSupply, "not enough shares available")
		}
		cost, err := domain.CheckedMul(shares, asset.PricePerShare)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidAmount, "purchase cost overflows")
		}
		if payment < cost {
			return dErrors.New(dErrors.CodeInvalidAmount, "payment does not cover the purchase cost")
		}
		liquidity, err := domain.CheckedAdd(book.Liquidity, cost)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidAmount, "asset liquidity overflows")
		}

		holding, err := s.ensureHolder(ctx, assetID, buyer)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		book.AvailableShares -= shares
		book.Liquidity = liquidity
		book.UpdatedAt = now
		if err := s.store.UpdateBook(ctx, book); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update ledger book")
		}
		balance := holding.Shares + shares
		if err := s.store.SetShares(ctx, assetID, buyer, balance); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to credit buyer")
		}
		inv := &models.Investment{
			ID:            domain.NewInvestmentID(),
			AssetID:       assetID,
			PartyID:       buyer,
			Shares:        shares,
			PricePerShare: asset.PricePerShare,
			AmountPaid:    cost,
			CreatedAt:     now,
		}
		if err := s.store.AppendInvestment(ctx, inv); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record investment")
		}

		refund := payment - cost
		if refund > 0 {
			if _, err := s.payouts.Send(ctx, payout.KindRefund, assetID, buyer, refund, inv.ID.String()); err != nil {
				return err
			}
		}
		if err := s.registry.NotifyAvailableSharesChanged(ctx, assetID, book.AvailableShares); err != nil {
			return err
		}
		if err := s.logAudit(ctx, audit.EventSharesPurchased, buyer, assetID,
			"shares", shares,
			"reference", inv.ID,
		); err != nil {
			return err
		}
		result = &models.PurchaseResult{
			Investment: inv,
			Cost:       cost,
			Refund:     refund,
			Balance:    balance,
			Available:  book.AvailableShares,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddPurchased(shares)
	return result, nil
}

// Sell returns holder shares to available supply and pays proceeds at the
// current price out of the asset's purchase liquidity.
func (s *Service) Sell(ctx context.Context, assetID domain.AssetID, holder domain.PartyID, shares int64) (*models.SaleResult, error) {
	var result *models.SaleResult
	err := s.mutate(ctx, "sell", assetID, func(ctx context.Context) error {
		if shares <= 0 {
			return dErrors.New(dErrors.CodeInvalidAmount, "share amount must be positive")
		}
		asset, book, err := s.loadTradable(ctx, assetID)
		if err != nil {
			return err
		}
		if err := s.requireApproved(ctx, holder); err != nil {
			return err
		}
		balance, err := s.balance(ctx, assetID, holder)
		if err != nil {
			return err
		}
		if balance < shares {
			return dErrors.New(dErrors.CodeInsufficientBalance, "holder balance is insufficient")
		}
		proceeds, err := domain.CheckedMul(shares, asset.PricePerShare)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidAmount, "sale proceeds overflow")
		}
		if book.Liquidity < proceeds {
			return dErrors.New(dErrors.CodeInsufficientLiquidity, "asset cannot fund the sale proceeds")
		}

		book.AvailableShares += shares
		book.Liquidity -= proceeds
		book.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.UpdateBook(ctx, book); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update ledger book")
		}
		if err := s.store.SetShares(ctx, assetID, holder, balance-shares); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to debit holder")
		}
		if _, err := s.payouts.Send(ctx, payout.KindSaleProceeds, assetID, holder, proceeds, "sale"); err != nil {
			return err
		}
		if err := s.registry.NotifyAvailableSharesChanged(ctx, assetID, book.AvailableShares); err != nil {
			return err
		}
		if err := s.logAudit(ctx, audit.EventSharesSold, holder, assetID,
			"shares", shares,
			"proceeds", proceeds,
		); err != nil {
			return err
		}
		result = &models.SaleResult{
			Shares:    shares,
			Proceeds:  proceeds,
			Balance:   balance - shares,
			Available: book.AvailableShares,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddSold(shares)
	return result, nil
}

// Transfer moves shares between two approved parties. The recipient joins
// the investor registry if new.
func (s *Service) Transfer(ctx context.Context, assetID domain.AssetID, from, to domain.PartyID, shares int64) (*models.TransferResult, error) {
	var result *models.TransferResult
	err := s.mutate(ctx, "transfer", assetID, func(ctx context.Context) error {
		if shares <= 0 {
			return dErrors.New(dErrors.CodeInvalidAmount, "share amount must be positive")
		}
		if to.IsNil() {
			return dErrors.New(dErrors.CodeInvalidInput, "recipient is required")
		}
		if from == to {
			return dErrors.New(dErrors.CodeInvalidInput, "cannot transfer shares to the same party")
		}
		if _, _, err := s.loadTradable(ctx, assetID); err != nil {
			return err
		}
		if err := s.requireApproved(ctx, from); err != nil {
			return err
		}
		if err := s.requireApproved(ctx, to); err != nil {
			return err
		}
		fromBalance, err := s.balance(ctx, assetID, from)
		if err != nil {
			return err
		}
		if fromBalance < shares {
			return dErrors.New(dErrors.CodeInsufficientBalance, "sender balance is insufficient")
		}
		recipient, err := s.ensureHolder(ctx, assetID, to)
		if err != nil {
			return err
		}
		if err := s.store.SetShares(ctx, assetID, from, fromBalance-shares); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to debit sender")
		}
		toBalance := recipient.Shares + shares
		if err := s.store.SetShares(ctx, assetID, to, toBalance); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to credit recipient")
		}
		if err := s.logAudit(ctx, audit.EventSharesTransferred, from, assetID,
			"shares", shares,
			"reference", to,
		); err != nil {
			return err
		}
		result = &models.TransferResult{
			From:        from,
			To:          to,
			Shares:      shares,
			FromBalance: fromBalance - shares,
			ToBalance:   toBalance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddTransferred(shares)
	return result, nil
}

// GetBook returns the committed ledger position of an asset.
func (s *Service) GetBook(ctx context.Context, assetID domain.AssetID) (*models.Book, error) {
	return tx.Read(ctx, s.tx, tx.AssetKey(assetID), func(ctx context.Context) (*models.Book, error) {
		return s.loadBook(ctx, assetID)
	})
}

func (s *Service) loadBook(ctx context.Context, assetID domain.AssetID) (*models.Book, error) {
	book, err := s.store.GetBook(ctx, assetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "asset not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ledger book")
	}
	return book, nil
}

// BalanceOf returns holder's shares; unregistered parties hold zero.
func (s *Service) BalanceOf(ctx context.Context, assetID domain.AssetID, holder domain.PartyID) (int64, error) {
	return tx.Read(ctx, s.tx, tx.AssetKey(assetID), func(ctx context.Context) (int64, error) {
		if _, err := s.loadBook(ctx, assetID); err != nil {
			return 0, err
		}
		return s.balance(ctx, assetID, holder)
	})
}

// OwnershipPercentage is floor(balance * 10000 / totalShares) in basis
// points. It is display-only and never feeds payout math.
func (s *Service) OwnershipPercentage(ctx context.Context, assetID domain.AssetID, holder domain.PartyID) (int64, error) {
	return tx.Read(ctx, s.tx, tx.AssetKey(assetID), func(ctx context.Context) (int64, error) {
		book, err := s.loadBook(ctx, assetID)
		if err != nil {
			return 0, err
		}
		balance, err := s.balance(ctx, assetID, holder)
		if err != nil {
			return 0, err
		}
		return ownershipBP(balance, book.TotalShares), nil
	})
}

// Investors pages through the investor registry in registration order,
// including investors whose balance is now zero.
func (s *Service) Investors(ctx context.Context, assetID domain.AssetID, offset, limit int) ([]*models.Holding, error) {
	if offset < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "offset must not be negative")
	}
	if limit <= 0 || limit > MaxInvestorPage {
		return nil, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 1000")
	}
	return tx.Read(ctx, s.tx, tx.AssetKey(assetID), func(ctx context.Context) ([]*models.Holding, error) {
		if _, err := s.loadBook(ctx, assetID); err != nil {
			return nil, err
		}
		holders, err := s.store.ListHolders(ctx, assetID, offset, limit)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list investors")
		}
		return holders, nil
	})
}

func (s *Service) InvestorCount(ctx context.Context, assetID domain.AssetID) (int, error) {
	n, err := tx.Read(ctx, s.tx, tx.AssetKey(assetID), func(ctx context.Context) (int, error) {
		return s.store.CountHolders(ctx, assetID)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeNotFound, "asset not found")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count investors")
	}
	return n, nil
}

// Holders returns registered investors with a nonzero balance, in
// registration order. Distribution snapshots call it under the asset lock.
func (s *Service) Holders(ctx context.Context, assetID domain.AssetID) ([]*models.Holding, error) {
	holders, err := tx.Read(ctx, s.tx, tx.AssetKey(assetID), func(ctx context.Context) ([]*models.Holding, error) {
		return s.store.ListPositiveHolders(ctx, assetID)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "asset not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list holders")
	}
	return holders, nil
}

// Investments returns holder's purchase log for an asset, oldest first.
func (s *Service) Investments(ctx context.Context, assetID domain.AssetID, holder domain.PartyID) ([]*models.Investment, error) {
	investments, err := tx.Read(ctx, s.tx, tx.AssetKey(assetID), func(ctx context.Context) ([]*models.Investment, error) {
		return s.store.ListInvestments(ctx, assetID, holder)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "asset not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list investments")
	}
	return investments, nil
}

// PortfolioOf lists every asset in which party holds shares, read as one
// snapshot across assets.
func (s *Service) PortfolioOf(ctx context.Context, party domain.PartyID) ([]models.Position, error) {
	return tx.Read(ctx, s.tx, tx.AllKeys, func(ctx context.Context) ([]models.Position, error) {
		return s.portfolio(ctx, party)
	})
}

func (s *Service) portfolio(ctx context.Context, party domain.PartyID) ([]models.Position, error) {
	holdings, err := s.store.HoldingsByParty(ctx, party)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list holdings")
	}
	slices.SortFunc(holdings, func(a, b *models.Holding) int {
		if c := a.RegisteredAt.Compare(b.RegisteredAt); c != 0 {
			return c
		}
		return strings.Compare(a.AssetID.String(), b.AssetID.String())
	})

	positions := make([]models.Position, 0, len(holdings))
	for _, h := range holdings {
		if h.Shares == 0 {
			continue
		}
		book, err := s.loadBook(ctx, h.AssetID)
		if err != nil {
			return nil, err
		}
		positions = append(positions, models.Position{
			AssetID:     h.AssetID,
			Shares:      h.Shares,
			OwnershipBP: ownershipBP(h.Shares, book.TotalShares),
		})
	}
	return positions, nil
}

// VerifyConservation recounts an asset under its lock and fails with
// CodeInvariantViolation when held plus available shares differ from the total.
func (s *Service) VerifyConservation(ctx context.Context, assetID domain.AssetID) (*models.Conservation, error) {
	var result *models.Conservation
	err := s.tx.View(ctx, tx.AssetKey(assetID), func(ctx context.Context) error {
		book, err := s.loadBook(ctx, assetID)
		if err != nil {
			return err
		}
		held, err := s.store.SumShares(ctx, assetID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to sum holdings")
		}
		holders, err := s.store.CountHolders(ctx, assetID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count investors")
		}
		result = &models.Conservation{
			AssetID:         assetID,
			TotalShares:     book.TotalShares,
			AvailableShares: book.AvailableShares,
			HeldShares:      held,
			Holders:         holders,
			Balanced:        held+book.AvailableShares == book.TotalShares && book.AvailableShares >= 0,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !result.Balanced {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "share conservation violated",
				"asset_id", assetID,
				"total_shares", result.TotalShares,
				"available_shares", result.AvailableShares,
				"held_shares", result.HeldShares,
			)
		}
		return result, dErrors.New(dErrors.CodeInvariantViolation, "held and available shares do not sum to total supply")
	}
	return result, nil
}

// mutate runs fn as one ledger operation under the asset lock. The pause
// check is the first step inside the lock, so an operation queued behind
// the lock when a pause commits is rejected.
func (s *Service) mutate(ctx context.Context, operation string, assetID domain.AssetID, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "ledger."+operation,
		trace.WithAttributes(attribute.String("asset_id", assetID.String())))
	defer span.End()
	defer s.metrics.ObserveOperation(operation, time.Now())

	err := s.tx.RunInTx(ctx, tx.AssetKey(assetID), func(ctx context.Context) error {
		if err := s.ensureNotPaused(ctx); err != nil {
			return err
		}
		return fn(ctx)
	})
	if err != nil {
		code := string(dErrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		s.metrics.IncrementRejection(operation, code)
		if s.logger != nil {
			s.logger.InfoContext(ctx, "ledger operation rejected",
				"operation", operation,
				"asset_id", assetID,
				"code", code,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	return err
}

func (s *Service) ensureNotPaused(ctx context.Context) error {
	if s.pause == nil {
		return nil
	}
	return s.pause.EnsureNotPaused(ctx)
}

// loadTradable returns the asset and its book, rejecting inactive assets.
func (s *Service) loadTradable(ctx context.Context, assetID domain.AssetID) (*assetmodels.Asset, *models.Book, error) {
	asset, err := s.registry.Get(ctx, assetID)
	if err != nil {
		return nil, nil, err
	}
	if !asset.IsActive() {
		return nil, nil, dErrors.New(dErrors.CodeAssetInactive, "asset is not active")
	}
	book, err := s.loadBook(ctx, assetID)
	if err != nil {
		return nil, nil, err
	}
	return asset, book, nil
}

func (s *Service) requireApproved(ctx context.Context, party domain.PartyID) error {
	approved, err := s.compliance.IsApproved(ctx, party)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "compliance check failed")
	}
	if !approved {
		return dErrors.New(dErrors.CodeNotAuthorized, "party is not approved by compliance")
	}
	return nil
}

func (s *Service) balance(ctx context.Context, assetID domain.AssetID, party domain.PartyID) (int64, error) {
	holding, err := s.store.GetHolding(ctx, assetID, party)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, nil
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holding")
	}
	return holding.Shares, nil
}

// ensureHolder returns party's holding, registering it with the next ordinal if new.
func (s *Service) ensureHolder(ctx context.Context, assetID domain.AssetID, party domain.PartyID) (*models.Holding, error) {
	holding, err := s.store.GetHolding(ctx, assetID, party)
	if err == nil {
		return holding, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holding")
	}
	holding, err = s.store.RegisterHolder(ctx, assetID, party, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register investor")
	}
	return holding, nil
}

func ownershipBP(balance, total int64) int64 {
	if balance <= 0 || total <= 0 {
		return 0
	}
	bp, err := domain.MulDivFloor(balance, domain.MaxBasisPoints, total)
	if err != nil {
		return 0
	}
	return bp
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, party domain.PartyID, assetID domain.AssetID, attributes ...any) error {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if s.auditPublisher != nil {
		if err := s.auditPublisher.Emit(ctx, audit.Event{
			PartyID:   party,
			AssetID:   assetID,
			Subject:   party.String(),
			Action:    string(event),
			Amount:    attrs.ExtractInt64(attributes, "shares"),
			Reference: attrs.ExtractString(attributes, "reference"),
			ActorID:   attrs.ExtractString(attributes, "actor_id"),
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
	}
	if s.logger != nil {
		args := append(attributes, "event", string(event), "asset_id", assetID, "party_id", party, "log_type", "audit")
		s.logger.InfoContext(ctx, string(event), args...)
	}
	return nil
}
