package service

import (
	"context"
	"errors"
	"log/slog"

	"tessera/internal/asset/models"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/audit"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
	"tessera/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, asset *models.Asset) error
	Get(ctx context.Context, id domain.AssetID) (*models.Asset, error)
	List(ctx context.Context) ([]*models.Asset, error)
	Update(ctx context.Context, asset *models.Asset) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the asset registry: identity, supply, price and status of every asset.
type Service struct {
	store          Store
	tx             tx.Runner
	operator       domain.PartyID
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func New(store Store, operator domain.PartyID, opts ...Option) *Service {
	s := &Service{store: store, operator: operator}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewSharded()
	}
	return s
}

// Register persists a new asset. The ledger calls it inside its issuance
// transaction, so the caller already holds the asset lock.
func (s *Service) Register(ctx context.Context, asset *models.Asset) error {
	if !asset.Status.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "asset status is invalid")
	}
	if err := s.store.Create(ctx, asset); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "asset already registered")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register asset")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id domain.AssetID) (*models.Asset, error) {
	asset, err := tx.Read(ctx, s.tx, tx.AssetKey(id), func(ctx context.Context) (*models.Asset, error) {
		return s.store.Get(ctx, id)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "asset not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load asset")
	}
	return asset, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Asset, error) {
	assets, err := tx.Read(ctx, s.tx, tx.AllKeys, s.store.List)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assets")
	}
	return assets, nil
}

// ManagerOf returns the party allowed to deposit revenue and create distributions.
func (s *Service) ManagerOf(ctx context.Context, id domain.AssetID) (domain.PartyID, error) {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return domain.PartyID{}, err
	}
	return asset.Manager, nil
}

// NotifyAvailableSharesChanged updates the supply mirror after a purchase or sale.
func (s *Service) NotifyAvailableSharesChanged(ctx context.Context, id domain.AssetID, available int64) error {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if available < 0 || available > asset.TotalShares {
		return dErrors.New(dErrors.CodeInvariantViolation, "available shares out of range")
	}
	asset.AvailableShares = available
	asset.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, asset); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update available shares")
	}
	return nil
}

// SetStatus pauses or resumes trading of a single asset. Operator only.
func (s *Service) SetStatus(ctx context.Context, caller domain.PartyID, id domain.AssetID, status models.Status) (*models.Asset, error) {
	if caller != s.operator {
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "only the platform operator may change asset status")
	}
	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "status must be active or paused")
	}
	return s.update(ctx, id, audit.EventAssetStatusChanged, caller, string(status), func(asset *models.Asset) {
		asset.Status = status
	})
}

// UpdatePrice sets the price per share for future trades. The asset manager
// and the operator may change it.
func (s *Service) UpdatePrice(ctx context.Context, caller domain.PartyID, id domain.AssetID, price int64) (*models.Asset, error) {
	if price <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "price per share must be positive")
	}
	var updated *models.Asset
	err := s.tx.RunInTx(ctx, tx.AssetKey(id), func(ctx context.Context) error {
		asset, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if caller != asset.Manager && caller != s.operator {
			return dErrors.New(dErrors.CodeNotAuthorized, "only the asset manager or operator may change the price")
		}
		asset.PricePerShare = price
		asset.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.Update(ctx, asset); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update asset")
		}
		if err := s.emit(ctx, audit.EventAssetPriceChanged, asset.ID, caller, price, ""); err != nil {
			return err
		}
		updated = asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) update(ctx context.Context, id domain.AssetID, event audit.AuditEvent, caller domain.PartyID,
	reference string, mutate func(*models.Asset)) (*models.Asset, error) {
	var updated *models.Asset
	err := s.tx.RunInTx(ctx, tx.AssetKey(id), func(ctx context.Context) error {
		asset, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		mutate(asset)
		asset.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.Update(ctx, asset); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update asset")
		}
		if err := s.emit(ctx, event, asset.ID, caller, 0, reference); err != nil {
			return err
		}
		updated = asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, id domain.AssetID, caller domain.PartyID, amount int64, reference string) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"asset_id", id,
			"actor_id", caller,
			"reference", reference,
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return nil
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		AssetID:   id,
		Subject:   "asset",
		Action:    string(event),
		Amount:    amount,
		Reference: reference,
		ActorID:   caller.String(),
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record asset change")
	}
	return nil
}
