package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	assetmodels "tessera/internal/asset/models"
	"tessera/internal/distribution"
	"tessera/internal/distribution/metrics"
	"tessera/internal/distribution/models"
	ledgermodels "tessera/internal/ledger/models"
	"tessera/internal/payout"
	"tessera/pkg/attrs"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/audit"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
	"tessera/pkg/requestcontext"
)

// DefaultMaxBatchSize bounds the investors one batch call may settle.
const DefaultMaxBatchSize = 500

type Store interface {
	CreateDistribution(ctx context.Context, d *models.Distribution, allocations []*models.Allocation) error
	GetDistribution(ctx context.Context, id domain.DistributionID) (*models.Distribution, error)
	UpdateDistribution(ctx context.Context, d *models.Distribution) error
	ListByAsset(ctx context.Context, asset domain.AssetID) ([]*models.Distribution, error)
	GetAllocation(ctx context.Context, id domain.DistributionID, party domain.PartyID) (*models.Allocation, error)
	ListAllocations(ctx context.Context, id domain.DistributionID, from, to int) ([]*models.Allocation, error)
	MaxOrdinal(ctx context.Context, id domain.DistributionID) (int, error)
	MarkClaimed(ctx context.Context, id domain.DistributionID, party domain.PartyID, at time.Time) error
	ListAllocationsByParty(ctx context.Context, party domain.PartyID) ([]*models.Allocation, error)
	GetCustody(ctx context.Context, asset domain.AssetID) (*models.Custody, error)
	SaveCustody(ctx context.Context, c *models.Custody) error
}

// Ledger supplies the holder snapshot a distribution is computed from.
type Ledger interface {
	GetBook(ctx context.Context, asset domain.AssetID) (*ledgermodels.Book, error)
	Holders(ctx context.Context, asset domain.AssetID) ([]*ledgermodels.Holding, error)
}

type AssetRegistry interface {
	Get(ctx context.Context, id domain.AssetID) (*assetmodels.Asset, error)
}

// FeeSchedule returns the current platform and manager fee rates in basis points.
type FeeSchedule interface {
	Fees(ctx context.Context) (platformBP, managerBP int64, err error)
}

type PauseGuard interface {
	EnsureNotPaused(ctx context.Context) error
}

type Payouts interface {
	Send(ctx context.Context, kind payout.Kind, asset domain.AssetID, party domain.PartyID, amount int64, reference string) (*payout.Instruction, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the revenue distribution engine. Deposits and distribution
// creation run under the asset lock; claims and batches run under the
// distribution lock.
type Service struct {
	store          Store
	ledger         Ledger
	registry       AssetRegistry
	fees           FeeSchedule
	payouts        Payouts
	operator       domain.PartyID
	mode           models.DenominatorMode
	maxBatch       int
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

// WithDenominatorMode selects the allocation divisor for new distributions.
func WithDenominatorMode(mode models.DenominatorMode) Option {
	return func(s *Service) {
		s.mode = mode
	}
}

func WithMaxBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatch = n
		}
	}
}

func New(store Store, ledger Ledger, registry AssetRegistry, fees FeeSchedule, payouts Payouts, operator domain.PartyID, opts ...Option) *Service {
	s := &Service{
		store:    store,
		ledger:   ledger,
		registry: registry,
		fees:     fees,
		payouts:  payouts,
		operator: operator,
		mode:     models.DenominatorTotalSupply,
		maxBatch: DefaultMaxBatchSize,
		tracer:   otel.Tracer("tessera/distribution"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewSharded()
	}
	return s
}

// DepositRevenue moves manager funds into the asset's pending custody.
func (s *Service) DepositRevenue(ctx context.Context, assetID domain.AssetID, depositor domain.PartyID, amount int64) (*models.Custody, error) {
	var custody *models.Custody
	err := s.mutate(ctx, "deposit", tx.AssetKey(assetID), attribute.String("asset_id", assetID.String()), func(ctx context.Context) error {
		asset, err := s.registry.Get(ctx, assetID)
		if err != nil {
			return err
		}
		if depositor != asset.Manager {
			return dErrors.New(dErrors.CodeNotAuthorized, "only the asset manager may deposit revenue")
		}
		if !asset.IsActive() {
			return dErrors.New(dErrors.CodeAssetInactive, "asset is not active")
		}
		if amount <= 0 {
			return dErrors.New(dErrors.CodeInvalidAmount, "deposit amount must be positive")
		}
		c, err := s.loadCustody(ctx, assetID)
		if err != nil {
			return err
		}
		if c.Pending, err = domain.CheckedAdd(c.Pending, amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidAmount, "pending revenue overflows")
		}
		c.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.SaveCustody(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save custody")
		}
		if err := s.logAudit(ctx, audit.EventRevenueDeposited, depositor, assetID,
			"amount", amount,
			"pending", c.Pending,
		); err != nil {
			return err
		}
		custody = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddDeposit(amount)
	return custody, nil
}

// CreateDistribution takes amount out of pending custody, pays both fees and
// snapshots every holder's allocation of the net. The floor remainder
// becomes custody dust.
func (s *Service) CreateDistribution(ctx context.Context, assetID domain.AssetID, caller domain.PartyID, amount int64) (*models.Distribution, error) {
	var created *models.Distribution
	var fees distribution.Fees
	err := s.mutate(ctx, "create", tx.AssetKey(assetID), attribute.String("asset_id", assetID.String()), func(ctx context.Context) error {
		asset, err := s.registry.Get(ctx, assetID)
		if err != nil {
			return err
		}
		if caller != asset.Manager {
			return dErrors.New(dErrors.CodeNotAuthorized, "only the asset manager may create distributions")
		}
		if amount <= 0 {
			return dErrors.New(dErrors.CodeInvalidAmount, "distribution amount must be positive")
		}
		custody, err := s.loadCustody(ctx, assetID)
		if err != nil {
			return err
		}
		if custody.Pending < amount {
			return dErrors.New(dErrors.CodeInsufficientLiquidity, "pending revenue does not cover the distribution")
		}

		platformBP, managerBP, err := s.fees.Fees(ctx)
		if err != nil {
			return err
		}
		fees, err = distribution.ComputeFees(amount, platformBP, managerBP)
		if err != nil {
			return err
		}
		portions, denominator, dust, err := s.allocate(ctx, assetID, fees.Net)
		if err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		d := &models.Distribution{
			ID:               domain.NewDistributionID(),
			AssetID:          assetID,
			GrossAmount:      amount,
			PlatformFee:      fees.Platform,
			ManagerFee:       fees.Manager,
			NetAmount:        fees.Net,
			ShareDenominator: denominator,
			DenominatorMode:  s.mode,
			HolderCount:      len(portions),
			TotalAllocated:   fees.Net - dust,
			Dust:             dust,
			Status:           models.StatusCreated,
			CreatedAt:        now,
		}
		d.Complete(now)
		allocations := make([]*models.Allocation, len(portions))
		for i, p := range portions {
			allocations[i] = &models.Allocation{
				DistributionID: d.ID,
				PartyID:        p.PartyID,
				Ordinal:        p.Ordinal,
				Shares:         p.Shares,
				Amount:         p.Amount,
			}
		}
		if err := s.store.CreateDistribution(ctx, d, allocations); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store distribution")
		}

		custody.Pending -= amount
		if custody.Dust, err = domain.CheckedAdd(custody.Dust, dust); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidAmount, "custody dust overflows")
		}
		custody.UpdatedAt = now
		if err := s.store.SaveCustody(ctx, custody); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save custody")
		}

		if err := s.payFee(ctx, payout.KindPlatformFee, d, s.operator, fees.Platform); err != nil {
			return err
		}
		if err := s.payFee(ctx, payout.KindManagerFee, d, asset.Manager, fees.Manager); err != nil {
			return err
		}
		if err := s.logAudit(ctx, audit.EventDistributionCreated, caller, assetID,
			"amount", fees.Net,
			"reference", d.ID,
			"holders", d.HolderCount,
			"dust", dust,
		); err != nil {
			return err
		}
		if d.IsCompleted() {
			if err := s.logAudit(ctx, audit.EventDistributionCompleted, caller, assetID, "reference", d.ID); err != nil {
				return err
			}
		}
		created = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementCreated()
	s.metrics.AddPaid(string(payout.KindPlatformFee), fees.Platform)
	s.metrics.AddPaid(string(payout.KindManagerFee), fees.Manager)
	if created.IsCompleted() {
		s.metrics.IncrementCompleted()
	}
	return created, nil
}

// ClaimDistribution pays caller's allocation. The claimed flag and totals are
// written before the payout instruction.
func (s *Service) ClaimDistribution(ctx context.Context, id domain.DistributionID, caller domain.PartyID) (*models.Allocation, error) {
	var (
		claimed   *models.Allocation
		completed bool
	)
	err := s.mutate(ctx, "claim", tx.DistributionKey(id), attribute.String("distribution_id", id.String()), func(ctx context.Context) error {
		d, err := s.getDistribution(ctx, id)
		if err != nil {
			return err
		}
		alloc, err := s.store.GetAllocation(ctx, id, caller)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNoAllocation, "caller has no allocation in this distribution")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load allocation")
		}
		if alloc.Claimed {
			return dErrors.New(dErrors.CodeAlreadyClaimed, "allocation already claimed")
		}
		now := requestcontext.Now(ctx)
		if err := s.settle(ctx, d, alloc, now); err != nil {
			return err
		}
		completed = d.Complete(now)
		if err := s.store.UpdateDistribution(ctx, d); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update distribution")
		}
		if err := s.pay(ctx, d, alloc); err != nil {
			return err
		}
		if err := s.logAudit(ctx, audit.EventDistributionClaimed, caller, d.AssetID,
			"amount", alloc.Amount,
			"reference", d.ID,
		); err != nil {
			return err
		}
		if completed {
			if err := s.logAudit(ctx, audit.EventDistributionCompleted, caller, d.AssetID, "reference", d.ID); err != nil {
				return err
			}
		}
		claimed = alloc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddPaid(string(payout.KindDistribution), claimed.Amount)
	if completed {
		s.metrics.IncrementCompleted()
	}
	return claimed, nil
}

// BatchDistribute settles unclaimed allocations of investors whose ordinal is
// in [offset, offset+limit). Repeated or overlapping slices pay nothing twice.
func (s *Service) BatchDistribute(ctx context.Context, id domain.DistributionID, caller domain.PartyID, offset, limit int) (*models.BatchResult, error) {
	var result *models.BatchResult
	err := s.mutate(ctx, "batch", tx.DistributionKey(id), attribute.String("distribution_id", id.String()), func(ctx context.Context) error {
		if caller != s.operator {
			return dErrors.New(dErrors.CodeNotAuthorized, "only the platform operator may run batch distributions")
		}
		if offset < 0 {
			return dErrors.New(dErrors.CodeInvalidInput, "offset must not be negative")
		}
		if limit <= 0 || limit > s.maxBatch {
			return dErrors.New(dErrors.CodeInvalidInput, "limit must be positive and within the batch size limit")
		}
		d, err := s.getDistribution(ctx, id)
		if err != nil {
			return err
		}
		end := offset + limit
		if offset > math.MaxInt-limit {
			end = math.MaxInt
		}
		allocations, err := s.store.ListAllocations(ctx, id, offset, end)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list allocations")
		}
		maxOrdinal, err := s.store.MaxOrdinal(ctx, id)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load allocation range")
		}

		now := requestcontext.Now(ctx)
		res := &models.BatchResult{Processed: len(allocations), NextOffset: end, Done: end > maxOrdinal}
		var settled []*models.Allocation
		for _, alloc := range allocations {
			if alloc.Claimed {
				continue
			}
			if err := s.settle(ctx, d, alloc, now); err != nil {
				return err
			}
			settled = append(settled, alloc)
			res.AmountPaid += alloc.Amount
		}
		res.Paid = len(settled)
		res.Completed = d.Complete(now)
		if res.Paid > 0 || res.Completed {
			if err := s.store.UpdateDistribution(ctx, d); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update distribution")
			}
		}
		for _, alloc := range settled {
			if err := s.pay(ctx, d, alloc); err != nil {
				return err
			}
		}
		if err := s.logAudit(ctx, audit.EventBatchDistributed, caller, d.AssetID,
			"amount", res.AmountPaid,
			"reference", d.ID,
			"paid", res.Paid,
			"offset", offset,
			"limit", limit,
		); err != nil {
			return err
		}
		if res.Completed {
			if err := s.logAudit(ctx, audit.EventDistributionCompleted, caller, d.AssetID, "reference", d.ID); err != nil {
				return err
			}
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveBatch(result.Paid)
	s.metrics.AddPaid(string(payout.KindDistribution), result.AmountPaid)
	if result.Completed {
		s.metrics.IncrementCompleted()
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, id domain.DistributionID) (*models.Distribution, error) {
	return tx.Read(ctx, s.tx, tx.DistributionKey(id), func(ctx context.Context) (*models.Distribution, error) {
		return s.getDistribution(ctx, id)
	})
}

// ListByAsset returns the asset's distributions, oldest first. Claims move
// them under their own locks, so the list is read across all keys.
func (s *Service) ListByAsset(ctx context.Context, assetID domain.AssetID) ([]*models.Distribution, error) {
	return tx.Read(ctx, s.tx, tx.AllKeys, func(ctx context.Context) ([]*models.Distribution, error) {
		if _, err := s.registry.Get(ctx, assetID); err != nil {
			return nil, err
		}
		out, err := s.store.ListByAsset(ctx, assetID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list distributions")
		}
		return out, nil
	})
}

// ListByHolder returns every distribution in which party has an allocation,
// oldest first.
func (s *Service) ListByHolder(ctx context.Context, party domain.PartyID) ([]models.HolderDistribution, error) {
	return tx.Read(ctx, s.tx, tx.AllKeys, func(ctx context.Context) ([]models.HolderDistribution, error) {
		return s.listByHolder(ctx, party)
	})
}

func (s *Service) listByHolder(ctx context.Context, party domain.PartyID) ([]models.HolderDistribution, error) {
	allocations, err := s.store.ListAllocationsByParty(ctx, party)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list allocations")
	}
	out := make([]models.HolderDistribution, 0, len(allocations))
	for _, alloc := range allocations {
		d, err := s.getDistribution(ctx, alloc.DistributionID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.HolderDistribution{Distribution: d, Allocation: alloc})
	}
	slices.SortStableFunc(out, func(a, b models.HolderDistribution) int {
		return a.Distribution.CreatedAt.Compare(b.Distribution.CreatedAt)
	})
	return out, nil
}

func (s *Service) AllocationOf(ctx context.Context, id domain.DistributionID, party domain.PartyID) (*models.Allocation, error) {
	return tx.Read(ctx, s.tx, tx.DistributionKey(id), func(ctx context.Context) (*models.Allocation, error) {
		if _, err := s.getDistribution(ctx, id); err != nil {
			return nil, err
		}
		alloc, err := s.store.GetAllocation(ctx, id, party)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNoAllocation, "party has no allocation in this distribution")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load allocation")
		}
		return alloc, nil
	})
}

// Custody returns the asset's pending revenue and accumulated dust.
func (s *Service) Custody(ctx context.Context, assetID domain.AssetID) (*models.Custody, error) {
	return tx.Read(ctx, s.tx, tx.AssetKey(assetID), func(ctx context.Context) (*models.Custody, error) {
		if _, err := s.registry.Get(ctx, assetID); err != nil {
			return nil, err
		}
		return s.loadCustody(ctx, assetID)
	})
}

// allocate snapshots the asset's holders and splits net over the configured
// denominator.
func (s *Service) allocate(ctx context.Context, assetID domain.AssetID, net int64) ([]distribution.Portion, int64, int64, error) {
	book, err := s.ledger.GetBook(ctx, assetID)
	if err != nil {
		return nil, 0, 0, err
	}
	holders, err := s.ledger.Holders(ctx, assetID)
	if err != nil {
		return nil, 0, 0, err
	}
	stakes := make([]distribution.Stake, 0, len(holders))
	var held int64
	for _, h := range holders {
		stakes = append(stakes, distribution.Stake{PartyID: h.PartyID, Ordinal: h.Ordinal, Shares: h.Shares})
		held += h.Shares
	}

	denominator := book.TotalShares
	if s.mode == models.DenominatorHeldShares {
		denominator = held
	}
	if held == 0 {
		return nil, denominator, net, nil
	}
	portions, dust, err := distribution.Allocate(net, denominator, stakes)
	if err != nil {
		return nil, 0, 0, err
	}
	return portions, denominator, dust, nil
}

// settle marks alloc claimed and adds it to the distribution totals. The
// caller persists d and then pays.
func (s *Service) settle(ctx context.Context, d *models.Distribution, alloc *models.Allocation, now time.Time) error {
	if err := s.store.MarkClaimed(ctx, d.ID, alloc.PartyID, now); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeAlreadyClaimed, "allocation already claimed")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark allocation claimed")
	}
	alloc.Claimed = true
	alloc.ClaimedAt = &now
	d.ClaimedCount++
	d.TotalClaimed += alloc.Amount
	if d.TotalClaimed > d.TotalAllocated || d.ClaimedCount > d.HolderCount {
		return dErrors.New(dErrors.CodeInvariantViolation, "claims exceed the distribution's allocations")
	}
	return nil
}

func (s *Service) pay(ctx context.Context, d *models.Distribution, alloc *models.Allocation) error {
	_, err := s.payouts.Send(ctx, payout.KindDistribution, d.AssetID, alloc.PartyID, alloc.Amount, d.ID.String())
	return err
}

func (s *Service) payFee(ctx context.Context, kind payout.Kind, d *models.Distribution, to domain.PartyID, amount int64) error {
	if amount == 0 {
		return nil
	}
	_, err := s.payouts.Send(ctx, kind, d.AssetID, to, amount, d.ID.String())
	return err
}

func (s *Service) getDistribution(ctx context.Context, id domain.DistributionID) (*models.Distribution, error) {
	d, err := s.store.GetDistribution(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeDistributionNotFound, "distribution not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load distribution")
	}
	return d, nil
}

func (s *Service) loadCustody(ctx context.Context, assetID domain.AssetID) (*models.Custody, error) {
	c, err := s.store.GetCustody(ctx, assetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &models.Custody{AssetID: assetID}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load custody")
	}
	return c, nil
}

func (s *Service) mutate(ctx context.Context, operation, lockKey string, attr attribute.KeyValue, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "distribution."+operation, trace.WithAttributes(attr))
	defer span.End()
	defer s.metrics.ObserveOperation(operation, time.Now())

	err := s.tx.RunInTx(ctx, lockKey, func(ctx context.Context) error {
		if s.pause != nil {
			if err := s.pause.EnsureNotPaused(ctx); err != nil {
				return err
			}
		}
		return fn(ctx)
	})
	if err != nil {
		code := string(dErrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		s.metrics.IncrementRejection(operation, code)
		if s.logger != nil {
			s.logger.InfoContext(ctx, "distribution operation rejected",
				"operation", operation,
				"lock", lockKey,
				"code", code,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	return err
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, party domain.PartyID, assetID domain.AssetID, attributes ...any) error {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if s.auditPublisher != nil {
		if err := s.auditPublisher.Emit(ctx, audit.Event{
			PartyID:   party,
			AssetID:   assetID,
			Subject:   "distribution",
			Action:    string(event),
			Amount:    attrs.ExtractInt64(attributes, "amount"),
			Reference: attrs.ExtractString(attributes, "reference"),
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
