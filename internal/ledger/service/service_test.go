package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ComplianceGate,AssetRegistry,AuditPublisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	assetmodels "tessera/internal/asset/models"
	assetservice "tessera/internal/asset/service"
	assetstore "tessera/internal/asset/store"
	"tessera/internal/ledger/metrics"
	"tessera/internal/ledger/models"
	"tessera/internal/ledger/service/mocks"
	"tessera/internal/ledger/store"
	outboxstore "tessera/internal/outbox/store"
	"tessera/internal/payout"
	payoutstore "tessera/internal/payout/store"
	settingsservice "tessera/internal/settings/service"
	settingsstore "tessera/internal/settings/store"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/audit"
	"tessera/pkg/platform/tx"
)

// =============================================================================
// Ledger Service Test Suite
// =============================================================================
// Justification for unit tests: the ledger owns share conservation. Tests
// verify every rejection leaves the book untouched, that side effects
// (payouts, registry mirror, investor registry) commit together, and that
// pause and compliance gate all mutations.

type LedgerServiceSuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	gate     *mocks.MockComplianceGate
	audit    *mocks.MockAuditPublisher
	store    *store.InMemory
	assets   *assetservice.Service
	payouts  *payoutstore.InMemory
	outbox   *outboxstore.InMemory
	settings *settingsservice.Service
	registry *prometheus.Registry
	service  *Service

	operator domain.PartyID
	manager  domain.PartyID
	alice    domain.PartyID
	bob      domain.PartyID
	asset    *assetmodels.Asset
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.gate = mocks.NewMockComplianceGate(s.ctrl)
	s.audit = mocks.NewMockAuditPublisher(s.ctrl)

	s.operator = domain.NewPartyID()
	s.manager = domain.NewPartyID()
	s.alice = domain.NewPartyID()
	s.bob = domain.NewPartyID()

	s.store = store.NewInMemory()
	s.assets = assetservice.New(assetstore.NewInMemory(), s.operator)
	s.payouts = payoutstore.NewInMemory()
	s.outbox = outboxstore.NewInMemory()
	settings, err := settingsservice.New(settingsstore.NewInMemory(), s.operator)
	s.Require().NoError(err)
	s.settings = settings
	s.registry = prometheus.NewRegistry()

	s.service = New(s.store, s.gate, s.assets, payout.NewJournal(s.payouts, s.outbox), s.operator,
		WithAuditPublisher(s.audit),
		WithPauseGuard(s.settings),
		WithMetrics(metrics.New(s.registry)),
	)

	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	s.asset = s.issue(1000, 100)
}

func (s *LedgerServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *LedgerServiceSuite) issue(total, price int64) *assetmodels.Asset {
	asset, err := s.service.Issue(s.ctx, s.operator, models.IssueRequest{
		Name:          "Harbor Lofts",
		Manager:       s.manager,
		TotalShares:   total,
		PricePerShare: price,
	})
	s.Require().NoError(err)
	return asset
}

func (s *LedgerServiceSuite) approve(parties ...domain.PartyID) {
	for _, p := range parties {
		s.gate.EXPECT().IsApproved(gomock.Any(), p).Return(true, nil).AnyTimes()
	}
}

func (s *LedgerServiceSuite) deny(parties ...domain.PartyID) {
	for _, p := range parties {
		s.gate.EXPECT().IsApproved(gomock.Any(), p).Return(false, nil).AnyTimes()
	}
}

func (s *LedgerServiceSuite) assertBook(available, liquidity int64) {
	book, err := s.service.GetBook(s.ctx, s.asset.ID)
	s.Require().NoError(err)
	s.Equal(available, book.AvailableShares, "available shares")
	s.Equal(liquidity, book.Liquidity, "liquidity")
}

func (s *LedgerServiceSuite) balance(party domain.PartyID) int64 {
	bal, err := s.service.BalanceOf(s.ctx, s.asset.ID, party)
	s.Require().NoError(err)
	return bal
}

func (s *LedgerServiceSuite) assertConserved() {
	result, err := s.service.VerifyConservation(s.ctx, s.asset.ID)
	s.Require().NoError(err)
	s.True(result.Balanced)
}

// =============================================================================
// Issue
// =============================================================================

func (s *LedgerServiceSuite) TestIssue() {
	s.Run("opens a book with the full supply available", func() {
		s.assertBook(1000, 0)
		registered, err := s.assets.Get(s.ctx, s.asset.ID)
		s.Require().NoError(err)
		s.Equal(int64(1000), registered.AvailableShares)
		s.Equal(s.manager, registered.Manager)
	})

	s.Run("only the operator may issue", func() {
		_, err := s.service.Issue(s.ctx, s.alice, models.IssueRequest{
			Name: "Mill Yard", Manager: s.manager, TotalShares: 10, PricePerShare: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
	})

	s.Run("rejects zero supply", func() {
		_, err := s.service.Issue(s.ctx, s.operator, models.IssueRequest{
			Name: "Mill Yard", Manager: s.manager, TotalShares: 0, PricePerShare: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	s.Run("registry and book roll back when audit fails", func() {
		ctrl := gomock.NewController(s.T())
		failing := mocks.NewMockAuditPublisher(ctrl)
		failing.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit store down"))
		assets := assetservice.New(assetstore.NewInMemory(), s.operator)
		ledgerStore := store.NewInMemory()
		svc := New(ledgerStore, s.gate, assets, payout.NewJournal(s.payouts, s.outbox), s.operator,
			WithAuditPublisher(failing))

		_, err := svc.Issue(s.ctx, s.operator, models.IssueRequest{
			Name: "Mill Yard", Manager: s.manager, TotalShares: 10, PricePerShare: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		listed, err := assets.List(s.ctx)
		s.Require().NoError(err)
		s.Empty(listed)
		books, err := ledgerStore.ListBooks(s.ctx)
		s.Require().NoError(err)
		s.Empty(books)
	})
}

// =============================================================================
// Purchase
// =============================================================================

func (s *LedgerServiceSuite) TestPurchase() {
	s.approve(s.alice, s.bob)

	s.Run("credits buyer and refunds overage", func() {
		result, err := s.service.Purchase(s.ctx, s.asset.ID, s.alice, 400, 45_000)
		s.Require().NoError(err)
		s.Equal(int64(40_000), result.Cost)
		s.Equal(int64(5_000), result.Refund)
		s.Equal(int64(400), result.Balance)
		s.Equal(int64(600), result.Available)

		s.assertBook(600, 40_000)
		s.Equal(int64(400), s.balance(s.alice))

		refunds := s.payouts.All()
		s.Require().Len(refunds, 1)
		s.Equal(payout.KindRefund, refunds[0].Kind)
		s.Equal(int64(5_000), refunds[0].Amount)
		s.Equal(result.Investment.ID.String(), refunds[0].Reference)

		registered, err := s.assets.Get(s.ctx, s.asset.ID)
		s.Require().NoError(err)
		s.Equal(int64(600), registered.AvailableShares)

		investments, err := s.service.Investments(s.ctx, s.asset.ID, s.alice)
		s.Require().NoError(err)
		s.Require().Len(investments, 1)
		s.Equal(int64(40_000), investments[0].AmountPaid)
		s.assertConserved()
	})

	s.Run("exact payment sends no refund", func() {
		_, err := s.service.Purchase(s.ctx, s.asset.ID, s.bob, 100, 10_000)
		s.Require().NoError(err)
		s.Len(s.payouts.All(), 1)
	})

	s.Run("oversubscription is rejected with no change", func() {
		_, err := s.service.Purchase(s.ctx, s.asset.ID, s.bob, 1500, 150_000)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientSupply))
		s.assertBook(500, 50_000)
		s.Equal(int64(100), s.balance(s.bob))
		s.assertConserved()
	})

	s.Run("underpayment is rejected", func() {
		_, err := s.service.Purchase(s.ctx, s.asset.ID, s.alice, 10, 999)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
		s.assertBook(500, 50_000)
	})

	s.Run("non-positive amounts are rejected", func() {
		_, err := s.service.Purchase(s.ctx, s.asset.ID, s.alice, 0, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
		_, err = s.service.Purchase(s.ctx, s.asset.ID, s.alice, -5, 100)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	s.Run("cost overflow is rejected", func() {
		huge := s.issue(1<<62, 4)
		_, err := s.service.Purchase(s.ctx, huge.ID, s.alice, 1<<62, 1<<62)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	s.Run("unknown asset", func() {
		_, err := s.service.Purchase(s.ctx, domain.NewAssetID(), s.alice, 1, 100)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *LedgerServiceSuite) TestPurchase_ComplianceDenied() {
	outsider := domain.NewPartyID()
	s.deny(outsider)

	_, err := s.service.Purchase(s.ctx, s.asset.ID, outsider, 10, 1_000)
	s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
	s.assertBook(1000, 0)

	count, err := s.service.InvestorCount(s.ctx, s.asset.ID)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *LedgerServiceSuite) TestPurchase_ComplianceUnavailable() {
	s.gate.EXPECT().IsApproved(gomock.Any(), s.alice).Return(false, errors.New("circuit open"))

	_, err := s.service.Purchase(s.ctx, s.asset.ID, s.alice, 10, 1_000)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.assertBook(1000, 0)
}

func (s *LedgerServiceSuite) TestPurchase_InactiveAsset() {
	s.approve(s.alice)
	_, err := s.assets.SetStatus(s.ctx, s.operator, s.asset.ID, assetmodels.StatusPaused)
	s.Require().NoError(err)

	_, err = s.service.Purchase(s.ctx, s.asset.ID, s.alice, 10, 1_000)
	s.True(dErrors.HasCode(err, dErrors.CodeAssetInactive))
	s.assertBook(1000, 0)
}

func (s *LedgerServiceSuite) TestPurchase_RegistryFailureRollsBack() {
	registry := mocks.NewMockAssetRegistry(s.ctrl)
	registry.EXPECT().Get(gomock.Any(), s.asset.ID).Return(s.asset, nil)
	registry.EXPECT().NotifyAvailableSharesChanged(gomock.Any(), s.asset.ID, int64(990)).
		Return(dErrors.New(dErrors.CodeInvariantViolation, "mirror rejected"))
	s.approve(s.alice)

	svc := New(s.store, s.gate, registry, payout.NewJournal(s.payouts, s.outbox), s.operator)
	_, err := svc.Purchase(s.ctx, s.asset.ID, s.alice, 10, 2_000)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	s.assertBook(1000, 0)
	s.Zero(s.balance(s.alice))
	s.Empty(s.payouts.All(), "refund must roll back with the purchase")
	s.Empty(s.outbox.All())
	investments, err := s.service.Investments(s.ctx, s.asset.ID, s.alice)
	s.Require().NoError(err)
	s.Empty(investments)
	count, err := s.service.InvestorCount(s.ctx, s.asset.ID)
	s.Require().NoError(err)
	s.Zero(count, "buyer must not stay registered")
}

func (s *LedgerServiceSuite) TestPurchase_ReadersNeverSeeRolledBackState() {
	registry := mocks.NewMockAssetRegistry(s.ctrl)
	s.approve(s.alice)
	svc := New(s.store, s.gate, registry, payout.NewJournal(s.payouts, s.outbox), s.operator)

	type observed struct {
		available int64
		balance   int64
	}
	seen := make(chan observed, 1)
	registry.EXPECT().Get(gomock.Any(), s.asset.ID).Return(s.asset, nil)
	registry.EXPECT().NotifyAvailableSharesChanged(gomock.Any(), s.asset.ID, int64(900)).
		DoAndReturn(func(context.Context, domain.AssetID, int64) error {
			go func() {
				book, err := svc.GetBook(s.ctx, s.asset.ID)
				if err != nil {
					close(seen)
					return
				}
				balance, _ := svc.BalanceOf(s.ctx, s.asset.ID, s.alice)
				seen <- observed{available: book.AvailableShares, balance: balance}
			}()
			time.Sleep(20 * time.Millisecond)
			return dErrors.New(dErrors.CodeInvariantViolation, "mirror rejected")
		})

	_, err := svc.Purchase(s.ctx, s.asset.ID, s.alice, 100, 10_000)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	got, ok := <-seen
	s.Require().True(ok, "reader failed")
	s.Equal(int64(1000), got.available, "reader saw an uncommitted purchase")
	s.Zero(got.balance)
	s.Empty(s.outbox.All())
}

func (s *LedgerServiceSuite) TestPurchase_ConcurrentBuyersNeverOversell() {
	buyers := make([]domain.PartyID, 20)
	for i := range buyers {
		buyers[i] = domain.NewPartyID()
	}
	s.approve(buyers...)

	var wg sync.WaitGroup
	errs := make(chan error, len(buyers))
	for _, b := range buyers {
		wg.Add(1)
		go func(buyer domain.PartyID) {
			defer wg.Done()
			_, err := s.service.Purchase(s.ctx, s.asset.ID, buyer, 60, 6_000)
			errs <- err
		}(b)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientSupply))
	}
	s.Equal(16, succeeded)
	s.assertBook(40, 96_000)
	s.assertConserved()
}

// =============================================================================
// Sell
// =============================================================================

func (s *LedgerServiceSuite) TestSell() {
	s.approve(s.alice, s.bob)
	_, err := s.service.Purchase(s.ctx, s.asset.ID, s.alice, 300, 30_000)
	s.Require().NoError(err)

	s.Run("pays proceeds from liquidity", func() {
		result, err := s.service.Sell(s.ctx, s.asset.ID, s.alice, 100)
		s.Require().NoError(err)
		s.Equal(int64(10_000), result.Proceeds)
		s.Equal(int64(200), result.Balance)
		s.assertBook(800, 20_000)

		instructions, err := payout.NewJournal(s.payouts, s.outbox).ListByParty(s.ctx, s.alice)
		s.Require().NoError(err)
		s.Require().Len(instructions, 1)
		s.Equal(payout.KindSaleProceeds, instructions[0].Kind)
		s.assertConserved()
	})

	s.Run("more than the holder owns", func() {
		_, err := s.service.Sell(s.ctx, s.asset.ID, s.alice, 201)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
		s.assertBook(800, 20_000)
	})

	s.Run("party that never bought", func() {
		_, err := s.service.Sell(s.ctx, s.asset.ID, s.bob, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
	})

	s.Run("price rise leaves liquidity short", func() {
		_, err := s.assets.UpdatePrice(s.ctx, s.manager, s.asset.ID, 1_000)
		s.Require().NoError(err)

		_, err = s.service.Sell(s.ctx, s.asset.ID, s.alice, 100)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientLiquidity))
		s.assertBook(800, 20_000)
		s.Equal(int64(200), s.balance(s.alice))
	})
}

// =============================================================================
// Transfer
// =============================================================================

func (s *LedgerServiceSuite) TestTransfer() {
	s.approve(s.alice, s.bob)
	_, err := s.service.Purchase(s.ctx, s.asset.ID, s.alice, 300, 30_000)
	s.Require().NoError(err)

	s.Run("moves shares and registers the recipient", func() {
		result, err := s.service.Transfer(s.ctx, s.asset.ID, s.alice, s.bob, 120)
		s.Require().NoError(err)
		s.Equal(int64(180), result.FromBalance)
		s.Equal(int64(120), result.ToBalance)

		holders, err := s.service.Holders(s.ctx, s.asset.ID)
		s.Require().NoError(err)
		s.Require().Len(holders, 2)
		s.Equal(s.alice, holders[0].PartyID)
		s.Equal(s.bob, holders[1].PartyID)
		s.assertBook(700, 30_000)
		s.assertConserved()
	})

	s.Run("self transfer", func() {
		_, err := s.service.Transfer(s.ctx, s.asset.ID, s.alice, s.alice, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("insufficient balance", func() {
		_, err := s.service.Transfer(s.ctx, s.asset.ID, s.bob, s.alice, 121)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
	})

	s.Run("recipient must be approved", func() {
		outsider := domain.NewPartyID()
		s.deny(outsider)
		_, err := s.service.Transfer(s.ctx, s.asset.ID, s.alice, outsider, 10)
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
		s.Equal(int64(180), s.balance(s.alice))
	})

	s.Run("zero balance investors stay registered", func() {
		_, err := s.service.Transfer(s.ctx, s.asset.ID, s.bob, s.alice, 120)
		s.Require().NoError(err)

		investors, err := s.service.Investors(s.ctx, s.asset.ID, 0, 10)
		s.Require().NoError(err)
		s.Len(investors, 2)
		holders, err := s.service.Holders(s.ctx, s.asset.ID)
		s.Require().NoError(err)
		s.Len(holders, 1)
	})
}

// =============================================================================
// Pause
// =============================================================================

func (s *LedgerServiceSuite) TestPausedPlatformRejectsMutations() {
	s.approve(s.alice, s.bob)
	_, err := s.service.Purchase(s.ctx, s.asset.ID, s.alice, 100, 10_000)
	s.Require().NoError(err)
	_, err = s.settings.Pause(s.ctx, s.operator)
	s.Require().NoError(err)

	_, err = s.service.Purchase(s.ctx, s.asset.ID, s.alice, 1, 100)
	s.True(dErrors.HasCode(err, dErrors.CodePaused))
	_, err = s.service.Sell(s.ctx, s.asset.ID, s.alice, 1)
	s.True(dErrors.HasCode(err, dErrors.CodePaused))
	_, err = s.service.Transfer(s.ctx, s.asset.ID, s.alice, s.bob, 1)
	s.True(dErrors.HasCode(err, dErrors.CodePaused))
	_, err = s.service.Issue(s.ctx, s.operator, models.IssueRequest{
		Name: "Mill Yard", Manager: s.manager, TotalShares: 10, PricePerShare: 1,
	})
	s.True(dErrors.HasCode(err, dErrors.CodePaused))

	s.Run("pause is checked before validation", func() {
		_, err := s.service.Purchase(s.ctx, s.asset.ID, s.alice, -1, 0)
		s.True(dErrors.HasCode(err, dErrors.CodePaused))
	})

	s.Run("reads still work", func() {
		s.Equal(int64(100), s.balance(s.alice))
	})

	_, err = s.settings.Unpause(s.ctx, s.operator)
	s.Require().NoError(err)
	_, err = s.service.Purchase(s.ctx, s.asset.ID, s.alice, 1, 100)
	s.NoError(err)

	s.Equal(float64(1), testutil.ToFloat64(s.service.metrics.Rejections.WithLabelValues("sell", string(dErrors.CodePaused))))
}

func (s *LedgerServiceSuite) TestPauseRejectsOperationsQueuedOnTheAssetLock() {
	s.approve(s.alice)
	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.service.tx.RunInTx(s.ctx, tx.AssetKey(s.asset.ID), func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	result := make(chan error, 1)
	go func() {
		_, err := s.service.Purchase(s.ctx, s.asset.ID, s.alice, 10, 1_000)
		result <- err
	}()
	time.Sleep(20 * time.Millisecond)

	_, err := s.settings.Pause(s.ctx, s.operator)
	s.Require().NoError(err)
	close(release)

	s.True(dErrors.HasCode(<-result, dErrors.CodePaused))
	s.assertBook(1000, 0)
}

// =============================================================================
// Queries
// =============================================================================

func (s *LedgerServiceSuite) TestOwnershipPercentage() {
	s.approve(s.alice, s.bob)
	_, err := s.service.Purchase(s.ctx, s.asset.ID, s.alice, 333, 33_300)
	s.Require().NoError(err)

	bp, err := s.service.OwnershipPercentage(s.ctx, s.asset.ID, s.alice)
	s.Require().NoError(err)
	s.Equal(int64(3330), bp)

	bp, err = s.service.OwnershipPercentage(s.ctx, s.asset.ID, s.bob)
	s.Require().NoError(err)
	s.Zero(bp)

	_, err = s.service.OwnershipPercentage(s.ctx, domain.NewAssetID(), s.alice)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *LedgerServiceSuite) TestInvestorsPaging() {
	buyers := []domain.PartyID{domain.NewPartyID(), domain.NewPartyID(), domain.NewPartyID()}
	s.approve(buyers...)
	for _, b := range buyers {
		_, err := s.service.Purchase(s.ctx, s.asset.ID, b, 10, 1_000)
		s.Require().NoError(err)
	}

	page, err := s.service.Investors(s.ctx, s.asset.ID, 1, 5)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(buyers[1], page[0].PartyID)
	s.Equal(1, page[0].Ordinal)

	_, err = s.service.Investors(s.ctx, s.asset.ID, 0, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = s.service.Investors(s.ctx, s.asset.ID, -1, 10)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *LedgerServiceSuite) TestPortfolioOf() {
	s.approve(s.alice)
	second := s.issue(200, 50)
	_, err := s.service.Purchase(s.ctx, s.asset.ID, s.alice, 500, 50_000)
	s.Require().NoError(err)
	_, err = s.service.Purchase(s.ctx, second.ID, s.alice, 20, 1_000)
	s.Require().NoError(err)
	_, err = s.service.Sell(s.ctx, second.ID, s.alice, 20)
	s.Require().NoError(err)

	positions, err := s.service.PortfolioOf(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Require().Len(positions, 1)
	s.Equal(s.asset.ID, positions[0].AssetID)
	s.Equal(int64(5000), positions[0].OwnershipBP)
}

func (s *LedgerServiceSuite) TestVerifyConservation_DetectsDrift() {
	s.approve(s.alice)
	_, err := s.service.Purchase(s.ctx, s.asset.ID, s.alice, 10, 1_000)
	s.Require().NoError(err)
	s.Require().NoError(s.store.SetShares(s.ctx, s.asset.ID, s.alice, 11))

	result, err := s.service.VerifyConservation(s.ctx, s.asset.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	s.Require().NotNil(result)
	s.False(result.Balanced)
	s.Equal(int64(11), result.HeldShares)
}

func (s *LedgerServiceSuite) TestAuditEventsCarryAmounts() {
	ctrl := gomock.NewController(s.T())
	recorder := mocks.NewMockAuditPublisher(ctrl)
	var events []audit.Event
	recorder.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
		events = append(events, e)
		return nil
	}).AnyTimes()
	s.approve(s.alice)

	svc := New(s.store, s.gate, s.assets, payout.NewJournal(s.payouts, s.outbox), s.operator,
		WithAuditPublisher(recorder))
	result, err := svc.Purchase(s.ctx, s.asset.ID, s.alice, 7, 700)
	s.Require().NoError(err)

	s.Require().Len(events, 1)
	s.Equal(string(audit.EventSharesPurchased), events[0].Action)
	s.Equal(int64(7), events[0].Amount)
	s.Equal(result.Investment.ID.String(), events[0].Reference)
	s.Equal(s.alice, events[0].PartyID)
}
