//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	assetmodels "tessera/internal/asset/models"
	assetservice "tessera/internal/asset/service"
	assetstore "tessera/internal/asset/store"
	ledgermodels "tessera/internal/ledger/models"
	ledgerservice "tessera/internal/ledger/service"
	"tessera/internal/ledger/store"
	outboxstore "tessera/internal/outbox/store"
	"tessera/internal/payout"
	payoutstore "tessera/internal/payout/store"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/audit"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
	"tessera/pkg/testutil/containers"
)

type approveAll struct{}

func (approveAll) IsApproved(context.Context, domain.PartyID) (bool, error) { return true, nil }

type failingAudit struct {
	failOn audit.AuditEvent
}

func (f failingAudit) Emit(_ context.Context, e audit.Event) error {
	if e.Action == string(f.failOn) {
		return errors.New("audit sink unavailable")
	}
	return nil
}

type PostgresLedgerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	assets   *assetservice.Service
	journal  *payout.Journal
	runner   tx.Runner
	operator domain.PartyID
	service  *ledgerservice.Service
	asset    *assetmodels.Asset
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
}

func (s *PostgresLedgerSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateAll(ctx))

	db := s.postgres.DB
	s.runner = tx.NewSQL(db)
	s.operator = domain.NewPartyID()
	s.store = store.NewPostgres(db)
	s.assets = assetservice.New(assetstore.NewPostgres(db), s.operator, assetservice.WithTxRunner(s.runner))
	s.journal = payout.NewJournal(payoutstore.NewPostgres(db), outboxstore.NewPostgres(db))
	s.service = s.newService()

	var err error
	s.asset, err = s.service.Issue(ctx, s.operator, ledgermodels.IssueRequest{
		Name: "Harbor Lofts", Manager: domain.NewPartyID(), TotalShares: 1000, PricePerShare: 10,
	})
	s.Require().NoError(err)
}

func (s *PostgresLedgerSuite) newService(opts ...ledgerservice.Option) *ledgerservice.Service {
	opts = append([]ledgerservice.Option{ledgerservice.WithTxRunner(s.runner)}, opts...)
	return ledgerservice.New(s.store, approveAll{}, s.assets, s.journal, s.operator, opts...)
}

func (s *PostgresLedgerSuite) TestTradeLifecycle() {
	ctx := context.Background()
	alice, bob := domain.NewPartyID(), domain.NewPartyID()

	purchase, err := s.service.Purchase(ctx, s.asset.ID, alice, 600, 6500)
	s.Require().NoError(err)
	s.Equal(int64(500), purchase.Refund)
	_, err = s.service.Purchase(ctx, s.asset.ID, bob, 100, 1000)
	s.Require().NoError(err)

	_, err = s.service.Transfer(ctx, s.asset.ID, alice, bob, 200)
	s.Require().NoError(err)
	sale, err := s.service.Sell(ctx, s.asset.ID, bob, 50)
	s.Require().NoError(err)
	s.Equal(int64(500), sale.Proceeds)

	book, err := s.store.GetBook(ctx, s.asset.ID)
	s.Require().NoError(err)
	s.Equal(int64(350), book.AvailableShares)
	s.Equal(int64(6500), book.Liquidity)

	holders, err := s.store.ListHolders(ctx, s.asset.ID, 0, 0)
	s.Require().NoError(err)
	s.Require().Len(holders, 2)
	s.Equal(alice, holders[0].PartyID)
	s.Equal(0, holders[0].Ordinal)
	s.Equal(int64(400), holders[0].Shares)
	s.Equal(bob, holders[1].PartyID)
	s.Equal(int64(250), holders[1].Shares)

	investments, err := s.store.ListInvestments(ctx, s.asset.ID, alice)
	s.Require().NoError(err)
	s.Require().Len(investments, 1)
	s.Equal(int64(6000), investments[0].AmountPaid)

	conservation, err := s.service.VerifyConservation(ctx, s.asset.ID)
	s.Require().NoError(err)
	s.True(conservation.Balanced)
	s.Equal(int64(650), conservation.HeldShares)
}

func (s *PostgresLedgerSuite) TestMissingRows() {
	ctx := context.Background()
	_, err := s.store.GetBook(ctx, domain.NewAssetID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.GetHolding(ctx, s.asset.ID, domain.NewPartyID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.SetShares(ctx, s.asset.ID, domain.NewPartyID(), 1), sentinel.ErrNotFound)
}

// TestFailedAuditRollsBack checks the SQL runner undoes every write of an
// operation whose audit event cannot be recorded.
func (s *PostgresLedgerSuite) TestFailedAuditRollsBack() {
	ctx := context.Background()
	alice := domain.NewPartyID()
	svc := s.newService(ledgerservice.WithAuditPublisher(failingAudit{failOn: audit.EventSharesPurchased}))

	_, err := svc.Purchase(ctx, s.asset.ID, alice, 100, 1000)
	s.Require().Error(err)

	book, err := s.store.GetBook(ctx, s.asset.ID)
	s.Require().NoError(err)
	s.Equal(int64(1000), book.AvailableShares)
	s.Equal(int64(0), book.Liquidity)
	_, err = s.store.GetHolding(ctx, s.asset.ID, alice)
	s.ErrorIs(err, sentinel.ErrNotFound)
	instructions, err := s.journal.ListByParty(ctx, alice)
	s.Require().NoError(err)
	s.Empty(instructions)
}

// TestConcurrentPurchasesNeverOversell races buyers across connections for
// more shares than exist.
func (s *PostgresLedgerSuite) TestConcurrentPurchasesNeverOversell() {
	ctx := context.Background()
	const buyers = 20
	var wg sync.WaitGroup
	var bought, rejected atomic.Int32
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Purchase(ctx, s.asset.ID, domain.NewPartyID(), 100, 1000)
			switch {
			case err == nil:
				bought.Add(1)
			case dErrors.HasCode(err, dErrors.CodeInsufficientSupply):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(10), bought.Load())
	s.Equal(int32(10), rejected.Load())

	conservation, err := s.service.VerifyConservation(ctx, s.asset.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), conservation.AvailableShares)
	s.Equal(int64(1000), conservation.HeldShares)
	s.Equal(10, conservation.Holders)
}
