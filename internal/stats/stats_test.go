package stats

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	assetmodels "tessera/internal/asset/models"
	assetservice "tessera/internal/asset/service"
	assetstore "tessera/internal/asset/store"
	distmodels "tessera/internal/distribution/models"
	distservice "tessera/internal/distribution/service"
	diststore "tessera/internal/distribution/store"
	ledgermodels "tessera/internal/ledger/models"
	ledgerservice "tessera/internal/ledger/service"
	ledgerstore "tessera/internal/ledger/store"
	outboxstore "tessera/internal/outbox/store"
	"tessera/internal/payout"
	payoutstore "tessera/internal/payout/store"
	"tessera/internal/platform/logger"
	settingsservice "tessera/internal/settings/service"
	settingsstore "tessera/internal/settings/store"
	"tessera/pkg/domain"
)

type approveAll struct{}

func (approveAll) IsApproved(context.Context, domain.PartyID) (bool, error) { return true, nil }

type brokenDistributions struct{}

func (brokenDistributions) ListDistributions(context.Context) ([]*distmodels.Distribution, error) {
	return nil, errors.New("connection reset")
}

func (brokenDistributions) ListCustody(context.Context) ([]*distmodels.Custody, error) {
	return nil, nil
}

type platform struct {
	assets        *assetservice.Service
	ledgerStore   *ledgerstore.InMemory
	distStore     *diststore.InMemory
	aggregator    *Aggregator
	ledger        *ledgerservice.Service
	distributions *distservice.Service
	operator      domain.PartyID
	manager       domain.PartyID
}

func newPlatform(t *testing.T) *platform {
	t.Helper()
	p := &platform{
		operator:    domain.NewPartyID(),
		manager:     domain.NewPartyID(),
		ledgerStore: ledgerstore.NewInMemory(),
		distStore:   diststore.NewInMemory(),
	}
	settings, err := settingsservice.New(settingsstore.NewInMemory(), p.operator)
	require.NoError(t, err)
	p.assets = assetservice.New(assetstore.NewInMemory(), p.operator)
	journal := payout.NewJournal(payoutstore.NewInMemory(), outboxstore.NewInMemory())
	p.ledger = ledgerservice.New(p.ledgerStore, approveAll{}, p.assets, journal, p.operator)
	p.distributions = distservice.New(p.distStore, p.ledger, p.assets, settings, journal, p.operator)
	p.aggregator = NewAggregator(p.assets, p.ledgerStore, p.distStore)
	return p
}

func (p *platform) issue(t *testing.T, name string) *assetmodels.Asset {
	t.Helper()
	asset, err := p.ledger.Issue(context.Background(), p.operator, ledgermodels.IssueRequest{
		Name: name, Manager: p.manager, TotalShares: 1000, PricePerShare: 10,
	})
	require.NoError(t, err)
	return asset
}

func TestAggregatorSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("empty platform", func(t *testing.T) {
		p := newPlatform(t)
		snapshot, err := p.aggregator.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{}, *snapshot)
	})

	t.Run("totals across assets and distributions", func(t *testing.T) {
		p := newPlatform(t)
		alice, bob := domain.NewPartyID(), domain.NewPartyID()
		lofts := p.issue(t, "Harbor Lofts")
		mill := p.issue(t, "Old Mill")
		_, err := p.assets.SetStatus(ctx, p.operator, mill.ID, assetmodels.StatusPaused)
		require.NoError(t, err)

		_, err = p.ledger.Purchase(ctx, lofts.ID, alice, 600, 6000)
		require.NoError(t, err)
		_, err = p.ledger.Purchase(ctx, lofts.ID, bob, 400, 4000)
		require.NoError(t, err)
		_, err = p.distributions.DepositRevenue(ctx, lofts.ID, p.manager, 1500)
		require.NoError(t, err)
		d, err := p.distributions.CreateDistribution(ctx, lofts.ID, p.manager, 1000)
		require.NoError(t, err)
		_, err = p.distributions.ClaimDistribution(ctx, d.ID, alice)
		require.NoError(t, err)

		snapshot, err := p.aggregator.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{
			Assets:                 2,
			ActiveAssets:           1,
			Investors:              2,
			SharesIssued:           2000,
			SharesHeld:             1000,
			Distributions:          1,
			CompletedDistributions: 0,
			GrossDistributed:       1000,
			FeesCollected:          75,
			TotalClaimed:           555,
			PendingRevenue:         500,
			Dust:                   0,
		}, *snapshot)
	})

	t.Run("source failure", func(t *testing.T) {
		p := newPlatform(t)
		agg := NewAggregator(p.assets, p.ledgerStore, brokenDistributions{})
		_, err := agg.Snapshot(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestStatsHandler(t *testing.T) {
	p := newPlatform(t)
	p.issue(t, "Harbor Lofts")

	r := chi.NewRouter()
	NewHandler(p.aggregator, logger.Discard()).Register(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"assets":1`)
	assert.Contains(t, rr.Body.String(), `"shares_issued":1000`)

	broken := chi.NewRouter()
	NewHandler(NewAggregator(p.assets, p.ledgerStore, brokenDistributions{}), logger.Discard()).Register(broken)
	rr = httptest.NewRecorder()
	broken.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
