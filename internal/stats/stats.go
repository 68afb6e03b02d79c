// Package stats reports platform-wide totals across assets, share books and
// distributions.
package stats

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	assetmodels "tessera/internal/asset/models"
	distmodels "tessera/internal/distribution/models"
	ledgermodels "tessera/internal/ledger/models"
	"tessera/pkg/domain"
)

// Stats is a point-in-time snapshot. Money fields are minor units.
type Stats struct {
	Assets                 int64 `json:"assets" db:"assets"`
	ActiveAssets           int64 `json:"active_assets" db:"active_assets"`
	Investors              int64 `json:"investors" db:"investors"`
	SharesIssued           int64 `json:"shares_issued" db:"shares_issued"`
	SharesHeld             int64 `json:"shares_held" db:"shares_held"`
	Distributions          int64 `json:"distributions" db:"distributions"`
	CompletedDistributions int64 `json:"completed_distributions" db:"completed_distributions"`
	GrossDistributed       int64 `json:"gross_distributed" db:"gross_distributed"`
	FeesCollected          int64 `json:"fees_collected" db:"fees_collected"`
	TotalClaimed           int64 `json:"total_claimed" db:"total_claimed"`
	PendingRevenue         int64 `json:"pending_revenue" db:"pending_revenue"`
	Dust                   int64 `json:"dust" db:"dust"`
}

type AssetLister interface {
	List(ctx context.Context) ([]*assetmodels.Asset, error)
}

type LedgerReader interface {
	ListBooks(ctx context.Context) ([]*ledgermodels.Book, error)
	CountHolders(ctx context.Context, asset domain.AssetID) (int, error)
	SumShares(ctx context.Context, asset domain.AssetID) (int64, error)
}

type DistributionReader interface {
	ListDistributions(ctx context.Context) ([]*distmodels.Distribution, error)
	ListCustody(ctx context.Context) ([]*distmodels.Custody, error)
}

// Aggregator computes Stats by walking the in-memory stores. Each source is
// read concurrently and the partial totals are merged at the end.
type Aggregator struct {
	assets        AssetLister
	ledger        LedgerReader
	distributions DistributionReader
}

func NewAggregator(assets AssetLister, ledger LedgerReader, distributions DistributionReader) *Aggregator {
	return &Aggregator{assets: assets, ledger: ledger, distributions: distributions}
}

func (a *Aggregator) Snapshot(ctx context.Context) (*Stats, error) {
	var assetPart, ledgerPart, distPart Stats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		assets, err := a.assets.List(ctx)
		if err != nil {
			return fmt.Errorf("list assets: %w", err)
		}
		assetPart.Assets = int64(len(assets))
		for _, asset := range assets {
			if asset.IsActive() {
				assetPart.ActiveAssets++
			}
		}
		return nil
	})

	g.Go(func() error {
		books, err := a.ledger.ListBooks(ctx)
		if err != nil {
			return fmt.Errorf("list books: %w", err)
		}
		for _, b := range books {
			holders, err := a.ledger.CountHolders(ctx, b.AssetID)
			if err != nil {
				return fmt.Errorf("count holders: %w", err)
			}
			held, err := a.ledger.SumShares(ctx, b.AssetID)
			if err != nil {
				return fmt.Errorf("sum shares: %w", err)
			}
			ledgerPart.Investors += int64(holders)
			ledgerPart.SharesIssued += b.TotalShares
			ledgerPart.SharesHeld += held
		}
		return nil
	})

	g.Go(func() error {
		list, err := a.distributions.ListDistributions(ctx)
		if err != nil {
			return fmt.Errorf("list distributions: %w", err)
		}
		for _, d := range list {
			distPart.Distributions++
			if d.IsCompleted() {
				distPart.CompletedDistributions++
			}
			distPart.GrossDistributed += d.GrossAmount
			distPart.FeesCollected += d.PlatformFee + d.ManagerFee
			distPart.TotalClaimed += d.TotalClaimed
		}
		custody, err := a.distributions.ListCustody(ctx)
		if err != nil {
			return fmt.Errorf("list custody: %w", err)
		}
		for _, c := range custody {
			distPart.PendingRevenue += c.Pending
			distPart.Dust += c.Dust
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Stats{
		Assets:                 assetPart.Assets,
		ActiveAssets:           assetPart.ActiveAssets,
		Investors:              ledgerPart.Investors,
		SharesIssued:           ledgerPart.SharesIssued,
		SharesHeld:             ledgerPart.SharesHeld,
		Distributions:          distPart.Distributions,
		CompletedDistributions: distPart.CompletedDistributions,
		GrossDistributed:       distPart.GrossDistributed,
		FeesCollected:          distPart.FeesCollected,
		TotalClaimed:           distPart.TotalClaimed,
		PendingRevenue:         distPart.PendingRevenue,
		Dust:                   distPart.Dust,
	}, nil
}
