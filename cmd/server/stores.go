package main

import (
	"context"
	"database/sql"
	"log/slog"

	assetservice "tessera/internal/asset/service"
	assetstore "tessera/internal/asset/store"
	complianceservice "tessera/internal/compliance/service"
	compliancestore "tessera/internal/compliance/store"
	distservice "tessera/internal/distribution/service"
	diststore "tessera/internal/distribution/store"
	ledgerservice "tessera/internal/ledger/service"
	ledgerstore "tessera/internal/ledger/store"
	"tessera/internal/outbox"
	outboxstore "tessera/internal/outbox/store"
	"tessera/internal/payout"
	payoutstore "tessera/internal/payout/store"
	"tessera/internal/platform/config"
	"tessera/internal/platform/postgres"
	settingsservice "tessera/internal/settings/service"
	settingsstore "tessera/internal/settings/store"
	"tessera/internal/stats"
	httptransport "tessera/internal/transport/http"
	"tessera/pkg/platform/audit"
	auditmemory "tessera/pkg/platform/audit/store/memory"
	auditpostgres "tessera/pkg/platform/audit/store/postgres"
	"tessera/pkg/platform/tx"
)

// stores is the persistence layer for one process. Every service shares the
// same runner so asset and distribution locks are process-wide.
type stores struct {
	runner        tx.Runner
	assets        assetservice.Store
	ledger        ledgerservice.Store
	distributions distservice.Store
	settings      settingsservice.Store
	compliance    complianceservice.Store
	payouts       payout.Store
	journal       payout.Outbox
	outbox        outbox.Store
	audit         audit.Store
	stats         stats.Source
	checks        map[string]httptransport.HealthCheck
	close         func() error
}

// openStores picks Postgres when DATABASE_URL is set and in-memory maps otherwise.
func openStores(ctx context.Context, cfg config.Database, log *slog.Logger) (*stores, error) {
	if cfg.URL == "" {
		log.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
		return memoryStores(), nil
	}

	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	applied, err := postgres.Migrate(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.InfoContext(ctx, "database ready", "migrations_applied", applied)
	return postgresStores(db), nil
}

func memoryStores() *stores {
	assets := assetstore.NewInMemory()
	ledger := ledgerstore.NewInMemory()
	distributions := diststore.NewInMemory()
	box := outboxstore.NewInMemory()
	return &stores{
		runner:        tx.NewSharded(),
		assets:        assets,
		ledger:        ledger,
		distributions: distributions,
		settings:      settingsstore.NewInMemory(),
		compliance:    compliancestore.NewInMemory(),
		payouts:       payoutstore.NewInMemory(),
		journal:       box,
		outbox:        box,
		audit:         auditmemory.NewInMemoryStore(),
		stats:         stats.NewAggregator(assets, ledger, distributions),
		checks:        map[string]httptransport.HealthCheck{},
		close:         func() error { return nil },
	}
}

func postgresStores(db *sql.DB) *stores {
	box := outboxstore.NewPostgres(db)
	return &stores{
		runner:        tx.NewSQL(db),
		assets:        assetstore.NewPostgres(db),
		ledger:        ledgerstore.NewPostgres(db),
		distributions: diststore.NewPostgres(db),
		settings:      settingsstore.NewPostgres(db),
		compliance:    compliancestore.NewPostgres(db),
		payouts:       payoutstore.NewPostgres(db),
		journal:       box,
		outbox:        box,
		audit:         auditpostgres.New(db),
		stats:         stats.NewPostgres(db),
		checks: map[string]httptransport.HealthCheck{
			"postgres": db.PingContext,
		},
		close: db.Close,
	}
}
