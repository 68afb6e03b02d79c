package stats

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresSource computes Stats with a single aggregate query.
type PostgresSource struct {
	db *sqlx.DB
}

func NewPostgres(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: sqlx.NewDb(db, "pgx")}
}

const snapshotQuery = `
	SELECT
		(SELECT COUNT(*) FROM assets)                                        AS assets,
		(SELECT COUNT(*) FROM assets WHERE status = 'active')                AS active_assets,
		(SELECT COUNT(*) FROM holdings)                                      AS investors,
		(SELECT COALESCE(SUM(total_shares), 0)::bigint FROM ledger_books)    AS shares_issued,
		(SELECT COALESCE(SUM(shares), 0)::bigint FROM holdings)              AS shares_held,
		(SELECT COUNT(*) FROM distributions)                                 AS distributions,
		(SELECT COUNT(*) FROM distributions WHERE status = 'completed')      AS completed_distributions,
		(SELECT COALESCE(SUM(gross_amount), 0)::bigint FROM distributions)   AS gross_distributed,
		(SELECT COALESCE(SUM(platform_fee + manager_fee), 0)::bigint
			FROM distributions)                                              AS fees_collected,
		(SELECT COALESCE(SUM(total_claimed), 0)::bigint FROM distributions)  AS total_claimed,
		(SELECT COALESCE(SUM(pending), 0)::bigint FROM custody)              AS pending_revenue,
		(SELECT COALESCE(SUM(dust), 0)::bigint FROM custody)                 AS dust
`

func (s *PostgresSource) Snapshot(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := s.db.GetContext(ctx, &out, snapshotQuery); err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	return &out, nil
}
