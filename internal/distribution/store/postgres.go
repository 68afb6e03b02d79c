package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tessera/internal/distribution/models"
	"tessera/internal/platform/postgres"
	"tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const distributionColumns = `
	id, asset_id, gross_amount, platform_fee, manager_fee, net_amount, share_denominator,
	denominator_mode, holder_count, claimed_count, total_allocated, total_claimed, dust,
	status, created_at, completed_at`

// CreateDistribution inserts the distribution and all its allocations. The
// allocations go in as one statement over unnested arrays.
func (s *PostgresStore) CreateDistribution(ctx context.Context, d *models.Distribution, allocations []*models.Allocation) error {
	conn := tx.Conn(ctx, s.db)
	_, err := conn.ExecContext(ctx, `
		INSERT INTO distributions (`+distributionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		uuid.UUID(d.ID), uuid.UUID(d.AssetID), d.GrossAmount, d.PlatformFee, d.ManagerFee, d.NetAmount,
		d.ShareDenominator, string(d.DenominatorMode), d.HolderCount, d.ClaimedCount, d.TotalAllocated,
		d.TotalClaimed, d.Dust, string(d.Status), d.CreatedAt, d.CompletedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert distribution: %w", err)
	}
	if len(allocations) == 0 {
		return nil
	}

	parties := make([]string, len(allocations))
	ordinals := make([]int64, len(allocations))
	shares := make([]int64, len(allocations))
	amounts := make([]int64, len(allocations))
	for i, a := range allocations {
		parties[i] = a.PartyID.String()
		ordinals[i] = int64(a.Ordinal)
		shares[i] = a.Shares
		amounts[i] = a.Amount
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO allocations (distribution_id, party_id, ordinal, shares, amount)
		SELECT $1::uuid, party, ordinal, shares, amount
		FROM unnest($2::uuid[], $3::int[], $4::bigint[], $5::bigint[]) AS a(party, ordinal, shares, amount)`,
		uuid.UUID(d.ID), pq.Array(parties), pq.Array(ordinals), pq.Array(shares), pq.Array(amounts),
	)
	if err != nil {
		return fmt.Errorf("insert allocations: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDistribution(ctx context.Context, id domain.DistributionID) (*models.Distribution, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+distributionColumns+` FROM distributions WHERE id = $1`, uuid.UUID(id))
	d, err := scanDistribution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find distribution: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) UpdateDistribution(ctx context.Context, d *models.Distribution) error {
	query := `
		UPDATE distributions
		SET claimed_count = $2, total_claimed = $3, status = $4, completed_at = $5
		WHERE id = $1
	`
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(d.ID), d.ClaimedCount, d.TotalClaimed, string(d.Status), d.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update distribution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByAsset(ctx context.Context, asset domain.AssetID) ([]*models.Distribution, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+distributionColumns+` FROM distributions WHERE asset_id = $1 ORDER BY created_at, id`,
		uuid.UUID(asset))
	if err != nil {
		return nil, fmt.Errorf("list distributions: %w", err)
	}
	defer rows.Close()

	var out []*models.Distribution
	for rows.Next() {
		d, err := scanDistribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distributions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetAllocation(ctx context.Context, id domain.DistributionID, party domain.PartyID) (*models.Allocation, error) {
	query := `
		SELECT distribution_id, party_id, ordinal, shares, amount, claimed, claimed_at
		FROM allocations
		WHERE distribution_id = $1 AND party_id = $2
	`
	a, err := scanAllocation(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(id), uuid.UUID(party)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find allocation: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAllocations(ctx context.Context, id domain.DistributionID, from, to int) ([]*models.Allocation, error) {
	query := `
		SELECT distribution_id, party_id, ordinal, shares, amount, claimed, claimed_at
		FROM allocations
		WHERE distribution_id = $1 AND ordinal >= $2 AND ordinal < $3
		ORDER BY ordinal
	`
	return s.queryAllocations(ctx, query, uuid.UUID(id), from, to)
}

func (s *PostgresStore) MaxOrdinal(ctx context.Context, id domain.DistributionID) (int, error) {
	var ordinal int
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(ordinal), -1) FROM allocations WHERE distribution_id = $1`, uuid.UUID(id)).Scan(&ordinal)
	if err != nil {
		return 0, fmt.Errorf("max allocation ordinal: %w", err)
	}
	return ordinal, nil
}

// MarkClaimed is a conditional update, so two claims racing past the
// distribution lock still pay once.
func (s *PostgresStore) MarkClaimed(ctx context.Context, id domain.DistributionID, party domain.PartyID, at time.Time) error {
	conn := tx.Conn(ctx, s.db)
	res, err := conn.ExecContext(ctx, `
		UPDATE allocations SET claimed = TRUE, claimed_at = $3
		WHERE distribution_id = $1 AND party_id = $2 AND NOT claimed`,
		uuid.UUID(id), uuid.UUID(party), at,
	)
	if err != nil {
		return fmt.Errorf("mark allocation claimed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	err = conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM allocations WHERE distribution_id = $1 AND party_id = $2)`,
		uuid.UUID(id), uuid.UUID(party)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check allocation: %w", err)
	}
	if exists {
		return sentinel.ErrConflict
	}
	return sentinel.ErrNotFound
}

func (s *PostgresStore) ListAllocationsByParty(ctx context.Context, party domain.PartyID) ([]*models.Allocation, error) {
	query := `
		SELECT a.distribution_id, a.party_id, a.ordinal, a.shares, a.amount, a.claimed, a.claimed_at
		FROM allocations a
		JOIN distributions d ON d.id = a.distribution_id
		WHERE a.party_id = $1
		ORDER BY d.created_at, d.id
	`
	return s.queryAllocations(ctx, query, uuid.UUID(party))
}

func (s *PostgresStore) GetCustody(ctx context.Context, asset domain.AssetID) (*models.Custody, error) {
	c := models.Custody{AssetID: asset}
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT pending, dust, updated_at FROM custody WHERE asset_id = $1`, uuid.UUID(asset),
	).Scan(&c.Pending, &c.Dust, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find custody: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) SaveCustody(ctx context.Context, c *models.Custody) error {
	query := `
		INSERT INTO custody (asset_id, pending, dust, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (asset_id) DO UPDATE
		SET pending = EXCLUDED.pending, dust = EXCLUDED.dust, updated_at = EXCLUDED.updated_at
	`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, uuid.UUID(c.AssetID), c.Pending, c.Dust, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save custody: %w", err)
	}
	return nil
}

func (s *PostgresStore) queryAllocations(ctx context.Context, query string, args ...any) ([]*models.Allocation, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	var out []*models.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocations: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDistribution(row scanner) (*models.Distribution, error) {
	var (
		d            models.Distribution
		id, asset    uuid.UUID
		mode, status string
		completedAt  sql.NullTime
	)
	err := row.Scan(&id, &asset, &d.GrossAmount, &d.PlatformFee, &d.ManagerFee, &d.NetAmount,
		&d.ShareDenominator, &mode, &d.HolderCount, &d.ClaimedCount, &d.TotalAllocated,
		&d.TotalClaimed, &d.Dust, &status, &d.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	d.ID = domain.DistributionID(id)
	d.AssetID = domain.AssetID(asset)
	d.DenominatorMode = models.DenominatorMode(mode)
	d.Status = models.Status(status)
	if completedAt.Valid {
		t := completedAt.Time
		d.CompletedAt = &t
	}
	return &d, nil
}

func scanAllocation(row scanner) (*models.Allocation, error) {
	var (
		a         models.Allocation
		id, party uuid.UUID
		claimedAt sql.NullTime
	)
	if err := row.Scan(&id, &party, &a.Ordinal, &a.Shares, &a.Amount, &a.Claimed, &claimedAt); err != nil {
		return nil, err
	}
	a.DistributionID = domain.DistributionID(id)
	a.PartyID = domain.PartyID(party)
	if claimedAt.Valid {
		t := claimedAt.Time
		a.ClaimedAt = &t
	}
	return &a, nil
}
