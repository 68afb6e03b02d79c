package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tessera/internal/ledger/models"
	"tessera/internal/platform/postgres"
	"tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
)

// PostgresStore persists books, holdings and investments. Writes are made
// under the asset advisory lock held by the caller's transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateBook(ctx context.Context, b *models.Book) error {
	query := `
		INSERT INTO ledger_books (asset_id, total_shares, available_shares, liquidity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(b.AssetID), b.TotalShares, b.AvailableShares, b.Liquidity, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert ledger book: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBook(ctx context.Context, asset domain.AssetID) (*models.Book, error) {
	query := `
		SELECT total_shares, available_shares, liquidity, created_at, updated_at
		FROM ledger_books
		WHERE asset_id = $1
	`
	b := models.Book{AssetID: asset}
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(asset)).Scan(
		&b.TotalShares, &b.AvailableShares, &b.Liquidity, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find ledger book: %w", err)
	}
	return &b, nil
}

func (s *PostgresStore) UpdateBook(ctx context.Context, b *models.Book) error {
	query := `
		UPDATE ledger_books
		SET available_shares = $2, liquidity = $3, updated_at = $4
		WHERE asset_id = $1
	`
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(b.AssetID), b.AvailableShares, b.Liquidity, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update ledger book: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) GetHolding(ctx context.Context, asset domain.AssetID, party domain.PartyID) (*models.Holding, error) {
	query := `
		SELECT shares, ordinal, registered_at
		FROM holdings
		WHERE asset_id = $1 AND party_id = $2
	`
	h := models.Holding{AssetID: asset, PartyID: party}
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(asset), uuid.UUID(party)).Scan(
		&h.Shares, &h.Ordinal, &h.RegisteredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find holding: %w", err)
	}
	return &h, nil
}

// RegisterHolder assigns the next ordinal. The caller holds the asset lock,
// so MAX(ordinal) cannot race.
func (s *PostgresStore) RegisterHolder(ctx context.Context, asset domain.AssetID, party domain.PartyID, at time.Time) (*models.Holding, error) {
	query := `
		INSERT INTO holdings (asset_id, party_id, shares, ordinal, registered_at)
		SELECT $1::uuid, $2::uuid, 0, COALESCE(MAX(ordinal) + 1, 0), $3::timestamptz
		FROM holdings
		WHERE asset_id = $1
		RETURNING ordinal
	`
	h := models.Holding{AssetID: asset, PartyID: party, RegisteredAt: at}
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(asset), uuid.UUID(party), at).Scan(&h.Ordinal)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("register holder: %w", err)
	}
	return &h, nil
}

func (s *PostgresStore) SetShares(ctx context.Context, asset domain.AssetID, party domain.PartyID, shares int64) error {
	query := `UPDATE holdings SET shares = $3 WHERE asset_id = $1 AND party_id = $2`
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, uuid.UUID(asset), uuid.UUID(party), shares)
	if err != nil {
		return fmt.Errorf("update holding: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) AppendInvestment(ctx context.Context, inv *models.Investment) error {
	query := `
		INSERT INTO investments (id, asset_id, party_id, shares, price_per_share, amount_paid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(inv.ID), uuid.UUID(inv.AssetID), uuid.UUID(inv.PartyID),
		inv.Shares, inv.PricePerShare, inv.AmountPaid, inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert investment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListInvestments(ctx context.Context, asset domain.AssetID, party domain.PartyID) ([]*models.Investment, error) {
	query := `
		SELECT id, shares, price_per_share, amount_paid, created_at
		FROM investments
		WHERE asset_id = $1 AND party_id = $2
		ORDER BY created_at, id
	`
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, uuid.UUID(asset), uuid.UUID(party))
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	defer rows.Close()

	var out []*models.Investment
	for rows.Next() {
		var (
			inv models.Investment
			id  uuid.UUID
		)
		if err := rows.Scan(&id, &inv.Shares, &inv.PricePerShare, &inv.AmountPaid, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		inv.ID = domain.InvestmentID(id)
		inv.AssetID = asset
		inv.PartyID = party
		out = append(out, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate investments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListHolders(ctx context.Context, asset domain.AssetID, offset, limit int) ([]*models.Holding, error) {
	query := `
		SELECT party_id, shares, ordinal, registered_at
		FROM holdings
		WHERE asset_id = $1 AND ordinal >= $2
		ORDER BY ordinal
	`
	args := []any{uuid.UUID(asset), offset}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	return s.queryHoldings(ctx, asset, query, args...)
}

func (s *PostgresStore) ListPositiveHolders(ctx context.Context, asset domain.AssetID) ([]*models.Holding, error) {
	query := `
		SELECT party_id, shares, ordinal, registered_at
		FROM holdings
		WHERE asset_id = $1 AND shares > 0
		ORDER BY ordinal
	`
	return s.queryHoldings(ctx, asset, query, uuid.UUID(asset))
}

func (s *PostgresStore) queryHoldings(ctx context.Context, asset domain.AssetID, query string, args ...any) ([]*models.Holding, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	var out []*models.Holding
	for rows.Next() {
		var (
			h     models.Holding
			party uuid.UUID
		)
		if err := rows.Scan(&party, &h.Shares, &h.Ordinal, &h.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		h.AssetID = asset
		h.PartyID = domain.PartyID(party)
		out = append(out, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holdings: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountHolders(ctx context.Context, asset domain.AssetID) (int, error) {
	var n int
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM holdings WHERE asset_id = $1`, uuid.UUID(asset)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count holders: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) SumShares(ctx context.Context, asset domain.AssetID) (int64, error) {
	var sum int64
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(shares), 0) FROM holdings WHERE asset_id = $1`, uuid.UUID(asset)).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum holdings: %w", err)
	}
	return sum, nil
}

func (s *PostgresStore) HoldingsByParty(ctx context.Context, party domain.PartyID) ([]*models.Holding, error) {
	query := `
		SELECT asset_id, shares, ordinal, registered_at
		FROM holdings
		WHERE party_id = $1
		ORDER BY registered_at, asset_id
	`
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, uuid.UUID(party))
	if err != nil {
		return nil, fmt.Errorf("list party holdings: %w", err)
	}
	defer rows.Close()

	var out []*models.Holding
	for rows.Next() {
		var (
			h     models.Holding
			asset uuid.UUID
		)
		if err := rows.Scan(&asset, &h.Shares, &h.Ordinal, &h.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		h.AssetID = domain.AssetID(asset)
		h.PartyID = party
		out = append(out, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate party holdings: %w", err)
	}
	return out, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
