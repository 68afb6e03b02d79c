package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"tessera/internal/asset/models"
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

const assetColumns = `id, name, manager_id, total_shares, available_shares, price_per_share, status, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, asset *models.Asset) error {
	query := `INSERT INTO assets (` + assetColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(asset.ID),
		asset.Name,
		uuid.UUID(asset.Manager),
		asset.TotalShares,
		asset.AvailableShares,
		asset.PricePerShare,
		string(asset.Status),
		asset.CreatedAt,
		asset.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.AssetID) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`
	asset, err := scanAsset(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find asset: %w", err)
	}
	return asset, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets ORDER BY created_at, id`
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []*models.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, asset *models.Asset) error {
	query := `
		UPDATE assets
		SET name = $2, available_shares = $3, price_per_share = $4, status = $5, updated_at = $6
		WHERE id = $1
	`
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(asset.ID),
		asset.Name,
		asset.AvailableShares,
		asset.PricePerShare,
		string(asset.Status),
		asset.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update asset rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*models.Asset, error) {
	var (
		asset   models.Asset
		id      uuid.UUID
		manager uuid.UUID
		status  string
	)
	if err := row.Scan(&id, &asset.Name, &manager, &asset.TotalShares, &asset.AvailableShares,
		&asset.PricePerShare, &status, &asset.CreatedAt, &asset.UpdatedAt); err != nil {
		return nil, err
	}
	asset.ID = domain.AssetID(id)
	asset.Manager = domain.PartyID(manager)
	asset.Status = models.Status(status)
	return &asset, nil
}
