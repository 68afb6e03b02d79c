package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tessera/internal/settings/models"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
)

// PostgresStore persists settings as the single platform_settings row.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context) (*models.Settings, error) {
	query := `
		SELECT platform_fee_bp, manager_fee_bp, paused, updated_at
		FROM platform_settings
		WHERE id = 1
	`
	var out models.Settings
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, query).Scan(
		&out.PlatformFeeBP, &out.ManagerFeeBP, &out.Paused, &out.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &out, nil
}

func (s *PostgresStore) Save(ctx context.Context, settings *models.Settings) error {
	query := `
		INSERT INTO platform_settings (id, platform_fee_bp, manager_fee_bp, paused, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			platform_fee_bp = EXCLUDED.platform_fee_bp,
			manager_fee_bp = EXCLUDED.manager_fee_bp,
			paused = EXCLUDED.paused,
			updated_at = EXCLUDED.updated_at
	`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		settings.PlatformFeeBP, settings.ManagerFeeBP, settings.Paused, settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
