package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"tessera/internal/compliance/models"
	"tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
)

// PostgresStore persists approvals in compliance_approvals.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, party domain.PartyID) (*models.Approval, error) {
	query := `
		SELECT approved, reason, updated_at
		FROM compliance_approvals
		WHERE party_id = $1
	`
	approval := models.Approval{PartyID: party}
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(party)).Scan(
		&approval.Approved, &approval.Reason, &approval.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find approval: %w", err)
	}
	return &approval, nil
}

func (s *PostgresStore) Save(ctx context.Context, approval *models.Approval) error {
	query := `
		INSERT INTO compliance_approvals (party_id, approved, reason, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (party_id) DO UPDATE SET
			approved = EXCLUDED.approved,
			reason = EXCLUDED.reason,
			updated_at = EXCLUDED.updated_at
	`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(approval.PartyID), approval.Approved, approval.Reason, approval.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save approval: %w", err)
	}
	return nil
}
