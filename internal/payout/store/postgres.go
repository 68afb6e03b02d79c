package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"tessera/internal/payout"
	"tessera/pkg/domain"
	"tessera/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, instruction *payout.Instruction) error {
	query := `
		INSERT INTO payouts (id, kind, asset_id, party_id, amount, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(instruction.ID),
		string(instruction.Kind),
		uuid.UUID(instruction.AssetID),
		uuid.UUID(instruction.PartyID),
		instruction.Amount,
		instruction.Reference,
		instruction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByParty(ctx context.Context, party domain.PartyID) ([]*payout.Instruction, error) {
	query := `
		SELECT id, kind, asset_id, party_id, amount, reference, created_at
		FROM payouts
		WHERE party_id = $1
		ORDER BY created_at, id
	`
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, uuid.UUID(party))
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var out []*payout.Instruction
	for rows.Next() {
		var (
			in             payout.Instruction
			id, asset, who uuid.UUID
			kind           string
		)
		if err := rows.Scan(&id, &kind, &asset, &who, &in.Amount, &in.Reference, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		in.ID = domain.PayoutID(id)
		in.Kind = payout.Kind(kind)
		in.AssetID = domain.AssetID(asset)
		in.PartyID = domain.PartyID(who)
		out = append(out, &in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payouts: %w", err)
	}
	return out, nil
}
