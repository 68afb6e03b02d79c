// Package payout records fund transfers owed to parties. Sending an
// instruction persists it with an outbox message in the caller's
// transaction; settlement happens downstream of the event stream.
package payout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tessera/internal/outbox"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/requestcontext"
)

type Kind string

const (
	KindRefund       Kind = "refund"
	KindSaleProceeds Kind = "sale_proceeds"
	KindPlatformFee  Kind = "platform_fee"
	KindManagerFee   Kind = "manager_fee"
	KindDistribution Kind = "distribution"
)

// Instruction is one transfer of Amount minor units to PartyID.
type Instruction struct {
	ID        domain.PayoutID `json:"id"`
	Kind      Kind            `json:"kind"`
	AssetID   domain.AssetID  `json:"asset_id"`
	PartyID   domain.PartyID  `json:"party_id"`
	Amount    int64           `json:"amount"`
	Reference string          `json:"reference"`
	CreatedAt time.Time       `json:"created_at"`
}

type Store interface {
	Create(ctx context.Context, instruction *Instruction) error
	ListByParty(ctx context.Context, party domain.PartyID) ([]*Instruction, error)
}

type Outbox interface {
	Append(ctx context.Context, msg *outbox.Message) error
}

// Journal is the funds transfer port used by the ledger and distribution engine.
type Journal struct {
	store  Store
	outbox Outbox
}

func NewJournal(store Store, outbox Outbox) *Journal {
	return &Journal{store: store, outbox: outbox}
}

// Send records a transfer. It must run inside the operation's transaction.
func (j *Journal) Send(ctx context.Context, kind Kind, asset domain.AssetID, party domain.PartyID, amount int64, reference string) (*Instruction, error) {
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "payout amount must be positive")
	}
	if party.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "payout recipient is required")
	}
	instruction := &Instruction{
		ID:        domain.NewPayoutID(),
		Kind:      kind,
		AssetID:   asset,
		PartyID:   party,
		Amount:    amount,
		Reference: reference,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := j.store.Create(ctx, instruction); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record payout")
	}

	payload, err := json.Marshal(instruction)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode payout")
	}
	msg := outbox.NewMessage("asset", asset.String(), fmt.Sprintf("payout.%s", kind), payload, instruction.CreatedAt)
	if err := j.outbox.Append(ctx, msg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue payout")
	}
	return instruction, nil
}

// ListByParty returns the payouts owed to party, oldest first.
func (j *Journal) ListByParty(ctx context.Context, party domain.PartyID) ([]*Instruction, error) {
	instructions, err := j.store.ListByParty(ctx, party)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list payouts")
	}
	return instructions, nil
}
