package models

import (
	"strings"
	"time"

	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

// Book is the ledger position of one asset. TotalShares is fixed at
// issuance; Liquidity holds purchase funds available for sale proceeds.
type Book struct {
	AssetID         domain.AssetID `json:"asset_id"`
	TotalShares     int64          `json:"total_shares"`
	AvailableShares int64          `json:"available_shares"`
	Liquidity       int64          `json:"liquidity"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Holding is a registered investor's balance. Ordinal is the investor's
// position in registration order and never changes, even at zero balance.
type Holding struct {
	AssetID      domain.AssetID `json:"asset_id"`
	PartyID      domain.PartyID `json:"party_id"`
	Shares       int64          `json:"shares"`
	Ordinal      int            `json:"ordinal"`
	RegisteredAt time.Time      `json:"registered_at"`
}

// Investment is an append-only record of a purchase.
type Investment struct {
	ID            domain.InvestmentID `json:"id"`
	AssetID       domain.AssetID      `json:"asset_id"`
	PartyID       domain.PartyID      `json:"party_id"`
	Shares        int64               `json:"shares"`
	PricePerShare int64               `json:"price_per_share"`
	AmountPaid    int64               `json:"amount_paid"`
	CreatedAt     time.Time           `json:"created_at"`
}

// IssueRequest describes a new asset and its ledger book.
type IssueRequest struct {
	Name          string         `json:"name"`
	Manager       domain.PartyID `json:"manager"`
	TotalShares   int64          `json:"total_shares"`
	PricePerShare int64          `json:"price_per_share"`
}

func (r *IssueRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.Manager.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "manager is required")
	}
	if r.TotalShares <= 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "total_shares must be positive")
	}
	if r.PricePerShare <= 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "price_per_share must be positive")
	}
	return nil
}

type PurchaseResult struct {
	Investment *Investment `json:"investment"`
	Cost       int64       `json:"cost"`
	Refund     int64       `json:"refund"`
	Balance    int64       `json:"balance"`
	Available  int64       `json:"available_shares"`
}

type SaleResult struct {
	Shares    int64 `json:"shares"`
	Proceeds  int64 `json:"proceeds"`
	Balance   int64 `json:"balance"`
	Available int64 `json:"available_shares"`
}

type TransferResult struct {
	From        domain.PartyID `json:"from"`
	To          domain.PartyID `json:"to"`
	Shares      int64          `json:"shares"`
	FromBalance int64          `json:"from_balance"`
	ToBalance   int64          `json:"to_balance"`
}

// Position is one line of a party's portfolio.
type Position struct {
	AssetID     domain.AssetID `json:"asset_id"`
	Shares      int64          `json:"shares"`
	OwnershipBP int64          `json:"ownership_bp"`
}

// Conservation is the result of recounting an asset's shares.
type Conservation struct {
	AssetID         domain.AssetID `json:"asset_id"`
	TotalShares     int64          `json:"total_shares"`
	AvailableShares int64          `json:"available_shares"`
	HeldShares      int64          `json:"held_shares"`
	Holders         int            `json:"holders"`
	Balanced        bool           `json:"balanced"`
}
