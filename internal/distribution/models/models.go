package models

import (
	"time"

	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusCompleted Status = "completed"
)

// DenominatorMode selects the share count each allocation is divided by.
type DenominatorMode string

const (
	// DenominatorTotalSupply divides by the asset's total shares, so unsold
	// supply dilutes holders and its portion stays as dust.
	DenominatorTotalSupply DenominatorMode = "total_supply"
	// DenominatorHeldShares divides by the sum of holder balances.
	DenominatorHeldShares DenominatorMode = "held_shares"
)

func ParseDenominatorMode(s string) (DenominatorMode, error) {
	switch mode := DenominatorMode(s); mode {
	case DenominatorTotalSupply, DenominatorHeldShares:
		return mode, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "denominator mode must be total_supply or held_shares")
}

// Distribution is one revenue-sharing event. Amounts are fixed at creation;
// only the claim counters, status and completion time change afterwards.
type Distribution struct {
	ID               domain.DistributionID `json:"id"`
	AssetID          domain.AssetID        `json:"asset_id"`
	GrossAmount      int64                 `json:"gross_amount"`
	PlatformFee      int64                 `json:"platform_fee"`
	ManagerFee       int64                 `json:"manager_fee"`
	NetAmount        int64                 `json:"net_amount"`
	ShareDenominator int64                 `json:"share_denominator"`
	DenominatorMode  DenominatorMode       `json:"denominator_mode"`
	HolderCount      int                   `json:"holder_count"`
	ClaimedCount     int                   `json:"claimed_count"`
	TotalAllocated   int64                 `json:"total_allocated"`
	TotalClaimed     int64                 `json:"total_claimed"`
	Dust             int64                 `json:"dust"`
	Status           Status                `json:"status"`
	CreatedAt        time.Time             `json:"created_at"`
	CompletedAt      *time.Time            `json:"completed_at,omitempty"`
}

func (d *Distribution) IsCompleted() bool {
	return d.Status == StatusCompleted
}

// Complete marks the distribution completed once every allocation is
// claimed. It reports whether the status changed; a completed distribution
// is never reopened.
func (d *Distribution) Complete(now time.Time) bool {
	if d.IsCompleted() || d.ClaimedCount < d.HolderCount {
		return false
	}
	d.Status = StatusCompleted
	d.CompletedAt = &now
	return true
}

// Allocation is one holder's nonzero share of a distribution. Ordinal is the
// holder's investor registry position, which batches page over.
type Allocation struct {
	DistributionID domain.DistributionID `json:"distribution_id"`
	PartyID        domain.PartyID        `json:"party_id"`
	Ordinal        int                   `json:"ordinal"`
	Shares         int64                 `json:"shares"`
	Amount         int64                 `json:"amount"`
	Claimed        bool                  `json:"claimed"`
	ClaimedAt      *time.Time            `json:"claimed_at,omitempty"`
}

// Custody is revenue held for an asset: deposits not yet distributed and
// remainders no holder was attributed.
type Custody struct {
	AssetID   domain.AssetID `json:"asset_id"`
	Pending   int64          `json:"pending"`
	Dust      int64          `json:"dust"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// BatchResult summarizes one batch distribution call.
type BatchResult struct {
	Processed  int   `json:"processed"`
	Paid       int   `json:"paid"`
	AmountPaid int64 `json:"amount_paid"`
	NextOffset int   `json:"next_offset"`
	// Done is true when the slice reached past the last investor ordinal.
	Done      bool `json:"done"`
	Completed bool `json:"completed"`
}

// HolderDistribution pairs a distribution with the caller's allocation in it.
type HolderDistribution struct {
	Distribution *Distribution `json:"distribution"`
	Allocation   *Allocation   `json:"allocation"`
}
