package models

import (
	"strings"
	"time"

	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
)

func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusPaused
}

// Asset is the registry record for a tokenized asset. TotalShares never
// changes after registration; AvailableShares mirrors the ledger.
type Asset struct {
	ID              domain.AssetID `json:"id"`
	Name            string         `json:"name"`
	Manager         domain.PartyID `json:"manager"`
	TotalShares     int64          `json:"total_shares"`
	AvailableShares int64          `json:"available_shares"`
	PricePerShare   int64          `json:"price_per_share"`
	Status          Status         `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewAsset builds an active asset with its whole supply available.
func NewAsset(id domain.AssetID, name string, manager domain.PartyID, totalShares, pricePerShare int64, now time.Time) (*Asset, error) {
	name = strings.TrimSpace(name)
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "asset id is required")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "asset name is required")
	}
	if manager.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "asset manager is required")
	}
	if totalShares <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "total shares must be positive")
	}
	if pricePerShare <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "price per share must be positive")
	}
	return &Asset{
		ID:              id,
		Name:            name,
		Manager:         manager,
		TotalShares:     totalShares,
		AvailableShares: totalShares,
		PricePerShare:   pricePerShare,
		Status:          StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (a *Asset) IsActive() bool {
	return a.Status == StatusActive
}
