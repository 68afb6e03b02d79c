package models

import (
	"time"

	"tessera/pkg/domain"
)

// Approval is the allowlist entry for a party. A missing entry means not approved.
type Approval struct {
	PartyID   domain.PartyID `json:"party_id"`
	Approved  bool           `json:"approved"`
	Reason    string         `json:"reason,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}
