package models

import (
	"fmt"
	"time"

	dErrors "tessera/pkg/domain-errors"
)

// Fee ceilings in basis points.
const (
	MaxPlatformFeeBP int64 = 1000
	MaxManagerFeeBP  int64 = 2000
)

// Settings are the platform-wide policy values controlled by the operator.
type Settings struct {
	PlatformFeeBP int64     `json:"platform_fee_bp"`
	ManagerFeeBP  int64     `json:"manager_fee_bp"`
	Paused        bool      `json:"paused"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ValidateFees checks both rates against their ceilings.
func ValidateFees(platformBP, managerBP int64) error {
	if platformBP < 0 || platformBP > MaxPlatformFeeBP {
		return dErrors.New(dErrors.CodeInvalidAmount,
			fmt.Sprintf("platform fee must be between 0 and %d basis points", MaxPlatformFeeBP))
	}
	if managerBP < 0 || managerBP > MaxManagerFeeBP {
		return dErrors.New(dErrors.CodeInvalidAmount,
			fmt.Sprintf("manager fee must be between 0 and %d basis points", MaxManagerFeeBP))
	}
	return nil
}
