// Package domain holds the shared kernel: typed identifiers and integer
// money/share arithmetic used by every module.
package domain

import (
	"github.com/google/uuid"

	dErrors "tessera/pkg/domain-errors"
)

// Typed identifiers. Distinct named types stop an asset ID from being passed
// where a party ID is expected.
type (
	AssetID        uuid.UUID
	PartyID        uuid.UUID
	DistributionID uuid.UUID
	InvestmentID   uuid.UUID
	PayoutID       uuid.UUID
)

func (id AssetID) String() string        { return uuid.UUID(id).String() }
func (id PartyID) String() string        { return uuid.UUID(id).String() }
func (id DistributionID) String() string { return uuid.UUID(id).String() }
func (id InvestmentID) String() string   { return uuid.UUID(id).String() }
func (id PayoutID) String() string       { return uuid.UUID(id).String() }

func (id AssetID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id PartyID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id DistributionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id InvestmentID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id PayoutID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed IDs serialize as plain UUID strings in JSON.
func (id AssetID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id PartyID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id DistributionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id InvestmentID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id PayoutID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }

func (id *AssetID) UnmarshalText(b []byte) error        { return unmarshalID(b, (*uuid.UUID)(id)) }
func (id *PartyID) UnmarshalText(b []byte) error        { return unmarshalID(b, (*uuid.UUID)(id)) }
func (id *DistributionID) UnmarshalText(b []byte) error { return unmarshalID(b, (*uuid.UUID)(id)) }
func (id *InvestmentID) UnmarshalText(b []byte) error   { return unmarshalID(b, (*uuid.UUID)(id)) }
func (id *PayoutID) UnmarshalText(b []byte) error       { return unmarshalID(b, (*uuid.UUID)(id)) }

func unmarshalID(b []byte, dst *uuid.UUID) error {
	parsed, err := parseUUID(string(b), "id")
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

func NewAssetID() AssetID               { return AssetID(uuid.New()) }
func NewPartyID() PartyID               { return PartyID(uuid.New()) }
func NewDistributionID() DistributionID { return DistributionID(uuid.New()) }
func NewInvestmentID() InvestmentID     { return InvestmentID(uuid.New()) }
func NewPayoutID() PayoutID             { return PayoutID(uuid.New()) }

// ParseAssetID parses an asset identifier from untrusted input.
func ParseAssetID(s string) (AssetID, error) {
	u, err := parseUUID(s, "asset id")
	return AssetID(u), err
}

// ParsePartyID parses a party identifier from untrusted input.
func ParsePartyID(s string) (PartyID, error) {
	u, err := parseUUID(s, "party id")
	return PartyID(u), err
}

// ParseDistributionID parses a distribution identifier from untrusted input.
func ParseDistributionID(s string) (DistributionID, error) {
	u, err := parseUUID(s, "distribution id")
	return DistributionID(u), err
}

func parseUUID(s, name string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, name+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+name)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, name+" must not be nil")
	}
	return u, nil
}
