// Package distribution holds the revenue split arithmetic. Everything here is
// integer floor math over minor units; nothing touches storage.
package distribution

import (
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

// Fees is a gross amount split into platform fee, manager fee and the net
// amount left for holders. Platform + Manager + Net == gross always holds.
type Fees struct {
	Platform int64
	Manager  int64
	Net      int64
}

// ComputeFees floors each fee independently so the net absorbs both rounding
// remainders.
func ComputeFees(gross, platformBP, managerBP int64) (Fees, error) {
	if gross <= 0 {
		return Fees{}, dErrors.New(dErrors.CodeInvalidAmount, "gross amount must be positive")
	}
	if platformBP < 0 || managerBP < 0 || platformBP+managerBP > domain.MaxBasisPoints {
		return Fees{}, dErrors.New(dErrors.CodeInvalidAmount, "fee rates must be within 0 and 10000 basis points combined")
	}
	platform, err := domain.BasisPoints(gross, platformBP)
	if err != nil {
		return Fees{}, dErrors.Wrap(err, dErrors.CodeInvalidAmount, "platform fee overflows")
	}
	manager, err := domain.BasisPoints(gross, managerBP)
	if err != nil {
		return Fees{}, dErrors.Wrap(err, dErrors.CodeInvalidAmount, "manager fee overflows")
	}
	return Fees{Platform: platform, Manager: manager, Net: gross - platform - manager}, nil
}

// Stake is one holder's balance at snapshot time.
type Stake struct {
	PartyID domain.PartyID
	Ordinal int
	Shares  int64
}

// Portion is a nonzero allocation produced by Allocate.
type Portion struct {
	Stake
	Amount int64
}

// Allocate gives each stake floor(net * shares / denominator). Stakes whose
// share floors to zero are dropped. The returned dust is net minus the sum
// of portions; when the denominator equals the summed shares it is strictly
// less than the number of stakes with a positive balance.
func Allocate(net, denominator int64, stakes []Stake) ([]Portion, int64, error) {
	if net < 0 {
		return nil, 0, dErrors.New(dErrors.CodeInvalidAmount, "net amount must not be negative")
	}
	if denominator <= 0 {
		return nil, 0, dErrors.New(dErrors.CodeInvalidAmount, "share denominator must be positive")
	}

	var held int64
	for _, st := range stakes {
		if st.Shares < 0 {
			return nil, 0, dErrors.New(dErrors.CodeInvariantViolation, "negative holder balance")
		}
		held += st.Shares
		if held > denominator {
			return nil, 0, dErrors.New(dErrors.CodeInvariantViolation, "held shares exceed the share denominator")
		}
	}

	portions := make([]Portion, 0, len(stakes))
	var allocated int64
	for _, st := range stakes {
		if st.Shares == 0 {
			continue
		}
		amount, err := domain.MulDivFloor(net, st.Shares, denominator)
		if err != nil {
			return nil, 0, dErrors.Wrap(err, dErrors.CodeInvalidAmount, "allocation overflows")
		}
		if amount == 0 {
			continue
		}
		allocated += amount
		portions = append(portions, Portion{Stake: st, Amount: amount})
	}
	return portions, net - allocated, nil
}
