package distribution

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

func stakes(shares ...int64) []Stake {
	out := make([]Stake, len(shares))
	for i, s := range shares {
		out[i] = Stake{PartyID: domain.NewPartyID(), Ordinal: i, Shares: s}
	}
	return out
}

func TestComputeFees(t *testing.T) {
	tests := []struct {
		name         string
		gross        int64
		platformBP   int64
		mgrBP        int64
		wantPlatform int64
		wantMgr      int64
		wantNet      int64
	}{
		{"reference split", 1000, 250, 500, 25, 50, 925},
		{"floors each fee", 999, 250, 500, 24, 49, 926},
		{"no fees", 1000, 0, 0, 0, 0, 1000},
		{"ceilings", 1_000_000, 1000, 2000, 100_000, 200_000, 700_000},
		{"single unit", 1, 250, 500, 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fees, err := ComputeFees(tt.gross, tt.platformBP, tt.mgrBP)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPlatform, fees.Platform)
			assert.Equal(t, tt.wantMgr, fees.Manager)
			assert.Equal(t, tt.wantNet, fees.Net)
			assert.Equal(t, tt.gross, fees.Platform+fees.Manager+fees.Net)
		})
	}

	t.Run("rejects non-positive gross", func(t *testing.T) {
		_, err := ComputeFees(0, 250, 500)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	t.Run("rejects rates above 100 percent", func(t *testing.T) {
		_, err := ComputeFees(100, 6000, 5000)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})
}

func TestComputeFees_ExactForRandomInputs(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 1000 {
		gross := r.Int64N(1<<50) + 1
		platformBP := r.Int64N(1001)
		managerBP := r.Int64N(2001)
		fees, err := ComputeFees(gross, platformBP, managerBP)
		require.NoError(t, err)
		require.Equal(t, gross, fees.Platform+fees.Manager+fees.Net)
		require.GreaterOrEqual(t, fees.Net, int64(0))
	}
}

func TestAllocate(t *testing.T) {
	t.Run("reference split over total supply", func(t *testing.T) {
		portions, dust, err := Allocate(925, 1000, stakes(600, 400))
		require.NoError(t, err)
		require.Len(t, portions, 2)
		assert.Equal(t, int64(555), portions[0].Amount)
		assert.Equal(t, int64(370), portions[1].Amount)
		assert.Zero(t, dust)
	})

	t.Run("unsold supply dilutes holders", func(t *testing.T) {
		portions, dust, err := Allocate(925, 1000, stakes(300, 200))
		require.NoError(t, err)
		assert.Equal(t, int64(277), portions[0].Amount)
		assert.Equal(t, int64(185), portions[1].Amount)
		assert.Equal(t, int64(463), dust)
	})

	t.Run("held shares denominator attributes everything it can", func(t *testing.T) {
		portions, dust, err := Allocate(925, 500, stakes(300, 200))
		require.NoError(t, err)
		assert.Equal(t, int64(555), portions[0].Amount)
		assert.Equal(t, int64(370), portions[1].Amount)
		assert.Zero(t, dust)
	})

	t.Run("zero balances and zero floors are dropped", func(t *testing.T) {
		portions, dust, err := Allocate(10, 1000, stakes(0, 50, 950))
		require.NoError(t, err)
		require.Len(t, portions, 1)
		assert.Equal(t, 2, portions[0].Ordinal)
		assert.Equal(t, int64(9), portions[0].Amount)
		assert.Equal(t, int64(1), dust)
	})

	t.Run("no holders leaves everything as dust", func(t *testing.T) {
		portions, dust, err := Allocate(925, 1000, nil)
		require.NoError(t, err)
		assert.Empty(t, portions)
		assert.Equal(t, int64(925), dust)
	})

	t.Run("held shares above denominator", func(t *testing.T) {
		_, _, err := Allocate(100, 10, stakes(6, 5))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("non-positive denominator", func(t *testing.T) {
		_, _, err := Allocate(100, 0, stakes(1))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	t.Run("large amounts use a wide intermediate", func(t *testing.T) {
		portions, _, err := Allocate(1<<62, 1<<40, stakes(1<<39))
		require.NoError(t, err)
		assert.Equal(t, int64(1<<61), portions[0].Amount)
	})
}

func TestAllocate_DustBoundWhenDenominatorIsHeldShares(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for range 500 {
		n := r.IntN(50) + 1
		shares := make([]int64, n)
		var held int64
		positive := 0
		for i := range shares {
			shares[i] = r.Int64N(10_000)
			held += shares[i]
			if shares[i] > 0 {
				positive++
			}
		}
		if held == 0 {
			continue
		}
		net := r.Int64N(1 << 40)

		portions, dust, err := Allocate(net, held, stakes(shares...))
		require.NoError(t, err)

		var sum int64
		for _, p := range portions {
			require.Positive(t, p.Amount)
			sum += p.Amount
		}
		require.LessOrEqual(t, sum, net)
		require.Equal(t, net-sum, dust)
		require.Less(t, dust, int64(positive))
	}
}
