package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tessera/pkg/domain-errors"
)

// TestParseID_Invariants validates that IDs must be valid, non-empty, non-nil UUIDs.
func TestParseID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseAssetID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseAssetID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseAssetID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		parsed, err := ParseAssetID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, AssetID(valid), parsed)
	})
}

func TestParseID_TrustBoundary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE assets;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePartyID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	valid := uuid.New().String()
	for _, input := range []string{"", "invalid", uuid.Nil.String()} {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errAsset := ParseAssetID(input)
			_, errParty := ParsePartyID(input)
			_, errDist := ParseDistributionID(input)
			require.Error(t, errAsset)
			require.Error(t, errParty)
			require.Error(t, errDist)
		})
	}

	_, errAsset := ParseAssetID(valid)
	_, errParty := ParsePartyID(valid)
	_, errDist := ParseDistributionID(valid)
	require.NoError(t, errAsset)
	require.NoError(t, errParty)
	require.NoError(t, errDist)
}

func TestIDsSerializeAsPlainUUIDs(t *testing.T) {
	party := NewPartyID()

	body, err := json.Marshal(map[string]any{"party": party})
	require.NoError(t, err)
	assert.JSONEq(t, `{"party":"`+party.String()+`"}`, string(body))

	var decoded struct {
		Party PartyID `json:"party"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, party, decoded.Party)

	err = json.Unmarshal([]byte(`{"party":"00000000-0000-0000-0000-000000000000"}`), &decoded)
	require.Error(t, err)
}
