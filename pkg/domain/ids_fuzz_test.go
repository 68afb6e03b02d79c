package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParsePartyID checks that parsing never panics and that accepted IDs
// round-trip through String.
func FuzzParsePartyID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE holdings;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		parsed, err := ParsePartyID(input)
		if err == nil {
			roundTrip, err2 := ParsePartyID(parsed.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != parsed {
				t.Error("round-trip changed ID value")
			}
			if parsed.IsNil() {
				t.Error("nil ID was accepted")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzMulDivFloor checks the floor identity q*c <= a*b < (q+1)*c on small operands.
func FuzzMulDivFloor(f *testing.F) {
	f.Add(int64(1000), int64(250), int64(10000))
	f.Add(int64(7), int64(3), int64(2))
	f.Add(int64(0), int64(5), int64(1))

	f.Fuzz(func(t *testing.T, a, b, c int64) {
		if a < 0 || b < 0 || c <= 0 || a > 1<<30 || b > 1<<30 {
			return
		}
		q, err := MulDivFloor(a, b, c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q*c > a*b || (q+1)*c <= a*b {
			t.Errorf("floor(%d*%d/%d) = %d is not the floor", a, b, c, q)
		}
	})
}
