package domain

import (
	"errors"
	"math"
	"math/bits"
)

// MaxBasisPoints is 100% expressed in basis points.
const MaxBasisPoints int64 = 10_000

var (
	// ErrOverflow is returned when an intermediate or final result does not fit in int64.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrNegative is returned when an operand that must be non-negative is negative.
	ErrNegative = errors.New("negative operand")
	// ErrDivideByZero is returned for a zero divisor.
	ErrDivideByZero = errors.New("division by zero")
)

// MulDivFloor returns floor(a*b/c) using a 128-bit intermediate product, so
// a*b may exceed int64 as long as the quotient fits.
func MulDivFloor(a, b, c int64) (int64, error) {
	if a < 0 || b < 0 || c < 0 {
		return 0, ErrNegative
	}
	if c == 0 {
		return 0, ErrDivideByZero
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(c) {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, uint64(c))
	if q > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return int64(q), nil
}

// BasisPoints returns floor(amount*bp/10000).
func BasisPoints(amount, bp int64) (int64, error) {
	return MulDivFloor(amount, bp, MaxBasisPoints)
}

// CheckedAdd adds two non-negative values, failing on overflow.
func CheckedAdd(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, ErrNegative
	}
	if a > math.MaxInt64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// CheckedMul multiplies two non-negative values, failing on overflow.
func CheckedMul(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, ErrNegative
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return int64(lo), nil
}
