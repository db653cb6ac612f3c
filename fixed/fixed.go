// Package fixed implements Q16.16 fixed-point arithmetic: 32-bit two's
// complement integers where the low 16 bits are fractional, so the value
// is the integer divided by 65536. There is no representation for NaN or
// infinity; conversions from such floats are unspecified.
package fixed

import "math"

// Format selects the fixed-point layout. Only Q16.16 exists today; the
// enum leaves room for wider layouts such as Q32.32.
type Format uint8

const (
	// Q16_16 is 32-bit storage with 16 fractional bits.
	Q16_16 Format = iota
)

// FracBits returns the fractional bit count of the format.
func (f Format) FracBits() uint {
	return 16
}

// String returns the format name.
func (f Format) String() string {
	return "Q16.16"
}

// Fixed is one Q16.16 value.
type Fixed int32

// Constants of the Q16.16 format.
const (
	One  Fixed = 1 << 16
	Half Fixed = One / 2
)

// FromFloat32 converts a finite float to the nearest representable fixed
// value, rounding toward zero like the target's float-to-int conversion.
func FromFloat32(f float32) Fixed {
	return Fixed(int32(f * 65536))
}

// FromInt converts an integer to fixed.
func FromInt(i int32) Fixed {
	return Fixed(i) << 16
}

// Float32 converts back to float.
func (x Fixed) Float32() float32 {
	return float32(x) / 65536
}

// Mul multiplies two fixed values: both operands are widened to 64 bits,
// multiplied, arithmetic-shifted right by 16 and truncated to 32 bits.
// The widening keeps the doubled fractional scale from overflowing.
func (x Fixed) Mul(y Fixed) Fixed {
	return Fixed((int64(x) * int64(y)) >> 16)
}

// Div divides two fixed values: the dividend is widened to 64 bits and
// shifted left by 16 before the divide. Division by zero saturates to
// MaxInt32 for dividends >= 0 and MinInt32 otherwise; it never traps, so
// one degenerate shader division cannot halt the render loop.
func (x Fixed) Div(y Fixed) Fixed {
	if y == 0 {
		if x >= 0 {
			return Fixed(math.MaxInt32)
		}
		return Fixed(math.MinInt32)
	}
	return Fixed((int64(x) << 16) / int64(y))
}

// Min returns the smaller operand. Fixed values share the signed-integer
// total order, so this is exact.
func (x Fixed) Min(y Fixed) Fixed {
	if y < x {
		return y
	}
	return x
}

// Max returns the larger operand.
func (x Fixed) Max(y Fixed) Fixed {
	if y > x {
		return y
	}
	return x
}
