package price

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DefaultScale is the fixed-point scale: four decimal places.
const DefaultScale = 10000

// maxExponent bounds the decimal exponent accepted from the wire. Rescaling
// costs grow with 10^|exp|, and no real price needs more than this.
const maxExponent = 30

var maxFixedPoint = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// Converter turns decimal price strings into scaled unsigned integers.
type Converter struct {
	scale decimal.Decimal
	raw   uint64
}

// NewConverter returns a converter for scale. Zero means DefaultScale.
func NewConverter(scale uint64) Converter {
	if scale == 0 {
		scale = DefaultScale
	}
	return Converter{
		scale: decimal.NewFromBigInt(new(big.Int).SetUint64(scale), 0),
		raw:   scale,
	}
}

// Scale returns the scale factor.
func (c Converter) Scale() uint64 {
	return c.raw
}

// ToFixedPoint parses raw as a decimal number and returns value × scale,
// truncated toward zero.
func (c Converter) ToFixedPoint(raw []byte) (uint64, error) {
	if !utf8.Valid(raw) {
		return 0, fmt.Errorf("%w: input is not valid UTF-8", ErrParse)
	}
	s := string(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty price", ErrParse)
	}
	if strings.ContainsFunc(s, unicode.IsSpace) {
		return 0, fmt.Errorf("%w: %q contains whitespace", ErrParse, s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrParse, s, err)
	}
	if exp := d.Exponent(); exp < -maxExponent || exp > maxExponent {
		return 0, fmt.Errorf("%w: %q exponent %d out of range", ErrParse, s, exp)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative price %q", ErrParse, s)
	}

	scaled := d.Mul(c.scale).Truncate(0)
	if scaled.GreaterThan(maxFixedPoint) {
		return 0, fmt.Errorf("%w: %q overflows at scale %d", ErrParse, s, c.raw)
	}
	return scaled.BigInt().Uint64(), nil
}

// Convert converts a decoded response.
func (c Converter) Convert(p RawPrice) (uint64, error) {
	return c.ToFixedPoint([]byte(p.PriceUSD))
}

// ToDecimal maps a fixed-point value back to its decimal form.
func (c Converter) ToDecimal(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0).Div(c.scale)
}
