// Package money converts shop-formatted amounts into integer minor units.
package money

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Format describes how the shop renders amounts.
type Format struct {
	Decimals          int    `mapstructure:"decimals"`
	DecimalSeparator  string `mapstructure:"decimal_separator"`
	ThousandSeparator string `mapstructure:"thousand_separator"`
}

// DefaultFormat is a two decimal, dot separated format ("1,234.56").
var DefaultFormat = Format{Decimals: 2, DecimalSeparator: ".", ThousandSeparator: ","}

// numericFormat is used for values that arrive as Go numbers rather than shop strings.
var numericFormat = Format{DecimalSeparator: "."}

// ToMinorUnits returns v as a non-negative amount of minor units.
//
// The sign, currency symbols and thousands separators are dropped. A value
// without a fractional part is a whole-unit amount ("100" is 10000 with two
// decimals). Extra fractional digits are truncated, never rounded.
func (f Format) ToMinorUnits(v any) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case string:
		return f.parse(val, f)
	case decimal.Decimal:
		return f.parse(val.String(), numericFormat)
	case float64:
		return f.parse(decimal.NewFromFloat(val).String(), numericFormat)
	case float32:
		return f.parse(decimal.NewFromFloat32(val).String(), numericFormat)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return f.parse(fmt.Sprintf("%d", val), numericFormat)
	case fmt.Stringer:
		return f.parse(val.String(), f)
	default:
		return 0
	}
}

func (f Format) parse(s string, layout Format) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if layout.ThousandSeparator != "" && layout.ThousandSeparator != layout.DecimalSeparator {
		s = strings.ReplaceAll(s, layout.ThousandSeparator, "")
	}

	sep := layout.DecimalSeparator
	if sep == "" {
		sep = "."
	}

	whole, frac := s, ""
	if idx := strings.LastIndex(s, sep); idx >= 0 {
		whole, frac = s[:idx], s[idx+len(sep):]
	}
	whole, frac = digits(whole), digits(frac)
	if whole == "" {
		whole = "0"
	}

	precision := f.Decimals
	if precision < 0 {
		precision = 0
	}
	if len(frac) < precision {
		frac += strings.Repeat("0", precision-len(frac))
	}
	frac = frac[:precision]

	d, err := decimal.NewFromString(whole + frac)
	if err != nil {
		return 0
	}
	return d.IntPart()
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Allocate splits total across weights in proportion to each weight, so the
// result always sums to exactly total. Shares are floored and the remaining
// minor units go to the largest remainders, lowest index first on ties.
func Allocate(total int64, weights []int64) []int64 {
	if len(weights) == 0 {
		return nil
	}

	shares := make([]int64, len(weights))
	if total <= 0 {
		return shares
	}

	var sum int64
	for _, w := range weights {
		if w > 0 {
			sum += w
		}
	}

	if sum == 0 {
		n := int64(len(weights))
		for i := range shares {
			shares[i] = total / n
			if int64(i) < total%n {
				shares[i]++
			}
		}
		return shares
	}

	type remainder struct {
		index int
		frac  decimal.Decimal
	}

	dTotal := decimal.NewFromInt(total)
	dSum := decimal.NewFromInt(sum)
	remainders := make([]remainder, 0, len(weights))
	var allocated int64

	for i, w := range weights {
		if w <= 0 {
			remainders = append(remainders, remainder{index: i, frac: decimal.Zero})
			continue
		}
		exact := dTotal.Mul(decimal.NewFromInt(w)).Div(dSum)
		floor := exact.Floor()
		shares[i] = floor.IntPart()
		allocated += shares[i]
		remainders = append(remainders, remainder{index: i, frac: exact.Sub(floor)})
	}

	sort.SliceStable(remainders, func(a, b int) bool {
		return remainders[a].frac.GreaterThan(remainders[b].frac)
	})

	for left, i := total-allocated, 0; left > 0; i++ {
		shares[remainders[i%len(remainders)].index]++
		left--
	}

	return shares
}
