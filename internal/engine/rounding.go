package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Whole-cent splitting with the largest-remainder method. Every split in
// this package sums back to its input exactly; currency never leaks.

var centFactor = decimal.New(1, 2) // 100

// Cents converts an amount to whole cents, rounding half away from zero.
func Cents(d decimal.Decimal) int64 {
	return d.Round(2).Mul(centFactor).IntPart()
}

// FromCents converts whole cents back to a two-decimal amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// SplitEven divides total into n parts differing by at most one cent, the
// extra cents landing on the earliest parts. The parts sum to total exactly.
// Negative totals split symmetrically.
func SplitEven(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	cents := Cents(total)
	neg := cents < 0
	if neg {
		cents = -cents
	}

	base := cents / int64(n)
	rem := cents % int64(n)

	parts := make([]decimal.Decimal, n)
	for i := range parts {
		c := base
		if int64(i) < rem {
			c++
		}
		if neg {
			c = -c
		}
		parts[i] = FromCents(c)
	}
	return parts
}

// SplitWeighted divides total proportionally to weights, rounded to whole
// cents with the largest-remainder method so the parts sum to total exactly.
// Zero or negative total weight falls back to an even split. Weights must be
// non-negative.
func SplitWeighted(total decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	n := len(weights)
	if n == 0 {
		return nil
	}

	sumW := decimal.Zero
	for _, w := range weights {
		sumW = sumW.Add(w)
	}
	if !sumW.IsPositive() {
		return SplitEven(total, n)
	}

	cents := Cents(total)
	neg := cents < 0
	if neg {
		cents = -cents
	}
	totalAbs := FromCents(cents)

	type share struct {
		idx  int
		base int64
		frac decimal.Decimal
	}
	out := make([]share, n)
	assigned := int64(0)
	for i, w := range weights {
		ideal := totalAbs.Mul(w).Div(sumW).Mul(centFactor)
		base := ideal.Floor()
		out[i] = share{idx: i, base: base.IntPart(), frac: ideal.Sub(base)}
		assigned += out[i].base
	}

	// Hand the missing cents to the largest fractional remainders,
	// earliest index first on ties.
	missing := cents - assigned
	order := make([]share, n)
	copy(order, out)
	sort.SliceStable(order, func(a, b int) bool {
		return order[a].frac.GreaterThan(order[b].frac)
	})
	for i := int64(0); i < missing; i++ {
		out[order[i%int64(n)].idx].base++
	}

	parts := make([]decimal.Decimal, n)
	for i, s := range out {
		c := s.base
		if neg {
			c = -c
		}
		parts[i] = FromCents(c)
	}
	return parts
}
