package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rmaia/budget-calendar-go/internal/engine"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func sum(parts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, p := range parts {
		total = total.Add(p)
	}
	return total
}

func TestSplitEven_ExactSum(t *testing.T) {
	tests := []struct {
		name  string
		total string
		n     int
	}{
		{"twenty over 29 days", "20.00", 29},
		{"uneven cents", "100.01", 3},
		{"single part", "7.77", 1},
		{"zero total", "0.00", 12},
		{"one cent", "0.01", 30},
		{"negative total", "-20.00", 29},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := dec(t, tt.total)
			parts := engine.SplitEven(total, tt.n)
			if len(parts) != tt.n {
				t.Fatalf("expected %d parts, got %d", tt.n, len(parts))
			}
			if !sum(parts).Equal(total) {
				t.Errorf("parts sum to %s, want %s", sum(parts), total)
			}
		})
	}
}

func TestSplitEven_RemainderOnEarliestDays(t *testing.T) {
	// 20.00 / 29 = 68 cents base with 28 cents left over.
	parts := engine.SplitEven(dec(t, "20.00"), 29)

	if !parts[0].Equal(dec(t, "0.69")) {
		t.Errorf("first part = %s, want 0.69", parts[0])
	}
	if !parts[27].Equal(dec(t, "0.69")) {
		t.Errorf("part 27 = %s, want 0.69", parts[27])
	}
	if !parts[28].Equal(dec(t, "0.68")) {
		t.Errorf("last part = %s, want 0.68", parts[28])
	}
}

func TestSplitEven_PartsDifferByAtMostOneCent(t *testing.T) {
	parts := engine.SplitEven(dec(t, "1234.56"), 31)

	min, max := parts[0], parts[0]
	for _, p := range parts {
		if p.LessThan(min) {
			min = p
		}
		if p.GreaterThan(max) {
			max = p
		}
	}
	if max.Sub(min).GreaterThan(dec(t, "0.01")) {
		t.Errorf("parts spread %s exceeds one cent", max.Sub(min))
	}
}

func TestSplitWeighted_ExactSum(t *testing.T) {
	tests := []struct {
		name    string
		total   string
		weights []string
	}{
		{"thirds", "100.00", []string{"1", "1", "1"}},
		{"skewed", "3150.00", []string{"0.34", "0.18", "0.12", "0.08", "0.05", "0.06", "0.09", "0.08"}},
		{"tiny total", "0.05", []string{"3", "1", "1", "1"}},
		{"one dominant weight", "999.99", []string{"1000", "1", "1"}},
		{"zero weight entry", "50.00", []string{"0", "2", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := dec(t, tt.total)
			weights := make([]decimal.Decimal, len(tt.weights))
			for i, w := range tt.weights {
				weights[i] = dec(t, w)
			}
			parts := engine.SplitWeighted(total, weights)
			if !sum(parts).Equal(total) {
				t.Errorf("parts sum to %s, want %s", sum(parts), total)
			}
		})
	}
}

func TestSplitWeighted_LargestRemainderGetsTheCent(t *testing.T) {
	// 100.00 in thirds: 33.33 each leaves one cent for the earliest part.
	parts := engine.SplitWeighted(dec(t, "100.00"), []decimal.Decimal{
		decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.NewFromInt(1),
	})

	if !parts[0].Equal(dec(t, "33.34")) {
		t.Errorf("parts[0] = %s, want 33.34", parts[0])
	}
	if !parts[1].Equal(dec(t, "33.33")) || !parts[2].Equal(dec(t, "33.33")) {
		t.Errorf("tail parts = %s, %s, want 33.33 each", parts[1], parts[2])
	}
}

func TestSplitWeighted_AllZeroWeightsFallsBackToEven(t *testing.T) {
	parts := engine.SplitWeighted(dec(t, "9.00"), []decimal.Decimal{
		decimal.Zero, decimal.Zero, decimal.Zero,
	})

	for i, p := range parts {
		if !p.Equal(dec(t, "3.00")) {
			t.Errorf("parts[%d] = %s, want 3.00", i, p)
		}
	}
}
