package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterestRate(t *testing.T) {
	tests := []struct {
		risk     float64
		approved bool
		want     float64
	}{
		{0, true, 8.5},
		{10, true, 8.5},
		{19.999, true, 8.5},
		{20, true, 10.0},
		{39.99, true, 10.0},
		{40, true, 11.5},
		{59.5, true, 11.5},
		{60, true, 13.5},
		{100, true, 13.5},
		{10, false, 0},
		{80, false, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, InterestRate(tt.risk, tt.approved), "risk=%v approved=%v", tt.risk, tt.approved)
	}
}

func TestInterestRateDecimalIsExact(t *testing.T) {
	assert.Equal(t, "10", InterestRateDecimal(25, true).String())
	assert.Equal(t, "11.5", InterestRateDecimal(45, true).String())
	assert.Equal(t, "13.5", InterestRateDecimal(75, true).String())
	assert.True(t, InterestRateDecimal(75, false).IsZero())
}

func TestInterestRateMonotone(t *testing.T) {
	prev := InterestRate(0, true)
	for r := 0.0; r <= 100; r += 0.5 {
		cur := InterestRate(r, true)
		assert.GreaterOrEqual(t, cur, prev, "risk=%v", r)
		prev = cur
	}
}
