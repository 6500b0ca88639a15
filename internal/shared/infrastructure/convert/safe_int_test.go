package convert

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntToInt32Clamped(t *testing.T) {
	tests := []struct {
		in   int
		want int32
	}{
		{0, 0},
		{25, 25},
		{-7, -7},
		{math.MaxInt32 + 1000, math.MaxInt32},
		{math.MinInt32 - 1000, math.MinInt32},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IntToInt32Clamped(tt.in), "%d", tt.in)
	}
}

func TestIntToUint32Clamped(t *testing.T) {
	tests := []struct {
		in   int
		want uint32
	}{
		{0, 0},
		{5, 5},
		{-1, 0},
		{math.MaxUint32 + 1, math.MaxUint32},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IntToUint32Clamped(tt.in), "%d", tt.in)
	}
}
