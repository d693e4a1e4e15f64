package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name    string
		correct bool
		taken   float64
		total   float64
		want    int
	}{
		{"incorrect", false, 0, 30, 0},
		{"instant", true, 0, 30, 150},
		{"at the limit", true, 30, 30, 100},
		{"over the limit", true, 45, 30, 100},
		{"a third in", true, 10, 30, 133},
		{"negative time", true, -5, 30, 150},
		{"no time limit", true, 10, 0, 100},
		{"nan time", true, math.NaN(), 30, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Score(tc.correct, tc.taken, tc.total))
		})
	}
}

func TestScoreNonIncreasing(t *testing.T) {
	prev := Score(true, 0, 20)
	for taken := 0.5; taken <= 20; taken += 0.5 {
		got := Score(true, taken, 20)
		assert.LessOrEqual(t, got, prev, "taken=%v", taken)
		assert.GreaterOrEqual(t, got, BasePoints)
		prev = got
	}
}
