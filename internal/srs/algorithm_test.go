package srs

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/recall/internal/models"
)

func TestModel_IntervalAtTargetRetentionEqualsStability(t *testing.T) {
	m := newModel(DefaultParameters)

	assert.Equal(t, 10, m.intervalDays(10, 0.9, 36500))
	assert.Equal(t, 1, m.intervalDays(0.2, 0.9, 36500))
	assert.Equal(t, 100, m.intervalDays(5000, 0.9, 100))
	assert.Greater(t, m.intervalDays(10, 0.8, 36500), m.intervalDays(10, 0.95, 36500))
}

func TestModel_InitialDifficultyDecreasesWithRating(t *testing.T) {
	m := newModel(DefaultParameters)

	prev := m.initialDifficulty(models.RatingAgain, true)
	for _, r := range models.Ratings[1:] {
		d := m.initialDifficulty(r, true)
		assert.LessOrEqual(t, d, prev)
		assert.GreaterOrEqual(t, d, minDifficulty)
		prev = d
	}
}

func TestModel_ForgetStabilityBoundedByShortTerm(t *testing.T) {
	m := newModel(DefaultParameters)

	for _, s := range []float64{0.1, 1, 10, 100} {
		got := m.nextStability(5, s, 0.5, models.RatingAgain)
		assert.LessOrEqual(t, got, s)
		assert.GreaterOrEqual(t, got, minStability)
	}
}

func TestModel_SameDayGoodNeverShrinks(t *testing.T) {
	m := newModel(DefaultParameters)

	for _, s := range []float64{0.5, 2, 30} {
		assert.GreaterOrEqual(t, m.sameDayStability(s, models.RatingGood), s)
		assert.GreaterOrEqual(t, m.sameDayStability(s, models.RatingEasy), s)
	}
}

func TestModel_RetrievabilityBounds(t *testing.T) {
	m := newModel(DefaultParameters)

	assert.Zero(t, m.retrievability(3, 0))
	assert.InDelta(t, 1, m.retrievability(0, 5), 1e-12)
	assert.InDelta(t, 0.9, m.retrievability(5, 5), 1e-9)
	assert.Greater(t, m.retrievability(1, 5), m.retrievability(10, 5))
}

func TestFuzzDays_StaysInsideWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	assert.Equal(t, 2, fuzzDays(2, 36500, rng))

	for _, days := range []int{3, 10, 45, 300} {
		delta := fuzzDelta(float64(days))
		for i := 0; i < 200; i++ {
			got := fuzzDays(days, 36500, rng)
			assert.GreaterOrEqual(t, float64(got), float64(days)-delta-1)
			assert.LessOrEqual(t, float64(got), float64(days)+delta+1)
			assert.GreaterOrEqual(t, got, 2)
		}
	}
}

func TestFuzzDays_CappedByMaximum(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 100; i++ {
		assert.LessOrEqual(t, fuzzDays(100, 100, rng), 100)
	}
}

func TestValidateParameters(t *testing.T) {
	require.NoError(t, ValidateParameters(DefaultParameters))

	p := DefaultParameters
	p[20] = 0.95
	assert.Error(t, ValidateParameters(p))
}
