package srs

import (
	"math"

	"github.com/vytor/recall/internal/models"
)

const (
	minStability  = 0.001
	minDifficulty = 1.0
	maxDifficulty = 10.0
)

// model holds the FSRS weights plus the constants derived from them.
type model struct {
	w      [21]float64
	decay  float64
	factor float64
}

func newModel(w [21]float64) model {
	decay := -w[20]
	return model{
		w:      w,
		decay:  decay,
		factor: math.Pow(0.9, 1.0/decay) - 1.0,
	}
}

// retrievability is R(t, S) = (1 + factor*t/S)^decay.
func (m *model) retrievability(elapsedDays, stability float64) float64 {
	if stability <= 0 {
		return 0
	}
	r := math.Pow(1+m.factor*elapsedDays/stability, m.decay)
	return math.Min(math.Max(r, 0), 1)
}

func (m *model) initialStability(r models.Rating) float64 {
	return clampStability(m.w[r-1])
}

// initialDifficulty is D0(G) = w4 - e^(w5*(G-1)) + 1.
func (m *model) initialDifficulty(r models.Rating, clamp bool) float64 {
	d := m.w[4] - math.Exp(m.w[5]*float64(r-1)) + 1
	if clamp {
		return clampDifficulty(d)
	}
	return d
}

// intervalDays converts stability into whole days at the desired retention,
// clamped to [1, maxInterval].
func (m *model) intervalDays(stability, retention float64, maxInterval int) int {
	ivl := stability / m.factor * (math.Pow(retention, 1.0/m.decay) - 1)
	days := int(math.Round(ivl))
	if days < 1 {
		days = 1
	}
	if days > maxInterval {
		days = maxInterval
	}
	return days
}

// sameDayStability handles reviews less than a day after the previous one.
func (m *model) sameDayStability(stability float64, r models.Rating) float64 {
	inc := math.Exp(m.w[17]*(float64(r)-3+m.w[18])) * math.Pow(stability, -m.w[19])
	if r >= models.RatingGood {
		inc = math.Max(inc, 1.0)
	}
	return clampStability(stability * inc)
}

// nextDifficulty applies linear damping then mean reversion toward D0(Easy).
func (m *model) nextDifficulty(d float64, r models.Rating) float64 {
	delta := -m.w[6] * (float64(r) - 3)
	damped := d + (10-d)*delta/9
	target := m.initialDifficulty(models.RatingEasy, false)
	return clampDifficulty(m.w[7]*target + (1-m.w[7])*damped)
}

func (m *model) nextStability(d, s, retrievability float64, r models.Rating) float64 {
	if r == models.RatingAgain {
		return clampStability(m.forgetStability(d, s, retrievability))
	}
	return clampStability(m.recallStability(d, s, retrievability, r))
}

func (m *model) recallStability(d, s, retrievability float64, r models.Rating) float64 {
	penalty := 1.0
	if r == models.RatingHard {
		penalty = m.w[15]
	}
	bonus := 1.0
	if r == models.RatingEasy {
		bonus = m.w[16]
	}
	return s * (1 + math.Exp(m.w[8])*
		(11-d)*
		math.Pow(s, -m.w[9])*
		(math.Exp((1-retrievability)*m.w[10])-1)*
		penalty*bonus)
}

// forgetStability never exceeds the short-term bound s / e^(w17*w18).
func (m *model) forgetStability(d, s, retrievability float64) float64 {
	long := m.w[11] *
		math.Pow(d, -m.w[12]) *
		(math.Pow(s+1, m.w[13]) - 1) *
		math.Exp((1-retrievability)*m.w[14])
	short := s / math.Exp(m.w[17]*m.w[18])
	return math.Min(long, short)
}

func clampStability(s float64) float64 {
	return math.Max(s, minStability)
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, minDifficulty), maxDifficulty)
}
