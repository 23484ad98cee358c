package pricing

import (
	"math"

	"temporada/internal/model"
)

// Booking-probability heuristic constants.
const (
	OccupiedBaseline = 0.85
	FreeBaseline     = 0.35
	Elasticity       = 1.2
	MinProbability   = 0.05
	MaxProbability   = 0.98
)

// Baseline is the probability implied by the nominal calendar status.
func Baseline(s model.Status) float64 {
	if s == model.StatusOccupied {
		return OccupiedBaseline
	}
	return FreeBaseline
}

// PriceFactor is (ref / max(price, 1)) ^ Elasticity. A zero reference falls
// back to price, then to 1.
func PriceFactor(ref, price int) float64 {
	r := float64(ref)
	if r == 0 {
		r = float64(price)
	}
	if r == 0 {
		r = 1
	}
	return math.Pow(r/math.Max(float64(price), 1), Elasticity)
}

// Probability adjusts the status baseline by price elasticity and keeps the
// result within [MinProbability, MaxProbability].
func Probability(s model.Status, ref, price int) float64 {
	p := Baseline(s) * PriceFactor(ref, price)
	if math.IsNaN(p) {
		// only reachable with negative prices from negative bounds
		p = Baseline(s)
	}
	return Clamp(p, MinProbability, MaxProbability)
}
