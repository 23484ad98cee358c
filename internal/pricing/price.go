package pricing

import (
	"math"
	"time"

	"temporada/internal/model"
)

// Quote is the input of a single-night price computation.
type Quote struct {
	Base   float64
	Date   model.Date
	City   string
	Min    float64
	Max    float64
	Events []model.Event
	Now    time.Time
}

// Clamp is max(lo, min(hi, v)). With lo > hi it always returns lo; callers
// are expected to flag such bounds rather than reorder them.
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// sanitizeBase maps non-numeric input to zero so it flows through the clamp.
func sanitizeBase(base float64) float64 {
	if math.IsNaN(base) || math.IsInf(base, 0) {
		return 0
	}
	return base
}

// maxRounded bounds roundPrice to the range where float64 holds every
// integer exactly, far below the int64 overflow.
const maxRounded = 1 << 53

// roundPrice rounds v to an int, saturating at ±maxRounded. NaN maps to 0.
func roundPrice(v float64) int {
	switch {
	case math.IsNaN(v):
		return 0
	case v > maxRounded:
		return maxRounded
	case v < -maxRounded:
		return -maxRounded
	}
	return int(math.Round(v))
}

// Multiplier is the product of the weekday, season, lead-time and event
// factors for q.
func Multiplier(q Quote) float64 {
	return WeekdayFactor(q.Date) *
		SeasonalFactor(q.Date) *
		LeadTimeFactor(LeadDays(q.Date, q.Now)) *
		EventFactor(q.Date, q.City, q.Events)
}

// RawPrice is base × factors, before clamping and rounding.
func RawPrice(q Quote) float64 {
	return sanitizeBase(q.Base) * Multiplier(q)
}

// Price rounds the clamped raw price. The result lies in [Min, Max] for
// well-formed bounds.
func Price(q Quote) int {
	return roundPrice(Clamp(RawPrice(q), q.Min, q.Max))
}

// ApplyHoliday scales an already clamped price by a holiday factor and
// rounds again. The result is not re-clamped and may exceed the ceiling.
func ApplyHoliday(price int, factor float64) int {
	return roundPrice(float64(price) * factor)
}
