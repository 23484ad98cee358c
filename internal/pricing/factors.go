// Package pricing holds the nightly price model: the factor functions, the
// clamped price calculator, the elasticity-based booking probability and the
// revenue aggregates built on top of them. Everything here is pure; callers
// pass "now" explicitly.
package pricing

import (
	"math"
	"time"

	"temporada/internal/model"
)

// WeekdayFactor bumps Friday/Saturday nights and, slightly, Sunday.
func WeekdayFactor(d model.Date) float64 {
	switch d.Weekday() {
	case time.Friday, time.Saturday:
		return 1.12
	case time.Sunday:
		return 1.05
	default:
		return 1.0
	}
}

// SeasonalFactor follows the southern-hemisphere summer.
func SeasonalFactor(d model.Date) float64 {
	switch d.Month() {
	case time.December, time.January, time.February:
		return 1.18
	case time.June, time.July:
		return 0.95
	default:
		return 1.0
	}
}

// LeadDays is the whole number of days between now and d, never negative.
func LeadDays(d model.Date, now time.Time) int {
	days := math.Round(d.Time.Sub(now).Hours() / 24)
	if days < 0 {
		return 0
	}
	return int(days)
}

// LeadTimeFactor marks down last-minute nights and bumps far-out ones.
// The <=3 threshold is checked before <=7.
func LeadTimeFactor(leadDays int) float64 {
	switch {
	case leadDays <= 3:
		return 0.92
	case leadDays <= 7:
		return 0.97
	case leadDays >= 45:
		return 1.06
	default:
		return 1.0
	}
}

// EventFactor applies the first event in list order whose city matches
// exactly and whose range covers d.
func EventFactor(d model.Date, city string, events []model.Event) float64 {
	for _, ev := range events {
		if ev.City == city && ev.Covers(d) {
			return 1 + ev.Factor
		}
	}
	return 1.0
}

// HolidayFactor is 1 + boost for a holiday on d. A nil index means no holidays.
func HolidayFactor(d model.Date, idx *HolidayIndex) float64 {
	if h, ok := idx.Lookup(d); ok {
		return 1 + h.EffectiveBoost()
	}
	return 1.0
}
