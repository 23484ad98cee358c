package pricing

import (
	"time"

	"temporada/internal/model"
)

// PriceCalendar prices every day of the listing's calendar with the owner's
// adjustedBase and estimates its booking probability against the price the
// listing's own base would produce.
//
// It is a pure function of its arguments: a new slice is returned on every
// call and nothing is cached. An empty calendar yields an empty result.
func PriceCalendar(listing model.Listing, adjustedBase float64, events []model.Event, holidays []model.Holiday, now time.Time) []model.PricedDay {
	rows := make([]model.PricedDay, 0, len(listing.Calendar))
	if len(listing.Calendar) == 0 {
		return rows
	}

	idx := NewHolidayIndex(holidays)
	for _, day := range listing.Calendar {
		q := Quote{
			Date:   day.Date,
			City:   listing.City,
			Min:    listing.MinPrice,
			Max:    listing.MaxPrice,
			Events: events,
			Now:    now,
		}

		q.Base = listing.BasePrice
		ref := Price(q)
		q.Base = adjustedBase
		price := Price(q)

		row := model.PricedDay{Date: day.Date, Status: day.Status}
		if h, ok := idx.Lookup(day.Date); ok {
			factor := 1 + h.EffectiveBoost()
			ref = ApplyHoliday(ref, factor)
			price = ApplyHoliday(price, factor)
			row.Reason = h.Reason
			row.Boost = h.EffectiveBoost()
		}

		row.Price = price
		row.Probability = Probability(day.Status, ref, price)
		rows = append(rows, row)
	}
	return rows
}

// Dashboard is the owner view of one listing at a given base price.
type Dashboard struct {
	ListingID string            `json:"listingId"`
	Base      float64           `json:"base"`
	Rows      []model.PricedDay `json:"rows"`
	Stats     model.Stats       `json:"stats"`
	Warnings  []string          `json:"warnings,omitempty"`
}

// BuildDashboard prices the calendar and summarizes it. Inverted price
// bounds are still computed (the floor wins) but reported as a warning.
func BuildDashboard(listing model.Listing, adjustedBase float64, events []model.Event, holidays []model.Holiday, now time.Time) Dashboard {
	rows := PriceCalendar(listing, adjustedBase, events, holidays, now)
	d := Dashboard{
		ListingID: listing.ID,
		Base:      sanitizeBase(adjustedBase),
		Rows:      rows,
		Stats:     Summarize(rows),
	}
	if err := listing.CheckBounds(); err != nil {
		d.Warnings = append(d.Warnings, err.Error())
	}
	return d
}
