package pricing

import (
	"time"

	"temporada/internal/model"
)

// GatedRevenue sums the listing-base price of every nominally occupied day,
// rounded to whole currency units. This is the catalog figure; holidays are
// not applied.
func GatedRevenue(listing model.Listing, events []model.Event, now time.Time) int {
	var sum float64
	for _, day := range listing.Calendar {
		if day.Status != model.StatusOccupied {
			continue
		}
		sum += float64(Price(Quote{
			Base:   listing.BasePrice,
			Date:   day.Date,
			City:   listing.City,
			Min:    listing.MinPrice,
			Max:    listing.MaxPrice,
			Events: events,
			Now:    now,
		}))
	}
	return roundPrice(sum)
}

// PotentialRevenue is Σ price × probability over the priced rows.
func PotentialRevenue(rows []model.PricedDay) float64 {
	var sum float64
	for _, r := range rows {
		sum += float64(r.Price) * r.Probability
	}
	return sum
}

// NominalOccupancy is the booked fraction of the listing's calendar. An
// empty calendar counts as Horizon free days.
func NominalOccupancy(listing model.Listing) float64 {
	total := len(listing.Calendar)
	if total == 0 {
		total = Horizon
	}
	booked := 0
	for _, day := range listing.Calendar {
		if day.Status == model.StatusOccupied {
			booked++
		}
	}
	return float64(booked) / float64(total)
}

// ProbabilityOccupancy is the mean booking probability of the rows.
func ProbabilityOccupancy(rows []model.PricedDay) float64 {
	if len(rows) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rows {
		sum += r.Probability
	}
	return sum / float64(len(rows))
}

// Summarize reports the owner-dashboard aggregates.
func Summarize(rows []model.PricedDay) model.Stats {
	return model.Stats{
		OccupancyRate:    ProbabilityOccupancy(rows),
		PotentialRevenue: PotentialRevenue(rows),
	}
}
