package pricing

import (
	"math"
	"time"

	"temporada/internal/model"
)

// StayQuote is the suggested total for consecutive nights and the derived
// average daily rate (ADR).
type StayQuote struct {
	Nights int `json:"nights"`
	Total  int `json:"total"`
	ADR    int `json:"adr"`
}

// Nights counts whole nights between start and end, never negative.
func Nights(start, end model.Date) int {
	n := math.Round(end.Time.Sub(start.Time).Hours() / 24)
	if n < 0 {
		return 0
	}
	return int(n)
}

// QuoteStay prices each night from start (inclusive) to end (exclusive) at
// the listing's base. Without nights or total, ADR is the base price.
func QuoteStay(listing model.Listing, events []model.Event, start, end model.Date, now time.Time) StayQuote {
	sq := StayQuote{Nights: Nights(start, end)}
	for i := 0; i < sq.Nights; i++ {
		sq.Total += Price(Quote{
			Base:   listing.BasePrice,
			Date:   start.AddDays(i),
			City:   listing.City,
			Min:    listing.MinPrice,
			Max:    listing.MaxPrice,
			Events: events,
			Now:    now,
		})
	}

	if sq.Total != 0 && sq.Nights > 0 {
		sq.ADR = roundPrice(float64(sq.Total) / float64(sq.Nights))
	} else {
		sq.ADR = roundPrice(sanitizeBase(listing.BasePrice))
	}
	return sq
}

// Card is the catalog summary of one listing.
type Card struct {
	Listing   model.Listing `json:"listing"`
	Occupancy float64       `json:"occupancy"`
	Revenue   int           `json:"revenue"`
	Stay      StayQuote     `json:"stay"`
}

// BuildCard computes the catalog figures: nominal occupancy, gated revenue
// and, when start/end are set, the stay quote.
func BuildCard(listing model.Listing, events []model.Event, start, end *model.Date, now time.Time) Card {
	c := Card{
		Listing:   listing,
		Occupancy: NominalOccupancy(listing),
		Revenue:   GatedRevenue(listing, events, now),
	}
	if start != nil && end != nil {
		c.Stay = QuoteStay(listing, events, *start, *end, now)
	} else {
		c.Stay = StayQuote{ADR: roundPrice(sanitizeBase(listing.BasePrice))}
	}
	return c
}
