package listing

import (
	"temporada/internal/model"
	"temporada/internal/pricing"
)

// FallbackListings is the demo catalog used when no listings file can be
// read. Calendars follow the synthetic occupancy pattern from start.
func FallbackListings(start model.Date) []model.Listing {
	return []model.Listing{
		{
			ID:           "SSA-1203",
			Title:        "Studio Vista Mar em Ondina",
			Photo:        "https://images.unsplash.com/photo-1505693416388-ac5ce068fe85?q=80&w=1200&auto=format&fit=crop",
			City:         "Salvador",
			Neighborhood: "Ondina",
			Type:         "Studio",
			Agency:       "ImobX",
			BasePrice:    240,
			MinPrice:     150,
			MaxPrice:     900,
			Calendar:     pricing.BuildWindow(start, nil),
		},
		{
			ID:           "SSA-4310",
			Title:        "2Q Pé na Areia, Barra",
			Photo:        "https://images.unsplash.com/photo-1507089947368-19c1da9775ae?q=80&w=1200&auto=format&fit=crop",
			City:         "Salvador",
			Neighborhood: "Barra",
			Type:         "Apartamento",
			Agency:       "ImobY",
			BasePrice:    380,
			MinPrice:     220,
			MaxPrice:     1200,
			Calendar:     pricing.BuildWindow(start, nil),
		},
		{
			ID:           "AJU-2211",
			Title:        "Casa 3Q Próx. Orla de Atalaia",
			Photo:        "https://images.unsplash.com/photo-1576941089067-2de3c901e126?q=80&w=1200&auto=format&fit=crop",
			City:         "Aracaju",
			Neighborhood: "Atalaia",
			Type:         "Casa",
			Agency:       "ImobX",
			BasePrice:    500,
			MinPrice:     260,
			MaxPrice:     1800,
			Calendar:     pricing.BuildWindow(start, nil),
		},
	}
}

// FallbackEvents is the curated event list used when no events file can be
// read.
func FallbackEvents() []model.Event {
	return []model.Event{
		{City: "Salvador", Title: "Festival de Verão", Start: model.NewDate(2025, 11, 20), End: model.NewDate(2025, 11, 23), Factor: 0.25},
		{City: "Aracaju", Title: "Corrida de Rua", Start: model.NewDate(2025, 11, 16), End: model.NewDate(2025, 11, 16), Factor: 0.10},
	}
}
