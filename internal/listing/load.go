package listing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"

	appLog "temporada/internal/log"
	"temporada/internal/model"
	"temporada/internal/pricing"
)

var validate = validator.New()

// Normalize applies default bounds and a Horizon-day calendar (synthetic when
// the listing carries none), then validates the result.
func Normalize(l model.Listing, start model.Date) (model.Listing, error) {
	l.ApplyDefaults()
	l.Calendar = pricing.BuildWindow(start, l.Calendar)
	if err := validate.Struct(l); err != nil {
		return l, fmt.Errorf("listing %q: %w", l.ID, err)
	}
	return l, nil
}

// ReadListings decodes a JSON array of listings. Invalid entries are
// skipped and logged.
func ReadListings(path string, start model.Date) ([]model.Listing, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []model.Listing
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	out := make([]model.Listing, 0, len(raw))
	for _, l := range raw {
		n, err := Normalize(l, start)
		if err != nil {
			appLog.Warn("skipping invalid listing", "path", path, "err", err)
			continue
		}
		if err := n.CheckBounds(); err != nil {
			appLog.Warn("listing has inverted price bounds", "id", n.ID, "min", n.MinPrice, "max", n.MaxPrice)
		}
		out = append(out, n)
	}
	return out, nil
}

// ReadEvents decodes a JSON array of events. Events without a city or with
// an end before their start are skipped.
func ReadEvents(path string) ([]model.Event, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []model.Event
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	out := make([]model.Event, 0, len(raw))
	for _, e := range raw {
		if err := validate.Var(e.City, "required"); err != nil {
			appLog.Warn("skipping event without city", "title", e.Title)
			continue
		}
		if e.End.Before(e.Start.Time) {
			appLog.Warn("skipping event ending before it starts", "title", e.Title, "start", e.Start, "end", e.End)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// LoadListings reads path and falls back to the demo catalog when the file
// is missing, unreadable or empty. An empty path goes straight to the
// fallback.
func LoadListings(path string, start model.Date) []model.Listing {
	if path == "" {
		return FallbackListings(start)
	}
	listings, err := ReadListings(path, start)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		appLog.Warn("listings file not found; using fallback catalog", "path", path)
		return FallbackListings(start)
	case err != nil:
		appLog.Error("failed to load listings; using fallback catalog", err, "path", path)
		return FallbackListings(start)
	case len(listings) == 0:
		appLog.Warn("listings file is empty; using fallback catalog", "path", path)
		return FallbackListings(start)
	}
	appLog.Info("listings loaded", "path", path, "count", len(listings))
	return listings
}

// LoadEvents reads path and falls back to the curated events under the same
// rules as LoadListings.
func LoadEvents(path string) []model.Event {
	if path == "" {
		return FallbackEvents()
	}
	events, err := ReadEvents(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		appLog.Warn("events file not found; using fallback events", "path", path)
		return FallbackEvents()
	case err != nil:
		appLog.Error("failed to load events; using fallback events", err, "path", path)
		return FallbackEvents()
	case len(events) == 0:
		appLog.Warn("events file is empty; using fallback events", "path", path)
		return FallbackEvents()
	}
	appLog.Info("events loaded", "path", path, "count", len(events))
	return events
}
