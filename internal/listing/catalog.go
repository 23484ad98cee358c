// Package listing loads rental listings and city events and serves them as
// a filterable catalog.
package listing

import (
	"errors"
	"sync"

	"temporada/internal/model"
)

// ErrNotFound is returned when a listing id is unknown.
var ErrNotFound = errors.New("listing: not found")

// Filter narrows the catalog. Empty fields match everything; set fields
// match exactly.
type Filter struct {
	City         string
	Neighborhood string
	Type         string
	Agency       string
}

func (f Filter) match(l model.Listing) bool {
	return (f.City == "" || l.City == f.City) &&
		(f.Neighborhood == "" || l.Neighborhood == f.Neighborhood) &&
		(f.Type == "" || l.Type == f.Type) &&
		(f.Agency == "" || l.Agency == f.Agency)
}

// Facets are the distinct filter values in first-seen order.
type Facets struct {
	Cities        []string `json:"cities"`
	Neighborhoods []string `json:"neighborhoods"`
	Types         []string `json:"types"`
	Agencies      []string `json:"agencies"`
}

// Catalog holds the current listings and events. Replace swaps both
// atomically so readers never see a half-loaded catalog.
type Catalog struct {
	mu       sync.RWMutex
	listings []model.Listing
	events   []model.Event
}

func NewCatalog(listings []model.Listing, events []model.Event) *Catalog {
	c := &Catalog{}
	c.Replace(listings, events)
	return c
}

// Replace installs a new set of listings and events.
func (c *Catalog) Replace(listings []model.Listing, events []model.Event) {
	l := append([]model.Listing(nil), listings...)
	e := append([]model.Event(nil), events...)
	c.mu.Lock()
	c.listings = l
	c.events = e
	c.mu.Unlock()
}

// ReplaceListings keeps the events and swaps the listings.
func (c *Catalog) ReplaceListings(listings []model.Listing) {
	l := append([]model.Listing(nil), listings...)
	c.mu.Lock()
	c.listings = l
	c.mu.Unlock()
}

func (c *Catalog) Listings() []model.Listing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Listing(nil), c.listings...)
}

func (c *Catalog) Events() []model.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Event(nil), c.events...)
}

// Get returns the listing with the given id.
func (c *Catalog) Get(id string) (model.Listing, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, l := range c.listings {
		if l.ID == id {
			return l, nil
		}
	}
	return model.Listing{}, ErrNotFound
}

// Filter returns the listings matching f in catalog order.
func (c *Catalog) Filter(f Filter) []model.Listing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Listing, 0, len(c.listings))
	for _, l := range c.listings {
		if f.match(l) {
			out = append(out, l)
		}
	}
	return out
}

// Facets lists the distinct cities, neighborhoods, types and agencies.
func (c *Catalog) Facets() Facets {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var cities, hoods, types, agencies distinct
	for _, l := range c.listings {
		cities.add(l.City)
		hoods.add(l.Neighborhood)
		types.add(l.Type)
		agencies.add(l.Agency)
	}
	return Facets{
		Cities:        cities.values(),
		Neighborhoods: hoods.values(),
		Types:         types.values(),
		Agencies:      agencies.values(),
	}
}

type distinct struct {
	seen map[string]struct{}
	list []string
}

func (d *distinct) add(v string) {
	if d.seen == nil {
		d.seen = make(map[string]struct{})
	}
	if _, ok := d.seen[v]; ok {
		return
	}
	d.seen[v] = struct{}{}
	d.list = append(d.list, v)
}

func (d *distinct) values() []string {
	if d.list == nil {
		return []string{}
	}
	return d.list
}
