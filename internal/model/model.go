package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar-date layout used for keys and JSON.
const DateLayout = "2006-01-02"

// Date is a civil calendar date stored as 00:00 UTC.
type Date struct {
	time.Time
}

// NewDate builds a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as observed in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts "YYYY-MM-DD" or any string starting with it
// (e.g. an RFC 3339 date-time).
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// Key is the ISO representation used for map lookups.
func (d Date) Key() string {
	return d.Time.Format(DateLayout)
}

func (d Date) String() string {
	return d.Key()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Key())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Status is the nominal occupancy of a calendar day.
type Status string

const (
	StatusOccupied Status = "occupied"
	StatusFree     Status = "free"
)

// ParseStatus normalizes status labels, including the legacy Portuguese
// ones. Anything that is not an occupied label is free.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "occupied", "ocupado", "booked", "unavailable":
		return StatusOccupied
	default:
		return StatusFree
	}
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = ParseStatus(raw)
	return nil
}

// CalendarDay is the baseline occupancy of one day.
type CalendarDay struct {
	Date   Date   `json:"date"`
	Status Status `json:"status"`
}

// Listing is a rental unit with its pricing bounds and 30-day calendar.
type Listing struct {
	ID           string        `json:"id" validate:"required"`
	Title        string        `json:"title"`
	Photo        string        `json:"photo,omitempty"`
	City         string        `json:"city"`
	Neighborhood string        `json:"neighborhood"`
	Type         string        `json:"type"`
	Agency       string        `json:"agency"`
	BasePrice    float64       `json:"basePrice" validate:"gte=0,lte=1000000000"`
	MinPrice     float64       `json:"minPrice" validate:"gte=0,lte=1000000000"`
	MaxPrice     float64       `json:"maxPrice" validate:"gte=0,lte=1000000000"`
	Calendar     []CalendarDay `json:"calendar"`
}

// MaxListingPrice is the largest base or bound a listing may carry.
const MaxListingPrice = 1e9

// Default price bounds applied when a listing leaves them unset.
const (
	DefaultMinPrice = 120
	DefaultMaxPrice = 1800
)

// ErrInvertedBounds flags a listing whose minPrice exceeds its maxPrice.
var ErrInvertedBounds = errors.New("listing: minPrice is greater than maxPrice")

// ApplyDefaults fills unset price bounds. It is applied once when
// listings enter the system.
func (l *Listing) ApplyDefaults() {
	if l.MinPrice <= 0 {
		l.MinPrice = DefaultMinPrice
	}
	if l.MaxPrice <= 0 {
		l.MaxPrice = DefaultMaxPrice
	}
}

// CheckBounds reports ErrInvertedBounds without correcting anything.
func (l Listing) CheckBounds() error {
	if l.MinPrice > l.MaxPrice {
		return fmt.Errorf("%w (id=%s min=%g max=%g)", ErrInvertedBounds, l.ID, l.MinPrice, l.MaxPrice)
	}
	return nil
}

// UnmarshalJSON accepts both "calendar" and the older "calendar30" key.
func (l *Listing) UnmarshalJSON(b []byte) error {
	type plain Listing
	var aux struct {
		plain
		Calendar30 []CalendarDay `json:"calendar30"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*l = Listing(aux.plain)
	if len(l.Calendar) == 0 && len(aux.Calendar30) > 0 {
		l.Calendar = aux.Calendar30
	}
	return nil
}

// Event is a curated city event that bumps prices over an inclusive range.
type Event struct {
	City   string  `json:"city"`
	Title  string  `json:"title"`
	Start  Date    `json:"start"`
	End    Date    `json:"end"`
	Factor float64 `json:"factor"`
}

// Covers reports whether d falls within [Start, End].
func (e Event) Covers(d Date) bool {
	k := d.Key()
	return k >= e.Start.Key() && k <= e.End.Key()
}

// DefaultHolidayBoost is used when a holiday carries no boost.
const DefaultHolidayBoost = 0.2

// Holiday is a date-keyed boost; it applies regardless of city. A nil Boost
// means the record carried none; an explicit 0 disables the uplift.
type Holiday struct {
	Date   Date     `json:"date"`
	Reason string   `json:"reason"`
	Boost  *float64 `json:"boost,omitempty"`
}

// BoostOf returns a pointer to v, for building Holiday and query values.
func BoostOf(v float64) *float64 {
	return &v
}

// EffectiveBoost returns Boost, or DefaultHolidayBoost when unset.
func (h Holiday) EffectiveBoost() float64 {
	if h.Boost == nil {
		return DefaultHolidayBoost
	}
	return *h.Boost
}

// PricedDay is one computed calendar row. It is derived, never stored.
type PricedDay struct {
	Date        Date    `json:"date"`
	Status      Status  `json:"status"`
	Price       int     `json:"price"`
	Probability float64 `json:"probability"`
	Reason      string  `json:"reason,omitempty"`
	Boost       float64 `json:"boost,omitempty"`
}

// Stats aggregates a priced calendar.
type Stats struct {
	OccupancyRate    float64 `json:"occupancyRate"`
	PotentialRevenue float64 `json:"potentialRevenue"`
}
