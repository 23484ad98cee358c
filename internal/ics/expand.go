package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "temporada/internal/log"
	"temporada/internal/model"
)

const defaultMaxDaysPerEntry = 400

// DayOccurrence is one calendar day touched by an entry.
type DayOccurrence struct {
	UID     string
	Summary string
	Date    model.Date
}

// ExpandConfig bounds expansion to an inclusive date window.
type ExpandConfig struct {
	From model.Date
	To   model.Date
	// Location decides the calendar day of timed entries. Nil means UTC.
	Location *time.Location
	// MaxDaysPerEntry caps a single entry's output. Zero uses a default.
	MaxDaysPerEntry int
}

// ExpandDays turns entries into per-day occurrences inside [From, To],
// applying RRULE and EXDATE. Output follows entry order, then date order.
func ExpandDays(entries []Entry, cfg ExpandConfig) ([]DayOccurrence, error) {
	if cfg.To.Before(cfg.From.Time) {
		return nil, errors.New("expand: To is before From")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxDaysPerEntry <= 0 {
		cfg.MaxDaysPerEntry = defaultMaxDaysPerEntry
	}

	out := make([]DayOccurrence, 0, len(entries))
	for _, e := range entries {
		starts := []time.Time{e.Start}
		if e.RRule != "" {
			var err error
			starts, err = recurrenceStarts(e, cfg)
			if err != nil {
				appLog.Warn("expand: bad RRULE, using DTSTART only", "uid", e.UID, "rrule", e.RRule, "reason", err.Error())
				starts = []time.Time{e.Start}
			}
		}

		emitted := 0
	occurrences:
		for _, s := range starts {
			for _, d := range coveredDays(e, s, cfg.Location) {
				if d.Before(cfg.From.Time) || d.After(cfg.To.Time) {
					continue
				}
				if emitted >= cfg.MaxDaysPerEntry {
					appLog.Warn("expand: entry truncated", "uid", e.UID, "cap", cfg.MaxDaysPerEntry)
					break occurrences
				}
				out = append(out, DayOccurrence{UID: e.UID, Summary: e.Summary, Date: d})
				emitted++
			}
		}
	}
	return out, nil
}

func recurrenceStarts(e Entry, cfg ExpandConfig) ([]time.Time, error) {
	r, err := rrule.StrToRRule(e.RRule)
	if err != nil {
		return nil, err
	}
	r.DTStart(e.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range e.ExDates {
		set.ExDate(ex.In(e.Start.Location()))
	}

	// Widen by a day on each side so timed entries near midnight are not lost
	// to timezone conversion; coveredDays re-filters by calendar day.
	from := cfg.From.Time.AddDate(0, 0, -1).In(e.Start.Location())
	to := cfg.To.Time.AddDate(0, 0, 2).In(e.Start.Location())
	return set.Between(from, to, true), nil
}

// coveredDays lists the calendar days of one occurrence starting at s.
func coveredDays(e Entry, s time.Time, loc *time.Location) []model.Date {
	if !e.AllDay {
		return []model.Date{model.DateOf(s.In(loc))}
	}

	first := model.NewDate(s.Year(), s.Month(), s.Day())
	span := int(e.End.Sub(e.Start).Hours() / 24)
	if span < 1 {
		span = 1
	}
	days := make([]model.Date, 0, span)
	for i := 0; i < span; i++ {
		days = append(days, first.AddDays(i))
	}
	return days
}
