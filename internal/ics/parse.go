package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "temporada/internal/log"
)

// Entry is a VEVENT reduced to what date-keyed lookups need.
type Entry struct {
	UID     string
	Summary string

	// Start/End are the DTSTART/DTEND values. For all-day entries they are
	// midnight UTC of the calendar date and End is exclusive.
	Start  time.Time
	End    time.Time
	AllDay bool

	RRule   string
	ExDates []time.Time
}

// ParseFeed parses an ICS payload. Malformed VEVENTs are logged and skipped.
func ParseFeed(src Source, body []byte) ([]Entry, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID)
		return nil, err
	}

	entries := make([]Entry, 0)
	for _, ve := range cal.Events() {
		e, perr := parseEntry(ve)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "reason", perr.Error())
			continue
		}
		entries = append(entries, e)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "entry_count", len(entries))
	return entries, nil
}

func parseEntry(ve *ical.VEvent) (Entry, error) {
	var e Entry

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		e.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		e.Summary = strings.TrimSpace(p.Value)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return e, errors.New("missing DTSTART")
	}
	e.AllDay = isDateValue(dtStart)

	if e.AllDay {
		start, err := parseICSTime(dtStart.Value)
		if err != nil {
			return e, err
		}
		e.Start = start
		e.End = start.AddDate(0, 0, 1)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := parseICSTime(dtEnd.Value); err == nil && end.After(start) {
				e.End = end
			}
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return e, err
		}
		e.Start = start
		e.End = start
		if end, err := ve.GetEndAt(); err == nil {
			e.End = end
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		e.RRule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part); err == nil {
				e.ExDates = append(e.ExDates, t)
			}
		}
	}

	return e, nil
}

// isDateValue detects VALUE=DATE or a DTSTART without a time part.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime handles the DATE, floating DATE-TIME and UTC DATE-TIME forms.
// Date-only and floating values are read as UTC.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, time.UTC)
	default:
		return time.ParseInLocation("20060102", v, time.UTC)
	}
}
