// Package holiday looks up public holidays for the pricing engine, either
// from a public ICS feed or from the Google Calendar v3 API.
package holiday

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"temporada/internal/ics"
	"temporada/internal/model"
)

// Lookup defaults.
const (
	DefaultCalendarID = "pt-br.brazilian#holiday@group.v.calendar.google.com"
	DefaultDays       = 180
	DefaultBoost      = 0.2
	defaultReason     = "Feriado"
)

// Query selects a holiday calendar and lookahead window. A nil Boost takes
// the default; an explicit 0 is kept.
type Query struct {
	CalendarID string
	Days       int
	Boost      *float64
}

// WithDefaults fills unset fields.
func (q Query) WithDefaults() Query {
	if q.CalendarID == "" {
		q.CalendarID = DefaultCalendarID
	}
	if q.Days <= 0 {
		q.Days = DefaultDays
	}
	if q.Boost == nil {
		q.Boost = model.BoostOf(DefaultBoost)
	}
	return q
}

// BoostValue returns the boost, or DefaultBoost when unset.
func (q Query) BoostValue() float64 {
	if q.Boost == nil {
		return DefaultBoost
	}
	return *q.Boost
}

func (q Query) cacheKey() string {
	return q.CalendarID + "|" + strconv.Itoa(q.Days) + "|" + strconv.FormatFloat(q.BoostValue(), 'f', -1, 64)
}

// Source fetches holidays for [today, today+Days].
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query, now time.Time) ([]model.Holiday, error)
}

// ICSSource reads a calendar's public ICS feed through a caching fetcher.
type ICSSource struct {
	fetcher *ics.Fetcher
	feedURL string
	loc     *time.Location
}

// NewICSSource builds an ICS source. feedURL, when set, replaces the public
// Google feed derived from the query's calendar id.
func NewICSSource(fetcher *ics.Fetcher, feedURL string, loc *time.Location) *ICSSource {
	if loc == nil {
		loc = time.UTC
	}
	return &ICSSource{fetcher: fetcher, feedURL: feedURL, loc: loc}
}

func (s *ICSSource) Name() string { return "ics" }

func (s *ICSSource) Fetch(ctx context.Context, q Query, now time.Time) ([]model.Holiday, error) {
	q = q.WithDefaults()
	feed := s.feedURL
	if feed == "" {
		feed = ics.PublicFeedURL(q.CalendarID)
	}
	src := ics.Source{ID: q.CalendarID, URL: feed}

	res, err := s.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	entries, err := ics.ParseFeed(src, res.Body)
	if err != nil {
		return nil, err
	}

	from := model.DateOf(now.In(s.loc))
	days, err := ics.ExpandDays(entries, ics.ExpandConfig{
		From:     from,
		To:       from.AddDays(q.Days),
		Location: s.loc,
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Holiday, 0, len(days))
	for _, d := range days {
		reason := d.Summary
		if reason == "" {
			reason = defaultReason
		}
		out = append(out, model.Holiday{Date: d.Date, Reason: reason, Boost: model.BoostOf(q.BoostValue())})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date.Time)
	})
	return out, nil
}

// GoogleAPIBaseURL is the Calendar v3 API root.
const GoogleAPIBaseURL = "https://www.googleapis.com/calendar/v3"

// GoogleAPISource pages through the Calendar v3 events endpoint.
type GoogleAPISource struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

func NewGoogleAPISource(client *http.Client, apiKey, baseURL string) *GoogleAPISource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = GoogleAPIBaseURL
	}
	return &GoogleAPISource{client: client, apiKey: apiKey, baseURL: baseURL}
}

func (s *GoogleAPISource) Name() string { return "google_api" }

type googleEventsPage struct {
	Items []struct {
		Summary string `json:"summary"`
		Start   struct {
			Date     string `json:"date"`
			DateTime string `json:"dateTime"`
		} `json:"start"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// APIError is a non-2xx answer from the Calendar API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google calendar: status %d: %s", e.Status, e.Body)
}

func (s *GoogleAPISource) Fetch(ctx context.Context, q Query, now time.Time) ([]model.Holiday, error) {
	q = q.WithDefaults()
	if s.apiKey == "" {
		return nil, fmt.Errorf("google calendar: api key is not configured")
	}

	timeMin := now.UTC()
	timeMax := timeMin.Add(time.Duration(q.Days) * 24 * time.Hour)

	out := make([]model.Holiday, 0)
	pageToken := ""
	for {
		page, err := s.fetchPage(ctx, q.CalendarID, timeMin, timeMax, pageToken)
		if err != nil {
			return nil, err
		}
		for _, it := range page.Items {
			raw := it.Start.Date
			if raw == "" {
				raw = it.Start.DateTime
			}
			if raw == "" {
				continue
			}
			d, err := model.ParseDate(raw)
			if err != nil {
				continue
			}
			reason := it.Summary
			if reason == "" {
				reason = defaultReason
			}
			out = append(out, model.Holiday{Date: d, Reason: reason, Boost: model.BoostOf(q.BoostValue())})
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

func (s *GoogleAPISource) fetchPage(ctx context.Context, calendarID string, timeMin, timeMax time.Time, pageToken string) (*googleEventsPage, error) {
	u, err := url.Parse(s.baseURL + "/calendars/" + url.PathEscape(calendarID) + "/events")
	if err != nil {
		return nil, err
	}
	v := url.Values{}
	v.Set("singleEvents", "true")
	v.Set("orderBy", "startTime")
	v.Set("timeMin", timeMin.Format(time.RFC3339))
	v.Set("timeMax", timeMax.Format(time.RFC3339))
	v.Set("maxResults", "2500")
	v.Set("key", s.apiKey)
	if pageToken != "" {
		v.Set("pageToken", pageToken)
	}
	u.RawQuery = v.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google calendar: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("google calendar: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var page googleEventsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("google calendar: decode: %w", err)
	}
	return &page, nil
}
