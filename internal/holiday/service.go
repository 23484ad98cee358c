package holiday

import (
	"context"
	"sync"
	"time"

	appLog "temporada/internal/log"
	"temporada/internal/metrics"
	"temporada/internal/model"
)

const (
	defaultCacheTTL   = 6 * time.Hour
	defaultFailureTTL = time.Minute
)

type cacheEntry struct {
	items     []model.Holiday
	updatedAt time.Time
}

type failureEntry struct {
	err    error
	failAt time.Time
}

// Service caches holiday lists per query in memory. The pricing path uses
// Holidays, which never fails; the raw lookup endpoint uses Lookup.
type Service struct {
	source   Source
	defaults Query
	metrics  *metrics.Metrics
	ttl      time.Duration
	failTTL  time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	cache    map[string]cacheEntry
	failures map[string]failureEntry
}

// NewService wires a source. defaults are used for Refresh and for zero
// fields in queries.
func NewService(source Source, defaults Query, m *metrics.Metrics) *Service {
	return &Service{
		source:   source,
		defaults: defaults.WithDefaults(),
		metrics:  m,
		ttl:      defaultCacheTTL,
		failTTL:  defaultFailureTTL,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
		failures: make(map[string]failureEntry),
	}
}

// Defaults returns the configured default query.
func (s *Service) Defaults() Query {
	return s.defaults
}

func (s *Service) fill(q Query) Query {
	if q.CalendarID == "" {
		q.CalendarID = s.defaults.CalendarID
	}
	if q.Days <= 0 {
		q.Days = s.defaults.Days
	}
	if q.Boost == nil {
		q.Boost = s.defaults.Boost
	}
	return q
}

// Lookup returns the holidays for q, from cache when fresh. Errors are
// returned to the caller. A failed fetch is remembered for a short while so
// an unreachable upstream is not retried on every request.
func (s *Service) Lookup(ctx context.Context, q Query) ([]model.Holiday, error) {
	q = s.fill(q)
	key := q.cacheKey()

	s.mu.RLock()
	ce, ok := s.cache[key]
	fe, failed := s.failures[key]
	s.mu.RUnlock()
	now := s.now()
	if ok && now.Sub(ce.updatedAt) < s.ttl {
		return cloneHolidays(ce.items), nil
	}
	if failed && now.Sub(fe.failAt) < s.failTTL {
		return nil, fe.err
	}

	return s.fetch(ctx, q)
}

func (s *Service) fetch(ctx context.Context, q Query) ([]model.Holiday, error) {
	key := q.cacheKey()
	items, err := s.source.Fetch(ctx, q, s.now())
	s.metrics.HolidayFetch(s.source.Name(), err)
	if err != nil {
		// A cancelled request says nothing about the upstream.
		if ctx.Err() == nil {
			s.mu.Lock()
			s.failures[key] = failureEntry{err: err, failAt: s.now()}
			s.mu.Unlock()
		}
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = cacheEntry{items: cloneHolidays(items), updatedAt: s.now()}
	delete(s.failures, key)
	s.mu.Unlock()

	if key == s.defaults.cacheKey() {
		s.metrics.HolidaysCached(len(items))
	}
	appLog.Info("holidays loaded", "source", s.source.Name(), "calendar_id", q.CalendarID, "count", len(items))
	return cloneHolidays(items), nil
}

// Holidays is Lookup with failures degraded to an empty list, so reference
// data problems never stop a pricing run.
func (s *Service) Holidays(ctx context.Context, q Query) []model.Holiday {
	items, err := s.Lookup(ctx, q)
	if err != nil {
		appLog.Error("holiday lookup failed; pricing without holidays", err, "calendar_id", s.fill(q).CalendarID)
		return []model.Holiday{}
	}
	return items
}

// Refresh re-fetches the default query, bypassing the cache. It is driven by
// the cron scheduler.
func (s *Service) Refresh(ctx context.Context) error {
	_, err := s.fetch(ctx, s.defaults)
	return err
}

func cloneHolidays(in []model.Holiday) []model.Holiday {
	out := make([]model.Holiday, len(in))
	copy(out, in)
	return out
}
