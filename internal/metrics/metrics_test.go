package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.PricingRun("dashboard")
	m.HolidayFetch("ics", nil)
	m.HolidayFetch("ics", errors.New("timeout"))
	m.HolidaysCached(12)
	m.LeadSubmitted("CREATED")
	m.ObserveRequest("/api/leads", time.Now())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`temporada_pricing_runs_total{view="dashboard"} 1`,
		`temporada_holiday_fetches_total{result="error",source="ics"} 1`,
		`temporada_holidays_cached 12`,
		`temporada_leads_submitted_total{status="CREATED"} 1`,
		`temporada_http_request_duration_seconds_count{route="/api/leads"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.PricingRun("catalog")
	m.HolidayFetch("api", nil)
	m.HolidaysCached(1)
	m.LeadSubmitted("DUPLICATE")
	m.ObserveRequest("/", time.Now())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}
