package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"temporada/internal/config"
	"temporada/internal/holiday"
	"temporada/internal/lead"
	"temporada/internal/listing"
	"temporada/internal/metrics"
	"temporada/internal/model"
)

type stubHolidays struct {
	items []model.Holiday
	err   error
}

func (s stubHolidays) Name() string { return "stub" }

func (s stubHolidays) Fetch(context.Context, holiday.Query, time.Time) ([]model.Holiday, error) {
	return s.items, s.err
}

var fixedNow = time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, hs holiday.Source, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Snapshot.OutputPath = t.TempDir() + "/preview.png"
	if mutate != nil {
		mutate(cfg)
	}
	start := model.DateOf(fixedNow)
	m := metrics.New()
	s := NewServer(Deps{
		Config:   cfg,
		Catalog:  listing.NewCatalog(listing.FallbackListings(start), listing.FallbackEvents()),
		Holidays: holiday.NewService(hs, holiday.Query{}, m),
		Leads:    lead.NewService(lead.NewMemoryStore(), "", m),
		Metrics:  m,
	})
	s.now = func() time.Time { return fixedNow }
	return s
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, stubHolidays{}, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}

func TestListingsFiltersAndQuotes(t *testing.T) {
	s := newTestServer(t, stubHolidays{}, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/listings?city=Salvador&start=2025-11-20&end=2025-11-23", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Items []struct {
			Listing   model.Listing `json:"listing"`
			Occupancy float64       `json:"occupancy"`
			Stay      struct {
				Nights int `json:"nights"`
				Total  int `json:"total"`
				ADR    int `json:"adr"`
			} `json:"stay"`
		} `json:"items"`
		Facets listing.Facets `json:"facets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 Salvador listings, got %d", len(resp.Items))
	}
	if resp.Items[0].Stay.Nights != 3 || resp.Items[0].Stay.Total <= 0 {
		t.Fatalf("stay quote missing: %+v", resp.Items[0].Stay)
	}
	if len(resp.Facets.Cities) != 2 {
		t.Fatalf("facets should cover the whole catalog, got %v", resp.Facets.Cities)
	}
}

func TestPricingBaseParameter(t *testing.T) {
	holidays := []model.Holiday{{Date: model.NewDate(2025, 11, 15), Reason: "Proclamação da República", Boost: model.BoostOf(0.2)}}
	s := newTestServer(t, stubHolidays{items: holidays}, nil)
	h := s.Handler()

	type resp struct {
		Base  float64           `json:"base"`
		Rows  []model.PricedDay `json:"rows"`
		Stats model.Stats       `json:"stats"`
	}
	get := func(target string) resp {
		rec := do(t, h, http.MethodGet, target, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", target, rec.Code)
		}
		var r resp
		if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return r
	}

	def := get("/api/listings/SSA-1203/pricing")
	if def.Base != 240 || len(def.Rows) != 30 {
		t.Fatalf("absent base should use the listing base: %+v", def.Base)
	}
	if def.Rows[14].Reason != "Proclamação da República" {
		t.Fatalf("holiday not attached to 2025-11-15: %+v", def.Rows[14])
	}

	junk := get("/api/listings/SSA-1203/pricing?base=abc")
	if junk.Base != 0 {
		t.Fatalf("non-numeric base should be 0, got %v", junk.Base)
	}
	for _, r := range junk.Rows {
		if r.Date.Key() != "2025-11-15" && r.Price != 150 {
			t.Fatalf("zero base should clamp to the floor, got %d on %s", r.Price, r.Date)
		}
	}

	rec := do(t, h, http.MethodGet, "/api/listings/NOPE/pricing", nil)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "NOT_FOUND") {
		t.Fatalf("expected 404 NOT_FOUND, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestPricingSurvivesHolidayOutage(t *testing.T) {
	s := newTestServer(t, stubHolidays{err: errors.New("down")}, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/listings/AJU-2211/pricing?base=500", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pricing must not fail on holiday errors, got %d", rec.Code)
	}
}

func TestExports(t *testing.T) {
	s := newTestServer(t, stubHolidays{}, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/listings/SSA-4310/export.xlsx?base=400", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Header().Get("Content-Type"), "spreadsheetml") {
		t.Fatalf("xlsx export: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "SSA-4310.xlsx") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}

	rec = do(t, h, http.MethodGet, "/api/listings/SSA-4310/export.pdf", nil)
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Fatalf("pdf export: %d", rec.Code)
	}
}

func TestHolidaysEndpoint(t *testing.T) {
	items := []model.Holiday{{Date: model.NewDate(2025, 12, 25), Reason: "Natal", Boost: model.BoostOf(0.3)}}
	s := newTestServer(t, stubHolidays{items: items}, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/holidays?days=90&boost=0.3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Items []model.Holiday `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || len(resp.Items) != 1 {
		t.Fatalf("unexpected body %s (%v)", rec.Body.String(), err)
	}

	rec = do(t, h, http.MethodPost, "/api/holidays", nil)
	if rec.Code != http.StatusMethodNotAllowed || !strings.Contains(rec.Body.String(), "METHOD_NOT_ALLOWED") {
		t.Fatalf("expected 405, got %d %s", rec.Code, rec.Body.String())
	}

	failing := newTestServer(t, stubHolidays{err: errors.New("boom")}, nil)
	rec = do(t, failing.Handler(), http.MethodGet, "/api/holidays", nil)
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "SERVER_ERROR") {
		t.Fatalf("expected 500 SERVER_ERROR, got %d %s", rec.Code, rec.Body.String())
	}

	google := newTestServer(t, stubHolidays{err: &holiday.APIError{Status: 403, Body: "forbidden"}}, nil)
	rec = do(t, google.Handler(), http.MethodGet, "/api/holidays", nil)
	if rec.Code != http.StatusForbidden || !strings.Contains(rec.Body.String(), "GOOGLE_ERROR") {
		t.Fatalf("expected 403 GOOGLE_ERROR, got %d %s", rec.Code, rec.Body.String())
	}
}

// boostEcho stamps every holiday with the boost it was asked for, like the
// real sources do.
type boostEcho struct{}

func (boostEcho) Name() string { return "echo" }

func (boostEcho) Fetch(_ context.Context, q holiday.Query, _ time.Time) ([]model.Holiday, error) {
	return []model.Holiday{{Date: model.NewDate(2025, 12, 25), Reason: "Natal", Boost: model.BoostOf(q.BoostValue())}}, nil
}

func TestHolidaysEndpointBoostParam(t *testing.T) {
	h := newTestServer(t, boostEcho{}, nil).Handler()

	cases := []struct {
		target string
		want   float64
	}{
		{"/api/holidays?boost=0", 0},
		{"/api/holidays", 0.2},
		{"/api/holidays?boost=0.35", 0.35},
		{"/api/holidays?boost=abc", 0.2},
	}
	for _, tc := range cases {
		rec := do(t, h, http.MethodGet, tc.target, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", tc.target, rec.Code)
		}
		var resp struct {
			Items []model.Holiday `json:"items"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || len(resp.Items) != 1 {
			t.Fatalf("%s: unexpected body %s (%v)", tc.target, rec.Body.String(), err)
		}
		if resp.Items[0].Boost == nil || *resp.Items[0].Boost != tc.want {
			t.Fatalf("%s: expected boost %v, got %s", tc.target, tc.want, rec.Body.String())
		}
	}
}

func TestLeadsEndpoint(t *testing.T) {
	s := newTestServer(t, stubHolidays{}, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/leads", []byte(`{"name":"Ana","email":"ANA@example.com"}`))
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"CREATED"`) {
		t.Fatalf("expected 201 CREATED, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/api/leads", []byte(`{"name":"Ana","email":"ana@example.com "}`))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"DUPLICATE"`) {
		t.Fatalf("expected 200 DUPLICATE, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/api/leads", []byte(`{"email":"x@y.z"}`))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "INVALID_INPUT") {
		t.Fatalf("expected 400 INVALID_INPUT, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/api/leads", []byte(`not json`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("garbage body should be treated as empty input, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/leads", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestImportWithoutImporter(t *testing.T) {
	s := newTestServer(t, stubHolidays{}, nil)
	rec := do(t, s.Handler(), http.MethodPost, "/api/listings/import?city=amsterdam", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestImportReplacesCatalog(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("id,name,price,availability_30\n7,Canal loft,$180.00,12\n"))
	}))
	defer upstream.Close()

	s := newTestServer(t, stubHolidays{}, nil)
	s.importer = listing.NewImporter(upstream.Client(), map[string]string{"amsterdam": upstream.URL})
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/listings/import?city=amsterdam", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("import: %d %s", rec.Code, rec.Body.String())
	}
	if _, err := s.catalog.Get("7"); err != nil {
		t.Fatalf("imported listing not in catalog: %v", err)
	}

	rec = do(t, h, http.MethodPost, "/api/listings/import?city=rio", nil)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "CITY_NOT_CONFIGURED") {
		t.Fatalf("expected CITY_NOT_CONFIGURED, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestBasicAuthAndStatic(t *testing.T) {
	s := newTestServer(t, stubHolidays{}, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "owner", Password: "secret"}
	})
	h := s.Handler()

	if rec := do(t, h, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("/health must stay public, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/events", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("owner", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `data-ready="false"`) {
		t.Fatalf("dashboard not served: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	req.SetBasicAuth("owner", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown api path should 404, got %d", rec.Code)
	}
}

func TestEventsAndMetrics(t *testing.T) {
	s := newTestServer(t, stubHolidays{}, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/events?city=Aracaju", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Corrida de Rua") || strings.Contains(rec.Body.String(), "Festival") {
		t.Fatalf("unexpected events body %s", rec.Body.String())
	}

	do(t, h, http.MethodGet, "/api/listings", nil)
	rec = do(t, h, http.MethodGet, "/metrics", nil)
	if !strings.Contains(rec.Body.String(), `temporada_pricing_runs_total{view="catalog"} 1`) {
		t.Fatalf("metrics missing pricing run:\n%s", rec.Body.String())
	}

	if rec := do(t, h, http.MethodOptions, "/api/leads", nil); rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight not answered: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/preview.png", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing snapshot should 404, got %d", rec.Code)
	}
}
