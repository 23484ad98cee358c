package listing

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"temporada/internal/model"
)

var start = model.NewDate(2025, 11, 1)

const sampleCSV = `id,name,host_id,neighbourhood,room_type,price,availability_30,picture_url
2818,Quiet Garden View Room,3159,Oostelijk Havengebied,Private room,"$1,250.00",10,https://img/1.jpg
20168,Studio with private bathroom,59484,Centrum-Oost,Private room,,0,
,,,,,,,

27886,Romantic houseboat,97647,Centrum-West,Entire home/apt,95,45,
`

func TestParseInsideAirbnbCSV(t *testing.T) {
	got, err := ParseInsideAirbnbCSV(strings.NewReader(sampleCSV), "amsterdam", 0, start)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(got))
	}

	first := got[0]
	if first.ID != "2818" || first.Title != "Quiet Garden View Room" || first.City != "amsterdam" {
		t.Fatalf("unexpected first listing %+v", first)
	}
	if first.BasePrice != 1250 || first.MinPrice != 750 || first.MaxPrice != 3750 {
		t.Fatalf("unexpected prices %v/%v/%v", first.BasePrice, first.MinPrice, first.MaxPrice)
	}
	if first.Agency != "ImobX" || first.Neighborhood != "Oostelijk Havengebied" || first.Photo != "https://img/1.jpg" {
		t.Fatalf("unexpected mapping %+v", first)
	}
	if len(first.Calendar) != 30 {
		t.Fatalf("expected 30-day calendar, got %d", len(first.Calendar))
	}
	free := 0
	for i, d := range first.Calendar {
		if d.Status == model.StatusFree {
			free++
			if i >= 10 {
				t.Fatalf("free day after availability window at %d", i)
			}
		}
	}
	if free != 10 {
		t.Fatalf("expected 10 free days, got %d", free)
	}

	second := got[1]
	if second.BasePrice != 250 || second.MinPrice != 150 || second.MaxPrice != 750 {
		t.Fatalf("price fallback not applied: %+v", second)
	}
	if second.Calendar[0].Status != model.StatusOccupied {
		t.Fatalf("availability 0 should mean fully occupied")
	}

	third := got[2]
	if third.MinPrice != 120 || third.MaxPrice != 600 || third.Agency != "ImobX" {
		t.Fatalf("floors not applied: %+v", third)
	}
	if third.Calendar[29].Status != model.StatusFree {
		t.Fatalf("availability above 30 should clamp to the whole window")
	}

	limited, err := ParseInsideAirbnbCSV(strings.NewReader(sampleCSV), "amsterdam", 1, start)
	if err != nil || len(limited) != 1 {
		t.Fatalf("limit not honored: %d %v", len(limited), err)
	}
}

func TestParsePrice(t *testing.T) {
	cases := map[string]int{
		"$1,250.00": 1250,
		"R$ 99.5":   100,
		"":          0,
		"abc":       0,
		"75":        75,
		"$1e30":     0,
	}
	for in, want := range cases {
		if got := ParsePrice(in); got != want {
			t.Fatalf("ParsePrice(%q)=%d, want %d", in, got, want)
		}
	}
}

func TestImporterRetriesAndGunzips(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write([]byte(sampleCSV))
	_ = zw.Close()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		if !strings.Contains(r.Header.Get("User-Agent"), "Mozilla") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		_, _ = w.Write(gz.Bytes())
	}))
	defer srv.Close()

	im := NewImporter(srv.Client(), map[string]string{"Amsterdam": srv.URL + "/listings.csv.gz"})
	im.backoff = func(int) time.Duration { return time.Millisecond }

	got, err := im.Import(context.Background(), "amsterdam", 2, start)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(got) != 2 || hits.Load() != 2 {
		t.Fatalf("expected 2 listings after 2 hits, got %d listings, %d hits", len(got), hits.Load())
	}

	if _, err := im.Import(context.Background(), "rio", 0, start); !errors.Is(err, ErrCityNotConfigured) {
		t.Fatalf("expected ErrCityNotConfigured, got %v", err)
	}
}

func TestImporterGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	im := NewImporter(srv.Client(), map[string]string{"amsterdam": srv.URL})
	im.backoff = func(int) time.Duration { return time.Millisecond }

	_, err := im.Import(context.Background(), "amsterdam", 0, start)
	var up *UpstreamError
	if !errors.As(err, &up) || up.Status != http.StatusForbidden {
		t.Fatalf("expected UpstreamError 403, got %v", err)
	}
}

func TestLoadListingsFallbacks(t *testing.T) {
	dir := t.TempDir()

	got := LoadListings(filepath.Join(dir, "missing.json"), start)
	if len(got) != 3 || got[0].ID != "SSA-1203" {
		t.Fatalf("expected fallback catalog, got %+v", got)
	}
	if got[0].Calendar[0].Status != model.StatusOccupied || got[0].Calendar[1].Status != model.StatusFree {
		t.Fatalf("fallback calendar should follow the synthetic pattern")
	}

	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte("{not json"), 0o644)
	if got := LoadListings(bad, start); len(got) != 3 {
		t.Fatalf("expected fallback on decode error")
	}

	empty := filepath.Join(dir, "empty.json")
	_ = os.WriteFile(empty, []byte("[]"), 0o644)
	if got := LoadListings(empty, start); len(got) != 3 {
		t.Fatalf("expected fallback on empty file")
	}

	if got := LoadEvents(filepath.Join(dir, "missing.json")); len(got) != 2 || got[0].Title != "Festival de Verão" {
		t.Fatalf("expected fallback events, got %+v", got)
	}
}

func TestReadListingsNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.json")
	data := `[
	  {"id":"A","title":"With calendar30","city":"Salvador","basePrice":200,
	   "calendar30":[{"date":"2025-11-01","status":"ocupado"},{"date":"2025-11-02","status":"livre"}]},
	  {"id":"B","title":"No bounds","city":"Aracaju","basePrice":300},
	  {"title":"missing id","basePrice":100},
	  {"id":"C","basePrice":-5},
	  {"id":"D","city":"Salvador","basePrice":200,"maxPrice":1e20}
	]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadListings(path, start)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 valid listings, got %+v", got)
	}
	if len(got[0].Calendar) != 2 || got[0].Calendar[0].Status != model.StatusOccupied {
		t.Fatalf("supplied calendar not kept: %+v", got[0].Calendar)
	}
	if got[1].MinPrice != model.DefaultMinPrice || got[1].MaxPrice != model.DefaultMaxPrice || len(got[1].Calendar) != 30 {
		t.Fatalf("defaults not applied: %+v", got[1])
	}
}

func TestReadEventsSkipsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	data := `[
	  {"city":"Salvador","title":"ok","start":"2025-11-20","end":"2025-11-23","factor":0.25},
	  {"city":"","title":"no city","start":"2025-11-20","end":"2025-11-23","factor":0.1},
	  {"city":"Aracaju","title":"backwards","start":"2025-11-20","end":"2025-11-19","factor":0.1}
	]`
	_ = os.WriteFile(path, []byte(data), 0o644)
	got, err := ReadEvents(path)
	if err != nil || len(got) != 1 || got[0].Title != "ok" {
		t.Fatalf("unexpected events %+v err=%v", got, err)
	}
}

func TestCatalogFilterAndFacets(t *testing.T) {
	c := NewCatalog(FallbackListings(start), FallbackEvents())

	if got := c.Filter(Filter{}); len(got) != 3 {
		t.Fatalf("empty filter should match all, got %d", len(got))
	}
	if got := c.Filter(Filter{City: "Salvador", Agency: "ImobY"}); len(got) != 1 || got[0].ID != "SSA-4310" {
		t.Fatalf("unexpected filter result %+v", got)
	}
	if got := c.Filter(Filter{City: "salvador"}); len(got) != 0 {
		t.Fatalf("filters are exact matches")
	}

	f := c.Facets()
	if strings.Join(f.Cities, ",") != "Salvador,Aracaju" {
		t.Fatalf("unexpected cities %v", f.Cities)
	}
	if strings.Join(f.Agencies, ",") != "ImobX,ImobY" {
		t.Fatalf("unexpected agencies %v", f.Agencies)
	}

	if _, err := c.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	l, err := c.Get("AJU-2211")
	if err != nil || l.City != "Aracaju" {
		t.Fatalf("get: %+v %v", l, err)
	}

	c.ReplaceListings(nil)
	if f := c.Facets(); len(f.Cities) != 0 || f.Cities == nil {
		t.Fatalf("expected empty non-nil facets, got %#v", f.Cities)
	}
	if len(c.Events()) != 2 {
		t.Fatalf("ReplaceListings must keep events")
	}
}
