package listing

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	appLog "temporada/internal/log"
	"temporada/internal/model"
	"temporada/internal/pricing"
)

// DefaultImportLimit caps the rows taken from one city dump.
const DefaultImportLimit = 24

const fallbackBasePrice = 250

// Inside Airbnb serves 403 to clients that do not look like a browser.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119 Safari/537.36"

// ErrCityNotConfigured is returned for a city without a source URL.
var ErrCityNotConfigured = errors.New("listing: city source not configured")

// UpstreamError is a non-2xx answer from the dataset host.
type UpstreamError struct {
	Status int
	URL    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s returned %d", e.URL, e.Status)
}

// Importer downloads Inside Airbnb "visualisations/listings.csv" dumps and
// maps them onto listings.
type Importer struct {
	client   *http.Client
	sources  map[string]string
	attempts int
	backoff  func(attempt int) time.Duration
}

// NewImporter takes a city -> CSV URL map. Keys are matched
// case-insensitively.
func NewImporter(client *http.Client, sources map[string]string) *Importer {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	normalized := make(map[string]string, len(sources))
	for city, u := range sources {
		normalized[strings.ToLower(city)] = u
	}
	return &Importer{
		client:   client,
		sources:  normalized,
		attempts: 3,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
	}
}

// Import downloads the dump for city and returns up to limit listings with
// calendars starting at start.
func (im *Importer) Import(ctx context.Context, city string, limit int, start model.Date) ([]model.Listing, error) {
	src, ok := im.sources[strings.ToLower(city)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCityNotConfigured, city)
	}

	var body []byte
	err := retryWithBackoff(ctx, im.attempts, im.backoff, func() error {
		b, err := im.download(ctx, src)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	listings, err := ParseInsideAirbnbCSV(bytes.NewReader(body), city, limit, start)
	if err != nil {
		return nil, err
	}
	appLog.Info("inside airbnb import done", "city", city, "count", len(listings))
	return listings, nil
}

func (im *Importer) download(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/csv,application/octet-stream,*/*")

	resp, err := im.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode, URL: src}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return gunzipIfNeeded(body)
}

// gunzipIfNeeded inflates gzip payloads (".csv.gz" dumps) by magic number.
func gunzipIfNeeded(body []byte) ([]byte, error) {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// ParseInsideAirbnbCSV maps a header-first CSV onto listings. city is used
// when a row has no city column; limit <= 0 means DefaultImportLimit.
func ParseInsideAirbnbCSV(r io.Reader, city string, limit int, start model.Date) ([]model.Listing, error) {
	if limit <= 0 {
		limit = DefaultImportLimit
	}

	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}

	out := make([]model.Listing, 0, limit)
	for len(out) < limit {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if blankRecord(rec) {
			continue
		}
		out = append(out, mapRow(row{cols: cols, rec: rec}, city, start))
	}
	return out, nil
}

type row struct {
	cols map[string]int
	rec  []string
}

// pick returns the first non-blank value among keys.
func (r row) pick(fallback string, keys ...string) string {
	for _, k := range keys {
		i, ok := r.cols[k]
		if !ok || i >= len(r.rec) {
			continue
		}
		if v := strings.TrimSpace(r.rec[i]); v != "" {
			return v
		}
	}
	return fallback
}

func mapRow(r row, city string, start model.Date) model.Listing {
	id := r.pick("", "id", "listing_id", "Listing ID", "ID")
	title := "Listing"
	if id != "" {
		title = "Listing " + id
	}

	base := ParsePrice(r.pick("", "price", "Price"))
	if base == 0 {
		base = fallbackBasePrice
	}
	avail, _ := strconv.Atoi(r.pick("0", "availability_30", "Availability 30"))

	agency := "ImobY"
	if n, err := strconv.ParseInt(id, 10, 64); err != nil || n%2 == 0 {
		agency = "ImobX"
	}

	return model.Listing{
		ID:           id,
		Title:        r.pick(title, "name", "Listing Name"),
		Photo:        r.pick("", "picture_url", "Picture URL", "picture_url_https", "Thumbnail URL"),
		City:         r.pick(city, "city", "City"),
		Neighborhood: r.pick("", "neighbourhood_cleansed", "neighbourhood", "Neighbourhood"),
		Type:         r.pick("Apartment", "room_type", "Room Type"),
		Agency:       agency,
		BasePrice:    float64(base),
		MinPrice:     math.Max(120, math.Round(float64(base)*0.6)),
		MaxPrice:     math.Max(600, math.Round(float64(base)*3)),
		Calendar:     pricing.AvailabilityWindow(start, avail),
	}
}

var priceJunk = regexp.MustCompile(`[^0-9.,-]`)

// ParsePrice reads a price such as "$1,250.00", dropping currency symbols
// and thousands separators. Unparseable input yields 0.
func ParsePrice(s string) int {
	cleaned := strings.ReplaceAll(priceJunk.ReplaceAllString(s, ""), ",", "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > model.MaxListingPrice {
		return 0
	}
	return int(math.Round(f))
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// retryWithBackoff runs fn up to attempts times, sleeping backoff(n) before
// attempt n. It stops early when ctx is done.
func retryWithBackoff(ctx context.Context, attempts int, backoff func(int) time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt)
			appLog.Warn("retrying download", "attempt", attempt+1, "of", attempts, "after", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(); err != nil {
			lastErr = err
			appLog.Error("download attempt failed", err, "attempt", attempt+1)
			continue
		}
		return nil
	}
	return fmt.Errorf("all %d attempts failed, last error: %w", attempts, lastErr)
}
