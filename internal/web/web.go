package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"temporada/internal/config"
	"temporada/internal/holiday"
	appLog "temporada/internal/log"
	"temporada/internal/lead"
	"temporada/internal/listing"
	"temporada/internal/metrics"
	"temporada/internal/model"
	"temporada/internal/pricing"
	"temporada/internal/report"
)

// Server provides the pricing, holiday and lead HTTP APIs plus the embedded
// dashboard.
type Server struct {
	cfg      *config.Config
	mux      *http.ServeMux
	catalog  *listing.Catalog
	holidays *holiday.Service
	leads    *lead.Service
	importer *listing.Importer
	metrics  *metrics.Metrics
	loc      *time.Location
	now      func() time.Time
}

// Deps are the collaborators a Server needs. Importer and Metrics may be
// nil.
type Deps struct {
	Config   *config.Config
	Catalog  *listing.Catalog
	Holidays *holiday.Service
	Leads    *lead.Service
	Importer *listing.Importer
	Metrics  *metrics.Metrics
}

// embeddedStatic contains the owner dashboard (plain HTML + JS).
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server.
func NewServer(d Deps) *Server {
	cfg := d.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		catalog:  d.Catalog,
		holidays: d.Holidays,
		leads:    d.Leads,
		importer: d.Importer,
		metrics:  d.Metrics,
		loc:      resolveLocationOrLocal(cfg.Timezone),
		now:      time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return corsMiddleware(h)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Temporada", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// corsMiddleware lets the dashboard be embedded by other origins and answers
// preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.handle("GET /api/listings", s.handleListings)
	s.handle("POST /api/listings/import", s.handleImport)
	s.handle("GET /api/listings/{id}/pricing", s.handlePricing)
	s.handle("GET /api/listings/{id}/export.xlsx", s.handleExportXLSX)
	s.handle("GET /api/listings/{id}/export.pdf", s.handleExportPDF)
	s.handle("/api/holidays", s.handleHolidays)
	s.handle("GET /api/events", s.handleEvents)
	s.handle("/api/leads", s.handleLeads)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)

	// All other paths fall back to the embedded dashboard.
	s.mux.Handle("/", s.staticFileServer())
}

// handle registers h and records its latency under the pattern.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h(w, r)
		s.metrics.ObserveRequest(pattern, start)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// today is the current instant in the configured timezone.
func (s *Server) today() time.Time {
	return s.now().In(s.loc)
}

type listingsResponse struct {
	Items  []pricing.Card `json:"items"`
	Facets listing.Facets `json:"facets"`
}

// handleListings returns catalog cards for the filtered listings.
//
// GET /api/listings?city=&neighborhood=&type=&agency=&start=&end=
//   - start/end: optional stay dates (YYYY-MM-DD); both are needed for a
//     stay quote. Unparseable dates are ignored.
func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := listing.Filter{
		City:         q.Get("city"),
		Neighborhood: q.Get("neighborhood"),
		Type:         q.Get("type"),
		Agency:       q.Get("agency"),
	}
	start := parseDateParam(q.Get("start"))
	end := parseDateParam(q.Get("end"))

	now := s.today()
	events := s.catalog.Events()
	matched := s.catalog.Filter(f)
	cards := make([]pricing.Card, 0, len(matched))
	for _, l := range matched {
		cards = append(cards, pricing.BuildCard(l, events, start, end, now))
	}
	s.metrics.PricingRun("catalog")

	writeJSON(w, http.StatusOK, listingsResponse{Items: cards, Facets: s.catalog.Facets()})
}

// handleImport replaces the catalog listings with an Inside Airbnb dump.
//
// POST /api/listings/import?city=amsterdam&limit=24
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		writeError(w, http.StatusServiceUnavailable, "IMPORT_DISABLED", "no city sources configured")
		return
	}
	q := r.URL.Query()
	city := q.Get("city")
	if city == "" {
		city = s.cfg.Data.City
	}
	limit := parseIntDefault(q.Get("limit"), s.cfg.Data.Limit)

	listings, err := s.importer.Import(r.Context(), city, limit, model.DateOf(s.today()))
	var upstream *listing.UpstreamError
	switch {
	case errors.Is(err, listing.ErrCityNotConfigured):
		writeError(w, http.StatusBadRequest, "CITY_NOT_CONFIGURED", fmt.Sprintf("no Inside Airbnb source configured for %q", city))
		return
	case errors.As(err, &upstream):
		appLog.Error("inside airbnb upstream error", err, "city", city)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "UPSTREAM_ERROR", "status": upstream.Status, "src": upstream.URL})
		return
	case err != nil:
		appLog.Error("inside airbnb import failed", err, "city", city)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", err.Error())
		return
	}

	s.catalog.ReplaceListings(listings)
	writeJSON(w, http.StatusOK, listings)
}

type pricingResponse struct {
	Listing model.Listing `json:"listing"`
	pricing.Dashboard
}

// dashboard resolves the listing and prices its calendar for the request's
// base parameter.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) (model.Listing, pricing.Dashboard, bool) {
	id := r.PathValue("id")
	l, err := s.catalog.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("listing %q not found", id))
		return model.Listing{}, pricing.Dashboard{}, false
	}

	base := parseBaseParam(r.URL.Query(), l.BasePrice)
	var holidays []model.Holiday
	if s.holidays != nil {
		holidays = s.holidays.Holidays(r.Context(), holiday.Query{})
	}
	d := pricing.BuildDashboard(l, base, s.catalog.Events(), holidays, s.today())
	s.metrics.PricingRun("dashboard")
	return l, d, true
}

// handlePricing returns the priced 30-day calendar of one listing.
//
// GET /api/listings/{id}/pricing?base=260
//   - base: owner-adjusted base price. Absent means the listing's own base;
//     a non-numeric value prices from 0 (the floor applies).
func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	l, d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, pricingResponse{Listing: l, Dashboard: d})
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "xlsx", report.ContentTypeXLSX, report.BuildXLSX)
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "pdf", report.ContentTypePDF, report.BuildPDF)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request, ext, contentType string, build func(report.Statement) ([]byte, error)) {
	l, d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	b, err := build(report.Statement{Listing: l, Dashboard: d, GeneratedAt: s.today()})
	if err != nil {
		appLog.Error("export failed", err, "listing", l.ID, "format", ext)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "failed to build export")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="precos-%s.%s"`, l.ID, ext))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

type holidaysResponse struct {
	Items []model.Holiday `json:"items"`
}

// handleHolidays looks up holidays for an arbitrary calendar.
//
// GET /api/holidays?calendarId=&days=180&boost=0.2
func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "")
		return
	}
	if s.holidays == nil {
		writeError(w, http.StatusServiceUnavailable, "CONFIG", "holiday lookup is not configured")
		return
	}

	q := r.URL.Query()
	hq := holiday.Query{
		CalendarID: q.Get("calendarId"),
		Days:       parseIntDefault(q.Get("days"), 0),
	}
	if q.Has("boost") {
		if b, err := strconv.ParseFloat(q.Get("boost"), 64); err == nil && !math.IsNaN(b) && !math.IsInf(b, 0) {
			hq.Boost = model.BoostOf(b)
		}
	}

	items, err := s.holidays.Lookup(r.Context(), hq)
	if err != nil {
		var apiErr *holiday.APIError
		if errors.As(err, &apiErr) {
			writeJSON(w, apiErr.Status, map[string]any{"error": "GOOGLE_ERROR", "status": apiErr.Status, "message": apiErr.Body})
			return
		}
		appLog.Error("holiday lookup failed", err, "calendar_id", hq.CalendarID)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, holidaysResponse{Items: items})
}

// handleEvents lists the curated city events, optionally for one city.
//
// GET /api/events?city=Salvador
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	events := s.catalog.Events()
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if city == "" || e.City == city {
			out = append(out, e)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// handleLeads stores an owner contact request.
//
// POST /api/leads {name, email, phone, city, propertyTitle, source}
//   - 201 CREATED for a new contact, 200 DUPLICATE when the email or phone
//     is already known, 400 INVALID_INPUT otherwise.
func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "")
		return
	}
	if s.leads == nil {
		writeError(w, http.StatusServiceUnavailable, "CONFIG", "lead capture is not configured")
		return
	}

	var in lead.Input
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "failed to read body")
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &in); err != nil {
			appLog.Warn("lead body is not valid JSON", "err", err)
			in = lead.Input{}
		}
	}

	res, err := s.leads.Submit(r.Context(), in)
	if err != nil {
		var verr *lead.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", verr.Message)
			return
		}
		appLog.Error("lead submit failed", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "failed to store lead")
		return
	}

	status := http.StatusOK
	if res.Status == lead.StatusCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// staticFileServer returns an http.Handler that serves the embedded
// dashboard from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// /api/* never falls through to the HTML UI.
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

// handlePreview serves the last dashboard snapshot from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.Snapshot.OutputPath)
}

// StartServer runs the HTTP server until ctx is canceled, then shuts it down
// gracefully.
func (s *Server) StartServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	appLog.Info("HTTP server stopped")
	return nil
}

// parseBaseParam reads ?base=. Absent means fallback; present but
// non-numeric means 0.
func parseBaseParam(q map[string][]string, fallback float64) float64 {
	vals, ok := q["base"]
	if !ok || len(vals) == 0 {
		return fallback
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseDateParam(s string) *model.Date {
	if s == "" {
		return nil
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}
