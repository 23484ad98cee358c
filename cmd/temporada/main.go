package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"temporada/internal/capture"
	"temporada/internal/config"
	"temporada/internal/holiday"
	"temporada/internal/ics"
	"temporada/internal/lead"
	"temporada/internal/listing"
	appLog "temporada/internal/log"
	"temporada/internal/metrics"
	"temporada/internal/model"
	"temporada/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	snapshot   bool
}

func main() {
	appLog.Info("temporada starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"holiday_calendar", conf.Holidays.CalendarID,
		"holiday_source", holidaySourceName(conf),
		"listings", conf.Data.ListingsPath,
		"city", conf.Data.City,
		"lead_store", leadStoreName(conf),
		"snapshot_cron", conf.Snapshot.Cron,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	loc := loadLocation(conf.Timezone)
	m := metrics.New()

	catalog, importer := loadCatalog(ctx, conf, loc)

	holidays := holiday.NewService(newHolidaySource(conf, loc), holiday.Query{
		CalendarID: conf.Holidays.CalendarID,
		Days:       conf.Holidays.Days,
		Boost:      conf.Holidays.Boost,
	}, m)

	store, closeStore, err := openLeadStore(ctx, conf)
	if err != nil {
		appLog.Error("failed to open lead store", err)
		os.Exit(1)
	}
	defer closeStore()

	srv := web.NewServer(web.Deps{
		Config:   conf,
		Catalog:  catalog,
		Holidays: holidays,
		Leads:    lead.NewService(store, conf.Leads.DefaultCity, m),
		Importer: importer,
		Metrics:  m,
	})

	if flags.snapshot {
		code := runSnapshotOnce(ctx, conf, srv)
		closeStore()
		os.Exit(code)
	}

	go func() {
		if err := holidays.Refresh(ctx); err != nil {
			appLog.Error("initial holiday refresh failed; pricing without holidays until next refresh", err)
		}
	}()

	scheduler := cron.New()
	if conf.Holidays.RefreshCron != "" {
		if _, err := scheduler.AddFunc(conf.Holidays.RefreshCron, func() {
			if err := holidays.Refresh(ctx); err != nil {
				appLog.Error("scheduled holiday refresh failed", err)
			}
		}); err != nil {
			appLog.Error("invalid holiday refresh schedule", err, "cron", conf.Holidays.RefreshCron)
		}
	}
	if conf.Snapshot.Cron != "" {
		if _, err := scheduler.AddFunc(conf.Snapshot.Cron, func() {
			if err := captureSnapshot(ctx, conf); err != nil {
				appLog.Error("scheduled snapshot failed", err)
			}
		}); err != nil {
			appLog.Error("invalid snapshot schedule", err, "cron", conf.Snapshot.Cron)
		}
	}
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	if err := srv.StartServer(ctx); err != nil {
		appLog.Error("http server failed", err)
		cancel()
	}
	appLog.Info("temporada exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./temporada.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.snapshot, "snapshot", false, "Serve the dashboard, capture one snapshot and exit")

	flag.Parse()

	return cfg
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", name)
		return time.UTC
	}
	return loc
}

// loadCatalog reads listings from the configured city dump or JSON file,
// with the built-in demo data as the last resort.
func loadCatalog(ctx context.Context, conf *config.Config, loc *time.Location) (*listing.Catalog, *listing.Importer) {
	start := model.DateOf(time.Now().In(loc))
	events := listing.LoadEvents(conf.Data.EventsPath)

	var importer *listing.Importer
	if len(conf.Data.CitySources) > 0 {
		importer = listing.NewImporter(nil, conf.Data.CitySources)
	}

	if conf.Data.City != "" && importer != nil {
		importCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		listings, err := importer.Import(importCtx, conf.Data.City, conf.Data.Limit, start)
		if err == nil && len(listings) > 0 {
			return listing.NewCatalog(listings, events), importer
		}
		appLog.Error("city import failed; loading listings file", err, "city", conf.Data.City)
	}

	return listing.NewCatalog(listing.LoadListings(conf.Data.ListingsPath, start), events), importer
}

func holidaySourceName(conf *config.Config) string {
	if conf.Holidays.APIKey != "" {
		return "google_api"
	}
	return "ics"
}

func newHolidaySource(conf *config.Config, loc *time.Location) holiday.Source {
	if conf.Holidays.APIKey != "" {
		return holiday.NewGoogleAPISource(nil, conf.Holidays.APIKey, "")
	}
	return holiday.NewICSSource(ics.NewFetcher(conf.Holidays.CacheDir, nil), conf.Holidays.ICSURL, loc)
}

func leadStoreName(conf *config.Config) string {
	if conf.Leads.DatabaseURL != "" {
		return "postgres"
	}
	return "memory"
}

func openLeadStore(ctx context.Context, conf *config.Config) (lead.Store, func(), error) {
	if conf.Leads.DatabaseURL == "" {
		appLog.Warn("DATABASE_URL not set; leads are kept in memory only")
		return lead.NewMemoryStore(), func() {}, nil
	}
	dbCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	pg, err := lead.OpenPostgres(dbCtx, conf.Leads.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

// localBaseURL is the address chromedp uses to reach our own server.
func localBaseURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func captureSnapshot(ctx context.Context, conf *config.Config) error {
	start := time.Now()
	err := capture.CaptureDashboardPNG(ctx, capture.Options{
		BaseURL:    localBaseURL(conf.Listen),
		ListingID:  conf.Snapshot.ListingID,
		OutputPath: conf.Snapshot.OutputPath,
		Width:      conf.Snapshot.Width,
		Height:     conf.Snapshot.Height,
	})
	if err != nil {
		return err
	}
	appLog.Info("dashboard snapshot written", "path", conf.Snapshot.OutputPath, "elapsed", time.Since(start).String())
	return nil
}

// runSnapshotOnce serves the dashboard just long enough to capture it.
func runSnapshotOnce(ctx context.Context, conf *config.Config, srv *web.Server) int {
	srvCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- srv.StartServer(srvCtx) }()

	// Give the listener a moment to bind.
	time.Sleep(300 * time.Millisecond)

	code := 0
	if err := captureSnapshot(ctx, conf); err != nil {
		appLog.Error("snapshot failed", err)
		code = 1
	}
	stop()
	if err := <-done; err != nil {
		appLog.Error("http server failed", err)
		code = 1
	}
	return code
}
