package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Holiday defaults mirror the public holiday lookup contract.
const (
	DefaultHolidayCalendarID = "pt-br.brazilian#holiday@group.v.calendar.google.com"
	DefaultHolidayDays       = 180
	DefaultHolidayBoost      = 0.2
)

// HolidaysConfig configures the holiday lookup.
type HolidaysConfig struct {
	// CalendarID is a Google public calendar identifier.
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`
	// ICSURL overrides the public ICS feed derived from CalendarID.
	ICSURL string `yaml:"ics_url,omitempty" json:"ics_url,omitempty"`
	// APIKey switches the lookup to the Calendar v3 API. Usually set through
	// GOOGLE_API_KEY rather than the file.
	APIKey string `yaml:"api_key,omitempty" json:"-"`
	// Days is the lookahead window.
	Days int `yaml:"days" json:"days"`
	// Boost is the additive bump attached to every fetched holiday. 0 turns
	// the holiday uplift off; leaving it out uses the default.
	Boost *float64 `yaml:"boost" json:"boost"`
	// RefreshCron schedules background refresh of the cached holiday list.
	RefreshCron string `yaml:"refresh" json:"refresh"`
	// CacheDir stores ICS bodies and their ETag/Last-Modified metadata.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// DataConfig points at listing and event sources.
type DataConfig struct {
	// ListingsPath is a JSON array of listings. Empty means built-in demo data.
	ListingsPath string `yaml:"listings" json:"listings"`
	// EventsPath is a JSON array of curated city events.
	EventsPath string `yaml:"events" json:"events"`
	// CitySources maps a city key to an Inside Airbnb listings.csv(.gz) URL.
	CitySources map[string]string `yaml:"city_sources" json:"city_sources"`
	// City selects an entry of CitySources to load at startup instead of
	// ListingsPath.
	City string `yaml:"city,omitempty" json:"city,omitempty"`
	// Limit caps the number of CSV rows mapped to listings.
	Limit int `yaml:"limit" json:"limit"`
}

// LeadsConfig selects the lead store.
type LeadsConfig struct {
	// DatabaseURL enables the Postgres store; empty keeps leads in memory.
	DatabaseURL string `yaml:"database_url,omitempty" json:"-"`
	// DefaultCity is used when a lead omits its city.
	DefaultCity string `yaml:"default_city" json:"default_city"`
}

// SnapshotConfig controls the headless dashboard capture.
type SnapshotConfig struct {
	// Cron schedules captures; empty disables them.
	Cron string `yaml:"cron,omitempty" json:"cron,omitempty"`
	// ListingID is the dashboard captured. Empty means the first listing.
	ListingID string `yaml:"listing_id,omitempty" json:"listing_id,omitempty"`
	// OutputPath is served as /preview.png.
	OutputPath string `yaml:"output" json:"output"`
	Width      int    `yaml:"width" json:"width"`
	Height     int    `yaml:"height" json:"height"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone decides which calendar day "today" is.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Holidays HolidaysConfig `yaml:"holidays" json:"holidays"`
	Data     DataConfig     `yaml:"data" json:"data"`
	Leads    LeadsConfig    `yaml:"leads" json:"leads"`
	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// envOverrides are secrets and deployment knobs that usually live outside
// the YAML file.
type envOverrides struct {
	Listen       string `env:"TEMPORADA_LISTEN"`
	LogLevel     string `env:"TEMPORADA_LOG_LEVEL"`
	GoogleAPIKey string `env:"GOOGLE_API_KEY"`
	DatabaseURL  string `env:"DATABASE_URL"`
	City         string `env:"TEMPORADA_CITY"`
}

func boostOf(v float64) *float64 {
	return &v
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8080",
		Timezone: "America/Sao_Paulo",
		LogLevel: "info",
		Holidays: HolidaysConfig{
			CalendarID:  DefaultHolidayCalendarID,
			Days:        DefaultHolidayDays,
			Boost:       boostOf(DefaultHolidayBoost),
			RefreshCron: "0 */6 * * *",
			CacheDir:    "./var/ics-cache",
		},
		Data: DataConfig{
			CitySources: map[string]string{
				"amsterdam": "https://data.insideairbnb.com/the-netherlands/north-holland/amsterdam/2023-06-05/visualisations/listings.csv",
			},
			Limit: 24,
		},
		Leads: LeadsConfig{
			DefaultCity: "Aracaju",
		},
		Snapshot: SnapshotConfig{
			OutputPath: "./var/preview.png",
			Width:      1280,
			Height:     1600,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}

	h := &c.Holidays
	if h.CalendarID == "" {
		h.CalendarID = def.Holidays.CalendarID
	}
	if h.Days <= 0 {
		h.Days = def.Holidays.Days
	}
	if h.Boost == nil || *h.Boost < 0 {
		h.Boost = def.Holidays.Boost
	}
	if h.RefreshCron == "" {
		h.RefreshCron = def.Holidays.RefreshCron
	}
	if h.CacheDir == "" {
		h.CacheDir = def.Holidays.CacheDir
	}

	if c.Data.CitySources == nil {
		c.Data.CitySources = def.Data.CitySources
	}
	if c.Data.Limit <= 0 {
		c.Data.Limit = def.Data.Limit
	}
	if c.Leads.DefaultCity == "" {
		c.Leads.DefaultCity = def.Leads.DefaultCity
	}

	s := &c.Snapshot
	if s.OutputPath == "" {
		s.OutputPath = def.Snapshot.OutputPath
	}
	if s.Width <= 0 {
		s.Width = def.Snapshot.Width
	}
	if s.Height <= 0 {
		s.Height = def.Snapshot.Height
	}
}

// Load loads configuration from the given YAML path, then applies
// environment overrides (a .env file in the working directory is honored).
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - If the file exists, it is unmarshaled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := loadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	// A missing .env is the normal case in production.
	_ = godotenv.Load()

	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if o.Listen != "" {
		cfg.Listen = o.Listen
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.GoogleAPIKey != "" {
		cfg.Holidays.APIKey = o.GoogleAPIKey
	}
	if o.DatabaseURL != "" {
		cfg.Leads.DatabaseURL = o.DatabaseURL
	}
	if o.City != "" {
		cfg.Data.City = o.City
	}
	return nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) when needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".temporada-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
