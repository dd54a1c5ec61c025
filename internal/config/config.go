package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"meetcal/internal/dates"
	"meetcal/internal/ics"
)

// NOTE: YAML config with first-run creation and 0600 permissions. Values
// from a .env file or MEETCAL_* variables override the file.

// TimezoneConfig is the single fixed-offset organizational zone.
type TimezoneConfig struct {
	// ID is the TZID written to calendars, e.g. "Asia/Kolkata".
	ID string `yaml:"id" json:"id"`
	// Name is the abbreviation, e.g. "IST".
	Name string `yaml:"name" json:"name"`
	// Offset is "+hh:mm" or "+hhmm".
	Offset string `yaml:"offset" json:"offset"`
}

// OrganizerConfig identifies who sends the invitations.
type OrganizerConfig struct {
	Name  string `yaml:"name" json:"name"`
	Email string `yaml:"email" json:"email"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address used with -serve.
	Listen string `yaml:"listen" json:"listen"`

	Timezone  TimezoneConfig  `yaml:"timezone" json:"timezone"`
	Organizer OrganizerConfig `yaml:"organizer" json:"organizer"`

	// ProductID is the PRODID of generated calendars.
	ProductID string `yaml:"product_id" json:"product_id"`

	// DefaultYear is used for dates written without a year. Zero means the
	// current year at run time.
	DefaultYear int `yaml:"default_year" json:"default_year"`

	// DefaultStartHour applies to meetings whose notes carry no time of day.
	DefaultStartHour int `yaml:"default_start_hour" json:"default_start_hour"`

	// DefaultDurationMinutes is the length of a meeting event.
	DefaultDurationMinutes int `yaml:"default_duration_minutes" json:"default_duration_minutes"`

	// OutputDir receives generated .ics files.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// CacheDir holds downloaded calendars inspected by URL. Empty disables
	// the cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone: TimezoneConfig{
			ID:     ics.DefaultZone.ID,
			Name:   ics.DefaultZone.Name,
			Offset: "+05:30",
		},
		Organizer: OrganizerConfig{
			Name:  ics.DefaultOrganizerName,
			Email: ics.DefaultOrganizerEmail,
		},
		Listen:                 "127.0.0.1:8080",
		ProductID:              ics.DefaultProductID,
		DefaultStartHour:       ics.DefaultStartHour,
		DefaultDurationMinutes: int(ics.DefaultDuration / time.Minute),
		OutputDir:              "output",
		CacheDir:               ".meetcal-cache",
		LogLevel:               "info",
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone.ID == "" {
		c.Timezone.ID = def.Timezone.ID
	}
	if c.Timezone.Name == "" {
		c.Timezone.Name = def.Timezone.Name
	}
	if c.Timezone.Offset == "" {
		c.Timezone.Offset = def.Timezone.Offset
	}
	if c.Organizer.Name == "" {
		c.Organizer.Name = def.Organizer.Name
	}
	if c.Organizer.Email == "" {
		c.Organizer.Email = def.Organizer.Email
	}
	if c.ProductID == "" {
		c.ProductID = def.ProductID
	}
	if c.DefaultYear < 0 {
		c.DefaultYear = 0
	}
	if c.DefaultStartHour <= 0 || c.DefaultStartHour > 23 {
		c.DefaultStartHour = def.DefaultStartHour
	}
	if c.DefaultDurationMinutes <= 0 {
		c.DefaultDurationMinutes = def.DefaultDurationMinutes
	}
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = def.LogLevel
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directory created as needed) and returned.
//   - Otherwise the YAML is read and defaults are normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
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

	tmp, err := os.CreateTemp(dir, ".meetcal-config-*.tmp")
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

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// ApplyEnv loads envFile (a missing file is ignored) into the process
// environment and applies any MEETCAL_* variables on top of c. Variables
// already set in the environment win over the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("MEETCAL_TIMEZONE", &c.Timezone.ID)
	str("MEETCAL_TIMEZONE_NAME", &c.Timezone.Name)
	str("MEETCAL_TIMEZONE_OFFSET", &c.Timezone.Offset)
	str("MEETCAL_ORGANIZER_NAME", &c.Organizer.Name)
	str("MEETCAL_ORGANIZER_EMAIL", &c.Organizer.Email)
	str("MEETCAL_PRODUCT_ID", &c.ProductID)
	str("MEETCAL_OUTPUT_DIR", &c.OutputDir)
	str("MEETCAL_CACHE_DIR", &c.CacheDir)
	str("MEETCAL_LOG_LEVEL", &c.LogLevel)
	str("MEETCAL_LISTEN", &c.Listen)
	if u, p := os.Getenv("MEETCAL_BASIC_AUTH_USER"), os.Getenv("MEETCAL_BASIC_AUTH_PASSWORD"); u != "" && p != "" {
		c.BasicAuth = &BasicAuthConfig{Username: u, Password: p}
	}
	for key, dst := range map[string]*int{
		"MEETCAL_DEFAULT_YEAR":     &c.DefaultYear,
		"MEETCAL_START_HOUR":       &c.DefaultStartHour,
		"MEETCAL_DURATION_MINUTES": &c.DefaultDurationMinutes,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	c.Normalize()
	return nil
}

// ParseOffset reads "+05:30", "+0530", "-05", "Z" or "UTC".
func ParseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "Z", "UTC", "+00:00", "-00:00":
		return 0, nil
	}
	if len(s) < 3 || (s[0] != '+' && s[0] != '-') {
		return 0, fmt.Errorf("invalid UTC offset %q", s)
	}
	sign := time.Duration(1)
	if s[0] == '-' {
		sign = -1
	}
	digits := strings.ReplaceAll(s[1:], ":", "")
	if len(digits) != 2 && len(digits) != 4 {
		return 0, fmt.Errorf("invalid UTC offset %q", s)
	}
	hours, err := strconv.Atoi(digits[:2])
	if err != nil {
		return 0, fmt.Errorf("invalid UTC offset %q", s)
	}
	minutes := 0
	if len(digits) == 4 {
		if minutes, err = strconv.Atoi(digits[2:]); err != nil {
			return 0, fmt.Errorf("invalid UTC offset %q", s)
		}
	}
	if hours > 14 || minutes > 59 {
		return 0, fmt.Errorf("invalid UTC offset %q", s)
	}
	return sign * (time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute), nil
}

// Zone returns the configured organizational zone.
func (t TimezoneConfig) Zone() (ics.Zone, error) {
	off, err := ParseOffset(t.Offset)
	if err != nil {
		return ics.Zone{}, err
	}
	return ics.Zone{ID: t.ID, Name: t.Name, Offset: off}, nil
}

// Location returns the fixed-offset location of the zone.
func (t TimezoneConfig) Location() (*time.Location, error) {
	z, err := t.Zone()
	if err != nil {
		return nil, err
	}
	return z.Location(), nil
}

// EncoderConfig builds the calendar encoder settings.
func (c *Config) EncoderConfig() (ics.Config, error) {
	z, err := c.Timezone.Zone()
	if err != nil {
		return ics.Config{}, err
	}
	return ics.Config{
		ProductID:      c.ProductID,
		Zone:           z,
		OrganizerName:  c.Organizer.Name,
		OrganizerEmail: c.Organizer.Email,
	}, nil
}

// ResolverOptions builds the date resolver settings; dates resolve in the
// organizational zone.
func (c *Config) ResolverOptions() (dates.Options, error) {
	loc, err := c.Timezone.Location()
	if err != nil {
		return dates.Options{}, err
	}
	return dates.Options{DefaultYear: c.DefaultYear, Location: loc}, nil
}

// MeetingOptions returns the defaults for turning notes into an event.
func (c *Config) MeetingOptions() ics.MeetingOptions {
	return ics.MeetingOptions{
		Duration:  time.Duration(c.DefaultDurationMinutes) * time.Minute,
		StartHour: c.DefaultStartHour,
	}
}
