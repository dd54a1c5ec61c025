package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meetcal/internal/ics"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "meetcal.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Timezone.ID != "Asia/Kolkata" || cfg.Organizer.Email != ics.DefaultOrganizerEmail {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meetcal.yaml")
	body := "organizer:\n  email: pm@example.com\ndefault_start_hour: 30\nlog_level: DEBUG\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Organizer.Email != "pm@example.com" || cfg.Organizer.Name != ics.DefaultOrganizerName {
		t.Fatalf("organizer = %+v", cfg.Organizer)
	}
	if cfg.DefaultStartHour != ics.DefaultStartHour {
		t.Fatalf("start hour = %d, want default", cfg.DefaultStartHour)
	}
	if cfg.LogLevel != "debug" || cfg.DefaultDurationMinutes != 60 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meetcal.yaml")
	cfg := DefaultConfig()
	cfg.ProductID = "-//Example//Notes//EN"
	cfg.DefaultYear = 2027
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.ProductID != cfg.ProductID || got.DefaultYear != 2027 {
		t.Fatalf("round trip = %+v", got)
	}
	if err := Save("", cfg); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MEETCAL_ORGANIZER_NAME", "Ops Team")
	t.Setenv("MEETCAL_DURATION_MINUTES", "45")

	envFile := filepath.Join(t.TempDir(), ".env")
	body := "MEETCAL_ORGANIZER_NAME=From File\nMEETCAL_TIMEZONE_OFFSET=-05:00\nMEETCAL_TIMEZONE_NAME=EST\n"
	if err := os.WriteFile(envFile, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("MEETCAL_TIMEZONE_OFFSET")
		os.Unsetenv("MEETCAL_TIMEZONE_NAME")
	})

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(envFile); err != nil {
		t.Fatalf("ApplyEnv returned error: %v", err)
	}
	if cfg.Organizer.Name != "Ops Team" {
		t.Fatalf("organizer name = %q, environment should win over file", cfg.Organizer.Name)
	}
	if cfg.Timezone.Offset != "-05:00" || cfg.Timezone.Name != "EST" {
		t.Fatalf("timezone = %+v", cfg.Timezone)
	}
	if cfg.DefaultDurationMinutes != 45 {
		t.Fatalf("duration = %d, want 45", cfg.DefaultDurationMinutes)
	}
}

func TestApplyEnvMissingFileAndBadNumber(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
	t.Setenv("MEETCAL_DEFAULT_YEAR", "soon")
	err := cfg.ApplyEnv("")
	if err == nil || !strings.Contains(err.Error(), "MEETCAL_DEFAULT_YEAR") {
		t.Fatalf("err = %v, want MEETCAL_DEFAULT_YEAR error", err)
	}
}

func TestParseOffset(t *testing.T) {
	cases := map[string]time.Duration{
		"+05:30": 5*time.Hour + 30*time.Minute,
		"+0530":  5*time.Hour + 30*time.Minute,
		"-05":    -5 * time.Hour,
		"-03:30": -(3*time.Hour + 30*time.Minute),
		"Z":      0,
		"utc":    0,
	}
	for in, want := range cases {
		got, err := ParseOffset(in)
		if err != nil {
			t.Fatalf("ParseOffset(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseOffset(%q) = %v, want %v", in, got, want)
		}
	}
	for _, bad := range []string{"", "0530", "+5:3", "+15:00", "+05:75", "+ab:cd"} {
		if _, err := ParseOffset(bad); err == nil {
			t.Fatalf("ParseOffset(%q) succeeded, want error", bad)
		}
	}
}

func TestBuilders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultYear = 2026
	enc, err := cfg.EncoderConfig()
	if err != nil {
		t.Fatal(err)
	}
	if enc.Zone != ics.DefaultZone || enc.ProductID != ics.DefaultProductID {
		t.Fatalf("encoder config = %+v", enc)
	}

	opts, err := cfg.ResolverOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.DefaultYear != 2026 {
		t.Fatalf("default year = %d", opts.DefaultYear)
	}
	if _, off := time.Date(2026, 1, 1, 0, 0, 0, 0, opts.Location).Zone(); off != 19800 {
		t.Fatalf("offset = %d, want 19800", off)
	}

	mo := cfg.MeetingOptions()
	if mo.Duration != time.Hour || mo.StartHour != 9 {
		t.Fatalf("meeting options = %+v", mo)
	}

	cfg.Timezone.Offset = "bogus"
	if _, err := cfg.EncoderConfig(); err == nil {
		t.Fatalf("expected error for bad offset")
	}
}
