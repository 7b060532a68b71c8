package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Address() != ":8080" {
		t.Errorf("Address() = %q, want :8080", cfg.Address())
	}
	if cfg.ShopName != "Warung" {
		t.Errorf("ShopName = %q, want Warung", cfg.ShopName)
	}
	if cfg.LookupBaseURL != "https://world.openfoodfacts.org/api/v0" {
		t.Errorf("LookupBaseURL = %q", cfg.LookupBaseURL)
	}
	if cfg.SummaryTTL() != 20*time.Second {
		t.Errorf("SummaryTTL() = %v, want 20s", cfg.SummaryTTL())
	}
	if cfg.AccessTokenTTL() != 480*time.Minute {
		t.Errorf("AccessTokenTTL() = %v, want 8h", cfg.AccessTokenTTL())
	}
	if !cfg.Development {
		t.Error("Development should default to true")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("APP_ENV", "production")
	t.Setenv("SUMMARY_TTL_SECONDS", "5")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "60")
	t.Setenv("REPORT_TIMEZONE", "Asia/Jakarta")

	cfg := Load()

	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000", cfg.Port)
	}
	if cfg.Development {
		t.Error("Development should be false in production")
	}
	if cfg.SummaryTTL() != 5*time.Second {
		t.Errorf("SummaryTTL() = %v, want 5s", cfg.SummaryTTL())
	}
	if cfg.AccessTokenTTL() != time.Hour {
		t.Errorf("AccessTokenTTL() = %v, want 1h", cfg.AccessTokenTTL())
	}
	if cfg.ReportLocation().String() != "Asia/Jakarta" {
		t.Errorf("ReportLocation() = %v, want Asia/Jakarta", cfg.ReportLocation())
	}
}

func TestLoadBadNumbersFallBack(t *testing.T) {
	t.Setenv("SUMMARY_TTL_SECONDS", "nope")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-3")
	t.Setenv("REPORT_TIMEZONE", "Not/AZone")

	cfg := Load()

	if cfg.SummaryTTLSeconds != 20 {
		t.Errorf("SummaryTTLSeconds = %d, want 20", cfg.SummaryTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Errorf("AccessTokenTTLMinutes = %d, want 480", cfg.AccessTokenTTLMinutes)
	}
	if cfg.ReportLocation() != time.UTC {
		t.Errorf("ReportLocation() = %v, want UTC", cfg.ReportLocation())
	}
}
