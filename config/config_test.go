package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadSite(t *testing.T) {
	site, err := LoadSite(filepath.Join("testdata", "redfin.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if site.ID != "redfin" || site.Gate != "lenient" {
		t.Fatalf("unexpected site %s gate %s", site.ID, site.Gate)
	}
	if len(site.Relays) != 1 || site.Relays[0].Mode != "raw" {
		t.Fatalf("unexpected relays %+v", site.Relays)
	}
	if len(site.Watch) != 1 {
		t.Fatalf("expected 1 watch url, got %d", len(site.Watch))
	}
}

func TestLoadSite_RejectsUnknownRelayMode(t *testing.T) {
	_, err := LoadSite(filepath.Join("testdata", "bad_relay.yaml"))
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("expected relay mode error, got %v", err)
	}
}

func TestLoadSite_BundledZillow(t *testing.T) {
	site, err := LoadSite(filepath.Join("sites", "zillow.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if site.SlugMarker != "homedetails/" || site.IDPattern != `/(\d+)_zpid` {
		t.Fatalf("unexpected slug/id config %q %q", site.SlugMarker, site.IDPattern)
	}
	if len(site.APIEndpoints) != 3 {
		t.Fatalf("expected 3 api endpoints, got %d", len(site.APIEndpoints))
	}
	if got := site.Patterns["price"]; len(got) != 1 {
		t.Fatalf("expected one extra price pattern, got %v", got)
	}
}

func TestLoad_DefaultsWithoutSiteFiles(t *testing.T) {
	t.Setenv("SITES_DIR", t.TempDir())
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("FETCH_RATE_PER_SEC", "2.5")
	t.Setenv("SCRAPE_INTERVAL", "bogus")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Fetch.Timeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %v", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.RatePerSec != 2.5 {
		t.Fatalf("expected rate 2.5, got %v", cfg.Fetch.RatePerSec)
	}
	if cfg.Scheduler.Interval != 0 {
		t.Fatalf("expected invalid interval to be ignored, got %v", cfg.Scheduler.Interval)
	}
	if ids := cfg.SiteIDs(); len(ids) != 1 || ids[0] != "zillow" {
		t.Fatalf("expected built-in zillow site, got %v", ids)
	}
	if cfg.S3.Enabled() {
		t.Fatalf("expected S3 disabled without bucket")
	}
}

func TestSiteAPIKey(t *testing.T) {
	site := &SiteConfig{ScrapingAPI: ScrapingAPIConfig{KeyEnv: "TEST_SITE_SCRAPER_KEY"}}
	if got := site.APIKey("global"); got != "global" {
		t.Fatalf("expected fallback key, got %q", got)
	}
	t.Setenv("TEST_SITE_SCRAPER_KEY", "per-site")
	if got := site.APIKey("global"); got != "per-site" {
		t.Fatalf("expected per-site key, got %q", got)
	}
}
