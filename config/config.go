package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	DBPath      string
	LogLevel    string
	LogFile     string
	SitesDir    string
	Fetch       FetchConfig
	Scheduler   SchedulerConfig
	Media       MediaConfig
	S3          S3Config
	Sites       map[string]*SiteConfig
}

type FetchConfig struct {
	Timeout       time.Duration
	RetryDelay    time.Duration
	RatePerSec    float64
	MaxBodyBytes  int64
	ProxyURL      string
	ScraperAPIKey string
}

// SchedulerConfig drives watch-list rescrapes. URLs that succeeded less
// than MinAge ago are skipped.
type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
	MinAge   time.Duration
	Workers  int
}

type MediaConfig struct {
	Interval  time.Duration
	BatchSize int
	Workers   int
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether photo mirroring to S3 is configured
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type SiteConfig struct {
	ID           string              `yaml:"id"`
	Name         string              `yaml:"name"`
	Hosts        []string            `yaml:"hosts"`
	PhotoHosts   []string            `yaml:"photo_hosts"`
	Sizing       SizingConfig        `yaml:"sizing"`
	SlugMarker   string              `yaml:"slug_marker"`
	IDPattern    string              `yaml:"id_pattern"`
	Gate         string              `yaml:"gate"`
	RateLimitMS  int                 `yaml:"rate_limit_ms"`
	Relays       []RelayConfig       `yaml:"relays"`
	ScrapingAPI  ScrapingAPIConfig   `yaml:"scraping_api"`
	APIEndpoints []string            `yaml:"api_endpoints"`
	Patterns     map[string][]string `yaml:"patterns"`
	Watch        []string            `yaml:"watch"`
}

type SizingConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Fit    string `yaml:"fit"`
}

// RelayConfig is a public relay the listing URL is passed through.
// Mode "json" expects a JSON envelope whose Field holds the page,
// mode "raw" returns the page as-is.
type RelayConfig struct {
	Name  string `yaml:"name"`
	URL   string `yaml:"url"`
	Mode  string `yaml:"mode"`
	Field string `yaml:"field"`
}

type ScrapingAPIConfig struct {
	Endpoint string `yaml:"endpoint"`
	KeyEnv   string `yaml:"key_env"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBPath:      getEnv("DB_PATH", "scraper.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", "daemon.log"),
		SitesDir:    getEnv("SITES_DIR", "config/sites"),
		Fetch: FetchConfig{
			Timeout:       getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
			RetryDelay:    getEnvDuration("FETCH_RETRY_DELAY", time.Second),
			RatePerSec:    getEnvFloat("FETCH_RATE_PER_SEC", 1),
			MaxBodyBytes:  int64(getEnvInt("FETCH_MAX_BODY_BYTES", 10<<20)),
			ProxyURL:      os.Getenv("HTTP_PROXY_URL"),
			ScraperAPIKey: os.Getenv("SCRAPER_API_KEY"),
		},
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("SCRAPE_CRON"),
			Interval: getEnvDuration("SCRAPE_INTERVAL", 0),
			MinAge:   getEnvDuration("SCRAPE_MIN_AGE", 0),
			Workers:  getEnvInt("SCRAPE_WORKERS", 2),
		},
		Media: MediaConfig{
			Interval:  getEnvDuration("MEDIA_INTERVAL", 30*time.Second),
			BatchSize: getEnvInt("MEDIA_BATCH_SIZE", 20),
			Workers:   getEnvInt("MEDIA_WORKERS", 4),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Sites: make(map[string]*SiteConfig),
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	entries, err := os.ReadDir(c.SitesDir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		site, err := LoadSite(filepath.Join(c.SitesDir, entry.Name()))
		if err != nil {
			return err
		}
		c.Sites[site.ID] = site
	}

	if len(c.Sites) == 0 {
		def := DefaultSite()
		c.Sites[def.ID] = def
	}

	return nil
}

// LoadSite reads and validates one site file
func LoadSite(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var site SiteConfig
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &site, nil
}

func (s *SiteConfig) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("site id is required")
	}
	if len(s.Hosts) == 0 {
		return fmt.Errorf("site %s: at least one host is required", s.ID)
	}
	switch s.Gate {
	case "", "strict", "lenient":
	default:
		return fmt.Errorf("site %s: unknown gate %q", s.ID, s.Gate)
	}
	for _, r := range s.Relays {
		if r.URL == "" {
			return fmt.Errorf("site %s: relay %q has no url", s.ID, r.Name)
		}
		if r.Mode != "json" && r.Mode != "raw" {
			return fmt.Errorf("site %s: relay %q has unknown mode %q", s.ID, r.Name, r.Mode)
		}
	}
	return nil
}

// APIKey resolves the scraping API key, preferring the site's own env var
func (s *SiteConfig) APIKey(fallback string) string {
	if s.ScrapingAPI.KeyEnv != "" {
		if key := os.Getenv(s.ScrapingAPI.KeyEnv); key != "" {
			return key
		}
	}
	return fallback
}

// SiteIDs returns the configured site IDs in a stable order
func (c *Config) SiteIDs() []string {
	ids := make([]string, 0, len(c.Sites))
	for id := range c.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultSite is used when no site files are present
func DefaultSite() *SiteConfig {
	return &SiteConfig{
		ID:         "zillow",
		Name:       "Zillow",
		Hosts:      []string{"zillow.com"},
		PhotoHosts: []string{"photos.zillowstatic.com", "images.zillowstatic.com"},
		Sizing:     SizingConfig{Width: 1024, Height: 768, Fit: "crop"},
		SlugMarker: "homedetails/",
		IDPattern:  `/(\d+)_zpid`,
		Gate:       "strict",
		Relays: []RelayConfig{
			{Name: "allorigins", URL: "https://api.allorigins.win/get?url=", Mode: "json", Field: "contents"},
			{Name: "corsproxy", URL: "https://corsproxy.io/?", Mode: "raw"},
		},
		ScrapingAPI: ScrapingAPIConfig{Endpoint: "https://api.scraperapi.com/", KeyEnv: "SCRAPER_API_KEY"},
		APIEndpoints: []string{
			"https://www.zillow.com/graphql/?zpid={id}",
			"https://www.zillow.com/api/v1/property/{id}",
			"https://www.zillow.com/homedetails/api/{id}",
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
