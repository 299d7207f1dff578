package scraper

import (
	"fmt"
	"regexp"
	"time"

	"listing_scrooper/config"
	"listing_scrooper/extractor"
	"listing_scrooper/httputil"
)

// Site bundles what the orchestrator needs for one configured site
type Site struct {
	ID        string
	Config    *config.SiteConfig
	Extractor *extractor.Extractor
	Fetchers  []Fetcher
}

// BuildProfile turns a site file into an extractor profile
func BuildProfile(site *config.SiteConfig) (extractor.Profile, error) {
	p := extractor.Profile{
		ID:         site.ID,
		Name:       site.Name,
		Hosts:      site.Hosts,
		PhotoHosts: site.PhotoHosts,
		Sizing: extractor.Sizing{
			Width:  site.Sizing.Width,
			Height: site.Sizing.Height,
			Fit:    site.Sizing.Fit,
		},
		SlugMarker: site.SlugMarker,
	}

	if site.IDPattern != "" {
		re, err := regexp.Compile(site.IDPattern)
		if err != nil {
			return p, fmt.Errorf("site %s: id_pattern: %w", site.ID, err)
		}
		p.IDPattern = re
	}

	if len(site.Patterns) > 0 {
		p.ExtraPatterns = make(map[string][]*regexp.Regexp, len(site.Patterns))
		for field, patterns := range site.Patterns {
			for _, pat := range patterns {
				re, err := regexp.Compile(pat)
				if err != nil {
					return p, fmt.Errorf("site %s: pattern for %s: %w", site.ID, field, err)
				}
				p.ExtraPatterns[field] = append(p.ExtraPatterns[field], re)
			}
		}
	}

	return p, nil
}

// NewSite wires the extractor and the ordered fetch strategies for a site:
// direct, each relay, the scraping API when a key is set, the ID API
// when the site has endpoints and an ID pattern.
func NewSite(site *config.SiteConfig, clients *httputil.Clients, limiter *HostLimiter, fetchCfg config.FetchConfig) (*Site, error) {
	profile, err := BuildProfile(site)
	if err != nil {
		return nil, err
	}
	policy, err := extractor.ParseGatePolicy(site.Gate)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", site.ID, err)
	}

	if site.RateLimitMS > 0 {
		for _, h := range site.Hosts {
			limiter.SetInterval(h, time.Duration(site.RateLimitMS)*time.Millisecond)
		}
	}

	maxBody := fetchCfg.MaxBodyBytes
	fetchers := []Fetcher{NewDirectFetcher(clients.Scraping, limiter, maxBody)}
	for _, relay := range site.Relays {
		fetchers = append(fetchers, NewRelayFetcher(relay, clients.API, limiter, maxBody))
	}
	if key := site.APIKey(fetchCfg.ScraperAPIKey); key != "" && site.ScrapingAPI.Endpoint != "" {
		fetchers = append(fetchers, NewScrapingAPIFetcher(site.ScrapingAPI.Endpoint, key, clients.API, limiter, maxBody))
	}
	if profile.IDPattern != nil && len(site.APIEndpoints) > 0 {
		fetchers = append(fetchers, NewIDAPIFetcher(profile, site.APIEndpoints, clients.API, limiter, maxBody))
	}

	return &Site{
		ID:        site.ID,
		Config:    site,
		Extractor: extractor.New(profile, policy),
		Fetchers:  fetchers,
	}, nil
}
