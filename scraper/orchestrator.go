package scraper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"listing_scrooper/config"
	"listing_scrooper/extractor"
	"listing_scrooper/httputil"
	"listing_scrooper/logging"
	"listing_scrooper/models"
)

var (
	// ErrNoDataExtracted means every strategy was tried without a usable record
	ErrNoDataExtracted = errors.New("no data extracted")
	// ErrUnknownSite means no configured site matches the URL host
	ErrUnknownSite = errors.New("no site configured for url")
)

// RunStore persists run history; *storage.SQLiteStore implements it
type RunStore interface {
	CreateRun(run *models.ScrapeRun) (int64, error)
	UpdateRun(run *models.ScrapeRun) error
	Log(runID *int64, level models.LogLevel, message, siteID string) error
	UpdateSiteStats(siteID string) error
}

// Result is a successful scrape
type Result struct {
	Record   *models.ListingRecord
	SiteID   string
	Strategy string
	Attempts int
}

type Orchestrator struct {
	sites      []*Site
	store      RunStore
	retryDelay time.Duration
}

func NewOrchestrator(cfg *config.Config, clients *httputil.Clients, store RunStore) (*Orchestrator, error) {
	limiter := NewHostLimiter(cfg.Fetch.RatePerSec)

	var sites []*Site
	for _, id := range cfg.SiteIDs() {
		site, err := NewSite(cfg.Sites[id], clients, limiter, cfg.Fetch)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}

	return NewOrchestratorWithSites(sites, store, cfg.Fetch.RetryDelay), nil
}

// NewOrchestratorWithSites is used when the sites are already built. store may be nil.
func NewOrchestratorWithSites(sites []*Site, store RunStore, retryDelay time.Duration) *Orchestrator {
	sorted := append([]*Site(nil), sites...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &Orchestrator{
		sites:      sorted,
		store:      store,
		retryDelay: retryDelay,
	}
}

// SiteFor returns the site whose hosts match the URL
func (o *Orchestrator) SiteFor(listingURL string) (*Site, bool) {
	for _, s := range o.sites {
		if s.Extractor.Profile().MatchesURL(listingURL) {
			return s, true
		}
	}
	return nil, false
}

func (o *Orchestrator) Sites() []*Site {
	return o.sites
}

// Scrape walks the site's strategies in order until one page yields a
// record under the site's gate policy.
func (o *Orchestrator) Scrape(ctx context.Context, listingURL string) (*Result, error) {
	return o.ScrapeWithPolicy(ctx, listingURL, "")
}

// ScrapeWithPolicy is Scrape with an explicit gate policy; "" keeps the site's
func (o *Orchestrator) ScrapeWithPolicy(ctx context.Context, listingURL string, policy extractor.GatePolicy) (*Result, error) {
	if err := extractor.ValidateURL(listingURL); err != nil {
		return nil, err
	}
	site, ok := o.SiteFor(listingURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSite, listingURL)
	}
	if policy == "" {
		policy = site.Extractor.Policy()
	}

	run := &models.ScrapeRun{
		SiteID:    site.ID,
		URL:       listingURL,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	o.startRun(run)
	defer o.finishRun(run)

	o.log(run, models.LogLevelInfo, fmt.Sprintf("Scraping %s (%d strategies)", listingURL, len(site.Fetchers)))

	var lastErr error
	for i, f := range site.Fetchers {
		if i > 0 {
			if err := sleepCtx(ctx, o.retryDelay); err != nil {
				return nil, o.fail(run, err)
			}
		}

		run.Attempts++
		page, err := f.Fetch(ctx, listingURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, o.fail(run, ctx.Err())
			}
			lastErr = err
			o.log(run, models.LogLevelWarn, fmt.Sprintf("%s: %v", f.Name(), err))
			continue
		}

		rec, err := site.Extractor.ExtractWithPolicy(page, policy)
		if err != nil {
			lastErr = err
			o.log(run, models.LogLevelWarn, fmt.Sprintf("%s: extraction failed: %v", f.Name(), err))
			continue
		}

		run.Status = models.RunStatusCompleted
		run.Strategy = f.Name()
		o.log(run, models.LogLevelInfo,
			fmt.Sprintf("%s: extracted %s, %s, %d photos", f.Name(), rec.Address, rec.Price, len(rec.Images)))

		return &Result{Record: rec, SiteID: site.ID, Strategy: f.Name(), Attempts: run.Attempts}, nil
	}

	err := ErrNoDataExtracted
	if lastErr != nil {
		err = fmt.Errorf("%w after %d attempts: %w", ErrNoDataExtracted, run.Attempts, lastErr)
	}
	return nil, o.fail(run, err)
}

// BatchResult is the outcome for one URL of ScrapeMany
type BatchResult struct {
	URL    string
	Result *Result
	Err    error
}

// ScrapeMany scrapes urls with at most workers concurrent scrapes.
// Results are in input order; one failure does not stop the others.
func (o *Orchestrator) ScrapeMany(ctx context.Context, urls []string, workers int) []BatchResult {
	if workers <= 0 {
		workers = 1
	}
	results := make([]BatchResult, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			res, err := o.Scrape(gctx, u)
			results[i] = BatchResult{URL: u, Result: res, Err: err}
			return nil
		})
	}
	g.Wait()

	return results
}

func (o *Orchestrator) startRun(run *models.ScrapeRun) {
	if o.store == nil {
		return
	}
	id, err := o.store.CreateRun(run)
	if err != nil {
		logging.Warnf("failed to create run for %s: %v", run.URL, err)
		return
	}
	run.ID = id
}

func (o *Orchestrator) finishRun(run *models.ScrapeRun) {
	if o.store == nil || run.ID == 0 {
		return
	}
	now := time.Now()
	run.FinishedAt = &now
	if err := o.store.UpdateRun(run); err != nil {
		logging.Warnf("failed to update run %d: %v", run.ID, err)
	}
	if err := o.store.UpdateSiteStats(run.SiteID); err != nil {
		logging.Warnf("failed to update site stats for %s: %v", run.SiteID, err)
	}
}

func (o *Orchestrator) fail(run *models.ScrapeRun, err error) error {
	run.Status = models.RunStatusFailed
	run.ErrorMessage = err.Error()
	o.log(run, models.LogLevelError, err.Error())
	return err
}

func (o *Orchestrator) log(run *models.ScrapeRun, level models.LogLevel, message string) {
	switch level {
	case models.LogLevelDebug:
		logging.Debugf("%s: %s", run.SiteID, message)
	case models.LogLevelWarn:
		logging.Warnf("%s: %s", run.SiteID, message)
	case models.LogLevelError:
		logging.Errorf("%s: %s", run.SiteID, message)
	default:
		logging.Infof("%s: %s", run.SiteID, message)
	}

	if o.store != nil && run.ID != 0 {
		runID := run.ID
		o.store.Log(&runID, level, message, run.SiteID)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
