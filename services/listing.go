package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"listing_scrooper/extractor"
	"listing_scrooper/identity"
	"listing_scrooper/logging"
	"listing_scrooper/models"
	"listing_scrooper/scraper"
)

// ListingStore is what ListingService persists records into;
// *storage.PostgresStore implements it.
type ListingStore interface {
	UpsertListing(ctx context.Context, l *models.StoredListing) (bool, error)
	SyncScrapedPhotos(ctx context.Context, listingID uuid.UUID, urls []string) (models.PhotoSync, error)
	GetListingByFingerprint(ctx context.Context, fingerprint string) (*models.StoredListing, error)
	GetListingPhotos(ctx context.Context, listingID uuid.UUID) ([]models.ListingPhoto, error)
}

// ErrNoStore is returned by lookups when no ListingStore is configured
var ErrNoStore = errors.New("listing storage not configured")

// ListingService scrapes listings and, when a store is configured, saves
// them with their photos.
type ListingService struct {
	orch  *scraper.Orchestrator
	store ListingStore
	now   func() time.Time
}

// NewListingService creates a ListingService. store may be nil, in which
// case records are only returned.
func NewListingService(orch *scraper.Orchestrator, store ListingStore) *ListingService {
	return &ListingService{orch: orch, store: store, now: time.Now}
}

// ScrapeResult is one scraped and optionally persisted listing
type ScrapeResult struct {
	Record      *models.ListingRecord
	SiteID      string
	Strategy    string
	Fingerprint string
	ListingID   uuid.UUID
	IsNew       bool
	Persisted   bool
	Photos      models.PhotoSync
}

func (s *ListingService) Scrape(ctx context.Context, listingURL string) (*ScrapeResult, error) {
	return s.ScrapeWithPolicy(ctx, listingURL, "")
}

// ScrapeWithPolicy scrapes under policy ("" keeps the site's) and saves
// the record. A storage failure is logged and does not fail the scrape.
func (s *ListingService) ScrapeWithPolicy(ctx context.Context, listingURL string, policy extractor.GatePolicy) (*ScrapeResult, error) {
	res, err := s.orch.ScrapeWithPolicy(ctx, listingURL, policy)
	if err != nil {
		return nil, err
	}
	out := s.result(listingURL, res)
	if err := s.persist(ctx, out); err != nil {
		logging.Warnf("listing %s: save failed: %v", listingURL, err)
	}
	return out, nil
}

// ScrapeRecord satisfies the HTTP handler's scraper interface
func (s *ListingService) ScrapeRecord(ctx context.Context, listingURL string, policy extractor.GatePolicy) (*models.ListingRecord, error) {
	res, err := s.ScrapeWithPolicy(ctx, listingURL, policy)
	if err != nil {
		return nil, err
	}
	return res.Record, nil
}

// BatchStats aggregates the outcome of ScrapeMany
type BatchStats struct {
	Total       int
	Scraped     int
	Failed      int
	NewListings int
	PhotosAdded int
}

func (st *BatchStats) Aggregate(r *ScrapeResult, err error) {
	st.Total++
	if err != nil {
		st.Failed++
		return
	}
	st.Scraped++
	if r.IsNew {
		st.NewListings++
	}
	st.PhotosAdded += r.Photos.Added
}

// ScrapeMany scrapes urls concurrently and saves each success. Failures
// are logged per URL and never stop the batch.
func (s *ListingService) ScrapeMany(ctx context.Context, urls []string, workers int) BatchStats {
	var stats BatchStats
	for _, br := range s.orch.ScrapeMany(ctx, urls, workers) {
		if br.Err != nil {
			logging.Warnf("listing %s: %v", br.URL, br.Err)
			stats.Aggregate(nil, br.Err)
			continue
		}
		out := s.result(br.URL, br.Result)
		if err := s.persist(ctx, out); err != nil {
			logging.Warnf("listing %s: save failed: %v", br.URL, err)
		}
		stats.Aggregate(out, nil)
	}
	return stats
}

// WatchURLs lists every site's watch URLs in site order
func (s *ListingService) WatchURLs() []string {
	var urls []string
	for _, site := range s.orch.Sites() {
		if site.Config == nil {
			continue
		}
		urls = append(urls, site.Config.Watch...)
	}
	return urls
}

func (s *ListingService) result(listingURL string, res *scraper.Result) *ScrapeResult {
	var siteListingID string
	if site, ok := s.orch.SiteFor(listingURL); ok {
		siteListingID = site.Extractor.Profile().ListingID(listingURL)
	}
	return &ScrapeResult{
		Record:      res.Record,
		SiteID:      res.SiteID,
		Strategy:    res.Strategy,
		Fingerprint: identity.Fingerprint(res.SiteID, siteListingID, res.Record),
	}
}

func (s *ListingService) persist(ctx context.Context, out *ScrapeResult) error {
	if s.store == nil {
		return nil
	}

	stored, err := s.storedListing(out)
	if err != nil {
		return err
	}
	isNew, err := s.store.UpsertListing(ctx, stored)
	if err != nil {
		return fmt.Errorf("upsert listing: %w", err)
	}
	out.ListingID = stored.ID
	out.IsNew = isNew
	out.Persisted = true

	photos, err := s.store.SyncScrapedPhotos(ctx, stored.ID, out.Record.Images)
	if err != nil {
		return fmt.Errorf("save photos: %w", err)
	}
	out.Photos = photos

	logging.Infof("listing %s: saved %s (new=%v, photos +%d =%d -%d)",
		out.Record.ListingURL, stored.ID, isNew, photos.Added, photos.Kept, photos.Removed)
	return nil
}

// ListingDetails is a stored listing with its photo rows
type ListingDetails struct {
	Listing *models.StoredListing `json:"listing"`
	Photos  []models.ListingPhoto `json:"photos"`
}

// Listing looks up a saved listing by fingerprint. It returns nil, nil when
// the fingerprint is unknown.
func (s *ListingService) Listing(ctx context.Context, fingerprint string) (*ListingDetails, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	l, err := s.store.GetListingByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if l == nil {
		return nil, nil
	}
	photos, err := s.store.GetListingPhotos(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("get photos: %w", err)
	}
	if photos == nil {
		photos = []models.ListingPhoto{}
	}
	return &ListingDetails{Listing: l, Photos: photos}, nil
}

func (s *ListingService) storedListing(out *ScrapeResult) (*models.StoredListing, error) {
	rec := out.Record
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	now := s.now()
	l := &models.StoredListing{
		ID:          uuid.New(),
		Fingerprint: out.Fingerprint,
		SiteID:      out.SiteID,
		URL:         rec.ListingURL,
		Address:     rec.Address,
		Price:       priceValue(rec),
		Bedrooms:    intPtr(rec.Bedrooms),
		Bathrooms:   float64Ptr(rec.Bathrooms),
		SquareFeet:  intPtr(rec.SquareFeet),
		YearBuilt:   intPtr(rec.YearBuilt),
		Data:        data,
		ScrapedAt:   rec.ScrapedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return l, nil
}

// priceValue reads the dollar amount back out of the formatted price
func priceValue(rec *models.ListingRecord) *int64 {
	if !rec.HasPrice() {
		return nil
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, rec.Price)
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func intPtr(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func float64Ptr(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}
