package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"listing_scrooper/config"
	"listing_scrooper/extractor"
	"listing_scrooper/models"
	"listing_scrooper/scraper"
)

const oakStreetURL = "https://www.zillow.com/homedetails/123-Oak-St-Austin-TX-78701/1_zpid/"

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "scraper", "testdata", name))
	if err != nil {
		t.Fatalf("failed to load fixture %s: %v", name, err)
	}
	return string(data)
}

type pageFetcher struct {
	html string
	err  error
}

func (f pageFetcher) Name() string { return "direct" }

func (f pageFetcher) Fetch(ctx context.Context, listingURL string) (models.RawPage, error) {
	if f.err != nil {
		return models.RawPage{}, f.err
	}
	return models.RawPage{URL: listingURL, HTML: f.html, Source: "direct"}, nil
}

type fakeListingStore struct {
	mu       sync.Mutex
	listings map[string]*models.StoredListing
	photos   map[uuid.UUID][]models.ListingPhoto
	failWith error
}

func newFakeListingStore() *fakeListingStore {
	return &fakeListingStore{
		listings: make(map[string]*models.StoredListing),
		photos:   make(map[uuid.UUID][]models.ListingPhoto),
	}
}

func (s *fakeListingStore) UpsertListing(ctx context.Context, l *models.StoredListing) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}
	if existing, ok := s.listings[l.Fingerprint]; ok {
		l.ID = existing.ID
		s.listings[l.Fingerprint] = l
		return false, nil
	}
	s.listings[l.Fingerprint] = l
	return true, nil
}

func (s *fakeListingStore) SyncScrapedPhotos(ctx context.Context, listingID uuid.UUID, urls []string) (models.PhotoSync, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var photoSync models.PhotoSync
	existing := make(map[string]models.ListingPhoto)
	for _, p := range s.photos[listingID] {
		existing[p.URL] = p
	}
	var next []models.ListingPhoto
	for i, u := range urls {
		p, ok := existing[u]
		if ok {
			photoSync.Kept++
			delete(existing, u)
		} else {
			photoSync.Added++
			p = models.ListingPhoto{ID: uuid.New(), ListingID: listingID, URL: u, IsScraped: true, MirrorStatus: models.MirrorStatusPending}
		}
		p.IsPrimary = i == 0
		p.DisplayOrder = i
		next = append(next, p)
	}
	for _, p := range existing {
		if p.IsScraped {
			photoSync.Removed++
		} else {
			next = append(next, p)
		}
	}
	s.photos[listingID] = next
	return photoSync, nil
}

func (s *fakeListingStore) GetListingByFingerprint(ctx context.Context, fingerprint string) (*models.StoredListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.listings[fingerprint], nil
}

func (s *fakeListingStore) GetListingPhotos(ctx context.Context, listingID uuid.UUID) ([]models.ListingPhoto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ListingPhoto(nil), s.photos[listingID]...), nil
}

func newTestService(t *testing.T, store ListingStore, f scraper.Fetcher, watch ...string) *ListingService {
	t.Helper()
	ex := extractor.New(extractor.ZillowProfile(), extractor.GateStrict,
		extractor.WithClock(func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }))
	site := &scraper.Site{
		ID:        "zillow",
		Config:    &config.SiteConfig{ID: "zillow", Watch: watch},
		Extractor: ex,
		Fetchers:  []scraper.Fetcher{f},
	}
	return NewListingService(scraper.NewOrchestratorWithSites([]*scraper.Site{site}, nil, 0), store)
}

func TestListingService_ScrapeAndSave(t *testing.T) {
	store := newFakeListingStore()
	svc := newTestService(t, store, pageFetcher{html: loadFixture(t, "listing.html")})

	res, err := svc.Scrape(context.Background(), oakStreetURL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	if !res.Persisted || !res.IsNew || res.ListingID == uuid.Nil {
		t.Fatalf("expected new persisted listing, got %+v", res)
	}
	if res.Photos.Added != len(res.Record.Images) || res.Photos.Added == 0 {
		t.Fatalf("expected %d photos added, got %+v", len(res.Record.Images), res.Photos)
	}

	stored := store.listings[res.Fingerprint]
	if stored == nil {
		t.Fatalf("expected listing stored under fingerprint %s", res.Fingerprint)
	}
	if stored.Price == nil || *stored.Price != 450000 {
		t.Fatalf("expected numeric price 450000, got %v", stored.Price)
	}
	if stored.Bedrooms == nil || *stored.Bedrooms != 3 || stored.SiteID != "zillow" {
		t.Fatalf("unexpected stored listing %+v", stored)
	}
	if photos := store.photos[res.ListingID]; photos[0].URL != res.Record.Images[0] || !photos[0].IsPrimary {
		t.Fatalf("expected first image to lead the photo list")
	}

	// same listing again is an update
	again, err := svc.Scrape(context.Background(), oakStreetURL)
	if err != nil {
		t.Fatalf("rescrape failed: %v", err)
	}
	if again.IsNew || again.ListingID != res.ListingID || again.Fingerprint != res.Fingerprint {
		t.Fatalf("expected update of %s, got %+v", res.ListingID, again)
	}
}

func TestListingService_RescrapeKeepsMirroredPhotos(t *testing.T) {
	store := newFakeListingStore()
	html := loadFixture(t, "listing.html")
	svc := newTestService(t, store, pageFetcher{html: html})

	res, err := svc.Scrape(context.Background(), oakStreetURL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}

	// the media worker has mirrored everything
	key := "listings/mirrored.jpg"
	mirrored := make(map[string]models.ListingPhoto)
	for i := range store.photos[res.ListingID] {
		p := &store.photos[res.ListingID][i]
		p.MirrorStatus = models.MirrorStatusUploaded
		p.S3Key = &key
		mirrored[p.URL] = *p
	}

	again, err := svc.Scrape(context.Background(), oakStreetURL)
	if err != nil {
		t.Fatalf("rescrape failed: %v", err)
	}
	if again.Photos.Added != 0 || again.Photos.Removed != 0 || again.Photos.Kept != len(mirrored) {
		t.Fatalf("expected every photo kept, got %+v", again.Photos)
	}
	for _, p := range store.photos[res.ListingID] {
		before, ok := mirrored[p.URL]
		if !ok {
			t.Fatalf("unexpected photo %s after rescrape", p.URL)
		}
		if p.ID != before.ID || p.MirrorStatus != models.MirrorStatusUploaded || p.S3Key == nil || *p.S3Key != key {
			t.Fatalf("expected mirror state kept for %s, got %+v", p.URL, p)
		}
	}

	// a photo dropped from the page goes away, the rest stay mirrored
	dropped := "https://photos.zillowstatic.com/fp/3c4e5f6a7-cc_ft_768.webp"
	trimmed := newTestService(t, store, pageFetcher{html: strings.ReplaceAll(html, dropped, "")})
	third, err := trimmed.Scrape(context.Background(), oakStreetURL)
	if err != nil {
		t.Fatalf("third scrape failed: %v", err)
	}
	if third.Photos.Removed != 1 || third.Photos.Added != 0 {
		t.Fatalf("expected one photo removed, got %+v", third.Photos)
	}
	for _, p := range store.photos[res.ListingID] {
		if strings.HasPrefix(p.URL, dropped) {
			t.Fatalf("expected %s removed", dropped)
		}
		if p.MirrorStatus != models.MirrorStatusUploaded {
			t.Fatalf("expected %s still mirrored", p.URL)
		}
	}
}

func TestListingService_Listing(t *testing.T) {
	store := newFakeListingStore()
	svc := newTestService(t, store, pageFetcher{html: loadFixture(t, "listing.html")})

	res, err := svc.Scrape(context.Background(), oakStreetURL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}

	details, err := svc.Listing(context.Background(), res.Fingerprint)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if details == nil || details.Listing.ID != res.ListingID {
		t.Fatalf("expected listing %s, got %+v", res.ListingID, details)
	}
	if len(details.Photos) != len(res.Record.Images) {
		t.Fatalf("expected %d photos, got %d", len(res.Record.Images), len(details.Photos))
	}

	missing, err := svc.Listing(context.Background(), "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown fingerprint, got %+v, %v", missing, err)
	}

	noStore := newTestService(t, nil, pageFetcher{})
	if _, err := noStore.Listing(context.Background(), res.Fingerprint); !errors.Is(err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestListingService_WithoutStore(t *testing.T) {
	svc := newTestService(t, nil, pageFetcher{html: loadFixture(t, "listing.html")})

	rec, err := svc.ScrapeRecord(context.Background(), oakStreetURL, "")
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	if rec.Price != "$450,000" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestListingService_StoreFailureKeepsRecord(t *testing.T) {
	store := newFakeListingStore()
	store.failWith = errors.New("connection refused")
	svc := newTestService(t, store, pageFetcher{html: loadFixture(t, "listing.html")})

	res, err := svc.Scrape(context.Background(), oakStreetURL)
	if err != nil {
		t.Fatalf("expected scrape to succeed despite store error, got %v", err)
	}
	if res.Persisted || res.Record == nil {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestListingService_ScrapeMany(t *testing.T) {
	store := newFakeListingStore()
	watch := []string{
		oakStreetURL,
		"https://www.redfin.com/TX/Austin/1-Main-St/home/1",
		"https://www.zillow.com/homedetails/9-Pine-Rd-Austin-TX-78702/2_zpid/",
	}
	svc := newTestService(t, store, pageFetcher{html: loadFixture(t, "listing.html")}, watch...)

	if got := svc.WatchURLs(); len(got) != 3 {
		t.Fatalf("expected 3 watch urls, got %v", got)
	}

	stats := svc.ScrapeMany(context.Background(), svc.WatchURLs(), 2)
	if stats.Total != 3 || stats.Scraped != 2 || stats.Failed != 1 || stats.NewListings != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(store.listings) != 2 {
		t.Fatalf("expected 2 stored listings, got %d", len(store.listings))
	}
}

func TestPriceValue(t *testing.T) {
	if v := priceValue(&models.ListingRecord{Price: "$1,250,000"}); v == nil || *v != 1250000 {
		t.Fatalf("unexpected price value %v", v)
	}
	if v := priceValue(&models.ListingRecord{Price: models.PriceUnknown}); v != nil {
		t.Fatalf("expected nil for unknown price, got %d", *v)
	}
}
