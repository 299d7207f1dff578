package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"listing_scrooper/extractor"
	"listing_scrooper/models"
	"listing_scrooper/scraper"
	"listing_scrooper/services"
)

type fakeScraper struct {
	rec        *models.ListingRecord
	err        error
	gotURL     string
	gotPolicy  extractor.GatePolicy
	hasTimeout bool
	listings   map[string]*services.ListingDetails
	lookupErr  error
}

func (f *fakeScraper) ScrapeRecord(ctx context.Context, listingURL string, policy extractor.GatePolicy) (*models.ListingRecord, error) {
	f.gotURL = listingURL
	f.gotPolicy = policy
	_, f.hasTimeout = ctx.Deadline()
	return f.rec, f.err
}

func (f *fakeScraper) Listing(ctx context.Context, fingerprint string) (*services.ListingDetails, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.listings[fingerprint], nil
}

func testRecord() *models.ListingRecord {
	return &models.ListingRecord{
		Address:    "123 Oak St Austin Tx 78701",
		Price:      "$450,000",
		Bedrooms:   3,
		Bathrooms:  2.5,
		Features:   []string{"3 bedrooms"},
		Images:     []string{},
		ListingURL: "https://www.zillow.com/homedetails/123-Oak-St-Austin-TX-78701/1_zpid/",
		ScrapedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func assertCORS(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected CORS origin *, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Fatalf("unexpected CORS methods %q", got)
	}
}

func TestScrapeListing_Success(t *testing.T) {
	fs := &fakeScraper{rec: testRecord()}
	srv := NewServer(fs, 30*time.Second)

	for _, path := range []string{"/scrape-listing", "/api/scrape-listing"} {
		rr := do(t, srv, http.MethodPost, path, `{"url":" https://www.zillow.com/homedetails/123-Oak-St-Austin-TX-78701/1_zpid/ "}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, rr.Code, rr.Body.String())
		}
		assertCORS(t, rr)

		var resp struct {
			Success bool                 `json:"success"`
			Data    models.ListingRecord `json:"data"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if !resp.Success || resp.Data.Price != "$450,000" || resp.Data.Bathrooms != 2.5 {
			t.Fatalf("unexpected response %+v", resp)
		}
	}
	if fs.gotURL != "https://www.zillow.com/homedetails/123-Oak-St-Austin-TX-78701/1_zpid/" {
		t.Fatalf("expected trimmed url, got %q", fs.gotURL)
	}
	if fs.gotPolicy != "" || !fs.hasTimeout {
		t.Fatalf("expected site policy and a deadline, got %q %v", fs.gotPolicy, fs.hasTimeout)
	}
}

func TestScrapeListing_LenientFlag(t *testing.T) {
	fs := &fakeScraper{rec: testRecord()}
	srv := NewServer(fs, 0)

	rr := do(t, srv, http.MethodPost, "/scrape-listing", `{"url":"https://www.zillow.com/x","lenient":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if fs.gotPolicy != extractor.GateLenient {
		t.Fatalf("expected lenient policy, got %q", fs.gotPolicy)
	}
}

func TestScrapeListing_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		err       error
		wantCode  int
		wantError string
	}{
		{"missing url", `{}`, nil, http.StatusBadRequest, "Missing URL"},
		{"blank url", `{"url":"   "}`, nil, http.StatusBadRequest, "Missing URL"},
		{"invalid json", `{"url":`, nil, http.StatusBadRequest, "Invalid JSON body"},
		{"malformed url", `{"url":"ftp://x"}`, fmt.Errorf("%w: not an absolute http url", extractor.ErrMalformedInput), http.StatusBadRequest, "Invalid URL"},
		{"unknown site", `{"url":"https://example.org/1"}`, fmt.Errorf("%w: https://example.org/1", scraper.ErrUnknownSite), http.StatusBadRequest, "Unsupported listing site"},
		{"no data", `{"url":"https://www.zillow.com/x"}`, fmt.Errorf("%w after 3 attempts: %w", scraper.ErrNoDataExtracted, errors.New("status 403")), http.StatusUnprocessableEntity, "Failed to scrape listing"},
		{"internal", `{"url":"https://www.zillow.com/x"}`, errors.New("boom"), http.StatusInternalServerError, "Internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&fakeScraper{err: tt.err}, 0)
			rr := do(t, srv, http.MethodPost, "/scrape-listing", tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rr.Code, rr.Body.String())
			}
			assertCORS(t, rr)

			var resp errorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Error != tt.wantError {
				t.Fatalf("expected error %q, got %q", tt.wantError, resp.Error)
			}
			if tt.wantCode == http.StatusUnprocessableEntity && !strings.Contains(resp.Details, "status 403") {
				t.Fatalf("expected details to carry the cause, got %q", resp.Details)
			}
		})
	}
}

func TestPreflightAndHealth(t *testing.T) {
	srv := NewServer(&fakeScraper{}, 0)

	rr := do(t, srv, http.MethodOptions, "/api/scrape-listing", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 preflight, got %d", rr.Code)
	}
	assertCORS(t, rr)
	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
		t.Fatalf("unexpected CORS headers %q", got)
	}

	rr = do(t, srv, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/scrape-listing", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	assertCORS(t, rr)
}

func TestGetListing(t *testing.T) {
	id := uuid.New()
	fs := &fakeScraper{listings: map[string]*services.ListingDetails{
		"abc123": {
			Listing: &models.StoredListing{ID: id, Fingerprint: "abc123", SiteID: "zillow"},
			Photos:  []models.ListingPhoto{{ID: uuid.New(), ListingID: id, URL: "https://photos.zillowstatic.com/fp/a.jpg", IsPrimary: true}},
		},
	}}
	srv := NewServer(fs, 0)

	for _, path := range []string{"/listings/abc123", "/api/listings/abc123"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, rr.Code, rr.Body.String())
		}
		assertCORS(t, rr)

		var resp struct {
			Listing models.StoredListing  `json:"listing"`
			Photos  []models.ListingPhoto `json:"photos"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Listing.ID != id || len(resp.Photos) != 1 || !resp.Photos[0].IsPrimary {
			t.Fatalf("unexpected listing response %s", rr.Body.String())
		}
	}
}

func TestGetListing_Errors(t *testing.T) {
	cases := []struct {
		name   string
		fs     *fakeScraper
		status int
		msg    string
	}{
		{"not found", &fakeScraper{}, http.StatusNotFound, "Listing not found"},
		{"no storage", &fakeScraper{lookupErr: services.ErrNoStore}, http.StatusServiceUnavailable, "Listing storage not configured"},
		{"store failure", &fakeScraper{lookupErr: errors.New("connection refused")}, http.StatusInternalServerError, "Internal error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, NewServer(tc.fs, 0), http.MethodGet, "/listings/missing", "")
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			assertCORS(t, rr)
			var resp errorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || resp.Error != tc.msg {
				t.Fatalf("expected error %q, got %s", tc.msg, rr.Body.String())
			}
		})
	}
}
