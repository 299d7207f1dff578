package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"listing_scrooper/extractor"
	"listing_scrooper/models"
)

var (
	errNoListingID = errors.New("no listing id in url")
	errNoAPIData   = errors.New("no endpoint returned listing data")
)

// IDAPIFetcher parses the site listing ID out of the URL and asks the
// site's JSON endpoints for it. A body is accepted when its top level
// has a "property" or "data" key; the JSON text is handed to the
// extractor as the page.
type IDAPIFetcher struct {
	getter
	profile   extractor.Profile
	endpoints []string
}

func NewIDAPIFetcher(profile extractor.Profile, endpoints []string, client *http.Client, limiter *HostLimiter, maxBody int64) *IDAPIFetcher {
	return &IDAPIFetcher{
		getter:    getter{client: client, limiter: limiter, maxBody: maxBody},
		profile:   profile,
		endpoints: endpoints,
	}
}

func (f *IDAPIFetcher) Name() string {
	return "id_api"
}

func (f *IDAPIFetcher) Fetch(ctx context.Context, listingURL string) (models.RawPage, error) {
	id := f.profile.ListingID(listingURL)
	if id == "" {
		return models.RawPage{}, &FetchError{Strategy: f.Name(), URL: listingURL, Err: errNoListingID}
	}

	headers := browserHeaders()
	headers["Accept"] = "application/json"

	var lastErr error = &FetchError{Strategy: f.Name(), URL: listingURL, Err: errNoAPIData}
	for _, tpl := range f.endpoints {
		endpoint := strings.ReplaceAll(tpl, "{id}", id)

		body, err := f.get(ctx, f.Name(), endpoint, headers)
		if err != nil {
			if ctx.Err() != nil {
				return models.RawPage{}, err
			}
			lastErr = err
			continue
		}
		if !hasListingData(body) {
			lastErr = &FetchError{Strategy: f.Name(), URL: endpoint, Err: errNoAPIData}
			continue
		}
		return models.RawPage{URL: listingURL, HTML: body, Source: f.Name()}, nil
	}
	return models.RawPage{}, lastErr
}

func hasListingData(body string) bool {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &top); err != nil {
		return false
	}
	for _, key := range []string{"property", "data"} {
		if v, ok := top[key]; ok && string(v) != "null" {
			return true
		}
	}
	return false
}
