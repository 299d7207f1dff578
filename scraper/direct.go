package scraper

import (
	"context"
	"net/http"

	"listing_scrooper/models"
)

// DirectFetcher requests the listing page itself with browser-like headers
type DirectFetcher struct {
	getter
}

func NewDirectFetcher(client *http.Client, limiter *HostLimiter, maxBody int64) *DirectFetcher {
	return &DirectFetcher{getter{client: client, limiter: limiter, maxBody: maxBody}}
}

func (f *DirectFetcher) Name() string {
	return "direct"
}

func (f *DirectFetcher) Fetch(ctx context.Context, listingURL string) (models.RawPage, error) {
	html, err := f.get(ctx, f.Name(), listingURL, browserHeaders())
	if err != nil {
		return models.RawPage{}, err
	}
	return models.RawPage{URL: listingURL, HTML: html, Source: f.Name()}, nil
}
