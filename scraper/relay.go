package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"listing_scrooper/config"
	"listing_scrooper/models"
)

var errEmptyRelay = errors.New("relay returned no page content")

// RelayFetcher passes the listing URL through a public relay. JSON relays
// wrap the page in an envelope field, raw relays return it unchanged.
type RelayFetcher struct {
	getter
	relay config.RelayConfig
}

func NewRelayFetcher(relay config.RelayConfig, client *http.Client, limiter *HostLimiter, maxBody int64) *RelayFetcher {
	if relay.Field == "" {
		relay.Field = "contents"
	}
	return &RelayFetcher{
		getter: getter{client: client, limiter: limiter, maxBody: maxBody},
		relay:  relay,
	}
}

func (f *RelayFetcher) Name() string {
	if f.relay.Name == "" {
		return "relay"
	}
	return "relay:" + f.relay.Name
}

func (f *RelayFetcher) Fetch(ctx context.Context, listingURL string) (models.RawPage, error) {
	target := f.relay.URL + url.QueryEscape(listingURL)

	body, err := f.get(ctx, f.Name(), target, browserHeaders())
	if err != nil {
		return models.RawPage{}, err
	}

	html := body
	if f.relay.Mode == "json" {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal([]byte(body), &envelope); err != nil {
			return models.RawPage{}, &FetchError{Strategy: f.Name(), URL: target, Err: fmt.Errorf("decode relay envelope: %w", err)}
		}
		html = ""
		if raw, ok := envelope[f.relay.Field]; ok {
			// null leaves html empty
			if err := json.Unmarshal(raw, &html); err != nil {
				return models.RawPage{}, &FetchError{Strategy: f.Name(), URL: target, Err: fmt.Errorf("decode relay %s: %w", f.relay.Field, err)}
			}
		}
	}

	if html == "" {
		return models.RawPage{}, &FetchError{Strategy: f.Name(), URL: target, Err: errEmptyRelay}
	}
	return models.RawPage{URL: listingURL, HTML: html, Source: f.Name()}, nil
}
