package httputil

import (
	"crypto/tls"
	"errors"
	"net/http"
	"net/url"
	"time"

	"listing_scrooper/config"
)

const maxRedirects = 5

type Clients struct {
	Scraping *http.Client // optionally proxied, for listing pages
	API      *http.Client // direct, for relays and scraping APIs
	Media    *http.Client // photo downloads
}

func NewClients(fetchCfg config.FetchConfig) (*Clients, error) {
	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
		MaxIdleConns:      20,
		IdleConnTimeout:   90 * time.Second,
	}
	if fetchCfg.ProxyURL != "" {
		proxyURL, err := url.Parse(fetchCfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	timeout := fetchCfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	scraping := &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("too many redirects")
			}
			return nil
		},
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 2 * timeout},
		Media:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}
