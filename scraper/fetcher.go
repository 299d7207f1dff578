package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/net/html/charset"

	"listing_scrooper/models"
)

const defaultMaxBodyBytes = 10 << 20 // 10 MiB

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	browserAccept    = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	browserLanguage  = "en-US,en;q=0.5"
)

// Fetcher is one way of getting a listing page
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, listingURL string) (models.RawPage, error)
}

var errBodyTooLarge = errors.New("response body too large")

// FetchError is a network or upstream failure of a single strategy
type FetchError struct {
	Strategy   string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s fetch %s: status %d: %v", e.Strategy, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s fetch %s: %v", e.Strategy, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// getter performs rate limited GETs and decodes bodies to UTF-8
type getter struct {
	client  *http.Client
	limiter *HostLimiter
	maxBody int64
}

func (g getter) get(ctx context.Context, strategy, target string, headers map[string]string) (string, error) {
	fail := func(status int, err error) error {
		return &FetchError{Strategy: strategy, URL: target, StatusCode: status, Err: err}
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, target); err != nil {
			return "", fail(0, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fail(0, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fail(resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := readBody(resp, g.maxBody)
	if err != nil {
		return "", fail(resp.StatusCode, err)
	}
	return body, nil
}

// readBody reads at most maxBytes and converts the declared or sniffed charset to UTF-8
func readBody(resp *http.Response, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(raw)) > maxBytes {
		return "", fmt.Errorf("%w: over %d bytes", errBodyTooLarge, maxBytes)
	}

	r, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		// unknown charset, keep the bytes as they are
		return string(raw), nil
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func browserHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      browserUserAgent,
		"Accept":          browserAccept,
		"Accept-Language": browserLanguage,
	}
}
