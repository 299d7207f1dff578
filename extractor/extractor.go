package extractor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"listing_scrooper/logging"
	"listing_scrooper/models"
)

// ErrMalformedInput is returned for empty HTML or an unusable listing URL
var ErrMalformedInput = errors.New("malformed input")

// Extractor turns fetched listing pages into records. It holds no
// mutable state and is safe for concurrent use.
type Extractor struct {
	profile    Profile
	policy     GatePolicy
	now        func() time.Time
	specs      fieldSpecs
	photos     photoScanner
	normalizer Normalizer
}

type Option func(*Extractor)

// WithClock overrides the clock used for scrapedAt
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

func New(profile Profile, policy GatePolicy, opts ...Option) *Extractor {
	if policy == "" {
		policy = GateStrict
	}
	e := &Extractor{
		profile:    profile,
		policy:     policy,
		now:        time.Now,
		specs:      newFieldSpecs(profile.ExtraPatterns),
		photos:     newPhotoScanner(profile.PhotoHosts),
		normalizer: profile.Normalizer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) Profile() Profile {
	return e.profile
}

func (e *Extractor) Policy() GatePolicy {
	return e.policy
}

// Extract runs the full pipeline under the extractor's gate policy
func (e *Extractor) Extract(page models.RawPage) (*models.ListingRecord, error) {
	return e.ExtractWithPolicy(page, e.policy)
}

// ExtractWithPolicy is Extract with a per-call gate policy
func (e *Extractor) ExtractWithPolicy(page models.RawPage, policy GatePolicy) (*models.ListingRecord, error) {
	if err := validate(page); err != nil {
		return nil, err
	}

	p := newPage(page.URL, page.HTML)
	fields := e.specs.resolveAll(p, e.profile.Address(page.URL))
	photos := e.photosFrom(p)

	logging.Debugf("extractor: %s via %s: price=%d beds=%d baths=%g sqft=%d photos=%d",
		page.URL, page.Source, fields.Price, fields.Bedrooms, fields.Bathrooms, fields.SquareFeet, len(photos))

	return Assemble(fields, photos, page.URL, policy, e.now())
}

// ExtractFields resolves fields only, without photos or gating
func (e *Extractor) ExtractFields(page models.RawPage) (Fields, error) {
	if err := validate(page); err != nil {
		return Fields{}, err
	}
	return e.specs.resolveAll(newPage(page.URL, page.HTML), e.profile.Address(page.URL)), nil
}

// photosFrom blocks on the raw candidates, then normalizes and caps.
// The sizing query appended by the normalizer is never blocklist-checked.
func (e *Extractor) photosFrom(p *page) []string {
	return capPhotos(e.normalizer.NormalizePhotos(e.photos.scan(p)))
}

func validate(page models.RawPage) error {
	if strings.TrimSpace(page.HTML) == "" {
		return fmt.Errorf("%w: empty html", ErrMalformedInput)
	}
	if err := ValidateURL(page.URL); err != nil {
		return err
	}
	return nil
}

// ValidateURL accepts absolute http(s) URLs only
func ValidateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: not an absolute http url: %q", ErrMalformedInput, rawURL)
	}
	return nil
}
