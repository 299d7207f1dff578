package extractor

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Sizing is the query appended to photo URLs served from a known CDN host
type Sizing struct {
	Width  int
	Height int
	Fit    string
}

// Query renders the sizing as w/h/fit parameters, skipping zero values
func (s Sizing) Query() string {
	var parts []string
	if s.Width > 0 {
		parts = append(parts, fmt.Sprintf("w=%d", s.Width))
	}
	if s.Height > 0 {
		parts = append(parts, fmt.Sprintf("h=%d", s.Height))
	}
	if s.Fit != "" {
		parts = append(parts, "fit="+url.QueryEscape(s.Fit))
	}
	return strings.Join(parts, "&")
}

// Profile carries everything site-specific the extractor needs.
// Field patterns listed in ExtraPatterns run before the built-in ones.
type Profile struct {
	ID            string
	Name          string
	Hosts         []string
	PhotoHosts    []string
	Sizing        Sizing
	SlugMarker    string
	IDPattern     *regexp.Regexp
	ExtraPatterns map[string][]*regexp.Regexp
}

// ZillowProfile is the built-in default profile
func ZillowProfile() Profile {
	return Profile{
		ID:         "zillow",
		Name:       "Zillow",
		Hosts:      []string{"zillow.com"},
		PhotoHosts: []string{"photos.zillowstatic.com", "images.zillowstatic.com"},
		Sizing:     Sizing{Width: 1024, Height: 768, Fit: "crop"},
		SlugMarker: "homedetails/",
		IDPattern:  regexp.MustCompile(`/(\d+)_zpid`),
	}
}

// MatchesURL reports whether the URL host equals or is a subdomain of a profile host
func (p Profile) MatchesURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return hostMatches(u.Hostname(), p.Hosts)
}

// IsPhotoHost reports whether host is one of the profile's photo CDNs
func (p Profile) IsPhotoHost(host string) bool {
	return hostMatches(host, p.PhotoHosts)
}

// ListingID pulls the site listing ID out of the URL, "" when absent
func (p Profile) ListingID(rawURL string) string {
	if p.IDPattern == nil {
		return ""
	}
	m := p.IDPattern.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// Address derives a display address from the URL slug, "" when there is none
func (p Profile) Address(rawURL string) string {
	return AddressFromURL(rawURL, p.SlugMarker)
}

// AddressFromURL takes the path segment after marker, e.g.
// ".../homedetails/123-Oak-St-Austin-TX-78701/..." -> "123 Oak St Austin Tx 78701"
func AddressFromURL(rawURL, marker string) string {
	if marker == "" {
		return ""
	}
	i := strings.Index(rawURL, marker)
	if i < 0 {
		return ""
	}
	slug := rawURL[i+len(marker):]
	if j := strings.IndexAny(slug, "/?#"); j >= 0 {
		slug = slug[:j]
	}
	if decoded, err := url.PathUnescape(slug); err == nil {
		slug = decoded
	}
	words := strings.Fields(strings.ReplaceAll(slug, "-", " "))
	if len(words) == 0 {
		return ""
	}
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

// titleWord upper-cases the first rune and lower-cases the rest, so
// "TX" becomes "Tx" and "3rd" stays "3rd". Casers are stateful, so each
// call gets its own.
func titleWord(w string) string {
	_, size := utf8.DecodeRuneInString(w)
	return cases.Upper(language.English).String(w[:size]) + cases.Lower(language.English).String(w[size:])
}

func hostMatches(host string, hosts []string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, h := range hosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
