package extractor

import (
	"net/url"
	"path"
	"strings"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Normalizer canonicalizes photo URLs for one site
type Normalizer struct {
	CDNHosts []string
	Sizing   Sizing
}

// Normalizer builds the photo normalizer for this profile
func (p Profile) Normalizer() Normalizer {
	return Normalizer{CDNHosts: p.PhotoHosts, Sizing: p.Sizing}
}

// NormalizePhoto drops query and fragment, upgrades to https and appends
// the sizing query for CDN hosts. ok is false for URLs that are not
// absolute or do not point at an image file.
func (n Normalizer) NormalizePhoto(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasPrefix(s, "//"):
		s = "https:" + s
	case len(s) >= 7 && strings.EqualFold(s[:7], "http://"):
		s = "https://" + s[7:]
	}

	u, err := url.Parse(s)
	if err != nil || !strings.EqualFold(u.Scheme, "https") || u.Host == "" {
		return "", false
	}
	if !imageExts[strings.ToLower(path.Ext(u.Path))] {
		return "", false
	}

	if hostMatches(u.Hostname(), n.CDNHosts) {
		if q := n.Sizing.Query(); q != "" {
			s += "?" + q
		}
	}
	return s, true
}

// NormalizePhotos normalizes every URL, drops rejects and removes
// duplicates produced by normalization. Order is kept.
func (n Normalizer) NormalizePhotos(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		if s, ok := n.NormalizePhoto(raw); ok {
			out = append(out, s)
		}
	}
	return dedupe(out)
}
