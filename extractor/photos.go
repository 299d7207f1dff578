package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"listing_scrooper/models"
)

// photoBlocklist marks non-property imagery. Matching is a case-insensitive substring test.
var photoBlocklist = []string{
	"badge", "footer", "app-store", "google-play", "logo", "placeholder",
	"avatar", "icon", "favicon", "banner", "ad", "sponsor",
}

var (
	jsonPhotoPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"imageUrl"\s*:\s*"([^"]+\.(?:jpe?g|png|webp))"`),
		regexp.MustCompile(`"photoUrl"\s*:\s*"([^"]+\.(?:jpe?g|png|webp))"`),
		regexp.MustCompile(`"photo"\s*:\s*"([^"]+\.(?:jpe?g|png|webp))"`),
		regexp.MustCompile(`"src"\s*:\s*"([^"]+\.(?:jpe?g|png|webp))"`),
	}

	cssPhotoPattern = regexp.MustCompile(`(?i)background-image\s*:\s*url\(\s*['"]?([^'")\s]+)['"]?\s*\)`)

	escapedSlash = strings.NewReplacer(`\/`, "/", `\u002F`, "/", `\u002f`, "/")
)

// IsBlockedPhoto reports whether the URL contains a blocklisted substring
func IsBlockedPhoto(u string) bool {
	lower := strings.ToLower(u)
	for _, word := range photoBlocklist {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// ExtractPhotos collects candidate listing photo URLs from html.
// Results are deduplicated in first-seen order, blocklist-free and
// capped at models.MaxListingImages. No photos yields an empty slice.
func ExtractPhotos(html string, photoHosts []string) []string {
	return capPhotos(newPhotoScanner(photoHosts).scan(newPage("", html)))
}

type photoScanner struct {
	hosts        []string
	hostPatterns []*regexp.Regexp
}

func newPhotoScanner(hosts []string) photoScanner {
	s := photoScanner{hosts: hosts}
	for _, h := range hosts {
		s.hostPatterns = append(s.hostPatterns, regexp.MustCompile(
			`(?i)https?://`+regexp.QuoteMeta(h)+`/[^"'\s)]+?\.(?:jpe?g|png|webp)\b`))
	}
	return s
}

// scan returns every accepted candidate, uncapped
func (s photoScanner) scan(p *page) []string {
	// Embedded JSON often escapes slashes
	text := escapedSlash.Replace(p.html)

	var found []string
	for _, re := range s.hostPatterns {
		found = append(found, re.FindAllString(text, -1)...)
	}
	for _, re := range jsonPhotoPatterns {
		found = append(found, submatches(re, text)...)
	}
	found = append(found, submatches(cssPhotoPattern, text)...)
	found = append(found, domPhotos(p, s.hosts)...)

	return filterBlocked(dedupe(found))
}

func submatches(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

// domPhotos reads og:image from any host and <img> sources only from photo hosts
func domPhotos(p *page, photoHosts []string) []string {
	doc := p.document()
	if doc == nil {
		return nil
	}
	var out []string
	doc.Find(`meta[property="og:image"]`).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok && v != "" {
			out = append(out, strings.TrimSpace(v))
		}
	})
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"src", "data-src"} {
			v, ok := s.Attr(attr)
			if !ok || v == "" {
				continue
			}
			if onPhotoHost(v, photoHosts) {
				out = append(out, strings.TrimSpace(v))
			}
		}
	})
	return out
}

func onPhotoHost(raw string, photoHosts []string) bool {
	rest := raw
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	} else {
		rest = strings.TrimPrefix(rest, "//")
	}
	host := rest
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	return hostMatches(host, photoHosts)
}

func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func filterBlocked(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !IsBlockedPhoto(u) {
			out = append(out, u)
		}
	}
	return out
}

func capPhotos(urls []string) []string {
	if len(urls) > models.MaxListingImages {
		return urls[:models.MaxListingImages]
	}
	return urls
}
