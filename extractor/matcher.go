package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Matcher yields raw candidate strings from a page, in document order
type Matcher interface {
	find(p *page) []string
}

type regexMatcher struct {
	re *regexp.Regexp
}

// Regex matches every occurrence and yields capture group 1 when the
// pattern has one, the whole match otherwise.
func Regex(pattern string) Matcher {
	return regexMatcher{re: regexp.MustCompile(pattern)}
}

// RegexFrom wraps an already compiled pattern
func RegexFrom(re *regexp.Regexp) Matcher {
	return regexMatcher{re: re}
}

func (m regexMatcher) find(p *page) []string {
	var out []string
	for _, sm := range m.re.FindAllStringSubmatch(p.html, -1) {
		v := sm[0]
		if len(sm) > 1 {
			v = sm[1]
		}
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

type selectorMatcher struct {
	selector string
	attr     string
}

// Selector reads attr from every element matching a CSS selector,
// or the element text when attr is empty.
func Selector(selector, attr string) Matcher {
	return selectorMatcher{selector: selector, attr: attr}
}

func (m selectorMatcher) find(p *page) []string {
	doc := p.document()
	if doc == nil {
		return nil
	}
	var out []string
	doc.Find(m.selector).Each(func(_ int, s *goquery.Selection) {
		var v string
		if m.attr == "" {
			v = s.Text()
		} else {
			v, _ = s.Attr(m.attr)
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	})
	return out
}
