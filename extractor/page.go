package extractor

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// page holds the HTML being worked on. The goquery document is only
// built when a selector matcher asks for it.
type page struct {
	url  string
	html string

	once sync.Once
	doc  *goquery.Document
}

func newPage(pageURL, html string) *page {
	return &page{url: pageURL, html: html}
}

// document returns nil when the HTML could not be parsed
func (p *page) document() *goquery.Document {
	p.once.Do(func() {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html))
		if err == nil {
			p.doc = doc
		}
	})
	return p.doc
}
