package extractor

import (
	"encoding/json"
	"html"
	"regexp"
	"strconv"
	"strings"

	"listing_scrooper/models"
)

// Field names, also the keys accepted for extra site patterns
const (
	FieldPrice        = "price"
	FieldBedrooms     = "bedrooms"
	FieldBathrooms    = "bathrooms"
	FieldSquareFeet   = "squareFeet"
	FieldYearBuilt    = "yearBuilt"
	FieldDescription  = "description"
	FieldNeighborhood = "neighborhood"
	FieldLotSize      = "lotSize"
	FieldPropertyType = "propertyType"
	FieldAgentName    = "agentName"
	FieldAgentCompany = "agentCompany"
)

// Plausibility bounds
const (
	MinPrice      = 50_000
	MaxPrice      = 50_000_000
	MaxBedrooms   = 20
	MaxBathrooms  = 20
	MaxSquareFeet = 100_000
	MinYearBuilt  = 1800
	MaxYearBuilt  = 2030

	maxShortText = 120
)

// FieldSpec describes how one field is resolved. Parse turns a raw
// match into a value and rejects implausible ones.
type FieldSpec[T any] struct {
	Name     string
	Matchers []Matcher
	Parse    func(raw string) (T, bool)
	Unknown  T
}

// WithPatterns returns a copy of s with extra patterns tried first
func (s FieldSpec[T]) WithPatterns(extra []*regexp.Regexp) FieldSpec[T] {
	if len(extra) == 0 {
		return s
	}
	matchers := make([]Matcher, 0, len(extra)+len(s.Matchers))
	for _, re := range extra {
		matchers = append(matchers, RegexFrom(re))
	}
	s.Matchers = append(matchers, s.Matchers...)
	return s
}

// ExtractField resolves a single field from html, returning spec.Unknown
// when no matcher produced an acceptable value.
func ExtractField[T any](html, pageURL string, spec FieldSpec[T]) T {
	c, ok := resolve(newPage(pageURL, html), spec)
	if !ok {
		return spec.Unknown
	}
	return c.Value
}

func resolve[T any](p *page, spec FieldSpec[T]) (models.FieldCandidate[T], bool) {
	for rank, m := range spec.Matchers {
		for _, raw := range m.find(p) {
			if v, ok := spec.Parse(raw); ok {
				return models.FieldCandidate[T]{RawMatch: raw, Value: v, PatternRank: rank}, true
			}
		}
	}
	return models.FieldCandidate[T]{}, false
}

// Fields is the per-field resolution of one page. Zero values and empty
// strings mean the field was not found.
type Fields struct {
	Address      string
	Price        int64
	Bedrooms     int
	Bathrooms    float64
	SquareFeet   int
	YearBuilt    int
	Description  string
	Neighborhood string
	LotSize      string
	PropertyType string
	AgentName    string
	AgentCompany string
}

func parsePrice(raw string) (int64, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || v < MinPrice || v > MaxPrice {
		return 0, false
	}
	return v, true
}

func intInRange(lo, hi int) func(string) (int, bool) {
	return func(raw string) (int, bool) {
		v, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""))
		if err != nil || v <= lo || v >= hi {
			return 0, false
		}
		return v, true
	}
}

func parseBathrooms(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 || v >= MaxBathrooms {
		return 0, false
	}
	return v, true
}

func parseText(raw string) (string, bool) {
	v := cleanText(raw)
	return v, v != ""
}

func parseShortText(raw string) (string, bool) {
	v := cleanText(raw)
	if v == "" || len(v) > maxShortText {
		return "", false
	}
	return v, true
}

// cleanText decodes JSON escapes and HTML entities and collapses whitespace
func cleanText(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.ContainsRune(s, '\\') {
		s = decodeJSONEscapes(s)
	}
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// decodeJSONEscapes reads s as the body of a JSON string. Text that is not
// valid JSON keeps its escapes, minus a dangling trailing backslash.
func decodeJSONEscapes(s string) string {
	// raw control characters are invalid inside JSON strings
	body := strings.Map(func(r rune) rune {
		if r < 0x20 {
			return ' '
		}
		return r
	}, s)
	var out string
	if err := json.Unmarshal([]byte(`"`+body+`"`), &out); err == nil {
		return out
	}
	return strings.TrimRight(s, `\`)
}
