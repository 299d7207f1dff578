package extractor

import "regexp"

// Patterns are ordered from structured data (embedded JSON) to data
// attributes, class names and finally loose text.

var (
	priceMatchers = []Matcher{
		Regex(`"price"\s*:\s*"?(\$?[\d,]+)"?`),
		Regex(`"listPrice"\s*:\s*"?(\$?[\d,]+)"?`),
		Regex(`data-testid="price"[^>]*>\s*\$?([\d,]+)`),
		Regex(`data-cy="price"[^>]*>\s*\$?([\d,]+)`),
		Regex(`class="[^"]*price[^"]*"[^>]*>\s*\$?([\d,]+)`),
		Regex(`price[^>]*>\s*\$?([\d,]+)`),
		Regex(`\$[\d,]+`),
		Regex(`"value"\s*:\s*"?(\$?[\d,]+)"?`),
	}

	bedroomMatchers = []Matcher{
		Regex(`(?i)"bedrooms"\s*:\s*(\d+)`),
		Regex(`(?i)"beds"\s*:\s*(\d+)`),
		Regex(`(?i)"bedroomCount"\s*:\s*(\d+)`),
		Regex(`(?i)data-testid="bed"[^>]*>\s*(\d+)`),
		Regex(`(?i)data-cy="bed"[^>]*>\s*(\d+)`),
		Regex(`(?i)class="[^"]*bed[^"]*"[^>]*>\s*(\d+)`),
		Regex(`(?i)bedroom[^>]*>\s*(\d+)`),
		Regex(`(?i)(\d+)\s*bed`),
		Regex(`(?i)(\d+)\s*bd`),
	}

	bathroomMatchers = []Matcher{
		Regex(`(?i)"bathrooms"\s*:\s*(\d+(?:\.\d+)?)`),
		Regex(`(?i)"baths"\s*:\s*(\d+(?:\.\d+)?)`),
		Regex(`(?i)"bathroomCount"\s*:\s*(\d+(?:\.\d+)?)`),
		Regex(`(?i)data-testid="bath"[^>]*>\s*(\d+(?:\.\d+)?)`),
		Regex(`(?i)data-cy="bath"[^>]*>\s*(\d+(?:\.\d+)?)`),
		Regex(`(?i)class="[^"]*bath[^"]*"[^>]*>\s*(\d+(?:\.\d+)?)`),
		Regex(`(?i)bathroom[^>]*>\s*(\d+(?:\.\d+)?)`),
		Regex(`(?i)(\d+(?:\.\d+)?)\s*bath`),
		Regex(`(?i)(\d+(?:\.\d+)?)\s*ba`),
	}

	squareFeetMatchers = []Matcher{
		Regex(`(?i)"livingArea"\s*:\s*(\d+)`),
		Regex(`(?i)"squareFeet"\s*:\s*(\d+)`),
		Regex(`(?i)"area"\s*:\s*(\d+)`),
		Regex(`(?i)data-testid="sqft"[^>]*>\s*([\d,]+)`),
		Regex(`(?i)data-cy="sqft"[^>]*>\s*([\d,]+)`),
		Regex(`(?i)class="[^"]*sqft[^"]*"[^>]*>\s*([\d,]+)`),
		Regex(`(?i)square\s*footage[^>]*>\s*([\d,]+)`),
		Regex(`(?i)(\d{1,4},?\d{0,3})\s*sqft`),
		Regex(`(?i)(\d{1,4},?\d{0,3})\s*sq\.?\s*ft`),
		Regex(`(?i)(\d{3,4})\s*sq`),
	}

	yearBuiltMatchers = []Matcher{
		Regex(`(?i)"yearBuilt"\s*:\s*"?(\d{4})`),
		Regex(`(?i)"constructionYear"\s*:\s*"?(\d{4})`),
		Regex(`(?i)year\s*built[^>]*>\s*(\d{4})`),
		Regex(`(?i)built\s*in\s*(\d{4})`),
		Regex(`(?i)(\d{4})\s*build`),
	}

	descriptionMatchers = []Matcher{
		Regex(`"description"\s*:\s*"([^"]+)"`),
		Regex(`"summary"\s*:\s*"([^"]+)"`),
		Selector(`meta[name="description"]`, "content"),
		Selector(`meta[property="og:description"]`, "content"),
	}

	neighborhoodMatchers = []Matcher{
		Regex(`"neighborhood"\s*:\s*"([^"]+)"`),
		Regex(`"area"\s*:\s*"([^"]+)"`),
		Regex(`"city"\s*:\s*"([^"]+)"`),
		Regex(`(?i)neighborhood[^>]*>([^<]+)<`),
	}

	lotSizeMatchers = []Matcher{
		Regex(`"lotSize"\s*:\s*"([^"]+)"`),
		Regex(`"acreage"\s*:\s*"([^"]+)"`),
		Regex(`(?i)lot\s*size[^>]*>([^<]+)<`),
	}

	propertyTypeMatchers = []Matcher{
		Regex(`"propertyType"\s*:\s*"([^"]+)"`),
		Regex(`"homeType"\s*:\s*"([^"]+)"`),
		Regex(`(?i)property\s*type[^>]*>([^<]+)<`),
	}

	agentNameMatchers = []Matcher{
		Regex(`"agentName"\s*:\s*"([^"]+)"`),
		Regex(`"agent"\s*:\s*"([^"]+)"`),
		Regex(`(?i)agent[^>]*>([^<]+)<`),
	}

	agentCompanyMatchers = []Matcher{
		Regex(`"agentCompany"\s*:\s*"([^"]+)"`),
		Regex(`"brokerName"\s*:\s*"([^"]+)"`),
		Regex(`"company"\s*:\s*"([^"]+)"`),
		Regex(`(?i)company[^>]*>([^<]+)<`),
	}
)

// fieldSpecs is the full set of specs an Extractor resolves
type fieldSpecs struct {
	price        FieldSpec[int64]
	bedrooms     FieldSpec[int]
	bathrooms    FieldSpec[float64]
	squareFeet   FieldSpec[int]
	yearBuilt    FieldSpec[int]
	description  FieldSpec[string]
	neighborhood FieldSpec[string]
	lotSize      FieldSpec[string]
	propertyType FieldSpec[string]
	agentName    FieldSpec[string]
	agentCompany FieldSpec[string]
}

func PriceSpec() FieldSpec[int64] {
	return FieldSpec[int64]{Name: FieldPrice, Matchers: priceMatchers, Parse: parsePrice}
}

func BedroomsSpec() FieldSpec[int] {
	return FieldSpec[int]{Name: FieldBedrooms, Matchers: bedroomMatchers, Parse: intInRange(0, MaxBedrooms)}
}

func BathroomsSpec() FieldSpec[float64] {
	return FieldSpec[float64]{Name: FieldBathrooms, Matchers: bathroomMatchers, Parse: parseBathrooms}
}

func SquareFeetSpec() FieldSpec[int] {
	return FieldSpec[int]{Name: FieldSquareFeet, Matchers: squareFeetMatchers, Parse: intInRange(0, MaxSquareFeet)}
}

func YearBuiltSpec() FieldSpec[int] {
	return FieldSpec[int]{Name: FieldYearBuilt, Matchers: yearBuiltMatchers, Parse: intInRange(MinYearBuilt, MaxYearBuilt)}
}

func DescriptionSpec() FieldSpec[string] {
	return FieldSpec[string]{Name: FieldDescription, Matchers: descriptionMatchers, Parse: parseText}
}

func NeighborhoodSpec() FieldSpec[string] {
	return FieldSpec[string]{Name: FieldNeighborhood, Matchers: neighborhoodMatchers, Parse: parseShortText}
}

func LotSizeSpec() FieldSpec[string] {
	return FieldSpec[string]{Name: FieldLotSize, Matchers: lotSizeMatchers, Parse: parseShortText}
}

func PropertyTypeSpec() FieldSpec[string] {
	return FieldSpec[string]{Name: FieldPropertyType, Matchers: propertyTypeMatchers, Parse: parseShortText}
}

func AgentNameSpec() FieldSpec[string] {
	return FieldSpec[string]{Name: FieldAgentName, Matchers: agentNameMatchers, Parse: parseShortText}
}

func AgentCompanySpec() FieldSpec[string] {
	return FieldSpec[string]{Name: FieldAgentCompany, Matchers: agentCompanyMatchers, Parse: parseShortText}
}

func newFieldSpecs(extra map[string][]*regexp.Regexp) fieldSpecs {
	return fieldSpecs{
		price:        PriceSpec().WithPatterns(extra[FieldPrice]),
		bedrooms:     BedroomsSpec().WithPatterns(extra[FieldBedrooms]),
		bathrooms:    BathroomsSpec().WithPatterns(extra[FieldBathrooms]),
		squareFeet:   SquareFeetSpec().WithPatterns(extra[FieldSquareFeet]),
		yearBuilt:    YearBuiltSpec().WithPatterns(extra[FieldYearBuilt]),
		description:  DescriptionSpec().WithPatterns(extra[FieldDescription]),
		neighborhood: NeighborhoodSpec().WithPatterns(extra[FieldNeighborhood]),
		lotSize:      LotSizeSpec().WithPatterns(extra[FieldLotSize]),
		propertyType: PropertyTypeSpec().WithPatterns(extra[FieldPropertyType]),
		agentName:    AgentNameSpec().WithPatterns(extra[FieldAgentName]),
		agentCompany: AgentCompanySpec().WithPatterns(extra[FieldAgentCompany]),
	}
}

func (s fieldSpecs) resolveAll(p *page, address string) Fields {
	f := Fields{Address: address}
	if c, ok := resolve(p, s.price); ok {
		f.Price = c.Value
	}
	if c, ok := resolve(p, s.bedrooms); ok {
		f.Bedrooms = c.Value
	}
	if c, ok := resolve(p, s.bathrooms); ok {
		f.Bathrooms = c.Value
	}
	if c, ok := resolve(p, s.squareFeet); ok {
		f.SquareFeet = c.Value
	}
	if c, ok := resolve(p, s.yearBuilt); ok {
		f.YearBuilt = c.Value
	}
	if c, ok := resolve(p, s.description); ok {
		f.Description = c.Value
	}
	if c, ok := resolve(p, s.neighborhood); ok {
		f.Neighborhood = c.Value
	}
	if c, ok := resolve(p, s.lotSize); ok {
		f.LotSize = c.Value
	}
	if c, ok := resolve(p, s.propertyType); ok {
		f.PropertyType = c.Value
	}
	if c, ok := resolve(p, s.agentName); ok {
		f.AgentName = c.Value
	}
	if c, ok := resolve(p, s.agentCompany); ok {
		f.AgentCompany = c.Value
	}
	return f
}
