package extractor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"listing_scrooper/models"
)

// GatePolicy decides whether a partially resolved record is accepted
type GatePolicy string

const (
	// GateStrict requires price, bedrooms and bathrooms
	GateStrict GatePolicy = "strict"
	// GateLenient accepts whatever resolved, with placeholders
	GateLenient GatePolicy = "lenient"
)

// ErrIncomplete is returned by the strict gate
var ErrIncomplete = errors.New("listing incomplete")

func ParseGatePolicy(s string) (GatePolicy, error) {
	switch GatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", GateStrict:
		return GateStrict, nil
	case GateLenient:
		return GateLenient, nil
	default:
		return "", fmt.Errorf("unknown gate policy %q", s)
	}
}

// FormatPrice renders a price as "$1,250,000"
func FormatPrice(v int64) string {
	return "$" + humanize.Comma(v)
}

// Features lists the resolved numeric facts in a fixed order
func Features(f Fields) []string {
	features := []string{}
	if f.Bedrooms > 0 {
		features = append(features, fmt.Sprintf("%d bedrooms", f.Bedrooms))
	}
	if f.Bathrooms > 0 {
		features = append(features, strconv.FormatFloat(f.Bathrooms, 'f', -1, 64)+" bathrooms")
	}
	if f.SquareFeet > 0 {
		features = append(features, fmt.Sprintf("%d sqft", f.SquareFeet))
	}
	if f.YearBuilt > 0 {
		features = append(features, fmt.Sprintf("Built in %d", f.YearBuilt))
	}
	return features
}

// Assemble builds the record for listingURL. Under GateStrict a record
// missing price, bedrooms or bathrooms is rejected with ErrIncomplete.
func Assemble(f Fields, photos []string, listingURL string, policy GatePolicy, now time.Time) (*models.ListingRecord, error) {
	if policy != GateLenient {
		var missing []string
		if f.Price == 0 {
			missing = append(missing, FieldPrice)
		}
		if f.Bedrooms == 0 {
			missing = append(missing, FieldBedrooms)
		}
		if f.Bathrooms == 0 {
			missing = append(missing, FieldBathrooms)
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
		}
	}

	images := make([]string, 0, len(photos))
	images = append(images, photos...)

	return &models.ListingRecord{
		Address:      orDefault(f.Address, models.AddressUnknown),
		Price:        priceText(f.Price),
		Bedrooms:     f.Bedrooms,
		Bathrooms:    f.Bathrooms,
		SquareFeet:   f.SquareFeet,
		YearBuilt:    f.YearBuilt,
		Description:  orDefault(f.Description, models.DescriptionUnknown),
		Features:     Features(f),
		Neighborhood: orDefault(f.Neighborhood, models.NeighborhoodUnknown),
		LotSize:      f.LotSize,
		PropertyType: orDefault(f.PropertyType, models.PropertyTypeUnknown),
		AgentName:    orDefault(f.AgentName, models.AgentNameUnknown),
		AgentCompany: orDefault(f.AgentCompany, models.AgentCompanyUnknown),
		Images:       images,
		ListingURL:   listingURL,
		ScrapedAt:    now.UTC(),
	}, nil
}

func priceText(v int64) string {
	if v == 0 {
		return models.PriceUnknown
	}
	return FormatPrice(v)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
