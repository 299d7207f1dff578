package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RawPage is what a fetch strategy hands to the extractor
type RawPage struct {
	URL    string `json:"url"`
	HTML   string `json:"html"`
	Source string `json:"source"` // direct, relay, scraping_api, id_api
}

// FieldCandidate is one matcher hit for a field, kept only while resolving
type FieldCandidate[T any] struct {
	RawMatch    string
	Value       T
	PatternRank int
}

// Placeholder values used when a field could not be resolved
const (
	PriceUnknown        = "Price not available"
	AddressUnknown      = "Address not found"
	DescriptionUnknown  = "No description available"
	NeighborhoodUnknown = "Neighborhood not specified"
	PropertyTypeUnknown = "Single Family"
	AgentNameUnknown    = "Real Estate Agent"
	AgentCompanyUnknown = "Real Estate Company"
)

// MaxListingImages caps the photo list of a record
const MaxListingImages = 15

// ListingRecord is the structured result of one extraction
type ListingRecord struct {
	Address      string    `json:"address"`
	Price        string    `json:"price"`
	Bedrooms     int       `json:"bedrooms"`
	Bathrooms    float64   `json:"bathrooms"`
	SquareFeet   int       `json:"squareFeet"`
	YearBuilt    int       `json:"yearBuilt,omitempty"`
	Description  string    `json:"description"`
	Features     []string  `json:"features"`
	Neighborhood string    `json:"neighborhood"`
	LotSize      string    `json:"lotSize,omitempty"`
	PropertyType string    `json:"propertyType"`
	AgentName    string    `json:"agentName"`
	AgentCompany string    `json:"agentCompany"`
	Images       []string  `json:"images"`
	ListingURL   string    `json:"listingUrl"`
	ScrapedAt    time.Time `json:"scrapedAt"`
}

// HasPrice reports whether the price resolved to a real value
func (r *ListingRecord) HasPrice() bool {
	return r.Price != "" && r.Price != PriceUnknown
}

// StoredListing is the persisted form of a ListingRecord
type StoredListing struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Fingerprint string          `json:"fingerprint" db:"fingerprint"`
	SiteID      string          `json:"site_id" db:"site_id"`
	URL         string          `json:"url" db:"url"`
	Address     string          `json:"address" db:"address"`
	Price       *int64          `json:"price" db:"price"`
	Bedrooms    *int            `json:"bedrooms" db:"bedrooms"`
	Bathrooms   *float64        `json:"bathrooms" db:"bathrooms"`
	SquareFeet  *int            `json:"square_feet" db:"square_feet"`
	YearBuilt   *int            `json:"year_built" db:"year_built"`
	Data        json.RawMessage `json:"data" db:"data"`
	ScrapedAt   time.Time       `json:"scraped_at" db:"scraped_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}
