package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"listing_scrooper/models"
)

var (
	streetReplacements = map[string]string{
		"street":    "st",
		"avenue":    "ave",
		"drive":     "dr",
		"road":      "rd",
		"boulevard": "blvd",
		"lane":      "ln",
		"court":     "ct",
		"place":     "pl",
		"circle":    "cir",
		"terrace":   "ter",
		"highway":   "hwy",
		"parkway":   "pkwy",
		"square":    "sq",
		"trail":     "trl",
		"north":     "n",
		"south":     "s",
		"east":      "e",
		"west":      "w",
		"northeast": "ne",
		"northwest": "nw",
		"southeast": "se",
		"southwest": "sw",
		"apartment": "apt",
		"suite":     "ste",
		"unit":      "unit",
		"floor":     "fl",
		"building":  "bldg",
	}
	nonAlnumRegex = regexp.MustCompile(`[^a-z0-9\s]`)
)

// Fingerprint identifies a listing across scrapes. The site's own listing
// ID wins when the URL carries one; otherwise the normalized address and
// the basic facts are hashed.
func Fingerprint(siteID, listingID string, rec *models.ListingRecord) string {
	var input string
	if listingID != "" {
		input = fmt.Sprintf("%s|id|%s", siteID, listingID)
	} else {
		input = fmt.Sprintf("%s|%s|%d|%g|%d",
			siteID,
			NormalizeAddress(rec.Address),
			rec.Bedrooms,
			rec.Bathrooms,
			rec.SquareFeet,
		)
	}
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeAddress lowercases, strips punctuation and abbreviates street
// words token by token.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")

	tokens := strings.Fields(addr)
	for i, tok := range tokens {
		if abbrev, ok := streetReplacements[tok]; ok {
			tokens[i] = abbrev
		}
	}
	return strings.Join(tokens, " ")
}
