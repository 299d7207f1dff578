package models

import (
	"time"

	"github.com/google/uuid"
)

// ListingPhoto is a row of the listing_photos table
type ListingPhoto struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ListingID      uuid.UUID `json:"listing_id" db:"listing_id"`
	URL            string    `json:"url" db:"url"`
	IsPrimary      bool      `json:"is_primary" db:"is_primary"`
	IsScraped      bool      `json:"is_scraped" db:"is_scraped"`
	DisplayOrder   int       `json:"display_order" db:"display_order"`
	MirrorStatus   string    `json:"mirror_status" db:"mirror_status"` // pending, uploaded, failed
	MirrorAttempts int       `json:"mirror_attempts" db:"mirror_attempts"`
	S3Key          *string   `json:"s3_key" db:"s3_key"`
	ContentHash    string    `json:"content_hash" db:"content_hash"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Mirror status
const (
	MirrorStatusPending  = "pending"
	MirrorStatusUploaded = "uploaded"
	MirrorStatusFailed   = "failed"
)

// MaxMirrorAttempts is how many download/upload tries a photo gets
const MaxMirrorAttempts = 3

// PhotoSync counts what a re-scrape did to a listing's scraped photos
type PhotoSync struct {
	Added   int `json:"added"`
	Kept    int `json:"kept"`
	Removed int `json:"removed"`
}
