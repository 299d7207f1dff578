package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"listing_scrooper/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS listings (
	id UUID PRIMARY KEY,
	fingerprint TEXT NOT NULL UNIQUE,
	site_id TEXT NOT NULL,
	url TEXT NOT NULL,
	address TEXT,
	price BIGINT,
	bedrooms INTEGER,
	bathrooms NUMERIC(4,1),
	square_feet INTEGER,
	year_built INTEGER,
	data JSONB NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS listing_photos (
	id UUID PRIMARY KEY,
	listing_id UUID NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	url TEXT NOT NULL,
	is_primary BOOLEAN NOT NULL DEFAULT FALSE,
	is_scraped BOOLEAN NOT NULL DEFAULT TRUE,
	display_order INTEGER NOT NULL DEFAULT 0,
	mirror_status TEXT NOT NULL DEFAULT 'pending',
	mirror_attempts INTEGER NOT NULL DEFAULT 0,
	s3_key TEXT,
	content_hash TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_listing_photos_url ON listing_photos(listing_id, url);
CREATE INDEX IF NOT EXISTS idx_listing_photos_listing ON listing_photos(listing_id, display_order);
CREATE INDEX IF NOT EXISTS idx_listing_photos_mirror ON listing_photos(mirror_status, created_at);
`

// EnsureSchema creates the listing tables if they are missing
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// =============================================================================
// Listings
// =============================================================================

// UpsertListing inserts or refreshes the listing with l.Fingerprint. l.ID is
// set to the stored row's ID; the bool reports whether the row is new.
func (s *PostgresStore) UpsertListing(ctx context.Context, l *models.StoredListing) (bool, error) {
	query := `
		INSERT INTO listings (
			id, fingerprint, site_id, url, address, price, bedrooms, bathrooms,
			square_feet, year_built, data, scraped_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		ON CONFLICT (fingerprint) DO UPDATE SET
			url = EXCLUDED.url,
			address = COALESCE(EXCLUDED.address, listings.address),
			price = COALESCE(EXCLUDED.price, listings.price),
			bedrooms = COALESCE(EXCLUDED.bedrooms, listings.bedrooms),
			bathrooms = COALESCE(EXCLUDED.bathrooms, listings.bathrooms),
			square_feet = COALESCE(EXCLUDED.square_feet, listings.square_feet),
			year_built = COALESCE(EXCLUDED.year_built, listings.year_built),
			data = EXCLUDED.data,
			scraped_at = EXCLUDED.scraped_at,
			updated_at = NOW()
		RETURNING id, (xmax = 0)`

	var inserted bool
	err := s.pool.QueryRow(ctx, query,
		l.ID, l.Fingerprint, l.SiteID, l.URL, l.Address, l.Price, l.Bedrooms, l.Bathrooms,
		l.SquareFeet, l.YearBuilt, l.Data, l.ScrapedAt, l.CreatedAt, l.UpdatedAt,
	).Scan(&l.ID, &inserted)
	return inserted, err
}

// GetListingByFingerprint returns nil without error when nothing matches
func (s *PostgresStore) GetListingByFingerprint(ctx context.Context, fingerprint string) (*models.StoredListing, error) {
	query := `
		SELECT id, fingerprint, site_id, url, address, price, bedrooms, bathrooms,
			square_feet, year_built, data, scraped_at, created_at, updated_at
		FROM listings WHERE fingerprint = $1`

	var l models.StoredListing
	err := s.pool.QueryRow(ctx, query, fingerprint).Scan(
		&l.ID, &l.Fingerprint, &l.SiteID, &l.URL, &l.Address, &l.Price, &l.Bedrooms, &l.Bathrooms,
		&l.SquareFeet, &l.YearBuilt, &l.Data, &l.ScrapedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// =============================================================================
// Listing Photos
// =============================================================================

// SyncScrapedPhotos makes the scraped photo rows of a listing match urls.
// Rows whose URL is still present keep their ID and mirror state and only
// get a new order; scraped rows whose URL disappeared are removed. Photos
// added by hand (is_scraped = false) are never removed. The first URL
// becomes the primary photo.
func (s *PostgresStore) SyncScrapedPhotos(ctx context.Context, listingID uuid.UUID, urls []string) (models.PhotoSync, error) {
	var photoSync models.PhotoSync
	if urls == nil {
		// a NULL array would match nothing in the delete below
		urls = []string{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return photoSync, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM listing_photos
		WHERE listing_id = $1 AND is_scraped = TRUE AND url <> ALL($2)`,
		listingID, urls)
	if err != nil {
		return photoSync, fmt.Errorf("delete stale photos: %w", err)
	}
	photoSync.Removed = int(tag.RowsAffected())

	batch := &pgx.Batch{}
	for i, u := range urls {
		batch.Queue(`
			INSERT INTO listing_photos (id, listing_id, url, is_primary, is_scraped, display_order, mirror_status)
			VALUES ($1, $2, $3, $4, TRUE, $5, $6)
			ON CONFLICT (listing_id, url) DO UPDATE SET
				is_primary = EXCLUDED.is_primary,
				display_order = EXCLUDED.display_order
			RETURNING (xmax = 0)`,
			uuid.New(), listingID, u, i == 0, i, models.MirrorStatusPending)
	}
	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for range urls {
			var inserted bool
			if err := br.QueryRow().Scan(&inserted); err != nil {
				br.Close()
				return photoSync, fmt.Errorf("upsert photo: %w", err)
			}
			if inserted {
				photoSync.Added++
			} else {
				photoSync.Kept++
			}
		}
		if err := br.Close(); err != nil {
			return photoSync, fmt.Errorf("upsert photos: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return photoSync, fmt.Errorf("commit: %w", err)
	}
	return photoSync, nil
}

func (s *PostgresStore) GetListingPhotos(ctx context.Context, listingID uuid.UUID) ([]models.ListingPhoto, error) {
	query := `
		SELECT id, listing_id, url, is_primary, is_scraped, display_order,
			mirror_status, mirror_attempts, s3_key, content_hash, created_at
		FROM listing_photos WHERE listing_id = $1
		ORDER BY display_order, created_at`
	return s.queryPhotos(ctx, query, listingID)
}

// GetPendingPhotos returns photos still waiting to be mirrored, oldest first
func (s *PostgresStore) GetPendingPhotos(ctx context.Context, limit int) ([]models.ListingPhoto, error) {
	query := `
		SELECT id, listing_id, url, is_primary, is_scraped, display_order,
			mirror_status, mirror_attempts, s3_key, content_hash, created_at
		FROM listing_photos
		WHERE mirror_status = 'pending' AND mirror_attempts < $2
		ORDER BY created_at
		LIMIT $1`
	return s.queryPhotos(ctx, query, limit, models.MaxMirrorAttempts)
}

func (s *PostgresStore) UpdatePhotoMirror(ctx context.Context, id uuid.UUID, status string, s3Key *string, contentHash string, attempts int) error {
	query := `
		UPDATE listing_photos SET mirror_status = $2, s3_key = COALESCE($3, s3_key),
			content_hash = COALESCE(NULLIF($4, ''), content_hash), mirror_attempts = $5
		WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, status, s3Key, contentHash, attempts)
	return err
}

func (s *PostgresStore) queryPhotos(ctx context.Context, query string, args ...any) ([]models.ListingPhoto, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []models.ListingPhoto
	for rows.Next() {
		var p models.ListingPhoto
		if err := rows.Scan(
			&p.ID, &p.ListingID, &p.URL, &p.IsPrimary, &p.IsScraped, &p.DisplayOrder,
			&p.MirrorStatus, &p.MirrorAttempts, &p.S3Key, &p.ContentHash, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}
