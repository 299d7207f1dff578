package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"listing_scrooper/logging"
	"listing_scrooper/models"
)

const maxPhotoBytes = 20 << 20

// PhotoStore is the part of the Postgres store the mirror needs
type PhotoStore interface {
	GetPendingPhotos(ctx context.Context, limit int) ([]models.ListingPhoto, error)
	UpdatePhotoMirror(ctx context.Context, id uuid.UUID, status string, s3Key *string, contentHash string, attempts int) error
}

// Uploader stores mirrored photo bytes under key
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// MediaWorker copies scraped listing photos into our own bucket so
// listings keep their images after the source CDN expires them.
type MediaWorker struct {
	store      PhotoStore
	httpClient *http.Client
	uploader   Uploader
	workers    int
	pause      time.Duration
	triggerCh  chan struct{}
}

func NewMediaWorker(store PhotoStore, uploader Uploader, client *http.Client, workers int) *MediaWorker {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if uploader == nil {
		uploader = NewNoOpUploader()
	}
	if workers <= 0 {
		workers = 1
	}
	return &MediaWorker{
		store:      store,
		httpClient: client,
		uploader:   uploader,
		workers:    workers,
		pause:      200 * time.Millisecond,
		triggerCh:  make(chan struct{}, 1),
	}
}

// Trigger requests a batch before the next tick
func (w *MediaWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

type MirrorResult struct {
	PhotoID     uuid.UUID
	S3Key       string
	ContentHash string
	Size        int64
	Error       error
}

// Process downloads one photo, hashes it and uploads it under
// photos/<first two hash chars>/<hash><ext>.
func (w *MediaWorker) Process(ctx context.Context, photo *models.ListingPhoto) MirrorResult {
	result := MirrorResult{PhotoID: photo.ID}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photo.URL, nil)
	if err != nil {
		result.Error = fmt.Errorf("create request: %w", err)
		return result
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("download: %w", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Errorf("download status: %d", resp.StatusCode)
		return result
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		result.Error = fmt.Errorf("read body: %w", err)
		return result
	}
	if len(data) > maxPhotoBytes {
		result.Error = fmt.Errorf("photo larger than %s", humanize.IBytes(maxPhotoBytes))
		return result
	}
	result.Size = int64(len(data))

	hash := sha256.Sum256(data)
	result.ContentHash = hex.EncodeToString(hash[:])

	contentType := resp.Header.Get("Content-Type")
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	ext := guessExtension(photo.URL, contentType)
	result.S3Key = fmt.Sprintf("photos/%s/%s%s", result.ContentHash[:2], result.ContentHash, ext)

	if contentType == "" {
		contentType = "image/jpeg"
	}
	if err := w.uploader.Upload(ctx, result.S3Key, bytes.NewReader(data), contentType); err != nil {
		result.Error = fmt.Errorf("upload: %w", err)
		return result
	}

	return result
}

// guessExtension prefers the URL path extension, then the content type
func guessExtension(rawURL, contentType string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if isImageExt(ext) {
		if ext == ".jpeg" {
			return ".jpg"
		}
		return ext
	}

	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

// Run mirrors a batch of pending photos every interval until ctx is done
func (w *MediaWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Infof("Media worker stopping")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx, batchSize)
		case <-w.triggerCh:
			w.ProcessBatch(ctx, batchSize)
		}
	}
}

// ProcessBatch mirrors up to batchSize pending photos and returns how many
// were uploaded and how many failed.
func (w *MediaWorker) ProcessBatch(ctx context.Context, batchSize int) (int, int) {
	photos, err := w.store.GetPendingPhotos(ctx, batchSize)
	if err != nil {
		logging.Errorf("Media worker: query error: %v", err)
		return 0, 0
	}
	if len(photos) == 0 {
		return 0, 0
	}

	logging.Infof("Media worker: processing %d photos", len(photos))

	var processed, failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	for i := range photos {
		p := &photos[i]
		g.Go(func() error {
			if w.mirror(gctx, p) {
				processed.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	if processed.Load() > 0 || failed.Load() > 0 {
		logging.Infof("Media worker: uploaded %d, failed %d", processed.Load(), failed.Load())
	}
	return int(processed.Load()), int(failed.Load())
}

func (w *MediaWorker) mirror(ctx context.Context, p *models.ListingPhoto) bool {
	result := w.Process(ctx, p)

	if result.Error != nil {
		logging.Warnf("Media worker: failed %s: %v", p.URL, result.Error)
		attempts := p.MirrorAttempts + 1
		status := models.MirrorStatusPending
		if attempts >= models.MaxMirrorAttempts {
			status = models.MirrorStatusFailed
		}
		if err := w.store.UpdatePhotoMirror(ctx, p.ID, status, nil, "", attempts); err != nil {
			logging.Errorf("Media worker: failed to update %s: %v", p.ID, err)
		}
		return false
	}

	if err := w.store.UpdatePhotoMirror(ctx, p.ID, models.MirrorStatusUploaded, &result.S3Key, result.ContentHash, p.MirrorAttempts); err != nil {
		logging.Errorf("Media worker: failed to update %s: %v", p.ID, err)
		return false
	}
	logging.Debugf("Media worker: uploaded %s -> %s (%s)", p.ID, result.S3Key, humanize.Bytes(uint64(result.Size)))

	if w.pause > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(w.pause):
		}
	}
	return true
}

// NoOpUploader drains the data without storing it
type NoOpUploader struct{}

func (u *NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	io.Copy(io.Discard, data)
	return nil
}

func NewNoOpUploader() *NoOpUploader {
	return &NoOpUploader{}
}
