package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"listing_scrooper/models"
)

type photoUpdate struct {
	status   string
	s3Key    *string
	hash     string
	attempts int
}

type fakePhotoStore struct {
	mu      sync.Mutex
	pending []models.ListingPhoto
	updates map[uuid.UUID]photoUpdate
}

func (s *fakePhotoStore) GetPendingPhotos(ctx context.Context, limit int) ([]models.ListingPhoto, error) {
	if limit < len(s.pending) {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *fakePhotoStore) UpdatePhotoMirror(ctx context.Context, id uuid.UUID, status string, s3Key *string, contentHash string, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updates == nil {
		s.updates = make(map[uuid.UUID]photoUpdate)
	}
	s.updates[id] = photoUpdate{status: status, s3Key: s3Key, hash: contentHash, attempts: attempts}
	return nil
}

type memoryUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (u *memoryUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	if u.err != nil {
		return u.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.objects == nil {
		u.objects = make(map[string][]byte)
		u.types = make(map[string]string)
	}
	u.objects[key] = b
	u.types[key] = contentType
	return nil
}

func photoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fp/front.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpeg-bytes"))
		case "/fp/kitchen":
			w.Header().Set("Content-Type", "image/webp; charset=binary")
			w.Write([]byte("webp-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sha(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func TestMediaWorker_Process(t *testing.T) {
	srv := photoServer(t)
	up := &memoryUploader{}
	w := NewMediaWorker(&fakePhotoStore{}, up, srv.Client(), 1)

	photo := &models.ListingPhoto{ID: uuid.New(), URL: srv.URL + "/fp/front.jpg?w=1024"}
	res := w.Process(context.Background(), photo)
	if res.Error != nil {
		t.Fatalf("process failed: %v", res.Error)
	}

	hash := sha("jpeg-bytes")
	wantKey := "photos/" + hash[:2] + "/" + hash + ".jpg"
	if res.S3Key != wantKey || res.ContentHash != hash || res.Size != int64(len("jpeg-bytes")) {
		t.Fatalf("unexpected result %+v", res)
	}
	if !bytes.Equal(up.objects[wantKey], []byte("jpeg-bytes")) || up.types[wantKey] != "image/jpeg" {
		t.Fatalf("unexpected upload %q (%s)", up.objects[wantKey], up.types[wantKey])
	}

	// extension from content type when the path has none
	res = w.Process(context.Background(), &models.ListingPhoto{ID: uuid.New(), URL: srv.URL + "/fp/kitchen"})
	if res.Error != nil || !strings.HasSuffix(res.S3Key, ".webp") {
		t.Fatalf("expected webp key, got %+v", res)
	}
}

func TestMediaWorker_ProcessBatch(t *testing.T) {
	srv := photoServer(t)
	ok := models.ListingPhoto{ID: uuid.New(), URL: srv.URL + "/fp/front.jpg"}
	missing := models.ListingPhoto{ID: uuid.New(), URL: srv.URL + "/fp/gone.jpg", MirrorAttempts: 0}
	lastTry := models.ListingPhoto{ID: uuid.New(), URL: srv.URL + "/fp/gone.png", MirrorAttempts: models.MaxMirrorAttempts - 1}

	store := &fakePhotoStore{pending: []models.ListingPhoto{ok, missing, lastTry}}
	w := NewMediaWorker(store, &memoryUploader{}, srv.Client(), 2)
	w.pause = 0

	processed, failed := w.ProcessBatch(context.Background(), 10)
	if processed != 1 || failed != 2 {
		t.Fatalf("expected 1 uploaded and 2 failed, got %d/%d", processed, failed)
	}

	if u := store.updates[ok.ID]; u.status != models.MirrorStatusUploaded || u.s3Key == nil || u.hash != sha("jpeg-bytes") {
		t.Fatalf("unexpected update for uploaded photo %+v", u)
	}
	if u := store.updates[missing.ID]; u.status != models.MirrorStatusPending || u.attempts != 1 {
		t.Fatalf("expected retry to stay pending, got %+v", u)
	}
	if u := store.updates[lastTry.ID]; u.status != models.MirrorStatusFailed || u.attempts != models.MaxMirrorAttempts {
		t.Fatalf("expected final attempt to fail, got %+v", u)
	}
}

func TestMediaWorker_UploadError(t *testing.T) {
	srv := photoServer(t)
	photo := models.ListingPhoto{ID: uuid.New(), URL: srv.URL + "/fp/front.jpg"}
	store := &fakePhotoStore{pending: []models.ListingPhoto{photo}}
	w := NewMediaWorker(store, &memoryUploader{err: errors.New("bucket missing")}, srv.Client(), 1)

	if processed, failed := w.ProcessBatch(context.Background(), 10); processed != 0 || failed != 1 {
		t.Fatalf("expected upload failure, got %d/%d", processed, failed)
	}
	if u := store.updates[photo.ID]; u.status != models.MirrorStatusPending || u.attempts != 1 {
		t.Fatalf("unexpected update %+v", u)
	}
}

func TestGuessExtension(t *testing.T) {
	tests := []struct {
		url, contentType, want string
	}{
		{"https://photos.zillowstatic.com/fp/a.jpeg?w=1024", "", ".jpg"},
		{"https://photos.zillowstatic.com/fp/a.PNG", "image/jpeg", ".png"},
		{"https://photos.zillowstatic.com/fp/a", "image/gif", ".gif"},
		{"https://photos.zillowstatic.com/fp/a.svg", "", ".jpg"},
	}
	for _, tt := range tests {
		if got := guessExtension(tt.url, tt.contentType); got != tt.want {
			t.Errorf("guessExtension(%q, %q) = %q, want %q", tt.url, tt.contentType, got, tt.want)
		}
	}
}
