package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"listing_scrooper/extractor"
	"listing_scrooper/logging"
	"listing_scrooper/models"
	"listing_scrooper/scraper"
	"listing_scrooper/services"
)

const maxRequestBytes = 64 << 10

// ListingScraper is what the handlers call; *services.ListingService
// implements it.
type ListingScraper interface {
	ScrapeRecord(ctx context.Context, listingURL string, policy extractor.GatePolicy) (*models.ListingRecord, error)
	Listing(ctx context.Context, fingerprint string) (*services.ListingDetails, error)
}

type Server struct {
	scraper ListingScraper
	router  *mux.Router
	timeout time.Duration
}

type scrapeRequest struct {
	URL     string `json:"url"`
	Lenient bool   `json:"lenient"`
}

type scrapeResponse struct {
	Success bool                  `json:"success"`
	Data    *models.ListingRecord `json:"data"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NewServer builds the router. timeout bounds one scrape request; 0 means
// the client's context alone.
func NewServer(s ListingScraper, timeout time.Duration) *Server {
	srv := &Server{scraper: s, router: mux.NewRouter(), timeout: timeout}

	srv.router.Use(corsMiddleware)
	for _, p := range []string{"/scrape-listing", "/api/scrape-listing"} {
		srv.router.HandleFunc(p, srv.handleScrape).Methods(http.MethodPost)
		srv.router.HandleFunc(p, handlePreflight).Methods(http.MethodOptions)
	}
	for _, p := range []string{"/listings/{fingerprint}", "/api/listings/{fingerprint}"} {
		srv.router.HandleFunc(p, srv.handleGetListing).Methods(http.MethodGet)
		srv.router.HandleFunc(p, handlePreflight).Methods(http.MethodOptions)
	}
	srv.router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	srv.router.MethodNotAllowedHandler = corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	}))

	return srv
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		next.ServeHTTP(w, r)
	})
}

func handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body", Details: err.Error()})
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing URL"})
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var policy extractor.GatePolicy
	if req.Lenient {
		policy = extractor.GateLenient
	}

	rec, err := s.scraper.ScrapeRecord(ctx, req.URL, policy)
	if err != nil {
		status, resp := errorStatus(err)
		logging.Warnf("api: scrape %s: %d %v", req.URL, status, err)
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, scrapeResponse{Success: true, Data: rec})
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	fingerprint := mux.Vars(r)["fingerprint"]

	details, err := s.scraper.Listing(r.Context(), fingerprint)
	if errors.Is(err, services.ErrNoStore) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Listing storage not configured"})
		return
	}
	if err != nil {
		logging.Warnf("api: get listing %s: %v", fingerprint, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal error", Details: err.Error()})
		return
	}
	if details == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Listing not found"})
		return
	}

	writeJSON(w, http.StatusOK, details)
}

func errorStatus(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, extractor.ErrMalformedInput):
		return http.StatusBadRequest, errorResponse{Error: "Invalid URL", Details: err.Error()}
	case errors.Is(err, scraper.ErrUnknownSite):
		return http.StatusBadRequest, errorResponse{Error: "Unsupported listing site", Details: err.Error()}
	case errors.Is(err, scraper.ErrNoDataExtracted):
		return http.StatusUnprocessableEntity, errorResponse{Error: "Failed to scrape listing", Details: err.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "Internal error", Details: err.Error()}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Errorf("api: encode response: %v", err)
	}
}
