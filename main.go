package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"listing_scrooper/api"
	"listing_scrooper/config"
	"listing_scrooper/extractor"
	"listing_scrooper/httputil"
	"listing_scrooper/logging"
	"listing_scrooper/scheduler"
	"listing_scrooper/scraper"
	"listing_scrooper/services"
	"listing_scrooper/storage"
	"listing_scrooper/workers"
)

var (
	listingURL = flag.String("url", "", "Scrape one listing URL, print the record as JSON and exit")
	lenient    = flag.Bool("lenient", false, "Accept records missing price, bedrooms or bathrooms (with -url)")
	scrapeNow  = flag.Bool("scrape", false, "Rescrape every watch list once and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))

	clients, err := httputil.NewClients(cfg.Fetch)
	if err != nil {
		log.Fatalf("Failed to create http clients: %v", err)
	}

	if *listingURL != "" {
		os.Exit(scrapeOne(cfg, clients, *listingURL, *lenient))
	}

	logFile, err := logging.Setup(cfg.LogFile, 0)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting listing_scrooper...")
	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for _, id := range cfg.SiteIDs() {
		site := cfg.Sites[id]
		log.Printf("  - %s (%s): %d watch urls", site.Name, id, len(site.Watch))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	orchestrator, err := scraper.NewOrchestrator(cfg, clients, sqliteStore)
	if err != nil {
		log.Fatalf("Failed to build sites: %v", err)
	}

	// Postgres is optional; without it records are returned but not saved
	var listingStore services.ListingStore
	var pgStore *storage.PostgresStore
	if cfg.DatabaseURL != "" {
		pgStore, err = storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare Postgres schema: %v", err)
		}
		listingStore = pgStore
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))
	} else {
		log.Println("DATABASE_URL not set, listings will not be saved")
	}

	listingService := services.NewListingService(orchestrator, listingStore)

	if *scrapeNow {
		log.Println("Running watch list scrape...")
		stats := listingService.ScrapeMany(ctx, listingService.WatchURLs(), cfg.Scheduler.Workers)
		log.Printf("Scrape complete: %d scraped, %d failed", stats.Scraped, stats.Failed)
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg.Scheduler, listingService, sqliteStore)
	sched.SetCommandQueue(sqliteStore)

	if pgStore != nil {
		var uploader workers.Uploader = workers.NewNoOpUploader()
		if cfg.S3.Enabled() {
			s3Uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
			if err != nil {
				log.Fatalf("Failed to create S3 uploader: %v", err)
			}
			uploader = s3Uploader
			log.Printf("Mirroring photos to s3://%s", cfg.S3.Bucket)
		} else {
			log.Println("S3_BUCKET not set, photo mirror runs without uploading")
		}
		mediaWorker := workers.NewMediaWorker(pgStore, uploader, clients.Media, cfg.Media.Workers)
		go mediaWorker.Run(ctx, cfg.Media.BatchSize, cfg.Media.Interval)
		sched.SetMediaWorker(mediaWorker)
		log.Println("Media worker started")
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(listingService, 2*time.Minute).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	sched.Stop()
	cancel()
	log.Println("Goodbye!")
}

// scrapeOne runs a single scrape without any stores and prints the record
func scrapeOne(cfg *config.Config, clients *httputil.Clients, target string, lenient bool) int {
	orchestrator, err := scraper.NewOrchestrator(cfg, clients, nil)
	if err != nil {
		log.Printf("Failed to build sites: %v", err)
		return 1
	}

	var policy extractor.GatePolicy
	if lenient {
		policy = extractor.GateLenient
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := orchestrator.ScrapeWithPolicy(ctx, target, policy)
	if err != nil {
		log.Printf("Scrape failed: %v", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Record); err != nil {
		log.Printf("Failed to encode record: %v", err)
		return 1
	}
	return 0
}

// maskConnectionString hides the password of a connection URL for logging
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	return u.Redacted()
}
