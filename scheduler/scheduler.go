package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"listing_scrooper/config"
	"listing_scrooper/logging"
	"listing_scrooper/models"
	"listing_scrooper/services"
)

const commandPollInterval = 2 * time.Second

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// WatchScraper rescrapes watch-list URLs; *services.ListingService implements it
type WatchScraper interface {
	WatchURLs() []string
	ScrapeMany(ctx context.Context, urls []string, workers int) services.BatchStats
}

// CommandQueue is where the TUI leaves commands; *storage.SQLiteStore implements it
type CommandQueue interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
}

// RunHistory tells when a URL last scraped successfully; *storage.SQLiteStore implements it
type RunHistory interface {
	LastSuccess(url string) (time.Time, error)
}

type Scheduler struct {
	cfg     config.SchedulerConfig
	listing WatchScraper
	history RunHistory
	cron    *cron.Cron
	ticker  *time.Ticker
	stopCh  chan struct{}
	running sync.Mutex

	mediaWorker Triggerable
	commands    CommandQueue
}

// New creates a scheduler. history may be nil, in which case every watch
// URL is scraped on each run.
func New(cfg config.SchedulerConfig, listing WatchScraper, history RunHistory) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		listing: listing,
		history: history,
		cron:    cron.New(),
		stopCh:  make(chan struct{}),
	}
}

// SetMediaWorker registers the photo mirror to nudge after runs that saved photos
func (s *Scheduler) SetMediaWorker(media Triggerable) {
	s.mediaWorker = media
}

// SetCommandQueue enables polling for commands
func (s *Scheduler) SetCommandQueue(q CommandQueue) {
	s.commands = q
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.commands != nil {
		go s.pollCommands(ctx)
	}

	if s.cfg.Cron != "" {
		logging.Infof("Starting scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			s.RunOnce(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		logging.Infof("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.RunOnce(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		logging.Infof("No schedule configured, watch lists will not be rescraped")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// RunOnce rescrapes the due watch URLs. Overlapping runs are skipped.
func (s *Scheduler) RunOnce(ctx context.Context) services.BatchStats {
	if !s.running.TryLock() {
		logging.Warnf("Scheduled run skipped, previous run still in progress")
		return services.BatchStats{}
	}
	defer s.running.Unlock()

	urls := s.dueURLs()
	if len(urls) == 0 {
		logging.Debugf("Scheduled run: nothing due")
		return services.BatchStats{}
	}

	logging.Infof("Scheduled run: scraping %d watch urls", len(urls))
	stats := s.listing.ScrapeMany(ctx, urls, s.cfg.Workers)
	logging.Infof("Scheduled run: %d scraped, %d failed, %d new listings, %d photos",
		stats.Scraped, stats.Failed, stats.NewListings, stats.PhotosAdded)

	if stats.PhotosAdded > 0 && s.mediaWorker != nil {
		s.mediaWorker.Trigger()
	}
	return stats
}

func (s *Scheduler) dueURLs() []string {
	all := s.listing.WatchURLs()
	if s.history == nil || s.cfg.MinAge <= 0 {
		return all
	}

	var due []string
	for _, u := range all {
		last, err := s.history.LastSuccess(u)
		if err != nil {
			logging.Warnf("Scheduled run: last success for %s: %v", u, err)
			due = append(due, u)
			continue
		}
		if last.IsZero() || time.Since(last) >= s.cfg.MinAge {
			due = append(due, u)
		}
	}
	return due
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(commandPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ProcessCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ProcessCommands handles every pending command once
func (s *Scheduler) ProcessCommands(ctx context.Context) {
	cmds, err := s.commands.GetPendingCommands()
	if err != nil {
		logging.Errorf("Error getting commands: %v", err)
		return
	}

	for i := range cmds {
		cmd := &cmds[i]
		logging.Infof("Processing command: %s", cmd.Command)
		if err := s.handleCommand(ctx, cmd); err != nil {
			logging.Errorf("Command %d (%s) error: %v", cmd.ID, cmd.Command, err)
		}
		if err := s.commands.MarkCommandProcessed(cmd.ID); err != nil {
			logging.Errorf("Error marking command processed: %v", err)
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdScrapeWatch:
		s.RunOnce(ctx)
		return nil
	case models.CmdScrapeURL:
		params, err := cmd.ParseParams()
		if err != nil {
			return fmt.Errorf("parse params: %w", err)
		}
		if params.URL == "" {
			return fmt.Errorf("%s without url", cmd.Command)
		}
		stats := s.listing.ScrapeMany(ctx, []string{params.URL}, 1)
		if stats.Failed > 0 {
			return fmt.Errorf("scrape %s failed", params.URL)
		}
		if stats.PhotosAdded > 0 && s.mediaWorker != nil {
			s.mediaWorker.Trigger()
		}
		return nil
	case models.CmdRunMedia:
		if s.mediaWorker == nil {
			return fmt.Errorf("media worker not running")
		}
		s.mediaWorker.Trigger()
		logging.Infof("Media worker triggered via command")
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
}
