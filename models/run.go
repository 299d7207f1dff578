package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun records one Scrape call across all its fetch strategies
type ScrapeRun struct {
	ID           int64      `json:"id" db:"id"`
	SiteID       string     `json:"site_id" db:"site_id"`
	URL          string     `json:"url" db:"url"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
	Status       RunStatus  `json:"status" db:"status"`
	Strategy     string     `json:"strategy" db:"strategy"` // strategy that produced the record
	Attempts     int        `json:"attempts" db:"attempts"`
	ErrorMessage string     `json:"error_message" db:"error_message"`
}

// SiteStats is the per-site rollup of scrape_runs
type SiteStats struct {
	SiteID            string     `json:"site_id" db:"site_id"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalRuns         int        `json:"total_runs" db:"total_runs"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}
