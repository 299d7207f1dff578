package db

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"
)

// Client reads the daemon's SQLite run history and leaves commands for it
type Client struct {
	sqlite *sql.DB
}

type SiteStats struct {
	SiteID         string
	LastRunAt      *time.Time
	LastRunStatus  string
	TotalRuns      int
	SuccessRate    float64
	AvgRunDuration int
}

type ScrapeRun struct {
	ID           int64
	SiteID       string
	URL          string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       string
	Strategy     string
	Attempts     int
	ErrorMessage string
}

type ScrapeLog struct {
	ID        int64
	RunID     *int64
	Timestamp time.Time
	Level     string
	Message   string
	SiteID    string
}

// timeLayouts covers what go-sqlite3 writes and what modernc hands back
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func New(sqlitePath string) (*Client, error) {
	sqliteDB, err := sql.Open("sqlite", sqlitePath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if err := sqliteDB.Ping(); err != nil {
		sqliteDB.Close()
		return nil, err
	}
	return &Client{sqlite: sqliteDB}, nil
}

func (c *Client) Close() error {
	return c.sqlite.Close()
}

func (c *Client) GetSiteStats() ([]SiteStats, error) {
	rows, err := c.sqlite.Query(`
		SELECT site_id, last_run_at, COALESCE(last_run_status, ''),
			COALESCE(total_runs, 0), COALESCE(success_rate, 0), COALESCE(avg_run_duration_sec, 0)
		FROM site_stats
		ORDER BY site_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []SiteStats
	for rows.Next() {
		var s SiteStats
		var lastRunAt sql.NullString
		if err := rows.Scan(&s.SiteID, &lastRunAt, &s.LastRunStatus,
			&s.TotalRuns, &s.SuccessRate, &s.AvgRunDuration); err != nil {
			return nil, err
		}
		s.LastRunAt = parseNullTime(lastRunAt)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// GetRecentRuns returns runs newest first; failedOnly hides completed ones
func (c *Client) GetRecentRuns(limit int, failedOnly bool) ([]ScrapeRun, error) {
	query := `
		SELECT id, COALESCE(site_id, ''), COALESCE(url, ''), started_at, finished_at,
			COALESCE(status, ''), COALESCE(strategy, ''), COALESCE(attempts, 0), COALESCE(error_message, '')
		FROM scrape_runs`
	if failedOnly {
		query += ` WHERE status = 'failed'`
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`

	rows, err := c.sqlite.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ScrapeRun
	for rows.Next() {
		var r ScrapeRun
		var startedAt, finishedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.SiteID, &r.URL, &startedAt, &finishedAt,
			&r.Status, &r.Strategy, &r.Attempts, &r.ErrorMessage); err != nil {
			return nil, err
		}
		r.StartedAt = parseTime(startedAt.String)
		r.FinishedAt = parseNullTime(finishedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRecentLogs returns logs newest first. An empty level or "ALL" means no filter.
func (c *Client) GetRecentLogs(limit int, level string) ([]ScrapeLog, error) {
	var rows *sql.Rows
	var err error

	if level != "" && level != "ALL" {
		rows, err = c.sqlite.Query(`
			SELECT id, run_id, timestamp, level, message, COALESCE(site_id, '')
			FROM scrape_logs
			WHERE UPPER(level) = UPPER(?)
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		`, level, limit)
	} else {
		rows, err = c.sqlite.Query(`
			SELECT id, run_id, timestamp, level, message, COALESCE(site_id, '')
			FROM scrape_logs
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []ScrapeLog
	for rows.Next() {
		var l ScrapeLog
		var runID sql.NullInt64
		var ts sql.NullString
		if err := rows.Scan(&l.ID, &runID, &ts, &l.Level, &l.Message, &l.SiteID); err != nil {
			return nil, err
		}
		if runID.Valid {
			id := runID.Int64
			l.RunID = &id
		}
		l.Timestamp = parseTime(ts.String)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (c *Client) GetPendingCommandCount() (int, error) {
	var n int
	err := c.sqlite.QueryRow(`SELECT COUNT(*) FROM commands WHERE processed_at IS NULL`).Scan(&n)
	return n, err
}

// SendCommand queues a command for the daemon's scheduler
func (c *Client) SendCommand(command string, params map[string]string) error {
	payload := []byte("{}")
	if len(params) > 0 {
		var err error
		if payload, err = json.Marshal(params); err != nil {
			return err
		}
	}
	_, err := c.sqlite.Exec(`
		INSERT INTO commands (command, params, created_at)
		VALUES (?, ?, datetime('now'))
	`, command, string(payload))
	return err
}

func (c *Client) ScrapeWatch() error {
	return c.SendCommand("scrape_watch", nil)
}

// RescrapeURL asks the daemon to scrape one URL again, e.g. a failed run
func (c *Client) RescrapeURL(url string) error {
	return c.SendCommand("scrape_url", map[string]string{"url": url})
}

func (c *Client) RunMedia() error {
	return c.SendCommand("run_media", nil)
}
