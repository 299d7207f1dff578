package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdScrapeWatch CommandType = "scrape_watch"
	CmdScrapeURL   CommandType = "scrape_url"
	CmdRunMedia    CommandType = "run_media"
)

// Command is a request left in SQLite for the daemon, usually by the TUI
type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	URL string `json:"url,omitempty"`
}

// ParseParams decodes Params; a missing payload gives zero params
func (c *Command) ParseParams() (*CommandParams, error) {
	if c.Params == nil || string(c.Params) == "null" {
		return &CommandParams{}, nil
	}
	var params CommandParams
	if err := json.Unmarshal(c.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}
