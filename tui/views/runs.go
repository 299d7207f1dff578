package views

import (
	"fmt"
	"strings"
	"time"

	"tui/db"
	"tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

type runsMsg struct {
	runs []db.ScrapeRun
}

// Runs lists recent scrape runs; the selected run's URL can be rescraped
type Runs struct {
	db            *db.Client
	width, height int
	runs          []db.ScrapeRun
	selectedRow   int
	failedOnly    bool
}

func NewRuns(dbClient *db.Client) Runs {
	return Runs{db: dbClient}
}

func (r Runs) Init() tea.Cmd {
	return r.Refresh()
}

func (r Runs) Refresh() tea.Cmd {
	return func() tea.Msg {
		runs, _ := r.db.GetRecentRuns(200, r.failedOnly)
		return runsMsg{runs}
	}
}

func (r Runs) SetSize(w, h int) Runs {
	r.width = w
	r.height = h
	return r
}

// SelectedURL is the URL of the highlighted run, or "" when there is none
func (r Runs) SelectedURL() string {
	if r.selectedRow < len(r.runs) {
		return r.runs[r.selectedRow].URL
	}
	return ""
}

func (r Runs) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runsMsg:
		r.runs = msg.runs
		if r.selectedRow >= len(r.runs) {
			r.selectedRow = 0
		}

	case tea.KeyMsg:
		last := len(r.runs) - 1
		switch msg.String() {
		case "up", "k":
			r.selectedRow = max(r.selectedRow-1, 0)
		case "down", "j":
			r.selectedRow = max(min(r.selectedRow+1, last), 0)
		case "pgup", "ctrl+u":
			r.selectedRow = max(r.selectedRow-10, 0)
		case "pgdown", "ctrl+d":
			r.selectedRow = max(min(r.selectedRow+10, last), 0)
		case "home", "g":
			r.selectedRow = 0
		case "end", "G":
			r.selectedRow = max(last, 0)
		case "f":
			r.failedOnly = !r.failedOnly
			r.selectedRow = 0
			return r, r.Refresh()
		}
	}
	return r, nil
}

func (r Runs) visibleRows() int {
	if v := r.height - 8; v > 5 {
		return v
	}
	return 5
}

func (r Runs) View() string {
	title := "Runs"
	if r.failedOnly {
		title += " (failed only)"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render(title),
		r.renderTable(),
		"",
		r.renderDetail(),
	)
}

func (r Runs) renderTable() string {
	if len(r.runs) == 0 {
		return styles.Muted.Render("  No runs")
	}

	header := styles.TableHeader.Render(fmt.Sprintf("  %-10s %-10s %-16s %-4s %-14s %s",
		"SITE", "STATUS", "STRATEGY", "TRY", "STARTED", "URL"))

	visible := r.visibleRows()
	start := 0
	if r.selectedRow >= visible {
		start = r.selectedRow - visible + 1
	}
	end := min(start+visible, len(r.runs))

	urlWidth := r.width - 64
	if urlWidth < 20 {
		urlWidth = 20
	}

	lines := []string{header}
	for i := start; i < end; i++ {
		run := r.runs[i]
		url := run.URL
		if len(url) > urlWidth {
			url = url[:urlWidth-3] + "..."
		}
		strategy := run.Strategy
		if strategy == "" {
			strategy = "-"
		}
		status := styles.ForStatus(run.Status).Render(fmt.Sprintf("%-10s", run.Status))
		line := fmt.Sprintf("  %-10s %s %-16s %-4d %-14s %s",
			run.SiteID, status, strategy, run.Attempts, humanize.Time(run.StartedAt), url)
		if i == r.selectedRow {
			line = styles.TableSelected.Render(line)
		}
		lines = append(lines, line)
	}
	lines = append(lines, styles.Muted.Render(fmt.Sprintf("  [%d of %d]  f toggle failed  u rescrape", r.selectedRow+1, len(r.runs))))
	return strings.Join(lines, "\n")
}

func (r Runs) renderDetail() string {
	if r.selectedRow >= len(r.runs) {
		return ""
	}
	run := r.runs[r.selectedRow]

	took := "still running"
	if run.FinishedAt != nil {
		took = run.FinishedAt.Sub(run.StartedAt).Round(100 * time.Millisecond).String()
	}
	lines := []string{
		styles.StatLabel.Render("url      ") + run.URL,
		styles.StatLabel.Render("started  ") + run.StartedAt.Local().Format("2006-01-02 15:04:05"),
		styles.StatLabel.Render("took     ") + took,
	}
	if run.ErrorMessage != "" {
		lines = append(lines, styles.StatLabel.Render("error    ")+styles.StatusError.Render(run.ErrorMessage))
	}
	return strings.Join(lines, "\n")
}
