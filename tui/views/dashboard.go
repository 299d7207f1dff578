package views

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"tui/db"
	"tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

type dashboardDataMsg struct {
	stats   []db.SiteStats
	pending int
}

type logTailMsg struct {
	lines   []string
	modTime time.Time
}

// Dashboard shows per-site stats and the tail of the daemon log
type Dashboard struct {
	db            *db.Client
	width, height int
	stats         []db.SiteStats
	pending       int
	logLines      []string
	logPath       string
	logScroll     int // 0 = newest
	logBuffer     int
	logModTime    time.Time
}

func NewDashboard(dbClient *db.Client, logPath string) Dashboard {
	if logPath == "" {
		logPath = "daemon.log"
	}
	return Dashboard{
		db:        dbClient,
		logPath:   logPath,
		logBuffer: 200,
	}
}

func (d Dashboard) Init() tea.Cmd {
	return tea.Batch(d.Refresh(), d.RefreshLog())
}

func (d Dashboard) Refresh() tea.Cmd {
	return func() tea.Msg {
		stats, _ := d.db.GetSiteStats()
		pending, _ := d.db.GetPendingCommandCount()
		return dashboardDataMsg{stats, pending}
	}
}

func (d Dashboard) RefreshLog() tea.Cmd {
	return func() tea.Msg {
		lines, modTime := readLastLines(d.logPath, d.logBuffer)
		return logTailMsg{lines, modTime}
	}
}

func readLastLines(path string, n int) ([]string, time.Time) {
	f, err := os.Open(path)
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if len(lines) == 0 {
		return []string{"(empty log)"}, info.ModTime()
	}
	return lines, info.ModTime()
}

func (d Dashboard) SetSize(w, h int) Dashboard {
	d.width = w
	d.height = h
	return d
}

func (d Dashboard) logViewport() int {
	if v := d.height - 12; v > 5 {
		return v
	}
	return 5
}

func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.stats = msg.stats
		d.pending = msg.pending
	case logTailMsg:
		d.logLines = msg.lines
		d.logModTime = msg.modTime
	case tea.KeyMsg:
		maxScroll := len(d.logLines) - d.logViewport()
		if maxScroll < 0 {
			maxScroll = 0
		}
		switch msg.String() {
		case "up", "k":
			d.logScroll = min(d.logScroll+1, maxScroll)
		case "down", "j":
			d.logScroll = max(d.logScroll-1, 0)
		case "pgup":
			d.logScroll = min(d.logScroll+10, maxScroll)
		case "pgdown":
			d.logScroll = max(d.logScroll-10, 0)
		case "home":
			d.logScroll = maxScroll
		case "end":
			d.logScroll = 0
		}
	}
	return d, nil
}

func (d Dashboard) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("Dashboard"),
		d.renderSiteCards(),
		"",
		d.renderLogTail(),
	)
}

func (d Dashboard) renderSiteCards() string {
	if len(d.stats) == 0 {
		return styles.Muted.Render("  No runs recorded yet")
	}

	var cards []string
	for _, s := range d.stats {
		lastRun := "never"
		if s.LastRunAt != nil {
			lastRun = humanize.Time(*s.LastRunAt)
		}
		status := s.LastRunStatus
		if status == "" {
			status = "-"
		}
		card := lipgloss.JoinVertical(lipgloss.Left,
			styles.StatValue.Render(s.SiteID),
			styles.StatLabel.Render("last run  ")+lastRun,
			styles.StatLabel.Render("status    ")+styles.ForStatus(status).Render(status),
			styles.StatLabel.Render("runs      ")+humanize.Comma(int64(s.TotalRuns)),
			styles.StatLabel.Render("success   ")+fmt.Sprintf("%.0f%%", s.SuccessRate*100),
			styles.StatLabel.Render("avg       ")+(time.Duration(s.AvgRunDuration)*time.Second).String(),
		)
		cards = append(cards, styles.SiteCard.Render(card))
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	queue := styles.Muted.Render(fmt.Sprintf("  %d command(s) waiting for the daemon", d.pending))
	return lipgloss.JoinVertical(lipgloss.Left, row, queue)
}

func (d Dashboard) renderLogTail() string {
	header := "Daemon log"
	if !d.logModTime.IsZero() {
		header += styles.Muted.Render("  updated " + humanize.Time(d.logModTime))
	}

	viewport := d.logViewport()
	end := len(d.logLines) - d.logScroll
	start := max(end-viewport, 0)

	lines := make([]string, 0, viewport)
	for _, line := range d.logLines[start:end] {
		if d.width > 10 && len(line) > d.width-4 {
			line = line[:d.width-7] + "..."
		}
		lines = append(lines, "  "+line)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		styles.TableHeader.Render(header),
		strings.Join(lines, "\n"),
	)
}
