package views

import (
	"fmt"
	"strings"

	"tui/db"
	"tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var logLevels = []string{"ALL", "DEBUG", "INFO", "WARN", "ERROR"}

type logsMsg struct {
	logs []db.ScrapeLog
}

type Logs struct {
	db            *db.Client
	width, height int
	logs          []db.ScrapeLog
	levelIndex    int
	scrollOffset  int
}

func NewLogs(dbClient *db.Client) Logs {
	return Logs{db: dbClient}
}

func (l Logs) Init() tea.Cmd {
	return l.Refresh()
}

func (l Logs) Refresh() tea.Cmd {
	return func() tea.Msg {
		logs, _ := l.db.GetRecentLogs(500, logLevels[l.levelIndex])
		return logsMsg{logs}
	}
}

func (l Logs) SetSize(w, h int) Logs {
	l.width = w
	l.height = h
	return l
}

func (l Logs) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case logsMsg:
		l.logs = msg.logs
		l.scrollOffset = min(l.scrollOffset, l.maxScroll())

	case tea.KeyMsg:
		switch msg.String() {
		case "left", "h":
			if l.levelIndex > 0 {
				l.levelIndex--
				return l, l.Refresh()
			}
		case "right", "l":
			if l.levelIndex < len(logLevels)-1 {
				l.levelIndex++
				return l, l.Refresh()
			}
		case "up", "k":
			l.scrollOffset = max(l.scrollOffset-1, 0)
		case "down", "j":
			l.scrollOffset = min(l.scrollOffset+1, l.maxScroll())
		case "g":
			l.scrollOffset = 0
		case "G":
			l.scrollOffset = l.maxScroll()
		}
	}
	return l, nil
}

func (l Logs) visibleLines() int {
	if v := l.height - 6; v > 1 {
		return v
	}
	return 10
}

func (l Logs) maxScroll() int {
	return max(len(l.logs)-l.visibleLines(), 0)
}

func (l Logs) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("Logs"),
		l.renderFilter(),
		"",
		l.renderLogs(),
	)
}

func (l Logs) renderFilter() string {
	var parts []string
	for i, level := range logLevels {
		if i == l.levelIndex {
			parts = append(parts, styles.TabActive.Render("["+level+"]"))
		} else {
			parts = append(parts, styles.TabInactive.Render(level))
		}
	}
	return "Filter: " + strings.Join(parts, " ") + "  (←/→ to change)"
}

func (l Logs) renderLogs() string {
	if len(l.logs) == 0 {
		return styles.Muted.Render("No logs")
	}

	start := l.scrollOffset
	end := min(start+l.visibleLines(), len(l.logs))

	lines := []string{styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", start+1, end, len(l.logs)))}
	for i := start; i < end; i++ {
		lines = append(lines, l.formatLog(l.logs[i]))
	}
	return strings.Join(lines, "\n")
}

func (l Logs) formatLog(log db.ScrapeLog) string {
	ts := log.Timestamp.Local().Format("15:04:05")
	level := strings.ToUpper(log.Level)

	site := ""
	if log.SiteID != "" {
		site = fmt.Sprintf("[%s] ", log.SiteID)
	}

	msg := log.Message
	if maxLen := l.width - 25; maxLen > 3 && len(msg) > maxLen {
		msg = msg[:maxLen-3] + "..."
	}

	return fmt.Sprintf("%s %s %s%s",
		styles.Muted.Render(ts),
		styles.ForStatus(log.Level).Render(fmt.Sprintf("%-5s", level)),
		styles.Muted.Render(site),
		msg,
	)
}
