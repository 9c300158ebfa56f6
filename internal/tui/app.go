// Package tui implements the pulse watch view.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opencode-ai/pulse/internal/scheduler"
	"github.com/opencode-ai/pulse/internal/tui/components"
	"github.com/opencode-ai/pulse/internal/tui/styles"
)

// Source is what the watch view reads and controls.
type Source interface {
	Snapshot() []scheduler.ActionInfo
	Stats() scheduler.SchedulerStats
	Schedule(name string) error
	Deschedule(name string) error
	RequestStop(name string) error
	Pause() error
	Resume() error
}

// Config configures the watch view.
type Config struct {
	Source          Source
	Theme           string
	RefreshInterval time.Duration
}

// Run launches the watch view and blocks until the user quits.
func Run(cfg Config) error {
	program := tea.NewProgram(initialModel(cfg), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

type model struct {
	source   Source
	refresh  time.Duration
	width    int
	height   int
	styles   styles.Styles
	actions  []scheduler.ActionInfo
	stats    scheduler.SchedulerStats
	cursor   int
	status   string
	statusOK bool
	now      time.Time
}

const (
	minWidth  = 60
	minHeight = 10
)

func initialModel(cfg Config) model {
	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = 250 * time.Millisecond
	}
	m := model{
		source:  cfg.Source,
		refresh: refresh,
		styles:  styles.BuildStyles(styles.ThemeByName(cfg.Theme)),
		now:     time.Now(),
	}
	return m.reload()
}

func (m model) Init() tea.Cmd {
	return tickCmd(m.refresh)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.actions)-1 {
				m.cursor++
			}
		case "s":
			m = m.apply("scheduled", m.source.Schedule)
		case "d":
			m = m.apply("descheduled", m.source.Deschedule)
		case "x":
			m = m.apply("stop requested for", m.source.RequestStop)
		case "p":
			m = m.togglePause()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.now = time.Time(msg)
		m = m.reload()
		return m, tickCmd(m.refresh)
	}
	return m, nil
}

func (m model) reload() model {
	if m.source == nil {
		return m
	}
	m.actions = m.source.Snapshot()
	m.stats = m.source.Stats()
	if m.cursor >= len(m.actions) {
		m.cursor = max(len(m.actions)-1, 0)
	}
	return m
}

func (m model) selected() (scheduler.ActionInfo, bool) {
	if m.cursor < 0 || m.cursor >= len(m.actions) {
		return scheduler.ActionInfo{}, false
	}
	return m.actions[m.cursor], true
}

func (m model) apply(verb string, op func(string) error) model {
	action, ok := m.selected()
	if !ok {
		return m
	}
	if err := op(action.Name); err != nil {
		m.status, m.statusOK = err.Error(), false
	} else {
		m.status, m.statusOK = fmt.Sprintf("%s %s", verb, action.Name), true
	}
	return m.reload()
}

func (m model) togglePause() model {
	var err error
	if m.stats.Paused {
		err = m.source.Resume()
	} else {
		err = m.source.Pause()
	}
	if err != nil {
		m.status, m.statusOK = err.Error(), false
	} else if m.stats.Paused {
		m.status, m.statusOK = "resumed", true
	} else {
		m.status, m.statusOK = "paused", true
	}
	return m.reload()
}

func (m model) View() string {
	if m.width > 0 && m.height > 0 && (m.width < minWidth || m.height < minHeight) {
		return joinLines(m.smallViewLines()) + "\n"
	}

	lines := []string{
		m.styles.Title.Render("pulse watch"),
		m.styles.Muted.Render(m.statsLine()),
		"",
	}

	if len(m.actions) == 0 {
		lines = append(lines, components.EmptyActions().Render(m.styles))
	} else {
		lines = append(lines, m.styles.Muted.Render(fmt.Sprintf("  %-20s %-18s %10s %10s %10s", "ACTION", "STATE", "START", "STOP", "INTERVAL")))
		for i, a := range m.actions {
			lines = append(lines, m.actionLine(i, a))
		}
	}

	if m.status != "" {
		style := m.styles.Success
		if !m.statusOK {
			style = m.styles.Error
		}
		lines = append(lines, "", style.Render(m.status))
	}

	lines = append(lines, "", m.styles.Muted.Render("Keys: j/k move | s schedule | d deschedule | x stop | p pause | q quit"))
	return joinLines(lines) + "\n"
}

func (m model) actionLine(i int, a scheduler.ActionInfo) string {
	name := a.Name
	if a.Dependent {
		name = "  " + name
	}
	cursor := "  "
	if i == m.cursor {
		cursor = m.styles.Selected.Render("> ")
	}
	badge := components.RenderActionStateBadge(m.styles, a.State, a.Dependent)
	pad := max(18-lipgloss.Width(badge), 0)
	flags := ""
	if a.Frozen {
		flags += " frozen"
	}
	if a.StopRequested {
		flags += " stop-requested"
	}
	return fmt.Sprintf("%s%-20s %s%s %10d %10d %10s%s",
		cursor, name, badge, strings.Repeat(" ", pad),
		a.LastStart, a.LastStop, formatMillis(a.Interval), m.styles.Muted.Render(flags))
}

func (m model) statsLine() string {
	state := "running"
	switch {
	case !m.stats.Running:
		state = "stopped"
	case m.stats.Paused:
		state = "paused"
	}
	return fmt.Sprintf("%s | t=%dms | passes %d | scheduled %d | starts %d | stops %d",
		state, m.stats.LastPassMillis, m.stats.Passes, m.stats.Scheduled, m.stats.Starts, m.stats.Stops)
}

func (m model) smallViewLines() []string {
	message := fmt.Sprintf("Terminal too small (%dx%d).", m.width, m.height)
	hint := fmt.Sprintf("Resize to at least %dx%d.", minWidth, minHeight)

	return []string{
		m.styles.Warning.Render(message),
		m.styles.Muted.Render(hint),
		m.styles.Muted.Render("Press q to quit."),
	}
}

func formatMillis(ms uint64) string {
	if ms == 0 {
		return "-"
	}
	return (time.Duration(ms) * time.Millisecond).String()
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

type tickMsg time.Time

func tickCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
