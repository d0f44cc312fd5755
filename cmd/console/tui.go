package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/open-teleop/console/domain/connection"
	"github.com/open-teleop/console/domain/eventlog"
	"github.com/open-teleop/console/domain/teleop"
	customlog "github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/services"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TUICommand drives the console from the terminal. Terminals report key
// repeats but no key releases, so every movement key is a pulse.
type TUICommand struct {
	NoConnect bool `long:"no-connect" description:"Start disconnected"`
}

const (
	refreshInterval = 150 * time.Millisecond
	tuiLogLines     = 8
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	estopStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("160"))
)

var stateColors = map[connection.State]string{
	connection.Disconnected: "241",
	connection.Connecting:   "226",
	connection.Connected:    "46",
	connection.Streaming:    "51",
	connection.Error:        "196",
}

var severityColors = map[eventlog.Severity]string{
	eventlog.SeverityInfo:    "250",
	eventlog.SeveritySuccess: "46",
	eventlog.SeverityWarning: "208",
	eventlog.SeverityError:   "196",
}

// terminalKeys maps bubbletea key names to console key names.
var terminalKeys = map[string]string{
	"up":    "ArrowUp",
	"down":  "ArrowDown",
	"left":  "ArrowLeft",
	"right": "ArrowRight",
}

var speedKeys = map[string]teleop.SpeedLevel{
	"1": teleop.SpeedLow,
	"2": teleop.SpeedMedium,
	"3": teleop.SpeedHigh,
}

type refreshMsg time.Time

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

type consoleModel struct {
	console  services.ConsoleService
	snapshot services.Snapshot
	entries  []eventlog.Entry
	status   string
	width    int
	quitting bool
}

func newConsoleModel(console services.ConsoleService) consoleModel {
	m := consoleModel{console: console}
	m.pull()
	return m
}

// pull reads console state. It must not be called from a console observer.
func (m *consoleModel) pull() {
	if s, err := m.console.Snapshot(); err == nil {
		m.snapshot = s
	}
	if entries, err := m.console.Log(tuiLogLines); err == nil {
		m.entries = entries
	}
}

func (m *consoleModel) report(what string, err error) {
	if err != nil {
		m.status = fmt.Sprintf("%s: %v", what, err)
	} else {
		m.status = ""
	}
}

func (m consoleModel) Init() tea.Cmd {
	return refresh()
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case refreshMsg:
		m.pull()
		return m, refresh()

	case tea.KeyMsg:
		m.handleKey(msg.String())
		if m.quitting {
			return m, tea.Quit
		}
		m.pull()
	}
	return m, nil
}

func (m *consoleModel) handleKey(key string) {
	if level, ok := speedKeys[key]; ok {
		m.report("speed", m.console.SetSpeedLevel(level))
		return
	}

	switch key {
	case "ctrl+c":
		m.console.EmergencyStop()
		m.quitting = true
	case " ", "space", "esc":
		m.report("emergency stop", m.console.EmergencyStop())
	case "c":
		m.report("connect", m.console.Connect())
	case "x":
		m.report("disconnect", m.console.Disconnect())
	case "p":
		m.report("ping", m.console.Ping())
	case "r":
		m.report("camera reset", m.console.ResetCamera())
	case "v":
		if m.snapshot.Video == connection.Disconnected || m.snapshot.Video == connection.Error {
			m.report("video", m.console.StartVideo())
		} else {
			m.report("video", m.console.StopVideo())
		}
	default:
		if name, ok := terminalKeys[key]; ok {
			key = name
		}
		if _, err := m.console.PulseKey(key); err != nil {
			m.report("input", err)
		}
	}
}

func (m consoleModel) View() string {
	if m.quitting {
		return "Console stopped.\n"
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Open-Teleop Console"))
	sb.WriteString("\n\n")

	s := m.snapshot
	sb.WriteString(fmt.Sprintf("control %s   video %s   speed %s\n",
		renderState(s.Control), renderState(s.Video), s.SpeedLevel))

	last := "none"
	if s.LastCommand != nil {
		last = s.LastCommand.String()
	}
	held := "none"
	if len(s.Intents) > 0 {
		held = strings.Join(s.Intents, ", ")
	}
	sb.WriteString(statusStyle.Render(fmt.Sprintf("holding %s   last sent %s", held, last)))
	sb.WriteString("\n")
	if s.RetryPending {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("reconnecting (%d/%d)", s.RetryAttempts, s.MaxAttempts)))
		sb.WriteString("\n")
	}
	if m.status != "" {
		sb.WriteString(estopStyle.Render(m.status))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	lines := make([]string, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		at := time.UnixMilli(e.TimestampMs).Format("15:04:05")
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(severityColors[e.Severity]))
		lines = append(lines, style.Render(fmt.Sprintf("%s %s", at, e.Text)))
	}
	if len(lines) == 0 {
		lines = append(lines, statusStyle.Render("No events yet"))
	}
	box := boxStyle
	if m.width > 4 {
		box = box.Width(m.width - 4)
	}
	sb.WriteString(box.Render(strings.Join(lines, "\n")))
	sb.WriteString("\n")

	sb.WriteString(statusStyle.Render("wasd/arrows move  q/e rotate  space stop  1-3 speed  c connect  x disconnect  v video  p ping  r camera  ctrl+c quit"))
	sb.WriteString("\n")
	return sb.String()
}

func renderState(state connection.State) string {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(stateColors[state])).Render(string(state))
}

func (t *TUICommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Log lines would tear the alternate screen, so the terminal surface logs
	// to the rotated file only.
	var out io.Writer = io.Discard
	if cfg.Logging.LogPath != "" {
		out = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Logging.LogPath, "console.log"),
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAgeDays,
		}
	}
	logger := customlog.NewWriterLogger(cfg.Logging.Level, out)

	consoleApp, err := newConsoleApp(cfg, logger)
	if err != nil {
		return err
	}
	defer consoleApp.Close()

	if !t.NoConnect {
		if err := consoleApp.console.Connect(); err != nil {
			return err
		}
	}

	p := tea.NewProgram(newConsoleModel(consoleApp.console), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		consoleApp.console.EmergencyStop()
		return fmt.Errorf("error running terminal console: %w", err)
	}
	return nil
}
