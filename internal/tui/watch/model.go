// Package watch implements the live event tail TUI for a running bridge.
// It follows the SSE stream at {webhookPath}/events and polls the GET
// descriptor for uptime and configuration state.
package watch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jzakirov/openclaw-smartlead/internal/events"
)

const maxLogLines = 200

// Theme centralizes styling for the watch TUI.
type Theme struct {
	Title     lipgloss.Style
	Header    lipgloss.Style
	Dim       lipgloss.Style
	OK        lipgloss.Style
	Warn      lipgloss.Style
	Failed    lipgloss.Style
	Duplicate lipgloss.Style
}

func defaultTheme() Theme {
	return Theme{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Padding(0, 1),
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#61AFEF")),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		OK:        lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Warn:      lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		Failed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		Duplicate: lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
	}
}

// Model is the BubbleTea model for the watch TUI.
type Model struct {
	baseURL string
	secret  string

	width  int
	height int

	health    healthMsg
	healthy   bool
	connected bool
	eventLog  []events.Event
	lastError string

	spinner spinner.Model
	theme   Theme

	hubEvents chan events.Event
}

// New creates a watch model. baseURL is the full webhook URL, e.g.
// http://127.0.0.1:8788/smartlead/webhook.
func New(baseURL, secret string) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secret:    secret,
		spinner:   sp,
		theme:     defaultTheme(),
		hubEvents: make(chan events.Event, 64),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.baseURL, m.secret, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchHealth(m.baseURL, m.secret) },
		m.spinner.Tick,
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case healthMsg:
		m.health = msg
		m.healthy = msg.OK
		m.lastError = ""

	case eventMsg:
		m.connected = true
		m.eventLog = append(m.eventLog, events.Event(msg))
		if len(m.eventLog) > maxLogLines {
			m.eventLog = m.eventLog[len(m.eventLog)-maxLogLines:]
		}
		return m, receiveNextEvent(m.hubEvents)

	case sseDisconnectedMsg:
		m.connected = false
		return m, reconnectAfter(2 * time.Second)

	case reconnectMsg:
		return m, subscribeToEvents(m.baseURL, m.secret, m.hubEvents)

	case tickMsg:
		return m, tea.Batch(
			func() tea.Msg { return fetchHealth(m.baseURL, m.secret) },
			tea.Tick(5*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		)

	case errMsg:
		m.healthy = false
		m.lastError = msg.Error()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder

	title := m.health.Plugin
	if title == "" {
		title = "smartlead-bridge"
	}
	b.WriteString(m.theme.Title.Render(title+" watch") + "\n")

	b.WriteString(m.statusLine() + "\n\n")

	b.WriteString(m.theme.Header.Render(fmt.Sprintf("%-10s %-15s %-14s %s", "TIME", "KIND", "EVENT", "LEAD")) + "\n")

	visible := m.eventLog
	if rows := m.height - 6; rows > 0 && len(visible) > rows {
		visible = visible[len(visible)-rows:]
	}
	for i := len(visible) - 1; i >= 0; i-- {
		b.WriteString(m.eventLine(visible[i]) + "\n")
	}
	if len(visible) == 0 {
		b.WriteString(m.theme.Dim.Render("waiting for events...") + "\n")
	}

	b.WriteString("\n" + m.theme.Dim.Render("q: quit"))
	return b.String()
}

func (m *Model) statusLine() string {
	var parts []string

	if m.healthy {
		parts = append(parts, m.theme.OK.Render("● up"),
			m.theme.Dim.Render(fmt.Sprintf("uptime %s", (time.Duration(m.health.UptimeSeconds)*time.Second).String())))
	} else {
		parts = append(parts, m.theme.Failed.Render("● unreachable"))
	}

	if m.connected {
		parts = append(parts, m.theme.OK.Render("sse connected"))
	} else {
		parts = append(parts, m.spinner.View()+m.theme.Warn.Render(" connecting"))
	}

	if m.healthy && !m.health.ForwardConfigured {
		parts = append(parts, m.theme.Warn.Render("forwarding disabled"))
	}

	if m.lastError != "" {
		parts = append(parts, m.theme.Failed.Render(m.lastError))
	}

	return strings.Join(parts, "  ")
}

func (m *Model) eventLine(ev events.Event) string {
	var summary struct {
		EventType string `json:"event_type"`
		LeadEmail string `json:"lead_email"`
		Detail    string `json:"detail"`
	}
	_ = json.Unmarshal(ev.Data, &summary)

	kindStyle := m.theme.Dim
	switch ev.Kind {
	case events.KindForwarded:
		kindStyle = m.theme.OK
	case events.KindForwardFailed:
		kindStyle = m.theme.Failed
	case events.KindReceived:
		kindStyle = m.theme.Warn
	case events.KindDuplicate, events.KindIgnored:
		kindStyle = m.theme.Duplicate
	}

	line := fmt.Sprintf("%-10s %-15s %-14s %s",
		ev.At.Local().Format("15:04:05"),
		ev.Kind,
		summary.EventType,
		summary.LeadEmail,
	)
	if summary.Detail != "" {
		line += " " + m.theme.Dim.Render(summary.Detail)
	}
	return kindStyle.Render(line)
}

// Run starts the TUI and blocks until quit.
func Run(baseURL, secret string) error {
	p := tea.NewProgram(New(baseURL, secret))
	_, err := p.Run()
	return err
}
