// Package ui implements the terminal front end: connection controls, the
// live telemetry plot redrawn on a fixed tick, and the raw serial/flash log.
package ui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	plot "github.com/chriskim06/drawille-go"

	"flashmon/config"
	"flashmon/session"
	"flashmon/telemetry"
)

const (
	maxLogLines  = 500
	logTimestamp = "2006/01/02 15:04:05.000"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	connectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	plotStyle      = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
	logStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
)

type keyMap struct {
	Connect   key.Binding
	Flash     key.Binding
	ClearPlot key.Binding
	ClearLog  key.Binding
	Quit      key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Connect, k.Flash, k.ClearPlot, k.ClearLog, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Connect: key.NewBinding(
		key.WithKeys("ctrl+d"),
		key.WithHelp("ctrl+d", "connect/disconnect"),
	),
	Flash: key.NewBinding(
		key.WithKeys("ctrl+f"),
		key.WithHelp("ctrl+f", "flash firmware"),
	),
	ClearPlot: key.NewBinding(
		key.WithKeys("ctrl+x"),
		key.WithHelp("ctrl+x", "clear plot"),
	),
	ClearLog: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "clear log"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

type tickMsg time.Time

type flashDoneMsg struct {
	err error
}

// Model is the Bubble Tea model for the monitor.
type Model struct {
	sess *session.Session
	cfg  *config.Config

	canvas    plot.Canvas
	logView   viewport.Model
	portInput textinput.Model
	help      help.Model

	logLines []string
	legend   []telemetry.Sample
	info     map[string]string

	width    int
	height   int
	flashing bool
	lastErr  error
	quitting bool
}

// New creates the UI around an existing session.
func New(sess *session.Session, cfg *config.Config) Model {
	const (
		defaultWidth  = 80
		defaultHeight = 16
	)

	ti := textinput.New()
	ti.Placeholder = "/dev/ttyACM0"
	ti.SetValue(cfg.Port)
	ti.CharLimit = 64
	ti.Width = 24
	ti.Focus()

	canvas := plot.NewCanvas(defaultWidth, defaultHeight)
	canvas.ShowAxis = true

	vp := viewport.New(defaultWidth, 8)

	return Model{
		sess:      sess,
		cfg:       cfg,
		canvas:    canvas,
		logView:   vp,
		portInput: ti,
		help:      help.New(),
		info:      make(map[string]string),
	}
}

// Init starts the render tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), textinput.Blink)
}

// tick schedules the next render pass at the configured refresh interval.
func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Duration(m.cfg.RefreshMs)*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tickMsg:
		m.drainEvents()
		m.redrawPlot()
		return m, m.tick()

	case flashDoneMsg:
		m.flashing = false
		m.lastErr = msg.err
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			m.sess.Disconnect()
			m.cfg.Port = m.portInput.Value()
			return m, tea.Quit

		case key.Matches(msg, keys.Connect):
			return m.toggleConnection()

		case key.Matches(msg, keys.Flash):
			return m.startFlash()

		case key.Matches(msg, keys.ClearPlot):
			m.sess.Buffer().Clear()
			return m, nil

		case key.Matches(msg, keys.ClearLog):
			m.logLines = nil
			m.logView.SetContent("")
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.portInput, cmd = m.portInput.Update(msg)
	return m, cmd
}

func (m Model) toggleConnection() (tea.Model, tea.Cmd) {
	if m.sess.Connected() {
		m.sess.Disconnect()
		return m, nil
	}
	device := strings.TrimSpace(m.portInput.Value())
	if device == "" {
		m.lastErr = fmt.Errorf("no port selected")
		return m, nil
	}
	if err := m.sess.Connect(device); err != nil {
		m.lastErr = err
	} else {
		m.lastErr = nil
	}
	return m, nil
}

func (m Model) startFlash() (tea.Model, tea.Cmd) {
	if m.flashing {
		return m, nil
	}
	m.flashing = true
	sess := m.sess
	return m, func() tea.Msg {
		return flashDoneMsg{err: sess.Flash(context.Background())}
	}
}

// drainEvents consumes everything the session produced since the last tick.
func (m *Model) drainEvents() {
	for {
		select {
		case ev := <-m.sess.Events():
			switch ev.Kind {
			case session.EventLog:
				m.appendLog(ev.Time, ev.Line)
			case session.EventInfo:
				m.info[ev.Key] = ev.Value
				m.appendLog(ev.Time, fmt.Sprintf("device %s = %s", ev.Key, ev.Value))
			case session.EventState:
				if ev.Err != nil {
					m.lastErr = ev.Err
					// The read loop exited on its own; release the port
					m.sess.Disconnect()
				}
				m.appendLog(ev.Time, fmt.Sprintf("link %s", ev.State))
			}
		default:
			return
		}
	}
}

func (m *Model) appendLog(ts time.Time, line string) {
	m.logLines = append(m.logLines, fmt.Sprintf("[%s] %s", ts.Format(logTimestamp), line))
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
	m.logView.SetContent(strings.Join(m.logLines, "\n"))
	m.logView.GotoBottom()
}

// redrawPlot snapshots the buffer and refills the canvas. The snapshot is a
// copy, so the read loop keeps appending while this renders.
func (m *Model) redrawPlot() {
	snap := m.sess.Buffer().Snapshot()
	m.legend = latestValues(snap)
	if len(snap.Timestamps) == 0 {
		return
	}
	m.canvas.Fill(buildPlotData(snap, m.cfg.YMin, m.cfg.YMax))
}

func (m *Model) resize() {
	plotHeight := m.height - 14
	if plotHeight < 6 {
		plotHeight = 6
	}
	width := m.width - 4
	if width < 20 {
		width = 20
	}

	canvas := plot.NewCanvas(width, plotHeight)
	canvas.ShowAxis = m.canvas.ShowAxis
	m.canvas = canvas

	m.logView.Width = width
	m.logView.Height = 8
	m.help.Width = m.width
}

// View renders the full screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	status := errorStyle.Render("● disconnected")
	if m.sess.Connected() {
		status = connectedStyle.Render("● " + m.portInput.Value())
	}
	if m.flashing {
		status = titleStyle.Render("⚡ flashing…")
	}

	b.WriteString(titleStyle.Render("flashmon"))
	b.WriteString("  ")
	b.WriteString(status)
	b.WriteString("\n\n")

	b.WriteString("Port: ")
	b.WriteString(m.portInput.View())
	if fw := m.cfg.FirmwarePath; fw != "" {
		b.WriteString(dimStyle.Render("  firmware: " + fw))
	}
	b.WriteString("\n")

	b.WriteString(plotStyle.Render(m.canvas.String()))
	b.WriteString("\n")
	b.WriteString(m.legendLine())
	b.WriteString("\n")

	b.WriteString(logStyle.Render(m.logView.View()))
	b.WriteString("\n")

	if m.lastErr != nil {
		b.WriteString(errorStyle.Render("error: " + m.lastErr.Error()))
		b.WriteString("\n")
	}

	stats := m.sess.Stats()
	b.WriteString(dimStyle.Render(fmt.Sprintf(
		"lines %d  records %d  misses %d", stats.LinesRead, stats.Records, stats.DecodeMisses)))
	b.WriteString("\n")
	b.WriteString(m.help.View(keys))

	return b.String()
}

func (m Model) legendLine() string {
	if len(m.legend) == 0 {
		return dimStyle.Render("waiting for telemetry…")
	}
	parts := make([]string, 0, len(m.legend))
	for _, s := range m.legend {
		if math.IsNaN(s.Value) {
			parts = append(parts, fmt.Sprintf("%s: –", s.Key))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %.3g", s.Key, s.Value))
	}
	return dimStyle.Render(strings.Join(parts, "  "))
}
