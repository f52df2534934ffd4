package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/iaroc/pkg/control"
	"github.com/gwillem/iaroc/pkg/robot"
	"github.com/gwillem/iaroc/pkg/sonar"
)

const (
	headerHeight = 3 // title + status + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
	maxRangeMM   = 3000
	refresh      = 100 * time.Millisecond
)

// Range finder colors
var sideColors = map[sonar.Side]string{
	sonar.Left:  "46",  // green
	sonar.Front: "226", // yellow
	sonar.Right: "196", // red
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	runningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	stoppedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// monitor is what the dashboard reads from the controller. All methods are
// called from the UI goroutine while the loop runs.
type monitor interface {
	IsRunning() bool
	RequestStop()
	LeftDistance() int
	FrontDistance() int
	RightDistance() int
	Speed() int
	States() <-chan control.State
	Logs() <-chan string
}

type dashboardModel struct {
	ctrl      monitor
	cfg       *robot.Config
	chart     *streamlinechart.Model
	width     int      // terminal width
	height    int      // terminal height
	logs      []string // last N log messages
	quitting  bool
	running   bool
	distances map[sonar.Side]int
	last      control.State
}

func (m *dashboardModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg control.State
type logMsg string
type tickMsg time.Time

func waitForState(ctrl monitor) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl monitor) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

func tick() tea.Cmd {
	return tea.Tick(refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *dashboardModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *dashboardModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func newDashboardModel(ctrl monitor, cfg *robot.Config) dashboardModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(0, maxRangeMM),
	)

	for _, side := range sonar.AllSides() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(sideColors[side]))
		chart.SetDataSetStyles(string(side), runes.ThinLineStyle, style)
	}

	return dashboardModel{
		ctrl:      ctrl,
		cfg:       cfg,
		chart:     &chart,
		running:   true,
		distances: make(map[sonar.Side]int, 3),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
		tick(),
	)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.ctrl.RequestStop()
			return m, tea.Quit
		case "s", " ":
			if m.ctrl.IsRunning() {
				m.ctrl.RequestStop()
			}
			return m, nil
		}

	case tickMsg:
		// The getters are not synchronized with the loop; a reading may be
		// one sonar round old.
		m.running = m.ctrl.IsRunning()
		m.distances[sonar.Left] = m.ctrl.LeftDistance()
		m.distances[sonar.Front] = m.ctrl.FrontDistance()
		m.distances[sonar.Right] = m.ctrl.RightDistance()
		for side, d := range m.distances {
			m.chart.PushDataSet(string(side), float64(min(d, maxRangeMM)))
		}
		m.chart.DrawAll()
		return m, tick()

	case stateMsg:
		m.last = control.State(msg)
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m dashboardModel) statusLine() string {
	var run string
	if m.running {
		run = runningStyle.Render("RUNNING")
	} else {
		run = stoppedStyle.Render("STOPPED")
	}

	s := m.last.Snapshot
	bump := "-"
	switch {
	case s.BumpLeft && s.BumpRight:
		bump = "both"
	case s.BumpLeft:
		bump = "left"
	case s.BumpRight:
		bump = "right"
	}

	return fmt.Sprintf("%s  phase %s  ir %s  bump %s  cmd %d/%d  cell %d,%d",
		run, m.last.Phase, s.Infrared, bump,
		m.last.Command.Left, m.last.Command.Right,
		m.cfg.Start.Row, m.cfg.Start.Column)
}

func (m dashboardModel) View() string {
	if m.quitting {
		return "Controller stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("iaroc"))
	sb.WriteString(fmt.Sprintf(" - speed %d, maze %dx%d", m.ctrl.Speed(), m.cfg.Maze.Rows, m.cfg.Maze.Columns))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n")
	sb.WriteString(m.statusLine())
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(m.renderLegend())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4).
		Foreground(lipgloss.Color("9")) // bright red

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 's' to stop, 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m dashboardModel) renderLegend() string {
	var items []string
	for _, side := range sonar.AllSides() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(sideColors[side])).Bold(true)
		item := colorStyle.Render("━━") + fmt.Sprintf(" %s %4d mm", side, m.distances[side])
		items = append(items, item)
	}
	return strings.Join(items, "  ")
}
