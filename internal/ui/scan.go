package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/postoffice/internal/discovery"
)

// ScanFunc performs one discovery pass.
type ScanFunc func(ctx context.Context) ([]*discovery.Service, error)

// Messages for async operations
type scanStartMsg struct{}
type scanCompleteMsg struct {
	services []*discovery.Service
	err      error
}
type scanTickMsg time.Time

// scanKeyMap defines key bindings for the scan screen
type scanKeyMap struct {
	Rescan key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k scanKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Rescan, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k scanKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Rescan, k.Quit}}
}

var (
	scanTitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	scanSubtleStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	scanCardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(0, 1).
			MarginLeft(2)
)

// ScanModel is the interactive screen behind 'postoffice-server discover'.
// It shows a spinner and progress bar while a scan runs, then the servers
// found.
type ScanModel struct {
	Service  string
	Timeout  time.Duration
	Scanning bool
	Services []*discovery.Service
	Err      error

	scan     ScanFunc
	started  time.Time
	width    int
	spinner  spinner.Model
	progress progress.Model
	help     help.Model
	keys     scanKeyMap
}

// NewScanModel creates a scan screen that runs scan for up to timeout
func NewScanModel(service string, timeout time.Duration, scan ScanFunc) ScanModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return ScanModel{
		Service:  service,
		Timeout:  timeout,
		scan:     scan,
		width:    GetTerminalWidth(),
		spinner:  s,
		progress: p,
		help:     help.New(),
		keys: scanKeyMap{
			Rescan: key.NewBinding(
				key.WithKeys("r"),
				key.WithHelp("r", "rescan"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
	}
}

// Init starts the first scan
func (m ScanModel) Init() tea.Cmd {
	return m.startScan()
}

func (m ScanModel) startScan() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		m.runScan,
		m.spinner.Tick,
		tick(),
	)
}

func (m ScanModel) runScan() tea.Msg {
	services, err := m.scan(context.Background())
	return scanCompleteMsg{services: services, err: err}
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg { return scanTickMsg(t) })
}

// Update handles messages and updates the model
func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Rescan) && !m.Scanning:
			m.Services = nil
			m.Err = nil
			return m, m.startScan()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case scanStartMsg:
		m.Scanning = true
		m.started = time.Now()

	case scanCompleteMsg:
		m.Scanning = false
		m.Services = msg.services
		m.Err = msg.err

	case scanTickMsg:
		if m.Scanning {
			return m, tick()
		}

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the scan screen
func (m ScanModel) View() string {
	var b strings.Builder
	b.WriteString("\n")

	if m.Scanning {
		b.WriteString(m.renderScanning())
	} else {
		b.WriteString(m.renderResults())
	}

	b.WriteString("\n")
	b.WriteString("  " + m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m ScanModel) renderScanning() string {
	elapsed := time.Since(m.started)
	fraction := 1.0
	if m.Timeout > 0 {
		fraction = min(1.0, float64(elapsed)/float64(m.Timeout))
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		scanTitleStyle.Render(fmt.Sprintf("%s SEARCHING FOR %s", m.spinner.View(), m.Service)),
		"",
		m.progress.ViewAs(fraction),
		"",
		scanSubtleStyle.Render(fmt.Sprintf("Elapsed: %ds", int(elapsed.Seconds()))),
	)
	return lipgloss.Place(m.width, 0, lipgloss.Center, lipgloss.Top, content)
}

func (m ScanModel) renderResults() string {
	var b strings.Builder

	switch {
	case m.Err != nil:
		b.WriteString("  " + StatusErrorStyle.Render(fmt.Sprintf("Scan failed: %v", m.Err)))
		b.WriteString("\n")

	case len(m.Services) == 0:
		b.WriteString("  " + StatusErrorStyle.Render("No servers found"))
		b.WriteString("\n\n")
		b.WriteString("  Troubleshooting:\n")
		b.WriteString("    • Start the server with --advertise\n")
		b.WriteString("    • Multicast traffic may be blocked between subnets\n")
		b.WriteString("    • Press r to scan again\n")

	default:
		b.WriteString("  " + StatusOKStyle.Render(fmt.Sprintf("Found %d server(s)", len(m.Services))))
		b.WriteString("\n")
		cardWidth := m.width - 6
		if cardWidth < MinTerminalWidth-6 {
			cardWidth = MinTerminalWidth - 6
		}
		for _, svc := range m.Services {
			b.WriteString(scanCardStyle.Width(cardWidth).Render(renderService(svc)))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func renderService(svc *discovery.Service) string {
	lines := []string{
		HeaderParamValueStyle.Bold(true).Render(svc.Instance),
		"Address:  " + svc.Address(),
	}
	if svc.Hostname != "" {
		lines = append(lines, "Host:     "+svc.Hostname)
	}
	keys := make([]string, 0, len(svc.Metadata))
	for k := range svc.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%-9s %s", k+":", svc.Metadata[k]))
	}
	return strings.Join(lines, "\n")
}
