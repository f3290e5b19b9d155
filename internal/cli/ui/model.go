// Package ui is the interactive progress view: a scrolling list of
// documents with their status, a spinner while the run is active and a
// summary footer.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jmadden/readme-docs-migration-github/internal/cli/hooks"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter"
)

const (
	listHeightMargin = 4
	listRefresh      = 50 * time.Millisecond
)

const (
	phaseStarting   = "Starting..."
	phaseScanning   = "Scanning..."
	phaseProcessing = "Processing..."
	phaseComplete   = "Complete"
)

// Model is the bubbletea model of one run (or, in watch mode, of
// consecutive runs).
type Model struct {
	list    list.Model
	spinner spinner.Model
	width   int
	height  int

	initialized bool
	quitting    bool
	listDirty   bool

	items   []listItem
	index   map[string]int
	started map[string]time.Time

	summary      Summary
	phase        string
	fatalError   string
	auditLogPath string
	version      string
	// exitOnComplete quits the program when the run report arrives.
	exitOnComplete bool
}

// Summary holds the footer counts.
type Summary struct {
	Discovered int
	Processed  int
	Skipped    int
	Failed     int
	Warnings   int
	Uploaded   int
	StartTime  time.Time
}

type listItem struct {
	path     string
	status   converter.Status
	message  string
	duration time.Duration
}

// refreshListMsg asks the model to push its items into the list component.
type refreshListMsg struct{}

// NewModel creates the model. With exitOnComplete the program quits as soon
// as the run finishes; otherwise it stays open until the user quits.
func NewModel(version string, exitOnComplete bool) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorStatusProcessing)

	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)
	delegate.ShowDescription = true
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorSelectedFg).
		Background(ColorSelectedBg).
		Bold(true).
		Padding(0, 0, 0, 1)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorSelectedDescFg).
		Background(ColorSelectedBg).
		Padding(0, 0, 0, 1)
	delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.Foreground(ColorNormalFg).Padding(0, 0, 0, 1)
	delegate.Styles.NormalDesc = delegate.Styles.NormalDesc.Foreground(ColorNormalDescFg).Padding(0, 0, 0, 1)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return &Model{
		list:           l,
		spinner:        s,
		items:          make([]listItem, 0, 256),
		index:          make(map[string]int),
		started:        make(map[string]time.Time),
		summary:        Summary{StartTime: time.Now()},
		phase:          phaseStarting,
		version:        version,
		exitOnComplete: exitOnComplete,
	}
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update applies a terminal or engine event.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(m.width, max(1, m.height-listHeightMargin))
		m.initialized = true
		return m, nil

	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)

	case spinner.TickMsg:
		if m.quitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case hooks.FileDiscoveredMsg:
		if m.phase == phaseComplete {
			m.reset()
		}
		if _, ok := m.index[msg.Path]; !ok {
			m.items = append(m.items, listItem{path: msg.Path, status: converter.StatusPending})
			m.index[msg.Path] = len(m.items) - 1
			m.summary.Discovered++
		}
		if m.phase == phaseStarting {
			m.phase = phaseScanning
		}
		cmds = append(cmds, m.scheduleRefresh())

	case hooks.FileStatusUpdateMsg:
		m.applyStatus(msg)
		if msg.Status == converter.StatusProcessing {
			m.phase = phaseProcessing
		}
		cmds = append(cmds, m.scheduleRefresh())

	case hooks.RunCompleteMsg:
		m.complete(msg.Report)
		cmds = append(cmds, m.refresh())
		if m.exitOnComplete {
			cmds = append(cmds, tea.Quit)
		}

	case refreshListMsg:
		cmds = append(cmds, m.refresh())
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) applyStatus(msg hooks.FileStatusUpdateMsg) {
	idx, ok := m.index[msg.Path]
	if !ok {
		// Ignored paths are reported without a discovery event.
		m.items = append(m.items, listItem{path: msg.Path, status: converter.StatusPending})
		idx = len(m.items) - 1
		m.index[msg.Path] = idx
	}
	item := &m.items[idx]
	switch {
	case msg.Status == converter.StatusProcessing:
		m.started[msg.Path] = time.Now()
		item.duration = 0
	case isFinal(msg.Status):
		item.duration = msg.Duration
		if item.duration == 0 {
			if start, found := m.started[msg.Path]; found {
				item.duration = time.Since(start)
			}
		}
		delete(m.started, msg.Path)
	}
	if isFinal(msg.Status) && !isFinal(item.status) {
		m.count(msg.Status, 1)
	} else if !isFinal(msg.Status) && isFinal(item.status) {
		m.count(item.status, -1)
	}
	item.status = msg.Status
	item.message = msg.Message
}

func (m *Model) complete(r converter.Report) {
	m.phase = phaseComplete
	m.summary.Processed = r.Summary.ProcessedCount
	m.summary.Skipped = r.Summary.SkippedCount
	m.summary.Failed = r.Summary.ErrorCount
	m.summary.Warnings = r.Summary.WarningCount
	m.summary.Uploaded = r.Summary.UploadedCount
	m.auditLogPath = r.Summary.AuditLogPath
	m.fatalError = ""
	if r.Summary.FatalErrorOccurred {
		m.fatalError = "Run stopped by a fatal error."
		for _, e := range r.Errors {
			if e.IsFatal {
				m.fatalError = fmt.Sprintf("Fatal error: %s (%s)", e.Error, e.Path)
				break
			}
		}
	}
}

// reset clears the previous run before a watch-mode re-run.
func (m *Model) reset() {
	m.items = m.items[:0]
	m.index = make(map[string]int)
	m.started = make(map[string]time.Time)
	m.summary = Summary{StartTime: time.Now()}
	m.fatalError = ""
	m.phase = phaseStarting
}

func (m *Model) count(status converter.Status, delta int) {
	switch status {
	case converter.StatusSuccess:
		m.summary.Processed += delta
	case converter.StatusSkipped:
		m.summary.Skipped += delta
	case converter.StatusFailed:
		m.summary.Failed += delta
	}
}

// scheduleRefresh coalesces list updates into at most one per listRefresh.
func (m *Model) scheduleRefresh() tea.Cmd {
	if m.listDirty {
		return nil
	}
	m.listDirty = true
	return tea.Tick(listRefresh, func(time.Time) tea.Msg { return refreshListMsg{} })
}

func (m *Model) refresh() tea.Cmd {
	m.listDirty = false
	items := make([]list.Item, len(m.items))
	for i, it := range m.items {
		items[i] = it
	}
	return m.list.SetItems(items)
}

// View renders header, list, optional fatal error and footer.
func (m *Model) View() string {
	if m.quitting {
		return "Exiting...\n"
	}
	if !m.initialized {
		return "Initializing..."
	}

	left := "docs-migrator " + m.version
	right := m.phase
	if m.phase != phaseComplete {
		right = m.spinner.View() + " " + m.phase
	}
	header := HeaderStyle.Width(m.width).Render(spread(m.width, left, right))

	elapsed := time.Since(m.summary.StartTime).Round(time.Millisecond)
	stats := fmt.Sprintf("Converted: %d | Skipped: %d | Failed: %d | Warnings: %d | Uploaded: %d | Found: %d | %s",
		m.summary.Processed, m.summary.Skipped, m.summary.Failed, m.summary.Warnings, m.summary.Uploaded, m.summary.Discovered, elapsed)
	footer := FooterStyle.Width(m.width).Render(spread(m.width, stats, "q: quit"))

	var extra []string
	if m.fatalError != "" {
		extra = append(extra, StatusStyleFailed.Render(m.fatalError))
	}
	if m.phase == phaseComplete && m.auditLogPath != "" {
		extra = append(extra, "Audit log: "+m.auditLogPath)
	}

	parts := []string{header, m.list.View()}
	if len(extra) > 0 {
		parts = append(parts, strings.Join(extra, "\n"))
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func spread(width int, left, right string) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func isFinal(status converter.Status) bool {
	return status == converter.StatusSuccess || status == converter.StatusFailed || status == converter.StatusSkipped
}

func (i listItem) FilterValue() string { return i.path }

func (i listItem) Title() string { return i.path }

func (i listItem) Description() string {
	style, icon := StatusStylePending, " "
	switch i.status {
	case converter.StatusSuccess:
		style, icon = StatusStyleSuccess, "✓"
	case converter.StatusFailed:
		style, icon = StatusStyleFailed, "✗"
	case converter.StatusSkipped:
		style, icon = StatusStyleSkipped, "S"
	case converter.StatusProcessing:
		style, icon = StatusStyleProcessing, "…"
	}

	details := ""
	switch i.status {
	case converter.StatusFailed, converter.StatusSkipped:
		details = i.message
	case converter.StatusSuccess:
		details = formatDuration(i.duration)
	}
	return strings.TrimRight(style.Render("["+icon+"]")+" "+details, " ")
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
