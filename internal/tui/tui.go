// Package tui provides a Bubble Tea terminal user interface for dropfetch.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/davidmtr/dropfetch/internal/config"
	"github.com/davidmtr/dropfetch/internal/download"
	"github.com/davidmtr/dropfetch/internal/manifest"
	"github.com/davidmtr/dropfetch/internal/resolver"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateLoading
	StateDownloading
	StateComplete
	StateError
)

// retrySettings cycles through with the "r" key.
var retrySettings = []int{0, 3, -1}

func retryLabel(attempts int) string {
	switch {
	case attempts < 0:
		return "until success"
	case attempts == 0:
		return "off"
	default:
		return fmt.Sprintf("%d attempts", attempts)
	}
}

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state         State
	manifestInput textinput.Model
	outputInput   textinput.Model
	spinner       spinner.Model
	progress      progress.Model
	settings      *config.Settings
	logs          []LogEntry
	err           error

	// Run context
	ctx    context.Context
	cancel context.CancelFunc

	// Run state
	manager    *download.Manager
	resolver   *resolver.DropboxResolver
	progressCh chan download.ProgressEvent
	summary    *download.Summary
	ledgerPath string

	// Progress counters
	succeeded int
	skipped   int
	failed    int
	total     int

	// Options
	retryIdx int
	verbose  bool

	width  int
	height int
}

// NewModel creates a new TUI model.
func NewModel() Model {
	mi := textinput.New()
	mi.Placeholder = "products.csv or products.xlsx"
	mi.Focus()
	mi.CharLimit = 500
	mi.Width = 60

	oi := textinput.New()
	oi.Placeholder = "downloads"
	oi.CharLimit = 500
	oi.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:         StateInput,
		manifestInput: mi,
		outputInput:   oi,
		spinner:       sp,
		progress:      prog,
		settings:      config.DefaultSettings(),
		logs:          make([]LogEntry, 0),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg carries one progress event from the manager.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// LoadDoneMsg is sent when the manifest is read and the run is set up.
	LoadDoneMsg struct {
		TaskCount     int
		HasCategories bool
		Manager       *download.Manager
		Resolver      *resolver.DropboxResolver
		Err           error
	}

	// DownloadDoneMsg is sent when the run finishes.
	DownloadDoneMsg struct {
		Summary    *download.Summary
		LedgerPath string
		Err        error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			if m.resolver != nil {
				m.resolver.Close()
			}
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading || m.state == StateLoading {
				m.cancel()
			}

		case "tab":
			if m.state == StateInput {
				if m.manifestInput.Focused() {
					m.manifestInput.Blur()
					m.outputInput.Focus()
				} else {
					m.outputInput.Blur()
					m.manifestInput.Focus()
				}
			}

		case "enter":
			if m.state == StateInput && m.manifestInput.Value() != "" {
				m.state = StateLoading
				return m, tea.Batch(m.setupRun(), m.spinner.Tick)
			}

		case "+":
			if m.state == StateInput && m.settings.Workers < 16 {
				m.settings.Workers++
			}

		case "-":
			if m.state == StateInput && m.settings.Workers > 1 {
				m.settings.Workers--
			}

		case "r":
			if m.state == StateInput {
				m.retryIdx = (m.retryIdx + 1) % len(retrySettings)
				m.settings.RetryAttempts = retrySettings[m.retryIdx]
			}
			if m.state == StateComplete || m.state == StateError {
				// Reset for a new run
				m.state = StateInput
				m.logs = nil
				m.err = nil
				m.manager = nil
				m.progressCh = nil
				m.summary = nil
				m.ledgerPath = ""
				m.succeeded, m.skipped, m.failed, m.total = 0, 0, 0, 0
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.manifestInput.Focus()
				m.outputInput.Blur()
			}

		case "v":
			if m.state == StateInput {
				m.verbose = !m.verbose
				m.settings.Verbose = m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		if msg.Event.Level != download.LevelVerbose || m.verbose {
			m.logs = append(m.logs, LogEntry{
				Message: msg.Event.Message,
				Level:   msg.Event.Level,
			})
			// Keep only last 10 logs
			if len(m.logs) > 10 {
				m.logs = m.logs[len(m.logs)-10:]
			}
		}
		cmds = append(cmds, m.waitForProgress())

	case LoadDoneMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
		} else {
			m.manager = msg.Manager
			m.resolver = msg.Resolver
			m.total = msg.TaskCount
			m.state = StateDownloading
			cmds = append(cmds, m.startDownload(), m.waitForProgress(), m.tickProgress())
		}

	case DownloadDoneMsg:
		if m.resolver != nil {
			m.resolver.Close()
			m.resolver = nil
		}
		m.summary = msg.Summary
		m.ledgerPath = msg.LedgerPath
		if msg.Summary != nil {
			m.succeeded = msg.Summary.Succeeded
			m.skipped = msg.Summary.Skipped
			m.failed = msg.Summary.Failed
			m.total = msg.Summary.Total
		}
		switch {
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
		}

	case TickMsg:
		// Update progress from manager
		if m.manager != nil && m.state == StateDownloading {
			m.succeeded, m.skipped, m.failed, m.total = m.manager.GetProgress()

			var percent float64
			if m.total > 0 {
				percent = float64(m.succeeded+m.skipped+m.failed) / float64(m.total)
			}
			progressCmd := m.progress.SetPercent(percent)
			cmds = append(cmds, progressCmd, m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text inputs
	if m.state == StateInput {
		var cmd tea.Cmd
		m.manifestInput, cmd = m.manifestInput.Update(msg)
		cmds = append(cmds, cmd)
		m.outputInput, cmd = m.outputInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// waitForProgress relays the next progress event from the run into the
// message loop.
func (m Model) waitForProgress() tea.Cmd {
	ch := m.progressCh
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ProgressMsg{Event: event}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("Dropfetch"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Batch-download catalog files from shared folders"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateLoading:
		b.WriteString(m.viewLoading())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Manifest (.csv or .xlsx):"))
	b.WriteString("\n")
	b.WriteString(m.manifestInput.View())
	b.WriteString("\n\n")
	b.WriteString(subtitleStyle.Render("Output directory:"))
	b.WriteString("\n")
	b.WriteString(m.outputInput.View())
	b.WriteString("\n\n")

	verboseCheck := "[ ]"
	if m.verbose {
		verboseCheck = "[x]"
	}

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Parallel downloads: %d (+/-)\n", m.settings.Workers))
	b.WriteString(fmt.Sprintf("  Retry: %s (r)\n", retryLabel(m.settings.RetryAttempts)))
	b.WriteString(fmt.Sprintf("  %s Verbose output (v)\n", verboseCheck))

	return b.String()
}

func (m Model) viewLoading() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Reading manifest..."))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	done := m.succeeded + m.skipped + m.failed
	var percent float64
	if m.total > 0 {
		percent = float64(done) / float64(m.total)
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Items: %d/%d | Downloaded: %d | Skipped: %d | Failed: %d",
		done, m.total, m.succeeded, m.skipped, m.failed,
	)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	text := fmt.Sprintf(
		"Run complete\n\n"+
			"Downloaded: %d\n"+
			"Skipped:    %d\n"+
			"Failed:     %d",
		m.succeeded, m.skipped, m.failed,
	)
	if m.ledgerPath != "" {
		text += fmt.Sprintf("\n\nFailed items written to\n%s", pathStyle.Render(m.ledgerPath))
	}
	b.WriteString(boxStyle.Render(text))

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}
	if m.summary != nil {
		b.WriteString(fmt.Sprintf("\n\n  Finished before stopping: %d downloaded, %d skipped",
			m.summary.Succeeded, m.summary.Skipped))
		if m.ledgerPath != "" {
			b.WriteString(fmt.Sprintf("\n  Failed items written to %s", m.ledgerPath))
		}
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • tab: switch field • +/-: threads • r: retry • v: verbose • esc: quit"
	case StateLoading, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new run • q: quit"
	}
	return ""
}

// setupRun reads the manifest and creates the manager.
func (m *Model) setupRun() tea.Cmd {
	manifestPath := m.manifestInput.Value()
	outputDir := m.outputInput.Value()
	if outputDir == "" {
		outputDir = "downloads"
	}

	ch := make(chan download.ProgressEvent, 256)
	m.progressCh = ch
	settings := m.settings

	return func() tea.Msg {
		tasks, err := manifest.Read(manifestPath)
		if err != nil {
			return LoadDoneMsg{Err: err}
		}
		if len(tasks) == 0 {
			return LoadDoneMsg{Err: fmt.Errorf("manifest %s has no usable rows", manifestPath)}
		}

		hasCategories, err := manifest.HasCategories(manifestPath)
		if err != nil {
			return LoadDoneMsg{Err: err}
		}
		settings.GroupByCategory = hasCategories

		res := resolver.NewDropboxResolver(resolver.Options{
			Headless:    settings.BrowserHeadless,
			BrowserPath: settings.BrowserPath,
			Timeout:     settings.ResolveTimeout(),
		})

		manager, err := download.NewManager(settings, settings.ToPathConfig(outputDir), res, nil, func(event download.ProgressEvent) {
			select {
			case ch <- event:
			default: // never block a worker on a slow UI
			}
		})
		if err != nil {
			res.Close()
			return LoadDoneMsg{Err: err}
		}

		return LoadDoneMsg{
			TaskCount:     len(tasks),
			HasCategories: hasCategories,
			Manager:       manager,
			Resolver:      res,
		}
	}
}

// startDownload runs the batch in the background.
func (m *Model) startDownload() tea.Cmd {
	manifestPath := m.manifestInput.Value()
	outputDir := m.outputInput.Value()
	if outputDir == "" {
		outputDir = "downloads"
	}
	manager := m.manager
	ctx := m.ctx
	ch := m.progressCh

	return func() tea.Msg {
		if manager == nil {
			return DownloadDoneMsg{Err: fmt.Errorf("no manager")}
		}

		tasks, err := manifest.Read(manifestPath)
		if err != nil {
			return DownloadDoneMsg{Err: err}
		}

		summary, runErr := manager.Run(ctx, tasks)
		close(ch)

		ledgerPath := ""
		if failed := manager.FailedTasks(); len(failed) > 0 {
			ledgerPath = manifest.LedgerPath(manifestPath, outputDir)
			if err := manifest.Write(ledgerPath, failed); err != nil {
				ledgerPath = ""
			}
		}

		if runErr != nil && ctx.Err() == nil {
			return DownloadDoneMsg{Summary: summary, LedgerPath: ledgerPath, Err: runErr}
		}
		return DownloadDoneMsg{Summary: summary, LedgerPath: ledgerPath}
	}
}

// Run starts the TUI application.
func Run() error {
	p := tea.NewProgram(NewModel(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
