// Package tui provides a Bubble Tea terminal user interface for imgscrape.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/handiism/image-scraper/internal/config"
	"github.com/handiism/image-scraper/internal/event"
	"github.com/handiism/image-scraper/internal/model"
	"github.com/handiism/image-scraper/internal/session"
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

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F8B500"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateScanning
	StateReviewing
	StateDownloading
	StateComplete
	StateError
)

// focus is the widget receiving keys while reviewing.
type focus int

const (
	focusList focus = iota
	focusDestination
)

const (
	maxLogs      = 8
	thumbColumns = 24
)

// item is one row of the preview list.
type item struct {
	result   model.PreviewResult
	selected bool
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	focus     focus
	urlInput  textinput.Model
	destInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	ctrl      *session.Controller
	logs      []event.Event
	err       error

	// Current scan
	pageURL  string
	items    []item
	cursor   int
	emitted  int
	scanDone bool

	// Current batch
	completed int
	total     int
	batch     *session.BatchSummary

	verbose bool

	width  int
	height int
}

// NewModel creates a new TUI model driving ctrl.
func NewModel(settings *config.Settings, ctrl *session.Controller) Model {
	ti := textinput.New()
	ti.Placeholder = "https://example.com/gallery"
	ti.Focus()
	ti.CharLimit = 2048
	ti.Width = 60

	di := textinput.New()
	di.Placeholder = settings.DownloadsPath
	di.SetValue(settings.DownloadsPath)
	di.CharLimit = 1024
	di.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	return Model{
		state:     StateInput,
		urlInput:  ti,
		destInput: di,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		ctrl:      ctrl,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types produced by the model's own commands.
type (
	scanStartedMsg struct {
		err error
	}

	downloadStartedMsg struct {
		err error
	}

	snapshotMsg struct {
		snap session.Snapshot
		err  error
	}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		next, cmd, handled := m.handleKey(msg)
		if handled {
			return next, cmd
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case scanStartedMsg:
		if msg.err != nil {
			m.state = StateInput
			m.urlInput.Focus()
			return m, nil
		}
		// Previews of the new scan may have overtaken this message.
		m.items = nil
		return m, m.snapshot()

	case snapshotMsg:
		if msg.err == nil {
			for _, r := range msg.snap.Results {
				m.upsert(r)
			}
		}

	case downloadStartedMsg:
		if msg.err != nil {
			m.state = StateReviewing
		}

	case PreviewMsg:
		m.upsert(msg.Result)

	case ScanDoneMsg:
		if m.state != StateScanning {
			break
		}
		m.pageURL = msg.Summary.PageURL
		m.emitted = msg.Summary.Emitted
		m.scanDone = true
		if msg.Summary.Err != nil {
			m.state = StateError
			m.err = msg.Summary.Err
		} else {
			m.state = StateReviewing
		}

	case ProgressMsg:
		m.completed = msg.Progress.Completed
		m.total = msg.Progress.Total
		var percent float64
		if m.total > 0 {
			percent = float64(m.completed) / float64(m.total)
		}
		cmds = append(cmds, m.progress.SetPercent(percent))

	case BatchDoneMsg:
		summary := msg.Summary
		m.batch = &summary
		if summary.Err != nil {
			m.state = StateError
			m.err = summary.Err
		} else {
			m.state = StateComplete
		}

	case RejectedMsg:
		m.addLog(event.Event{Message: msg.Err.Error(), Level: event.LevelWarning})

	case LogMsg:
		if msg.Event.Level == event.LevelVerbose && !m.verbose {
			return m, nil
		}
		m.addLog(msg.Event)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	switch {
	case m.state == StateInput:
		m.urlInput, cmd = m.urlInput.Update(msg)
	case m.state == StateReviewing && m.focus == focusDestination:
		m.destInput, cmd = m.destInput.Update(msg)
	}
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey processes key presses. handled is false when the key should
// also reach the focused text input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit, true
	}
	if key == "ctrl+o" {
		m.verbose = !m.verbose
		return m, nil, true
	}

	switch m.state {
	case StateInput:
		switch key {
		case "esc":
			return m, tea.Quit, true
		case "enter":
			if strings.TrimSpace(m.urlInput.Value()) == "" {
				return m, nil, true
			}
			cmd := m.startScan()
			return m, cmd, true
		}

	case StateScanning, StateReviewing:
		if m.focus == focusDestination {
			switch key {
			case "tab", "esc":
				m.focus = focusList
				m.destInput.Blur()
				return m, nil, true
			case "enter":
				return m.startDownload()
			}
			return m, nil, false
		}

		switch key {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case " ", "x":
			m.toggle(m.cursor)
		case "a":
			m.selectAll(true)
		case "n":
			m.selectAll(false)
		case "tab":
			if m.state == StateReviewing {
				m.focus = focusDestination
				m.destInput.Focus()
				return m, textinput.Blink, true
			}
		case "enter":
			return m.startDownload()
		case "r", "esc":
			// The controller keeps scanning until ScanDoneMsg, so a new
			// URL is only accepted from the review screen.
			if m.state == StateReviewing {
				m.resetToInput()
			}
		case "q":
			return m, tea.Quit, true
		}
		return m, nil, true

	case StateDownloading:
		return m, nil, true

	case StateComplete, StateError:
		switch key {
		case "q", "esc":
			return m, tea.Quit, true
		case "r":
			m.resetToInput()
		}
		return m, nil, true
	}

	return m, nil, false
}

func (m *Model) startScan() tea.Cmd {
	m.state = StateScanning
	m.focus = focusList
	m.urlInput.Blur()
	m.items = nil
	m.cursor = 0
	m.emitted = 0
	m.scanDone = false
	m.pageURL = ""
	m.err = nil
	m.logs = nil

	ctrl, raw := m.ctrl, m.urlInput.Value()
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return scanStartedMsg{err: ctrl.StartScan(context.Background(), raw)}
	})
}

func (m Model) startDownload() (tea.Model, tea.Cmd, bool) {
	if m.state != StateReviewing {
		return m, nil, true
	}
	sel := m.selection()
	dest := strings.TrimSpace(m.destInput.Value())

	m.state = StateDownloading
	m.focus = focusList
	m.destInput.Blur()
	m.completed = 0
	m.total = len(sel)
	m.batch = nil

	ctrl := m.ctrl
	return m, tea.Batch(m.progress.SetPercent(0), func() tea.Msg {
		return downloadStartedMsg{err: ctrl.StartDownload(context.Background(), sel, dest)}
	}), true
}

func (m Model) snapshot() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		snap, err := ctrl.Snapshot(context.Background())
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m *Model) resetToInput() {
	m.state = StateInput
	m.focus = focusList
	m.err = nil
	m.batch = nil
	m.destInput.Blur()
	m.urlInput.Focus()
}

// upsert inserts r into the list, keeping ordinal order. A result for an
// ordinal already listed replaces it.
func (m *Model) upsert(r model.PreviewResult) {
	ord := r.Reference.OrdinalIndex
	i := sort.Search(len(m.items), func(i int) bool {
		return m.items[i].result.Reference.OrdinalIndex >= ord
	})
	if i < len(m.items) && m.items[i].result.Reference.OrdinalIndex == ord {
		m.items[i].result = r
		return
	}
	m.items = append(m.items, item{})
	copy(m.items[i+1:], m.items[i:])
	m.items[i] = item{result: r}
	if i <= m.cursor && len(m.items) > 1 {
		m.cursor++
	}
	m.cursor = min(m.cursor, len(m.items)-1)
}

// toggle flips the selection of row i. Failed previews cannot be selected.
func (m *Model) toggle(i int) {
	if i < 0 || i >= len(m.items) || !m.items[i].result.OK() {
		return
	}
	m.items[i].selected = !m.items[i].selected
}

func (m *Model) selectAll(on bool) {
	for i := range m.items {
		m.items[i].selected = on && m.items[i].result.OK()
	}
}

// selection returns the selected references in list order.
func (m Model) selection() model.Selection {
	var refs []model.ImageReference
	for _, it := range m.items {
		if it.selected {
			refs = append(refs, it.result.Reference)
		}
	}
	return model.NewSelection(refs...)
}

func (m *Model) addLog(e event.Event) {
	m.logs = append(m.logs, e)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("imgscrape"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Pick and download the images of a web page"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateScanning, StateReviewing:
		b.WriteString(m.viewReview())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.helpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter page URL:"))
	b.WriteString("\n\n")
	b.WriteString(m.urlInput.View())
	b.WriteString("\n\n")

	verboseCheck := "[ ]"
	if m.verbose {
		verboseCheck = "[×]"
	}
	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Verbose/debug output (ctrl+o)\n", verboseCheck))
	b.WriteString("\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewReview() string {
	var b strings.Builder

	if m.state == StateScanning {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(subtitleStyle.Render("Scanning " + m.urlInput.Value() + "..."))
	} else {
		b.WriteString(successStyle.Render(fmt.Sprintf("Found %d image(s) on %s", m.emitted, m.pageURL)))
	}
	b.WriteString("\n")

	failed := 0
	for _, it := range m.items {
		if !it.result.OK() {
			failed++
		}
	}
	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Previews: %d/%d | Failed: %d | Selected: %d",
		len(m.items), m.emitted, failed, len(m.selection()),
	)))
	b.WriteString("\n\n")

	list := m.renderList()
	if detail := m.renderDetail(); detail != "" {
		list = lipgloss.JoinHorizontal(lipgloss.Top, list, "  ", detail)
	}
	b.WriteString(list)
	b.WriteString("\n\n")

	if m.state == StateReviewing {
		label := dimStyle.Render("Destination (tab):")
		if m.focus == focusDestination {
			label = subtitleStyle.Render("Destination:")
		}
		b.WriteString(label)
		b.WriteString(" ")
		b.WriteString(m.destInput.View())
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderLogs())
	return b.String()
}

// listHeight is the number of preview rows that fit on screen.
func (m Model) listHeight() int {
	if m.height == 0 {
		return 12
	}
	return max(m.height-18, 3)
}

func (m Model) renderList() string {
	if len(m.items) == 0 {
		return dimStyle.Render("  (no previews yet)")
	}

	height := m.listHeight()
	start := 0
	if m.cursor >= height {
		start = m.cursor - height + 1
	}
	end := min(start+height, len(m.items))

	width := 60
	if m.width > 0 {
		width = max(m.width-thumbColumns-16, 20)
	}

	var lines []string
	for i := start; i < end; i++ {
		it := m.items[i]
		pointer := "  "
		if i == m.cursor {
			pointer = cursorStyle.Render("› ")
		}

		check := "[ ]"
		if it.selected {
			check = "[×]"
		}
		label := fmt.Sprintf("%3d %s", it.result.Reference.OrdinalIndex+1, truncate(it.result.Reference.ResolvedLocator, width))

		var line string
		if it.result.OK() {
			line = check + " " + label
		} else {
			line = dimStyle.Render("[-] " + label)
		}
		lines = append(lines, pointer+line)
	}
	return strings.Join(lines, "\n")
}

// renderDetail shows the thumbnail and metadata of the row under the cursor.
func (m Model) renderDetail() string {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return ""
	}
	r := m.items[m.cursor].result
	if !r.OK() {
		return errorStyle.Render("✗ " + truncate(r.Reason(), thumbColumns*2))
	}

	var b strings.Builder
	if art := renderThumbnail(r.Thumbnail, thumbColumns); art != "" {
		b.WriteString(art)
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s %dx%d", r.Thumbnail.MimeType, r.Thumbnail.Width, r.Thumbnail.Height)))
	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Downloading to " + m.destInput.Value()))
	b.WriteString("\n\n")

	var percent float64
	if m.total > 0 {
		percent = float64(m.completed) / float64(m.total)
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf("Files: %d/%d", m.completed, m.total)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())
	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	summary := session.BatchSummary{}
	if m.batch != nil {
		summary = *m.batch
	}
	text := fmt.Sprintf(
		"Download Complete!\n\n"+
			"Saved: %d\n"+
			"Failed: %d\n"+
			"Size: %.2f MB\n"+
			"Folder: %s",
		summary.Succeeded,
		summary.Failed,
		float64(summary.Bytes)/1024/1024,
		summary.Destination,
	)
	if summary.ManifestPath != "" {
		text += "\nManifest: " + summary.ManifestPath
	}
	b.WriteString(boxStyle.Render(text))
	b.WriteString("\n")

	for _, o := range summary.Outcomes {
		if !o.OK() {
			b.WriteString(errorStyle.Render(fmt.Sprintf("✗ #%d %s", o.Position, truncate(o.Err.Error(), 70))))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("✗ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, e := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch e.Level {
		case event.LevelError:
			style = errorStyle
			prefix = "✗"
		case event.LevelWarning:
			style = warningStyle
			prefix = "!"
		case event.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case event.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + e.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) helpText() string {
	switch m.state {
	case StateInput:
		return "enter: scan • ctrl+o: verbose • esc: quit"
	case StateScanning:
		return "↑/↓: move • space: toggle • a: all • n: none • q: quit"
	case StateReviewing:
		if m.focus == focusDestination {
			return "enter: download • tab: back to list"
		}
		return "↑/↓: move • space: toggle • a: all • n: none • tab: destination • enter: download • r: new url • q: quit"
	case StateDownloading:
		return "ctrl+c: quit"
	case StateComplete, StateError:
		return "r: new url • q: quit"
	}
	return ""
}

// truncate shortens s to width terminal cells.
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// Run starts the TUI application.
func Run(settings *config.Settings) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var p *tea.Program
	ctrl := session.New(settings, programNotifier{send: func(msg tea.Msg) { p.Send(msg) }})
	p = tea.NewProgram(NewModel(settings, ctrl), tea.WithAltScreen())

	go func() {
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "session stopped: %v\n", err)
		}
	}()

	_, err := p.Run()
	return err
}
