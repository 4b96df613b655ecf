package ui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/recera/mxc/internal/diag"
)

// FileStatus is the outcome of compiling one document
type FileStatus struct {
	File        string
	Diagnostics diag.List
	Cached      bool
	// Written is false when structural errors kept the outputs from being written
	Written bool
}

func (f FileStatus) icon() string {
	switch {
	case !f.Written:
		return errorStyle.Render("✗")
	case len(f.Diagnostics) > 0:
		return warningStyle.Render("!")
	default:
		return successStyle.Render("✓")
	}
}

// BuildStartedMsg is sent when the watcher begins a rebuild
type BuildStartedMsg struct {
	Files []string
}

// BuildFinishedMsg carries the statuses of the rebuilt documents
type BuildFinishedMsg struct {
	Files    []FileStatus
	Removed  []string
	Duration time.Duration
	Err      error
}

// KeyMap defines the dashboard shortcuts
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Rebuild key.Binding
	Quit    key.Binding
}

// DefaultKeyMap is the dashboard key map
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Rebuild: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "rebuild all"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "q"),
		key.WithHelp("q", "quit"),
	),
}

// Dashboard is the bubbletea model of `mxc watch --tui`
type Dashboard struct {
	root     string
	spinner  spinner.Model
	building bool
	pending  int

	files    map[string]FileStatus
	order    []string
	selected int

	lastBuild time.Time
	duration  time.Duration
	err       error
	rebuild   func()
	quitting  bool
}

// NewDashboard creates the dashboard. Paths are shown relative to root; rebuild is
// called when the user asks for a full rebuild.
func NewDashboard(root string, rebuild func()) Dashboard {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = selectedStyle
	return Dashboard{
		root:    root,
		spinner: s,
		files:   make(map[string]FileStatus),
		rebuild: rebuild,
	}
}

// Init starts the spinner
func (m Dashboard) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles build notifications and keys
func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, DefaultKeyMap.Up):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, DefaultKeyMap.Down):
			if m.selected < len(m.order)-1 {
				m.selected++
			}
		case key.Matches(msg, DefaultKeyMap.Rebuild):
			if m.rebuild != nil && !m.building {
				go m.rebuild()
			}
		}
		return m, nil

	case BuildStartedMsg:
		m.building = true
		m.pending = len(msg.Files)
		return m, m.spinner.Tick

	case BuildFinishedMsg:
		m.building = false
		m.pending = 0
		m.err = msg.Err
		m.duration = msg.Duration
		m.lastBuild = time.Now()
		for _, f := range msg.Files {
			m.files[f.File] = f
		}
		for _, f := range msg.Removed {
			delete(m.files, f)
		}
		m.order = make([]string, 0, len(m.files))
		for f := range m.files {
			m.order = append(m.order, f)
		}
		sortFiles(m.order, m.files)
		if m.selected >= len(m.order) {
			m.selected = max(0, len(m.order)-1)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// sortFiles orders failing documents first, then documents with warnings, each
// group alphabetically
func sortFiles(order []string, files map[string]FileStatus) {
	rank := func(f FileStatus) int {
		switch {
		case !f.Written:
			return 0
		case len(f.Diagnostics) > 0:
			return 1
		}
		return 2
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := rank(files[order[i]]), rank(files[order[j]])
		if a != b {
			return a < b
		}
		return order[i] < order[j]
	})
}

// View renders the file list and the diagnostics of the selected file
func (m Dashboard) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("mxc watch"))
	b.WriteString(mutedStyle.Render("  " + m.root))
	b.WriteString("\n\n")

	switch {
	case m.building:
		fmt.Fprintf(&b, "%s compiling %d %s...\n", m.spinner.View(), m.pending, plural(m.pending, "file"))
	case m.err != nil:
		b.WriteString(errorStyle.Render("build failed: "+m.err.Error()) + "\n")
	case !m.lastBuild.IsZero():
		b.WriteString(m.summary() + mutedStyle.Render(fmt.Sprintf(" in %s at %s", m.duration.Round(time.Millisecond), m.lastBuild.Format("15:04:05"))) + "\n")
	default:
		b.WriteString(mutedStyle.Render("waiting for the first build") + "\n")
	}
	b.WriteByte('\n')

	for i, file := range m.order {
		f := m.files[file]
		name := m.rel(file)
		if f.Cached {
			name += mutedStyle.Render(" (cached)")
		}
		line := fmt.Sprintf("%s %s", f.icon(), name)
		if i == m.selected {
			line = selectedStyle.Render("›") + " " + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	if m.selected < len(m.order) {
		if f := m.files[m.order[m.selected]]; len(f.Diagnostics) > 0 {
			var lines []string
			for _, d := range f.Diagnostics.Sorted() {
				copied := *d
				copied.File = ""
				lines = append(lines, RenderDiagnostic(&copied))
			}
			b.WriteString("\n" + boxStyle.Render(strings.Join(lines, "\n")) + "\n")
		}
	}

	b.WriteString(helpStyle.Render("↑/↓ select • r rebuild all • q quit"))
	return b.String()
}

func (m Dashboard) summary() string {
	var failed, warnings, cached int
	for _, f := range m.files {
		if !f.Written {
			failed++
		}
		if f.Cached {
			cached++
		}
		warnings += len(f.Diagnostics) - len(f.Diagnostics.Errors())
	}
	return Summary(len(m.files), failed, warnings, cached)
}

func (m Dashboard) rel(path string) string {
	if m.root == "" {
		return path
	}
	if r, err := filepath.Rel(m.root, path); err == nil {
		return r
	}
	return path
}
