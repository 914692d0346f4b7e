// Package browse is a terminal browser over workspace diagnostics.
package browse

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lexcodex/xmodel/framework/model"
)

// Entry is one diagnostic as shown in the list.
type Entry struct {
	Diagnostic model.Diagnostic
	// Path is the file path relative to the workspace root when possible.
	Path string
	// Line is the source line the diagnostic starts on.
	Line string
}

// TextSource returns the current text of a document.
type TextSource func(uri string) (string, bool)

// Run starts the browser and blocks until the user quits.
func Run(ctx context.Context, m Model) error {
	program := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

// Model implements tea.Model.
type Model struct {
	root      string
	entries   []Entry
	visible   []int
	cursor    int
	filter    model.Severity
	truncated bool

	detail viewport.Model
	keys   KeyMap
	width  int
	height int
	ready  bool
}

// filterOrder is the cycle of severity filters; 0 shows everything.
var filterOrder = []model.Severity{0, model.SeverityError, model.SeverityWarning, model.SeverityInformation}

const (
	headerHeight = 1
	statusHeight = 1
	detailHeight = 7
)

// New builds a browser over diags, ordered by path and position. source
// supplies the text used for line previews and may be nil.
func New(root string, diags []model.Diagnostic, source TextSource, truncated bool) Model {
	entries := make([]Entry, 0, len(diags))
	for _, d := range diags {
		e := Entry{Diagnostic: d, Path: displayPath(root, d.URI)}
		if source != nil {
			if text, ok := source(d.URI); ok {
				e.Line = sourceLine(text, d.Range.Start.Line)
			}
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Path != entries[j].Path {
			return entries[i].Path < entries[j].Path
		}
		return entries[i].Diagnostic.Range.Start.Before(entries[j].Diagnostic.Range.Start)
	})
	m := Model{root: root, entries: entries, truncated: truncated, keys: DefaultKeyMap()}
	m.applyFilter()
	return m
}

func displayPath(root, uri string) string {
	path := model.URIToPath(uri)
	if root != "" {
		if absRoot, err := filepath.Abs(root); err == nil {
			if rel, err := filepath.Rel(absRoot, path); err == nil && !strings.HasPrefix(rel, "..") {
				return rel
			}
		}
	}
	return path
}

func sourceLine(text string, line int) string {
	lines := strings.Split(text, "\n")
	if line < 0 || line >= len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[line])
}

// Selected returns the entry under the cursor.
func (m Model) Selected() (Entry, bool) {
	if len(m.visible) == 0 {
		return Entry{}, false
	}
	return m.entries[m.visible[m.cursor]], true
}

// Filter returns the active severity filter; 0 means all.
func (m Model) Filter() model.Severity {
	return m.filter
}

func (m *Model) applyFilter() {
	visible := make([]int, 0, len(m.entries))
	for i, e := range m.entries {
		if m.filter == 0 || e.Diagnostic.Severity == m.filter {
			visible = append(visible, i)
		}
	}
	m.visible = visible
	if m.cursor >= len(m.visible) {
		m.cursor = max(0, len(m.visible)-1)
	}
	m.refreshDetail()
}

func (m *Model) refreshDetail() {
	if !m.ready {
		return
	}
	m.detail.SetContent(m.renderDetail())
	m.detail.GotoTop()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.detail = viewport.New(max(10, msg.Width-4), detailHeight)
			m.ready = true
		} else {
			m.detail.Width = max(10, msg.Width-4)
		}
		m.refreshDetail()
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.refreshDetail()
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.visible)-1 {
				m.cursor++
				m.refreshDetail()
			}
		case key.Matches(msg, m.keys.Top):
			m.cursor = 0
			m.refreshDetail()
		case key.Matches(msg, m.keys.Bottom):
			m.cursor = max(0, len(m.visible)-1)
			m.refreshDetail()
		case key.Matches(msg, m.keys.Filter):
			m.filter = nextFilter(m.filter)
			m.cursor = 0
			m.applyFilter()
		case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
			if m.ready {
				var cmd tea.Cmd
				m.detail, cmd = m.detail.Update(msg)
				return m, cmd
			}
		}
	}
	return m, nil
}

func nextFilter(current model.Severity) model.Severity {
	for i, sev := range filterOrder {
		if sev == current {
			return filterOrder[(i+1)%len(filterOrder)]
		}
	}
	return 0
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	parts := []string{m.renderHeader(), m.renderList()}
	parts = append(parts, detailBoxStyle.Width(max(10, m.width-2)).Render(m.detail.View()))
	parts = append(parts, m.renderStatus())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	diags := make([]model.Diagnostic, len(m.entries))
	for i, e := range m.entries {
		diags[i] = e.Diagnostic
	}
	counts := model.CountBySeverity(diags)
	summary := fmt.Sprintf("%d errors, %d warnings, %d information",
		counts[model.SeverityError], counts[model.SeverityWarning], counts[model.SeverityInformation])
	if m.truncated {
		summary += " (truncated)"
	}
	return headerStyle.Render("xmodel diagnostics") + " " + dimStyle.Render(summary)
}

func (m Model) listHeight() int {
	// Detail box adds two border rows.
	return max(1, m.height-headerHeight-statusHeight-detailHeight-2)
}

func (m Model) renderList() string {
	if len(m.visible) == 0 {
		return emptyStyle.Width(max(10, m.width)).Render("No diagnostics.")
	}
	height := m.listHeight()
	start := 0
	if m.cursor >= height {
		start = m.cursor - height + 1
	}
	end := min(len(m.visible), start+height)
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		e := m.entries[m.visible[i]]
		d := e.Diagnostic
		sev := SeverityStyle(d.Severity).Render(fmt.Sprintf("%-11s", d.Severity))
		loc := fmt.Sprintf("%s:%s", e.Path, d.Range.Start)
		line := fmt.Sprintf("%s %s %s %s", sev, d.Code, filePathStyle.Render(loc), d.Message)
		if i == m.cursor {
			line = selectedStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDetail() string {
	e, ok := m.Selected()
	if !ok {
		return dimStyle.Render("Nothing selected.")
	}
	d := e.Diagnostic
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", SeverityStyle(d.Severity).Render(d.Severity.String()), d.Code)
	fmt.Fprintf(&b, "%s\n", filePathStyle.Render(fmt.Sprintf("%s %s", e.Path, d.Range)))
	b.WriteString(d.Message)
	if e.Line != "" {
		b.WriteString("\n\n")
		b.WriteString(snippetStyle.Render(e.Line))
	}
	return b.String()
}

func (m Model) renderStatus() string {
	filter := "all"
	if m.filter != 0 {
		filter = m.filter.String()
	}
	left := fmt.Sprintf("%s | filter: %s | %d/%d", m.root, filter, min(m.cursor+1, len(m.visible)), len(m.visible))
	right := m.keys.HelpText()
	padding := max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right)-2)
	return statusStyle.Render(left + strings.Repeat(" ", padding) + right)
}
