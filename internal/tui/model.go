package tui

import (
	"fmt"
	"strings"

	"contentsort/internal/dialog"
	"contentsort/internal/i18n"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	xansi "github.com/charmbracelet/x/ansi"
)

// SubmitFunc applies the joined ShortID order. It is called once, on enter.
type SubmitFunc func(sortOrder string) (dialog.Outcome, error)

type row struct {
	shortID string
	text    string
	// editable rows can be moved; others hold their position unless displaced.
	editable bool
}

type submittedMsg struct {
	outcome dialog.Outcome
	err     error
}

// Model is the sort dialog as a Bubble Tea program.
type Model struct {
	view      dialog.View
	rows      []row
	cursor    int
	moved     bool
	delimiter string
	submit    SubmitFunc

	keys keyMap
	help help.Model

	width  int
	height int

	submitting bool
	outcome    *dialog.Outcome
	cancelled  bool
	err        error
	status     string
}

func NewModel(v dialog.View, delimiter string, submit SubmitFunc) Model {
	if delimiter == "" {
		delimiter = "|"
	}
	rows := make([]row, 0, len(v.Entries))
	for _, e := range v.Entries {
		rows = append(rows, row{
			shortID:  strings.TrimPrefix(e.ElementID, "I"),
			text:     e.Text,
			editable: e.Editable,
		})
	}
	return Model{
		view:      v,
		rows:      rows,
		delimiter: delimiter,
		submit:    submit,
		keys:      defaultKeyMap(),
		help:      help.New(),
		width:     80,
	}
}

func (m Model) Init() tea.Cmd { return nil }

// Order returns the current row order as submitted to the dialog.
func (m Model) Order() string {
	ids := make([]string, 0, len(m.rows))
	for _, r := range m.rows {
		ids = append(ids, r.shortID)
	}
	return strings.Join(ids, m.delimiter)
}

// Outcome reports the applied result; ok is false when the dialog was cancelled or
// nothing was submitted.
func (m Model) Outcome() (dialog.Outcome, bool) {
	if m.outcome == nil {
		return dialog.Outcome{}, false
	}
	return *m.outcome, true
}

func (m Model) Cancelled() bool { return m.cancelled }
func (m Model) Err() error      { return m.err }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case submittedMsg:
		m.submitting = false
		if msg.err != nil {
			m.err = msg.err
			m.status = msg.err.Error()
			return m, nil
		}
		m.err = nil
		out := msg.outcome
		m.outcome = &out
		return m, tea.Quit

	case tea.KeyMsg:
		if m.submitting {
			return m, nil
		}
		return m.updateKey(msg)
	}
	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.cancelled = true
		m.err = nil
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.MoveUp):
		m.move(-1)
	case key.Matches(msg, m.keys.MoveDown):
		m.move(1)
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Top):
		m.cursor = 0
	case key.Matches(msg, m.keys.Bottom):
		if len(m.rows) > 0 {
			m.cursor = len(m.rows) - 1
		}
	case key.Matches(msg, m.keys.Apply):
		if !m.view.Enabled {
			m.cancelled = true
			return m, tea.Quit
		}
		m.submitting = true
		m.err = nil
		submit := m.submit
		order := m.Order()
		return m, func() tea.Msg {
			if submit == nil {
				return submittedMsg{}
			}
			out, err := submit(order)
			return submittedMsg{outcome: out, err: err}
		}
	}
	return m, nil
}

func (m *Model) move(delta int) {
	if len(m.rows) == 0 {
		return
	}
	to := m.cursor + delta
	if to < 0 || to >= len(m.rows) {
		return
	}
	if !m.rows[m.cursor].editable {
		m.status = i18n.T(m.view.Language, "sort.readonly")
		return
	}
	m.rows[m.cursor], m.rows[to] = m.rows[to], m.rows[m.cursor]
	m.cursor = to
	m.moved = true
}

func (m Model) View() string {
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	var b strings.Builder

	b.WriteString(styleTitle.Render(m.view.Title))
	b.WriteString("\n")
	if txt := renderText(m.view.Text, width); txt != "" {
		b.WriteString(txt)
		b.WriteString("\n")
	}
	if m.view.RootPath != "" {
		b.WriteString(styleMuted().Render(m.view.RootPath))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(m.rows) == 0 || m.view.Message != "" {
		b.WriteString(styleMuted().Render(m.view.Message))
		b.WriteString("\n")
	}
	for i, r := range m.rows {
		b.WriteString(m.renderRow(i, r, width))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.submitting:
		b.WriteString(styleMuted().Render("Saving..."))
		b.WriteString("\n")
	case m.err != nil:
		b.WriteString(styleError.Render(m.status))
		b.WriteString("\n")
	case m.status != "":
		b.WriteString(styleMuted().Render(m.status))
		b.WriteString("\n")
	case m.moved:
		b.WriteString(styleOK.Render(fmt.Sprintf("Order changed. Press enter (%s) to apply.", m.view.OKLabel)))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))

	return styleFrame.Render(b.String())
}

func (m Model) renderRow(i int, r row, width int) string {
	marker := "  "
	if i == m.cursor {
		marker = styleCursor.Render("> ")
	}
	text := r.text
	if text == "" {
		text = r.shortID
	}
	text = xansi.Truncate(text, width-2, "…")
	switch {
	case i == m.cursor:
		text = styleSelected.Render(text)
	case !r.editable:
		text = styleMuted().Render(text)
	}
	return marker + text
}
