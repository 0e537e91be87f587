package tui

import (
	"errors"
	"strings"
	"testing"

	"contentsort/internal/dialog"
	"contentsort/internal/render"

	tea "github.com/charmbracelet/bubbletea"
)

func testView(enabled bool) dialog.View {
	return dialog.View{
		Title:    "Sort",
		Text:     "Drag the items.",
		RootPath: "/home",
		Language: "en",
		OKLabel:  "OK",
		Enabled:  enabled,
		Entries: []render.Entry{
			{ElementID: "IAAA", Text: "alpha", Editable: true},
			{ElementID: "IBBB", Text: "beta", Editable: true},
			{ElementID: "ICCC", Text: "gamma", Editable: false},
		},
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(Model)
	if !ok {
		t.Fatalf("unexpected model type %T", next)
	}
	return mm, cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestModel_MoveRows(t *testing.T) {
	m := NewModel(testView(true), "", nil)
	if got := m.Order(); got != "AAA|BBB|CCC" {
		t.Fatalf("initial order = %q", got)
	}

	m, _ = update(t, m, runes("J"))
	if got := m.Order(); got != "BBB|AAA|CCC" {
		t.Fatalf("after J = %q", got)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftUp})
	if got := m.Order(); got != "AAA|BBB|CCC" {
		t.Fatalf("after shift+up = %q", got)
	}
	// Moving past the top is a no-op.
	m, _ = update(t, m, runes("K"))
	if got := m.Order(); got != "AAA|BBB|CCC" {
		t.Fatalf("after K at top = %q", got)
	}
}

func TestModel_ReadOnlyRowStays(t *testing.T) {
	m := NewModel(testView(true), ",", nil)
	m, _ = update(t, m, runes("G"))
	m, _ = update(t, m, runes("K"))
	if got := m.Order(); got != "AAA,BBB,CCC" {
		t.Fatalf("read-only row moved: %q", got)
	}
	if m.status != "You cannot move this item." {
		t.Fatalf("status = %q", m.status)
	}

	// It can still be displaced by moving a neighbour.
	m, _ = update(t, m, runes("k"))
	m, _ = update(t, m, runes("J"))
	if got := m.Order(); got != "AAA,CCC,BBB" {
		t.Fatalf("displacement failed: %q", got)
	}
}

func TestModel_ApplySubmitsOrder(t *testing.T) {
	var submitted string
	submit := func(order string) (dialog.Outcome, error) {
		submitted = order
		return dialog.Outcome{DialogValue: dialog.DialogValueSorted}, nil
	}
	m := NewModel(testView(true), "|", submit)
	m, _ = update(t, m, runes("J"))

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil || !m.submitting {
		t.Fatalf("enter should start submitting")
	}
	// Keys are ignored while the submit is in flight.
	m, _ = update(t, m, runes("J"))

	m, cmd = update(t, m, cmd())
	if submitted != "BBB|AAA|CCC" {
		t.Fatalf("submitted = %q", submitted)
	}
	out, ok := m.Outcome()
	if !ok || out.DialogValue != "1" {
		t.Fatalf("outcome = %+v %v", out, ok)
	}
	if !isQuit(cmd) {
		t.Fatalf("expected quit after successful submit")
	}
}

func TestModel_SubmitErrorKeepsDialogOpen(t *testing.T) {
	boom := errors.New("disk full")
	m := NewModel(testView(true), "|", func(string) (dialog.Outcome, error) {
		return dialog.Outcome{}, boom
	})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, cmd = update(t, m, cmd())
	if cmd != nil {
		t.Fatalf("failed submit should not quit")
	}
	if !errors.Is(m.Err(), boom) || m.submitting {
		t.Fatalf("err = %v submitting = %v", m.Err(), m.submitting)
	}
	if !strings.Contains(m.View(), "disk full") {
		t.Fatalf("error not shown")
	}
}

func TestModel_RetryAfterErrorSucceeds(t *testing.T) {
	boom := errors.New("disk full")
	calls := 0
	m := NewModel(testView(true), "|", func(string) (dialog.Outcome, error) {
		calls++
		if calls == 1 {
			return dialog.Outcome{}, boom
		}
		return dialog.Outcome{DialogValue: "1"}, nil
	})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, cmd())
	if !errors.Is(m.Err(), boom) {
		t.Fatalf("first submit err = %v", m.Err())
	}

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.Err() != nil {
		t.Fatalf("err not cleared when submit starts: %v", m.Err())
	}
	m, cmd = update(t, m, cmd())
	if !isQuit(cmd) {
		t.Fatalf("successful retry should quit")
	}
	out, err := result(m)
	if err != nil || out.DialogValue != "1" {
		t.Fatalf("result = %+v, %v", out, err)
	}
}

func TestModel_CancelAfterErrorIsCancelled(t *testing.T) {
	m := NewModel(testView(true), "|", func(string) (dialog.Outcome, error) {
		return dialog.Outcome{}, errors.New("disk full")
	})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, cmd())
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.Err() != nil {
		t.Fatalf("stale err after cancel: %v", m.Err())
	}
	if _, err := result(m); !errors.Is(err, ErrCancelled) {
		t.Fatalf("result err = %v, want ErrCancelled", err)
	}
}

func TestModel_CancelAndDisabled(t *testing.T) {
	m := NewModel(testView(true), "|", nil)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if !m.Cancelled() || !isQuit(cmd) {
		t.Fatalf("esc should cancel and quit")
	}
	if _, ok := m.Outcome(); ok {
		t.Fatalf("cancelled dialog has an outcome")
	}

	called := false
	m = NewModel(testView(false), "|", func(string) (dialog.Outcome, error) {
		called = true
		return dialog.Outcome{}, nil
	})
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.Cancelled() || !isQuit(cmd) || called {
		t.Fatalf("enter on a disabled dialog should close without submitting")
	}
}

func TestModel_View(t *testing.T) {
	v := testView(false)
	v.Message = "There is only one item, so there is nothing to sort."
	m := NewModel(v, "|", nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 60, Height: 20})
	out := m.View()
	for _, want := range []string{"Sort", "/home", "alpha", "gamma", "nothing to sort"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
}
