package tui

import (
	"context"
	"errors"

	"contentsort/internal/dialog"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned by Run when the user leaves without applying.
var ErrCancelled = errors.New("sort cancelled")

// Run shows the dialog view until the user applies or cancels.
func Run(ctx context.Context, v dialog.View, delimiter string, submit SubmitFunc) (dialog.Outcome, error) {
	applyColorProfilePreference()
	applyThemePreference()

	p := tea.NewProgram(NewModel(v, delimiter, submit), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return dialog.Outcome{}, err
	}
	m, ok := final.(Model)
	if !ok {
		return dialog.Outcome{}, errors.New("tui: unexpected model type")
	}
	return result(m)
}

// result maps the final model state to Run's return values. An applied outcome wins
// over an error left by an earlier failed submit.
func result(m Model) (dialog.Outcome, error) {
	if out, ok := m.Outcome(); ok {
		return out, nil
	}
	if m.Cancelled() {
		return dialog.Outcome{}, ErrCancelled
	}
	if err := m.Err(); err != nil {
		return dialog.Outcome{}, err
	}
	return dialog.Outcome{}, ErrCancelled
}
